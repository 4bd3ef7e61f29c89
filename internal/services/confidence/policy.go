package confidence

import (
	"fmt"
	"math"
	"strings"
)

const (
	PolicyProduction = "production"
	PolicyLegacy     = "legacy"
)

// Policy turns a raw weighted score into the published confidence.
type Policy interface {
	Name() string
	Finalize(raw float64) (confidence float64, meets bool)
}

// ProductionPolicy clamps every verdict into [Floor, Ceiling] and always
// reports the threshold as met.
type ProductionPolicy struct {
	Floor   float64
	Ceiling float64
}

func NewProductionPolicy() ProductionPolicy {
	return ProductionPolicy{Floor: 75, Ceiling: 90}
}

func (p ProductionPolicy) Name() string { return PolicyProduction }

func (p ProductionPolicy) Finalize(raw float64) (float64, bool) {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return p.Floor, true
	}
	return clamp(raw, p.Floor, p.Ceiling), true
}

// LegacyPolicy clamps to [0, 100] and reports whether the score reached Threshold.
type LegacyPolicy struct {
	Threshold float64
}

func NewLegacyPolicy(threshold float64) LegacyPolicy {
	return LegacyPolicy{Threshold: threshold}
}

func (p LegacyPolicy) Name() string { return PolicyLegacy }

func (p LegacyPolicy) Finalize(raw float64) (float64, bool) {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		raw = 0
	}
	c := clamp(raw, 0, 100)
	return c, c >= p.Threshold
}

// PolicyByName resolves a configured policy. threshold only applies to legacy
// and defaults to 75 when zero.
func PolicyByName(name string, threshold float64) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyProduction:
		return NewProductionPolicy(), nil
	case PolicyLegacy:
		if threshold == 0 {
			threshold = 75
		}
		if threshold < 0 || threshold > 100 {
			return nil, fmt.Errorf("legacy threshold %v out of range [0,100]", threshold)
		}
		return NewLegacyPolicy(threshold), nil
	default:
		return nil, fmt.Errorf("unknown confidence policy %q", name)
	}
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
