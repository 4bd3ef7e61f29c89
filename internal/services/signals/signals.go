package signals

import (
	"SignalCast/internal/domain/models"
	"SignalCast/internal/services/indicators"
)

// Direction is a forecast direction.
type Direction string

const (
	Up   Direction = "UP"
	Down Direction = "DOWN"
	// None marks a weight-only vote or an unavailable forecast.
	None Direction = "NONE"
)

// Vote is one rule's opinion.
type Vote struct {
	Rule      string    `json:"rule"`
	Direction Direction `json:"direction"`
	Weight    float64   `json:"weight"`
}

// Directional reports whether the vote counts toward the up/down tally.
func (v Vote) Directional() bool {
	return v.Direction == Up || v.Direction == Down
}

// Input is what every rule sees.
type Input struct {
	Values indicators.Values
	Closes []float64
	Volume float64
}

// Rule inspects the input and returns zero or one vote.
type Rule func(in Input) []Vote

// Voter evaluates an ordered rule list.
type Voter struct {
	rules []Rule
}

// NewVoter returns a voter over rules, or over DefaultRules when none are given.
func NewVoter(rules ...Rule) *Voter {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Voter{rules: rules}
}

// DefaultRules returns the standard rule battery in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		TrendRule,
		RSIExtremeRule,
		RSIBiasRule,
		MACDRule,
		PriceVsSMARule,
		SMACrossRule,
		BollingerExtremeRule,
		BollingerBiasRule,
		StochasticRule,
		WilliamsRule,
		MomentumRule,
		VolumeRule,
	}
}

// Vote runs every rule, then the fallback if nothing directional fired.
// The returned slice is never empty.
func (vt *Voter) Vote(v indicators.Values, bars []models.PriceBar) []Vote {
	in := Input{Values: v, Closes: models.Closes(bars), Volume: v.Volume}

	var votes []Vote
	for _, rule := range vt.rules {
		votes = append(votes, rule(in)...)
	}
	if Count(votes).Total == 0 {
		votes = append(votes, FallbackRule(in)...)
	}
	return votes
}

// Tally summarises a vote list.
type Tally struct {
	Up        int
	Down      int
	Total     int
	WeightSum float64
}

// Count tallies directional votes; WeightSum covers every vote.
func Count(votes []Vote) Tally {
	var t Tally
	for _, v := range votes {
		t.WeightSum += v.Weight
		switch v.Direction {
		case Up:
			t.Up++
		case Down:
			t.Down++
		}
	}
	t.Total = t.Up + t.Down
	return t
}
