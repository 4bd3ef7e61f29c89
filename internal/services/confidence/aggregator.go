package confidence

import (
	"math"

	"SignalCast/internal/services/signals"

	"github.com/shopspring/decimal"
)

// Scoring constants. Unvalidated heuristics, never fitted to data.
const (
	TieBase            = 50.0
	ConsensusScale     = 20.0
	BreadthBonusWide   = 10.0
	BreadthBonusNarrow = 5.0
	BreadthWideMin     = 5
)

// Breakdown counts directional votes.
type Breakdown struct {
	UpSignals    int `json:"up_signals"`
	DownSignals  int `json:"down_signals"`
	TotalSignals int `json:"total_signals"`
}

// Verdict is the aggregated forecast.
type Verdict struct {
	Direction      signals.Direction `json:"direction"`
	Confidence     float64           `json:"confidence"`
	MeetsThreshold bool              `json:"meets_threshold"`
	CurrentPrice   float64           `json:"current_price"`
	Breakdown      Breakdown         `json:"signal_breakdown"`
	Policy         string            `json:"policy"`
}

// IsNull reports whether the verdict carries no forecast.
func (v Verdict) IsNull() bool {
	return v.Direction == signals.None
}

// NullVerdict is returned when there is not enough data to forecast.
func NullVerdict(p Policy) Verdict {
	v := Verdict{Direction: signals.None}
	if p != nil {
		v.Policy = p.Name()
	}
	return v
}

type Aggregator struct {
	policy Policy
}

// NewAggregator uses the production policy when p is nil.
func NewAggregator(p Policy) *Aggregator {
	if p == nil {
		p = NewProductionPolicy()
	}
	return &Aggregator{policy: p}
}

func (a *Aggregator) Policy() Policy { return a.policy }

// Aggregate folds votes into a verdict. closes supplies the tie-break and the
// current price.
func (a *Aggregator) Aggregate(votes []signals.Vote, closes []float64) Verdict {
	t := signals.Count(votes)

	var price float64
	if n := len(closes); n > 0 {
		price = closes[n-1]
	}

	dir := signals.Down
	var base float64
	switch {
	case t.Up > t.Down:
		dir = signals.Up
		base = float64(t.Up) / float64(t.Total) * 100
	case t.Down > t.Up:
		base = float64(t.Down) / float64(t.Total) * 100
	default:
		if n := len(closes); n >= 2 && closes[n-1] > closes[n-2] {
			dir = signals.Up
		}
		base = TieBase
	}

	raw := base + t.WeightSum*100 +
		math.Abs(float64(t.Up-t.Down))/math.Max(float64(t.Total), 1)*ConsensusScale
	if t.Total >= BreadthWideMin {
		raw += BreadthBonusWide
	} else {
		raw += BreadthBonusNarrow
	}

	conf, meets := a.policy.Finalize(raw)
	conf, _ = decimal.NewFromFloat(conf).Round(2).Float64()

	return Verdict{
		Direction:      dir,
		Confidence:     conf,
		MeetsThreshold: meets,
		CurrentPrice:   price,
		Breakdown: Breakdown{
			UpSignals:    t.Up,
			DownSignals:  t.Down,
			TotalSignals: t.Total,
		},
		Policy: a.policy.Name(),
	}
}
