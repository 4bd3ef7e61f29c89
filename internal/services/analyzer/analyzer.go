// Package analyzer runs the single-timeframe forecast pipeline:
// indicators, then rule votes, then confidence aggregation.
package analyzer

import (
	"SignalCast/internal/domain/models"
	"SignalCast/internal/services/confidence"
	"SignalCast/internal/services/indicators"
	"SignalCast/internal/services/signals"
)

// MinBars is the shortest series that produces a forecast.
const MinBars = 20

// Analysis is the outcome of one pipeline run.
type Analysis struct {
	Verdict   confidence.Verdict
	Votes     []signals.Vote
	Values    indicators.Values
	Defaulted []string
}

type Analyzer struct {
	calc       *indicators.Calculator
	voter      *signals.Voter
	aggregator *confidence.Aggregator
}

func New(calc *indicators.Calculator, voter *signals.Voter, agg *confidence.Aggregator) *Analyzer {
	return &Analyzer{calc: calc, voter: voter, aggregator: agg}
}

// NewDefault wires the standard configuration under policy p.
func NewDefault(p confidence.Policy) *Analyzer {
	return New(
		indicators.New(indicators.DefaultConfig()),
		signals.NewVoter(),
		confidence.NewAggregator(p),
	)
}

func (a *Analyzer) Policy() confidence.Policy { return a.aggregator.Policy() }

// WithPolicy returns an analyzer sharing a's indicators and rules but
// aggregating under p.
func (a *Analyzer) WithPolicy(p confidence.Policy) *Analyzer {
	return New(a.calc, a.voter, confidence.NewAggregator(p))
}

// Evaluate computes indicators and votes without aggregating.
func (a *Analyzer) Evaluate(bars []models.PriceBar) (indicators.Values, []signals.Vote) {
	values := a.calc.Compute(bars).Resolve()
	return values, a.voter.Vote(values, bars)
}

// Aggregate folds votes into a verdict under the analyzer's policy.
func (a *Analyzer) Aggregate(votes []signals.Vote, bars []models.PriceBar) confidence.Verdict {
	return a.aggregator.Aggregate(votes, models.Closes(bars))
}

// Analyze returns the null verdict for fewer than MinBars bars.
func (a *Analyzer) Analyze(bars []models.PriceBar) Analysis {
	if len(bars) < MinBars {
		return Analysis{Verdict: confidence.NullVerdict(a.aggregator.Policy())}
	}
	values, votes := a.Evaluate(bars)
	return Analysis{
		Verdict:   a.Aggregate(votes, bars),
		Votes:     votes,
		Values:    values,
		Defaulted: values.Defaulted,
	}
}
