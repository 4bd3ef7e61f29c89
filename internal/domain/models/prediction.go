package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SignalBreakdown counts directional votes behind a verdict.
type SignalBreakdown struct {
	UpSignals    int `json:"up_signals"`
	DownSignals  int `json:"down_signals"`
	TotalSignals int `json:"total_signals"`
}

// Prediction is a persisted forecast awaiting or past resolution.
type Prediction struct {
	ID                 uuid.UUID          `json:"id"`
	Symbol             string             `json:"symbol"`
	Timeframe          string             `json:"timeframe"`
	Direction          string             `json:"direction"`
	Confidence         float64            `json:"confidence"`
	MeetsThreshold     bool               `json:"meets_threshold"`
	Policy             string             `json:"policy"`
	EntryPrice         float64            `json:"current_price"`
	ActualPrice        *float64           `json:"actual_price"`
	IsResolved         bool               `json:"is_resolved"`
	IsCorrect          *bool              `json:"is_correct"`
	Breakdown          SignalBreakdown    `json:"signal_breakdown"`
	AnalysisTimeframes []string           `json:"analysis_timeframes"`
	ConfluenceFactors  map[string]bool    `json:"confluence_factors,omitempty"`
	Indicators         map[string]float64 `json:"technical_indicators,omitempty"`
	PredictedAt        time.Time          `json:"prediction_time"`
	ResolveAt          time.Time          `json:"resolve_at"`
	ResolvedAt         *time.Time         `json:"resolved_at,omitempty"`
}

// Outcome evaluates a prediction against the realised price.
// A price equal to the entry counts as incorrect.
func (p *Prediction) Outcome(actual float64) bool {
	switch p.Direction {
	case "UP":
		return actual > p.EntryPrice
	case "DOWN":
		return actual < p.EntryPrice
	default:
		return false
	}
}

// AccuracyMetrics aggregates resolved predictions for a symbol and timeframe.
type AccuracyMetrics struct {
	Symbol             string    `json:"symbol"`
	Timeframe          string    `json:"timeframe"`
	TotalPredictions   int       `json:"total_predictions"`
	CorrectPredictions int       `json:"correct_predictions"`
	AccuracyPercentage float64   `json:"accuracy_percentage"`
	LastUpdated        time.Time `json:"last_updated"`
}

// NewAccuracyMetrics computes the percentage rounded to two decimals; zero
// resolved predictions yield 0.
func NewAccuracyMetrics(symbol, timeframe string, total, correct int, last time.Time) AccuracyMetrics {
	m := AccuracyMetrics{
		Symbol:             symbol,
		Timeframe:          timeframe,
		TotalPredictions:   total,
		CorrectPredictions: correct,
		LastUpdated:        last,
	}
	if total > 0 {
		pct := decimal.NewFromInt(int64(correct)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(total))).
			Round(2)
		m.AccuracyPercentage = pct.InexactFloat64()
	}
	return m
}

// MarkResolved records the realised price and outcome.
func (p *Prediction) MarkResolved(actual float64, at time.Time) {
	correct := p.Outcome(actual)
	p.ActualPrice = &actual
	p.IsCorrect = &correct
	p.IsResolved = true
	p.ResolvedAt = &at
}
