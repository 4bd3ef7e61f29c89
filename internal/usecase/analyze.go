package usecase

import (
	"context"
	"fmt"
	"time"

	domrepo "SignalCast/internal/domain/repository"
	"SignalCast/internal/services/analyzer"
	"SignalCast/internal/services/confidence"
	"SignalCast/internal/services/signals"
	"SignalCast/pkg/logger"
	"SignalCast/pkg/util"
)

type AnalyzeParams struct {
	Symbol    string
	Timeframe domrepo.Timeframe
	Policy    string
	Threshold float64
	Bars      int
}

// AnalysisDocument is a single-timeframe verdict.
type AnalysisDocument struct {
	Symbol          string               `json:"symbol"`
	Timeframe       string               `json:"timeframe"`
	Policy          string               `json:"policy"`
	Direction       signals.Direction    `json:"direction"`
	Confidence      float64              `json:"confidence"`
	MeetsThreshold  bool                 `json:"meets_threshold"`
	CurrentPrice    float64              `json:"current_price"`
	SignalBreakdown confidence.Breakdown `json:"signal_breakdown"`
	Indicators      map[string]float64   `json:"technical_indicators,omitempty"`
	Defaulted       []string             `json:"defaulted_indicators,omitempty"`
	Timestamp       time.Time            `json:"timestamp"`
}

// AnalyzeUseCase runs the indicator pipeline on one timeframe under a
// caller-chosen policy. Nothing is stored.
type AnalyzeUseCase struct {
	series domrepo.SeriesSource
	base   *analyzer.Analyzer
	l      *logger.Logger
}

func NewAnalyzeUseCase(series domrepo.SeriesSource, base *analyzer.Analyzer, l *logger.Logger) *AnalyzeUseCase {
	return &AnalyzeUseCase{series: series, base: base, l: l}
}

func (uc *AnalyzeUseCase) Analyze(ctx context.Context, p AnalyzeParams) (*AnalysisDocument, error) {
	p.Symbol = util.NormalizeSymbol(p.Symbol)
	if p.Symbol == "" {
		return nil, ErrSymbolRequired
	}
	policy, err := confidence.PolicyByName(p.Policy, p.Threshold)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if p.Bars < analyzer.MinBars {
		p.Bars = 100
	}
	tf := domrepo.NormalizeTimeframe(string(p.Timeframe))

	bars, err := uc.series.GetSeries(ctx, p.Symbol, tf, p.Bars)
	if err != nil {
		uc.l.Warn("analyze series unavailable",
			logger.String("symbol", p.Symbol),
			logger.String("tf", string(tf)),
			logger.Error(err),
		)
		bars = nil
	}
	a := uc.base.WithPolicy(policy).Analyze(bars)

	doc := &AnalysisDocument{
		Symbol:          p.Symbol,
		Timeframe:       string(tf),
		Policy:          policy.Name(),
		Direction:       a.Verdict.Direction,
		Confidence:      a.Verdict.Confidence,
		MeetsThreshold:  a.Verdict.MeetsThreshold,
		CurrentPrice:    a.Verdict.CurrentPrice,
		SignalBreakdown: a.Verdict.Breakdown,
		Defaulted:       a.Defaulted,
		Timestamp:       time.Now().UTC(),
	}
	if !a.Verdict.IsNull() {
		doc.Indicators = a.Values.Map()
	}
	return doc, nil
}
