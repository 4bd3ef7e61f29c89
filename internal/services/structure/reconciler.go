package structure

import (
	"math"

	"SignalCast/internal/domain/models"
	"SignalCast/internal/services/analyzer"
	"SignalCast/internal/services/confidence"
	"SignalCast/internal/services/indicators"
	"SignalCast/internal/services/signals"
)

// Structural vote weights. Heuristic, not fitted.
const (
	WeightHTFBias           = 0.15
	WeightBOS               = 0.12
	WeightCHoCH             = 0.10
	WeightFVG               = 0.08
	WeightSupportResistance = 0.10
)

// Confluence factor names, also used as vote rule names.
const (
	FactorHTFBias           = "htf_bias"
	FactorBOS               = "bos"
	FactorCHoCH             = "choch"
	FactorFVG               = "fvg"
	FactorSupportResistance = "support_resistance"
)

var factors = []string{FactorHTFBias, FactorBOS, FactorCHoCH, FactorFVG, FactorSupportResistance}

// HTF is the higher-timeframe lean.
type HTF struct {
	Bias     Bias    `json:"bias"`
	Strength float64 `json:"strength"`
}

// Advanced is the structural breakdown reported with a reconciled verdict.
type Advanced struct {
	HTFBias           HTF   `json:"htf_bias"`
	BOS               Break `json:"bos"`
	CHoCH             Break `json:"choch"`
	FVG               FVG   `json:"fvg"`
	SupportResistance SR    `json:"support_resistance"`
}

// HTFBias reads the bias from a higher-timeframe analysis. Strength is the
// vote margin as a percentage of directional votes.
func HTFBias(a analyzer.Analysis) HTF {
	b := a.Verdict.Breakdown
	if a.Verdict.IsNull() || b.TotalSignals == 0 || b.UpSignals == b.DownSignals {
		return HTF{Bias: Neutral}
	}
	strength := round2(math.Abs(float64(b.UpSignals-b.DownSignals)) / float64(b.TotalSignals) * 100)
	if b.UpSignals > b.DownSignals {
		return HTF{Bias: Bullish, Strength: strength}
	}
	return HTF{Bias: Bearish, Strength: strength}
}

type Config struct {
	SwingLookback       int
	ProximityPct        float64
	MaxGaps             int
	PrimaryTimeframe    string
	HigherTimeframe     string
	PredictionTimeframe string
}

func DefaultConfig() Config {
	return Config{
		SwingLookback:       DefaultSwingLookback,
		ProximityPct:        DefaultProximityPct,
		MaxGaps:             DefaultMaxGaps,
		PrimaryTimeframe:    "1h",
		HigherTimeframe:     "4h",
		PredictionTimeframe: "5m",
	}
}

// Result is a reconciled multi-timeframe forecast.
type Result struct {
	Verdict             confidence.Verdict `json:"verdict"`
	Advanced            Advanced           `json:"advanced_analysis"`
	ConfluenceFactors   map[string]bool    `json:"confluence_factors"`
	AnalysisTimeframes  []string           `json:"analysis_timeframes"`
	PredictionTimeframe string             `json:"prediction_timeframe"`
	Votes               []signals.Vote     `json:"-"`
	Values              indicators.Values  `json:"-"`
}

// Reconciler folds structural and higher-timeframe votes into the primary
// timeframe's indicator votes.
type Reconciler struct {
	an  *analyzer.Analyzer
	cfg Config
}

func NewReconciler(an *analyzer.Analyzer, cfg Config) *Reconciler {
	def := DefaultConfig()
	if cfg.SwingLookback <= 0 {
		cfg.SwingLookback = def.SwingLookback
	}
	if cfg.ProximityPct <= 0 {
		cfg.ProximityPct = def.ProximityPct
	}
	if cfg.MaxGaps <= 0 {
		cfg.MaxGaps = def.MaxGaps
	}
	if cfg.PrimaryTimeframe == "" {
		cfg.PrimaryTimeframe = def.PrimaryTimeframe
	}
	if cfg.HigherTimeframe == "" {
		cfg.HigherTimeframe = def.HigherTimeframe
	}
	if cfg.PredictionTimeframe == "" {
		cfg.PredictionTimeframe = def.PredictionTimeframe
	}
	return &Reconciler{an: an, cfg: cfg}
}

func (r *Reconciler) Analyzer() *analyzer.Analyzer { return r.an }

// Reconcile forecasts from primary bars with higher as context. A missing or
// short higher series gives a neutral bias and no vote. AnalysisTimeframes
// lists only the series that were analyzed.
func (r *Reconciler) Reconcile(primary, higher []models.PriceBar) Result {
	res := Result{
		ConfluenceFactors:   make(map[string]bool, len(factors)),
		AnalysisTimeframes:  []string{},
		PredictionTimeframe: r.cfg.PredictionTimeframe,
		Advanced:            emptyAdvanced(),
	}
	for _, f := range factors {
		res.ConfluenceFactors[f] = false
	}
	if len(primary) < analyzer.MinBars {
		res.Verdict = confidence.NullVerdict(r.an.Policy())
		return res
	}

	values, votes := r.an.Evaluate(primary)
	res.AnalysisTimeframes = append(res.AnalysisTimeframes, r.cfg.PrimaryTimeframe)

	adv := emptyAdvanced()
	if len(higher) >= analyzer.MinBars {
		adv.HTFBias = HTFBias(r.an.Analyze(higher))
		res.AnalysisTimeframes = append(res.AnalysisTimeframes, r.cfg.HigherTimeframe)
	}
	swings := FindSwings(primary, r.cfg.SwingLookback)
	adv.BOS = DetectBOS(primary, swings)
	adv.CHoCH = DetectCHoCH(swings, primary[len(primary)-1].Close)
	adv.FVG = DetectFVG(primary, r.cfg.MaxGaps)
	adv.SupportResistance = DetectSupportResistance(primary, swings, r.cfg.ProximityPct)

	structural := structuralVotes(adv)
	votes = append(votes, structural...)

	res.Verdict = r.an.Aggregate(votes, primary)
	res.Advanced = adv
	res.Votes = votes
	res.Values = values
	for _, v := range structural {
		if v.Direction == res.Verdict.Direction {
			res.ConfluenceFactors[v.Rule] = true
		}
	}
	return res
}

func structuralVotes(adv Advanced) []signals.Vote {
	var out []signals.Vote
	add := func(rule string, b Bias, w float64) {
		if d := b.Direction(); d != signals.None {
			out = append(out, signals.Vote{Rule: rule, Direction: d, Weight: w})
		}
	}
	add(FactorHTFBias, adv.HTFBias.Bias, WeightHTFBias)
	if adv.BOS.Detected {
		add(FactorBOS, adv.BOS.Type, WeightBOS)
	}
	if adv.CHoCH.Detected {
		add(FactorCHoCH, adv.CHoCH.Type, WeightCHoCH)
	}
	add(FactorFVG, adv.FVG.Signal, WeightFVG)
	add(FactorSupportResistance, adv.SupportResistance.Signal, WeightSupportResistance)
	return out
}

func emptyAdvanced() Advanced {
	return Advanced{
		HTFBias:           HTF{Bias: Neutral},
		BOS:               noBreak(),
		CHoCH:             noBreak(),
		FVG:               FVG{Signal: Neutral, Gaps: []Gap{}},
		SupportResistance: SR{Signal: Neutral},
	}
}
