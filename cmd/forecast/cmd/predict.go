package cmd

import (
	"context"

	"SignalCast/internal/domain/repository"
	"SignalCast/internal/usecase"

	"github.com/spf13/cobra"
)

var (
	predictHorizon   string
	analyzeTimeframe string
	analyzePolicy    string
	analyzeThreshold float64
	analyzeBars      int
)

var predictCmd = &cobra.Command{
	Use:   "predict SYMBOL",
	Short: "Multi-timeframe prediction for a symbol",
	Long: `Fetches 1h and 4h series, reconciles them and prints the prediction.

Examples:
  forecast predict EURUSD_OTC --sources mock
  forecast predict GOLD_OTC --config config/config.yaml
  forecast predict GOLD_OTC --horizon 1m`,
	Args: cobra.ExactArgs(1),
	RunE: runPredict,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze SYMBOL",
	Short: "Single-timeframe verdict",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

var pairsCmd = &cobra.Command{
	Use:   "pairs",
	Short: "List tradable pairs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}
		defer p.Close()
		return printJSON(cmd, p.prices.Pairs())
	},
}

func init() {
	predictCmd.Flags().StringVar(&predictHorizon, "horizon", "", "forecast horizon (1m or 5m, default from config)")
	analyzeCmd.Flags().StringVar(&analyzeTimeframe, "tf", "1h", "timeframe")
	analyzeCmd.Flags().StringVar(&analyzePolicy, "policy", "", "confidence policy (production or legacy)")
	analyzeCmd.Flags().Float64Var(&analyzeThreshold, "threshold", 0, "legacy policy threshold")
	analyzeCmd.Flags().IntVar(&analyzeBars, "bars", 0, "bars to fetch")
}

func runPredict(cmd *cobra.Command, args []string) error {
	p, err := newPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*p.cfg.Prediction.FetchTimeout)
	defer cancel()

	doc, err := p.prediction.Predict(ctx, args[0], repository.Timeframe(predictHorizon))
	if err != nil {
		return err
	}
	return printJSON(cmd, doc)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	p, err := newPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	policy := analyzePolicy
	if policy == "" {
		policy = p.cfg.Prediction.Policy
	}
	doc, err := p.analyze.Analyze(cmd.Context(), usecase.AnalyzeParams{
		Symbol:    args[0],
		Timeframe: repository.NormalizeTimeframe(analyzeTimeframe),
		Policy:    policy,
		Threshold: analyzeThreshold,
		Bars:      analyzeBars,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd, doc)
}
