// Package cmd holds the one-shot forecast CLI. Each command builds an
// in-process pipeline over memory stores and the configured sources.
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"SignalCast/internal/di"
	internalrepo "SignalCast/internal/repository"
	"SignalCast/internal/service/quotes"
	"SignalCast/internal/services/analyzer"
	"SignalCast/internal/usecase"
	"SignalCast/pkg/cache"
	"SignalCast/pkg/config"
	"SignalCast/pkg/logger"
	"SignalCast/pkg/metrics"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	envFile string
	verbose bool
	sources []string
)

var rootCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Directional forecasts from OHLCV bars",
	Long: `Directional forecasts from OHLCV bars.

Commands:
    predict     SYMBOL   - multi-timeframe prediction (1h analysed, 4h context)
    analyze     SYMBOL   - single-timeframe verdict under a chosen policy
    pairs                - tradable pair catalogue
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringSliceVar(&sources, "sources", nil, "source order override, e.g. mock or alpha_vantage,mock")

	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(pairsCmd)
}

func initConfig() error {
	if err := godotenv.Load(envFile); err != nil && verbose {
		fmt.Fprintf(os.Stderr, "dotenv: %s not loaded, using environment\n", envFile)
	}
	return nil
}

// pipeline is the in-process wiring shared by the commands.
type pipeline struct {
	cfg        *config.Config
	l          *logger.Logger
	store      *cache.MemoryCache
	prediction *usecase.PredictionUseCase
	analyze    *usecase.AnalyzeUseCase
	prices     *usecase.PriceUseCase
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
	} else {
		cfg, err = config.Parse([]byte("environment: cli\n"))
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if len(sources) > 0 {
		cfg.Sources.Order = sources
	}
	return cfg, cfg.Validate()
}

func newPipeline() (*pipeline, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	l, err := logger.New(&logger.Config{Level: level, Format: "console", Output: "stderr"})
	if err != nil {
		return nil, err
	}

	m := metrics.Nop{}
	store := cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize))
	qc := quotes.New(store)
	bars := internalrepo.NewMemoryBarStore()
	predictions := internalrepo.NewMemoryPredictionStore()

	series := di.ProvideSeriesSource(cfg, bars, qc, m, l)
	an, err := di.ProvideAnalyzer(cfg)
	if err != nil {
		return nil, err
	}
	rec := di.ProvideReconciler(cfg, an)

	return &pipeline{
		cfg:        cfg,
		l:          l,
		store:      store,
		prediction: di.ProvidePredictionUseCase(cfg, series, predictions, internalrepo.NopPublisher{}, rec, m, l),
		analyze:    usecase.NewAnalyzeUseCase(series, analyzer.NewDefault(nil), l),
		prices:     di.ProvidePriceUseCase(cfg, qc, bars, series, m, l),
	}, nil
}

func (p *pipeline) Close() {
	_ = p.store.Close()
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
