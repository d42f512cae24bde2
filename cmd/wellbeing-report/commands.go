package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/screentime-wellbeing/evaluation"
	"github.com/example/screentime-wellbeing/pkg/config"
)

// app carries the flag values and the state built before any command runs.
type app struct {
	configPath  string
	verbose     bool
	dataDir     string
	outDir      string
	noCharts    bool
	metricsFile string
	redisAddr   string
	configMap   string
	namespace   string

	cfg    *config.Config
	logger *zap.Logger
	cache  evaluation.ResultCache
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "wellbeing-report",
		Short: "Analyse screen time and mental well-being survey data",
		Long: `wellbeing-report joins the demographic, screen-time and well-being
survey datasets on ID and prints screen-time averages, well-being by user
group, confidence intervals and a median-split hypothesis test.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		RunE: a.runE(),
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "YAML config file (defaults apply when absent)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&a.dataDir, "data-dir", "", "directory holding dataset1.csv, dataset2.csv and dataset3.csv")
	flags.StringVar(&a.outDir, "out", "", "directory for charts, exports and run manifests")
	flags.BoolVar(&a.noCharts, "no-charts", false, "skip PNG chart rendering")
	flags.StringVar(&a.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile after the run")
	flags.StringVar(&a.redisAddr, "redis-addr", "", "cache analysis results in Redis at this address")
	flags.StringVar(&a.configMap, "configmap", "", "read the datasets from this Kubernetes ConfigMap")
	flags.StringVar(&a.namespace, "namespace", "", "namespace of --configmap")

	root.AddCommand(
		a.analysisCmd("all", "Run every analysis"),
		a.analysisCmd("screentime", "Average screen time per activity, overall and by gender",
			evaluation.ScreenTimeComponent),
		a.analysisCmd("wellbeing", "Well-being level distribution across user groups",
			evaluation.WellBeingComponent),
		a.analysisCmd("interval", "Confidence intervals for mean screen time",
			evaluation.IntervalComponent),
		a.analysisCmd("hypothesis", "Welch t-tests of well-being by weekend screen time",
			evaluation.HypothesisComponent),
		a.verifyCmd(),
		a.serveMetricsCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger(a.verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	a.logger = logger

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	a.logger.Debug("Configuration loaded",
		zap.String("path", a.configPath),
		zap.String("dataDir", cfg.Data.Dir),
		zap.String("outDir", cfg.Output.Dir),
		zap.Float64("confidenceLevel", cfg.Analysis.ConfidenceLevel),
		zap.Float64("alpha", cfg.Analysis.SignificanceLevel))
	return nil
}

// applyFlags lets explicitly set flags win over the file and environment.
func (a *app) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.Data.Dir = a.dataDir
	}
	if flags.Changed("out") {
		cfg.Output.Dir = a.outDir
	}
	if a.noCharts {
		cfg.Output.Charts = false
	}
	if flags.Changed("metrics-file") {
		cfg.Metrics.Textfile = a.metricsFile
	}
	if flags.Changed("redis-addr") {
		cfg.Cache.RedisAddr = a.redisAddr
	}
	if flags.Changed("configmap") {
		cfg.Data.ConfigMap = a.configMap
	}
	if flags.Changed("namespace") {
		cfg.Data.Namespace = a.namespace
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

func (a *app) runE(components ...evaluation.Component) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		defer a.closeCache()
		_, err := a.runAnalysis(cmd.Context(), cmd.OutOrStdout(), components)
		return err
	}
}

func (a *app) analysisCmd(use, short string, components ...evaluation.Component) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE:  a.runE(components...),
	}
}

func (a *app) verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <run-id>",
		Short: "Re-check the artifacts recorded in a run manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.verify(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}
}

func (a *app) serveMetricsCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "serve-metrics",
		Short: "Re-run every analysis on a timer and serve /metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer a.closeCache()
			return a.serveMetrics(cmd.Context(), cmd.OutOrStdout(), interval)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", time.Hour, "time between analysis runs")
	return cmd
}
