package main

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"quantforge/config"
	"quantforge/coordinator"
	"quantforge/eventbus"
	"quantforge/internal/apperr"
	"quantforge/market"
	"quantforge/optimizer"
	"quantforge/strategy"
	"quantforge/strategy/builtin"
	"quantforge/telemetry"
)

// loadConfig reads and validates path, classifying both load and
// validation failures as KindConfig so the caller exits 1.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, apperr.New(apperr.KindConfig, "main.loadConfig", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, apperr.New(apperr.KindConfig, "main.loadConfig", err)
	}
	return cfg, nil
}

// buildRegistry installs every builtin strategy factory.
func buildRegistry() (*strategy.Registry, error) {
	reg := strategy.NewRegistry()
	if err := builtin.Register(reg); err != nil {
		return nil, apperr.New(apperr.KindConfig, "main.buildRegistry", err)
	}
	return reg, nil
}

// loadFullSeries loads every configured CSV source into one Series.
func loadFullSeries(cfg *config.Config) (*market.Series, error) {
	specs := make([]market.SourceSpec, 0, len(cfg.Data.Sources))
	for _, s := range cfg.Data.Sources {
		specs = append(specs, market.SourceSpec{
			Symbol:     s.Symbol,
			File:       s.File,
			DateColumn: s.DateColumn,
			DateFormat: s.DateFormat,
		})
	}
	return market.LoadSeries(specs)
}

// splitSeries partitions full per cfg.Data.TrainTestSplit.
func splitSeries(cfg *config.Config, full *market.Series) (*market.Split, error) {
	split := cfg.Data.TrainTestSplit
	maxBars := cfg.Backtest.MaxBars
	splitter := market.NewSplitter(full)

	switch split.Method {
	case "ratio":
		return splitter.Ratio(split.TrainRatio, split.TestRatio, maxBars)
	case "date":
		t, err := time.Parse("2006-01-02", split.SplitDate)
		if err != nil {
			return nil, apperr.Newf(apperr.KindConfig, "main.splitSeries",
				"data.train_test_split.split_date: %v", err)
		}
		return splitter.Date(t, maxBars)
	case "fixed":
		return splitter.Fixed(split.TrainPeriods, split.TestPeriods, maxBars)
	default:
		return nil, apperr.Newf(apperr.KindConfig, "main.splitSeries",
			"data.train_test_split.method must be one of ratio, date, fixed; got %q", split.Method)
	}
}

// baseRunConfig builds the coordinator.Config fields shared across every
// phase and combination of a session rooted in cfg. RunID is left for the
// caller to fill in per run.
func baseRunConfig(cfg *config.Config) coordinator.Config {
	return coordinator.Config{
		InitialCapital: cfg.Backtest.InitialCapital,
		CloseOnEOD:     cfg.Backtest.ClosePositionsEOD,
		Slippage:       cfg.ToSlippageConfig(),
		Commission:     cfg.ToCommissionConfig(),
		Sizing:         cfg.ToSizingConfig(),
		Drawdown:       cfg.ToDrawdownControl(),
		ATRPeriod:      cfg.Risk.ATRPeriod,
		DedupMode:      eventbus.DedupByFingerprint,
	}
}

// resolveObjective maps the optimization section's named objective to a
// built-in optimizer.Objective. "combined" is rejected here rather than at
// config load time, since it needs per-objective weights this
// configuration format does not express.
func resolveObjective(cfg *config.Config) (optimizer.Objective, error) {
	name := optimizer.Name(cfg.Optimization.Objective)
	if name == "combined" {
		return nil, apperr.Newf(apperr.KindConfig, "main.resolveObjective",
			"objective \"combined\" requires per-objective weights, which this configuration format does not yet express")
	}
	obj, ok := optimizer.Builtin(name)
	if !ok {
		return nil, apperr.Newf(apperr.KindConfig, "main.resolveObjective", "unknown objective %q", name)
	}
	return obj, nil
}

// logLevelOrDefault falls back to "info" when level is empty.
func logLevelOrDefault(level string) string {
	if level == "" {
		return "info"
	}
	return level
}

// configureLogging wires --log-level into the console logger used
// interactively by the CLI.
func configureLogging(level string) error {
	return telemetry.ConsoleConfigure(logLevelOrDefault(level))
}

// startMetrics builds the process-wide Prometheus surface and, if addr is
// non-empty, serves it at /metrics on a background listener that outlives
// any single run or combination. The listener failing after startup is
// logged, not fatal — a metrics outage should never take down a backtest.
func startMetrics(addr string) *telemetry.Metrics {
	m := telemetry.NewMetrics()
	if addr == "" {
		return m
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error().Err(err).Str("addr", addr).Msg("metrics listener stopped")
		}
	}()
	return m
}
