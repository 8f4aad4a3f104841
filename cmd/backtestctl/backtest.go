package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"quantforge/coordinator"
	"quantforge/internal/apperr"
	"quantforge/report"
	"quantforge/telemetry"
)

var (
	backtestConfigPath string
	backtestOutputDir  string
	backtestLogLevel   string
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a single backtest over one strategy and parameter set",
	Args:  cobra.NoArgs,
	RunE:  runBacktest,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestConfigPath, "config", "", "path to the YAML configuration file (required)")
	backtestCmd.Flags().StringVar(&backtestOutputDir, "output-dir", "", "override output.results_dir from the config")
	backtestCmd.Flags().StringVar(&backtestLogLevel, "log-level", "info", "log level: debug, info, warn, error")
	backtestCmd.MarkFlagRequired("config")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	if err := configureLogging(backtestLogLevel); err != nil {
		return apperr.New(apperr.KindConfig, "main.runBacktest", err)
	}

	cfg, err := loadConfig(backtestConfigPath)
	if err != nil {
		return err
	}
	outputDir := cfg.Output.ResultsDir
	if backtestOutputDir != "" {
		outputDir = backtestOutputDir
	}

	reg, err := buildRegistry()
	if err != nil {
		return err
	}
	strat, err := reg.Build(cfg.Strategy.Name, cfg.StrategyParams())
	if err != nil {
		return apperr.New(apperr.KindConfig, "main.runBacktest", err)
	}

	full, err := loadFullSeries(cfg)
	if err != nil {
		return apperr.New(apperr.KindData, "main.runBacktest", err)
	}

	runCfg := baseRunConfig(cfg)
	runCfg.RunID = uuid.NewString()

	ctx := telemetry.WithRunInfo(context.Background(), telemetry.RunInfo{RunID: runCfg.RunID, Phase: "backtest"})
	telemetry.RunStarted(ctx, cfg.Strategy.Name, full.Len())

	started := time.Now()
	co := coordinator.New(runCfg, strat, full)
	co.SetMetrics(startMetrics(metricsAddr))
	result := co.Run(ctx, runCfg)
	telemetry.RunCompleted(ctx, len(result.Trades), result.Incomplete, time.Since(started))

	doc := report.Document{
		ID:            result.RunID,
		Config:        configSnapshot(cfg),
		Statistics:    result.Statistics,
		Trades:        result.Trades,
		EquityCurve:   result.EquityCurve,
		Errors:        result.Errors,
		ExecutionTime: time.Duration(result.DurationMs) * time.Millisecond,
		Timestamp:     started,
	}
	writer := report.New(outputDir)
	dir, err := writer.Write(doc)
	if err != nil {
		return apperr.New(apperr.KindInvariant, "main.runBacktest", err)
	}

	fmt.Printf("run %s complete: %d trades, consistency=%v, results written to %s\n",
		result.RunID, len(result.Trades), result.Consistency, dir)
	return nil
}

// configSnapshot renders cfg as a plain map for embedding in results.json,
// so a run's output records exactly what configuration produced it.
func configSnapshot(cfg interface{}) map[string]any {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
