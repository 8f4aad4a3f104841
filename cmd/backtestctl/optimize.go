package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"quantforge/config"
	"quantforge/coordinator"
	"quantforge/internal/apperr"
	"quantforge/market"
	"quantforge/optimizer"
	"quantforge/report"
	"quantforge/strategy"
	"quantforge/telemetry"
)

var (
	optimizeConfigPath    string
	optimizeParamFile     string
	optimizeMethod        string
	optimizeSkipTrainTest bool
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Search a parameter space and report the best-performing combination",
	Args:  cobra.NoArgs,
	RunE:  runOptimize,
}

func init() {
	optimizeCmd.Flags().StringVar(&optimizeConfigPath, "config", "", "path to the YAML configuration file (required)")
	optimizeCmd.Flags().StringVar(&optimizeParamFile, "param-file", "", "YAML file overriding optimization.parameter_space")
	optimizeCmd.Flags().StringVar(&optimizeMethod, "method", "", "override optimization.method: grid, random, walk_forward")
	optimizeCmd.Flags().BoolVar(&optimizeSkipTrainTest, "skip-train-test", false, "evaluate the full series once per combination instead of a train/test split")
	optimizeCmd.MarkFlagRequired("config")
}

func runOptimize(cmd *cobra.Command, args []string) error {
	if err := configureLogging(""); err != nil {
		return apperr.New(apperr.KindConfig, "main.runOptimize", err)
	}

	cfg, err := loadConfig(optimizeConfigPath)
	if err != nil {
		return err
	}

	method := cfg.Optimization.Method
	if optimizeMethod != "" {
		method = optimizeMethod
	}

	space, err := cfg.ToParamSpace()
	if err != nil {
		return apperr.New(apperr.KindConfig, "main.runOptimize", err)
	}
	if optimizeParamFile != "" {
		space, err = loadParamFile(optimizeParamFile)
		if err != nil {
			return err
		}
	}

	reg, err := buildRegistry()
	if err != nil {
		return err
	}
	objective, err := resolveObjective(cfg)
	if err != nil {
		return err
	}

	full, err := loadFullSeries(cfg)
	if err != nil {
		return apperr.New(apperr.KindData, "main.runOptimize", err)
	}

	workers := cfg.Optimization.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	base := baseRunConfig(cfg)
	sessionID := uuid.NewString()
	ctx := telemetry.WithRunInfo(context.Background(), telemetry.RunInfo{RunID: sessionID, Phase: "optimize"})
	started := time.Now()
	metrics := startMetrics(metricsAddr)

	if method == string(optimizer.MethodWalkForward) {
		return runWalkForward(ctx, cfg, reg, space, base, sessionID, full, metrics)
	}

	var result *optimizer.Result
	var trainTestLabel string
	if optimizeSkipTrainTest {
		result, err = evaluateWithoutSplit(ctx, cfg, full, reg, space, base, objective, method, metrics)
		trainTestLabel = "skipped"
	} else {
		var split *market.Split
		split, err = splitSeries(cfg, full)
		if err == nil {
			trainTestLabel = cfg.Data.TrainTestSplit.Method
			result, err = optimizer.Run(ctx, optimizer.Config{
				Base:                  base,
				StrategyName:          cfg.Strategy.Name,
				Registry:              reg,
				Space:                 space,
				Method:                optimizer.Method(method),
				RandomN:               cfg.Optimization.MaxEvaluations,
				RandomSeed:            cfg.Optimization.RandomSeed,
				Objective:             objective,
				Workers:               workers,
				PerCombinationTimeout: cfg.Optimization.MaxTime,
				Metrics:               metrics,
			}, split)
		}
	}
	if err != nil {
		return err
	}
	if result.Best == nil {
		return apperr.Newf(apperr.KindData, "main.runOptimize", "every combination failed to evaluate")
	}

	for _, eval := range result.All {
		telemetry.CombinationEvaluated(ctx, eval.CombinationID, eval.Parameters.Canonical(), eval.TrainScore, eval.TestScore, eval.Err)
	}

	allResults := make([]report.EvaluationSummary, 0, len(result.All))
	for _, eval := range result.All {
		allResults = append(allResults, report.EvaluationSummary{
			Parameters: eval.Parameters,
			TrainScore: eval.TrainScore,
			TestScore:  eval.TestScore,
		})
	}
	bestScore := result.Best.TrainScore

	doc := report.Document{
		ID:             sessionID,
		Config:         configSnapshot(cfg),
		ParameterSpace: paramSpecMap(cfg),
		BestParameters: result.Best.Parameters,
		BestScore:      &bestScore,
		TrainResults:   &result.Best.TrainResult.Statistics,
		TestResults:    &result.Best.TestResult.Statistics,
		AllResults:     allResults,
		TrainTestSplit: trainTestLabel,
		ExecutionTime:  time.Since(started),
		Timestamp:      started,
	}
	writer := report.New(cfg.Output.ResultsDir)
	dir, err := writer.Write(doc)
	if err != nil {
		return apperr.New(apperr.KindInvariant, "main.runOptimize", err)
	}

	fmt.Printf("optimization %s complete: %d combinations evaluated, best score %.4f, results written to %s\n",
		sessionID, len(result.All), bestScore, dir)
	return nil
}

// evaluateWithoutSplit implements --skip-train-test: each combination runs
// once against the full series rather than against isolated train/test
// halves. optimizer.Run refuses to run when the train and test fingerprints
// are equal, so this path evaluates directly instead of routing through it;
// TrainResult and TestResult both hold the single run, and TrainScore
// equals TestScore.
func evaluateWithoutSplit(ctx context.Context, cfg *config.Config, full *market.Series, reg *strategy.Registry, space *optimizer.ParamSpace, base coordinator.Config, objective optimizer.Objective, method string, metrics *telemetry.Metrics) (*optimizer.Result, error) {
	var combos []optimizer.Combination
	switch method {
	case string(optimizer.MethodRandom):
		n := cfg.Optimization.MaxEvaluations
		if n <= 0 {
			n = 1
		}
		combos = space.Random(n, cfg.Optimization.RandomSeed)
	default:
		combos = space.Grid()
	}
	if len(combos) == 0 {
		return nil, apperr.Newf(apperr.KindConfig, "main.evaluateWithoutSplit", "parameter space produced no combinations")
	}

	evaluations := make([]optimizer.Evaluation, len(combos))
	for i, combo := range combos {
		strat, err := reg.Build(cfg.Strategy.Name, combo)
		if err != nil {
			evaluations[i] = optimizer.Evaluation{CombinationID: uuid.NewString(), Parameters: combo, Err: err}
			continue
		}
		runCfg := base
		runCfg.RunID = fmt.Sprintf("%s/full/%d", combo.Canonical(), i)
		co := coordinator.New(runCfg, strat, full)
		co.SetMetrics(metrics)
		res := co.Run(ctx, runCfg)
		score := objective(res.Statistics)
		evaluations[i] = optimizer.Evaluation{
			CombinationID: uuid.NewString(),
			Parameters:    combo,
			TrainScore:    score,
			TestScore:     score,
			TrainResult:   res,
			TestResult:    res,
		}
	}

	result := &optimizer.Result{All: evaluations}
	for i := range evaluations {
		if evaluations[i].Err == nil && (result.Best == nil || evaluations[i].TrainScore > result.Best.TrainScore) {
			result.Best = &evaluations[i]
		}
	}
	return result, nil
}

func runWalkForward(ctx context.Context, cfg *config.Config, reg *strategy.Registry, space *optimizer.ParamSpace, base coordinator.Config, sessionID string, full *market.Series, metrics *telemetry.Metrics) error {
	combos := space.Grid()
	if len(combos) == 0 {
		return apperr.Newf(apperr.KindConfig, "main.runWalkForward", "parameter space produced no combinations")
	}

	window := cfg.Optimization.MaxTime
	if window <= 0 {
		window = 90 * 24 * time.Hour
	}
	step := window / 3
	if step <= 0 {
		step = 24 * time.Hour
	}

	var best *optimizer.WalkForwardResult
	var bestCombo optimizer.Combination
	for _, combo := range combos {
		wfCfg := optimizer.WalkForwardConfig{
			StrategyName: cfg.Strategy.Name,
			Registry:     reg,
			Parameters:   combo,
			Base:         base,
			Window:       window,
			Step:         step,
			Mode:         optimizer.Rolling,
			Metrics:      metrics,
		}
		result, err := optimizer.RunWalkForward(ctx, wfCfg, full)
		if err != nil {
			continue
		}
		for _, w := range result.Windows {
			telemetry.WalkForwardWindow(ctx, w.Index, w.AnnualizedReturn)
		}
		if best == nil || result.WFER > best.WFER {
			best = result
			bestCombo = combo
		}
	}
	if best == nil {
		return apperr.Newf(apperr.KindData, "main.runWalkForward", "every walk-forward combination failed")
	}

	fmt.Printf("walk-forward %s complete: best parameters %s, WFER=%.4f (%s)\n",
		sessionID, bestCombo.Canonical(), best.WFER, optimizer.Verdict(best))
	return nil
}

func paramSpecMap(cfg *config.Config) map[string]optimizer.ParamSpec {
	out := make(map[string]optimizer.ParamSpec, len(cfg.Optimization.ParameterSpace))
	for name, p := range cfg.Optimization.ParameterSpace {
		out[name] = optimizer.ParamSpec{
			Type:   optimizer.ParamType(p.Type),
			Min:    p.Min,
			Max:    p.Max,
			Step:   p.Step,
			Values: p.Values,
		}
	}
	return out
}

// loadParamFile reads a standalone parameter-space override file: a YAML
// document mapping parameter name to {type, min, max, step, values}, using
// the same viper decoding path as the main config.
func loadParamFile(path string) (*optimizer.ParamSpace, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, apperr.New(apperr.KindConfig, "main.loadParamFile", err)
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, apperr.New(apperr.KindConfig, "main.loadParamFile", err)
	}
	var specs map[string]config.ParamSpecConfig
	if err := v.Unmarshal(&specs); err != nil {
		return nil, apperr.New(apperr.KindConfig, "main.loadParamFile", err)
	}
	dims := make(map[string]optimizer.ParamSpec, len(specs))
	for name, s := range specs {
		dims[name] = optimizer.ParamSpec{
			Type:   optimizer.ParamType(s.Type),
			Min:    s.Min,
			Max:    s.Max,
			Step:   s.Step,
			Values: s.Values,
		}
	}
	space, err := optimizer.NewParamSpace(dims)
	if err != nil {
		return nil, apperr.New(apperr.KindConfig, "main.loadParamFile", err)
	}
	return space, nil
}
