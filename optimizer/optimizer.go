package optimizer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"quantforge/coordinator"
	"quantforge/internal/apperr"
	"quantforge/market"
	"quantforge/strategy"
	"quantforge/telemetry"
)

// Method selects how the parameter space is enumerated into combinations.
type Method string

const (
	MethodGrid        Method = "grid"
	MethodRandom      Method = "random"
	MethodWalkForward Method = "walk_forward"
)

// Config parameterizes one optimization session.
type Config struct {
	// Base is the template run configuration (initial capital, broker
	// models, sizing, drawdown control). RunID is overwritten per
	// combination/phase; every other field is shared across combinations.
	Base coordinator.Config

	StrategyName string
	Registry     *strategy.Registry
	Space        *ParamSpace

	Method     Method
	RandomN    int
	RandomSeed int64

	Objective Objective

	// Workers caps how many combinations run concurrently. <= 0 means 1
	// (sequential).
	Workers int

	// PerCombinationTimeout bounds each train or test run's wall clock. <= 0
	// means no timeout.
	PerCombinationTimeout time.Duration

	// Metrics is the optional process-wide Prometheus surface. Nil disables
	// observation entirely.
	Metrics *telemetry.Metrics
}

// Evaluation is the recorded outcome of one parameter combination.
type Evaluation struct {
	CombinationID string
	Parameters    Combination
	TrainScore    float64
	TestScore     float64
	TrainResult   coordinator.Result
	TestResult    coordinator.Result
	Err           error
}

// Result is the aggregate outcome of an optimization session: every
// evaluation sorted by descending train score, plus the best by that score.
type Result struct {
	All  []Evaluation
	Best *Evaluation
}

// Run enumerates combinations per cfg.Method and evaluates each against
// split with complete component isolation.
func Run(ctx context.Context, cfg Config, split *market.Split) (*Result, error) {
	if split.Fingerprint(market.SplitTrain) == split.Fingerprint(market.SplitTest) {
		return nil, apperr.Newf(apperr.KindData, "optimizer.Run",
			"train and test splits have identical fingerprints — refusing to evaluate on overlapping data")
	}

	combos, err := enumerate(cfg)
	if err != nil {
		return nil, err
	}
	if len(combos) == 0 {
		return nil, apperr.Newf(apperr.KindConfig, "optimizer.Run", "parameter space produced no combinations")
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	evaluations := make([]Evaluation, len(combos))
	p := pool.New().WithMaxGoroutines(workers)
	for i, combo := range combos {
		i, combo := i, combo
		p.Go(func() {
			if cfg.Metrics != nil {
				cfg.Metrics.ActiveWorkers.Inc()
				defer cfg.Metrics.ActiveWorkers.Dec()
			}
			evaluations[i] = evaluateCombination(ctx, cfg, split, combo, i)
		})
	}
	p.Wait()

	sort.SliceStable(evaluations, func(i, j int) bool {
		return evaluations[i].TrainScore > evaluations[j].TrainScore
	})

	result := &Result{All: evaluations}
	for i := range evaluations {
		if evaluations[i].Err == nil {
			result.Best = &evaluations[i]
			break
		}
	}
	return result, nil
}

func enumerate(cfg Config) ([]Combination, error) {
	switch cfg.Method {
	case MethodGrid, MethodWalkForward:
		// walk_forward reuses grid enumeration over the strategy's
		// parameter space; the sliding IS/OOS windows it adds are reported
		// separately via RunWalkForward (see walkforward.go) rather than
		// replacing per-combination train/test scoring.
		return cfg.Space.Grid(), nil
	case MethodRandom:
		n := cfg.RandomN
		if n <= 0 {
			n = 1
		}
		return cfg.Space.Random(n, cfg.RandomSeed), nil
	default:
		return nil, apperr.Newf(apperr.KindConfig, "optimizer.enumerate", "unknown method %q", cfg.Method)
	}
}

// evaluateCombination runs the full train-then-test protocol for one
// combination, in fresh, unshared component graphs.
func evaluateCombination(ctx context.Context, cfg Config, split *market.Split, combo Combination, idx int) Evaluation {
	started := time.Now()
	eval := Evaluation{CombinationID: uuid.NewString(), Parameters: combo}

	defer func() {
		if cfg.Metrics != nil {
			cfg.Metrics.ObserveCombination(time.Since(started).Seconds())
		}
	}()

	train, err := runPhase(ctx, cfg, split, combo, idx, "train", market.SplitTrain)
	if err != nil {
		eval.Err = err
		return eval
	}
	eval.TrainResult = train
	eval.TrainScore = cfg.Objective(train.Statistics)

	test, err := runPhase(ctx, cfg, split, combo, idx, "test", market.SplitTest)
	if err != nil {
		eval.Err = err
		return eval
	}
	eval.TestResult = test
	eval.TestScore = cfg.Objective(test.Statistics)

	return eval
}

// runPhase builds an entirely new strategy and component graph for one
// phase ("train" or "test") of one combination and runs it to completion.
// The RunID embeds the combination's canonical parameters, the phase, and
// the combination index, so every downstream deterministic draw (the
// broker's per-order PRNG) reproduces exactly given the same inputs.
func runPhase(ctx context.Context, cfg Config, split *market.Split, combo Combination, idx int, phase string, name market.SplitName) (coordinator.Result, error) {
	strat, err := cfg.Registry.Build(cfg.StrategyName, map[string]strategy.ParamValue(combo))
	if err != nil {
		return coordinator.Result{}, apperr.New(apperr.KindConfig, "optimizer.runPhase", err)
	}

	runCfg := cfg.Base
	runCfg.RunID = fmt.Sprintf("%s/%s/%d", combo.Canonical(), phase, idx)

	runCtx := ctx
	var cancel context.CancelFunc
	if cfg.PerCombinationTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, cfg.PerCombinationTimeout)
		defer cancel()
	}

	// A fresh Coordinator owns a fresh bus, feed, portfolio, risk manager,
	// order manager, and broker; nothing here is shared with any other
	// phase or combination. Once this function returns, co and everything
	// it owns is unreachable and reclaimable.
	co := coordinator.New(runCfg, strat, split.Series(name))
	co.SetMetrics(cfg.Metrics)
	return co.Run(runCtx, runCfg), nil
}
