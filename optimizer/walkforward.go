package optimizer

import (
	"context"
	"fmt"
	"math"
	"time"

	"quantforge/coordinator"
	"quantforge/domain"
	"quantforge/internal/apperr"
	"quantforge/market"
	"quantforge/strategy"
	"quantforge/telemetry"
)

// WindowMode selects how the in-sample window behaves as it slides.
type WindowMode string

const (
	// Rolling keeps the in-sample window length fixed and slides its start
	// forward by Step each round.
	Rolling WindowMode = "rolling"
	// Expanding keeps the in-sample window's start fixed at the series
	// start and grows its end by Step each round.
	Expanding WindowMode = "expanding"
)

// WalkForwardConfig parameterizes a rolling or expanding walk-forward
// validation over a single strategy configuration.
type WalkForwardConfig struct {
	StrategyName string
	Registry     *strategy.Registry
	Parameters   Combination
	Base         coordinator.Config

	// Window is the in-sample span; Step is both the out-of-sample span
	// and how far the window advances each round.
	Window time.Duration
	Step   time.Duration
	Mode   WindowMode

	// Metrics is the optional process-wide Prometheus surface. Nil disables
	// observation entirely.
	Metrics *telemetry.Metrics
}

// Window describes one in-sample/out-of-sample pair of a walk-forward run.
type Window struct {
	Index                int
	TrainStart, TrainEnd time.Time
	TestStart, TestEnd   time.Time
}

// WindowResult holds one window's out-of-sample outcome.
type WindowResult struct {
	Window
	Result           coordinator.Result
	AnnualizedReturn float64
}

// WalkForwardResult is the aggregate outcome of a walk-forward validation.
type WalkForwardResult struct {
	Windows []WindowResult

	// MeanOOSReturn is the mean of AnnualizedReturn across windows.
	MeanOOSReturn float64
	// WFER is the walk-forward efficiency ratio: MeanOOSReturn divided by
	// the annualized return of a single reference run over the full
	// in-sample range. Values above 0.5 are generally considered
	// deployable; below 0 means the strategy lost money out-of-sample.
	WFER float64
	// PassRate is the fraction of windows with a positive OOS return.
	PassRate float64
	// StabilityScore weights PassRate by each window's trade count, so a
	// handful of lucky near-empty windows can't dominate the score.
	StabilityScore float64
}

// RunWalkForward slides an in-sample/out-of-sample window across full per
// cfg, running one isolated train (reference) evaluation and one isolated
// out-of-sample evaluation per window.
func RunWalkForward(ctx context.Context, cfg WalkForwardConfig, full *market.Series) (*WalkForwardResult, error) {
	if cfg.Window <= 0 || cfg.Step <= 0 {
		return nil, apperr.Newf(apperr.KindConfig, "optimizer.RunWalkForward", "window and step must be positive")
	}

	start, end, ok := seriesSpan(full)
	if !ok {
		return nil, apperr.Newf(apperr.KindData, "optimizer.RunWalkForward", "series has no bars")
	}

	windows := buildWindows(start, end, cfg.Window, cfg.Step, cfg.Mode)
	if len(windows) == 0 {
		return nil, apperr.Newf(apperr.KindData, "optimizer.RunWalkForward",
			"date range too short to form a single window (need >= %v)", cfg.Window+cfg.Step)
	}

	refEnd := windows[len(windows)-1].TrainEnd
	refSeries, err := sliceRange(full, start, refEnd)
	if err != nil {
		return nil, err
	}
	refResult, err := runWindowPhase(ctx, cfg, refSeries, "reference", 0)
	if err != nil {
		return nil, err
	}
	refReturn := annualize(totalReturnFraction(refResult), start, refEnd)

	var winResults []WindowResult
	for _, w := range windows {
		oosSeries, err := sliceRange(full, w.TestStart, w.TestEnd)
		if err != nil {
			return nil, err
		}
		res, err := runWindowPhase(ctx, cfg, oosSeries, "oos", w.Index)
		if err != nil {
			continue
		}
		ann := annualize(totalReturnFraction(res), w.TestStart, w.TestEnd)
		winResults = append(winResults, WindowResult{Window: w, Result: res, AnnualizedReturn: ann})
	}
	if len(winResults) == 0 {
		return nil, apperr.Newf(apperr.KindData, "optimizer.RunWalkForward", "every out-of-sample window failed to produce a result")
	}

	result := &WalkForwardResult{Windows: winResults}
	var sumRet float64
	var positive int
	var weightedPositive, totalWeight float64
	for _, w := range winResults {
		sumRet += w.AnnualizedReturn
		if w.AnnualizedReturn > 0 {
			positive++
		}
		weight := math.Max(float64(w.Result.Statistics.TradeCount), 1)
		totalWeight += weight
		if w.AnnualizedReturn > 0 {
			weightedPositive += weight
		}
	}
	result.MeanOOSReturn = sumRet / float64(len(winResults))
	result.PassRate = float64(positive) / float64(len(winResults))
	if totalWeight > 0 {
		result.StabilityScore = weightedPositive / totalWeight
	}
	if refReturn != 0 {
		result.WFER = result.MeanOOSReturn / refReturn
	}
	return result, nil
}

// Verdict summarizes a WalkForwardResult the way a report would print it.
func Verdict(r *WalkForwardResult) string {
	switch {
	case r.WFER >= 0.7:
		return "excellent: strategy transfers to out-of-sample data well"
	case r.WFER >= 0.5:
		return "good: strategy is deployable"
	case r.WFER >= 0.0:
		return "marginal: live performance likely underperforms in-sample"
	default:
		return "fail: strategy loses money out-of-sample"
	}
}

func runWindowPhase(ctx context.Context, cfg WalkForwardConfig, series *market.Series, phase string, idx int) (coordinator.Result, error) {
	strat, err := cfg.Registry.Build(cfg.StrategyName, map[string]strategy.ParamValue(cfg.Parameters))
	if err != nil {
		return coordinator.Result{}, apperr.New(apperr.KindConfig, "optimizer.runWindowPhase", err)
	}
	runCfg := cfg.Base
	runCfg.RunID = fmt.Sprintf("%s/wf/%s/%d", cfg.Parameters.Canonical(), phase, idx)
	co := coordinator.New(runCfg, strat, series)
	co.SetMetrics(cfg.Metrics)
	return co.Run(ctx, runCfg), nil
}

func totalReturnFraction(res coordinator.Result) float64 {
	return res.Statistics.TotalReturnPct
}

// annualize converts a fractional return over [start,end) to a compound
// annual growth rate, assuming 252 trading days per year.
func annualize(ret float64, start, end time.Time) float64 {
	days := end.Sub(start).Hours() / 24
	if days <= 0 {
		return 0
	}
	years := days / 252
	if years <= 0 {
		return 0
	}
	return math.Pow(1+ret, 1/years) - 1
}

// buildWindows generates IS/OOS window pairs anchored to start.
func buildWindows(start, end time.Time, window, step time.Duration, mode WindowMode) []Window {
	var windows []Window
	idx := 0
	for {
		var trainStart time.Time
		var trainEnd time.Time
		if mode == Expanding {
			trainStart = start
			trainEnd = start.Add(window).Add(time.Duration(idx) * step)
		} else {
			trainStart = start.Add(time.Duration(idx) * step)
			trainEnd = trainStart.Add(window)
		}
		testStart := trainEnd
		testEnd := testStart.Add(step)
		if testEnd.After(end) {
			break
		}
		windows = append(windows, Window{
			Index: idx, TrainStart: trainStart, TrainEnd: trainEnd,
			TestStart: testStart, TestEnd: testEnd,
		})
		idx++
	}
	return windows
}

// seriesSpan returns the earliest and latest bar timestamp across every
// symbol in s.
func seriesSpan(s *market.Series) (start, end time.Time, ok bool) {
	for _, sym := range s.Symbols() {
		rows := s.Bars(sym)
		if len(rows) == 0 {
			continue
		}
		if !ok || rows[0].Timestamp.Before(start) {
			start = rows[0].Timestamp
		}
		if !ok || rows[len(rows)-1].Timestamp.After(end) {
			end = rows[len(rows)-1].Timestamp
		}
		ok = true
	}
	return start, end, ok
}

// sliceRange filters every symbol's bars to [from, to) and rebuilds a
// Series over the result.
func sliceRange(s *market.Series, from, to time.Time) (*market.Series, error) {
	bars := make(map[string][]domain.Bar, len(s.Symbols()))
	for _, sym := range s.Symbols() {
		var rows []domain.Bar
		for _, b := range s.Bars(sym) {
			if !b.Timestamp.Before(from) && b.Timestamp.Before(to) {
				rows = append(rows, b)
			}
		}
		bars[sym] = rows
	}
	return market.NewSeries(s.Symbols(), bars)
}
