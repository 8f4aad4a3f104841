// Package telemetry provides the structured logging and metrics surface
// shared by the coordinator, optimizer, and cmd/backtestctl.
package telemetry

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type contextKey string

const (
	runIDKey  contextKey = "run_id"
	phaseKey  contextKey = "phase"
	symbolKey contextKey = "symbol"
)

// RunInfo carries run identifiers through a context so log lines emitted
// deep inside the pipeline (risk, execution, portfolio) can be tied back
// to the run and phase that produced them without threading a logger
// through every call.
type RunInfo struct {
	RunID  string
	Phase  string
	Symbol string
}

func WithRunInfo(ctx context.Context, info RunInfo) context.Context {
	if info.RunID != "" {
		ctx = context.WithValue(ctx, runIDKey, info.RunID)
	}
	if info.Phase != "" {
		ctx = context.WithValue(ctx, phaseKey, info.Phase)
	}
	if info.Symbol != "" {
		ctx = context.WithValue(ctx, symbolKey, info.Symbol)
	}
	return ctx
}

func RunInfoFromContext(ctx context.Context) RunInfo {
	var info RunInfo
	if v, ok := ctx.Value(runIDKey).(string); ok {
		info.RunID = v
	}
	if v, ok := ctx.Value(phaseKey).(string); ok {
		info.Phase = v
	}
	if v, ok := ctx.Value(symbolKey).(string); ok {
		info.Symbol = v
	}
	return info
}

// Configure sets the global zerolog logger's level and output writer. Call
// once from cmd/backtestctl before any run starts.
func Configure(level string, out io.Writer) error {
	if out == nil {
		out = os.Stderr
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(parsed)
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return nil
}

// ConsoleConfigure is the human-readable counterpart to Configure, meant
// for interactive terminal use rather than log aggregation.
func ConsoleConfigure(level string) error {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(parsed)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	return nil
}

// event attaches the ambient RunInfo from ctx to an in-flight zerolog event.
func event(ctx context.Context, e *zerolog.Event) *zerolog.Event {
	info := RunInfoFromContext(ctx)
	if info.RunID != "" {
		e = e.Str("run_id", info.RunID)
	}
	if info.Phase != "" {
		e = e.Str("phase", info.Phase)
	}
	if info.Symbol != "" {
		e = e.Str("symbol", info.Symbol)
	}
	return e
}

// RunStarted logs the beginning of a single backtest run.
func RunStarted(ctx context.Context, strategyID string, bars int) {
	event(ctx, log.Info()).
		Str("strategy", strategyID).
		Int("bars", bars).
		Msg("run started")
}

// RunCompleted logs the outcome of a single backtest run.
func RunCompleted(ctx context.Context, trades int, incomplete bool, duration time.Duration) {
	event(ctx, log.Info()).
		Int("trades", trades).
		Bool("incomplete", incomplete).
		Dur("duration", duration).
		Msg("run completed")
}

// HandlerError logs a recovered pipeline handler error without aborting the
// run; the event bus keeps running so one bad handler can't sink a batch.
func HandlerError(ctx context.Context, component string, err error) {
	event(ctx, log.Error()).
		Str("component", component).
		Err(err).
		Msg("handler error")
}

// OrderFilled logs a completed fill.
func OrderFilled(ctx context.Context, orderID, side string, quantity, price float64) {
	event(ctx, log.Debug()).
		Str("order_id", orderID).
		Str("side", side).
		Float64("quantity", quantity).
		Float64("price", price).
		Msg("order filled")
}

// CombinationEvaluated logs one optimizer parameter combination's outcome.
func CombinationEvaluated(ctx context.Context, combinationID, parameters string, trainScore, testScore float64, err error) {
	e := event(ctx, log.Info()).
		Str("combination_id", combinationID).
		Str("parameters", parameters).
		Float64("train_score", trainScore).
		Float64("test_score", testScore)
	if err != nil {
		e.Err(err).Msg("combination evaluation failed")
		return
	}
	e.Msg("combination evaluated")
}

// WalkForwardWindow logs one walk-forward window's out-of-sample outcome.
func WalkForwardWindow(ctx context.Context, index int, annualizedReturn float64) {
	event(ctx, log.Info()).
		Int("window", index).
		Float64("annualized_return", annualizedReturn).
		Msg("walk-forward window evaluated")
}
