// Package coordinator wires a fresh event bus and pipeline components for
// one backtest run, drives the bar loop, and assembles the final result.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"quantforge/broker"
	"quantforge/domain"
	"quantforge/eventbus"
	"quantforge/execution"
	"quantforge/internal/apperr"
	"quantforge/market"
	"quantforge/portfolio"
	"quantforge/risk"
	"quantforge/strategy"
	"quantforge/telemetry"
)

// Priorities give each pipeline stage its dispatch order on the bus (higher
// runs earlier). On BAR the broker releases pending fills first, then the
// portfolio marks to market, then the strategy emits signals and risk sizes
// them into orders; the order manager handles ORDER and FILL events ahead of
// every other subscriber.
const (
	PriorityOrderManager = execution.Priority
	PriorityBroker       = broker.Priority
	PriorityPortfolio    = portfolio.Priority
	PriorityStrategy     = strategy.Priority
	PriorityRisk         = risk.Priority
)

// Config parameterizes one run. The caller selects which split (train or
// test) to run over before constructing the Coordinator; Config only
// carries the parameters a single run needs internally.
type Config struct {
	RunID          string
	InitialCapital decimal.Decimal
	CloseOnEOD     bool
	Slippage       broker.SlippageConfig
	Commission     broker.CommissionConfig
	Sizing         risk.SizingConfig
	Drawdown       risk.DrawdownControl
	ATRPeriod      int
	DedupMode      eventbus.DedupMode
}

// Result is the outcome of a single run.
type Result struct {
	RunID       string
	Trades      []domain.Trade
	EquityCurve []domain.EquityPoint
	Statistics  portfolio.Statistics
	Consistency bool
	Incomplete  bool
	Errors      []apperr.LogEntry
	DurationMs  int64
}

// Coordinator owns one run's fully isolated component graph: no field is
// shared across runs — construct a fresh Coordinator per combination so
// that concurrent evaluations never observe each other's state.
type Coordinator struct {
	bus       *eventbus.Bus
	feed      *market.Feed
	port      *portfolio.Portfolio
	riskMgr   *risk.Manager
	orderMgr  *execution.Manager
	brokerImp *broker.Broker
	strat     strategy.Strategy

	metrics *telemetry.Metrics
}

// New builds a fresh component graph over split and registers every
// component at its pipeline-stage priority.
func New(cfg Config, strat strategy.Strategy, split *market.Series) *Coordinator {
	bus := eventbus.New(cfg.DedupMode)
	feed := market.NewFeed(split)
	port := portfolio.New(cfg.InitialCapital)
	riskMgr := risk.NewManager(cfg.Sizing, cfg.Drawdown, cfg.ATRPeriod)
	orderMgr := execution.NewManager()
	brokerImp := broker.NewBroker(cfg.Slippage, cfg.Commission, cfg.RunID)

	return &Coordinator{
		bus: bus, feed: feed, port: port,
		riskMgr: riskMgr, orderMgr: orderMgr, brokerImp: brokerImp, strat: strat,
	}
}

// SetMetrics attaches the process-wide Prometheus surface so this run's bars,
// fills, equity, and handler errors are observed. Optional — a Coordinator
// with no metrics attached runs identically, just unobserved.
func (c *Coordinator) SetMetrics(m *telemetry.Metrics) { c.metrics = m }

// Run drives the bar loop to completion (until every symbol's feed is
// exhausted, or ctx is cancelled), then assembles the final Result.
func (c *Coordinator) Run(ctx context.Context, cfg Config) (result Result) {
	started := time.Now()
	result.RunID = cfg.RunID

	defer func() {
		if r := recover(); r != nil {
			c.bus.Errors().Record("coordinator.Run", apperr.Newf(apperr.KindContractViolation,
				"coordinator.Run", "panic: %v", r))
			result.Incomplete = true
		}
		result.DurationMs = time.Since(started).Milliseconds()
		result.Trades = c.port.RecentTrades(true)
		result.EquityCurve = c.port.EquityCurve()
		result.Statistics = c.port.ComputeStatistics()
		ok, err := c.port.CheckConsistency()
		result.Consistency = ok && !result.Incomplete
		if err != nil {
			c.bus.Errors().Record("coordinator.Run", err)
		}
		result.Errors = c.bus.Errors().Entries()
	}()

	runCtx := telemetry.WithRunInfo(ctx, telemetry.RunInfo{RunID: cfg.RunID})
	c.reset(runCtx, cfg)
	c.bus.Publish(eventbus.BacktestStartEvent{RunID: cfg.RunID, Timestamp: time.Now()})

	lastBar := make(map[string]domain.Bar)
	eodSeq := 0

	for {
		if err := ctx.Err(); err != nil {
			c.bus.Errors().Record("coordinator.Run", apperr.New(apperr.KindTimeout, "coordinator.Run", err))
			result.Incomplete = true
			break
		}

		bars, ok := c.feed.NextRound()
		if !ok {
			break
		}

		for _, bar := range bars {
			if cfg.CloseOnEOD {
				if prev, seen := lastBar[bar.Symbol]; seen && !sameDate(prev.Timestamp, bar.Timestamp) {
					eodSeq++
					c.closeIfOpen(bar.Symbol, prev, fmt.Sprintf("%s/EOD/%d", bar.Symbol, eodSeq))
				}
			}

			c.bus.Publish(eventbus.BarEvent{Bar: bar})
			lastBar[bar.Symbol] = bar
			if c.metrics != nil {
				c.metrics.BarsProcessed.Inc()
			}
		}
	}

	c.forceCloseRemaining(lastBar)
	c.bus.Publish(eventbus.BacktestEndEvent{RunID: cfg.RunID, Timestamp: time.Now()})

	if c.metrics != nil {
		c.metrics.ObserveRun(result.Incomplete, time.Since(started).Seconds())
	}

	return result
}

func (c *Coordinator) reset(ctx context.Context, cfg Config) {
	c.bus.Reset()
	c.feed.Reset()
	c.port.Reset()
	c.riskMgr.Reset()
	c.orderMgr.Reset()
	c.brokerImp.Reset()
	c.strat.Reset()

	strategy.Register(c.bus, PriorityStrategy, c.strat)
	risk.Register(c.bus, PriorityRisk, c.riskMgr)
	execution.Register(c.bus, PriorityOrderManager, c.orderMgr, c.brokerImp)
	broker.Register(c.bus, PriorityBroker, c.brokerImp)
	portfolio.Register(c.bus, PriorityPortfolio, c.port)

	c.bus.SetErrorHook(func(kind eventbus.Kind, err error) {
		telemetry.HandlerError(ctx, string(kind), err)
		if c.metrics != nil {
			c.metrics.HandlerErrors.WithLabelValues(string(kind)).Inc()
		}
	})

	c.bus.Subscribe(eventbus.KindFill, PriorityPortfolio, func(ev eventbus.Event) error {
		fill := ev.(eventbus.FillEvent).Fill
		price, _ := fill.FillPrice.Float64()
		telemetry.OrderFilled(ctx, fill.OrderID, string(fill.Direction), float64(fill.Quantity), price)
		if c.metrics != nil {
			c.metrics.OrdersFilled.WithLabelValues(string(fill.Direction)).Inc()
		}
		return nil
	})

	if c.metrics != nil {
		c.bus.Subscribe(eventbus.KindPortfolioUpdate, PriorityPortfolio, func(ev eventbus.Event) error {
			eq, _ := ev.(eventbus.PortfolioUpdateEvent).Equity.Equity.Float64()
			c.metrics.Equity.Set(eq)
			return nil
		})
	}
}

// closeIfOpen synthesizes an immediate FLAT signal for symbol's open
// position, if any, to close it against bar's close rather than waiting on
// a bar that may never arrive.
func (c *Coordinator) closeIfOpen(symbol string, bar domain.Bar, ruleID string) {
	pos := c.port.PositionFor(symbol)
	if pos.IsFlat() {
		return
	}
	c.bus.Publish(eventbus.SignalEvent{Signal: domain.Signal{
		Symbol: symbol, Timestamp: bar.Timestamp, Direction: domain.Flat, RuleID: ruleID, Immediate: true,
	}})
}

// forceCloseRemaining synthesizes a CLOSE signal for every position still
// open at run end, filling against each symbol's own last processed bar (in
// feed symbol order, for a deterministic trade list), so that every trade
// becomes a round-trip unless the caller asked to leave positions open.
func (c *Coordinator) forceCloseRemaining(lastBar map[string]domain.Bar) {
	for _, sym := range c.feed.Symbols() {
		bar, seen := lastBar[sym]
		if !seen {
			continue
		}
		c.closeIfOpen(sym, bar, fmt.Sprintf("%s/FORCE_CLOSE", sym))
	}
}

func sameDate(a, b time.Time) bool {
	ya, ma, da := a.Date()
	yb, mb, db := b.Date()
	return ya == yb && ma == mb && da == db
}
