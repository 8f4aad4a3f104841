package eventbus

import (
	"time"

	"quantforge/domain"
)

// Kind discriminates the events the bus knows how to route.
type Kind string

const (
	KindBar             Kind = "BAR"
	KindSignal          Kind = "SIGNAL"
	KindOrder           Kind = "ORDER"
	KindFill            Kind = "FILL"
	KindTradeOpen       Kind = "TRADE_OPEN"
	KindTradeClose      Kind = "TRADE_CLOSE"
	KindPortfolioUpdate Kind = "PORTFOLIO_UPDATE"
	KindBacktestStart   Kind = "BACKTEST_START"
	KindBacktestEnd     Kind = "BACKTEST_END"
)

// Event is anything the bus can dispatch. Fingerprint returns ("", false)
// when the event carries no stable identity for deduplication.
type Event interface {
	Kind() Kind
	Time() time.Time
	Fingerprint() (string, bool)
}

// BarEvent wraps a domain.Bar. Bars carry no fingerprint — every bar in a
// series is distinct by construction (one per symbol per tick).
type BarEvent struct {
	Bar domain.Bar
}

func (e BarEvent) Kind() Kind                    { return KindBar }
func (e BarEvent) Time() time.Time               { return e.Bar.Timestamp }
func (e BarEvent) Fingerprint() (string, bool)   { return "", false }

// SignalEvent wraps a domain.Signal. Fingerprint is the signal's RuleID,
// so that repeated bars producing the same crossover deduplicate.
type SignalEvent struct {
	Signal domain.Signal
}

func (e SignalEvent) Kind() Kind          { return KindSignal }
func (e SignalEvent) Time() time.Time     { return e.Signal.Timestamp }
func (e SignalEvent) Fingerprint() (string, bool) {
	if e.Signal.RuleID == "" {
		return "", false
	}
	return e.Signal.RuleID, true
}

// OrderEvent wraps a domain.Order. Fingerprint is the OrderID once assigned;
// before assignment (OrderID == "") the event carries no fingerprint.
type OrderEvent struct {
	Order domain.Order
}

func (e OrderEvent) Kind() Kind      { return KindOrder }
func (e OrderEvent) Time() time.Time { return e.Order.Timestamp }
func (e OrderEvent) Fingerprint() (string, bool) {
	if e.Order.OrderID == "" {
		return "", false
	}
	return e.Order.OrderID, true
}

// FillEvent wraps a domain.Fill. Fingerprint is the OrderID it fills plus a
// "/fill" suffix — a broker emits at most one FILL per ORDER, so this also
// dedups retries.
type FillEvent struct {
	Fill domain.Fill
}

func (e FillEvent) Kind() Kind      { return KindFill }
func (e FillEvent) Time() time.Time { return e.Fill.Timestamp }
func (e FillEvent) Fingerprint() (string, bool) {
	if e.Fill.OrderID == "" {
		return "", false
	}
	return e.Fill.OrderID + "/fill", true
}

// TradeOpenEvent announces a new round-trip trade opened by a fill.
type TradeOpenEvent struct {
	Trade domain.Trade
}

func (e TradeOpenEvent) Kind() Kind      { return KindTradeOpen }
func (e TradeOpenEvent) Time() time.Time { return e.Trade.EntryTime }
func (e TradeOpenEvent) Fingerprint() (string, bool) {
	if e.Trade.TradeID == "" {
		return "", false
	}
	return e.Trade.TradeID + "/open", true
}

// TradeCloseEvent announces a trade's closing fill.
type TradeCloseEvent struct {
	Trade domain.Trade
}

func (e TradeCloseEvent) Kind() Kind      { return KindTradeClose }
func (e TradeCloseEvent) Time() time.Time { return e.Trade.ExitTime }
func (e TradeCloseEvent) Fingerprint() (string, bool) {
	if e.Trade.TradeID == "" {
		return "", false
	}
	return e.Trade.TradeID + "/close", true
}

// PortfolioUpdateEvent is published whenever the portfolio's cash,
// positions, or equity curve changes.
type PortfolioUpdateEvent struct {
	Timestamp time.Time
	Position  domain.Position
	Equity    domain.EquityPoint
}

func (e PortfolioUpdateEvent) Kind() Kind                  { return KindPortfolioUpdate }
func (e PortfolioUpdateEvent) Time() time.Time             { return e.Timestamp }
func (e PortfolioUpdateEvent) Fingerprint() (string, bool) { return "", false }

// BacktestStartEvent marks the beginning of a run.
type BacktestStartEvent struct {
	RunID     string
	Timestamp time.Time
}

func (e BacktestStartEvent) Kind() Kind                  { return KindBacktestStart }
func (e BacktestStartEvent) Time() time.Time             { return e.Timestamp }
func (e BacktestStartEvent) Fingerprint() (string, bool) { return "", false }

// BacktestEndEvent marks the end of a run.
type BacktestEndEvent struct {
	RunID     string
	Timestamp time.Time
}

func (e BacktestEndEvent) Kind() Kind                  { return KindBacktestEnd }
func (e BacktestEndEvent) Time() time.Time             { return e.Timestamp }
func (e BacktestEndEvent) Fingerprint() (string, bool) { return "", false }

// Envelope is the {kind, timestamp, fields} wire format for persistence and
// replay. Encode/Decode live in wire.go.
type Envelope struct {
	Kind      Kind           `json:"kind"`
	Timestamp time.Time      `json:"timestamp"`
	Fields    map[string]any `json:"fields"`
}
