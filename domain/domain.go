// Package domain holds the core value types of the backtest engine: bars,
// signals, orders, fills, trades, positions, and equity points. Types here
// are immutable records passed by value between pipeline stages; no type in
// this package depends on the event bus, the coordinator, or any stage
// implementation.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order or fill.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// SignalDirection is a strategy's declared directional exposure.
type SignalDirection string

const (
	Long  SignalDirection = "LONG"
	Short SignalDirection = "SHORT"
	Flat  SignalDirection = "FLAT"
)

// Side returns the Buy/Sell order side that would open a position in this
// direction. Flat has no opening side and returns ("", false).
func (d SignalDirection) Side() (Side, bool) {
	switch d {
	case Long:
		return Buy, true
	case Short:
		return Sell, true
	default:
		return "", false
	}
}

// OrderType is the execution style of an order.
type OrderType string

const (
	Market OrderType = "MARKET"
	Limit  OrderType = "LIMIT"
	Stop   OrderType = "STOP"
)

// Intent marks whether an order opens new exposure or closes existing
// exposure. It is a required discriminant, never an optional map key.
type Intent string

const (
	IntentOpen  Intent = "OPEN"
	IntentClose Intent = "CLOSE"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	Pending   OrderStatus = "PENDING"
	Filled    OrderStatus = "FILLED"
	Cancelled OrderStatus = "CANCELLED"
)

// TradeStatus is the lifecycle state of a round-trip trade.
type TradeStatus string

const (
	TradeOpen   TradeStatus = "OPEN"
	TradeClosed TradeStatus = "CLOSED"
)

// Bar is a fixed-interval OHLCV record for a symbol. Immutable once
// constructed; bar series must be time-sorted per symbol.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    int64
}

// Signal is a strategy's directional recommendation. It carries no sizing —
// that is the risk manager's job.
type Signal struct {
	Symbol     string
	Timestamp  time.Time
	Direction  SignalDirection
	Strength   float64 // in [0,1]
	StrategyID string
	RuleID     string

	// Immediate marks a signal synthesized by the coordinator itself (an
	// end-of-day or run-end forced close) rather than emitted by a
	// strategy. The order it produces fills against the last bar already
	// processed instead of waiting for a bar that may never arrive.
	Immediate bool
}

// Order is a sized instruction to buy or sell, tagged with an intent.
// OrderID is assigned by the order manager, never by the caller.
type Order struct {
	OrderID    string
	Symbol     string
	Timestamp  time.Time
	Direction  Side
	Quantity   int64
	OrderType  OrderType
	LimitPrice *decimal.Decimal
	Intent     Intent
	RuleID     string
	Status     OrderStatus

	// Immediate carries Signal.Immediate through to the broker: it fills
	// synchronously against the last processed bar rather than entering
	// the pending queue for the next one.
	Immediate bool
}

// Fill is the broker's confirmation that an order executed at a price.
// Immutable once emitted.
type Fill struct {
	OrderID    string
	Symbol     string
	Timestamp  time.Time
	Direction  Side
	Quantity   int64
	FillPrice  decimal.Decimal
	Commission decimal.Decimal
	Slippage   decimal.Decimal
}

// Trade is a round-trip pairing of an OPEN fill and a CLOSE fill. An
// unmatched OPEN fill yields a Trade with Status=TradeOpen and PnL=0.
type Trade struct {
	TradeID        string
	Symbol         string
	EntryTime      time.Time
	EntryPrice     decimal.Decimal
	ExitTime       time.Time
	ExitPrice      decimal.Decimal
	Quantity       int64
	Direction      Side
	CommissionTotal decimal.Decimal
	PnL            decimal.Decimal
	RuleIDOpen     string
	RuleIDClose    string
	Status         TradeStatus
}

// Position is the net open exposure in a symbol, derived from trades.
type Position struct {
	Symbol            string
	SignedQuantity    int64 // positive = long, negative = short, 0 = flat
	AverageEntryPrice decimal.Decimal
	RealizedPnL       decimal.Decimal
	UnrealizedPnL     decimal.Decimal
}

// IsFlat reports whether the position has no open exposure.
func (p Position) IsFlat() bool { return p.SignedQuantity == 0 }

// Direction returns the signal direction matching the position's current
// exposure (Long/Short/Flat).
func (p Position) Direction() SignalDirection {
	switch {
	case p.SignedQuantity > 0:
		return Long
	case p.SignedQuantity < 0:
		return Short
	default:
		return Flat
	}
}

// EquityPoint is one sample of the portfolio's equity curve, appended on
// each bar after mark-to-market.
type EquityPoint struct {
	Timestamp      time.Time
	Cash           decimal.Decimal
	PositionsValue decimal.Decimal
	Equity         decimal.Decimal
}
