// Package execution implements the order manager: it assigns order ids,
// tracks order lifecycle, forwards orders to the broker, and translates
// FILL events into TRADE_OPEN/TRADE_CLOSE events.
package execution

import (
	"github.com/google/uuid"

	"quantforge/domain"
	"quantforge/internal/apperr"
)

// Priority is the recommended handler priority for the order manager — it
// must observe FILL before the portfolio does.
const Priority = 100

// Manager assigns order ids, maintains the active-orders table, and pairs
// OPEN/CLOSE fills into round-trip trades.
type Manager struct {
	active map[string]domain.Order          // order_id -> order
	open   map[string]domain.Trade          // symbol -> the trade opened by its last OPEN fill
	errs   *apperr.Log
}

// NewManager builds an empty order manager.
func NewManager() *Manager {
	return &Manager{
		active: make(map[string]domain.Order),
		open:   make(map[string]domain.Trade),
		errs:   apperr.NewLog(),
	}
}

// Reset clears all order and trade-pairing state. Idempotent.
func (m *Manager) Reset() {
	m.active = make(map[string]domain.Order)
	m.open = make(map[string]domain.Trade)
	m.errs = apperr.NewLog()
}

// Errors returns the contract violations recorded so far (e.g. unmatched
// CLOSE fills).
func (m *Manager) Errors() *apperr.Log { return m.errs }

// Submit assigns an order_id if unset, defaults order_type to MARKET,
// marks the order PENDING, stores it in the active-orders table, and
// returns the order ready for the broker.
func (m *Manager) Submit(order domain.Order) domain.Order {
	if order.OrderID == "" {
		order.OrderID = uuid.NewString()
	}
	if order.OrderType == "" {
		order.OrderType = domain.Market
	}
	order.Status = domain.Pending
	m.active[order.OrderID] = order
	return order
}

// OnFill processes a FILL, updating the matching order to FILLED and
// returning the TRADE_OPEN or TRADE_CLOSE it produces. ok is false when the
// fill cannot be processed at all (no matching order — an error is
// recorded and the fill is dropped).
func (m *Manager) OnFill(fill domain.Fill) (trade domain.Trade, isOpen bool, ok bool) {
	order, found := m.active[fill.OrderID]
	if !found {
		m.errs.Record("execution.OnFill", apperr.Newf(apperr.KindContractViolation,
			"execution.OnFill", "fill references unknown order_id %q", fill.OrderID))
		return domain.Trade{}, false, false
	}

	order.Status = domain.Filled
	delete(m.active, fill.OrderID)

	if order.Intent == domain.IntentOpen {
		t := domain.Trade{
			TradeID:    uuid.NewString(),
			Symbol:     fill.Symbol,
			EntryTime:  fill.Timestamp,
			EntryPrice: fill.FillPrice,
			Quantity:   fill.Quantity,
			Direction:  fill.Direction,
			CommissionTotal: fill.Commission,
			RuleIDOpen: order.RuleID,
			Status:     domain.TradeOpen,
		}
		m.open[fill.Symbol] = t
		return t, true, true
	}

	// CLOSE fill.
	opened, matched := m.open[fill.Symbol]
	if !matched {
		// No matching open trade: standalone close with pnl=0, reported but
		// not fatal.
		m.errs.Record("execution.OnFill", apperr.Newf(apperr.KindContractViolation,
			"execution.OnFill", "CLOSE fill for %s has no matching open trade", fill.Symbol))
		t := domain.Trade{
			TradeID:     uuid.NewString(),
			Symbol:      fill.Symbol,
			ExitTime:    fill.Timestamp,
			ExitPrice:   fill.FillPrice,
			Quantity:    fill.Quantity,
			Direction:   fill.Direction,
			CommissionTotal: fill.Commission,
			RuleIDClose: order.RuleID,
			PnL:         decimalZero(),
			Status:      domain.TradeClosed,
		}
		return t, false, true
	}

	delete(m.open, fill.Symbol)
	opened.ExitTime = fill.Timestamp
	opened.ExitPrice = fill.FillPrice
	opened.CommissionTotal = opened.CommissionTotal.Add(fill.Commission)
	opened.RuleIDClose = order.RuleID
	opened.Status = domain.TradeClosed
	opened.PnL = pnl(opened)
	return opened, false, true
}
