package risk

import (
	"fmt"

	"quantforge/domain"
	"quantforge/eventbus"
	"quantforge/internal/apperr"
)

// Priority is the recommended handler priority for the risk manager.
const Priority = 40

// Manager translates signals into sized orders, enforces the single-
// position constraint per symbol, and applies drawdown control. It holds no
// reference to the portfolio — its position mirror is fed entirely by
// PORTFOLIO_UPDATE events.
type Manager struct {
	sizing   SizingConfig
	drawdown DrawdownControl
	atrPeriod int

	positions map[string]domain.Position
	equity    float64
	drawdownFrac float64
	peakEquity   float64
	lastClose    map[string]float64

	atr *atrTracker

	errs *apperr.Log
}

// NewManager builds a Manager. atrPeriod is only consulted when sizing.Method
// is SizingVolatility.
func NewManager(sizing SizingConfig, drawdown DrawdownControl, atrPeriod int) *Manager {
	if atrPeriod <= 0 {
		atrPeriod = 14
	}
	return &Manager{
		sizing: sizing, drawdown: drawdown, atrPeriod: atrPeriod,
		positions: make(map[string]domain.Position),
		lastClose: make(map[string]float64),
		atr:       newATRTracker(atrPeriod),
		errs:      apperr.NewLog(),
	}
}

// Reset clears all position-mirror and indicator state. Idempotent.
func (m *Manager) Reset() {
	m.positions = make(map[string]domain.Position)
	m.equity = 0
	m.drawdownFrac = 0
	m.peakEquity = 0
	m.lastClose = make(map[string]float64)
	m.atr.reset()
	m.errs = apperr.NewLog()
}

// Errors returns the violations and structural errors recorded so far.
func (m *Manager) Errors() *apperr.Log { return m.errs }

// OnPortfolioUpdate refreshes the read-only position mirror and drawdown
// estimate from a PORTFOLIO_UPDATE event.
func (m *Manager) OnPortfolioUpdate(ev eventbus.PortfolioUpdateEvent) {
	m.positions[ev.Position.Symbol] = ev.Position

	eq, _ := ev.Equity.Equity.Float64()
	m.equity = eq
	if eq > m.peakEquity {
		m.peakEquity = eq
	}
	if m.peakEquity > 0 {
		m.drawdownFrac = (m.peakEquity - eq) / m.peakEquity
	}
}

// OnBar feeds the per-symbol ATR tracker used by the volatility sizing
// policy.
func (m *Manager) OnBar(bar domain.Bar) {
	high, _ := bar.High.Float64()
	low, _ := bar.Low.Float64()
	closePx, _ := bar.Close.Float64()
	m.atr.update(bar.Symbol, high, low, closePx)
	m.lastClose[bar.Symbol] = closePx
}

// OnSignal applies the single-position constraint and sizing policy to sig,
// returning zero, one, or two orders (a CLOSE followed by an OPEN on a
// direction reversal). Sizing uses the symbol's last observed bar close as
// the reference price.
func (m *Manager) OnSignal(sig domain.Signal) []domain.Order {
	pos := m.positions[sig.Symbol]
	markPrice := m.lastClose[sig.Symbol]

	switch {
	case pos.IsFlat() && sig.Direction != domain.Flat:
		order, ok := m.sizedOpen(sig, markPrice)
		if !ok {
			return nil
		}
		return []domain.Order{order}

	case pos.Direction() == sig.Direction:
		return nil // suppress: already positioned this way

	case sig.Direction == domain.Flat:
		return []domain.Order{m.closeOrder(sig, pos)}

	default: // opposing direction: close then open
		closeOrd := m.closeOrder(sig, pos)
		openOrd, ok := m.sizedOpen(sig, markPrice)
		if !ok {
			return []domain.Order{closeOrd}
		}
		return []domain.Order{closeOrd, openOrd}
	}
}

func (m *Manager) sizedOpen(sig domain.Signal, markPrice float64) (domain.Order, bool) {
	factor, halted := m.drawdown.scale(m.drawdownFrac)
	if halted {
		m.errs.Record("risk.OnSignal", Violation{
			Code: ViolationDrawdownHalt, Symbol: sig.Symbol,
			Message: fmt.Sprintf("drawdown %.4f exceeds cutoff", m.drawdownFrac),
		})
		return domain.Order{}, false
	}

	qty := int64(float64(m.sizing.quantity(m.equity, markPrice, m.atr.value(sig.Symbol))) * factor)
	if qty <= 0 {
		m.errs.Record("risk.OnSignal", Violation{
			Code: ViolationZeroQuantity, Symbol: sig.Symbol,
			Message: "computed order quantity is zero",
		})
		return domain.Order{}, false
	}

	side, _ := sig.Direction.Side()
	return domain.Order{
		Symbol:    sig.Symbol,
		Timestamp: sig.Timestamp,
		Direction: side,
		Quantity:  qty,
		OrderType: domain.Market,
		Intent:    domain.IntentOpen,
		RuleID:    sig.RuleID + "/OPEN",
		Status:    domain.Pending,
	}, true
}

func (m *Manager) closeOrder(sig domain.Signal, pos domain.Position) domain.Order {
	side := domain.Sell
	if pos.SignedQuantity < 0 {
		side = domain.Buy
	}
	qty := pos.SignedQuantity
	if qty < 0 {
		qty = -qty
	}
	return domain.Order{
		Symbol:    sig.Symbol,
		Timestamp: sig.Timestamp,
		Direction: side,
		Quantity:  qty,
		OrderType: domain.Market,
		Intent:    domain.IntentClose,
		RuleID:    sig.RuleID + "/CLOSE",
		Status:    domain.Pending,
		Immediate: sig.Immediate,
	}
}
