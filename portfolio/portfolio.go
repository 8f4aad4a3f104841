// Package portfolio maintains cash, open positions, the trade blotter, and
// the equity curve for one run, and answers the reporting queries the
// coordinator and optimizer read from at the end of a run.
package portfolio

import (
	"github.com/shopspring/decimal"

	"quantforge/domain"
	"quantforge/internal/apperr"
)

// Priority is the recommended handler priority for the portfolio — it must
// mark-to-market before strategy sees the bar.
const Priority = 90

// Portfolio tracks cash, positions, closed/open trades, and the equity
// curve. It is driven entirely by TRADE_OPEN, TRADE_CLOSE, and BAR events.
type Portfolio struct {
	cash      decimal.Decimal
	positions map[string]domain.Position
	trades    []domain.Trade
	curve     []domain.EquityPoint

	initialCapital decimal.Decimal
}

// New builds a Portfolio seeded with initialCapital.
func New(initialCapital decimal.Decimal) *Portfolio {
	return &Portfolio{
		cash:           initialCapital,
		initialCapital: initialCapital,
		positions:      make(map[string]domain.Position),
	}
}

// Reset re-seeds the portfolio with initialCapital and clears all state.
// Idempotent.
func (p *Portfolio) Reset() {
	p.cash = p.initialCapital
	p.positions = make(map[string]domain.Position)
	p.trades = nil
	p.curve = nil
}

// OnTradeOpen debits cash by the entry notional plus commission for a long
// open (a short open instead credits the notional less commission), opens
// or augments the symbol's position, and appends an OPEN trade record.
func (p *Portfolio) OnTradeOpen(trade domain.Trade) {
	notional := trade.EntryPrice.Mul(decimal.NewFromInt(trade.Quantity))
	if trade.Direction == domain.Sell {
		// Opening a short sells the shares, crediting the proceeds.
		p.cash = p.cash.Add(notional).Sub(trade.CommissionTotal)
	} else {
		p.cash = p.cash.Sub(notional).Sub(trade.CommissionTotal)
	}

	signed := trade.Quantity
	if trade.Direction == domain.Sell {
		signed = -signed
	}
	pos := p.positions[trade.Symbol]
	pos.Symbol = trade.Symbol
	pos.AverageEntryPrice = trade.EntryPrice
	pos.SignedQuantity += signed
	p.positions[trade.Symbol] = pos

	p.trades = append(p.trades, trade)
}

// OnTradeClose increments cash by the exit notional minus commission for a
// long close (mirrored for short), retires the position, and replaces the
// matching OPEN trade record with its CLOSED counterpart.
func (p *Portfolio) OnTradeClose(trade domain.Trade) {
	notional := trade.ExitPrice.Mul(decimal.NewFromInt(trade.Quantity))
	if trade.Direction == domain.Sell {
		// The CLOSE fill's own direction is the exit side; a long position is
		// closed by a SELL, crediting proceeds.
		p.cash = p.cash.Add(notional).Sub(trade.CommissionTotal)
	} else {
		// A short position is closed by a BUY, debiting the buy-back cost.
		p.cash = p.cash.Sub(notional).Sub(trade.CommissionTotal)
	}

	delete(p.positions, trade.Symbol)
	p.replaceOpenTrade(trade)
}

func (p *Portfolio) replaceOpenTrade(closed domain.Trade) {
	for i := len(p.trades) - 1; i >= 0; i-- {
		if p.trades[i].Symbol == closed.Symbol && p.trades[i].Status == domain.TradeOpen {
			p.trades[i] = closed
			return
		}
	}
	p.trades = append(p.trades, closed)
}

// OnBar marks open positions to market using the bar's close, recomputes
// equity, and appends a new equity point. Returns the fresh equity point
// and position (zero Position if the symbol is flat) so the caller can
// publish PORTFOLIO_UPDATE.
func (p *Portfolio) OnBar(bar domain.Bar) (domain.EquityPoint, domain.Position) {
	pos, held := p.positions[bar.Symbol]
	if held {
		unrealized := bar.Close.Sub(pos.AverageEntryPrice).Mul(decimal.NewFromInt(pos.SignedQuantity))
		pos.UnrealizedPnL = unrealized
		p.positions[bar.Symbol] = pos
	}

	positionsValue := decimal.Zero
	for _, pp := range p.positions {
		positionsValue = positionsValue.Add(pp.AverageEntryPrice.Mul(decimal.NewFromInt(pp.SignedQuantity))).Add(pp.UnrealizedPnL)
	}

	point := domain.EquityPoint{
		Timestamp:      bar.Timestamp,
		Cash:           p.cash,
		PositionsValue: positionsValue,
		Equity:         p.cash.Add(positionsValue),
	}
	p.curve = append(p.curve, point)

	return point, p.positions[bar.Symbol]
}

// RecentTrades returns the trade blotter. When includeOpen is false, trades
// with Status=OPEN are omitted.
func (p *Portfolio) RecentTrades(includeOpen bool) []domain.Trade {
	if includeOpen {
		out := make([]domain.Trade, len(p.trades))
		copy(out, p.trades)
		return out
	}
	out := make([]domain.Trade, 0, len(p.trades))
	for _, t := range p.trades {
		if t.Status == domain.TradeClosed {
			out = append(out, t)
		}
	}
	return out
}

// EquityCurve returns the full sequence of equity points recorded so far.
func (p *Portfolio) EquityCurve() []domain.EquityPoint {
	out := make([]domain.EquityPoint, len(p.curve))
	copy(out, p.curve)
	return out
}

// PositionFor returns the current position for symbol — a zero-valued,
// flat Position (with Symbol set) if none is open.
func (p *Portfolio) PositionFor(symbol string) domain.Position {
	pos, ok := p.positions[symbol]
	if !ok {
		return domain.Position{Symbol: symbol}
	}
	return pos
}

// Positions returns a snapshot of all currently open positions.
func (p *Portfolio) Positions() []domain.Position {
	out := make([]domain.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, pos)
	}
	return out
}

// Equity returns the most recent equity point, or a zero-valued point
// seeded at InitialCapital if no bar has been processed yet.
func (p *Portfolio) Equity() domain.EquityPoint {
	if len(p.curve) == 0 {
		return domain.EquityPoint{Cash: p.cash, Equity: p.cash}
	}
	return p.curve[len(p.curve)-1]
}

// CheckConsistency verifies that the equity change over the run equals the
// sum of closed-trade PnL plus any remaining unrealized PnL, within a
// one-cent tolerance.
func (p *Portfolio) CheckConsistency() (ok bool, err error) {
	if len(p.curve) == 0 {
		return true, nil
	}
	equityChange := p.curve[len(p.curve)-1].Equity.Sub(p.initialCapital)

	var pnlSum decimal.Decimal
	for _, t := range p.trades {
		pnlSum = pnlSum.Add(t.PnL)
	}
	for _, pos := range p.positions {
		pnlSum = pnlSum.Add(pos.UnrealizedPnL)
	}

	diff := equityChange.Sub(pnlSum).Abs()
	tolerance := decimal.NewFromFloat(0.01)
	if diff.GreaterThan(tolerance) {
		return false, apperr.Newf(apperr.KindInvariant, "portfolio.CheckConsistency",
			"equity change %s does not match trade pnl sum %s (diff %s)", equityChange, pnlSum, diff)
	}
	return true, nil
}

// Statistics summarizes the run's trade blotter.
type Statistics struct {
	TradeCount    int
	WinRate       float64
	ProfitFactor  float64
	Sharpe        float64
	MaxDrawdown   float64
	Expectancy    float64
	AvgRMultiple  float64
	TotalReturn   float64
	TotalReturnPct float64
}

// ComputeStatistics derives Statistics from the closed trade blotter and
// equity curve. Sharpe is annualized assuming one bar per trading day
// (sqrt(252)), mirroring the simplified convention the corpus uses
// elsewhere for daily-bar strategies.
func (p *Portfolio) ComputeStatistics() Statistics {
	closed := p.RecentTrades(false)
	stats := Statistics{TradeCount: len(closed)}
	if len(closed) == 0 {
		return stats
	}

	var totalWin, totalLoss, totalR float64
	wins := 0
	for _, t := range closed {
		pnl, _ := t.PnL.Float64()
		if pnl > 0 {
			wins++
			totalWin += pnl
		} else if pnl < 0 {
			totalLoss += -pnl
		}
		totalR += rMultiple(t)
	}

	stats.WinRate = float64(wins) / float64(len(closed))
	stats.AvgRMultiple = totalR / float64(len(closed))
	stats.Expectancy = (totalWin - totalLoss) / float64(len(closed))
	if totalLoss > 0 {
		stats.ProfitFactor = totalWin / totalLoss
	}
	stats.MaxDrawdown = p.maxDrawdown()
	stats.Sharpe = p.sharpe()

	if !p.initialCapital.IsZero() {
		finalEquity := p.Equity().Equity
		totalReturn := finalEquity.Sub(p.initialCapital)
		tr, _ := totalReturn.Float64()
		stats.TotalReturn = tr
		pct, _ := totalReturn.Div(p.initialCapital).Float64()
		stats.TotalReturnPct = pct
	}
	return stats
}

// rMultiple divides a trade's realized PnL by the initial notional at risk.
// With no stop distance tracked on Trade itself, the denominator is the
// entry notional — a coarse proxy, adequate for ranking but not a precise
// risk-unit R-multiple.
func rMultiple(t domain.Trade) float64 {
	entryNotional, _ := t.EntryPrice.Mul(decimal.NewFromInt(t.Quantity)).Float64()
	if entryNotional == 0 {
		return 0
	}
	pnl, _ := t.PnL.Float64()
	return pnl / entryNotional
}

func (p *Portfolio) maxDrawdown() float64 {
	if len(p.curve) == 0 {
		return 0
	}
	peak, _ := p.curve[0].Equity.Float64()
	maxDD := 0.0
	for _, pt := range p.curve {
		eq, _ := pt.Equity.Float64()
		if eq > peak {
			peak = eq
		}
		if peak > 0 {
			if dd := (peak - eq) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

func (p *Portfolio) sharpe() float64 {
	if len(p.curve) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(p.curve)-1)
	for i := 1; i < len(p.curve); i++ {
		prev, _ := p.curve[i-1].Equity.Float64()
		cur, _ := p.curve[i].Equity.Float64()
		if prev == 0 {
			continue
		}
		returns = append(returns, (cur-prev)/prev)
	}
	mean, stdDev := meanStdDev(returns)
	if stdDev == 0 {
		return 0
	}
	return (mean / stdDev) * 15.8745078664 // sqrt(252), annualizing daily-bar returns
}

func meanStdDev(values []float64) (mean, stdDev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, sqrt(variance)
}

func sqrt(x float64) float64 {
	if x <= 0 {
		return 0
	}
	z := x
	for i := 0; i < 30; i++ {
		z -= (z*z - x) / (2 * z)
	}
	return z
}
