package execution

import (
	"github.com/shopspring/decimal"

	"quantforge/domain"
)

// pnl computes a closed trade's realized profit: quantity * (exit - entry) *
// sign - commission_total, where sign is +1 for a long (opened by a BUY) and
// -1 for a short (opened by a SELL).
func pnl(t domain.Trade) decimal.Decimal {
	sign := decimal.NewFromInt(1)
	if t.Direction == domain.Sell {
		sign = decimal.NewFromInt(-1)
	}
	qty := decimal.NewFromInt(t.Quantity)
	spread := t.ExitPrice.Sub(t.EntryPrice)
	return qty.Mul(spread).Mul(sign).Sub(t.CommissionTotal)
}

func decimalZero() decimal.Decimal { return decimal.Zero }
