// Package risk implements the Risk Manager / Position Manager: translating
// SIGNAL events into sized ORDER events, enforcing the single-position
// constraint, and applying drawdown control.
package risk

import "quantforge/internal/apperr"

// SizingMethod selects the position-sizing formula.
type SizingMethod string

const (
	SizingFixed         SizingMethod = "fixed"
	SizingPercentEquity SizingMethod = "percent_equity"
	SizingPercentRisk   SizingMethod = "percent_risk"
	SizingVolatility    SizingMethod = "volatility"
)

// SizingConfig configures the active sizing method. Only the fields the
// chosen Method reads are required; others are ignored.
type SizingConfig struct {
	Method SizingMethod

	FixedQuantity int64 // fixed

	EquityPercent float64 // percent_equity: fraction of equity to deploy

	RiskPercent float64 // percent_risk, volatility: fraction of equity at risk
	StopPercent float64 // percent_risk: stop distance as a fraction of price
	ATRMultiple float64 // volatility: stop distance expressed in ATR multiples
}

// Validate rejects a SizingConfig with an unrecognized method or a
// parameter the method needs but that was left at its zero value.
func (c SizingConfig) Validate() error {
	switch c.Method {
	case SizingFixed:
		if c.FixedQuantity <= 0 {
			return apperr.Newf(apperr.KindConfig, "risk.SizingConfig.Validate", "fixed_quantity must be > 0")
		}
	case SizingPercentEquity:
		if c.EquityPercent <= 0 {
			return apperr.Newf(apperr.KindConfig, "risk.SizingConfig.Validate", "equity_percent must be > 0")
		}
	case SizingPercentRisk:
		if c.RiskPercent <= 0 || c.StopPercent <= 0 {
			return apperr.Newf(apperr.KindConfig, "risk.SizingConfig.Validate", "risk_percent and stop_percent must be > 0")
		}
	case SizingVolatility:
		if c.RiskPercent <= 0 || c.ATRMultiple <= 0 {
			return apperr.Newf(apperr.KindConfig, "risk.SizingConfig.Validate", "risk_percent and atr_multiple must be > 0")
		}
	default:
		return apperr.Newf(apperr.KindConfig, "risk.SizingConfig.Validate", "unknown sizing method %q", c.Method)
	}
	return nil
}

// quantity computes the order size for a signal at the given price, equity,
// and (for the volatility method) the symbol's current ATR. Returns 0 if no
// valid positive quantity can be computed (e.g. ATR not yet warmed up).
func (c SizingConfig) quantity(equity, price, atrValue float64) int64 {
	if price <= 0 {
		return 0
	}
	switch c.Method {
	case SizingFixed:
		return c.FixedQuantity
	case SizingPercentEquity:
		return int64(equity * c.EquityPercent / price)
	case SizingPercentRisk:
		if c.StopPercent <= 0 {
			return 0
		}
		return int64((equity * c.RiskPercent) / (price * c.StopPercent))
	case SizingVolatility:
		if atrValue <= 0 || c.ATRMultiple <= 0 {
			return 0
		}
		return int64((equity * c.RiskPercent) / (atrValue * c.ATRMultiple))
	default:
		return 0
	}
}

// DrawdownControl reduces position size (or halts trading entirely) as the
// portfolio's peak-to-trough drawdown grows.
type DrawdownControl struct {
	// Enabled turns the control on. A zero-value DrawdownControl is a no-op.
	Enabled bool
	// ReduceAt is the drawdown fraction at which sizing is scaled down.
	ReduceAt float64
	// ReduceFactor multiplies computed quantity once ReduceAt is breached
	// (e.g. 0.5 halves size).
	ReduceFactor float64
	// CutoffAt is the drawdown fraction at which new positions are blocked
	// entirely.
	CutoffAt float64
}

// scale returns the multiplier to apply to a computed quantity given the
// current drawdown fraction, and whether new positions are blocked outright.
func (d DrawdownControl) scale(currentDrawdown float64) (factor float64, halted bool) {
	if !d.Enabled {
		return 1.0, false
	}
	if d.CutoffAt > 0 && currentDrawdown >= d.CutoffAt {
		return 0, true
	}
	if d.ReduceAt > 0 && currentDrawdown >= d.ReduceAt {
		return d.ReduceFactor, false
	}
	return 1.0, false
}
