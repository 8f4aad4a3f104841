// Package broker implements the simulated broker: it turns ORDER events into
// deterministic FILL events by applying configurable slippage and commission
// models to MARKET, LIMIT, and STOP orders.
package broker

import "fmt"

// SlippageModel selects how fill price deviates from the reference price.
type SlippageModel string

const (
	SlippageFixed    SlippageModel = "fixed"
	SlippageVariable SlippageModel = "variable"
)

// SlippageConfig parameterizes a SlippageModel.
type SlippageConfig struct {
	Model            SlippageModel
	SlippagePercent  float64 // fixed
	Base             float64 // variable
	SizeImpact       float64 // variable
	VolatilityImpact float64 // variable
	RandomFactor     float64 // variable
	AvgVolume        float64 // variable, denominator for quantity/avg_volume
}

func (c SlippageConfig) Validate() error {
	switch c.Model {
	case SlippageFixed, SlippageVariable:
		return nil
	default:
		return fmt.Errorf("broker: unknown slippage model %q", c.Model)
	}
}

// CommissionModel selects how commission is computed per fill.
type CommissionModel string

const (
	CommissionPercentage CommissionModel = "percentage"
	CommissionFixed      CommissionModel = "fixed"
	CommissionPerShare   CommissionModel = "per_share"
	CommissionTiered     CommissionModel = "tiered"
)

// CommissionTier is one notional-value bracket of a tiered schedule. Tiers
// must be sorted by UpToNotional ascending; the last tier's UpToNotional is
// ignored (it covers everything above the previous tier).
type CommissionTier struct {
	UpToNotional float64
	Rate         float64
}

// CommissionConfig parameterizes a CommissionModel.
type CommissionConfig struct {
	Model         CommissionModel
	Rate          float64 // percentage (fraction) | fixed (dollars) | per_share (dollars/share)
	MinCommission float64
	MaxCommission float64
	Tiers         []CommissionTier
}

func (c CommissionConfig) Validate() error {
	switch c.Model {
	case CommissionPercentage, CommissionFixed, CommissionPerShare:
		return nil
	case CommissionTiered:
		if len(c.Tiers) == 0 {
			return fmt.Errorf("broker: tiered commission requires at least one tier")
		}
		return nil
	default:
		return fmt.Errorf("broker: unknown commission model %q", c.Model)
	}
}

// commission computes the commission due on a fill of the given notional
// value (|fill_price * quantity|).
func (c CommissionConfig) commission(notional float64, quantity int64) float64 {
	var amt float64
	switch c.Model {
	case CommissionFixed:
		amt = c.Rate
	case CommissionPerShare:
		amt = float64(quantity) * c.Rate
	case CommissionTiered:
		amt = tieredCommission(c.Tiers, notional)
	default: // percentage
		amt = notional * c.Rate
	}

	if c.MinCommission > 0 && amt < c.MinCommission {
		amt = c.MinCommission
	}
	if c.MaxCommission > 0 && amt > c.MaxCommission {
		amt = c.MaxCommission
	}
	return amt
}

func tieredCommission(tiers []CommissionTier, notional float64) float64 {
	for _, tier := range tiers {
		if notional <= tier.UpToNotional {
			return notional * tier.Rate
		}
	}
	return notional * tiers[len(tiers)-1].Rate
}
