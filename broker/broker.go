package broker

import (
	"math"
	"math/rand"

	"github.com/cespare/xxhash/v2"
	"github.com/shopspring/decimal"

	"quantforge/domain"
)

// Broker turns submitted orders into fills. MARKET orders are deferred to
// the next bar for their symbol and fill at that bar's open — never the bar
// they were submitted on — so strategies cannot look ahead onto their own
// order's triggering bar. LIMIT and STOP orders stay pending until the
// bar's high/low range crosses their trigger, and are re-queued otherwise.
// Orders flagged Immediate skip the pending queue entirely and fill right
// away against the last bar already processed for their symbol.
type Broker struct {
	slippage   SlippageConfig
	commission CommissionConfig
	runID      string

	pending map[string][]domain.Order // symbol -> orders awaiting a fillable bar
	lastBar map[string]domain.Bar     // symbol -> most recent bar this broker has processed
}

// NewBroker builds a Broker. runID seeds the per-order deterministic PRNG
// used by the variable slippage model.
func NewBroker(slippage SlippageConfig, commission CommissionConfig, runID string) *Broker {
	return &Broker{
		slippage:   slippage,
		commission: commission,
		runID:      runID,
		pending:    make(map[string][]domain.Order),
		lastBar:    make(map[string]domain.Bar),
	}
}

// Reset clears all pending orders and last-bar state. Idempotent.
func (b *Broker) Reset() {
	b.pending = make(map[string][]domain.Order)
	b.lastBar = make(map[string]domain.Bar)
}

// Submit enqueues order to be considered against the next bar for its
// symbol, unless order.Immediate is set, in which case it fills right away
// against the last bar already processed for the symbol — used for
// end-of-day and run-end forced closes, which must not wait on a bar that
// may never arrive. ok is false when an immediate order arrives before any
// bar has been seen for its symbol.
func (b *Broker) Submit(order domain.Order) (fill domain.Fill, ok bool) {
	if order.Immediate {
		bar, seen := b.lastBar[order.Symbol]
		if !seen {
			return domain.Fill{}, false
		}
		return b.fillAtClose(order, bar), true
	}
	b.pending[order.Symbol] = append(b.pending[order.Symbol], order)
	return domain.Fill{}, false
}

// OnBar records bar as the symbol's last processed bar, then evaluates
// every order pending for bar.Symbol against it, returning the fills
// produced. Orders that do not trigger (LIMIT/STOP not crossed) remain
// pending for a subsequent bar.
func (b *Broker) OnBar(bar domain.Bar) []domain.Fill {
	b.lastBar[bar.Symbol] = bar

	orders := b.pending[bar.Symbol]
	if len(orders) == 0 {
		return nil
	}
	b.pending[bar.Symbol] = nil

	fills := make([]domain.Fill, 0, len(orders))
	for _, order := range orders {
		fill, triggered := b.tryFill(order, bar)
		if triggered {
			fills = append(fills, fill)
			continue
		}
		b.pending[bar.Symbol] = append(b.pending[bar.Symbol], order)
	}
	return fills
}

// fillAtClose fills order synchronously against bar's close, the reference
// price for a forced close since no further bar will arrive to fill it
// against an open.
func (b *Broker) fillAtClose(order domain.Order, bar domain.Bar) domain.Fill {
	closePx, _ := bar.Close.Float64()
	fillPrice := b.applySlippage(order, closePx, bar)
	notional := math.Abs(fillPrice * float64(order.Quantity))
	commission := b.commission.commission(notional, order.Quantity)

	return domain.Fill{
		OrderID:    order.OrderID,
		Symbol:     order.Symbol,
		Timestamp:  bar.Timestamp,
		Direction:  order.Direction,
		Quantity:   order.Quantity,
		FillPrice:  decimal.NewFromFloat(fillPrice),
		Commission: decimal.NewFromFloat(commission),
		Slippage:   decimal.NewFromFloat(math.Abs(fillPrice - closePx)),
	}
}

func (b *Broker) tryFill(order domain.Order, bar domain.Bar) (domain.Fill, bool) {
	open, _ := bar.Open.Float64()
	high, _ := bar.High.Float64()
	low, _ := bar.Low.Float64()

	var refPrice float64
	switch order.OrderType {
	case domain.Limit:
		limit, _ := order.LimitPrice.Float64()
		if !limitTriggered(order.Direction, limit, high, low) {
			return domain.Fill{}, false
		}
		refPrice = limit
	case domain.Stop:
		stop, _ := order.LimitPrice.Float64()
		if !stopTriggered(order.Direction, stop, high, low) {
			return domain.Fill{}, false
		}
		refPrice = stop
	default: // MARKET
		refPrice = open
	}

	fillPrice := b.applySlippage(order, refPrice, bar)
	notional := math.Abs(fillPrice * float64(order.Quantity))
	commission := b.commission.commission(notional, order.Quantity)

	return domain.Fill{
		OrderID:    order.OrderID,
		Symbol:     order.Symbol,
		Timestamp:  bar.Timestamp,
		Direction:  order.Direction,
		Quantity:   order.Quantity,
		FillPrice:  decimal.NewFromFloat(fillPrice),
		Commission: decimal.NewFromFloat(commission),
		Slippage:   decimal.NewFromFloat(math.Abs(fillPrice - refPrice)),
	}, true
}

func limitTriggered(dir domain.Side, limit, high, low float64) bool {
	if dir == domain.Buy {
		return low <= limit
	}
	return high >= limit
}

func stopTriggered(dir domain.Side, stop, high, low float64) bool {
	if dir == domain.Buy {
		return high >= stop
	}
	return low <= stop
}

func (b *Broker) applySlippage(order domain.Order, refPrice float64, bar domain.Bar) float64 {
	sign := 1.0
	if order.Direction == domain.Sell {
		sign = -1.0
	}

	switch b.slippage.Model {
	case SlippageVariable:
		rng := rand.New(rand.NewSource(int64(xxhash.Sum64String(b.runID + "/" + order.OrderID))))
		volatility := recentVolatility(bar)
		volumeRatio := 0.0
		if b.slippage.AvgVolume > 0 {
			volumeRatio = float64(order.Quantity) / b.slippage.AvgVolume
		}
		p := b.slippage.Base +
			b.slippage.SizeImpact*volumeRatio +
			b.slippage.VolatilityImpact*volatility +
			b.slippage.RandomFactor*(rng.Float64()*2-1)
		return refPrice * (1 + sign*p)
	default: // fixed
		return refPrice * (1 + sign*b.slippage.SlippagePercent)
	}
}

// recentVolatility proxies a bar's own true range relative to its close, in
// the absence of a maintained rolling window — a cheap, deterministic stand-
// in the variable slippage model can scale by VolatilityImpact.
func recentVolatility(bar domain.Bar) float64 {
	high, _ := bar.High.Float64()
	low, _ := bar.Low.Float64()
	closePx, _ := bar.Close.Float64()
	if closePx == 0 {
		return 0
	}
	return (high - low) / closePx
}
