package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"quantforge/domain"
	"quantforge/eventbus"
)

func feedBar(m *Manager, symbol string, price float64) {
	px := decimal.NewFromFloat(price)
	hi := decimal.NewFromFloat(price + 1)
	lo := decimal.NewFromFloat(price - 1)
	m.OnBar(domain.Bar{Symbol: symbol, Timestamp: time.Now(), Open: px, High: hi, Low: lo, Close: px, Volume: 1000})
}

func TestManager_FlatToOpen(t *testing.T) {
	m := NewManager(SizingConfig{Method: SizingFixed, FixedQuantity: 10}, DrawdownControl{}, 14)
	feedBar(m, "X", 100)

	orders := m.OnSignal(domain.Signal{Symbol: "X", Direction: domain.Long, RuleID: "X/LONG/1"})
	if len(orders) != 1 {
		t.Fatalf("got %d orders, want 1", len(orders))
	}
	if orders[0].Intent != domain.IntentOpen || orders[0].Direction != domain.Buy || orders[0].Quantity != 10 {
		t.Fatalf("got %+v", orders[0])
	}
}

func TestManager_SameDirectionSuppressed(t *testing.T) {
	m := NewManager(SizingConfig{Method: SizingFixed, FixedQuantity: 10}, DrawdownControl{}, 14)
	feedBar(m, "X", 100)
	m.OnPortfolioUpdate(eventbus.PortfolioUpdateEvent{
		Position: domain.Position{Symbol: "X", SignedQuantity: 10},
		Equity:   domain.EquityPoint{Equity: decimal.NewFromInt(10000)},
	})

	orders := m.OnSignal(domain.Signal{Symbol: "X", Direction: domain.Long, RuleID: "X/LONG/2"})
	if len(orders) != 0 {
		t.Fatalf("expected suppression, got %+v", orders)
	}
}

func TestManager_OppositeDirectionClosesThenOpens(t *testing.T) {
	m := NewManager(SizingConfig{Method: SizingFixed, FixedQuantity: 10}, DrawdownControl{}, 14)
	feedBar(m, "X", 100)
	m.OnPortfolioUpdate(eventbus.PortfolioUpdateEvent{
		Position: domain.Position{Symbol: "X", SignedQuantity: 10},
		Equity:   domain.EquityPoint{Equity: decimal.NewFromInt(10000)},
	})

	orders := m.OnSignal(domain.Signal{Symbol: "X", Direction: domain.Short, RuleID: "X/SHORT/1"})
	if len(orders) != 2 {
		t.Fatalf("got %d orders, want 2", len(orders))
	}
	if orders[0].Intent != domain.IntentClose || orders[0].Direction != domain.Sell {
		t.Fatalf("close order = %+v", orders[0])
	}
	if orders[1].Intent != domain.IntentOpen || orders[1].Direction != domain.Sell {
		t.Fatalf("open order = %+v", orders[1])
	}
	if orders[0].RuleID == orders[1].RuleID {
		t.Fatal("expected distinct rule IDs for close and open")
	}
}

func TestManager_FlatSignalClosesPosition(t *testing.T) {
	m := NewManager(SizingConfig{Method: SizingFixed, FixedQuantity: 10}, DrawdownControl{}, 14)
	feedBar(m, "X", 100)
	m.OnPortfolioUpdate(eventbus.PortfolioUpdateEvent{
		Position: domain.Position{Symbol: "X", SignedQuantity: -5},
		Equity:   domain.EquityPoint{Equity: decimal.NewFromInt(10000)},
	})

	orders := m.OnSignal(domain.Signal{Symbol: "X", Direction: domain.Flat, RuleID: "X/FLAT/1"})
	if len(orders) != 1 || orders[0].Intent != domain.IntentClose || orders[0].Direction != domain.Buy || orders[0].Quantity != 5 {
		t.Fatalf("got %+v", orders)
	}
}

func TestManager_DrawdownCutoffBlocksOpen(t *testing.T) {
	dd := DrawdownControl{Enabled: true, CutoffAt: 0.10}
	m := NewManager(SizingConfig{Method: SizingFixed, FixedQuantity: 10}, dd, 14)
	feedBar(m, "X", 100)

	m.OnPortfolioUpdate(eventbus.PortfolioUpdateEvent{
		Position: domain.Position{Symbol: "X"},
		Equity:   decimalEquity(10000),
	})
	m.OnPortfolioUpdate(eventbus.PortfolioUpdateEvent{
		Position: domain.Position{Symbol: "X"},
		Equity:   decimalEquity(8000), // 20% drawdown
	})

	orders := m.OnSignal(domain.Signal{Symbol: "X", Direction: domain.Long, RuleID: "X/LONG/1"})
	if len(orders) != 0 {
		t.Fatalf("expected no orders during drawdown halt, got %+v", orders)
	}
	if m.Errors().Len() != 1 {
		t.Fatalf("expected 1 recorded violation, got %d", m.Errors().Len())
	}
}

func TestManager_DrawdownCutoffStillAllowsClose(t *testing.T) {
	dd := DrawdownControl{Enabled: true, CutoffAt: 0.10}
	m := NewManager(SizingConfig{Method: SizingFixed, FixedQuantity: 10}, dd, 14)
	feedBar(m, "X", 100)
	m.OnPortfolioUpdate(eventbus.PortfolioUpdateEvent{
		Position: domain.Position{Symbol: "X", SignedQuantity: 10},
		Equity:   decimalEquity(10000),
	})
	m.OnPortfolioUpdate(eventbus.PortfolioUpdateEvent{
		Position: domain.Position{Symbol: "X", SignedQuantity: 10},
		Equity:   decimalEquity(8000),
	})

	orders := m.OnSignal(domain.Signal{Symbol: "X", Direction: domain.Flat, RuleID: "X/FLAT/1"})
	if len(orders) != 1 || orders[0].Intent != domain.IntentClose {
		t.Fatalf("expected CLOSE order to pass through halt, got %+v", orders)
	}
}

func TestManager_VolatilitySizingUsesATR(t *testing.T) {
	sizing := SizingConfig{Method: SizingVolatility, RiskPercent: 0.02, ATRMultiple: 2.0}
	m := NewManager(sizing, DrawdownControl{}, 3)
	for _, px := range []float64{100, 102, 99, 103} {
		feedBar(m, "X", px)
	}
	m.OnPortfolioUpdate(eventbus.PortfolioUpdateEvent{
		Position: domain.Position{Symbol: "X"},
		Equity:   decimalEquity(10000),
	})

	orders := m.OnSignal(domain.Signal{Symbol: "X", Direction: domain.Long, RuleID: "X/LONG/1"})
	if len(orders) != 1 {
		t.Fatalf("expected a sized order once ATR is warmed up, got %+v", orders)
	}
	if orders[0].Quantity <= 0 {
		t.Fatalf("expected positive quantity, got %d", orders[0].Quantity)
	}
}

func TestManager_Reset(t *testing.T) {
	m := NewManager(SizingConfig{Method: SizingFixed, FixedQuantity: 10}, DrawdownControl{}, 14)
	feedBar(m, "X", 100)
	m.OnPortfolioUpdate(eventbus.PortfolioUpdateEvent{
		Position: domain.Position{Symbol: "X", SignedQuantity: 10},
		Equity:   decimalEquity(10000),
	})

	m.Reset()

	orders := m.OnSignal(domain.Signal{Symbol: "X", Direction: domain.Long, RuleID: "X/LONG/1"})
	// After reset the position mirror is empty (flat) and lastClose is
	// cleared, so sizing against a zero price yields no order.
	if len(orders) != 0 {
		t.Fatalf("expected no orders immediately after reset (no price yet), got %+v", orders)
	}
}

func decimalEquity(v float64) domain.EquityPoint {
	return domain.EquityPoint{Equity: decimal.NewFromFloat(v)}
}
