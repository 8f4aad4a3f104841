package broker

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"quantforge/domain"
)

func bar(symbol string, o, h, l, c float64) domain.Bar {
	return domain.Bar{
		Symbol: symbol, Timestamp: time.Now(),
		Open: decimal.NewFromFloat(o), High: decimal.NewFromFloat(h),
		Low: decimal.NewFromFloat(l), Close: decimal.NewFromFloat(c),
		Volume: 1000,
	}
}

func TestBroker_MarketOrderDoesNotFillOnSubmittingBar(t *testing.T) {
	b := NewBroker(SlippageConfig{Model: SlippageFixed}, CommissionConfig{Model: CommissionFixed, Rate: 1}, "run-1")
	b.OnBar(bar("X", 100, 101, 99, 100))

	fill, filled := b.Submit(domain.Order{OrderID: "o1", Symbol: "X", Direction: domain.Buy, Quantity: 10, OrderType: domain.Market})
	if filled {
		t.Fatalf("expected no fill on the submitting bar itself, got %+v", fill)
	}
}

func TestBroker_MarketOrderFillsAtNextBarOpen(t *testing.T) {
	b := NewBroker(SlippageConfig{Model: SlippageFixed}, CommissionConfig{Model: CommissionFixed, Rate: 1}, "run-1")
	b.Submit(domain.Order{OrderID: "o1", Symbol: "X", Direction: domain.Buy, Quantity: 10, OrderType: domain.Market})

	fills := b.OnBar(bar("X", 105, 106, 104, 105))
	if len(fills) != 1 {
		t.Fatalf("got %d fills, want 1", len(fills))
	}
	if !fills[0].FillPrice.Equal(decimal.NewFromFloat(105)) {
		t.Fatalf("expected fill at next bar's open 105, got %s", fills[0].FillPrice)
	}
}

func TestBroker_FixedSlippageAppliedBySign(t *testing.T) {
	b := NewBroker(SlippageConfig{Model: SlippageFixed, SlippagePercent: 0.01}, CommissionConfig{Model: CommissionFixed}, "run-1")
	b.Submit(domain.Order{OrderID: "buy", Symbol: "X", Direction: domain.Buy, Quantity: 1, OrderType: domain.Market})
	b.Submit(domain.Order{OrderID: "sell", Symbol: "X", Direction: domain.Sell, Quantity: 1, OrderType: domain.Market})

	fills := b.OnBar(bar("X", 100, 100, 100, 100))
	if len(fills) != 2 {
		t.Fatalf("got %d fills, want 2", len(fills))
	}
	for _, f := range fills {
		switch f.OrderID {
		case "buy":
			if !f.FillPrice.Equal(decimal.NewFromFloat(101)) {
				t.Fatalf("buy fill = %s, want 101", f.FillPrice)
			}
		case "sell":
			if !f.FillPrice.Equal(decimal.NewFromFloat(99)) {
				t.Fatalf("sell fill = %s, want 99", f.FillPrice)
			}
		}
	}
}

func TestBroker_LimitOrderWaitsForTrigger(t *testing.T) {
	limit := decimal.NewFromFloat(95)
	b := NewBroker(SlippageConfig{Model: SlippageFixed}, CommissionConfig{Model: CommissionFixed}, "run-1")
	b.Submit(domain.Order{OrderID: "o1", Symbol: "X", Direction: domain.Buy, Quantity: 10, OrderType: domain.Limit, LimitPrice: &limit})

	if fills := b.OnBar(bar("X", 100, 101, 99, 100)); len(fills) != 0 {
		t.Fatalf("expected limit order to stay pending, got %+v", fills)
	}
	fills := b.OnBar(bar("X", 98, 99, 94, 96))
	if len(fills) != 1 {
		t.Fatalf("expected limit to trigger once range crosses 95, got %+v", fills)
	}
}

func TestBroker_StopOrderTriggersOnCross(t *testing.T) {
	stop := decimal.NewFromFloat(105)
	b := NewBroker(SlippageConfig{Model: SlippageFixed}, CommissionConfig{Model: CommissionFixed}, "run-1")
	b.Submit(domain.Order{OrderID: "o1", Symbol: "X", Direction: domain.Buy, Quantity: 10, OrderType: domain.Stop, LimitPrice: &stop})

	if fills := b.OnBar(bar("X", 100, 102, 99, 101)); len(fills) != 0 {
		t.Fatalf("expected stop to remain pending below trigger, got %+v", fills)
	}
	fills := b.OnBar(bar("X", 103, 107, 102, 106))
	if len(fills) != 1 {
		t.Fatalf("expected stop to trigger once high crosses 105, got %+v", fills)
	}
}

func TestBroker_PercentageCommissionClampedToRange(t *testing.T) {
	cfg := CommissionConfig{Model: CommissionPercentage, Rate: 0.001, MinCommission: 5, MaxCommission: 50}
	b := NewBroker(SlippageConfig{Model: SlippageFixed}, cfg, "run-1")
	b.Submit(domain.Order{OrderID: "o1", Symbol: "X", Direction: domain.Buy, Quantity: 1, OrderType: domain.Market})

	fills := b.OnBar(bar("X", 10, 10, 10, 10))
	if len(fills) != 1 {
		t.Fatalf("got %d fills, want 1", len(fills))
	}
	if !fills[0].Commission.Equal(decimal.NewFromFloat(5)) {
		t.Fatalf("expected commission clamped to minimum 5, got %s", fills[0].Commission)
	}
}

func TestBroker_VariableSlippageDeterministicPerOrderID(t *testing.T) {
	cfg := SlippageConfig{Model: SlippageVariable, Base: 0.001, RandomFactor: 0.01}
	b1 := NewBroker(cfg, CommissionConfig{Model: CommissionFixed}, "run-1")
	b2 := NewBroker(cfg, CommissionConfig{Model: CommissionFixed}, "run-1")

	b1.Submit(domain.Order{OrderID: "same-id", Symbol: "X", Direction: domain.Buy, Quantity: 10, OrderType: domain.Market})
	b2.Submit(domain.Order{OrderID: "same-id", Symbol: "X", Direction: domain.Buy, Quantity: 10, OrderType: domain.Market})

	f1 := b1.OnBar(bar("X", 100, 102, 98, 101))
	f2 := b2.OnBar(bar("X", 100, 102, 98, 101))

	if !f1[0].FillPrice.Equal(f2[0].FillPrice) {
		t.Fatalf("same run id + order id should reproduce the same fill: %s vs %s", f1[0].FillPrice, f2[0].FillPrice)
	}
}

func TestBroker_ImmediateOrderFillsAgainstLastBarClose(t *testing.T) {
	b := NewBroker(SlippageConfig{Model: SlippageFixed}, CommissionConfig{Model: CommissionFixed, Rate: 1}, "run-1")

	b.OnBar(bar("X", 100, 102, 99, 101))

	fill, ok := b.Submit(domain.Order{OrderID: "o1", Symbol: "X", Direction: domain.Sell, Quantity: 10, OrderType: domain.Market, Immediate: true})
	if !ok {
		t.Fatal("expected an immediate order to fill synchronously once a bar has been seen")
	}
	if !fill.FillPrice.Equal(decimal.NewFromFloat(101)) {
		t.Fatalf("expected fill at last bar's close 101, got %s", fill.FillPrice)
	}

	fills := b.OnBar(bar("X", 105, 106, 104, 105))
	if len(fills) != 0 {
		t.Fatalf("expected the immediate order to not also sit in the pending queue, got %+v", fills)
	}
}

func TestBroker_ImmediateOrderBeforeAnyBarDoesNotFill(t *testing.T) {
	b := NewBroker(SlippageConfig{Model: SlippageFixed}, CommissionConfig{Model: CommissionFixed}, "run-1")

	_, ok := b.Submit(domain.Order{OrderID: "o1", Symbol: "X", Direction: domain.Sell, Quantity: 10, OrderType: domain.Market, Immediate: true})
	if ok {
		t.Fatal("expected no fill when no bar has been processed for the symbol yet")
	}
}

func TestBroker_Reset(t *testing.T) {
	b := NewBroker(SlippageConfig{Model: SlippageFixed}, CommissionConfig{Model: CommissionFixed}, "run-1")
	b.Submit(domain.Order{OrderID: "o1", Symbol: "X", Direction: domain.Buy, Quantity: 10, OrderType: domain.Market})
	b.Reset()

	if fills := b.OnBar(bar("X", 100, 101, 99, 100)); len(fills) != 0 {
		t.Fatalf("expected reset to clear pending orders, got %+v", fills)
	}
}
