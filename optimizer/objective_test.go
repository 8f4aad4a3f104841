package optimizer

import (
	"testing"

	"quantforge/portfolio"
)

func TestBuiltin_ReturnsZeroForEmptyResult(t *testing.T) {
	for _, name := range []Name{ObjectiveSharpe, ObjectiveTotalReturn, ObjectiveMaxDrawdown, ObjectiveProfitFactor, ObjectiveWinRate} {
		obj, ok := Builtin(name)
		if !ok {
			t.Fatalf("Builtin(%q) not found", name)
		}
		if got := obj(portfolio.Statistics{}); got != 0.0 {
			t.Fatalf("Builtin(%q)(empty) = %v, want 0.0", name, got)
		}
	}
}

func TestBuiltin_MaxDrawdownIsNegated(t *testing.T) {
	obj, _ := Builtin(ObjectiveMaxDrawdown)
	got := obj(portfolio.Statistics{TradeCount: 1, MaxDrawdown: 0.2})
	if got != -0.2 {
		t.Fatalf("got %v, want -0.2", got)
	}
}

func TestBuiltin_UnknownNameNotFound(t *testing.T) {
	if _, ok := Builtin(Name("bogus")); ok {
		t.Fatal("expected unknown objective name to be rejected")
	}
}

func TestCombined_WeightsAndSkipsUnknown(t *testing.T) {
	stats := portfolio.Statistics{TradeCount: 1, Sharpe: 2.0, WinRate: 0.5}
	obj := Combined(map[Name]float64{
		ObjectiveSharpe:  1.0,
		ObjectiveWinRate: 2.0,
		Name("bogus"):    100.0,
	})
	want := 1.0*2.0 + 2.0*0.5
	if got := obj(stats); got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestTrainTestCombined_WeightsTrainAndTest(t *testing.T) {
	sharpe, _ := Builtin(ObjectiveSharpe)
	combined := TrainTestCombined(sharpe, 1.0, 2.0)
	train := portfolio.Statistics{TradeCount: 1, Sharpe: 1.0}
	test := portfolio.Statistics{TradeCount: 1, Sharpe: 0.5}
	want := 1.0*1.0 + 2.0*0.5
	if got := combined(train, test); got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}
