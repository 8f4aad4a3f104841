package strategy

import (
	"testing"

	"quantforge/domain"
)

func TestWarmupTracker_ObserveRequiresWindowPlusOne(t *testing.T) {
	w := NewWarmupTracker(3)
	for i := 0; i < 3; i++ {
		if w.Observe("X") {
			t.Fatalf("warmed up too early at bar %d", i+1)
		}
	}
	if !w.Observe("X") {
		t.Fatal("expected warm-up complete after window+1 bars")
	}
}

func TestWarmupTracker_SuppressesRepeatDirection(t *testing.T) {
	w := NewWarmupTracker(0)
	id1, allow1 := w.RuleID("X", domain.Long)
	if !allow1 || id1 == "" {
		t.Fatal("expected first signal to be allowed")
	}
	_, allow2 := w.RuleID("X", domain.Long)
	if allow2 {
		t.Fatal("expected repeat same-direction signal to be suppressed")
	}
	id3, allow3 := w.RuleID("X", domain.Short)
	if !allow3 || id3 == id1 {
		t.Fatalf("expected a new rule id on direction flip, got %q and %q", id1, id3)
	}
}

func TestWarmupTracker_FlattenClearsSuppression(t *testing.T) {
	w := NewWarmupTracker(0)
	w.RuleID("X", domain.Long)
	w.Flatten("X")
	_, allow := w.RuleID("X", domain.Long)
	if !allow {
		t.Fatal("expected same-direction signal to be allowed again after Flatten")
	}
}

func TestWarmupTracker_PerSymbolIsolation(t *testing.T) {
	w := NewWarmupTracker(0)
	w.RuleID("X", domain.Long)
	_, allow := w.RuleID("Y", domain.Long)
	if !allow {
		t.Fatal("expected symbol Y to be unaffected by symbol X's state")
	}
}

func TestWarmupTracker_ResetClearsState(t *testing.T) {
	w := NewWarmupTracker(2)
	w.Observe("X")
	w.Observe("X")
	w.Observe("X")
	w.RuleID("X", domain.Long)

	w.Reset()

	if w.Observe("X") {
		t.Fatal("expected warm-up state cleared after Reset")
	}
	_, allow := w.RuleID("X", domain.Long)
	if !allow {
		t.Fatal("expected suppression state cleared after Reset")
	}
}
