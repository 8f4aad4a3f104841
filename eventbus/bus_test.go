package eventbus

import (
	"fmt"
	"testing"
	"time"

	"quantforge/domain"
)

func mkBar(symbol string, ts time.Time) BarEvent {
	return BarEvent{Bar: domain.Bar{Symbol: symbol, Timestamp: ts}}
}

func mkSignal(ruleID string) SignalEvent {
	return SignalEvent{Signal: domain.Signal{RuleID: ruleID, Timestamp: time.Now()}}
}

func TestPublish_PriorityOrder(t *testing.T) {
	bus := New(DedupNone)

	var order []string
	bus.Subscribe(KindBar, 40, func(ev Event) error {
		order = append(order, "risk")
		return nil
	})
	bus.Subscribe(KindBar, 100, func(ev Event) error {
		order = append(order, "order-manager")
		return nil
	})
	bus.Subscribe(KindBar, 90, func(ev Event) error {
		order = append(order, "portfolio")
		return nil
	})
	bus.Subscribe(KindBar, 50, func(ev Event) error {
		order = append(order, "strategy")
		return nil
	})

	bus.Publish(mkBar("X", time.Now()))

	want := []string{"order-manager", "portfolio", "strategy", "risk"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestPublish_TieBrokenByRegistrationOrder(t *testing.T) {
	bus := New(DedupNone)
	var order []string
	bus.Subscribe(KindBar, 50, func(ev Event) error { order = append(order, "first"); return nil })
	bus.Subscribe(KindBar, 50, func(ev Event) error { order = append(order, "second"); return nil })

	bus.Publish(mkBar("X", time.Now()))

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("got %v", order)
	}
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	bus := New(DedupNone)
	calls := 0
	id := bus.Subscribe(KindBar, 50, func(ev Event) error { calls++; return nil })

	bus.Unsubscribe(KindBar, id)
	bus.Unsubscribe(KindBar, id) // second call must not panic

	bus.Publish(mkBar("X", time.Now()))
	if calls != 0 {
		t.Fatalf("expected 0 calls after unsubscribe, got %d", calls)
	}
}

func TestPublish_HandlerErrorDoesNotAbortDispatch(t *testing.T) {
	bus := New(DedupNone)
	var ran []string
	bus.Subscribe(KindBar, 100, func(ev Event) error {
		ran = append(ran, "a")
		return fmt.Errorf("boom")
	})
	bus.Subscribe(KindBar, 90, func(ev Event) error {
		ran = append(ran, "b")
		return nil
	})

	bus.Publish(mkBar("X", time.Now()))

	if len(ran) != 2 {
		t.Fatalf("expected both handlers to run, got %v", ran)
	}
	if bus.Errors().Len() != 1 {
		t.Fatalf("expected 1 recorded error, got %d", bus.Errors().Len())
	}
}

func TestPublish_HandlerPanicIsRecorded(t *testing.T) {
	bus := New(DedupNone)
	var ranAfter bool
	bus.Subscribe(KindBar, 100, func(ev Event) error {
		panic("kaboom")
	})
	bus.Subscribe(KindBar, 50, func(ev Event) error {
		ranAfter = true
		return nil
	})

	bus.Publish(mkBar("X", time.Now()))

	if !ranAfter {
		t.Fatal("expected sibling handler to still run after panic")
	}
	if bus.Errors().Len() != 1 {
		t.Fatalf("expected 1 recorded error, got %d", bus.Errors().Len())
	}
}

// TestDedup_ByFingerprint verifies that two identical SIGNAL events with the
// same rule_id published back to back yield exactly one downstream
// dispatch.
func TestDedup_ByFingerprint(t *testing.T) {
	bus := New(DedupByFingerprint)
	var count int
	bus.Subscribe(KindSignal, 50, func(ev Event) error { count++; return nil })

	bus.Publish(mkSignal("X/LONG/3"))
	bus.Publish(mkSignal("X/LONG/3"))

	if count != 1 {
		t.Fatalf("expected exactly 1 delivery after dedup, got %d", count)
	}
	if bus.Dropped() != 1 {
		t.Fatalf("expected 1 dropped event, got %d", bus.Dropped())
	}
}

func TestDedup_None_NoDropping(t *testing.T) {
	bus := New(DedupNone)
	var count int
	bus.Subscribe(KindSignal, 50, func(ev Event) error { count++; return nil })

	bus.Publish(mkSignal("X/LONG/3"))
	bus.Publish(mkSignal("X/LONG/3"))

	if count != 2 {
		t.Fatalf("expected 2 deliveries with dedup disabled, got %d", count)
	}
}

// TestBatch_FIFODrain covers the batch/end_batch contract: publishes made
// while batching are queued, then drained FIFO, with nested emissions
// appended to the same queue rather than interleaved.
func TestBatch_FIFODrain(t *testing.T) {
	bus := New(DedupNone)
	var order []string

	bus.Subscribe(KindBar, 50, func(ev Event) error {
		order = append(order, "bar")
		bus.Publish(mkSignal("from-bar")) // emitted while still batching
		return nil
	})
	bus.Subscribe(KindSignal, 50, func(ev Event) error {
		order = append(order, "signal:"+ev.(SignalEvent).Signal.RuleID)
		return nil
	})

	bus.StartBatch()
	bus.Publish(mkBar("X", time.Now()))
	bus.Publish(mkSignal("direct"))

	if len(order) != 0 {
		t.Fatalf("expected no dispatch while batching, got %v", order)
	}

	bus.EndBatch()

	want := []string{"bar", "signal:direct", "signal:from-bar"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestReset_ClearsHandlersDedupAndBatch(t *testing.T) {
	bus := New(DedupByFingerprint)
	calls := 0
	bus.Subscribe(KindSignal, 50, func(ev Event) error { calls++; return nil })
	bus.Publish(mkSignal("X"))

	bus.Reset()

	bus.Publish(mkSignal("X")) // would have been deduped pre-reset
	if calls != 1 {
		t.Fatalf("expected subscriber to be gone after reset, got %d calls", calls)
	}
	if bus.Dropped() != 0 {
		t.Fatalf("expected dedup table cleared, dropped=%d", bus.Dropped())
	}
}

// TestPublish_NestedEmissionRunsToCompletionBeforeSibling verifies the
// non-batch ordering guarantee: an event emitted inside a handler is fully
// processed (all of its own handlers run) before the outer event's next
// sibling handler executes.
func TestPublish_NestedEmissionRunsToCompletionBeforeSibling(t *testing.T) {
	bus := New(DedupNone)
	var order []string

	bus.Subscribe(KindBar, 100, func(ev Event) error {
		order = append(order, "bar:first")
		bus.Publish(mkSignal("nested"))
		return nil
	})
	bus.Subscribe(KindSignal, 50, func(ev Event) error {
		order = append(order, "signal:nested")
		return nil
	})
	bus.Subscribe(KindBar, 50, func(ev Event) error {
		order = append(order, "bar:second")
		return nil
	})

	bus.Publish(mkBar("X", time.Now()))

	want := []string{"bar:first", "signal:nested", "bar:second"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}
