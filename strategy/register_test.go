package strategy

import (
	"testing"
	"time"

	"quantforge/domain"
	"quantforge/eventbus"
)

type stubStrategy struct {
	signals []domain.Signal
	calls   int
}

func (s *stubStrategy) ID() string { return "stub" }
func (s *stubStrategy) OnBar(bar domain.Bar) ([]domain.Signal, error) {
	s.calls++
	return s.signals, nil
}
func (s *stubStrategy) Reset()                               {}
func (s *stubStrategy) Parameters() map[string]ParamValue    { return nil }

func TestRegister_PublishesReturnedSignals(t *testing.T) {
	bus := eventbus.New(eventbus.DedupNone)
	stub := &stubStrategy{signals: []domain.Signal{
		{Symbol: "X", Direction: domain.Long, RuleID: "X/LONG/1"},
	}}
	Register(bus, Priority, stub)

	var received []domain.Signal
	bus.Subscribe(eventbus.KindSignal, 10, func(ev eventbus.Event) error {
		received = append(received, ev.(eventbus.SignalEvent).Signal)
		return nil
	})

	bus.Publish(eventbus.BarEvent{Bar: domain.Bar{Symbol: "X", Timestamp: time.Now()}})

	if stub.calls != 1 {
		t.Fatalf("expected OnBar called once, got %d", stub.calls)
	}
	if len(received) != 1 || received[0].RuleID != "X/LONG/1" {
		t.Fatalf("got %+v", received)
	}
}
