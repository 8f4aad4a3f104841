package strategy

import (
	"quantforge/eventbus"
)

// Priority is the recommended handler priority for strategies.
const Priority = 50

// Register subscribes s to BAR events at the given priority, translating
// each signal it returns into a published SIGNAL event. It returns the
// subscription token so the caller can Unsubscribe on teardown.
func Register(bus *eventbus.Bus, priority int, s Strategy) eventbus.SubscriptionID {
	return bus.Subscribe(eventbus.KindBar, priority, func(ev eventbus.Event) error {
		bar := ev.(eventbus.BarEvent).Bar
		signals, err := s.OnBar(bar)
		if err != nil {
			return err
		}
		for _, sig := range signals {
			bus.Publish(eventbus.SignalEvent{Signal: sig})
		}
		return nil
	})
}
