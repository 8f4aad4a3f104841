package broker

import "quantforge/eventbus"

// Priority is the recommended handler priority for the broker. On BAR it
// runs ahead of the portfolio (90) and the strategy (50): fills released at
// a bar's open are booked before the portfolio marks that bar's close, and
// an order a strategy emits on a bar is still pending when the broker has
// already handled that bar, so it fills no earlier than the next one.
const Priority = 95

// Register subscribes b to BAR (release any orders pending for that
// symbol, publishing each resulting FILL) at priority.
func Register(bus *eventbus.Bus, priority int, b *Broker) {
	bus.Subscribe(eventbus.KindBar, priority, func(ev eventbus.Event) error {
		bar := ev.(eventbus.BarEvent).Bar
		for _, fill := range b.OnBar(bar) {
			bus.Publish(eventbus.FillEvent{Fill: fill})
		}
		return nil
	})
}
