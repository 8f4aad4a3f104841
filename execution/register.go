package execution

import (
	"quantforge/domain"
	"quantforge/eventbus"
)

// Broker is the subset of the simulated broker the order manager depends on.
// The order manager forwards each submitted order to it directly (a plain
// call, not another bus round-trip); most orders fill on the broker's own
// schedule and come back as a FILL event published by the broker itself,
// but an order the broker fills synchronously (ok=true) is published here
// instead, since the broker has no other way to signal it.
type Broker interface {
	Submit(order domain.Order) (fill domain.Fill, ok bool)
}

// Register subscribes m to ORDER (assign id, forward to broker) and FILL
// (translate into TRADE_OPEN/TRADE_CLOSE), both at priority.
func Register(bus *eventbus.Bus, priority int, m *Manager, broker Broker) {
	bus.Subscribe(eventbus.KindOrder, priority, func(ev eventbus.Event) error {
		order := m.Submit(ev.(eventbus.OrderEvent).Order)
		if fill, ok := broker.Submit(order); ok {
			bus.Publish(eventbus.FillEvent{Fill: fill})
		}
		return nil
	})

	bus.Subscribe(eventbus.KindFill, priority, func(ev eventbus.Event) error {
		fill := ev.(eventbus.FillEvent).Fill
		trade, isOpen, ok := m.OnFill(fill)
		if !ok {
			return nil
		}
		if isOpen {
			bus.Publish(eventbus.TradeOpenEvent{Trade: trade})
		} else {
			bus.Publish(eventbus.TradeCloseEvent{Trade: trade})
		}
		return nil
	})
}
