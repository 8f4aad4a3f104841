package risk

import "quantforge/eventbus"

// Register subscribes m to BAR (for ATR/last-close tracking), SIGNAL (to
// emit sized orders), and PORTFOLIO_UPDATE (to maintain the position
// mirror), each at priority.
func Register(bus *eventbus.Bus, priority int, m *Manager) {
	bus.Subscribe(eventbus.KindBar, priority, func(ev eventbus.Event) error {
		m.OnBar(ev.(eventbus.BarEvent).Bar)
		return nil
	})
	bus.Subscribe(eventbus.KindPortfolioUpdate, priority, func(ev eventbus.Event) error {
		m.OnPortfolioUpdate(ev.(eventbus.PortfolioUpdateEvent))
		return nil
	})
	bus.Subscribe(eventbus.KindSignal, priority, func(ev eventbus.Event) error {
		sig := ev.(eventbus.SignalEvent).Signal
		for _, order := range m.OnSignal(sig) {
			bus.Publish(eventbus.OrderEvent{Order: order})
		}
		return nil
	})
}
