package portfolio

import "quantforge/eventbus"

// Register subscribes p to TRADE_OPEN, TRADE_CLOSE, and BAR at priority,
// publishing PORTFOLIO_UPDATE after each.
func Register(bus *eventbus.Bus, priority int, p *Portfolio) {
	bus.Subscribe(eventbus.KindTradeOpen, priority, func(ev eventbus.Event) error {
		trade := ev.(eventbus.TradeOpenEvent).Trade
		p.OnTradeOpen(trade)
		bus.Publish(eventbus.PortfolioUpdateEvent{
			Timestamp: ev.Time(), Position: p.PositionFor(trade.Symbol), Equity: p.Equity(),
		})
		return nil
	})

	bus.Subscribe(eventbus.KindTradeClose, priority, func(ev eventbus.Event) error {
		trade := ev.(eventbus.TradeCloseEvent).Trade
		p.OnTradeClose(trade)
		bus.Publish(eventbus.PortfolioUpdateEvent{
			Timestamp: ev.Time(), Position: p.PositionFor(trade.Symbol), Equity: p.Equity(),
		})
		return nil
	})

	bus.Subscribe(eventbus.KindBar, priority, func(ev eventbus.Event) error {
		bar := ev.(eventbus.BarEvent).Bar
		point, pos := p.OnBar(bar)
		bus.Publish(eventbus.PortfolioUpdateEvent{Timestamp: bar.Timestamp, Position: pos, Equity: point})
		return nil
	})
}
