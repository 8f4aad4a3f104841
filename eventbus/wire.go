package eventbus

import (
	"encoding/json"
	"fmt"
)

// Encode converts an Event to its wire Envelope. Round-tripping an event
// through Encode then Decode yields an equal event.
func Encode(ev Event) (Envelope, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, fmt.Errorf("eventbus: encode %s: %w", ev.Kind(), err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Envelope{}, fmt.Errorf("eventbus: encode %s: %w", ev.Kind(), err)
	}
	return Envelope{Kind: ev.Kind(), Timestamp: ev.Time(), Fields: fields}, nil
}

// Decode reconstructs a typed Event from an Envelope.
func Decode(env Envelope) (Event, error) {
	raw, err := json.Marshal(env.Fields)
	if err != nil {
		return nil, fmt.Errorf("eventbus: decode %s: %w", env.Kind, err)
	}

	var ev Event
	switch env.Kind {
	case KindBar:
		var e BarEvent
		err = json.Unmarshal(raw, &e)
		ev = e
	case KindSignal:
		var e SignalEvent
		err = json.Unmarshal(raw, &e)
		ev = e
	case KindOrder:
		var e OrderEvent
		err = json.Unmarshal(raw, &e)
		ev = e
	case KindFill:
		var e FillEvent
		err = json.Unmarshal(raw, &e)
		ev = e
	case KindTradeOpen:
		var e TradeOpenEvent
		err = json.Unmarshal(raw, &e)
		ev = e
	case KindTradeClose:
		var e TradeCloseEvent
		err = json.Unmarshal(raw, &e)
		ev = e
	case KindPortfolioUpdate:
		var e PortfolioUpdateEvent
		err = json.Unmarshal(raw, &e)
		ev = e
	case KindBacktestStart:
		var e BacktestStartEvent
		err = json.Unmarshal(raw, &e)
		ev = e
	case KindBacktestEnd:
		var e BacktestEndEvent
		err = json.Unmarshal(raw, &e)
		ev = e
	default:
		return nil, fmt.Errorf("eventbus: decode: unknown kind %q", env.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("eventbus: decode %s: %w", env.Kind, err)
	}
	return ev, nil
}
