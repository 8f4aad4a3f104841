package builtin

import (
	"fmt"

	"quantforge/domain"
	"quantforge/strategy"
)

// RSIMomentum emits LONG when RSI crosses below its oversold level and
// SHORT when it crosses above its overbought level, adapted from the
// snapshot-style RSI momentum strategy into incremental per-bar state.
type RSIMomentum struct {
	id string

	period     int
	oversold   float64
	overbought float64

	rsi   map[string]*rsi
	state map[string]rsiZone

	warmup *strategy.WarmupTracker
}

type rsiZone int

const (
	zoneNeutral rsiZone = iota
	zoneOversold
	zoneOverbought
)

// NewRSIMomentum builds an RSI momentum strategy.
func NewRSIMomentum(id string, period int, oversold, overbought float64) *RSIMomentum {
	return &RSIMomentum{
		id: id, period: period, oversold: oversold, overbought: overbought,
		rsi:    make(map[string]*rsi),
		state:  make(map[string]rsiZone),
		warmup: strategy.NewWarmupTracker(period),
	}
}

func (s *RSIMomentum) ID() string { return s.id }

func (s *RSIMomentum) Reset() {
	s.rsi = make(map[string]*rsi)
	s.state = make(map[string]rsiZone)
	s.warmup.Reset()
}

func (s *RSIMomentum) Parameters() map[string]strategy.ParamValue {
	return map[string]strategy.ParamValue{
		"period":     strategy.IntParam(int64(s.period)),
		"oversold":   strategy.FloatParam(s.oversold),
		"overbought": strategy.FloatParam(s.overbought),
	}
}

func (s *RSIMomentum) OnBar(bar domain.Bar) ([]domain.Signal, error) {
	sym := bar.Symbol
	price, _ := bar.Close.Float64()

	r, ok := s.rsi[sym]
	if !ok {
		r = newRSI(s.period)
		s.rsi[sym] = r
	}

	value, ready := r.update(price)
	warmed := s.warmup.Observe(sym)
	if !ready || !warmed {
		return nil, nil
	}

	zone := zoneNeutral
	switch {
	case value < s.oversold:
		zone = zoneOversold
	case value > s.overbought:
		zone = zoneOverbought
	}

	prevZone := s.state[sym]
	s.state[sym] = zone
	if zone == prevZone {
		return nil, nil
	}

	var direction domain.SignalDirection
	switch zone {
	case zoneOversold:
		direction = domain.Long
	case zoneOverbought:
		direction = domain.Short
	default:
		s.warmup.Flatten(sym)
		return nil, nil
	}

	ruleID, allow := s.warmup.RuleID(sym, direction)
	if !allow {
		return nil, nil
	}

	strength := (value - 50) / 50
	if strength < 0 {
		strength = -strength
	}
	if strength > 1 {
		strength = 1
	}

	return []domain.Signal{{
		Symbol:     sym,
		Timestamp:  bar.Timestamp,
		Direction:  direction,
		Strength:   strength,
		StrategyID: fmt.Sprintf("rsi_momentum/%s", s.id),
		RuleID:     ruleID,
	}}, nil
}
