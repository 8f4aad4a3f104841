package builtin

import (
	"fmt"

	"quantforge/domain"
	"quantforge/strategy"
)

// MACrossover emits LONG when the fast SMA crosses above the slow SMA, and
// SHORT on the reverse crossover, adapted from the golden/death-cross logic
// of the original snapshot-style MA strategy into incremental per-bar state.
type MACrossover struct {
	id string

	fastPeriod int
	slowPeriod int

	fast  map[string]*sma
	slow  map[string]*sma
	above map[string]bool // whether fast was above slow as of the last ready bar
	known map[string]bool // whether 'above' has been observed at least once

	warmup *strategy.WarmupTracker
}

// NewMACrossover builds a fast/slow SMA crossover strategy. id lets the
// caller distinguish multiple parameterizations in one run's rule IDs.
func NewMACrossover(id string, fastPeriod, slowPeriod int) *MACrossover {
	return &MACrossover{
		id:         id,
		fastPeriod: fastPeriod,
		slowPeriod: slowPeriod,
		fast:       make(map[string]*sma),
		slow:       make(map[string]*sma),
		above:      make(map[string]bool),
		known:      make(map[string]bool),
		warmup:     strategy.NewWarmupTracker(slowPeriod),
	}
}

func (s *MACrossover) ID() string { return s.id }

func (s *MACrossover) Reset() {
	s.fast = make(map[string]*sma)
	s.slow = make(map[string]*sma)
	s.above = make(map[string]bool)
	s.known = make(map[string]bool)
	s.warmup.Reset()
}

func (s *MACrossover) Parameters() map[string]strategy.ParamValue {
	return map[string]strategy.ParamValue{
		"fast_period": strategy.IntParam(int64(s.fastPeriod)),
		"slow_period": strategy.IntParam(int64(s.slowPeriod)),
	}
}

func (s *MACrossover) OnBar(bar domain.Bar) ([]domain.Signal, error) {
	sym := bar.Symbol
	price, _ := bar.Close.Float64()

	fastSMA, ok := s.fast[sym]
	if !ok {
		fastSMA = newSMA(s.fastPeriod)
		s.fast[sym] = fastSMA
	}
	slowSMA, ok := s.slow[sym]
	if !ok {
		slowSMA = newSMA(s.slowPeriod)
		s.slow[sym] = slowSMA
	}

	fastVal, fastReady := fastSMA.update(price)
	slowVal, slowReady := slowSMA.update(price)
	warmed := s.warmup.Observe(sym)

	if !fastReady || !slowReady || !warmed {
		return nil, nil
	}

	nowAbove := fastVal > slowVal
	crossed := s.known[sym] && s.above[sym] != nowAbove

	s.above[sym] = nowAbove
	s.known[sym] = true

	if !crossed {
		return nil, nil
	}

	direction := domain.Short
	if nowAbove {
		direction = domain.Long
	}

	ruleID, allow := s.warmup.RuleID(sym, direction)
	if !allow {
		return nil, nil
	}

	return []domain.Signal{{
		Symbol:     sym,
		Timestamp:  bar.Timestamp,
		Direction:  direction,
		Strength:   crossoverStrength(fastVal, slowVal),
		StrategyID: fmt.Sprintf("ma_crossover/%s", s.id),
		RuleID:     ruleID,
	}}, nil
}

// crossoverStrength maps the relative separation between the two averages
// into [0,1], saturating at a 5% spread.
func crossoverStrength(fast, slow float64) float64 {
	if slow == 0 {
		return 0
	}
	spread := (fast - slow) / slow
	if spread < 0 {
		spread = -spread
	}
	strength := spread / 0.05
	if strength > 1 {
		strength = 1
	}
	return strength
}
