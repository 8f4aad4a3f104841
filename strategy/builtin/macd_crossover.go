package builtin

import (
	"fmt"

	"quantforge/domain"
	"quantforge/strategy"
)

// MACDCrossover emits LONG when the MACD line crosses above its signal
// line, and SHORT on the reverse crossover, adapted from the snapshot-style
// MACD strategy into incremental per-bar EMA state.
type MACDCrossover struct {
	id string

	fastPeriod   int
	slowPeriod   int
	signalPeriod int

	fastEMA  map[string]*ema
	slowEMA  map[string]*ema
	signalEMA map[string]*ema
	above    map[string]bool
	known    map[string]bool

	warmup *strategy.WarmupTracker
}

// NewMACDCrossover builds a MACD-crossover strategy with the classic
// fast/slow/signal EMA periods.
func NewMACDCrossover(id string, fastPeriod, slowPeriod, signalPeriod int) *MACDCrossover {
	return &MACDCrossover{
		id: id, fastPeriod: fastPeriod, slowPeriod: slowPeriod, signalPeriod: signalPeriod,
		fastEMA:   make(map[string]*ema),
		slowEMA:   make(map[string]*ema),
		signalEMA: make(map[string]*ema),
		above:     make(map[string]bool),
		known:     make(map[string]bool),
		warmup:    strategy.NewWarmupTracker(slowPeriod + signalPeriod),
	}
}

func (s *MACDCrossover) ID() string { return s.id }

func (s *MACDCrossover) Reset() {
	s.fastEMA = make(map[string]*ema)
	s.slowEMA = make(map[string]*ema)
	s.signalEMA = make(map[string]*ema)
	s.above = make(map[string]bool)
	s.known = make(map[string]bool)
	s.warmup.Reset()
}

func (s *MACDCrossover) Parameters() map[string]strategy.ParamValue {
	return map[string]strategy.ParamValue{
		"fast_period":   strategy.IntParam(int64(s.fastPeriod)),
		"slow_period":   strategy.IntParam(int64(s.slowPeriod)),
		"signal_period": strategy.IntParam(int64(s.signalPeriod)),
	}
}

func (s *MACDCrossover) OnBar(bar domain.Bar) ([]domain.Signal, error) {
	sym := bar.Symbol
	price, _ := bar.Close.Float64()

	fastE, ok := s.fastEMA[sym]
	if !ok {
		fastE = newEMA(s.fastPeriod)
		s.fastEMA[sym] = fastE
	}
	slowE, ok := s.slowEMA[sym]
	if !ok {
		slowE = newEMA(s.slowPeriod)
		s.slowEMA[sym] = slowE
	}
	sigE, ok := s.signalEMA[sym]
	if !ok {
		sigE = newEMA(s.signalPeriod)
		s.signalEMA[sym] = sigE
	}

	macd := fastE.update(price) - slowE.update(price)
	signalLine := sigE.update(macd)
	warmed := s.warmup.Observe(sym)

	if !warmed {
		return nil, nil
	}

	nowAbove := macd > signalLine
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

	histogram := macd - signalLine
	strength := histogram
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
		StrategyID: fmt.Sprintf("macd_crossover/%s", s.id),
		RuleID:     ruleID,
	}}, nil
}
