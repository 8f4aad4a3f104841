package builtin

import (
	"fmt"

	"quantforge/strategy"
)

func intParam(params map[string]strategy.ParamValue, key string, def int64) int64 {
	if v, ok := params[key]; ok {
		return v.Int
	}
	return def
}

func floatParam(params map[string]strategy.ParamValue, key string, def float64) float64 {
	if v, ok := params[key]; ok {
		return v.Float
	}
	return def
}

// Register installs every builtin strategy factory into reg under its
// config `strategy.name` key.
func Register(reg *strategy.Registry) error {
	factories := map[string]strategy.Factory{
		"ma_crossover":   newMACrossoverFactory,
		"macd_crossover": newMACDCrossoverFactory,
		"rsi_momentum":   newRSIMomentumFactory,
	}
	for name, factory := range factories {
		if err := reg.Register(name, factory); err != nil {
			return fmt.Errorf("builtin.Register: %w", err)
		}
	}
	return nil
}

func newMACrossoverFactory(params map[string]strategy.ParamValue) (strategy.Strategy, error) {
	fast := intParam(params, "fast_period", 10)
	slow := intParam(params, "slow_period", 30)
	if fast <= 0 || slow <= 0 || fast >= slow {
		return nil, fmt.Errorf("ma_crossover: fast_period must be > 0 and < slow_period, got fast=%d slow=%d", fast, slow)
	}
	return NewMACrossover("ma_crossover", int(fast), int(slow)), nil
}

func newMACDCrossoverFactory(params map[string]strategy.ParamValue) (strategy.Strategy, error) {
	fast := intParam(params, "fast_period", 12)
	slow := intParam(params, "slow_period", 26)
	signal := intParam(params, "signal_period", 9)
	if fast <= 0 || slow <= 0 || signal <= 0 || fast >= slow {
		return nil, fmt.Errorf("macd_crossover: fast_period must be > 0 and < slow_period, got fast=%d slow=%d signal=%d", fast, slow, signal)
	}
	return NewMACDCrossover("macd_crossover", int(fast), int(slow), int(signal)), nil
}

func newRSIMomentumFactory(params map[string]strategy.ParamValue) (strategy.Strategy, error) {
	period := intParam(params, "period", 14)
	oversold := floatParam(params, "oversold", 30)
	overbought := floatParam(params, "overbought", 70)
	if period <= 0 {
		return nil, fmt.Errorf("rsi_momentum: period must be > 0, got %d", period)
	}
	if oversold <= 0 || overbought <= oversold || overbought >= 100 {
		return nil, fmt.Errorf("rsi_momentum: invalid oversold/overbought bounds %.2f/%.2f", oversold, overbought)
	}
	return NewRSIMomentum("rsi_momentum", int(period), oversold, overbought), nil
}
