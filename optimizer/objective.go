package optimizer

import "quantforge/portfolio"

// Objective scores a run's statistics. Every objective returns 0.0 when the
// result carries no closed trades, rather than failing.
type Objective func(stats portfolio.Statistics) float64

// Name identifies a built-in objective, used as a config-facing enum.
type Name string

const (
	ObjectiveSharpe       Name = "sharpe_ratio"
	ObjectiveTotalReturn  Name = "total_return"
	ObjectiveMaxDrawdown  Name = "max_drawdown"
	ObjectiveProfitFactor Name = "profit_factor"
	ObjectiveWinRate      Name = "win_rate"
)

// Builtin resolves a Name to its Objective. max_drawdown is negated so
// higher is always better, matching every other objective's polarity.
func Builtin(name Name) (Objective, bool) {
	switch name {
	case ObjectiveSharpe:
		return func(s portfolio.Statistics) float64 {
			if s.TradeCount == 0 {
				return 0.0
			}
			return s.Sharpe
		}, true
	case ObjectiveTotalReturn:
		return func(s portfolio.Statistics) float64 {
			if s.TradeCount == 0 {
				return 0.0
			}
			return s.TotalReturn
		}, true
	case ObjectiveMaxDrawdown:
		return func(s portfolio.Statistics) float64 {
			if s.TradeCount == 0 {
				return 0.0
			}
			return -s.MaxDrawdown
		}, true
	case ObjectiveProfitFactor:
		return func(s portfolio.Statistics) float64 {
			if s.TradeCount == 0 {
				return 0.0
			}
			return s.ProfitFactor
		}, true
	case ObjectiveWinRate:
		return func(s portfolio.Statistics) float64 {
			if s.TradeCount == 0 {
				return 0.0
			}
			return s.WinRate
		}, true
	default:
		return nil, false
	}
}

// Combined linearly combines named builtin objectives by weight. Unknown
// names are skipped rather than erroring, so a caller assembling weights
// from config does not need a prior validation pass.
func Combined(weights map[Name]float64) Objective {
	return func(s portfolio.Statistics) float64 {
		if s.TradeCount == 0 {
			return 0.0
		}
		var total float64
		for name, w := range weights {
			if obj, ok := Builtin(name); ok {
				total += w * obj(s)
			}
		}
		return total
	}
}

// TrainTestCombined scores a train/test pair as trainWeight*sub(train) +
// testWeight*sub(test). Callers typically set testWeight > trainWeight to
// penalize overfitting.
func TrainTestCombined(sub Objective, trainWeight, testWeight float64) func(train, test portfolio.Statistics) float64 {
	return func(train, test portfolio.Statistics) float64 {
		return trainWeight*sub(train) + testWeight*sub(test)
	}
}
