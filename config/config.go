// Package config loads and validates the YAML configuration file that
// drives a backtest or optimization run: which bars to load, which
// strategy and parameters to run, how orders are sized, slipped, and
// commissioned, and where results are written.
package config

import (
	"fmt"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"quantforge/broker"
	"quantforge/optimizer"
	"quantforge/risk"
	"quantforge/strategy"
)

// Config is the top-level configuration. Maps directly onto the YAML
// file's seven top-level sections.
type Config struct {
	Backtest     BacktestConfig     `mapstructure:"backtest"`
	Data         DataConfig         `mapstructure:"data"`
	Strategy     StrategyConfig     `mapstructure:"strategy"`
	Risk         RiskConfig         `mapstructure:"risk"`
	Broker       BrokerConfig       `mapstructure:"broker"`
	Optimization OptimizationConfig `mapstructure:"optimization"`
	Output       OutputConfig       `mapstructure:"output"`
}

// BacktestConfig controls the run's capital, universe, and time bounds.
type BacktestConfig struct {
	InitialCapital  decimal.Decimal `mapstructure:"initial_capital"`
	Symbols         []string        `mapstructure:"symbols"`
	Timeframe       string          `mapstructure:"timeframe"`
	StartDate       string          `mapstructure:"start_date"`
	EndDate         string          `mapstructure:"end_date"`
	ClosePositionsEOD bool          `mapstructure:"close_positions_eod"`
	MaxBars         int             `mapstructure:"max_bars"`
}

// DataSourceConfig describes one symbol's CSV file.
type DataSourceConfig struct {
	Symbol       string `mapstructure:"symbol"`
	File         string `mapstructure:"file"`
	DateColumn   string `mapstructure:"date_column"`
	DateFormat   string `mapstructure:"date_format"`
	PriceColumn  string `mapstructure:"price_column"`
}

// TrainTestSplitConfig selects how the data splitter partitions the loaded
// series. Method is one of "ratio", "date", "fixed"; only the fields the
// chosen method reads need be set.
type TrainTestSplitConfig struct {
	Method        string  `mapstructure:"method"`
	TrainRatio    float64 `mapstructure:"train_ratio"`
	TestRatio     float64 `mapstructure:"test_ratio"`
	SplitDate     string  `mapstructure:"split_date"`
	TrainPeriods  int     `mapstructure:"train_periods"`
	TestPeriods   int     `mapstructure:"test_periods"`
}

type DataConfig struct {
	SourceType     string               `mapstructure:"source_type"`
	Sources        []DataSourceConfig   `mapstructure:"sources"`
	TrainTestSplit TrainTestSplitConfig `mapstructure:"train_test_split"`
}

// StrategyConfig selects a registered strategy by name and its parameters.
// Parameters are decoded loosely (the registry's factory is responsible
// for interpreting them); see strategy.ParamValue.
type StrategyConfig struct {
	Name       string         `mapstructure:"name"`
	Parameters map[string]any `mapstructure:"parameters"`
}

// DrawdownControlConfig mirrors risk.DrawdownControl.
type DrawdownControlConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	ReduceAt     float64 `mapstructure:"reduce_at"`
	ReduceFactor float64 `mapstructure:"reduce_factor"`
	CutoffAt     float64 `mapstructure:"cutoff_at"`
}

// RiskConfig mirrors the `risk` YAML section onto risk.SizingConfig plus
// the portfolio-level gates layered on top of it.
type RiskConfig struct {
	PositionSizingMethod  string                `mapstructure:"position_sizing_method"`
	FixedQuantity         int64                 `mapstructure:"fixed_quantity"`
	EquityPercent         float64               `mapstructure:"equity_percent"`
	RiskPercent           float64               `mapstructure:"risk_percent"`
	StopPercent           float64               `mapstructure:"stop_percent"`
	ATRMultiple           float64               `mapstructure:"atr_multiple"`
	ATRPeriod             int                   `mapstructure:"atr_period"`
	MaxPositions          int                   `mapstructure:"max_positions"`
	EnforceSinglePosition bool                  `mapstructure:"enforce_single_position"`
	DrawdownControl       DrawdownControlConfig `mapstructure:"drawdown_control"`
}

// CommissionTierConfig mirrors broker.CommissionTier.
type CommissionTierConfig struct {
	UpToNotional float64 `mapstructure:"up_to_notional"`
	Rate         float64 `mapstructure:"rate"`
}

type SlippageConfig struct {
	Model            string  `mapstructure:"model"`
	SlippagePercent  float64 `mapstructure:"slippage_percent"`
	Base             float64 `mapstructure:"base"`
	SizeImpact       float64 `mapstructure:"size_impact"`
	VolatilityImpact float64 `mapstructure:"volatility_impact"`
	RandomFactor     float64 `mapstructure:"random_factor"`
	AvgVolume        float64 `mapstructure:"avg_volume"`
}

type CommissionConfig struct {
	Type          string                 `mapstructure:"type"`
	Rate          float64                `mapstructure:"rate"`
	MinCommission float64                `mapstructure:"min"`
	MaxCommission float64                `mapstructure:"max"`
	Tiers         []CommissionTierConfig `mapstructure:"tiers"`
}

type BrokerConfig struct {
	Slippage   SlippageConfig   `mapstructure:"slippage"`
	Commission CommissionConfig `mapstructure:"commission"`
}

// ParamSpecConfig mirrors optimizer.ParamSpec for one named parameter
// dimension.
type ParamSpecConfig struct {
	Type   string   `mapstructure:"type"`
	Min    float64  `mapstructure:"min"`
	Max    float64  `mapstructure:"max"`
	Step   float64  `mapstructure:"step"`
	Values []string `mapstructure:"values"`
}

type OptimizationConfig struct {
	Method         string                     `mapstructure:"method"`
	Objective      string                     `mapstructure:"objective"`
	ParameterSpace map[string]ParamSpecConfig `mapstructure:"parameter_space"`
	TrainWeight    float64                    `mapstructure:"train_weight"`
	TestWeight     float64                    `mapstructure:"test_weight"`
	MaxEvaluations int                        `mapstructure:"max_evaluations"`
	MaxTime        time.Duration              `mapstructure:"max_time"`
	RandomSeed     int64                      `mapstructure:"random_seed"`
	Workers        int                        `mapstructure:"workers"`
}

type OutputConfig struct {
	ResultsDir string   `mapstructure:"results_dir"`
	Formats    []string `mapstructure:"formats"`
}

var closedEnums = map[string][]string{
	"risk.position_sizing_method": {"fixed", "percent_equity", "percent_risk", "volatility"},
	"broker.slippage.model":       {"fixed", "variable"},
	"broker.commission.type":      {"percentage", "fixed", "per_share", "tiered"},
	"optimization.method":         {"grid", "random", "walk_forward"},
	"optimization.objective":      {"sharpe_ratio", "total_return", "max_drawdown", "profit_factor", "win_rate", "combined"},
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

// decimalHookFunc decodes YAML scalars (string, int, float) into
// decimal.Decimal so initial_capital can be written either as 100000 or
// "100000.00" without losing precision to a float64 round trip.
func decimalHookFunc(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != decimalType {
		return data, nil
	}
	switch v := data.(type) {
	case decimal.Decimal:
		return v, nil
	case string:
		return decimal.NewFromString(v)
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	default:
		return data, nil
	}
}

// Load reads path as YAML, rejects unknown keys, and returns the decoded,
// unvalidated Config. Call Validate before using it.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		decimalHookFunc,
	)
	if err := v.UnmarshalExact(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("config.Load: decode %q: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks closed enums and field combinations that Load cannot
// catch structurally. A non-nil error means the config is unusable and the
// caller should exit 1.
func (c *Config) Validate() error {
	if err := checkEnum("risk.position_sizing_method", c.Risk.PositionSizingMethod); err != nil {
		return err
	}
	if c.Broker.Slippage.Model != "" {
		if err := checkEnum("broker.slippage.model", c.Broker.Slippage.Model); err != nil {
			return err
		}
	}
	if c.Broker.Commission.Type != "" {
		if err := checkEnum("broker.commission.type", c.Broker.Commission.Type); err != nil {
			return err
		}
	}
	if c.Optimization.Method != "" {
		if err := checkEnum("optimization.method", c.Optimization.Method); err != nil {
			return err
		}
	}
	if c.Optimization.Objective != "" && c.Optimization.Objective != "combined" {
		if err := checkEnum("optimization.objective", c.Optimization.Objective); err != nil {
			return err
		}
	}
	if c.Backtest.InitialCapital.IsZero() || c.Backtest.InitialCapital.IsNegative() {
		return fmt.Errorf("config: backtest.initial_capital must be > 0")
	}
	if len(c.Backtest.Symbols) == 0 {
		return fmt.Errorf("config: backtest.symbols must not be empty")
	}
	if c.Strategy.Name == "" {
		return fmt.Errorf("config: strategy.name is required")
	}
	if len(c.Data.Sources) == 0 {
		return fmt.Errorf("config: data.sources must not be empty")
	}
	if c.Output.ResultsDir == "" {
		return fmt.Errorf("config: output.results_dir is required")
	}
	return nil
}

func checkEnum(field, value string) error {
	allowed := closedEnums[field]
	for _, a := range allowed {
		if a == value {
			return nil
		}
	}
	return fmt.Errorf("config: %s = %q is not one of %v", field, value, allowed)
}

// ToSizingConfig builds a risk.SizingConfig from the risk section.
func (c *Config) ToSizingConfig() risk.SizingConfig {
	return risk.SizingConfig{
		Method:        risk.SizingMethod(c.Risk.PositionSizingMethod),
		FixedQuantity: c.Risk.FixedQuantity,
		EquityPercent: c.Risk.EquityPercent,
		RiskPercent:   c.Risk.RiskPercent,
		StopPercent:   c.Risk.StopPercent,
		ATRMultiple:   c.Risk.ATRMultiple,
	}
}

// ToDrawdownControl builds a risk.DrawdownControl from the risk section.
func (c *Config) ToDrawdownControl() risk.DrawdownControl {
	d := c.Risk.DrawdownControl
	return risk.DrawdownControl{
		Enabled:      d.Enabled,
		ReduceAt:     d.ReduceAt,
		ReduceFactor: d.ReduceFactor,
		CutoffAt:     d.CutoffAt,
	}
}

// ToSlippageConfig builds a broker.SlippageConfig from the broker section.
func (c *Config) ToSlippageConfig() broker.SlippageConfig {
	s := c.Broker.Slippage
	return broker.SlippageConfig{
		Model:            broker.SlippageModel(s.Model),
		SlippagePercent:  s.SlippagePercent,
		Base:             s.Base,
		SizeImpact:       s.SizeImpact,
		VolatilityImpact: s.VolatilityImpact,
		RandomFactor:     s.RandomFactor,
		AvgVolume:        s.AvgVolume,
	}
}

// ToCommissionConfig builds a broker.CommissionConfig from the broker
// section.
func (c *Config) ToCommissionConfig() broker.CommissionConfig {
	cm := c.Broker.Commission
	tiers := make([]broker.CommissionTier, 0, len(cm.Tiers))
	for _, t := range cm.Tiers {
		tiers = append(tiers, broker.CommissionTier{UpToNotional: t.UpToNotional, Rate: t.Rate})
	}
	return broker.CommissionConfig{
		Model:         broker.CommissionModel(cm.Type),
		Rate:          cm.Rate,
		MinCommission: cm.MinCommission,
		MaxCommission: cm.MaxCommission,
		Tiers:         tiers,
	}
}

// StrategyParams converts the strategy section's loosely-typed parameters
// map (decoded from YAML as map[string]any) into the strategy package's
// tagged ParamValue union a Registry.Build call expects. Unrecognized
// value types are carried through as their string form.
func (c *Config) StrategyParams() map[string]strategy.ParamValue {
	out := make(map[string]strategy.ParamValue, len(c.Strategy.Parameters))
	for name, v := range c.Strategy.Parameters {
		switch val := v.(type) {
		case int:
			out[name] = strategy.IntParam(int64(val))
		case int64:
			out[name] = strategy.IntParam(val)
		case float64:
			if val == float64(int64(val)) {
				out[name] = strategy.IntParam(int64(val))
			} else {
				out[name] = strategy.FloatParam(val)
			}
		case string:
			out[name] = strategy.StringParam(val)
		case bool:
			if val {
				out[name] = strategy.StringParam("true")
			} else {
				out[name] = strategy.StringParam("false")
			}
		default:
			out[name] = strategy.StringParam(fmt.Sprintf("%v", val))
		}
	}
	return out
}

// ToParamSpace builds an optimizer.ParamSpace from the optimization
// section's parameter_space map.
func (c *Config) ToParamSpace() (*optimizer.ParamSpace, error) {
	specs := make(map[string]optimizer.ParamSpec, len(c.Optimization.ParameterSpace))
	for name, p := range c.Optimization.ParameterSpace {
		specs[name] = optimizer.ParamSpec{
			Type:   optimizer.ParamType(p.Type),
			Min:    p.Min,
			Max:    p.Max,
			Step:   p.Step,
			Values: p.Values,
		}
	}
	return optimizer.NewParamSpace(specs)
}
