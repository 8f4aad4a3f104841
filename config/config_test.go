package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
backtest:
  initial_capital: 100000
  symbols: ["AAPL"]
  timeframe: "1d"
  close_positions_eod: true

data:
  source_type: csv
  sources:
    - symbol: AAPL
      file: testdata/aapl.csv
      date_column: date
  train_test_split:
    method: ratio
    train_ratio: 0.7
    test_ratio: 0.3

strategy:
  name: ma_crossover
  parameters:
    fast_period: 10
    slow_period: 30

risk:
  position_sizing_method: fixed
  fixed_quantity: 10
  max_positions: 1
  enforce_single_position: true

broker:
  slippage:
    model: fixed
    slippage_percent: 0.001
  commission:
    type: fixed
    rate: 1.0

optimization:
  method: grid
  objective: sharpe_ratio
  parameter_space:
    fast_period:
      type: int
      min: 5
      max: 20
      step: 5

output:
  results_dir: ./results
  formats: ["csv", "json"]
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_DecodesEverySection(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backtest.InitialCapital.String() != "100000" {
		t.Fatalf("initial_capital = %v", cfg.Backtest.InitialCapital)
	}
	if len(cfg.Backtest.Symbols) != 1 || cfg.Backtest.Symbols[0] != "AAPL" {
		t.Fatalf("symbols = %v", cfg.Backtest.Symbols)
	}
	if cfg.Strategy.Name != "ma_crossover" {
		t.Fatalf("strategy.name = %q", cfg.Strategy.Name)
	}
	if cfg.Risk.FixedQuantity != 10 {
		t.Fatalf("risk.fixed_quantity = %v", cfg.Risk.FixedQuantity)
	}
	if cfg.Optimization.ParameterSpace["fast_period"].Max != 20 {
		t.Fatalf("optimization parameter_space fast_period.max = %v", cfg.Optimization.ParameterSpace["fast_period"].Max)
	}
	if cfg.Output.ResultsDir != "./results" {
		t.Fatalf("output.results_dir = %q", cfg.Output.ResultsDir)
	}
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, sampleYAML+"\nbogus_section:\n  x: 1\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an unrecognized top-level key")
	}
}

func TestValidate_AcceptsSampleConfig(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate_RejectsUnknownSizingMethod(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Risk.PositionSizingMethod = "bogus"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for an unrecognized sizing method")
	}
}

func TestValidate_RejectsZeroInitialCapital(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Backtest.InitialCapital = cfg.Backtest.InitialCapital.Sub(cfg.Backtest.InitialCapital)
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for a zero initial_capital")
	}
}

func TestToSizingConfig_MapsFixedQuantity(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	sizing := cfg.ToSizingConfig()
	if sizing.Method != "fixed" || sizing.FixedQuantity != 10 {
		t.Fatalf("got %+v", sizing)
	}
}

func TestStrategyParams_ConvertsEachValueKind(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	params := cfg.StrategyParams()
	fast, ok := params["fast_period"]
	if !ok || fast.Int != 10 {
		t.Fatalf("fast_period = %+v", fast)
	}
}

func TestToParamSpace_BuildsGridDimensions(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	space, err := cfg.ToParamSpace()
	if err != nil {
		t.Fatalf("ToParamSpace: %v", err)
	}
	combos := space.Grid()
	if len(combos) != 4 {
		t.Fatalf("got %d combinations, want 4 (5,10,15,20)", len(combos))
	}
}
