package main

import (
	"testing"

	"quantforge/config"
)

func TestConfigSnapshot_RoundTripsBasicFields(t *testing.T) {
	cfg := &config.Config{Strategy: config.StrategyConfig{Name: "ma_crossover"}}
	snap := configSnapshot(cfg)
	strategySection, ok := snap["Strategy"].(map[string]any)
	if !ok {
		t.Fatalf("expected a Strategy section, got %#v", snap)
	}
	if strategySection["Name"] != "ma_crossover" {
		t.Fatalf("got %#v", strategySection)
	}
}

func TestParamSpecMap_ConvertsEveryDimension(t *testing.T) {
	cfg := &config.Config{
		Optimization: config.OptimizationConfig{
			ParameterSpace: map[string]config.ParamSpecConfig{
				"fast_period": {Type: "int", Min: 5, Max: 20, Step: 5},
			},
		},
	}
	specs := paramSpecMap(cfg)
	spec, ok := specs["fast_period"]
	if !ok {
		t.Fatal("expected fast_period to be present")
	}
	if spec.Max != 20 {
		t.Fatalf("max = %v, want 20", spec.Max)
	}
}
