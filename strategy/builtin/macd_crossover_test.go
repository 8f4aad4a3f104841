package builtin

import (
	"testing"

	"quantforge/domain"
)

func TestMACDCrossover_NoSignalDuringWarmup(t *testing.T) {
	s := NewMACDCrossover("t1", 3, 6, 3)
	bars := feedPrices(t, []float64{100, 100, 100, 100})
	for _, b := range bars {
		sigs, _ := s.OnBar(b)
		if len(sigs) != 0 {
			t.Fatalf("unexpected signal during warm-up: %+v", sigs)
		}
	}
}

func TestMACDCrossover_EmitsOnUptrend(t *testing.T) {
	s := NewMACDCrossover("t1", 3, 6, 3)
	prices := make([]float64, 0, 40)
	for i := 0; i < 15; i++ {
		prices = append(prices, 100)
	}
	for i := 0; i < 25; i++ {
		prices = append(prices, 100+float64(i)*2)
	}
	bars := feedPrices(t, prices)

	var all []domain.Signal
	for _, b := range bars {
		sigs, err := s.OnBar(b)
		if err != nil {
			t.Fatal(err)
		}
		all = append(all, sigs...)
	}
	if len(all) == 0 {
		t.Fatal("expected at least one signal across the uptrend")
	}
}

func TestMACDCrossover_Parameters(t *testing.T) {
	s := NewMACDCrossover("t1", 12, 26, 9)
	params := s.Parameters()
	if params["fast_period"].Int != 12 || params["slow_period"].Int != 26 || params["signal_period"].Int != 9 {
		t.Fatalf("got %+v", params)
	}
}
