package market

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"quantforge/domain"
)

func bar(sym string, day int) domain.Bar {
	ts := time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC)
	px := decimal.NewFromFloat(float64(100 + day))
	return domain.Bar{Symbol: sym, Timestamp: ts, Open: px, High: px, Low: px, Close: px, Volume: 1000}
}

func makeBars(sym string, n int) []domain.Bar {
	rows := make([]domain.Bar, n)
	for i := 0; i < n; i++ {
		rows[i] = bar(sym, i+1)
	}
	return rows
}

func TestNewSeries_RejectsNonMonotonic(t *testing.T) {
	rows := []domain.Bar{bar("X", 2), bar("X", 1)}
	_, err := NewSeries([]string{"X"}, map[string][]domain.Bar{"X": rows})
	if err == nil {
		t.Fatal("expected error for non-monotonic timestamps")
	}
}

func TestSeries_Fingerprint_DiffersOnContent(t *testing.T) {
	a, _ := NewSeries([]string{"X"}, map[string][]domain.Bar{"X": makeBars("X", 10)})
	b, _ := NewSeries([]string{"X"}, map[string][]domain.Bar{"X": makeBars("X", 11)})
	if a.Fingerprint() == b.Fingerprint() {
		t.Fatal("expected differing fingerprints for differing row counts")
	}
}

func TestSplitter_Ratio(t *testing.T) {
	series, _ := NewSeries([]string{"X"}, map[string][]domain.Bar{"X": makeBars("X", 100)})
	split, err := NewSplitter(series).Ratio(0.7, 0.3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(split.Train.Bars("X")) != 70 {
		t.Fatalf("train len = %d, want 70", len(split.Train.Bars("X")))
	}
	if len(split.Test.Bars("X")) != 30 {
		t.Fatalf("test len = %d, want 30", len(split.Test.Bars("X")))
	}
	if split.Fingerprint(SplitTrain) == split.Fingerprint(SplitTest) {
		t.Fatal("train and test fingerprints must differ for a non-trivial split")
	}
}

func TestSplitter_Ratio_RemainderDiscarded(t *testing.T) {
	series, _ := NewSeries([]string{"X"}, map[string][]domain.Bar{"X": makeBars("X", 100)})
	split, err := NewSplitter(series).Ratio(0.5, 0.3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(split.Train.Bars("X")) != 50 || len(split.Test.Bars("X")) != 30 {
		t.Fatalf("got train=%d test=%d", len(split.Train.Bars("X")), len(split.Test.Bars("X")))
	}
}

func TestSplitter_Date(t *testing.T) {
	series, _ := NewSeries([]string{"X"}, map[string][]domain.Bar{"X": makeBars("X", 20)})
	cut := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	split, err := NewSplitter(series).Date(cut, 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range split.Train.Bars("X") {
		if !b.Timestamp.Before(cut) {
			t.Fatalf("train bar %s not before cut", b.Timestamp)
		}
	}
	for _, b := range split.Test.Bars("X") {
		if b.Timestamp.Before(cut) {
			t.Fatalf("test bar %s before cut", b.Timestamp)
		}
	}
}

func TestSplitter_Fixed(t *testing.T) {
	series, _ := NewSeries([]string{"X"}, map[string][]domain.Bar{"X": makeBars("X", 50)})
	split, err := NewSplitter(series).Fixed(30, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(split.Train.Bars("X")) != 30 || len(split.Test.Bars("X")) != 10 {
		t.Fatalf("got train=%d test=%d", len(split.Train.Bars("X")), len(split.Test.Bars("X")))
	}
}

func TestSplitter_MaxBarsCap(t *testing.T) {
	series, _ := NewSeries([]string{"X"}, map[string][]domain.Bar{"X": makeBars("X", 100)})
	split, err := NewSplitter(series).Ratio(0.7, 0.3, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(split.Train.Bars("X")) != 10 {
		t.Fatalf("train len = %d, want capped at 10", len(split.Train.Bars("X")))
	}
}

func TestSplitter_EmptySplit(t *testing.T) {
	series, _ := NewSeries([]string{"X"}, map[string][]domain.Bar{"X": makeBars("X", 5)})
	split, err := NewSplitter(series).Fixed(5, 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(split.Test.Bars("X")) != 0 {
		t.Fatalf("expected empty test split, got %d rows", len(split.Test.Bars("X")))
	}
}

func TestFeed_NextRound_MultiSymbolOrder(t *testing.T) {
	series, _ := NewSeries([]string{"A", "B"}, map[string][]domain.Bar{
		"A": makeBars("A", 2),
		"B": makeBars("B", 3),
	})
	feed := NewFeed(series)

	round, ok := feed.NextRound()
	if !ok || len(round) != 2 || round[0].Symbol != "A" || round[1].Symbol != "B" {
		t.Fatalf("round 1 = %+v", round)
	}
	round, ok = feed.NextRound()
	if !ok || len(round) != 2 {
		t.Fatalf("round 2 = %+v", round)
	}
	round, ok = feed.NextRound()
	if !ok || len(round) != 1 || round[0].Symbol != "B" {
		t.Fatalf("round 3 = %+v", round)
	}
	if _, ok := feed.NextRound(); ok {
		t.Fatal("expected feed exhausted")
	}
}

func TestFeed_Reset(t *testing.T) {
	series, _ := NewSeries([]string{"X"}, map[string][]domain.Bar{"X": makeBars("X", 3)})
	feed := NewFeed(series)
	feed.NextRound()
	feed.NextRound()
	feed.Reset()
	round, ok := feed.NextRound()
	if !ok || round[0].Timestamp != makeBars("X", 3)[0].Timestamp {
		t.Fatalf("reset did not rewind cursor, got %+v", round)
	}
}
