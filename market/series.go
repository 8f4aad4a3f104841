// Package market implements the Bar Source and Data Splitter: loading a
// time-sorted OHLCV series per symbol, partitioning it into train/test
// segments, and feeding bars to the coordinator in deterministic order.
package market

import (
	"fmt"
	"sort"
	"time"

	"quantforge/domain"
	"quantforge/internal/apperr"
)

// Series holds a time-sorted bar slice per symbol. Symbols are iterated in
// the order given to NewSeries, which is the processing order used to break
// same-timestamp ties.
type Series struct {
	symbols []string
	bars    map[string][]domain.Bar
}

// NewSeries validates that each symbol's bars are sorted by strictly
// increasing timestamp and builds a Series. A non-monotonic timestamp is a
// data error (apperr.KindData), not a panic.
func NewSeries(symbols []string, bars map[string][]domain.Bar) (*Series, error) {
	for _, sym := range symbols {
		rows := bars[sym]
		for i := 1; i < len(rows); i++ {
			if !rows[i].Timestamp.After(rows[i-1].Timestamp) {
				return nil, apperr.Newf(apperr.KindData, "market.NewSeries",
					"symbol %s: non-monotonic timestamp at row %d (%s <= %s)",
					sym, i, rows[i].Timestamp, rows[i-1].Timestamp)
			}
		}
	}
	return &Series{symbols: append([]string(nil), symbols...), bars: bars}, nil
}

// Symbols returns the symbol enumeration order.
func (s *Series) Symbols() []string { return append([]string(nil), s.symbols...) }

// Bars returns the bar slice for symbol, or nil if unknown.
func (s *Series) Bars(symbol string) []domain.Bar { return s.bars[symbol] }

// Len returns the total bar count across all symbols.
func (s *Series) Len() int {
	n := 0
	for _, sym := range s.symbols {
		n += len(s.bars[sym])
	}
	return n
}

// Fingerprint computes an opaque content fingerprint from the first and last
// timestamp plus row count of each symbol's bars, combined across symbols.
// Two splits with the same fingerprint are, for reproducibility purposes,
// the same data.
func (s *Series) Fingerprint() string {
	type span struct {
		symbol      string
		first, last time.Time
		count       int
	}
	spans := make([]span, 0, len(s.symbols))
	for _, sym := range s.symbols {
		rows := s.bars[sym]
		sp := span{symbol: sym, count: len(rows)}
		if len(rows) > 0 {
			sp.first = rows[0].Timestamp
			sp.last = rows[len(rows)-1].Timestamp
		}
		spans = append(spans, sp)
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].symbol < spans[j].symbol })

	h := fingerprintHasher()
	for _, sp := range spans {
		fmt.Fprintf(h, "%s|%d|%s|%s;", sp.symbol, sp.count,
			sp.first.UTC().Format(time.RFC3339Nano), sp.last.UTC().Format(time.RFC3339Nano))
	}
	return fmt.Sprintf("%x", h.Sum64())
}
