package market

import "quantforge/domain"

// Feed walks a Series bar-by-bar in the coordinator's iteration order: each
// NextRound call advances every symbol that still has bars by one bar,
// visiting symbols in enumeration order, so that same-timestamp bars across
// symbols are delivered in a stable order.
type Feed struct {
	series  *Series
	cursors map[string]int
}

// NewFeed builds a Feed over series, positioned at the start.
func NewFeed(series *Series) *Feed {
	f := &Feed{series: series, cursors: make(map[string]int)}
	f.Reset()
	return f
}

// Reset rewinds every symbol's cursor to the beginning.
func (f *Feed) Reset() {
	for _, sym := range f.series.symbols {
		f.cursors[sym] = 0
	}
}

// NextRound returns the next bar for every symbol that still has one
// remaining, in symbol enumeration order, and advances their cursors. It
// returns ok=false once every symbol is exhausted.
func (f *Feed) NextRound() (bars []domain.Bar, ok bool) {
	for _, sym := range f.series.symbols {
		rows := f.series.bars[sym]
		i := f.cursors[sym]
		if i >= len(rows) {
			continue
		}
		bars = append(bars, rows[i])
		f.cursors[sym] = i + 1
	}
	return bars, len(bars) > 0
}

// Symbols returns the feed's symbol enumeration order.
func (f *Feed) Symbols() []string { return f.series.Symbols() }

// Remaining reports whether any symbol still has unconsumed bars.
func (f *Feed) Remaining() bool {
	for _, sym := range f.series.symbols {
		if f.cursors[sym] < len(f.series.bars[sym]) {
			return true
		}
	}
	return false
}
