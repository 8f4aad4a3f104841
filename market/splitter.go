package market

import (
	"time"

	"quantforge/domain"
	"quantforge/internal/apperr"
)

// SplitName selects which half of a Split is active.
type SplitName string

const (
	SplitTrain SplitName = "train"
	SplitTest  SplitName = "test"
)

// Split is the train/test partition of a Series produced by a Splitter.
type Split struct {
	Train *Series
	Test  *Series
}

// Series returns the Series for the named half.
func (s *Split) Series(name SplitName) *Series {
	switch name {
	case SplitTrain:
		return s.Train
	case SplitTest:
		return s.Test
	default:
		return nil
	}
}

// Fingerprint returns the content fingerprint of the named half. The
// optimizer compares Fingerprint(SplitTrain) against Fingerprint(SplitTest)
// and must raise an error if they are equal.
func (s *Split) Fingerprint(name SplitName) string {
	ser := s.Series(name)
	if ser == nil {
		return ""
	}
	return ser.Fingerprint()
}

// Feed builds a bar feed over the named half, in symbol enumeration order.
func (s *Split) Feed(name SplitName) *Feed {
	return NewFeed(s.Series(name))
}

// Splitter partitions a full Series into train/test halves.
type Splitter struct {
	full *Series
}

// NewSplitter wraps a fully loaded Series for splitting.
func NewSplitter(full *Series) *Splitter {
	return &Splitter{full: full}
}

func empty(symbols []string) map[string][]domain.Bar {
	m := make(map[string][]domain.Bar, len(symbols))
	for _, sym := range symbols {
		m[sym] = nil
	}
	return m
}

// capped clamps rows[lo:hi] (with bounds checking) to at most maxBars
// entries (0 means uncapped).
func capped(rows []domain.Bar, lo, hi, maxBars int) []domain.Bar {
	if lo < 0 {
		lo = 0
	}
	if lo > len(rows) {
		lo = len(rows)
	}
	if hi > len(rows) {
		hi = len(rows)
	}
	if hi < lo {
		hi = lo
	}
	out := rows[lo:hi]
	if maxBars > 0 && len(out) > maxBars {
		out = out[:maxBars]
	}
	return out
}

// Ratio splits each symbol's series at floor(len · trainRatio). The test
// half begins immediately after the train half and spans floor(len ·
// testRatio) rows; any remainder (when trainRatio+testRatio < 1.0) is
// discarded. maxBars, if positive, caps each half's row count per symbol.
func (s *Splitter) Ratio(trainRatio, testRatio float64, maxBars int) (*Split, error) {
	if trainRatio <= 0 || testRatio <= 0 || trainRatio+testRatio > 1.0 {
		return nil, apperr.Newf(apperr.KindConfig, "market.Splitter.Ratio",
			"invalid ratios train=%v test=%v (must be >0 and sum <= 1.0)", trainRatio, testRatio)
	}

	trainBars := empty(s.full.symbols)
	testBars := empty(s.full.symbols)
	for _, sym := range s.full.symbols {
		rows := s.full.bars[sym]
		n := len(rows)
		trainLen := int(float64(n) * trainRatio)
		testLen := int(float64(n) * testRatio)
		trainBars[sym] = capped(rows, 0, trainLen, maxBars)
		testBars[sym] = capped(rows, trainLen, trainLen+testLen, maxBars)
	}
	return &Split{
		Train: &Series{symbols: s.full.symbols, bars: trainBars},
		Test:  &Series{symbols: s.full.symbols, bars: testBars},
	}, nil
}

// Date splits on a timestamp boundary: train holds rows with timestamp
// strictly before splitDate, test holds rows with timestamp on or after it.
func (s *Splitter) Date(splitDate time.Time, maxBars int) (*Split, error) {
	trainBars := empty(s.full.symbols)
	testBars := empty(s.full.symbols)
	for _, sym := range s.full.symbols {
		var train, test []domain.Bar
		for _, b := range s.full.bars[sym] {
			if b.Timestamp.Before(splitDate) {
				train = append(train, b)
			} else {
				test = append(test, b)
			}
		}
		trainBars[sym] = capped(train, 0, len(train), maxBars)
		testBars[sym] = capped(test, 0, len(test), maxBars)
	}
	return &Split{
		Train: &Series{symbols: s.full.symbols, bars: trainBars},
		Test:  &Series{symbols: s.full.symbols, bars: testBars},
	}, nil
}

// Fixed takes the first trainPeriods rows as train and the next testPeriods
// rows as test, per symbol.
func (s *Splitter) Fixed(trainPeriods, testPeriods, maxBars int) (*Split, error) {
	if trainPeriods <= 0 || testPeriods <= 0 {
		return nil, apperr.Newf(apperr.KindConfig, "market.Splitter.Fixed",
			"trainPeriods and testPeriods must be positive, got %d/%d", trainPeriods, testPeriods)
	}
	trainBars := empty(s.full.symbols)
	testBars := empty(s.full.symbols)
	for _, sym := range s.full.symbols {
		rows := s.full.bars[sym]
		trainBars[sym] = capped(rows, 0, trainPeriods, maxBars)
		testBars[sym] = capped(rows, trainPeriods, trainPeriods+testPeriods, maxBars)
	}
	return &Split{
		Train: &Series{symbols: s.full.symbols, bars: trainBars},
		Test:  &Series{symbols: s.full.symbols, bars: testBars},
	}, nil
}
