package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"quantforge/domain"
	"quantforge/internal/apperr"
)

// SourceSpec describes one CSV file to load as a symbol's bar series,
// mirroring the `data.sources[]` config section.
type SourceSpec struct {
	Symbol     string
	File       string
	DateColumn string
	DateFormat string
}

var csvDateFormats = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// LoadCSV reads an OHLCV CSV file into a domain.Bar slice for symbol, in
// file order; it does not sort the rows.
//
// Expected header (case-insensitive): a date column (name configurable via
// dateColumn, default "date"), open, high, low, close, volume. dateFormat
// overrides the layout tried first; if empty, LoadCSV tries the built-in
// layouts (ISO date, RFC3339, "2006-01-02 15:04:05").
func LoadCSV(spec SourceSpec) ([]domain.Bar, error) {
	f, err := os.Open(spec.File)
	if err != nil {
		return nil, apperr.Newf(apperr.KindData, "market.LoadCSV", "open %q: %v", spec.File, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, apperr.Newf(apperr.KindData, "market.LoadCSV", "read header of %q: %v", spec.File, err)
	}
	colIdx := make(map[string]int, len(header))
	for i, h := range header {
		colIdx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	dateCol := strings.ToLower(spec.DateColumn)
	if dateCol == "" {
		dateCol = "date"
	}
	idx := func(name string) (int, error) {
		i, ok := colIdx[name]
		if !ok {
			return 0, apperr.Newf(apperr.KindData, "market.LoadCSV", "%q missing column %q", spec.File, name)
		}
		return i, nil
	}

	dCol, err := idx(dateCol)
	if err != nil {
		return nil, err
	}
	oCol, err := idx("open")
	if err != nil {
		return nil, err
	}
	hCol, err := idx("high")
	if err != nil {
		return nil, err
	}
	lCol, err := idx("low")
	if err != nil {
		return nil, err
	}
	cCol, err := idx("close")
	if err != nil {
		return nil, err
	}
	vCol, err := idx("volume")
	if err != nil {
		return nil, err
	}

	formats := csvDateFormats
	if spec.DateFormat != "" {
		formats = append([]string{spec.DateFormat}, csvDateFormats...)
	}
	parseDate := func(s string) (time.Time, error) {
		s = strings.TrimSpace(s)
		for _, layout := range formats {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognised date format %q", s)
	}
	parseDecimal := func(s string) (decimal.Decimal, error) {
		return decimal.NewFromString(strings.TrimSpace(s))
	}

	var bars []domain.Bar
	line := 1
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperr.Newf(apperr.KindData, "market.LoadCSV", "%q line %d: %v", spec.File, line+1, err)
		}
		line++

		ts, err := parseDate(row[dCol])
		if err != nil {
			return nil, apperr.Newf(apperr.KindData, "market.LoadCSV", "%q line %d date: %v", spec.File, line, err)
		}
		o, err := parseDecimal(row[oCol])
		if err != nil {
			return nil, apperr.Newf(apperr.KindData, "market.LoadCSV", "%q line %d open: %v", spec.File, line, err)
		}
		hi, err := parseDecimal(row[hCol])
		if err != nil {
			return nil, apperr.Newf(apperr.KindData, "market.LoadCSV", "%q line %d high: %v", spec.File, line, err)
		}
		lo, err := parseDecimal(row[lCol])
		if err != nil {
			return nil, apperr.Newf(apperr.KindData, "market.LoadCSV", "%q line %d low: %v", spec.File, line, err)
		}
		cl, err := parseDecimal(row[cCol])
		if err != nil {
			return nil, apperr.Newf(apperr.KindData, "market.LoadCSV", "%q line %d close: %v", spec.File, line, err)
		}
		vol, err := strconv.ParseInt(strings.TrimSpace(row[vCol]), 10, 64)
		if err != nil {
			return nil, apperr.Newf(apperr.KindData, "market.LoadCSV", "%q line %d volume: %v", spec.File, line, err)
		}

		bars = append(bars, domain.Bar{
			Symbol: spec.Symbol, Timestamp: ts,
			Open: o, High: hi, Low: lo, Close: cl, Volume: vol,
		})
	}

	return bars, nil
}

// LoadSeries loads every source spec into a single Series, preserving the
// given enumeration order for symbol processing priority.
func LoadSeries(specs []SourceSpec) (*Series, error) {
	symbols := make([]string, 0, len(specs))
	bars := make(map[string][]domain.Bar, len(specs))
	for _, spec := range specs {
		rows, err := LoadCSV(spec)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, apperr.Newf(apperr.KindData, "market.LoadSeries", "symbol %s: empty series", spec.Symbol)
		}
		symbols = append(symbols, spec.Symbol)
		bars[spec.Symbol] = rows
	}
	return NewSeries(symbols, bars)
}
