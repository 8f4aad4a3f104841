// Package report persists a backtest or optimization run's results to disk
// in the four-file layout a caller can archive or diff across runs:
// equity_curve.csv, trades.csv, summary.txt, and results.json.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"quantforge/domain"
	"quantforge/internal/apperr"
	"quantforge/optimizer"
	"quantforge/portfolio"
)

// EvaluationSummary is one optimizer combination's entry in results.json's
// all_results array.
type EvaluationSummary struct {
	Parameters optimizer.Combination `json:"parameters"`
	TrainScore float64                `json:"train_score"`
	TestScore  float64                `json:"test_score"`
}

// Document is the full payload one run or optimization sweep hands to
// Writer.Write. Optimizer-only fields are left zero for a plain backtest.
type Document struct {
	ID     string
	Config map[string]any

	ParameterSpace map[string]optimizer.ParamSpec
	BestParameters optimizer.Combination
	BestScore      *float64
	TrainResults   *portfolio.Statistics
	TestResults    *portfolio.Statistics
	AllResults     []EvaluationSummary
	TrainTestSplit string

	Statistics  portfolio.Statistics
	Trades      []domain.Trade
	EquityCurve []domain.EquityPoint
	Errors      []apperr.LogEntry

	ExecutionTime time.Duration
	Timestamp     time.Time
}

// resultsJSON mirrors Document's fields in the on-disk results.json schema.
type resultsJSON struct {
	ID             string                 `json:"id"`
	Timestamp      string                 `json:"timestamp"`
	Config         map[string]any         `json:"config"`
	ParameterSpace map[string]optimizer.ParamSpec `json:"parameter_space,omitempty"`
	BestParameters optimizer.Combination  `json:"best_parameters,omitempty"`
	BestScore      *float64               `json:"best_score,omitempty"`
	TrainResults   *portfolio.Statistics  `json:"train_results,omitempty"`
	TestResults    *portfolio.Statistics  `json:"test_results,omitempty"`
	AllResults     []EvaluationSummary    `json:"all_results,omitempty"`
	ExecutionTime  string                 `json:"execution_time"`
	TrainTestSplit string                 `json:"train_test_split,omitempty"`
}

// Writer writes a Document under <root>/<id>/.
type Writer struct {
	Root string
}

// New builds a Writer rooted at dir (the config's output.results_dir).
func New(dir string) *Writer {
	return &Writer{Root: dir}
}

// Write creates <root>/<doc.ID>/ and writes all four files into it.
func (w *Writer) Write(doc Document) (string, error) {
	if doc.ID == "" {
		return "", apperr.Newf(apperr.KindInvariant, "report.Writer.Write", "document id must not be empty")
	}
	dir := filepath.Join(w.Root, doc.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperr.New(apperr.KindInvariant, "report.Writer.Write", err)
	}

	if err := writeEquityCurve(filepath.Join(dir, "equity_curve.csv"), doc.EquityCurve); err != nil {
		return dir, err
	}
	if err := writeTrades(filepath.Join(dir, "trades.csv"), doc.Trades); err != nil {
		return dir, err
	}
	if err := writeSummary(filepath.Join(dir, "summary.txt"), doc); err != nil {
		return dir, err
	}
	if err := writeResultsJSON(filepath.Join(dir, "results.json"), doc); err != nil {
		return dir, err
	}
	return dir, nil
}

func writeEquityCurve(path string, points []domain.EquityPoint) error {
	f, err := os.Create(path)
	if err != nil {
		return apperr.New(apperr.KindInvariant, "report.writeEquityCurve", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	if err := w.Write([]string{"timestamp", "cash", "positions_value", "equity"}); err != nil {
		return apperr.New(apperr.KindInvariant, "report.writeEquityCurve", err)
	}
	for _, p := range points {
		row := []string{
			p.Timestamp.UTC().Format(time.RFC3339),
			p.Cash.String(),
			p.PositionsValue.String(),
			p.Equity.String(),
		}
		if err := w.Write(row); err != nil {
			return apperr.New(apperr.KindInvariant, "report.writeEquityCurve", err)
		}
	}
	return nil
}

func writeTrades(path string, trades []domain.Trade) error {
	f, err := os.Create(path)
	if err != nil {
		return apperr.New(apperr.KindInvariant, "report.writeTrades", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	header := []string{
		"trade_id", "symbol", "entry_time", "entry_price", "exit_time", "exit_price",
		"quantity", "direction", "commission", "pnl", "rule_id_open", "rule_id_close", "status",
	}
	if err := w.Write(header); err != nil {
		return apperr.New(apperr.KindInvariant, "report.writeTrades", err)
	}
	for _, t := range trades {
		row := []string{
			t.TradeID,
			t.Symbol,
			t.EntryTime.UTC().Format(time.RFC3339),
			t.EntryPrice.String(),
			t.ExitTime.UTC().Format(time.RFC3339),
			t.ExitPrice.String(),
			strconv.FormatInt(t.Quantity, 10),
			string(t.Direction),
			t.CommissionTotal.String(),
			t.PnL.String(),
			t.RuleIDOpen,
			t.RuleIDClose,
			string(t.Status),
		}
		if err := w.Write(row); err != nil {
			return apperr.New(apperr.KindInvariant, "report.writeTrades", err)
		}
	}
	return nil
}

func writeSummary(path string, doc Document) error {
	f, err := os.Create(path)
	if err != nil {
		return apperr.New(apperr.KindInvariant, "report.writeSummary", err)
	}
	defer f.Close()

	fmt.Fprintf(f, "run %s\n", doc.ID)
	fmt.Fprintf(f, "execution time: %s\n\n", doc.ExecutionTime)

	if doc.BestScore != nil {
		fmt.Fprintf(f, "best parameters: %s\n", doc.BestParameters.String())
		fmt.Fprintf(f, "best score: %.6f\n\n", *doc.BestScore)
		if doc.TrainResults != nil {
			writeStatsBlock(f, "train", *doc.TrainResults)
		}
		if doc.TestResults != nil {
			writeStatsBlock(f, "test", *doc.TestResults)
		}
		fmt.Fprintf(f, "combinations evaluated: %d\n\n", len(doc.AllResults))
	} else {
		writeStatsBlock(f, "run", doc.Statistics)
	}

	writeWarnings(f, doc.Errors)
	return nil
}

func writeStatsBlock(f *os.File, label string, s portfolio.Statistics) {
	fmt.Fprintf(f, "[%s]\n", label)
	fmt.Fprintf(f, "  trades:          %d\n", s.TradeCount)
	fmt.Fprintf(f, "  win rate:        %.4f\n", s.WinRate)
	fmt.Fprintf(f, "  profit factor:   %.4f\n", s.ProfitFactor)
	fmt.Fprintf(f, "  sharpe:          %.4f\n", s.Sharpe)
	fmt.Fprintf(f, "  max drawdown:    %.4f\n", s.MaxDrawdown)
	fmt.Fprintf(f, "  expectancy:      %.4f\n", s.Expectancy)
	fmt.Fprintf(f, "  avg r-multiple:  %.4f\n", s.AvgRMultiple)
	fmt.Fprintf(f, "  total return:    %.4f (%.2f%%)\n\n", s.TotalReturn, s.TotalReturnPct*100)
}

// writeWarnings renders the run's error log as summary.txt's warnings
// section: counts per (op, kind) pair, with up to 5 example messages each.
func writeWarnings(f *os.File, errs []apperr.LogEntry) {
	if len(errs) == 0 {
		fmt.Fprintf(f, "warnings: none\n")
		return
	}

	type key struct {
		op   string
		kind apperr.Kind
	}
	counts := make(map[key]int)
	examples := make(map[key][]string)
	for _, e := range errs {
		k := key{e.Op, e.Kind}
		counts[k]++
		if len(examples[k]) < 5 {
			examples[k] = append(examples[k], e.Message)
		}
	}

	keys := make([]key, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].op != keys[j].op {
			return keys[i].op < keys[j].op
		}
		return keys[i].kind < keys[j].kind
	})

	fmt.Fprintf(f, "warnings (%d total):\n", len(errs))
	for _, k := range keys {
		fmt.Fprintf(f, "  %s [%s]: %d\n", k.op, k.kind, counts[k])
		for _, msg := range examples[k] {
			fmt.Fprintf(f, "    - %s\n", msg)
		}
	}
}

func writeResultsJSON(path string, doc Document) error {
	f, err := os.Create(path)
	if err != nil {
		return apperr.New(apperr.KindInvariant, "report.writeResultsJSON", err)
	}
	defer f.Close()

	payload := resultsJSON{
		ID:             doc.ID,
		Timestamp:      doc.Timestamp.UTC().Format(time.RFC3339),
		Config:         doc.Config,
		ParameterSpace: doc.ParameterSpace,
		BestParameters: doc.BestParameters,
		BestScore:      doc.BestScore,
		TrainResults:   doc.TrainResults,
		TestResults:    doc.TestResults,
		AllResults:     doc.AllResults,
		ExecutionTime:  doc.ExecutionTime.String(),
		TrainTestSplit: doc.TrainTestSplit,
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return apperr.New(apperr.KindInvariant, "report.writeResultsJSON", err)
	}
	return nil
}
