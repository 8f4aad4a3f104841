// Command backtestctl loads a YAML configuration, runs a backtest or a
// parameter optimization over CSV bar data, and persists the results.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"quantforge/internal/apperr"
)

var rootCmd = &cobra.Command{
	Use:   "backtestctl",
	Short: "Run and optimize event-driven trading strategy backtests",
	Long: `backtestctl loads a strategy, a risk and broker configuration, and a
set of CSV bar files, then either runs a single backtest or searches a
parameter space for the best-performing combination.`,
}

var metricsAddr string

func main() {
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "",
		"if set, serve Prometheus metrics at http://<addr>/metrics for the life of the process")
	rootCmd.AddCommand(backtestCmd)
	rootCmd.AddCommand(optimizeCmd)
	os.Exit(exitCode(rootCmd.Execute()))
}

// exitCode maps a command error to the process exit status: 0 on success,
// 1 for a configuration problem, 2 for a data problem, 3 for anything else
// (contract violations, panics, invariant failures, timeouts — all of
// which mean the run itself did not complete cleanly).
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintln(os.Stderr, "backtestctl:", err)
	kind, ok := apperr.KindOf(err)
	if !ok {
		return 3
	}
	switch kind {
	case apperr.KindConfig:
		return 1
	case apperr.KindData:
		return 2
	default:
		return 3
	}
}
