package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the Prometheus exposition surface for a backtestctl process.
// It mirrors the shape of a live trading bot's metrics (orders, fills,
// equity, risk gates) but repurposed for offline run observability: bars
// processed, fills simulated, handler errors recovered, and optimizer
// progress.
type Metrics struct {
	registry *prometheus.Registry

	BarsProcessed         prometheus.Counter
	OrdersFilled          *prometheus.CounterVec
	HandlerErrors         *prometheus.CounterVec
	RunsCompleted         *prometheus.CounterVec
	RunDuration           prometheus.Histogram
	Equity                prometheus.Gauge
	CombinationsEvaluated prometheus.Counter
	CombinationDuration   prometheus.Histogram
	ActiveWorkers         prometheus.Gauge
}

// NewMetrics builds and registers the full metric set against a fresh
// registry. Each backtestctl process owns exactly one.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		BarsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quantforge_bars_processed_total",
			Help: "Bars dispatched through the event bus across all runs.",
		}),
		OrdersFilled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quantforge_orders_filled_total",
			Help: "Simulated fills by side.",
		}, []string{"side"}),
		HandlerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quantforge_handler_errors_total",
			Help: "Event bus handler errors recovered, by component.",
		}, []string{"component"}),
		RunsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quantforge_runs_completed_total",
			Help: "Completed backtest runs, by whether the run finished incomplete.",
		}, []string{"incomplete"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quantforge_run_duration_seconds",
			Help:    "Wall-clock duration of a single backtest run.",
			Buckets: prometheus.DefBuckets,
		}),
		Equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quantforge_equity",
			Help: "Most recently observed portfolio equity across any active run.",
		}),
		CombinationsEvaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quantforge_optimizer_combinations_evaluated_total",
			Help: "Parameter combinations evaluated by the optimizer.",
		}),
		CombinationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quantforge_optimizer_combination_duration_seconds",
			Help:    "Wall-clock duration of one optimizer train+test evaluation.",
			Buckets: prometheus.DefBuckets,
		}),
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quantforge_optimizer_active_workers",
			Help: "Optimizer worker goroutines currently evaluating a combination.",
		}),
	}

	reg.MustRegister(
		m.BarsProcessed,
		m.OrdersFilled,
		m.HandlerErrors,
		m.RunsCompleted,
		m.RunDuration,
		m.Equity,
		m.CombinationsEvaluated,
		m.CombinationDuration,
		m.ActiveWorkers,
	)
	return m
}

// Handler serves the registry in Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func incompleteLabel(incomplete bool) string {
	if incomplete {
		return "true"
	}
	return "false"
}

// ObserveRun records one completed run's duration and completion status.
func (m *Metrics) ObserveRun(incomplete bool, durationSeconds float64) {
	m.RunsCompleted.WithLabelValues(incompleteLabel(incomplete)).Inc()
	m.RunDuration.Observe(durationSeconds)
}

// ObserveCombination records one optimizer combination's evaluation.
func (m *Metrics) ObserveCombination(durationSeconds float64) {
	m.CombinationsEvaluated.Inc()
	m.CombinationDuration.Observe(durationSeconds)
}
