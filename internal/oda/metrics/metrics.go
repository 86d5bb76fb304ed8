// Package metrics wires a dedicated prometheus registry for the
// runtime, exposed through Context once started (§C supplemented
// feature 1).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles the counters/histograms this runtime populates.
type Registry struct {
	Reg *prometheus.Registry

	SessionsCreated  prometheus.Counter
	SessionsDeleted  prometheus.Counter
	ExecutorAttempts prometheus.Histogram
	RetriesEmitted   prometheus.Counter
}

// New constructs and registers every metric on a fresh registry.
func New() *Registry {
	reg := prometheus.NewRegistry()

	m := &Registry{
		Reg: reg,
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oda_sessions_created_total",
			Help: "Total sessions created by SessionManager.",
		}),
		SessionsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oda_sessions_deleted_total",
			Help: "Total sessions deleted or idle-reaped by SessionManager.",
		}),
		ExecutorAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "oda_executor_attempts",
			Help:    "Number of engine-run attempts per RetryingExecutor.run_async invocation.",
			Buckets: prometheus.LinearBuckets(1, 1, 6),
		}),
		RetriesEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oda_executor_retries_total",
			Help: "Total RETRY_ATTEMPT events emitted across all executors.",
		}),
	}

	reg.MustRegister(m.SessionsCreated, m.SessionsDeleted, m.ExecutorAttempts, m.RetriesEmitted)
	return m
}
