package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	coordinatorOnce sync.Once
	coordinatorReg  *CoordinatorMetrics

	overdueOnce sync.Once
	overdueReg  *OverdueMetrics
)

// CoordinatorMetrics exposes Prometheus collectors for settlement actions.
type CoordinatorMetrics struct {
	actions     *prometheus.CounterVec
	confirmWait *prometheus.HistogramVec
	refreshes   *prometheus.CounterVec
}

// Coordinator returns the lazily-initialised coordinator metrics registry.
func Coordinator() *CoordinatorMetrics {
	coordinatorOnce.Do(func() {
		coordinatorReg = &CoordinatorMetrics{
			actions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "peerlend",
				Subsystem: "coordinator",
				Name:      "actions_total",
				Help:      "Settlement actions segmented by action and outcome.",
			}, []string{"action", "outcome"}),
			confirmWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "peerlend",
				Subsystem: "coordinator",
				Name:      "confirmation_wait_seconds",
				Help:      "Time spent waiting for transaction inclusion.",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
			}, []string{"action"}),
			refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "peerlend",
				Subsystem: "coordinator",
				Name:      "reconciliations_total",
				Help:      "Read-model refreshes segmented by trigger and outcome.",
			}, []string{"trigger", "outcome"}),
		}
		prometheus.MustRegister(
			coordinatorReg.actions,
			coordinatorReg.confirmWait,
			coordinatorReg.refreshes,
		)
	})
	return coordinatorReg
}

// RecordAction counts a finished settlement action.
func (m *CoordinatorMetrics) RecordAction(action, outcome string) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(action, outcome).Inc()
}

// ObserveConfirmation records how long the confirmation wait took.
func (m *CoordinatorMetrics) ObserveConfirmation(action string, d time.Duration) {
	if m == nil {
		return
	}
	m.confirmWait.WithLabelValues(action).Observe(d.Seconds())
}

// RecordRefresh counts a reconciliation attempt.
func (m *CoordinatorMetrics) RecordRefresh(trigger, outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(trigger, outcome).Inc()
}

// OverdueMetrics instruments the overdue watcher daemon.
type OverdueMetrics struct {
	sweeps  *prometheus.CounterVec
	flagged prometheus.Counter
}

// Overdue returns the lazily-initialised watcher metrics registry.
func Overdue() *OverdueMetrics {
	overdueOnce.Do(func() {
		overdueReg = &OverdueMetrics{
			sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "peerlend",
				Subsystem: "overdued",
				Name:      "sweeps_total",
				Help:      "Contract sweeps segmented by outcome.",
			}, []string{"outcome"}),
			flagged: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "peerlend",
				Subsystem: "overdued",
				Name:      "loans_flagged_total",
				Help:      "Loans submitted for on-chain overdue marking.",
			}),
		}
		prometheus.MustRegister(overdueReg.sweeps, overdueReg.flagged)
	})
	return overdueReg
}

// RecordSweep counts a finished sweep and the loans it flagged.
func (m *OverdueMetrics) RecordSweep(outcome string, flagged int) {
	if m == nil {
		return
	}
	m.sweeps.WithLabelValues(outcome).Inc()
	if flagged > 0 {
		m.flagged.Add(float64(flagged))
	}
}
