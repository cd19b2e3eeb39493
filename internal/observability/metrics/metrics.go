// Package metrics exposes prometheus instruments for the household billing
// jobs: cycle population, cost enactment and statement delivery.
package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	JobPopulateCycles = "populate_cycles"
	JobEnactCosts     = "enact_costs"
	JobDisableDone    = "disable_completed_costs"
	JobSendStatements = "send_statements"
)

const (
	EnactSkipAlreadyEnacted = "already_enacted"
	EnactSkipNotEnactable   = "not_enactable"
)

const (
	JobReasonDeadlineExceeded = "deadline_exceeded"
	JobReasonUnknown          = "unknown"
)

// Config carries the constant labels stamped on every series.
type Config struct {
	ServiceName string
	Environment string
}

// Metrics captures billing job health signals.
type Metrics struct {
	jobRuns        *prometheus.CounterVec
	jobErrors      *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	cyclesCreated  prometheus.Counter
	costsEnacted   prometheus.Counter
	enactSkips     *prometheus.CounterVec
	statementsSent prometheus.Counter
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// Default returns the singleton metrics registry.
func Default() *Metrics {
	return WithConfig(Config{})
}

// WithConfig returns the singleton metrics registry using config labels.
func WithConfig(cfg Config) *Metrics {
	metricsOnce.Do(func() {
		metrics = newMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return metrics
}

// ResetForTest resets the metrics singleton for tests.
func ResetForTest() {
	metricsOnce = sync.Once{}
	metrics = nil
}

func newMetrics(registerer prometheus.Registerer, cfg Config) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "hearth"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "hearth_job_runs_total",
		Help:        "Billing job runs by name.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "hearth_job_errors_total",
		Help:        "Billing job errors by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"job", "reason"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "hearth_job_duration_seconds",
		Help:        "Billing job latency.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		ConstLabels: constLabels,
	}, []string{"job"})
	cyclesCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "hearth_billing_cycles_created_total",
		Help:        "Billing cycles created by the populate job.",
		ConstLabels: constLabels,
	})
	costsEnacted := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "hearth_costs_enacted_total",
		Help:        "Recurring costs enacted into ledger transactions.",
		ConstLabels: constLabels,
	})
	enactSkips := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "hearth_cost_enact_skips_total",
		Help:        "Cost enactments skipped by reason.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	statementsSent := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "hearth_statements_sent_total",
		Help:        "Housemate statement emails sent.",
		ConstLabels: constLabels,
	})

	registerer.MustRegister(
		jobRuns,
		jobErrors,
		jobDuration,
		cyclesCreated,
		costsEnacted,
		enactSkips,
		statementsSent,
	)

	return &Metrics{
		jobRuns:        jobRuns,
		jobErrors:      jobErrors,
		jobDuration:    jobDuration,
		cyclesCreated:  cyclesCreated,
		costsEnacted:   costsEnacted,
		enactSkips:     enactSkips,
		statementsSent: statementsSent,
	}
}

// IncJobRun increments the run counter for a billing job.
func (m *Metrics) IncJobRun(job string) {
	if m == nil || m.jobRuns == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

// IncJobError increments the job error counter with classification.
func (m *Metrics) IncJobError(job string, err error) {
	if m == nil || m.jobErrors == nil || err == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, classifyJobReason(err)).Inc()
}

// ObserveJobDuration records billing job latency in seconds.
func (m *Metrics) ObserveJobDuration(job string, duration time.Duration) {
	if m == nil || m.jobDuration == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// AddCyclesCreated increments the created cycle counter by count.
func (m *Metrics) AddCyclesCreated(count int) {
	if m == nil || m.cyclesCreated == nil || count <= 0 {
		return
	}
	m.cyclesCreated.Add(float64(count))
}

// IncCostEnacted increments the enacted cost counter.
func (m *Metrics) IncCostEnacted() {
	if m == nil || m.costsEnacted == nil {
		return
	}
	m.costsEnacted.Inc()
}

// IncEnactSkip increments the skip counter for a reason.
func (m *Metrics) IncEnactSkip(reason string) {
	if m == nil || m.enactSkips == nil {
		return
	}
	m.enactSkips.WithLabelValues(reason).Inc()
}

// AddStatementsSent increments the statement counter by count.
func (m *Metrics) AddStatementsSent(count int) {
	if m == nil || m.statementsSent == nil || count <= 0 {
		return
	}
	m.statementsSent.Add(float64(count))
}

func classifyJobReason(err error) string {
	if err == nil {
		return JobReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return JobReasonDeadlineExceeded
	}
	return JobReasonUnknown
}
