// Package metrics exposes prometheus instruments for background jobs.
package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	SchedulerErrorTypeDeadlineExceeded = "deadline_exceeded"
	SchedulerErrorTypeDB               = "db"
	SchedulerErrorTypeIssuer           = "issuer"
	SchedulerErrorTypeUnknown          = "unknown"
)

// SchedulerMetrics captures billing scheduler health signals.
type SchedulerMetrics struct {
	jobRuns     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	jobTimeouts *prometheus.CounterVec
	jobErrors   *prometheus.CounterVec
	itemsBilled *prometheus.CounterVec
	runLoopLag  prometheus.Observer
}

var (
	schedulerMetricsOnce sync.Once
	schedulerMetrics     *SchedulerMetrics
)

// Scheduler returns the singleton scheduler metrics registry.
func Scheduler() *SchedulerMetrics {
	schedulerMetricsOnce.Do(func() {
		schedulerMetrics = newSchedulerMetrics(prometheus.DefaultRegisterer)
	})
	return schedulerMetrics
}

// ResetSchedulerMetricsForTest resets the scheduler metrics singleton for tests.
func ResetSchedulerMetricsForTest() {
	schedulerMetricsOnce = sync.Once{}
	schedulerMetrics = nil
}

func newSchedulerMetrics(registerer prometheus.Registerer) *SchedulerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := newFactory(registerer)

	return &SchedulerMetrics{
		jobRuns: factory.counterVec(prometheus.CounterOpts{
			Name: "odontia_scheduler_job_runs_total",
			Help: "Number of scheduler job executions.",
		}, []string{"job"}),
		jobDuration: factory.histogramVec(prometheus.HistogramOpts{
			Name:    "odontia_scheduler_job_duration_seconds",
			Help:    "Scheduler job execution duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		jobTimeouts: factory.counterVec(prometheus.CounterOpts{
			Name: "odontia_scheduler_job_timeouts_total",
			Help: "Number of scheduler jobs that hit their deadline.",
		}, []string{"job"}),
		jobErrors: factory.counterVec(prometheus.CounterOpts{
			Name: "odontia_scheduler_job_errors_total",
			Help: "Number of scheduler job failures by error type.",
		}, []string{"job", "error_type"}),
		itemsBilled: factory.counterVec(prometheus.CounterOpts{
			Name: "odontia_scheduler_items_billed_total",
			Help: "Number of installments billed by the due processor.",
		}, []string{"job"}),
		runLoopLag: factory.histogram(prometheus.HistogramOpts{
			Name:    "odontia_scheduler_run_loop_lag_seconds",
			Help:    "Delay between the scheduled and actual start of a run.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}),
	}
}

type factory struct {
	registerer prometheus.Registerer
}

func newFactory(registerer prometheus.Registerer) factory {
	return factory{registerer: registerer}
}

func (f factory) counterVec(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	vec := prometheus.NewCounterVec(opts, labels)
	f.register(vec)
	return vec
}

func (f factory) histogramVec(opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	vec := prometheus.NewHistogramVec(opts, labels)
	f.register(vec)
	return vec
}

func (f factory) histogram(opts prometheus.HistogramOpts) prometheus.Histogram {
	h := prometheus.NewHistogram(opts)
	f.register(h)
	return h
}

func (f factory) register(collector prometheus.Collector) {
	if err := f.registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			panic(err)
		}
	}
}

func (m *SchedulerMetrics) IncJobRun(job string) {
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) ObserveJobDuration(job string, d time.Duration) {
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *SchedulerMetrics) IncJobTimeout(job string) {
	m.jobTimeouts.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) IncJobError(job string, err error) {
	m.jobErrors.WithLabelValues(job, classifyError(err)).Inc()
}

func (m *SchedulerMetrics) AddItemsBilled(job string, n int) {
	if n <= 0 {
		return
	}
	m.itemsBilled.WithLabelValues(job).Add(float64(n))
}

func (m *SchedulerMetrics) ObserveRunLoopLag(lag time.Duration) {
	m.runLoopLag.Observe(lag.Seconds())
}

func classifyError(err error) string {
	switch {
	case err == nil:
		return SchedulerErrorTypeUnknown
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return SchedulerErrorTypeDeadlineExceeded
	default:
		return SchedulerErrorTypeUnknown
	}
}
