// Package metrics exposes Prometheus collectors for a relay run and pushes
// them to a Pushgateway, since a single-run process is never scraped.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Recorder owns the collectors of one run.
type Recorder struct {
	registry *prometheus.Registry

	rowsFetched  prometheus.Counter
	measurements *prometheus.CounterVec
	deliveries   *prometheus.CounterVec
	runDuration  prometheus.Gauge
	lastSuccess  prometheus.Gauge
	runs         *prometheus.CounterVec
}

// New registers the run collectors against a private registry.
func New() (*Recorder, error) {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		rowsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "diftar_rows_fetched_total",
			Help: "Rows read from the portal listing.",
		}),
		measurements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "diftar_measurements_total",
			Help: "Parsed measurements partitioned by waste category.",
		}, []string{"category"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "energyid_deliveries_total",
			Help: "Category outcomes partitioned by category and outcome.",
		}, []string{"category", "outcome"}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "diftar2energyid_run_duration_seconds",
			Help: "Wall time of the last run.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "diftar2energyid_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "diftar2energyid_runs_total",
			Help: "Runs partitioned by result.",
		}, []string{"result"}),
	}
	for _, collector := range []prometheus.Collector{
		r.rowsFetched,
		r.measurements,
		r.deliveries,
		r.runDuration,
		r.lastSuccess,
		r.runs,
	} {
		if err := r.registry.Register(collector); err != nil {
			return nil, fmt.Errorf("register run collector: %w", err)
		}
	}
	return r, nil
}

// Registry exposes the private registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveRows records rows read from the portal.
func (r *Recorder) ObserveRows(n int) {
	r.rowsFetched.Add(float64(n))
}

// ObserveMeasurements records n parsed measurements for a category.
func (r *Recorder) ObserveMeasurements(category string, n int) {
	r.measurements.WithLabelValues(category).Add(float64(n))
}

// ObserveDelivery records a category outcome.
func (r *Recorder) ObserveDelivery(category, outcome string) {
	r.deliveries.WithLabelValues(category, outcome).Inc()
}

// ObserveRun records the duration and result of a run that finished at end.
func (r *Recorder) ObserveRun(duration time.Duration, end time.Time, err error) {
	r.runDuration.Set(duration.Seconds())
	if err != nil {
		r.runs.WithLabelValues("failure").Inc()
		return
	}
	r.runs.WithLabelValues("success").Inc()
	r.lastSuccess.Set(float64(end.Unix()))
}

// Push replaces the job's metric group on the Pushgateway at url.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
