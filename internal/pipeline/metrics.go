// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pdiddy/edu-pipeline/pkg/types"
)

const (
	statusSuccess = "success"
	statusFailure = "failure"
)

// Metrics records pipeline run outcomes. A nil *Metrics records nothing.
type Metrics struct {
	runs        *prometheus.CounterVec
	records     *prometheus.GaugeVec
	duration    prometheus.Histogram
	lastSuccess prometheus.Gauge
}

// NewMetrics registers the pipeline collectors with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edu_pipeline_runs_total",
				Help: "Pipeline runs by outcome.",
			},
			[]string{"status"},
		),
		records: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "edu_pipeline_records_loaded",
				Help: "Records written by the last successful run, per table.",
			},
			[]string{"dataset"},
		),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "edu_pipeline_run_duration_seconds",
			Help:    "Wall time of pipeline runs.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "edu_pipeline_last_success_timestamp_seconds",
			Help: "Unix time the last successful run finished.",
		}),
	}
	for _, c := range []prometheus.Collector{m.runs, m.records, m.duration, m.lastSuccess} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(s RunSummary, err error) {
	if m == nil {
		return
	}
	m.duration.Observe(s.Duration().Seconds())
	if err != nil {
		m.runs.WithLabelValues(statusFailure).Inc()
		return
	}
	m.runs.WithLabelValues(statusSuccess).Inc()
	m.records.WithLabelValues(types.DatasetCountries).Set(float64(s.Loaded.Countries))
	m.records.WithLabelValues(types.DatasetEnrollment).Set(float64(s.Loaded.Enrollment))
	m.records.WithLabelValues(types.DatasetGraduation).Set(float64(s.Loaded.Graduation))
	m.records.WithLabelValues(types.DatasetSpending).Set(float64(s.Loaded.Spending))
	m.lastSuccess.Set(float64(s.FinishedAt.Unix()))
}
