package api

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"plant-gateway/internal/vision"
)

// Metrics mede as chamadas ao modelo de visão. Um *Metrics nil é válido e não mede nada.
type Metrics struct {
	analyses *prometheus.CounterVec
	duration prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vision_analyses_total",
			Help:      "Plant analyses sent to the vision model, by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vision_analysis_duration_seconds",
			Help:      "Latency of vision model calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}),
	}
	for _, c := range []prometheus.Collector{m.analyses, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(err error, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.Observe(d.Seconds())
	m.analyses.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, vision.ErrModelUnavailable):
		return "model_unavailable"
	case errors.Is(err, vision.ErrInvalidImage):
		return "invalid_image"
	case errors.Is(err, vision.ErrUpstreamQuota):
		return "upstream_quota"
	case errors.Is(err, vision.ErrEmptyAnalysis):
		return "empty"
	}
	return "error"
}
