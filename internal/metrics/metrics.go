// Package metrics wraps the prometheus vectors exported by the wall.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// NewCounter creates a counter vector registered with reg.
func NewCounter(reg prometheus.Registerer, name string, help string, labels []string) *Counter {
	counter := &Counter{
		metric: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      name,
				Help:      help,
			},
			labels,
		),
	}
	counter.Register(reg)
	return counter
}

// NewGauge creates a gauge vector registered with reg.
func NewGauge(reg prometheus.Registerer, name string, help string, labels []string) *Gauge {
	gauge := &Gauge{
		metric: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      name,
				Help:      help,
			},
			labels,
		),
	}
	gauge.Register(reg)
	return gauge
}

// NewHistogram creates a histogram vector registered with reg.
func NewHistogram(reg prometheus.Registerer, name string, help string, buckets []float64, labels []string) *Histogram {
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}
	histogram := &Histogram{
		metric: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      name,
				Help:      help,
				Buckets:   buckets,
			},
			labels,
		),
	}
	histogram.Register(reg)
	return histogram
}
