package metrics

import "github.com/prometheus/client_golang/prometheus"

// Namespace prefixes every metric name.
const Namespace = "tilewall"

type Counter struct {
	metric *prometheus.CounterVec
}

// Register panics if the name is already taken in reg.
func (c *Counter) Register(reg prometheus.Registerer) {
	reg.MustRegister(c.metric)
}

func (c *Counter) Increment(labels ...string) {
	c.metric.WithLabelValues(labels...).Inc()
}

func (c *Counter) Add(v float64, labels ...string) {
	c.metric.WithLabelValues(labels...).Add(v)
}

func (c *Counter) Get() *prometheus.CounterVec {
	return c.metric
}

type Gauge struct {
	metric *prometheus.GaugeVec
}

func (g *Gauge) Register(reg prometheus.Registerer) {
	reg.MustRegister(g.metric)
}

func (g *Gauge) Set(value float64, labels ...string) {
	g.metric.WithLabelValues(labels...).Set(value)
}

func (g *Gauge) Get() *prometheus.GaugeVec {
	return g.metric
}

type Histogram struct {
	metric *prometheus.HistogramVec
}

func (h *Histogram) Register(reg prometheus.Registerer) {
	reg.MustRegister(h.metric)
}

func (h *Histogram) Observe(value float64, labels ...string) {
	h.metric.WithLabelValues(labels...).Observe(value)
}

func (h *Histogram) Get() *prometheus.HistogramVec {
	return h.metric
}
