// Package metrics exposes the simulator's prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sensorsim"

// Collector records fleet ticks and anomaly lifecycle events. It satisfies
// anomaly.Observer and emulator.TickObserver.
type Collector struct {
	readings prometheus.Counter
	ticks    prometheus.Counter
	injected *prometheus.CounterVec
	ended    *prometheus.CounterVec
	active   prometheus.Gauge
	tick     prometheus.Histogram
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		readings: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_total",
			Help:      "Readings produced by the fleet.",
		}),
		ticks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Fleet ticks completed.",
		}),
		injected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_injected_total",
			Help:      "Anomalies started, random and forced.",
		}, []string{"category", "type"}),
		ended: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_ended_total",
			Help:      "Anomalies that expired, were replaced or were cleared.",
		}, []string{"category", "type"}),
		active: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_anomalies",
			Help:      "Sensors with an active anomaly after the last tick.",
		}),
		tick: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_seconds",
			Help:      "Time taken by one fleet tick.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}
}

// NewRegistry returns a registry holding the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func (c *Collector) AnomalyInjected(category, typ string) {
	c.injected.WithLabelValues(category, typ).Inc()
}

func (c *Collector) AnomalyEnded(category, typ string) {
	c.ended.WithLabelValues(category, typ).Inc()
}

func (c *Collector) ObserveTick(readings int, elapsed time.Duration, activeAnomalies int) {
	c.ticks.Inc()
	c.readings.Add(float64(readings))
	c.tick.Observe(elapsed.Seconds())
	c.active.Set(float64(activeAnomalies))
}
