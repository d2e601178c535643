// Package coremetrics collects the Prometheus constructors shared by the
// corelib components, following the promauto pattern the teacher uses in
// friggdb/pool: each component registers its own counters/gauges against
// an injectable registerer so tests can use isolated registries instead
// of colliding on the global one.
package coremetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace is the default Prometheus namespace for corelib metrics. A
// component's Config.Namespace overrides it when set.
const Namespace = "corelib"

// Factory binds a subsystem name and registerer so a component can build
// its metrics with one line per metric instead of repeating Namespace
// and Subsystem everywhere.
type Factory struct {
	Namespace string
	Subsystem string
	Reg       prometheus.Registerer
}

// NewFactory returns a Factory for subsystem, registering against reg.
// With a nil reg, promauto builds the metrics without registering them
// anywhere.
func NewFactory(namespace, subsystem string, reg prometheus.Registerer) Factory {
	if namespace == "" {
		namespace = Namespace
	}
	return Factory{Namespace: namespace, Subsystem: subsystem, Reg: reg}
}

func (f Factory) auto() promauto.Factory {
	return promauto.With(f.Reg)
}

// Counter registers a counter named name with help text help.
func (f Factory) Counter(name, help string) prometheus.Counter {
	return f.auto().NewCounter(prometheus.CounterOpts{
		Namespace: f.Namespace,
		Subsystem: f.Subsystem,
		Name:      name,
		Help:      help,
	})
}

// Gauge registers a gauge named name with help text help.
func (f Factory) Gauge(name, help string) prometheus.Gauge {
	return f.auto().NewGauge(prometheus.GaugeOpts{
		Namespace: f.Namespace,
		Subsystem: f.Subsystem,
		Name:      name,
		Help:      help,
	})
}

// CounterVec registers a counter vector named name, partitioned by labels.
func (f Factory) CounterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return f.auto().NewCounterVec(prometheus.CounterOpts{
		Namespace: f.Namespace,
		Subsystem: f.Subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

// GaugeVec registers a gauge vector named name, partitioned by labels.
func (f Factory) GaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return f.auto().NewGaugeVec(prometheus.GaugeOpts{
		Namespace: f.Namespace,
		Subsystem: f.Subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}
