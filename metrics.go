package posed

import (
	"github.com/prometheus/client_golang/prometheus"
)

// serviceMetrics bundles the Prometheus metrics for a pose service. A nil
// *serviceMetrics is valid and records nothing.
type serviceMetrics struct {
	operations *prometheus.CounterVec
	frames     prometheus.Gauge
	signals    prometheus.Gauge
}

func newServiceMetrics(reg prometheus.Registerer) *serviceMetrics {
	m := &serviceMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "posed_operations_total",
			Help: "Total number of frame forest operations, labeled by operation.",
		}, []string{"operation"}),
		frames: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "posed_frames",
			Help: "Number of frames in the forest, excluding the body frame.",
		}),
		signals: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "posed_frame_signals",
			Help: "Number of per-frame signals with at least one stream subscriber.",
		}),
	}
	reg.MustRegister(m.operations, m.frames, m.signals)
	return m
}

func (m *serviceMetrics) incOperation(op string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op).Inc()
}

func (m *serviceMetrics) setFrames(n int) {
	if m == nil {
		return
	}
	m.frames.Set(float64(n))
}

func (m *serviceMetrics) setSignals(n int) {
	if m == nil {
		return
	}
	m.signals.Set(float64(n))
}
