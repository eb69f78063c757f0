// Package metrics exports driver counters to prometheus. All methods are
// safe on a nil *Metrics so packages can run without instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sccp"

// Metrics holds the collectors of one driver instance.
type Metrics struct {
	reg *prometheus.Registry

	sessions          prometheus.Gauge
	registrations     *prometheus.CounterVec
	framesRx          *prometheus.CounterVec
	framesTx          *prometheus.CounterVec
	unknownFrames     prometheus.Counter
	keepaliveTimeouts prometheus.Counter
	channels          prometheus.Gauge
	calls             *prometheus.CounterVec
	reloads           *prometheus.CounterVec
	devicesReset      prometheus.Counter
}

// New creates the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		sessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "sessions_active",
			Help: "Connected phone sessions.",
		}),
		registrations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "registrations_total",
			Help: "Registration attempts by result.",
		}, []string{"result"}),
		framesRx: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "frames_received_total",
			Help: "Frames received by message.",
		}, []string{"message"}),
		framesTx: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "frames_sent_total",
			Help: "Frames sent by message.",
		}, []string{"message"}),
		unknownFrames: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "frames_unknown_total",
			Help: "Frames skipped for lack of a decoder at the session version.",
		}),
		keepaliveTimeouts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "keepalive_timeouts_total",
			Help: "Sessions dropped after missing keepalives.",
		}),
		channels: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "channels_active",
			Help: "Live call legs.",
		}),
		calls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "calls_total",
			Help: "Finished calls by last call state.",
		}, []string{"state"}),
		reloads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "reloads_total",
			Help: "Configuration reloads by result.",
		}, []string{"result"}),
		devicesReset: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "devices_reset_total",
			Help: "Reset commands issued after configuration changes.",
		}),
	}
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// WatchObjects publishes the live object count reported by fn.
func (m *Metrics) WatchObjects(fn func() int) {
	if m == nil {
		return
	}
	promauto.With(m.reg).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace, Name: "refcount_objects",
		Help: "Objects alive in the refcount registry.",
	}, func() float64 { return float64(fn()) })
}

func (m *Metrics) SessionOpened() {
	if m != nil {
		m.sessions.Inc()
	}
}

func (m *Metrics) SessionClosed() {
	if m != nil {
		m.sessions.Dec()
	}
}

func (m *Metrics) Registration(result string) {
	if m != nil {
		m.registrations.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) FrameReceived(message string) {
	if m != nil {
		m.framesRx.WithLabelValues(message).Inc()
	}
}

func (m *Metrics) FrameSent(message string) {
	if m != nil {
		m.framesTx.WithLabelValues(message).Inc()
	}
}

func (m *Metrics) UnknownFrame() {
	if m != nil {
		m.unknownFrames.Inc()
	}
}

func (m *Metrics) KeepaliveTimeout() {
	if m != nil {
		m.keepaliveTimeouts.Inc()
	}
}

func (m *Metrics) ChannelOpened() {
	if m != nil {
		m.channels.Inc()
	}
}

// ChannelClosed records the end of a call leg and the state it ended in.
func (m *Metrics) ChannelClosed(lastState string) {
	if m != nil {
		m.channels.Dec()
		m.calls.WithLabelValues(lastState).Inc()
	}
}

func (m *Metrics) Reload(result string) {
	if m != nil {
		m.reloads.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) DeviceReset() {
	if m != nil {
		m.devicesReset.Inc()
	}
}
