package http2

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the counters/gauges a Session reports into. It is
// optional: NewSession without WithMetrics uses noopMetrics so the
// engine never requires a caller to run Prometheus.
type Metrics interface {
	StreamOpened(role Role)
	StreamClosed(role Role)
	FramesReceived(kind FrameType)
	BytesWritten(n int)
	BytesRead(n int)
	SessionClosed(reason string)
}

type noopMetrics struct{}

func (noopMetrics) StreamOpened(Role)       {}
func (noopMetrics) StreamClosed(Role)       {}
func (noopMetrics) FramesReceived(FrameType) {}
func (noopMetrics) BytesWritten(int)        {}
func (noopMetrics) BytesRead(int)           {}
func (noopMetrics) SessionClosed(string)    {}

// PrometheusMetrics registers a standard set of collectors against reg
// and reports engine activity through them.
type PrometheusMetrics struct {
	streamsOpened  *prometheus.CounterVec
	streamsClosed  *prometheus.CounterVec
	framesReceived *prometheus.CounterVec
	bytesWritten   prometheus.Counter
	bytesRead      prometheus.Counter
	sessionsClosed *prometheus.CounterVec
}

// NewPrometheusMetrics builds and registers the engine's collectors
// against reg. Pass prometheus.DefaultRegisterer for process-global
// metrics, or a fresh *prometheus.Registry in tests.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		streamsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "h2engine_streams_opened_total",
			Help: "Streams opened, labeled by role.",
		}, []string{"role"}),
		streamsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "h2engine_streams_closed_total",
			Help: "Streams closed, labeled by role.",
		}, []string{"role"}),
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "h2engine_frames_received_total",
			Help: "Inbound frames, labeled by frame type.",
		}, []string{"type"}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "h2engine_bytes_written_total",
			Help: "Bytes written to the wire across all sessions.",
		}),
		bytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "h2engine_bytes_read_total",
			Help: "Bytes read from the wire across all sessions.",
		}),
		sessionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "h2engine_sessions_closed_total",
			Help: "Sessions terminated, labeled by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		m.streamsOpened, m.streamsClosed, m.framesReceived,
		m.bytesWritten, m.bytesRead, m.sessionsClosed,
	)

	return m
}

func (m *PrometheusMetrics) StreamOpened(r Role) { m.streamsOpened.WithLabelValues(r.String()).Inc() }
func (m *PrometheusMetrics) StreamClosed(r Role) { m.streamsClosed.WithLabelValues(r.String()).Inc() }
func (m *PrometheusMetrics) FramesReceived(kind FrameType) {
	m.framesReceived.WithLabelValues(kind.String()).Inc()
}
func (m *PrometheusMetrics) BytesWritten(n int) { m.bytesWritten.Add(float64(n)) }
func (m *PrometheusMetrics) BytesRead(n int)    { m.bytesRead.Add(float64(n)) }
func (m *PrometheusMetrics) SessionClosed(reason string) {
	m.sessionsClosed.WithLabelValues(reason).Inc()
}
