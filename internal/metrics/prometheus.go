package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the voice client.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Transport metrics
	FramesSent     *prometheus.CounterVec
	FramesReceived *prometheus.CounterVec
	FramesDropped  *prometheus.CounterVec
	PendingSends   prometheus.Gauge
	TransportState prometheus.Gauge

	// Playback metrics
	PlaybackQueueDepth prometheus.Gauge
	SegmentsPlayed     prometheus.Counter
	PlaybackSeconds    prometheus.Counter

	// Capture metrics
	ChunksSent      prometheus.Counter
	ChunksDiscarded prometheus.Counter
	ChunkSize       prometheus.Histogram
	DeviceErrors    prometheus.Counter
}

// NewMetrics creates and registers all metrics on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FramesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arunika_client_frames_sent_total",
			Help: "Total number of frames written to the agent connection",
		}, []string{"type"}),
		FramesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arunika_client_frames_received_total",
			Help: "Total number of frames received from the agent connection",
		}, []string{"type"}),
		FramesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arunika_client_frames_dropped_total",
			Help: "Total number of inbound or outbound frames dropped",
		}, []string{"reason"}),
		PendingSends: factory.NewGauge(prometheus.GaugeOpts{
			Name: "arunika_client_pending_sends",
			Help: "Current number of sends waiting for the connection to open",
		}),
		TransportState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "arunika_client_transport_state",
			Help: "Transport state: 0 connecting, 1 open, 2 closed, 3 errored",
		}),

		PlaybackQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "arunika_client_playback_queue_depth",
			Help: "Current number of audio segments waiting to be played",
		}),
		SegmentsPlayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "arunika_client_segments_played_total",
			Help: "Total number of audio segments rendered",
		}),
		PlaybackSeconds: factory.NewCounter(prometheus.CounterOpts{
			Name: "arunika_client_playback_seconds_total",
			Help: "Total seconds of audio rendered",
		}),

		ChunksSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "arunika_client_capture_chunks_sent_total",
			Help: "Total number of capture chunks sent",
		}),
		ChunksDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "arunika_client_capture_chunks_discarded_total",
			Help: "Total number of capture chunks discarded after a stop",
		}),
		ChunkSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "arunika_client_capture_chunk_bytes",
			Help:    "Size of capture chunks in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 2, 10),
		}),
		DeviceErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "arunika_client_device_errors_total",
			Help: "Total number of microphone acquisition failures",
		}),
	}
}

// FrameSent records an outbound frame of the given type
func (m *Metrics) FrameSent(frameType string) {
	if m == nil {
		return
	}
	m.FramesSent.WithLabelValues(frameType).Inc()
}

// FrameReceived records an inbound frame of the given type
func (m *Metrics) FrameReceived(frameType string) {
	if m == nil {
		return
	}
	m.FramesReceived.WithLabelValues(frameType).Inc()
}

// FrameDropped records a dropped frame
func (m *Metrics) FrameDropped(reason string) {
	if m == nil {
		return
	}
	m.FramesDropped.WithLabelValues(reason).Inc()
}

// SetPendingSends sets the number of deferred sends
func (m *Metrics) SetPendingSends(n int) {
	if m == nil {
		return
	}
	m.PendingSends.Set(float64(n))
}

// SetTransportState records the transport lifecycle state
func (m *Metrics) SetTransportState(state int) {
	if m == nil {
		return
	}
	m.TransportState.Set(float64(state))
}

// SetQueueDepth records the playback queue length
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.PlaybackQueueDepth.Set(float64(n))
}

// SegmentPlayed records one rendered segment
func (m *Metrics) SegmentPlayed(seconds float64) {
	if m == nil {
		return
	}
	m.SegmentsPlayed.Inc()
	m.PlaybackSeconds.Add(seconds)
}

// ChunkSent records one capture chunk sent upstream
func (m *Metrics) ChunkSent(size int) {
	if m == nil {
		return
	}
	m.ChunksSent.Inc()
	m.ChunkSize.Observe(float64(size))
}

// ChunkDiscarded records a capture chunk suppressed after a stop
func (m *Metrics) ChunkDiscarded() {
	if m == nil {
		return
	}
	m.ChunksDiscarded.Inc()
}

// DeviceError records a microphone acquisition failure
func (m *Metrics) DeviceError() {
	if m == nil {
		return
	}
	m.DeviceErrors.Inc()
}
