package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.FrameSent("text")
	m.FrameSent("text")
	m.FrameReceived("uuid")
	m.FrameDropped("malformed")
	m.SetPendingSends(3)
	m.SetTransportState(1)
	m.SetQueueDepth(2)
	m.SegmentPlayed(0.5)
	m.SegmentPlayed(0.25)
	m.ChunkSent(1024)
	m.ChunkDiscarded()
	m.DeviceError()

	families := gather(t, reg)

	sent := families["arunika_client_frames_sent_total"]
	if sent == nil || sent.Metric[0].GetCounter().GetValue() != 2 {
		t.Errorf("Expected 2 text frames sent, got %v", sent)
	}
	if got := sent.Metric[0].Label[0].GetValue(); got != "text" {
		t.Errorf("Expected label text, got %s", got)
	}

	gauges := map[string]float64{
		"arunika_client_pending_sends":        3,
		"arunika_client_transport_state":      1,
		"arunika_client_playback_queue_depth": 2,
	}
	for name, want := range gauges {
		f := families[name]
		if f == nil {
			t.Errorf("Metric %s not registered", name)
			continue
		}
		if got := f.Metric[0].GetGauge().GetValue(); got != want {
			t.Errorf("Expected %s = %v, got %v", name, want, got)
		}
	}

	counters := map[string]float64{
		"arunika_client_segments_played_total":          2,
		"arunika_client_playback_seconds_total":         0.75,
		"arunika_client_capture_chunks_sent_total":      1,
		"arunika_client_capture_chunks_discarded_total": 1,
		"arunika_client_device_errors_total":            1,
	}
	for name, want := range counters {
		f := families[name]
		if f == nil {
			t.Errorf("Metric %s not registered", name)
			continue
		}
		if got := f.Metric[0].GetCounter().GetValue(); got != want {
			t.Errorf("Expected %s = %v, got %v", name, want, got)
		}
	}

	hist := families["arunika_client_capture_chunk_bytes"]
	if hist == nil || hist.Metric[0].GetHistogram().GetSampleCount() != 1 {
		t.Errorf("Expected one chunk size observation, got %v", hist)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	m.FrameSent("text")
	m.FrameReceived("uuid")
	m.FrameDropped("malformed")
	m.SetPendingSends(1)
	m.SetTransportState(2)
	m.SetQueueDepth(1)
	m.SegmentPlayed(1)
	m.ChunkSent(10)
	m.ChunkDiscarded()
	m.DeviceError()
}

func TestMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)

	defer func() {
		if recover() == nil {
			t.Error("Expected registering twice on one registry to panic")
		}
	}()
	NewMetrics(reg)
}
