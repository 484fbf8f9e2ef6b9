package websocket

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/satriahrh/arunika/client/domain"
	"github.com/satriahrh/arunika/client/internal/audio"
	"github.com/satriahrh/arunika/client/internal/metrics"
	"github.com/satriahrh/arunika/client/internal/session"
	"github.com/satriahrh/arunika/client/internal/state"
)

type fakeQueue struct {
	mu       sync.Mutex
	segments []audio.Segment
	closed   bool
}

func (q *fakeQueue) Enqueue(seg audio.Segment) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.segments = append(q.segments, seg)
	return true
}

func setupTestDispatcher(t testing.TB) (*Dispatcher, *state.Store, *session.Correlator, *fakeQueue) {
	store := state.NewStore()
	correlator := session.NewCorrelator()
	queue := &fakeQueue{}
	m := metrics.NewMetrics(prometheus.NewRegistry())
	return NewDispatcher(store, correlator, queue, domain.PlaybackSampleRate, m, zap.NewNop()), store, correlator, queue
}

func TestDispatcher_UUIDThenTranscriptItem(t *testing.T) {
	d, store, correlator, _ := setupTestDispatcher(t)

	d.HandleText([]byte(`{"type":"uuid","uuid":"s-1"}`))

	if id, ok := correlator.Current(); !ok || id != "s-1" {
		t.Fatalf("Expected correlator s-1, got %q (%v)", id, ok)
	}
	snap := store.Snapshot()
	if snap.LiveSession != "s-1" || snap.ViewingSession != "s-1" {
		t.Errorf("Expected live and viewed s-1, got %q and %q", snap.LiveSession, snap.ViewingSession)
	}
	if len(snap.Transcripts) != 0 {
		t.Errorf("Expected empty transcript, got %v", snap.Transcripts)
	}

	store.AppendQuery("hi")
	d.HandleText([]byte(`{"type":"transcript_item","response":"hello"}`))

	snap = store.Snapshot()
	if len(snap.Transcripts) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(snap.Transcripts))
	}
	entry := snap.Transcripts[0]
	if entry.Query != "hi" || entry.Response == nil || *entry.Response != "hello" {
		t.Errorf("Expected {hi hello}, got %+v", entry)
	}
	if snap.IsThinking {
		t.Error("Thinking should be cleared by the response")
	}
}

func TestDispatcher_FullTranscriptItemAppends(t *testing.T) {
	d, store, _, _ := setupTestDispatcher(t)

	store.AppendQuery("earlier")
	d.HandleText([]byte(`{"type":"transcript_item","transcript_item":{"query":"spoken","response":"reply"}}`))

	tr := store.Transcripts()
	if len(tr) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(tr))
	}
	if tr[1].Query != "spoken" || tr[1].Response == nil || *tr[1].Response != "reply" {
		t.Errorf("Expected appended {spoken reply}, got %+v", tr[1])
	}
}

func TestDispatcher_ResponseWithoutPendingQuery(t *testing.T) {
	d, store, _, _ := setupTestDispatcher(t)

	store.SetThinking(true)
	d.HandleText([]byte(`{"type":"transcript_item","response":"orphan"}`))

	if len(store.Transcripts()) != 0 {
		t.Error("Orphan response must not create an entry")
	}
	if store.Snapshot().IsThinking {
		t.Error("Thinking should still be cleared")
	}
}

func TestDispatcher_SessionsAndTranscripts(t *testing.T) {
	d, store, _, _ := setupTestDispatcher(t)

	d.HandleText([]byte(`{"type":"sessions","sessions":["a","b","c"]}`))
	store.LoadTranscripts("b")
	d.HandleText([]byte(`{"type":"transcripts","session_id":"b","transcripts":[{"query":"q","response":"r"}]}`))

	snap := store.Snapshot()
	if len(snap.Sessions) != 3 {
		t.Errorf("Expected 3 sessions, got %v", snap.Sessions)
	}
	if snap.IsLoading {
		t.Error("Loading should be cleared when transcripts arrive")
	}
	if _, ok := store.CachedTranscript("b"); !ok {
		t.Error("Transcript should be cached under its session")
	}

	d.HandleText([]byte(`{"type":"session_deleted","id":"b"}`))

	snap = store.Snapshot()
	if snap.Sessions.Contains("b") {
		t.Error("Deleted session should leave the list")
	}
	if _, ok := store.CachedTranscript("b"); ok {
		t.Error("Deleted session should leave the cache")
	}
}

func TestDispatcher_StreamingFlags(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    bool
	}{
		{name: "start", payload: `{"type":"tts_start"}`, want: true},
		{name: "stopped", payload: `{"type":"tts_stopped"}`, want: false},
		{name: "complete", payload: `{"type":"tts_complete"}`, want: false},
	}

	d, store, _, _ := setupTestDispatcher(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store.SetStreaming(!tt.want)
			d.HandleText([]byte(tt.payload))
			if store.IsStreamingResponse() != tt.want {
				t.Errorf("Expected streaming %v, got %v", tt.want, store.IsStreamingResponse())
			}
		})
	}
}

func TestDispatcher_BinaryAudio(t *testing.T) {
	d, _, _, queue := setupTestDispatcher(t)

	pcm := audio.EncodePCM16([]int16{0, 16384, -32768})
	d.HandleBinary(pcm)
	d.HandleBinary(audio.EncodePCM16([]int16{1}))

	queue.mu.Lock()
	defer queue.mu.Unlock()
	if len(queue.segments) != 2 {
		t.Fatalf("Expected 2 segments, got %d", len(queue.segments))
	}
	first := queue.segments[0]
	if first.SampleRate != 44100 {
		t.Errorf("Expected 44100Hz, got %d", first.SampleRate)
	}
	want := []float32{0, 0.5, -1}
	for i := range want {
		if first.Samples[i] != want[i] {
			t.Errorf("Sample %d: expected %v, got %v", i, want[i], first.Samples[i])
		}
	}
}

func TestDispatcher_IgnoresBadFrames(t *testing.T) {
	d, store, _, _ := setupTestDispatcher(t)
	before := store.Snapshot().Version

	d.HandleText([]byte(`not json`))
	d.HandleText([]byte(`{"no":"type"}`))
	d.HandleText([]byte(`{"type":"weather"}`))
	d.HandleText([]byte(`{"type":"error","message":"agent failed"}`))
	d.HandleText([]byte(`{"type":"tts_chunk"}`))

	if after := store.Snapshot().Version; after != before {
		t.Errorf("Ignored frames must not change state, version %d -> %d", before, after)
	}
}
