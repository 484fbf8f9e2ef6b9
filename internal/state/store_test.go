package state

import (
	"testing"

	"github.com/satriahrh/arunika/client/domain/entities"
)

func strPtr(s string) *string { return &s }

func TestStore_AssignSession(t *testing.T) {
	store := NewStore()
	store.AppendQuery("leftover")
	store.LoadTranscripts("missing")

	store.AssignSession("S1")

	snap := store.Snapshot()
	if snap.LiveSession != "S1" || snap.ViewingSession != "S1" {
		t.Errorf("Expected live=viewed=S1, got live=%s viewed=%s", snap.LiveSession, snap.ViewingSession)
	}
	if len(snap.Transcripts) != 0 {
		t.Errorf("Expected transcripts to be reset, got %d entries", len(snap.Transcripts))
	}
	if snap.IsLoading {
		t.Error("Loading should be cleared on assignment")
	}
}

func TestStore_ViewSessionFromCache(t *testing.T) {
	store := NewStore()
	store.AssignSession("live")
	store.SetTranscripts("old", entities.Transcript{{Query: "q", Response: strPtr("r")}})
	store.ClearTranscripts()

	if cached := store.ViewSession("old"); !cached {
		t.Fatal("Expected the cached transcript to be used")
	}

	snap := store.Snapshot()
	if snap.IsLoading {
		t.Error("Loading should be cleared when served from cache")
	}
	if len(snap.Transcripts) != 1 || snap.Transcripts[0].Query != "q" {
		t.Errorf("Expected cached transcript, got %+v", snap.Transcripts)
	}
	if snap.LiveSession != "live" || snap.ViewingSession != "old" {
		t.Errorf("Viewing must not change the live session, got live=%s viewed=%s", snap.LiveSession, snap.ViewingSession)
	}
}

func TestStore_ViewSessionNotCached(t *testing.T) {
	store := NewStore()

	if cached := store.ViewSession("unknown"); cached {
		t.Fatal("Nothing should be cached yet")
	}
	if !store.Snapshot().IsLoading {
		t.Error("Loading should stay set until transcripts arrive")
	}

	store.SetTranscripts("unknown", nil)
	if store.Snapshot().IsLoading {
		t.Error("Loading should be cleared once transcripts arrive")
	}
	if _, ok := store.CachedTranscript("unknown"); !ok {
		t.Error("Fetched transcript should be cached")
	}
}

func TestStore_CacheIsIsolated(t *testing.T) {
	store := NewStore()
	tr := entities.Transcript{{Query: "q", Response: strPtr("r")}}
	store.SetTranscripts("S1", tr)

	*tr[0].Response = "mutated"
	cached, _ := store.CachedTranscript("S1")
	if *cached[0].Response != "r" {
		t.Errorf("Cache should not alias caller data, got %q", *cached[0].Response)
	}
}

func TestStore_TranscriptItemFlow(t *testing.T) {
	store := NewStore()
	store.AppendQuery("Hi")

	if !store.Snapshot().IsThinking {
		t.Fatal("Sending a query should set thinking")
	}

	if err := store.ApplyResponse("Hello"); err != nil {
		t.Fatalf("ApplyResponse() error = %v", err)
	}

	snap := store.Snapshot()
	if snap.IsThinking {
		t.Error("A response should clear thinking")
	}
	if len(snap.Transcripts) != 1 || *snap.Transcripts[0].Response != "Hello" {
		t.Errorf("Unexpected transcripts %+v", snap.Transcripts)
	}

	if err := store.ApplyResponse("extra"); err != entities.ErrNoPendingEntry {
		t.Errorf("Expected ErrNoPendingEntry, got %v", err)
	}
}

func TestStore_RemoveSession(t *testing.T) {
	store := NewStore()
	store.SetSessions([]string{"a", "b"})
	store.SetTranscripts("b", entities.Transcript{})

	store.RemoveSession("b")

	if got := store.Sessions().Known; len(got) != 1 || got[0] != "a" {
		t.Errorf("Expected [a], got %v", got)
	}
	if _, ok := store.CachedTranscript("b"); ok {
		t.Error("Removed session should be evicted from the cache")
	}
}

func TestStore_Subscribe(t *testing.T) {
	store := NewStore()

	var got []Snapshot
	unsubscribe := store.Subscribe(func(s Snapshot) {
		got = append(got, s)
	})

	store.SetStreaming(true)
	store.SetRecording(true)
	unsubscribe()
	store.SetStreaming(false)

	if len(got) != 2 {
		t.Fatalf("Expected 2 notifications, got %d", len(got))
	}
	if !got[0].IsStreamingResponse || got[0].IsRecording {
		t.Errorf("Unexpected first snapshot %+v", got[0])
	}
	if got[1].Version <= got[0].Version {
		t.Error("Versions should increase")
	}
	if !store.IsRecording() || store.IsStreamingResponse() {
		t.Error("Accessors should reflect the latest state")
	}
}

func TestStore_LoadTranscriptsKeepsViewed(t *testing.T) {
	store := NewStore()
	store.AssignSession("live")
	store.SetTranscripts("other", entities.Transcript{{Query: "q", Response: strPtr("r")}})

	if cached := store.LoadTranscripts("other"); !cached {
		t.Fatal("Expected the cached transcript to be used")
	}
	if viewed := store.Snapshot().ViewingSession; viewed != "live" {
		t.Errorf("Loading transcripts must not switch the viewed session, got %s", viewed)
	}
}

func TestStore_SetConnection(t *testing.T) {
	store := NewStore()
	if got := store.Snapshot().Connection; got != "connecting" {
		t.Errorf("Expected connecting, got %s", got)
	}

	store.SetConnection("open")
	if got := store.Snapshot().Connection; got != "open" {
		t.Errorf("Expected open, got %s", got)
	}
}

func TestStore_LiveTurnsWhileViewingOther(t *testing.T) {
	store := NewStore()
	store.AssignSession("live")
	store.AppendQuery("first")
	store.SetTranscripts("old", entities.Transcript{{Query: "old q", Response: strPtr("old r")}})
	store.ViewSession("old")

	if err := store.ApplyResponse("reply"); err != nil {
		t.Fatalf("ApplyResponse() error = %v", err)
	}
	store.AppendEntry("spoken", strPtr("answer"))

	snap := store.Snapshot()
	if len(snap.Transcripts) != 1 || snap.Transcripts[0].Query != "old q" {
		t.Errorf("Visible transcript should stay on the old session, got %+v", snap.Transcripts)
	}

	live, _ := store.CachedTranscript("live")
	if len(live) != 2 || *live[0].Response != "reply" || live[1].Query != "spoken" {
		t.Errorf("Expected both live turns in the live cache, got %+v", live)
	}

	if cached := store.ViewSession("live"); !cached {
		t.Fatal("The live transcript should be served from cache")
	}
	if got := store.Snapshot().Transcripts; len(got) != 2 {
		t.Errorf("Expected the live turns after switching back, got %+v", got)
	}
}
