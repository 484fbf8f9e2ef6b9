package state

import (
	"sync"

	"github.com/satriahrh/arunika/client/domain/entities"
)

// Snapshot is an immutable copy of the client state handed to observers
type Snapshot struct {
	Version             uint64               `json:"version"`
	Sessions            entities.SessionList `json:"sessions"`
	LiveSession         string               `json:"live_session"`
	ViewingSession      string               `json:"viewing_session"`
	Transcripts         entities.Transcript  `json:"transcripts"`
	IsLoading           bool                 `json:"is_loading"`
	IsThinking          bool                 `json:"is_thinking"`
	IsRecording         bool                 `json:"is_recording"`
	IsStreamingResponse bool                 `json:"is_streaming_response"`
	Connection          string               `json:"connection"`
}

// Listener is notified with a fresh snapshot after every change
type Listener func(Snapshot)

// Store holds the state shared between the connection manager and the UI.
// All mutation goes through its methods; observers subscribe for snapshots.
type Store struct {
	mu          sync.RWMutex
	version     uint64
	sessions    entities.Sessions
	transcripts entities.Transcript
	shown       string // session whose transcript is visible
	cache       map[string]entities.Transcript
	loading     bool
	thinking    bool
	recording   bool
	streaming   bool
	connection  string

	listenersMu sync.Mutex
	listeners   map[int]Listener
	nextID      int
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		sessions:    entities.Sessions{Known: entities.SessionList{}},
		transcripts: entities.Transcript{},
		connection:  "connecting",
		cache:       make(map[string]entities.Transcript),
		listeners:   make(map[int]Listener),
	}
}

// Subscribe registers l and returns a function removing it
func (s *Store) Subscribe(l Listener) func() {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

// Snapshot returns a copy of the current state
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Transcripts returns a copy of the visible transcript
func (s *Store) Transcripts() entities.Transcript {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transcripts.Clone()
}

// Sessions returns the live/viewed pair and the known session list
func (s *Store) Sessions() entities.Sessions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.sessions
	out.Known = s.sessions.Known.Clone()
	return out
}

// CachedTranscript returns the cached transcript of session id
func (s *Store) CachedTranscript(id string) (entities.Transcript, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tr, ok := s.cache[id]
	if !ok {
		return nil, false
	}
	return tr.Clone(), true
}

// SetSessions replaces the visible session list
func (s *Store) SetSessions(ids []string) {
	s.update(func() {
		s.sessions.Known = entities.SessionList(ids).Clone()
	})
}

// RemoveSession drops id from the session list and the transcript cache
func (s *Store) RemoveSession(id string) {
	s.update(func() {
		s.sessions.Known = s.sessions.Known.Remove(id)
		delete(s.cache, id)
	})
}

// AssignSession resets the visible transcript and makes id both live and viewed
func (s *Store) AssignSession(id string) {
	s.update(func() {
		s.transcripts = entities.Transcript{}
		s.shown = id
		s.cache[id] = entities.Transcript{}
		s.sessions.Assign(id)
		s.loading = false
	})
}

// ViewSession switches the displayed session and loads its transcript like LoadTranscripts.
func (s *Store) ViewSession(id string) bool {
	var cached bool
	s.update(func() {
		s.sessions.View(id)
		cached = s.loadLocked(id)
	})
	return cached
}

// LoadTranscripts marks the transcript of id as loading. When it is cached it
// becomes visible immediately and loading is cleared. It reports whether the
// cache was used.
func (s *Store) LoadTranscripts(id string) bool {
	var cached bool
	s.update(func() {
		cached = s.loadLocked(id)
	})
	return cached
}

func (s *Store) loadLocked(id string) bool {
	s.loading = true
	tr, ok := s.cache[id]
	if !ok {
		return false
	}
	s.transcripts = tr.Clone()
	s.shown = id
	s.loading = false
	return true
}

// SetTranscripts replaces the visible transcript and caches it under sessionID
func (s *Store) SetTranscripts(sessionID string, tr entities.Transcript) {
	s.update(func() {
		s.transcripts = tr.Clone()
		s.shown = sessionID
		if sessionID == "" {
			s.shown = s.sessions.Viewed
		}
		if sessionID != "" {
			s.cache[sessionID] = tr.Clone()
		}
		s.loading = false
	})
}

// ClearTranscripts empties the visible transcript
func (s *Store) ClearTranscripts() {
	s.update(func() {
		s.transcripts = entities.Transcript{}
		s.shown = ""
	})
}

// AppendQuery adds a user turn to the live session and marks the agent thinking
func (s *Store) AppendQuery(query string) {
	s.update(func() {
		s.updateLiveLocked(func(tr entities.Transcript) (entities.Transcript, error) {
			return tr.AppendQuery(query), nil
		})
		s.thinking = true
	})
}

// ApplyResponse fills the most recent pending turn of the live session and clears thinking
func (s *Store) ApplyResponse(response string) error {
	var err error
	s.update(func() {
		err = s.updateLiveLocked(func(tr entities.Transcript) (entities.Transcript, error) {
			return tr.ApplyResponse(response)
		})
		s.thinking = false
	})
	return err
}

// AppendEntry adds a complete turn to the live session and clears thinking
func (s *Store) AppendEntry(query string, response *string) {
	s.update(func() {
		s.updateLiveLocked(func(tr entities.Transcript) (entities.Transcript, error) {
			return tr.AppendEntry(query, response), nil
		})
		s.thinking = false
	})
}

// updateLiveLocked applies fn to the transcript of the live session. While
// another transcript is on display only the cached live copy changes.
func (s *Store) updateLiveLocked(fn func(entities.Transcript) (entities.Transcript, error)) error {
	live := s.sessions.Live
	if live == "" || s.shown == live {
		tr, err := fn(s.transcripts)
		if err != nil {
			return err
		}
		s.transcripts = tr
		if live != "" {
			s.cache[live] = tr.Clone()
		}
		return nil
	}

	tr, err := fn(s.cache[live].Clone())
	if err != nil {
		return err
	}
	s.cache[live] = tr
	return nil
}

// SetThinking sets the thinking indicator
func (s *Store) SetThinking(v bool) {
	s.update(func() { s.thinking = v })
}

// SetRecording sets the recording flag
func (s *Store) SetRecording(v bool) {
	s.update(func() { s.recording = v })
}

// SetStreaming sets the audio response streaming flag
func (s *Store) SetStreaming(v bool) {
	s.update(func() { s.streaming = v })
}

// SetConnection records the transport state shown to observers
func (s *Store) SetConnection(state string) {
	s.update(func() { s.connection = state })
}

// IsRecording reports whether the microphone is streaming
func (s *Store) IsRecording() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recording
}

// IsStreamingResponse reports whether a spoken response is streaming
func (s *Store) IsStreamingResponse() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streaming
}

func (s *Store) update(fn func()) {
	s.mu.Lock()
	fn()
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.listenersMu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.listenersMu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Version:             s.version,
		Sessions:            s.sessions.Known.Clone(),
		LiveSession:         s.sessions.Live,
		ViewingSession:      s.sessions.Viewed,
		Transcripts:         s.transcripts.Clone(),
		IsLoading:           s.loading,
		IsThinking:          s.thinking,
		IsRecording:         s.recording,
		IsStreamingResponse: s.streaming,
		Connection:          s.connection,
	}
}
