package entities

// SessionList is the ordered list of session identifiers known to the server
type SessionList []string

// Clone returns a copy of the list
func (l SessionList) Clone() SessionList {
	out := make(SessionList, len(l))
	copy(out, l)
	return out
}

// Contains reports whether id is in the list
func (l SessionList) Contains(id string) bool {
	for _, s := range l {
		if s == id {
			return true
		}
	}
	return false
}

// Remove returns the list without id, preserving order
func (l SessionList) Remove(id string) SessionList {
	out := make(SessionList, 0, len(l))
	for _, s := range l {
		if s != id {
			out = append(out, s)
		}
	}
	return out
}

// Sessions tracks which session is live and which one is being viewed
type Sessions struct {
	Live   string      `json:"live_session"`
	Viewed string      `json:"viewing_session"`
	Known  SessionList `json:"sessions"`
}

// Assign makes id both the live and the viewed session
func (s *Sessions) Assign(id string) {
	s.Live = id
	s.Viewed = id
}

// View switches the displayed session without touching the live one
func (s *Sessions) View(id string) {
	s.Viewed = id
}

// ViewingLive reports whether the displayed session is the live session
func (s *Sessions) ViewingLive() bool {
	return s.Viewed == s.Live
}
