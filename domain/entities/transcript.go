package entities

import "errors"

// ErrNoPendingEntry is returned when a response arrives but every entry already has one
var ErrNoPendingEntry = errors.New("no transcript entry is waiting for a response")

// TranscriptEntry is one turn of a conversation: the user's query and the agent's reply.
// Response is nil until the reply for this query arrives.
type TranscriptEntry struct {
	Query    string  `json:"query"`
	Response *string `json:"response,omitempty"`
}

// Pending reports whether the entry is still waiting for its response
func (e TranscriptEntry) Pending() bool {
	return e.Response == nil
}

// Transcript is the ordered list of turns of one session
type Transcript []TranscriptEntry

// Clone returns a deep copy so callers never share response pointers
func (t Transcript) Clone() Transcript {
	if t == nil {
		return Transcript{}
	}
	out := make(Transcript, len(t))
	for i, e := range t {
		out[i] = TranscriptEntry{Query: e.Query}
		if e.Response != nil {
			r := *e.Response
			out[i].Response = &r
		}
	}
	return out
}

// AppendQuery adds a new turn that waits for its response. Any older pending turn
// is closed with an empty response first so at most one entry is ever pending.
// A late reply to the closed turn lands on the new one, and the reply after it
// is rejected with ErrNoPendingEntry.
func (t Transcript) AppendQuery(query string) Transcript {
	t = t.closePending()
	return append(t, TranscriptEntry{Query: query})
}

// AppendEntry adds a complete turn as sent by the agent
func (t Transcript) AppendEntry(query string, response *string) Transcript {
	if response == nil {
		return t.AppendQuery(query)
	}
	r := *response
	return append(t, TranscriptEntry{Query: query, Response: &r})
}

// ApplyResponse fills the most recent entry still lacking a response.
// Earlier entries are never touched.
func (t Transcript) ApplyResponse(response string) (Transcript, error) {
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].Pending() {
			r := response
			t[i].Response = &r
			return t, nil
		}
	}
	return t, ErrNoPendingEntry
}

// PendingCount returns how many entries are waiting for a response
func (t Transcript) PendingCount() int {
	n := 0
	for _, e := range t {
		if e.Pending() {
			n++
		}
	}
	return n
}

func (t Transcript) closePending() Transcript {
	for i := range t {
		if t[i].Pending() {
			empty := ""
			t[i].Response = &empty
		}
	}
	return t
}
