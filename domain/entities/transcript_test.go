package entities

import (
	"errors"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestTranscriptApplyResponse(t *testing.T) {
	tests := []struct {
		name     string
		initial  Transcript
		response string
		want     Transcript
		wantErr  error
	}{
		{
			name:     "fills the single pending entry",
			initial:  Transcript{{Query: "Hi"}},
			response: "Hello",
			want:     Transcript{{Query: "Hi", Response: strPtr("Hello")}},
		},
		{
			name: "only the most recent pending entry is filled",
			initial: Transcript{
				{Query: "first", Response: strPtr("one")},
				{Query: "second"},
			},
			response: "two",
			want: Transcript{
				{Query: "first", Response: strPtr("one")},
				{Query: "second", Response: strPtr("two")},
			},
		},
		{
			name:     "nothing pending",
			initial:  Transcript{{Query: "Hi", Response: strPtr("Hello")}},
			response: "late",
			want:     Transcript{{Query: "Hi", Response: strPtr("Hello")}},
			wantErr:  ErrNoPendingEntry,
		},
		{
			name:     "empty transcript",
			initial:  Transcript{},
			response: "orphan",
			want:     Transcript{},
			wantErr:  ErrNoPendingEntry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.initial.ApplyResponse(tt.response)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ApplyResponse() error = %v, wantErr %v", err, tt.wantErr)
			}
			assertTranscript(t, got, tt.want)
		})
	}
}

func TestTranscriptAtMostOnePending(t *testing.T) {
	var tr Transcript
	tr = tr.AppendQuery("one")
	tr = tr.AppendQuery("two")

	if n := tr.PendingCount(); n != 1 {
		t.Fatalf("Expected exactly one pending entry, got %d", n)
	}
	if !tr[1].Pending() {
		t.Error("The newest entry should be the pending one")
	}

	tr, err := tr.ApplyResponse("reply")
	if err != nil {
		t.Fatalf("ApplyResponse() error = %v", err)
	}
	if *tr[1].Response != "reply" {
		t.Errorf("Expected reply on newest entry, got %q", *tr[1].Response)
	}
	if *tr[0].Response != "" {
		t.Errorf("Older entry should keep its closed response, got %q", *tr[0].Response)
	}
}

func TestTranscriptSupersededQueryLosesLateReply(t *testing.T) {
	var tr Transcript
	tr = tr.AppendQuery("one")
	tr = tr.AppendQuery("two")

	// the reply meant for "one" arrives first and fills "two"
	tr, err := tr.ApplyResponse("reply to one")
	if err != nil {
		t.Fatalf("ApplyResponse() error = %v", err)
	}
	if *tr[1].Response != "reply to one" {
		t.Errorf("Expected the newest entry to take the first reply, got %q", *tr[1].Response)
	}

	if _, err := tr.ApplyResponse("reply to two"); !errors.Is(err, ErrNoPendingEntry) {
		t.Errorf("Expected ErrNoPendingEntry for the second reply, got %v", err)
	}
	if *tr[0].Response != "" {
		t.Errorf("Superseded entry should stay closed empty, got %q", *tr[0].Response)
	}
}

func TestTranscriptAppendEntry(t *testing.T) {
	var tr Transcript
	tr = tr.AppendEntry("Hi", strPtr("Hello"))
	assertTranscript(t, tr, Transcript{{Query: "Hi", Response: strPtr("Hello")}})

	tr = tr.AppendEntry("Still there?", nil)
	if tr.PendingCount() != 1 {
		t.Errorf("Entry without response should be pending, got %d pending", tr.PendingCount())
	}
}

func TestTranscriptClone(t *testing.T) {
	tr := Transcript{{Query: "Hi", Response: strPtr("Hello")}}
	clone := tr.Clone()
	*clone[0].Response = "changed"

	if *tr[0].Response != "Hello" {
		t.Errorf("Clone should deep copy responses, original became %q", *tr[0].Response)
	}

	if got := Transcript(nil).Clone(); got == nil {
		t.Error("Clone of nil should return an empty, non-nil transcript")
	}
}

func assertTranscript(t *testing.T, got, want Transcript) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("Expected %d entries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].Query != want[i].Query {
			t.Errorf("Entry %d: expected query %q, got %q", i, want[i].Query, got[i].Query)
		}
		switch {
		case want[i].Response == nil && got[i].Response != nil:
			t.Errorf("Entry %d: expected no response, got %q", i, *got[i].Response)
		case want[i].Response != nil && got[i].Response == nil:
			t.Errorf("Entry %d: expected response %q, got none", i, *want[i].Response)
		case want[i].Response != nil && *got[i].Response != *want[i].Response:
			t.Errorf("Entry %d: expected response %q, got %q", i, *want[i].Response, *got[i].Response)
		}
	}
}
