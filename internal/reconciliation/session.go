package reconciliation

import (
	"time"

	"github.com/angelmondragon/packfinderz-receiving/pkg/enums"
)

const (
	// TodaySessionID identifies the single unsaved, editable session.
	TodaySessionID = "today"
	// DefaultTodaySessionName is the display name of the unsaved session.
	DefaultTodaySessionName = "Today"
)

// Session is a named, timestamped batch of entries. Saved sessions are history and are
// never edited again.
type Session struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	Entries   []Entry   `json:"entries"`
	IsSaved   bool      `json:"is_saved"`
}

// Entry looks up an entry by ID.
func (s Session) Entry(entryID string) (Entry, bool) {
	if idx := s.entryIndex(entryID); idx >= 0 {
		return s.Entries[idx], true
	}
	return Entry{}, false
}

func (s Session) entryIndex(entryID string) int {
	for i := range s.Entries {
		if s.Entries[i].ID == entryID {
			return i
		}
	}
	return -1
}

func (s Session) clone() Session {
	out := s
	out.Entries = cloneEntries(s.Entries)
	return out
}

func cloneEntries(entries []Entry) []Entry {
	if entries == nil {
		return nil
	}
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

func cloneSessions(sessions []Session) []Session {
	out := make([]Session, len(sessions))
	for i := range sessions {
		out[i] = sessions[i].clone()
	}
	return out
}

// SessionContext identifies the purchase order and workflow every Store operation acts on.
type SessionContext struct {
	ReferenceID string
	Workflow    enums.Workflow
}
