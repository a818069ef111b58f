package parser

import "time"

// maxStatusMessageLen truncates a fatal error's message before it is kept
// for dashboards, an undocumented behavior in the source we preserve per
// spec.md §9 Open Questions.
const maxStatusMessageLen = 200

// StatusEntry is one deduplicated fatal-error record for a chain.
type StatusEntry struct {
	Message  string
	Count    int
	LastSeen time.Time
}

// Status is the per-chain ParserStatus cache named in spec.md §4.9: fatal
// errors caught by the supervisor are deduplicated by message, with a
// running count and last-seen timestamp.
type Status struct {
	entries map[string]*StatusEntry
}

// NewStatus builds an empty per-chain status cache.
func NewStatus() *Status {
	return &Status{entries: map[string]*StatusEntry{}}
}

// Record truncates message to maxStatusMessageLen and upserts its entry.
func (s *Status) Record(message string) {
	if len(message) > maxStatusMessageLen {
		message = message[:maxStatusMessageLen]
	}
	if e, ok := s.entries[message]; ok {
		e.Count++
		e.LastSeen = time.Now()
		return
	}
	s.entries[message] = &StatusEntry{Message: message, Count: 1, LastSeen: time.Now()}
}

// Entries returns a snapshot of all recorded status entries.
func (s *Status) Entries() []StatusEntry {
	out := make([]StatusEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	return out
}
