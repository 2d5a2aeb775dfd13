package model

import "time"

// Event is a calendar entry as read back from an exported document.
// The export preview and round-trip checks operate on this type.
type Event struct {
	UID string // iCalendar UID

	Summary     string
	Description string
	Location    string

	AllDay bool

	// Start / End are floating local times (or midnight for all-day
	// entries). End is zero when the entry has no DTEND.
	Start time.Time
	End   time.Time
}

// HasEnd reports whether the entry carried a DTEND.
func (e Event) HasEnd() bool {
	return !e.End.IsZero()
}
