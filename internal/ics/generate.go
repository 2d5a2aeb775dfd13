package ics

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"tripcal/internal/model"
)

const (
	// DefaultProductID is written to PRODID when Options.ProductID is empty.
	DefaultProductID = "-//Trip Planner//EN"

	// uidDomain is appended to every event token.
	uidDomain = "@trip"

	// defaultCheckInTime applies to timed stays that only know a check-out time.
	defaultCheckInTime = "15:00"

	lineBreak = "\r\n"
	stampForm = "20060102T150405Z"
)

// EntryKind says which part of a segment produced an entry.
type EntryKind string

const (
	KindStay         EntryKind = "stay"
	KindTransportIn  EntryKind = "transportIn"
	KindTransportOut EntryKind = "transportOut"
)

// Entry is one calendar event derived from a stay or a transport leg,
// before identifiers and the generation stamp are attached.
//
// Start and End hold the encoded DTSTART/DTEND values (YYYYMMDD when
// AllDay, YYYYMMDDTHHMMSS otherwise). End is empty when the event has none.
// Summary, Location and Description are unescaped text; empty means omitted.
type Entry struct {
	Kind      EntryKind
	SegmentID string
	SourceID  string

	AllDay bool
	Start  string
	End    string

	Summary     string
	Location    string
	Description string
}

// UIDSource hands out per-event identifier tokens.
type UIDSource interface {
	NextUID() string
}

// UIDFunc adapts a plain function to UIDSource.
type UIDFunc func() string

func (f UIDFunc) NextUID() string { return f() }

// RandomUIDs returns a UIDSource backed by random (v4) UUIDs.
func RandomUIDs() UIDSource {
	return UIDFunc(uuid.NewString)
}

// Options controls document-level output.
type Options struct {
	// ProductID is the PRODID value. Defaults to DefaultProductID.
	ProductID string
	// UIDs supplies event identifiers. Defaults to RandomUIDs().
	UIDs UIDSource
	// Now supplies the DTSTAMP instant. Defaults to time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.ProductID == "" {
		o.ProductID = DefaultProductID
	}
	if o.UIDs == nil {
		o.UIDs = RandomUIDs()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Generate renders the itinerary as an iCalendar document.
//
// Stays with both check-in and check-out dates and transport legs with a
// departure date each become one VEVENT, segments in document order and,
// within a segment, stays before the inbound leg before the outbound leg.
// The document is only read. A nil itinerary yields an empty calendar.
func Generate(it *model.Itinerary, opts Options) string {
	return Render(Entries(it), opts)
}

// Entries walks the itinerary and returns the events Generate would emit,
// in emission order.
func Entries(it *model.Itinerary) []Entry {
	if it == nil {
		return nil
	}
	var out []Entry
	for _, seg := range it.Segments {
		for _, st := range seg.Stays {
			if e, ok := stayEntry(seg, st); ok {
				out = append(out, e)
			}
		}
		if e, ok := legEntry(seg, seg.TransportIn, KindTransportIn); ok {
			out = append(out, e)
		}
		if e, ok := legEntry(seg, seg.TransportOut, KindTransportOut); ok {
			out = append(out, e)
		}
	}
	return out
}

func stayEntry(seg model.Segment, st model.Stay) (Entry, bool) {
	if st.CheckIn == "" || st.CheckOut == "" {
		return Entry{}, false
	}
	e := Entry{
		Kind:        KindStay,
		SegmentID:   seg.ID,
		SourceID:    st.ID,
		Summary:     "Stay: " + st.Name + " — " + seg.Country,
		Location:    st.Address,
		Description: st.Notes,
	}

	if st.CheckInTime == "" && st.CheckOutTime == "" {
		e.AllDay = true
		e.Start = formatDate(st.CheckIn)
		e.End = formatDate(st.CheckOut)
		return e, true
	}

	checkIn := st.CheckInTime
	if checkIn == "" {
		checkIn = defaultCheckInTime
	}
	e.Start = formatDateTime(st.CheckIn, checkIn)
	if st.CheckOutTime != "" {
		e.End = formatDateTime(st.CheckOut, st.CheckOutTime)
	}
	return e, true
}

func legEntry(seg model.Segment, t *model.Transport, kind EntryKind) (Entry, bool) {
	if t == nil || t.Date == "" {
		return Entry{}, false
	}

	typ := t.Type
	if typ == "" {
		typ = "Transport"
	}
	e := Entry{
		Kind:        kind,
		SegmentID:   seg.ID,
		SourceID:    t.ID,
		Summary:     strings.TrimSpace(typ + ": " + t.From + " → " + t.To + " — " + seg.Country),
		Description: legDescription(t),
	}

	if t.DepartTime == "" {
		// Arrival fields are ignored here; the leg is a one-day placeholder.
		e.AllDay = true
		e.Start = formatDate(t.Date)
		e.End = formatDate(nextDay(t.Date))
		return e, true
	}

	e.Start = formatDateTime(t.Date, t.DepartTime)
	if t.ArriveDate != "" && t.ArriveTime != "" {
		e.End = formatDateTime(t.ArriveDate, t.ArriveTime)
	}
	return e, true
}

func legDescription(t *model.Transport) string {
	parts := make([]string, 0, 2)
	if t.Ref != "" {
		parts = append(parts, "Ref: "+t.Ref)
	}
	if t.Note != "" {
		parts = append(parts, t.Note)
	}
	return strings.Join(parts, " | ")
}

// Render wraps entries in a VCALENDAR, stamping each with a fresh UID and
// the generation time.
func Render(entries []Entry, opts Options) string {
	opts = opts.withDefaults()
	stamp := opts.Now().UTC().Format(stampForm)

	var b lines
	b.add("BEGIN:VCALENDAR")
	b.add("PRODID:" + opts.ProductID)
	b.add("VERSION:2.0")
	b.add("CALSCALE:GREGORIAN")
	b.add("METHOD:PUBLISH")

	for _, e := range entries {
		b.add("BEGIN:VEVENT")
		b.add("UID:" + opts.UIDs.NextUID() + uidDomain)
		b.add("DTSTAMP:" + stamp)
		b.when("DTSTART", e.Start, e.AllDay)
		b.when("DTEND", e.End, e.AllDay)
		b.text("SUMMARY", e.Summary)
		b.text("LOCATION", e.Location)
		b.text("DESCRIPTION", e.Description)
		b.add("END:VEVENT")
	}

	b.add("END:VCALENDAR")
	return b.String()
}

// lines accumulates content lines, dropping properties whose value is empty.
type lines []string

func (l *lines) add(s string) {
	*l = append(*l, s)
}

// when adds a DTSTART/DTEND line; date-only values carry VALUE=DATE.
func (l *lines) when(name, value string, allDay bool) {
	if value == "" {
		return
	}
	if allDay {
		l.add(name + ";VALUE=DATE:" + value)
		return
	}
	l.add(name + ":" + value)
}

// text adds an escaped TEXT property.
func (l *lines) text(name, value string) {
	if value == "" {
		return
	}
	l.add(name + ":" + Escape(value))
}

func (l lines) String() string {
	return strings.Join(l, lineBreak)
}
