package model

import (
	"encoding/json"
	"slices"
	"time"
)

// DateLayout is the on-disk form of calendar dates (no timezone).
const DateLayout = "2006-01-02"

// Segment status values.
const (
	StatusConfirmed = "confirmed"
	StatusTentative = "tentative"
)

// Stay types.
const (
	StayHostel = "Hostel"
	StayHotel  = "Hotel"
	StayAirbnb = "Airbnb"
	StayFriend = "Friend/Family"
)

// Transport types.
const (
	TransportFlight = "Flight"
	TransportTrain  = "Train"
	TransportBus    = "Bus"
	TransportFerry  = "Ferry"
)

// PlaceCategories are the tags a Place may carry.
var PlaceCategories = []string{"History", "Nature", "Food", "Nightlife", "Culture", "Study", "Transport", "Lodging", "Misc"}

// SpendCategories are the tags a SpendEntry may carry.
var SpendCategories = []string{"Transport", "Lodging", "Food", "Entertainment", "Study", "Misc"}

// Itinerary is the whole trip document. Segment order is trip order.
type Itinerary struct {
	Title                  string          `json:"title" bson:"title"`
	DailyStudyHoursDefault float64         `json:"dailyStudyHoursDefault" bson:"dailyStudyHoursDefault"`
	Checklist              []ChecklistItem `json:"checklist" bson:"checklist"`
	Segments               []Segment       `json:"segments" bson:"segments"`
}

// Segment is one country/region leg of the trip.
//
// Dates are YYYY-MM-DD strings; an empty string means "not set".
type Segment struct {
	ID              string       `json:"id" bson:"id"`
	Country         string       `json:"country" bson:"country"`
	Cities          []string     `json:"cities" bson:"cities"`
	StartDate       string       `json:"startDate" bson:"startDate"`
	EndDate         string       `json:"endDate" bson:"endDate"`
	Status          string       `json:"status" bson:"status"`
	Budget          float64      `json:"budget" bson:"budget"`
	DailyStudyHours float64      `json:"dailyStudyHours" bson:"dailyStudyHours"`
	Stays           []Stay       `json:"stays" bson:"stays"`
	Places          []Place      `json:"places" bson:"places"`
	Spend           []SpendEntry `json:"spend" bson:"spend"`
	TransportIn     *Transport   `json:"transportIn" bson:"transportIn"`
	TransportOut    *Transport   `json:"transportOut" bson:"transportOut"`
	Notes           string       `json:"notes,omitempty" bson:"notes,omitempty"`
}

// Stay is a lodging booking. Times are HH:MM, 24h.
type Stay struct {
	ID           string  `json:"id" bson:"id"`
	Name         string  `json:"name" bson:"name"`
	Type         string  `json:"type" bson:"type"`
	Address      string  `json:"address,omitempty" bson:"address,omitempty"`
	CheckIn      string  `json:"checkIn" bson:"checkIn"`
	CheckOut     string  `json:"checkOut" bson:"checkOut"`
	CheckInTime  string  `json:"checkInTime,omitempty" bson:"checkInTime,omitempty"`
	CheckOutTime string  `json:"checkOutTime,omitempty" bson:"checkOutTime,omitempty"`
	CostPerNight float64 `json:"costPerNight" bson:"costPerNight"`
	Notes        string  `json:"notes,omitempty" bson:"notes,omitempty"`
}

// Transport is a single directional journey bounding a segment.
type Transport struct {
	ID         string  `json:"id" bson:"id"`
	Type       string  `json:"type" bson:"type"`
	From       string  `json:"from" bson:"from"`
	To         string  `json:"to" bson:"to"`
	Date       string  `json:"date" bson:"date"`
	DepartTime string  `json:"departTime,omitempty" bson:"departTime,omitempty"`
	ArriveDate string  `json:"arriveDate,omitempty" bson:"arriveDate,omitempty"`
	ArriveTime string  `json:"arriveTime,omitempty" bson:"arriveTime,omitempty"`
	Cost       float64 `json:"cost" bson:"cost"`
	Ref        string  `json:"ref,omitempty" bson:"ref,omitempty"`
	Note       string  `json:"note,omitempty" bson:"note,omitempty"`
}

// Place is a point of interest.
type Place struct {
	ID       string  `json:"id" bson:"id"`
	Name     string  `json:"name" bson:"name"`
	City     string  `json:"city" bson:"city"`
	Category string  `json:"category" bson:"category"`
	Priority int     `json:"priority" bson:"priority"`
	Cost     float64 `json:"cost,omitempty" bson:"cost,omitempty"`
	Notes    string  `json:"notes,omitempty" bson:"notes,omitempty"`
}

// SpendEntry is an actual expense.
type SpendEntry struct {
	ID       string  `json:"id" bson:"id"`
	Date     string  `json:"date" bson:"date"`
	Category string  `json:"category" bson:"category"`
	Note     string  `json:"note" bson:"note"`
	Amount   float64 `json:"amount" bson:"amount"`
}

// ChecklistItem is one line of the global packing checklist.
type ChecklistItem struct {
	ID   string `json:"id" bson:"id"`
	Text string `json:"text" bson:"text"`
	Done bool   `json:"done" bson:"done"`
}

// Normalize replaces nil collections with empty ones so the document always
// serializes with [] rather than null.
func (it *Itinerary) Normalize() {
	if it.Checklist == nil {
		it.Checklist = []ChecklistItem{}
	}
	if it.Segments == nil {
		it.Segments = []Segment{}
	}
	for i := range it.Segments {
		it.Segments[i].normalize()
	}
}

func (s *Segment) normalize() {
	if s.Cities == nil {
		s.Cities = []string{}
	}
	if s.Stays == nil {
		s.Stays = []Stay{}
	}
	if s.Places == nil {
		s.Places = []Place{}
	}
	if s.Spend == nil {
		s.Spend = []SpendEntry{}
	}
}

// Clone returns a deep copy. Callers that hand the document to another
// goroutine take a clone first.
func (it *Itinerary) Clone() *Itinerary {
	if it == nil {
		return nil
	}
	out := *it
	out.Checklist = slices.Clone(it.Checklist)
	out.Segments = make([]Segment, len(it.Segments))
	for i, s := range it.Segments {
		out.Segments[i] = s.Clone()
	}
	return &out
}

// Clone returns a deep copy of the segment.
func (s Segment) Clone() Segment {
	out := s
	out.Cities = slices.Clone(s.Cities)
	out.Stays = slices.Clone(s.Stays)
	out.Places = slices.Clone(s.Places)
	out.Spend = slices.Clone(s.Spend)
	if s.TransportIn != nil {
		t := *s.TransportIn
		out.TransportIn = &t
	}
	if s.TransportOut != nil {
		t := *s.TransportOut
		out.TransportOut = &t
	}
	return out
}

// Decode parses a JSON document and normalizes it.
func Decode(data []byte) (*Itinerary, error) {
	var it Itinerary
	if err := json.Unmarshal(data, &it); err != nil {
		return nil, err
	}
	it.Normalize()
	return &it, nil
}

// Encode serializes the document as JSON.
func (it *Itinerary) Encode() ([]byte, error) {
	return json.Marshal(it)
}

// ParseDate parses a YYYY-MM-DD calendar date as midnight UTC.
func ParseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DaysBetween returns whole calendar days from a to b, never negative.
// Missing or malformed dates count as zero.
func DaysBetween(a, b string) int {
	ta, ok := ParseDate(a)
	if !ok {
		return 0
	}
	tb, ok := ParseDate(b)
	if !ok {
		return 0
	}
	d := int(tb.Sub(ta).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// Nights is the number of nights between check-in and check-out.
func (st Stay) Nights() int {
	return DaysBetween(st.CheckIn, st.CheckOut)
}

// Legs returns the segment's transport legs in export order, skipping nil.
func (s Segment) Legs() []*Transport {
	legs := make([]*Transport, 0, 2)
	if s.TransportIn != nil {
		legs = append(legs, s.TransportIn)
	}
	if s.TransportOut != nil {
		legs = append(legs, s.TransportOut)
	}
	return legs
}

// KnownCosts sums booked stays, transport and place estimates.
func (s Segment) KnownCosts() float64 {
	total := 0.0
	for _, st := range s.Stays {
		total += float64(st.Nights()) * st.CostPerNight
	}
	for _, t := range s.Legs() {
		total += t.Cost
	}
	for _, p := range s.Places {
		total += p.Cost
	}
	return total
}

// ActualSpend sums the segment's spend entries.
func (s Segment) ActualSpend() float64 {
	total := 0.0
	for _, e := range s.Spend {
		total += e.Amount
	}
	return total
}
