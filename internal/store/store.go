package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	appLog "tripcal/internal/log"
	"tripcal/internal/model"
)

var (
	// ErrNotFound is returned when a segment or item id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalid is returned when an edit is rejected before touching the document.
	ErrInvalid = errors.New("invalid input")
)

// Direction for MoveSegment.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Leg selects a segment's inbound or outbound transport.
type Leg string

const (
	LegIn  Leg = "in"
	LegOut Leg = "out"
)

// Store owns the itinerary document. Every mutation works on a copy, is
// persisted to the local backend, and only then becomes visible.
type Store struct {
	mu    sync.RWMutex
	doc   *model.Itinerary
	local Local

	newID func() string
	now   func() time.Time

	obsMu     sync.Mutex
	observers []func(*model.Itinerary)
}

// Option customizes a Store.
type Option func(*Store)

// WithIDs overrides the entity id generator (uuid by default).
func WithIDs(f func() string) Option {
	return func(s *Store) { s.newID = f }
}

// WithClock overrides the clock used for spend entries without a date.
func WithClock(f func() time.Time) Option {
	return func(s *Store) { s.now = f }
}

// Open loads the document from local. When nothing is stored, or the stored
// document does not decode, seed() is used and written back.
func Open(ctx context.Context, local Local, seed func() *model.Itinerary, opts ...Option) (*Store, error) {
	s := &Store{local: local, newID: uuid.NewString, now: time.Now}
	for _, o := range opts {
		o(s)
	}

	data, err := local.Load(ctx)
	switch {
	case errors.Is(err, ErrNoDocument):
		appLog.Info("no stored itinerary, using seed")
	case err != nil:
		return nil, fmt.Errorf("load itinerary: %w", err)
	default:
		doc, derr := model.Decode(data)
		if derr == nil {
			s.doc = doc
			appLog.Debug("itinerary loaded", "segments", len(doc.Segments))
			return s, nil
		}
		appLog.Error("stored itinerary is corrupt, using seed", derr)
	}

	doc := seed()
	if doc == nil {
		doc = &model.Itinerary{}
	}
	doc.Normalize()
	if err := s.persist(ctx, doc); err != nil {
		return nil, err
	}
	s.doc = doc
	return s, nil
}

// Snapshot returns a deep copy of the current document.
func (s *Store) Snapshot() *model.Itinerary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// OnChange registers fn to receive a snapshot after each successful edit.
// fn runs on the editing goroutine after the store lock is released.
func (s *Store) OnChange(fn func(*model.Itinerary)) {
	s.obsMu.Lock()
	s.observers = append(s.observers, fn)
	s.obsMu.Unlock()
}

func (s *Store) notify(doc *model.Itinerary) {
	s.obsMu.Lock()
	obs := append([]func(*model.Itinerary){}, s.observers...)
	s.obsMu.Unlock()
	for _, fn := range obs {
		fn(doc.Clone())
	}
}

func (s *Store) persist(ctx context.Context, doc *model.Itinerary) error {
	data, err := doc.Encode()
	if err != nil {
		return fmt.Errorf("encode itinerary: %w", err)
	}
	if err := s.local.Save(ctx, data); err != nil {
		return fmt.Errorf("save itinerary: %w", err)
	}
	return nil
}

// update applies fn to a copy of the document and commits it.
func (s *Store) update(ctx context.Context, fn func(doc *model.Itinerary) error) error {
	return s.commit(ctx, true, fn)
}

func (s *Store) commit(ctx context.Context, notify bool, fn func(doc *model.Itinerary) error) error {
	s.mu.Lock()
	next := s.doc.Clone()
	if err := fn(next); err != nil {
		s.mu.Unlock()
		return err
	}
	next.Normalize()
	if err := s.persist(ctx, next); err != nil {
		s.mu.Unlock()
		appLog.Error("itinerary persist failed", err)
		return err
	}
	s.doc = next
	snap := next.Clone()
	s.mu.Unlock()

	if notify {
		s.notify(snap)
	}
	return nil
}

// Replace swaps in a whole new document, as for a JSON import.
func (s *Store) Replace(ctx context.Context, it *model.Itinerary) error {
	return s.replace(ctx, it, true)
}

// Restore swaps in a document that came from the remote copy. Observers are
// not told, so the document is not echoed straight back.
func (s *Store) Restore(ctx context.Context, it *model.Itinerary) error {
	return s.replace(ctx, it, false)
}

func (s *Store) replace(ctx context.Context, it *model.Itinerary, notify bool) error {
	if it == nil {
		return fmt.Errorf("%w: empty document", ErrInvalid)
	}
	in := it.Clone()
	return s.commit(ctx, notify, func(doc *model.Itinerary) error {
		*doc = *in
		return nil
	})
}

// SetTitle renames the trip.
func (s *Store) SetTitle(ctx context.Context, title string) error {
	return s.update(ctx, func(doc *model.Itinerary) error {
		doc.Title = title
		return nil
	})
}

// AddSegment appends a segment and returns it with its assigned id. Spend
// always starts empty; status defaults to confirmed and daily study hours
// to the itinerary default.
func (s *Store) AddSegment(ctx context.Context, seg model.Segment) (model.Segment, error) {
	seg.Country = strings.TrimSpace(seg.Country)
	if seg.Country == "" {
		return model.Segment{}, fmt.Errorf("%w: country is required", ErrInvalid)
	}
	seg = seg.Clone()
	seg.ID = s.newID()
	seg.Spend = []model.SpendEntry{}
	if seg.Status == "" {
		seg.Status = model.StatusConfirmed
	}
	if seg.TransportIn != nil && seg.TransportIn.ID == "" {
		seg.TransportIn.ID = s.newID()
	}
	if seg.TransportOut != nil && seg.TransportOut.ID == "" {
		seg.TransportOut.ID = s.newID()
	}

	err := s.update(ctx, func(doc *model.Itinerary) error {
		if seg.DailyStudyHours == 0 {
			seg.DailyStudyHours = doc.DailyStudyHoursDefault
		}
		doc.Segments = append(doc.Segments, seg)
		return nil
	})
	if err != nil {
		return model.Segment{}, err
	}
	return seg.Clone(), nil
}

// SegmentPatch carries the segment fields to change; nil means keep.
type SegmentPatch struct {
	Country         *string   `json:"country"`
	Cities          *[]string `json:"cities"`
	StartDate       *string   `json:"startDate"`
	EndDate         *string   `json:"endDate"`
	Status          *string   `json:"status"`
	Budget          *float64  `json:"budget"`
	DailyStudyHours *float64  `json:"dailyStudyHours"`
	Notes           *string   `json:"notes"`
}

// UpdateSegment applies patch to the segment with the given id.
func (s *Store) UpdateSegment(ctx context.Context, id string, patch SegmentPatch) (model.Segment, error) {
	if patch.Status != nil && *patch.Status != model.StatusConfirmed && *patch.Status != model.StatusTentative {
		return model.Segment{}, fmt.Errorf("%w: status %q", ErrInvalid, *patch.Status)
	}
	var country string
	if patch.Country != nil {
		country = strings.TrimSpace(*patch.Country)
		if country == "" {
			return model.Segment{}, fmt.Errorf("%w: country is required", ErrInvalid)
		}
	}

	var out model.Segment
	err := s.update(ctx, func(doc *model.Itinerary) error {
		seg, err := findSegment(doc, id)
		if err != nil {
			return err
		}
		if patch.Country != nil {
			seg.Country = country
		}
		if patch.Cities != nil {
			seg.Cities = append([]string{}, (*patch.Cities)...)
		}
		if patch.StartDate != nil {
			seg.StartDate = *patch.StartDate
		}
		if patch.EndDate != nil {
			seg.EndDate = *patch.EndDate
		}
		if patch.Status != nil {
			seg.Status = *patch.Status
		}
		if patch.Budget != nil {
			seg.Budget = *patch.Budget
		}
		if patch.DailyStudyHours != nil {
			seg.DailyStudyHours = *patch.DailyStudyHours
		}
		if patch.Notes != nil {
			seg.Notes = *patch.Notes
		}
		out = seg.Clone()
		return nil
	})
	return out, err
}

// RemoveSegment deletes the segment with the given id.
func (s *Store) RemoveSegment(ctx context.Context, id string) error {
	return s.update(ctx, func(doc *model.Itinerary) error {
		i := segmentIndex(doc, id)
		if i < 0 {
			return fmt.Errorf("segment %s: %w", id, ErrNotFound)
		}
		doc.Segments = append(doc.Segments[:i], doc.Segments[i+1:]...)
		return nil
	})
}

// MoveSegment swaps the segment with its neighbour. Moving the first segment
// up or the last one down leaves the order unchanged.
func (s *Store) MoveSegment(ctx context.Context, id string, dir Direction) error {
	if dir != Up && dir != Down {
		return fmt.Errorf("%w: direction %q", ErrInvalid, dir)
	}
	return s.update(ctx, func(doc *model.Itinerary) error {
		i := segmentIndex(doc, id)
		if i < 0 {
			return fmt.Errorf("segment %s: %w", id, ErrNotFound)
		}
		j := i + 1
		if dir == Up {
			j = i - 1
		}
		j = max(0, min(j, len(doc.Segments)-1))
		doc.Segments[i], doc.Segments[j] = doc.Segments[j], doc.Segments[i]
		return nil
	})
}

// SetTransport replaces the inbound or outbound leg. A nil leg clears it.
func (s *Store) SetTransport(ctx context.Context, id string, leg Leg, t *model.Transport) error {
	if leg != LegIn && leg != LegOut {
		return fmt.Errorf("%w: leg %q", ErrInvalid, leg)
	}
	var next *model.Transport
	if t != nil {
		cp := *t
		if cp.ID == "" {
			cp.ID = s.newID()
		}
		next = &cp
	}
	return s.update(ctx, func(doc *model.Itinerary) error {
		seg, err := findSegment(doc, id)
		if err != nil {
			return err
		}
		if leg == LegIn {
			seg.TransportIn = next
		} else {
			seg.TransportOut = next
		}
		return nil
	})
}

// AddStay appends a stay to a segment. Name is required.
func (s *Store) AddStay(ctx context.Context, segID string, st model.Stay) (model.Stay, error) {
	if strings.TrimSpace(st.Name) == "" {
		return model.Stay{}, fmt.Errorf("%w: stay name is required", ErrInvalid)
	}
	if st.Type == "" {
		st.Type = model.StayHostel
	}
	st.ID = s.newID()
	err := s.update(ctx, func(doc *model.Itinerary) error {
		seg, err := findSegment(doc, segID)
		if err != nil {
			return err
		}
		seg.Stays = append(seg.Stays, st)
		return nil
	})
	if err != nil {
		return model.Stay{}, err
	}
	return st, nil
}

// RemoveStay deletes a stay from a segment.
func (s *Store) RemoveStay(ctx context.Context, segID, stayID string) error {
	return s.update(ctx, func(doc *model.Itinerary) error {
		seg, err := findSegment(doc, segID)
		if err != nil {
			return err
		}
		seg.Stays, err = removeByID(seg.Stays, stayID, func(st model.Stay) string { return st.ID })
		return err
	})
}

// AddPlace appends a place to a segment. Name is required; priority
// defaults to 3 and is clamped to 1..5.
func (s *Store) AddPlace(ctx context.Context, segID string, p model.Place) (model.Place, error) {
	if strings.TrimSpace(p.Name) == "" {
		return model.Place{}, fmt.Errorf("%w: place name is required", ErrInvalid)
	}
	if p.Priority == 0 {
		p.Priority = 3
	}
	p.Priority = max(1, min(p.Priority, 5))
	if p.Category == "" {
		p.Category = "History"
	}
	p.ID = s.newID()
	err := s.update(ctx, func(doc *model.Itinerary) error {
		seg, err := findSegment(doc, segID)
		if err != nil {
			return err
		}
		seg.Places = append(seg.Places, p)
		return nil
	})
	if err != nil {
		return model.Place{}, err
	}
	return p, nil
}

// RemovePlace deletes a place from a segment.
func (s *Store) RemovePlace(ctx context.Context, segID, placeID string) error {
	return s.update(ctx, func(doc *model.Itinerary) error {
		seg, err := findSegment(doc, segID)
		if err != nil {
			return err
		}
		seg.Places, err = removeByID(seg.Places, placeID, func(p model.Place) string { return p.ID })
		return err
	})
}

// AddSpend records an expense. A zero amount is rejected; a missing date
// means today.
func (s *Store) AddSpend(ctx context.Context, segID string, e model.SpendEntry) (model.SpendEntry, error) {
	if e.Amount == 0 {
		return model.SpendEntry{}, fmt.Errorf("%w: amount is required", ErrInvalid)
	}
	if e.Date == "" {
		e.Date = s.now().Format(model.DateLayout)
	}
	if e.Category == "" {
		e.Category = "Misc"
	}
	e.ID = s.newID()
	err := s.update(ctx, func(doc *model.Itinerary) error {
		seg, err := findSegment(doc, segID)
		if err != nil {
			return err
		}
		seg.Spend = append(seg.Spend, e)
		return nil
	})
	if err != nil {
		return model.SpendEntry{}, err
	}
	return e, nil
}

// RemoveSpend deletes an expense from a segment.
func (s *Store) RemoveSpend(ctx context.Context, segID, spendID string) error {
	return s.update(ctx, func(doc *model.Itinerary) error {
		seg, err := findSegment(doc, segID)
		if err != nil {
			return err
		}
		seg.Spend, err = removeByID(seg.Spend, spendID, func(e model.SpendEntry) string { return e.ID })
		return err
	})
}

// AddChecklistItem appends an unchecked item. Blank text is rejected.
func (s *Store) AddChecklistItem(ctx context.Context, text string) (model.ChecklistItem, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.ChecklistItem{}, fmt.Errorf("%w: checklist text is required", ErrInvalid)
	}
	item := model.ChecklistItem{ID: s.newID(), Text: text}
	err := s.update(ctx, func(doc *model.Itinerary) error {
		doc.Checklist = append(doc.Checklist, item)
		return nil
	})
	if err != nil {
		return model.ChecklistItem{}, err
	}
	return item, nil
}

// ToggleChecklistItem flips an item's done flag and returns the new state.
func (s *Store) ToggleChecklistItem(ctx context.Context, id string) (model.ChecklistItem, error) {
	var out model.ChecklistItem
	err := s.update(ctx, func(doc *model.Itinerary) error {
		for i := range doc.Checklist {
			if doc.Checklist[i].ID == id {
				doc.Checklist[i].Done = !doc.Checklist[i].Done
				out = doc.Checklist[i]
				return nil
			}
		}
		return fmt.Errorf("checklist item %s: %w", id, ErrNotFound)
	})
	return out, err
}

// ClearDoneChecklist drops completed items and reports how many went.
func (s *Store) ClearDoneChecklist(ctx context.Context) (int, error) {
	removed := 0
	err := s.update(ctx, func(doc *model.Itinerary) error {
		kept := doc.Checklist[:0]
		for _, item := range doc.Checklist {
			if item.Done {
				removed++
				continue
			}
			kept = append(kept, item)
		}
		doc.Checklist = kept
		return nil
	})
	return removed, err
}

func segmentIndex(doc *model.Itinerary, id string) int {
	for i := range doc.Segments {
		if doc.Segments[i].ID == id {
			return i
		}
	}
	return -1
}

func findSegment(doc *model.Itinerary, id string) (*model.Segment, error) {
	i := segmentIndex(doc, id)
	if i < 0 {
		return nil, fmt.Errorf("segment %s: %w", id, ErrNotFound)
	}
	return &doc.Segments[i], nil
}

func removeByID[T any](items []T, id string, key func(T) string) ([]T, error) {
	for i, it := range items {
		if key(it) == id {
			return append(items[:i], items[i+1:]...), nil
		}
	}
	return items, fmt.Errorf("item %s: %w", id, ErrNotFound)
}
