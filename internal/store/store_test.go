package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripcal/internal/model"
)

func counter() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

// memLocal is a Local that can be told to fail.
type memLocal struct {
	data    []byte
	saves   int
	saveErr error
}

func (m *memLocal) Load(context.Context) ([]byte, error) {
	if m.data == nil {
		return nil, ErrNoDocument
	}
	return m.data, nil
}

func (m *memLocal) Save(_ context.Context, data []byte) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.data = append([]byte(nil), data...)
	return nil
}

func twoSegments() *model.Itinerary {
	return &model.Itinerary{
		Title:                  "Trip",
		DailyStudyHoursDefault: 2,
		Checklist:              []model.ChecklistItem{{ID: "c1", Text: "Passport"}, {ID: "c2", Text: "Adapter", Done: true}},
		Segments: []model.Segment{
			{ID: "a", Country: "Netherlands"},
			{ID: "b", Country: "Germany"},
		},
	}
}

func openMem(t *testing.T, seed *model.Itinerary) (*Store, *memLocal) {
	t.Helper()
	local := &memLocal{}
	s, err := Open(context.Background(), local, func() *model.Itinerary { return seed },
		WithIDs(counter()),
		WithClock(func() time.Time { return time.Date(2025, 9, 14, 10, 0, 0, 0, time.UTC) }),
	)
	require.NoError(t, err)
	return s, local
}

func countries(it *model.Itinerary) []string {
	out := make([]string, 0, len(it.Segments))
	for _, s := range it.Segments {
		out = append(out, s.Country)
	}
	return out
}

func TestOpenSeedsAndPersists(t *testing.T) {
	s, local := openMem(t, twoSegments())

	assert.Equal(t, 1, local.saves)
	assert.Equal(t, []string{"Netherlands", "Germany"}, countries(s.Snapshot()))

	// Reopen from what was saved.
	again, err := Open(context.Background(), local, func() *model.Itinerary { return nil })
	require.NoError(t, err)
	assert.Equal(t, "Trip", again.Snapshot().Title)
	assert.Equal(t, 1, local.saves)
}

func TestOpenCorruptFallsBackToSeed(t *testing.T) {
	local := &memLocal{data: []byte(`{"segments":`)}
	s, err := Open(context.Background(), local, twoSegments)
	require.NoError(t, err)
	assert.Len(t, s.Snapshot().Segments, 2)
	assert.Equal(t, 1, local.saves)
}

func TestSnapshotIsIsolated(t *testing.T) {
	s, _ := openMem(t, twoSegments())
	snap := s.Snapshot()
	snap.Segments[0].Country = "changed"
	assert.Equal(t, "Netherlands", s.Snapshot().Segments[0].Country)
}

func TestMoveSegment(t *testing.T) {
	ctx := context.Background()
	s, _ := openMem(t, twoSegments())

	require.NoError(t, s.MoveSegment(ctx, "a", Up))
	assert.Equal(t, []string{"Netherlands", "Germany"}, countries(s.Snapshot()))

	require.NoError(t, s.MoveSegment(ctx, "a", Down))
	assert.Equal(t, []string{"Germany", "Netherlands"}, countries(s.Snapshot()))

	require.NoError(t, s.MoveSegment(ctx, "a", Down))
	assert.Equal(t, []string{"Germany", "Netherlands"}, countries(s.Snapshot()))

	assert.ErrorIs(t, s.MoveSegment(ctx, "zzz", Up), ErrNotFound)
	assert.ErrorIs(t, s.MoveSegment(ctx, "a", "sideways"), ErrInvalid)
}

func TestAddUpdateRemoveSegment(t *testing.T) {
	ctx := context.Background()
	s, _ := openMem(t, twoSegments())

	_, err := s.AddSegment(ctx, model.Segment{Country: "  "})
	assert.ErrorIs(t, err, ErrInvalid)

	seg, err := s.AddSegment(ctx, model.Segment{
		Country: "Denmark",
		Spend:   []model.SpendEntry{{Amount: 5}},
	})
	require.NoError(t, err)
	assert.Equal(t, "id-1", seg.ID)
	assert.Empty(t, seg.Spend)
	assert.Equal(t, model.StatusConfirmed, seg.Status)
	assert.InDelta(t, 2.0, seg.DailyStudyHours, 0.001)

	country := "Danmark"
	budget := 650.0
	status := model.StatusTentative
	updated, err := s.UpdateSegment(ctx, seg.ID, SegmentPatch{Country: &country, Budget: &budget, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "Danmark", updated.Country)
	assert.InDelta(t, 650.0, updated.Budget, 0.001)
	assert.Equal(t, model.StatusTentative, updated.Status)

	bad := "maybe"
	_, err = s.UpdateSegment(ctx, seg.ID, SegmentPatch{Status: &bad})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = s.UpdateSegment(ctx, "nope", SegmentPatch{})
	assert.ErrorIs(t, err, ErrNotFound)

	for _, blank := range []string{"", "   ", "\t"} {
		_, err = s.UpdateSegment(ctx, seg.ID, SegmentPatch{Country: &blank})
		assert.ErrorIs(t, err, ErrInvalid, "country %q", blank)
	}
	padded := "  Danmark "
	updated, err = s.UpdateSegment(ctx, seg.ID, SegmentPatch{Country: &padded})
	require.NoError(t, err)
	assert.Equal(t, "Danmark", updated.Country)

	require.NoError(t, s.RemoveSegment(ctx, "a"))
	assert.Equal(t, []string{"Germany", "Danmark"}, countries(s.Snapshot()))
	assert.ErrorIs(t, s.RemoveSegment(ctx, "a"), ErrNotFound)
}

func TestSetTransport(t *testing.T) {
	ctx := context.Background()
	s, _ := openMem(t, twoSegments())

	require.NoError(t, s.SetTransport(ctx, "a", LegIn, &model.Transport{Type: "Flight", Date: "2025-09-11"}))
	in := s.Snapshot().Segments[0].TransportIn
	require.NotNil(t, in)
	assert.Equal(t, "id-1", in.ID)

	require.NoError(t, s.SetTransport(ctx, "a", LegIn, nil))
	assert.Nil(t, s.Snapshot().Segments[0].TransportIn)

	assert.ErrorIs(t, s.SetTransport(ctx, "a", "sideways", nil), ErrInvalid)
	assert.ErrorIs(t, s.SetTransport(ctx, "zzz", LegOut, nil), ErrNotFound)
}

func TestSegmentItems(t *testing.T) {
	ctx := context.Background()
	s, _ := openMem(t, twoSegments())

	_, err := s.AddStay(ctx, "a", model.Stay{})
	assert.ErrorIs(t, err, ErrInvalid)
	st, err := s.AddStay(ctx, "a", model.Stay{Name: "Hostel One", CheckIn: "2025-09-11", CheckOut: "2025-09-13"})
	require.NoError(t, err)
	assert.Equal(t, model.StayHostel, st.Type)

	tests := []struct {
		in, want int
	}{{0, 3}, {9, 5}, {-2, 1}, {4, 4}}
	for _, tt := range tests {
		p, err := s.AddPlace(ctx, "a", model.Place{Name: "Museum", Priority: tt.in})
		require.NoError(t, err)
		assert.Equal(t, tt.want, p.Priority, "priority %d", tt.in)
	}
	_, err = s.AddPlace(ctx, "a", model.Place{Priority: 2})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = s.AddSpend(ctx, "a", model.SpendEntry{Note: "free"})
	assert.ErrorIs(t, err, ErrInvalid)
	e, err := s.AddSpend(ctx, "a", model.SpendEntry{Amount: 12.5})
	require.NoError(t, err)
	assert.Equal(t, "2025-09-14", e.Date)
	assert.Equal(t, "Misc", e.Category)

	seg := s.Snapshot().Segments[0]
	assert.Len(t, seg.Stays, 1)
	assert.Len(t, seg.Places, 4)
	assert.Len(t, seg.Spend, 1)

	require.NoError(t, s.RemoveStay(ctx, "a", st.ID))
	require.NoError(t, s.RemoveSpend(ctx, "a", e.ID))
	require.NoError(t, s.RemovePlace(ctx, "a", seg.Places[0].ID))
	assert.ErrorIs(t, s.RemovePlace(ctx, "a", "missing"), ErrNotFound)
	assert.ErrorIs(t, s.RemoveStay(ctx, "zzz", st.ID), ErrNotFound)

	seg = s.Snapshot().Segments[0]
	assert.Empty(t, seg.Stays)
	assert.Empty(t, seg.Spend)
	assert.Len(t, seg.Places, 3)
}

func TestChecklist(t *testing.T) {
	ctx := context.Background()
	s, _ := openMem(t, twoSegments())

	_, err := s.AddChecklistItem(ctx, "   ")
	assert.ErrorIs(t, err, ErrInvalid)

	item, err := s.AddChecklistItem(ctx, "  Rail pass ")
	require.NoError(t, err)
	assert.Equal(t, "Rail pass", item.Text)
	assert.False(t, item.Done)

	toggled, err := s.ToggleChecklistItem(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, toggled.Done)
	_, err = s.ToggleChecklistItem(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	removed, err := s.ClearDoneChecklist(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	left := s.Snapshot().Checklist
	require.Len(t, left, 1)
	assert.Equal(t, "Rail pass", left[0].Text)
}

func TestFailedPersistLeavesDocumentUnchanged(t *testing.T) {
	ctx := context.Background()
	s, local := openMem(t, twoSegments())

	notified := 0
	s.OnChange(func(*model.Itinerary) { notified++ })

	local.saveErr = errors.New("disk full")
	err := s.SetTitle(ctx, "New")
	require.Error(t, err)
	assert.Equal(t, "Trip", s.Snapshot().Title)
	assert.Zero(t, notified)

	local.saveErr = nil
	require.NoError(t, s.SetTitle(ctx, "New"))
	assert.Equal(t, "New", s.Snapshot().Title)
	assert.Equal(t, 1, notified)
}

func TestObserversAndRestore(t *testing.T) {
	ctx := context.Background()
	s, _ := openMem(t, twoSegments())

	var got []*model.Itinerary
	s.OnChange(func(doc *model.Itinerary) { got = append(got, doc) })

	require.NoError(t, s.Replace(ctx, &model.Itinerary{Title: "Imported"}))
	require.Len(t, got, 1)
	assert.Equal(t, "Imported", got[0].Title)
	assert.NotNil(t, got[0].Segments)

	require.NoError(t, s.Restore(ctx, &model.Itinerary{Title: "Remote"}))
	assert.Len(t, got, 1)
	assert.Equal(t, "Remote", s.Snapshot().Title)

	assert.ErrorIs(t, s.Replace(ctx, nil), ErrInvalid)
}

func TestBadgerLocal(t *testing.T) {
	ctx := context.Background()
	local, err := OpenBadger("", "trip-planner-cache-v3")
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })

	_, err = local.Load(ctx)
	assert.ErrorIs(t, err, ErrNoDocument)

	s, err := Open(ctx, local, twoSegments)
	require.NoError(t, err)
	require.NoError(t, s.SetTitle(ctx, "Stored"))

	data, err := local.Load(ctx)
	require.NoError(t, err)
	doc, err := model.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "Stored", doc.Title)

	dir := t.TempDir()
	onDisk, err := OpenBadger(dir, "k")
	require.NoError(t, err)
	require.NoError(t, onDisk.Save(ctx, []byte(`{"title":"disk"}`)))
	require.NoError(t, onDisk.Close())

	reopened, err := OpenBadger(dir, "k")
	require.NoError(t, err)
	defer reopened.Close()
	data, err = reopened.Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"disk"}`, string(data))
}
