package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripcal/internal/cloudsync"
	"tripcal/internal/config"
	"tripcal/internal/model"
	"tripcal/internal/store"
)

type memLocal struct {
	mu   sync.Mutex
	data []byte
}

func (m *memLocal) Load(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, store.ErrNoDocument
	}
	return m.data, nil
}

func (m *memLocal) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	return nil
}

type fakeSync struct {
	online bool
}

func (f *fakeSync) Status() cloudsync.Status {
	return cloudsync.Status{Enabled: true, Online: f.online}
}

func (f *fakeSync) SetOnline(online bool) { f.online = online }

func seedDoc() *model.Itinerary {
	return &model.Itinerary{
		Title:     "Nordic Trip",
		Checklist: []model.ChecklistItem{{ID: "c1", Text: "Passport", Done: true}},
		Segments: []model.Segment{
			{
				ID: "a", Country: "Netherlands", StartDate: "2025-09-11", EndDate: "2025-09-13", Budget: 450,
				Stays: []model.Stay{{ID: "st1", Name: "Hostel", Address: "Main St, A", CheckIn: "2025-09-11", CheckOut: "2025-09-13"}},
			},
			{ID: "b", Country: "Germany"},
		},
	}
}

func newTestServer(t *testing.T, mutate func(*config.Config), sc SyncControl) (*Server, *store.Store) {
	t.Helper()
	n := 0
	st, err := store.Open(context.Background(), &memLocal{}, seedDoc,
		store.WithIDs(func() string { n++; return fmt.Sprintf("new-%d", n) }))
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.RateLimitRPS = 0
	if mutate != nil {
		mutate(cfg)
	}
	return NewServer(cfg, st, sc, false), st
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestGetAndImportItinerary(t *testing.T) {
	s, st := newTestServer(t, nil, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/itinerary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decode[model.Itinerary](t, rec)
	assert.Equal(t, "Nordic Trip", doc.Title)

	rec = do(t, h, http.MethodPut, "/api/itinerary", `{"title":"Imported","segments":[{"id":"z","country":"Iceland"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Iceland", st.Snapshot().Segments[0].Country)
	assert.NotNil(t, st.Snapshot().Checklist)

	rec = do(t, h, http.MethodPut, "/api/itinerary", `{"segments":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Imported", st.Snapshot().Title)

	rec = do(t, h, http.MethodPut, "/api/itinerary", `{"segments":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSegmentRoutes(t *testing.T) {
	s, st := newTestServer(t, nil, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/segments", `{"country":"Denmark","startDate":"2025-09-22","endDate":"2025-09-25"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	seg := decode[model.Segment](t, rec)
	assert.Equal(t, "new-1", seg.ID)

	rec = do(t, h, http.MethodPost, "/api/segments", `{"country":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPatch, "/api/segments/new-1", `{"budget":600,"status":"tentative"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 600, decode[model.Segment](t, rec).Budget, 0.001)

	rec = do(t, h, http.MethodPatch, "/api/segments/missing", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/segments/new-1/move?dir=up", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "new-1", st.Snapshot().Segments[1].ID)

	rec = do(t, h, http.MethodPost, "/api/segments/new-1/move?dir=left", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/segments/a/transport/in", `{"type":"Flight","from":"TPA","to":"AMS","date":"2025-09-11"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, st.Snapshot().Segments[0].TransportIn)

	rec = do(t, h, http.MethodPut, "/api/segments/a/transport/sideways", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/segments/a/transport/in", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, st.Snapshot().Segments[0].TransportIn)

	rec = do(t, h, http.MethodDelete, "/api/segments/b", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Len(t, st.Snapshot().Segments, 2)
}

func TestSegmentItemRoutes(t *testing.T) {
	s, st := newTestServer(t, nil, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/segments/a/places", `{"name":"Rijksmuseum","priority":7}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 5, decode[model.Place](t, rec).Priority)

	rec = do(t, h, http.MethodPost, "/api/segments/a/spend", `{"amount":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, h, http.MethodPost, "/api/segments/a/spend", `{"amount":18,"category":"Food","date":"2025-09-12"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	spend := decode[model.SpendEntry](t, rec)

	rec = do(t, h, http.MethodPost, "/api/segments/zzz/stays", `{"name":"Nowhere Inn"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/segments/a/spend/"+spend.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodDelete, "/api/segments/a/stays/st1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodDelete, "/api/segments/a/stays/st1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	seg := st.Snapshot().Segments[0]
	assert.Empty(t, seg.Spend)
	assert.Empty(t, seg.Stays)
	assert.Len(t, seg.Places, 1)
}

func TestChecklistRoutes(t *testing.T) {
	s, st := newTestServer(t, nil, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/checklist", `{"text":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/checklist", `{"text":"Rail pass"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	item := decode[model.ChecklistItem](t, rec)

	rec = do(t, h, http.MethodPost, "/api/checklist/"+item.ID+"/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[model.ChecklistItem](t, rec).Done)

	rec = do(t, h, http.MethodDelete, "/api/checklist", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{"removed": 2}, decode[map[string]int](t, rec))
	assert.Empty(t, st.Snapshot().Checklist)

	rec = do(t, h, http.MethodPatch, "/api/itinerary/title", `{"title":"Renamed"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Renamed", st.Snapshot().Title)
}

func TestExportICS(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/api/export.ics", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Nordic_Trip.ics"`, rec.Header().Get("Content-Disposition"))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "BEGIN:VCALENDAR\r\nPRODID:-//Trip Planner//EN\r\n"))
	assert.True(t, strings.HasSuffix(body, "END:VEVENT\r\nEND:VCALENDAR"))
	assert.Contains(t, body, "DTSTART;VALUE=DATE:20250911\r\n")
	assert.Contains(t, body, `LOCATION:Main St\, A`)
}

func TestExportJSONAndPreview(t *testing.T) {
	s, _ := newTestServer(t, func(c *config.Config) { c.Export.ProductID = "-//Custom//EN" }, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/export.json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="Nordic_Trip.json"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "Nordic Trip", decode[model.Itinerary](t, rec).Title)

	rec = do(t, h, http.MethodGet, "/api/export/preview", "")
	require.Equal(t, http.StatusOK, rec.Code)
	prev := decode[previewResponse](t, rec)
	assert.Contains(t, prev.Calendar, "PRODID:-//Custom//EN")
	require.Len(t, prev.Events, 1)
	assert.Equal(t, "Stay: Hostel — Netherlands", prev.Events[0].Summary)
	assert.Equal(t, "Main St, A", prev.Events[0].Location)
	assert.True(t, prev.Events[0].AllDay)
	assert.Equal(t, "2025-09-11", prev.Events[0].Start)
	assert.Equal(t, "2025-09-13", prev.Events[0].End)
}

func TestAgenda(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/agenda?from=2025-09-12&to=2025-09-12", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode[[]previewEvent](t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, "2025-09-11", rows[0].Start)

	rec = do(t, h, http.MethodGet, "/api/agenda?from=2025-09-13&to=2025-09-20", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]previewEvent](t, rec))

	rec = do(t, h, http.MethodGet, "/api/agenda?from=2025-09-20&to=2025-09-01", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/agenda?from=soon", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportName(t *testing.T) {
	assert.Equal(t, "Nordic_Trip_2025.ics", exportName("Nordic Trip 2025", ".ics"))
	assert.Equal(t, "trip.json", exportName("   ", ".json"))
}

func TestSummaries(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/summary/budget", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var budget struct {
		Planned float64 `json:"planned"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &budget))
	assert.InDelta(t, 450, budget.Planned, 0.001)

	rec = do(t, h, http.MethodGet, "/api/summary/study", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var study struct {
		TotalDays int `json:"totalDays"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &study))
	assert.Equal(t, 3, study.TotalDays)
}

func TestSyncRoutes(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/api/sync", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[cloudsync.Status](t, rec).Enabled)
	rec = do(t, s.Handler(), http.MethodPost, "/api/sync/online?state=off", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	fs := &fakeSync{online: true}
	s, _ = newTestServer(t, nil, fs)
	h := s.Handler()
	rec = do(t, h, http.MethodPost, "/api/sync/online?state=off", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, fs.online)
	rec = do(t, h, http.MethodPost, "/api/sync/online?state=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/sync", "")
	assert.True(t, decode[cloudsync.Status](t, rec).Enabled)
}

func TestBasicAuth(t *testing.T) {
	s, _ := newTestServer(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "me", Password: "secret"}
	}, nil)
	h := s.Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)

	rec := do(t, h, http.MethodGet, "/api/itinerary", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	req := httptest.NewRequest(http.MethodGet, "/api/itinerary", nil)
	req.SetBasicAuth("me", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/itinerary", nil)
	req.SetBasicAuth("me", "wrong!")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimit(t *testing.T) {
	s, _ := newTestServer(t, func(c *config.Config) { c.RateLimitRPS = 1 }, nil)
	h := s.Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/itinerary", "").Code)
	rec := do(t, h, http.MethodGet, "/api/itinerary", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// Health checks are never limited.
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t, func(c *config.Config) {
		c.AllowedOrigins = []string{"https://planner.example"}
	}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/segments/a", nil)
	req.Header.Set("Origin", "https://planner.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "https://planner.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownRoute(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/api/nothing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)
}
