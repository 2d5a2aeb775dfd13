package web

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"tripcal/internal/cloudsync"
	"tripcal/internal/ics"
	appLog "tripcal/internal/log"
	"tripcal/internal/model"
	"tripcal/internal/plan"
)

const defaultAgendaDays = 14

func (s *Server) handleBudget(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, plan.Budget(s.store.Snapshot()))
}

func (s *Server) handleStudy(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, plan.StudyPlan(s.store.Snapshot()))
}

func (s *Server) exportOptions() ics.Options {
	return ics.Options{ProductID: s.cfg.Export.ProductID}
}

// exportName is the download file name: the title with spaces as
// underscores, or "trip" when the title is blank.
func exportName(title, ext string) string {
	name := strings.ReplaceAll(strings.TrimSpace(title), " ", "_")
	if name == "" {
		name = "trip"
	}
	return name + ext
}

func attachment(w http.ResponseWriter, name string) {
	w.Header().Set("Content-Disposition", `attachment; filename="`+strings.ReplaceAll(name, `"`, "")+`"`)
}

func (s *Server) handleExportICS(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	doc := s.store.Snapshot()
	body := ics.Generate(doc, s.exportOptions())

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	attachment(w, exportName(doc.Title, ".ics"))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		appLog.Error("failed to write calendar export", err)
	}
}

func (s *Server) handleExportJSON(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	doc := s.store.Snapshot()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		appLog.Error("failed to encode itinerary export", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	attachment(w, exportName(doc.Title, ".json"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type previewEvent struct {
	UID         string `json:"uid"`
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	AllDay      bool   `json:"allDay"`
	Start       string `json:"start"`
	End         string `json:"end,omitempty"`
}

type previewResponse struct {
	Calendar string         `json:"calendar"`
	Events   []previewEvent `json:"events"`
}

// handleExportPreview returns the calendar text along with the events read
// back from it.
func (s *Server) handleExportPreview(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	doc := s.store.Snapshot()
	body := ics.Generate(doc, s.exportOptions())
	resp := previewResponse{Calendar: body, Events: []previewEvent{}}

	if len(ics.Entries(doc)) == 0 {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	events, err := previewEvents(body)
	if err != nil {
		appLog.Error("export preview parse failed", err)
		writeError(w, http.StatusInternalServerError, "preview failed")
		return
	}
	resp.Events = events
	writeJSON(w, http.StatusOK, resp)
}

// previewEvents reads the generated calendar back into display rows.
func previewEvents(body string) ([]previewEvent, error) {
	events, err := ics.Parse([]byte(body))
	if err != nil {
		return nil, err
	}
	return toPreview(events), nil
}

func toPreview(events []model.Event) []previewEvent {
	out := make([]previewEvent, 0, len(events))
	for _, ev := range events {
		pe := previewEvent{
			UID:         ev.UID,
			Summary:     ev.Summary,
			Description: ev.Description,
			Location:    ev.Location,
			AllDay:      ev.AllDay,
			Start:       formatPreviewTime(ev.Start, ev.AllDay),
		}
		if ev.HasEnd() {
			pe.End = formatPreviewTime(ev.End, ev.AllDay)
		}
		out = append(out, pe)
	}
	return out
}

// handleAgenda lists exported events overlapping [from, to], both given as
// YYYY-MM-DD. from defaults to today and to to two weeks after from.
func (s *Server) handleAgenda(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := r.URL.Query()
	today := time.Now()
	from := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.Local)
	if v := q.Get("from"); v != "" {
		t, err := time.ParseInLocation(model.DateLayout, v, time.Local)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
			return
		}
		from = t
	}
	to := from.AddDate(0, 0, defaultAgendaDays)
	if v := q.Get("to"); v != "" {
		t, err := time.ParseInLocation(model.DateLayout, v, time.Local)
		if err != nil {
			writeError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
			return
		}
		to = t
	}
	to = to.AddDate(0, 0, 1).Add(-time.Nanosecond)

	doc := s.store.Snapshot()
	if len(ics.Entries(doc)) == 0 {
		writeJSON(w, http.StatusOK, []previewEvent{})
		return
	}
	events, err := ics.Parse([]byte(ics.Generate(doc, s.exportOptions())))
	if err != nil {
		appLog.Error("agenda parse failed", err)
		writeError(w, http.StatusInternalServerError, "agenda failed")
		return
	}
	window, err := ics.Agenda(events, ics.AgendaWindow{From: from, To: to})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toPreview(window))
}

func formatPreviewTime(t time.Time, allDay bool) string {
	if allDay {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02T15:04")
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	if s.sync == nil {
		writeJSON(w, http.StatusOK, cloudsync.Status{Enabled: false, Online: true})
		return
	}
	writeJSON(w, http.StatusOK, s.sync.Status())
}

func (s *Server) handleSyncOnline(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.sync == nil {
		writeError(w, http.StatusConflict, "remote sync is not configured")
		return
	}
	switch r.URL.Query().Get("state") {
	case "on":
		s.sync.SetOnline(true)
	case "off":
		s.sync.SetOnline(false)
	default:
		writeError(w, http.StatusBadRequest, "state must be on or off")
		return
	}
	writeJSON(w, http.StatusOK, s.sync.Status())
}
