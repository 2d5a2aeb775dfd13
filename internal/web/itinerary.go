package web

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"tripcal/internal/model"
	"tripcal/internal/store"
)

func (s *Server) handleGetItinerary(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

// handleImport replaces the whole document with the request body.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var raw json.RawMessage
	if !decodeJSON(w, r, &raw) {
		return
	}
	doc, err := model.Decode(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "import failed: "+err.Error())
		return
	}
	if err := s.store.Replace(r.Context(), doc); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

func (s *Server) handleSetTitle(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		Title string `json:"title"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.store.SetTitle(r.Context(), req.Title); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleAddSegment(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var seg model.Segment
	if !decodeJSON(w, r, &seg) {
		return
	}
	out, err := s.store.AddSegment(r.Context(), seg)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleUpdateSegment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var patch store.SegmentPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	out, err := s.store.UpdateSegment(r.Context(), ps.ByName("id"), patch)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRemoveSegment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := s.store.RemoveSegment(r.Context(), ps.ByName("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMoveSegment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	dir := store.Direction(r.URL.Query().Get("dir"))
	if err := s.store.MoveSegment(r.Context(), ps.ByName("id"), dir); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.store.Snapshot().Segments)
}

func (s *Server) handleSetTransport(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var t model.Transport
	if !decodeJSON(w, r, &t) {
		return
	}
	if err := s.store.SetTransport(r.Context(), ps.ByName("id"), store.Leg(ps.ByName("leg")), &t); err != nil {
		writeStoreError(w, err)
		return
	}
	s.writeSegment(w, ps.ByName("id"))
}

func (s *Server) handleClearTransport(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := s.store.SetTransport(r.Context(), ps.ByName("id"), store.Leg(ps.ByName("leg")), nil); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeSegment(w http.ResponseWriter, id string) {
	for _, seg := range s.store.Snapshot().Segments {
		if seg.ID == id {
			writeJSON(w, http.StatusOK, seg)
			return
		}
	}
	writeError(w, http.StatusNotFound, "segment not found")
}

func (s *Server) handleAddStay(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var st model.Stay
	if !decodeJSON(w, r, &st) {
		return
	}
	out, err := s.store.AddStay(r.Context(), ps.ByName("id"), st)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleRemoveStay(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.removed(w, s.store.RemoveStay(r.Context(), ps.ByName("id"), ps.ByName("itemID")))
}

func (s *Server) handleAddPlace(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var p model.Place
	if !decodeJSON(w, r, &p) {
		return
	}
	out, err := s.store.AddPlace(r.Context(), ps.ByName("id"), p)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleRemovePlace(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.removed(w, s.store.RemovePlace(r.Context(), ps.ByName("id"), ps.ByName("itemID")))
}

func (s *Server) handleAddSpend(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var e model.SpendEntry
	if !decodeJSON(w, r, &e) {
		return
	}
	out, err := s.store.AddSpend(r.Context(), ps.ByName("id"), e)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleRemoveSpend(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.removed(w, s.store.RemoveSpend(r.Context(), ps.ByName("id"), ps.ByName("itemID")))
}

func (s *Server) removed(w http.ResponseWriter, err error) {
	if err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddChecklistItem(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		Text string `json:"text"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	item, err := s.store.AddChecklistItem(r.Context(), req.Text)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleToggleChecklistItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	item, err := s.store.ToggleChecklistItem(r.Context(), ps.ByName("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// handleClearChecklist drops completed items.
func (s *Server) handleClearChecklist(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	n, err := s.store.ClearDoneChecklist(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}
