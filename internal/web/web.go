package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"tripcal/internal/cloudsync"
	"tripcal/internal/config"
	appLog "tripcal/internal/log"
	"tripcal/internal/store"
)

// maxBodyBytes bounds JSON request bodies, imports included.
const maxBodyBytes = 4 << 20

// SyncControl is the part of the remote syncer the API exposes.
type SyncControl interface {
	Status() cloudsync.Status
	SetOnline(online bool)
}

// Server provides the JSON API over the itinerary store.
type Server struct {
	cfg    *config.Config
	debug  bool
	store  *store.Store
	sync   SyncControl
	router *httprouter.Router
	limit  *rateLimiter
}

// NewServer constructs a new Server. sc may be nil when remote sync is off.
func NewServer(cfg *config.Config, st *store.Store, sc SyncControl, debug bool) *Server {
	s := &Server{
		cfg:    cfg,
		debug:  debug,
		store:  st,
		sync:   sc,
		router: httprouter.New(),
	}
	if cfg.RateLimitRPS > 0 {
		s.limit = newRateLimiter(cfg.RateLimitRPS, max(1, int(cfg.RateLimitRPS)))
	}
	s.registerRoutes()
	return s
}

// Handler returns the router wrapped in rate limiting, basic auth and CORS,
// outermost last.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.limit != nil {
		h = s.limit.middleware(h)
	}
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}
	return cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:     []string{"Content-Type", "Authorization"},
		ExposedHeaders:     []string{"Content-Disposition"},
		AllowCredentials:   !containsWildcard(s.cfg.AllowedOrigins),
		OptionsPassthrough: false,
	}).Handler(h)
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Blank user or password counts as disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="tripcal", charset="UTF-8"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Serve runs the HTTP server on cfg.Listen until ctx is cancelled, then
// shuts it down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen, "debug", s.debug)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Server) registerRoutes() {
	r := s.router
	r.GET("/health", s.handleHealth)

	r.GET("/api/itinerary", s.handleGetItinerary)
	r.PUT("/api/itinerary", s.handleImport)
	r.PATCH("/api/itinerary/title", s.handleSetTitle)

	r.POST("/api/segments", s.handleAddSegment)
	r.PATCH("/api/segments/:id", s.handleUpdateSegment)
	r.DELETE("/api/segments/:id", s.handleRemoveSegment)
	r.POST("/api/segments/:id/move", s.handleMoveSegment)
	r.PUT("/api/segments/:id/transport/:leg", s.handleSetTransport)
	r.DELETE("/api/segments/:id/transport/:leg", s.handleClearTransport)
	r.POST("/api/segments/:id/stays", s.handleAddStay)
	r.DELETE("/api/segments/:id/stays/:itemID", s.handleRemoveStay)
	r.POST("/api/segments/:id/places", s.handleAddPlace)
	r.DELETE("/api/segments/:id/places/:itemID", s.handleRemovePlace)
	r.POST("/api/segments/:id/spend", s.handleAddSpend)
	r.DELETE("/api/segments/:id/spend/:itemID", s.handleRemoveSpend)

	r.POST("/api/checklist", s.handleAddChecklistItem)
	r.POST("/api/checklist/:id/toggle", s.handleToggleChecklistItem)
	r.DELETE("/api/checklist", s.handleClearChecklist)

	r.GET("/api/summary/budget", s.handleBudget)
	r.GET("/api/summary/study", s.handleStudy)

	r.GET("/api/export.ics", s.handleExportICS)
	r.GET("/api/export.json", s.handleExportJSON)
	r.GET("/api/export/preview", s.handleExportPreview)
	r.GET("/api/agenda", s.handleAgenda)

	r.GET("/api/sync", s.handleSyncStatus)
	r.POST("/api/sync/online", s.handleSyncOnline)

	r.NotFound = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.PanicHandler = func(w http.ResponseWriter, r *http.Request, v interface{}) {
		appLog.Error("handler panic", fmt.Errorf("%v", v), "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		msg := "invalid JSON body"
		if errors.Is(err, io.EOF) {
			msg = "empty body"
		}
		writeError(w, http.StatusBadRequest, msg)
		return false
	}
	return true
}

// writeStoreError maps store sentinels onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		appLog.Error("store operation failed", err)
		writeError(w, http.StatusInternalServerError, "failed to save itinerary")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
