package cloudsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	appLog "tripcal/internal/log"
	"tripcal/internal/model"
)

// DefaultDebounce is how long edits settle before an upsert.
const DefaultDebounce = 900 * time.Millisecond

const saveTimeout = 10 * time.Second

// maxRetryDelay caps the backoff between attempts to save a failed upload.
const maxRetryDelay = 30 * time.Second

// Document is the local side the syncer reads from and restores into.
type Document interface {
	Snapshot() *model.Itinerary
	Restore(ctx context.Context, it *model.Itinerary) error
}

// Status is what the sync indicator shows.
type Status struct {
	Enabled   bool       `json:"enabled"`
	Online    bool       `json:"online"`
	Syncing   bool       `json:"syncing"`
	Pending   bool       `json:"pending"`
	LastSaved *time.Time `json:"lastSaved,omitempty"`
	LastError string     `json:"lastError,omitempty"`
}

// Syncer pushes local edits to a Remote, debounced, and holds them while
// offline.
type Syncer struct {
	remote   Remote
	doc      Document
	userID   string
	debounce time.Duration
	now      func() time.Time

	saveMu   sync.Mutex
	inflight sync.WaitGroup

	mu        sync.Mutex
	online    bool
	syncing   bool
	pending   *model.Itinerary
	timer     *time.Timer
	retry     time.Duration
	lastSaved time.Time
	lastErr   string
	closed    bool
}

// New returns an online syncer. A non-positive debounce means DefaultDebounce.
func New(remote Remote, doc Document, userID string, debounce time.Duration) *Syncer {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Syncer{
		remote:   remote,
		doc:      doc,
		userID:   userID,
		debounce: debounce,
		now:      time.Now,
		online:   true,
	}
}

// Start pulls the user's record. A stored record replaces the local document;
// when there is none the local document is uploaded.
func (s *Syncer) Start(ctx context.Context) error {
	rec, err := s.remote.Load(ctx, s.userID)
	switch {
	case errors.Is(err, ErrNoRecord):
		appLog.Info("no remote itinerary, uploading local copy", "user", s.userID)
		return s.save(ctx, s.doc.Snapshot())
	case err != nil:
		s.setErr(err)
		return fmt.Errorf("pull itinerary: %w", err)
	}

	if rec.Data == nil {
		return s.save(ctx, s.doc.Snapshot())
	}
	if err := s.doc.Restore(ctx, rec.Data); err != nil {
		return fmt.Errorf("restore remote itinerary: %w", err)
	}
	appLog.Info("remote itinerary restored", "user", s.userID, "updated_at", rec.UpdatedAt.Format(time.RFC3339))
	return nil
}

// Notify queues doc for upload. Bursts of edits within the debounce window
// collapse into one save of the latest document.
func (s *Syncer) Notify(doc *model.Itinerary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pending = doc
	if s.online {
		s.scheduleLocked(s.debounce)
	}
}

// SetOnline marks connectivity. Going back online flushes anything held.
func (s *Syncer) SetOnline(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	was := s.online
	s.online = online
	if !online && s.timer != nil {
		s.timer.Stop()
	}
	if online && !was && s.pending != nil && !s.closed {
		appLog.Info("back online, flushing pending itinerary")
		s.scheduleLocked(0)
	}
}

func (s *Syncer) scheduleLocked(d time.Duration) {
	if s.timer == nil {
		s.timer = time.AfterFunc(d, s.flush)
		return
	}
	s.timer.Reset(d)
}

func (s *Syncer) flush() {
	s.mu.Lock()
	doc := s.pending
	if doc == nil || !s.online || s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	err := s.save(ctx, doc)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		s.retry = 0
		return
	}
	// A newer edit already replaced the failed document and armed the timer.
	if s.pending != nil {
		return
	}
	s.pending = doc
	if s.online && !s.closed {
		s.retry = nextRetry(s.retry, s.debounce)
		appLog.Debug("remote save retry scheduled", "user", s.userID, "in", s.retry.String())
		s.scheduleLocked(s.retry)
	}
}

// nextRetry doubles the previous delay, starting at base and capped at
// maxRetryDelay.
func nextRetry(prev, base time.Duration) time.Duration {
	if prev <= 0 {
		return base
	}
	if next := prev * 2; next < maxRetryDelay {
		return next
	}
	return maxRetryDelay
}

func (s *Syncer) save(ctx context.Context, doc *model.Itinerary) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	s.syncing = true
	s.mu.Unlock()

	now := s.now().UTC()
	err := s.remote.Save(ctx, Record{UserID: s.userID, Data: doc, UpdatedAt: now})

	s.mu.Lock()
	s.syncing = false
	if err == nil {
		s.lastSaved = now
		s.lastErr = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.setErr(err)
		appLog.Error("remote save failed", err, "user", s.userID)
		return err
	}
	appLog.Debug("remote save ok", "user", s.userID)
	return nil
}

func (s *Syncer) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
}

// Status reports the current sync state.
func (s *Syncer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Enabled:   true,
		Online:    s.online,
		Syncing:   s.syncing,
		Pending:   s.pending != nil,
		LastError: s.lastErr,
	}
	if !s.lastSaved.IsZero() {
		t := s.lastSaved
		st.LastSaved = &t
	}
	return st
}

// Close stops the timer, waits for an upload in progress and, when online,
// uploads whatever is still pending.
func (s *Syncer) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	s.inflight.Wait()

	s.mu.Lock()
	doc := s.pending
	online := s.online
	s.pending = nil
	s.mu.Unlock()

	if doc == nil || !online {
		return nil
	}
	return s.save(ctx, doc)
}
