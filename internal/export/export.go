// Package export writes the calendar file on a schedule.
package export

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"tripcal/internal/config"
	"tripcal/internal/ics"
	appLog "tripcal/internal/log"
	"tripcal/internal/model"
)

// Source supplies the document to export.
type Source interface {
	Snapshot() *model.Itinerary
}

// Job renders the itinerary and writes it to Path.
type Job struct {
	Source    Source
	Path      string
	ProductID string

	mu      sync.Mutex
	lastRun time.Time
	lastErr error
}

func (j *Job) options() ics.Options {
	return ics.Options{ProductID: j.ProductID}
}

// Render returns the current calendar document.
func (j *Job) Render() string {
	return ics.Generate(j.Source.Snapshot(), j.options())
}

// WriteTo writes the calendar document to w.
func (j *Job) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, j.Render())
	return int64(n), err
}

// Run writes the calendar file atomically. The file is rewritten even when
// nothing changed, so DTSTAMP reflects the last run.
func (j *Job) Run() error {
	start := time.Now()
	doc := j.Source.Snapshot()
	body := ics.Generate(doc, j.options())

	err := config.WriteFileAtomic(j.Path, []byte(body), ".tripcal-export-*.tmp")

	j.mu.Lock()
	j.lastRun = start
	j.lastErr = err
	j.mu.Unlock()

	if err != nil {
		return fmt.Errorf("write export %s: %w", j.Path, err)
	}
	appLog.Info("calendar exported",
		"path", j.Path,
		"events", len(ics.Entries(doc)),
		"elapsed", time.Since(start).String(),
	)
	return nil
}

// LastRun reports when Run last executed and how it ended.
func (j *Job) LastRun() (time.Time, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastRun, j.lastErr
}

// Scheduler runs a Job on a cron schedule.
type Scheduler struct {
	cron *cron.Cron
}

// Schedule registers job under spec (standard five-field cron syntax) and
// starts the scheduler.
func Schedule(spec string, job *Job) (*Scheduler, error) {
	c := cron.New(cron.WithLogger(cronLogger{}), cron.WithChain(cron.Recover(cronLogger{})))
	_, err := c.AddFunc(spec, func() {
		if err := job.Run(); err != nil {
			appLog.Error("scheduled export failed", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid export schedule %q: %w", spec, err)
	}
	c.Start()
	appLog.Info("export scheduler started", "cron", spec, "path", job.Path)
	return &Scheduler{cron: c}, nil
}

// Stop stops scheduling and waits for a running export, or ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// cronLogger adapts the app log to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
