// Package refresh polls the backend on a cron schedule so the calendar
// stays current without user interaction.
package refresh

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "studycal/internal/log"
)

const defaultJobTimeout = 2 * time.Minute

// Refresher is what a tick refreshes; *controller.Controller satisfies it.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Hook runs after every refresh, whether or not it succeeded.
type Hook func(ctx context.Context) error

// Scheduler runs Refresher.Refresh on a cron spec in a fixed location.
// Overlapping ticks are skipped.
type Scheduler struct {
	cron    *cron.Cron
	entry   cron.EntryID
	target  Refresher
	after   Hook
	timeout time.Duration
	quiet   []error

	mu   sync.Mutex
	base context.Context
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithAfter adds a hook that runs after each refresh, e.g. a capture.
func WithAfter(h Hook) Option {
	return func(s *Scheduler) { s.after = h }
}

// WithTimeout bounds a single tick. Defaults to two minutes.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithExpected lists errors that are part of normal operation, such as no
// group being selected yet. A tick failing with one of them logs at debug.
func WithExpected(errs ...error) Option {
	return func(s *Scheduler) { s.quiet = append(s.quiet, errs...) }
}

// New parses spec (standard 5-field cron or descriptors such as
// "@every 5m") and prepares a scheduler. It does not start it.
func New(spec string, loc *time.Location, target Refresher, opts ...Option) (*Scheduler, error) {
	if target == nil {
		return nil, errors.New("refresh: nil target")
	}
	if loc == nil {
		loc = time.Local
	}

	s := &Scheduler{
		target:  target,
		timeout: defaultJobTimeout,
		base:    context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}

	logger := cronLogger{}
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	id, err := s.cron.AddFunc(spec, s.tick)
	if err != nil {
		return nil, err
	}
	s.entry = id
	return s, nil
}

// Start begins ticking. Jobs derive their context from ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.base = ctx
	s.mu.Unlock()
	s.cron.Start()
	appLog.Info("refresh scheduler started", "next", s.Next().Format(time.RFC3339))
}

// Stop stops ticking and waits for a running job, up to ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		appLog.Info("refresh scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next is the time of the next tick, zero before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// RunNow performs one refresh (and the after hook) synchronously.
func (s *Scheduler) RunNow(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := s.target.Refresh(ctx)
	switch {
	case err != nil && s.expected(err):
		appLog.Debug("scheduled refresh skipped", "reason", err.Error())
	case err != nil:
		appLog.Error("scheduled refresh failed", err, "elapsed", time.Since(start).String())
	default:
		appLog.Info("scheduled refresh completed", "elapsed", time.Since(start).String())
	}

	if s.after != nil {
		if herr := s.after(ctx); herr != nil {
			appLog.Error("post-refresh hook failed", herr)
			err = errors.Join(err, herr)
		}
	}
	return err
}

func (s *Scheduler) expected(err error) bool {
	for _, q := range s.quiet {
		if errors.Is(err, q) {
			return true
		}
	}
	return false
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.base
	s.mu.Unlock()
	_ = s.RunNow(ctx)
}

// cronLogger routes cron's own messages through the app logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
