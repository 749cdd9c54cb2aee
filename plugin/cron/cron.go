// Package cron runs the trajectory-projection refresh on a schedule, wired
// over github.com/robfig/cron/v3 (a dependency already present across the
// example pack's agent/bot repos for exactly this kind of scheduled-job
// need, though not in the teacher itself).
package cron

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Logger is robfig/cron's logging interface, re-exported so callers never
// need to import robfig/cron/v3 directly.
type Logger = cron.Logger

// PrintfLogger adapts any *log.Logger-shaped printer into a Logger.
var PrintfLogger = cron.PrintfLogger

// Job is one unit of scheduled work; ctx is cancelled on Scheduler.Stop.
type Job func(ctx context.Context)

// Scheduler wraps a robfig/cron/v3 Cron, binding each entry to a
// context.Context derived from the scheduler's own lifetime.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

// New constructs a Scheduler. logger may be nil, in which case robfig/cron's
// own DefaultLogger is used.
func New(logger Logger) *Scheduler {
	opts := []cron.Option{cron.WithSeconds()}
	if logger != nil {
		opts = append(opts, cron.WithLogger(logger))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{cron: cron.New(opts...), ctx: ctx, cancel: cancel}
}

// Schedule registers job to run on spec: a 6-field expression whose first
// field is seconds, or one of robfig's descriptors such as @every/@hourly.
// Returns robfig/cron's entry id.
func (s *Scheduler) Schedule(spec string, job Job) (cron.EntryID, error) {
	return s.cron.AddFunc(spec, func() { job(s.ctx) })
}

// Start begins running the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for any in-flight job to finish.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	s.cancel()
	<-stopCtx.Done()
}

// DefaultLogger wraps slog.Default() the way the rest of this module logs.
func DefaultLogger() Logger {
	return slogLogger{}
}

type slogLogger struct{}

func (slogLogger) Info(msg string, keysAndValues ...any) {
	slog.Info(msg, keysAndValues...)
}

func (slogLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
