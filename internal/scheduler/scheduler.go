// Package scheduler runs named background jobs on recurring triggers.
//
// Each job gets its own timer loop. A trigger that fires while the
// previous run of the same job is still in flight is skipped, not
// queued, so a slow upstream can never stack concurrent runs.
package scheduler

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/strikemap-systems/strikemap/internal/metrics"
)

// Trigger computes the delay until a job's next run.
type Trigger interface {
	Next(now time.Time) time.Duration
}

// Every fires at a fixed interval.
type Every time.Duration

func (e Every) Next(time.Time) time.Duration { return time.Duration(e) }

// EveryJitter fires at a fixed interval plus a random delay of up to
// Jitter, decorrelating this instance from others polling the same
// upstream.
type EveryJitter struct {
	Interval time.Duration
	Jitter   time.Duration
}

func (e EveryJitter) Next(time.Time) time.Duration {
	if e.Jitter <= 0 {
		return e.Interval
	}
	return e.Interval + time.Duration(rand.Int63n(int64(e.Jitter)))
}

// DailyAt fires once a day at the given UTC wall-clock time.
type DailyAt struct {
	Hour   int
	Minute int
	Second int
}

func (d DailyAt) Next(now time.Time) time.Duration {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), d.Hour, d.Minute, d.Second, 0, time.UTC)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}

// Job is a named unit of recurring work. Run errors are logged and
// counted but never stop the schedule.
type Job struct {
	Name    string
	Trigger Trigger
	Run     func(ctx context.Context) error

	running atomic.Bool
}

// Scheduler drives a set of jobs until stopped.
type Scheduler struct {
	logger *slog.Logger
	jobs   []*Job
	drain  time.Duration

	cancel context.CancelFunc
	loops  sync.WaitGroup
	runs   sync.WaitGroup
}

// New creates a Scheduler. drain bounds how long Stop waits for
// in-flight runs.
func New(logger *slog.Logger, drain time.Duration) *Scheduler {
	return &Scheduler{logger: logger, drain: drain}
}

// Add registers a job. Must be called before Start.
func (s *Scheduler) Add(name string, trigger Trigger, run func(ctx context.Context) error) {
	s.jobs = append(s.jobs, &Job{Name: name, Trigger: trigger, Run: run})
}

// Start launches one timer loop per job. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	for _, job := range s.jobs {
		s.loops.Add(1)
		go s.loop(ctx, job)
	}
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
}

func (s *Scheduler) loop(ctx context.Context, job *Job) {
	defer s.loops.Done()

	timer := time.NewTimer(job.Trigger.Next(time.Now()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.dispatch(ctx, job)
			timer.Reset(job.Trigger.Next(time.Now()))
		}
	}
}

// dispatch starts a run unless the previous one is still in flight.
func (s *Scheduler) dispatch(ctx context.Context, job *Job) {
	if !job.running.CompareAndSwap(false, true) {
		s.logger.Warn("job still running, skipping trigger", "job", job.Name)
		metrics.JobRuns.WithLabelValues(job.Name, "skipped").Inc()
		return
	}

	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		defer job.running.Store(false)
		s.run(ctx, job)
	}()
}

func (s *Scheduler) run(ctx context.Context, job *Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked", "job", job.Name, "panic", r)
			metrics.JobRuns.WithLabelValues(job.Name, "panic").Inc()
		}
	}()

	started := time.Now()
	if err := job.Run(ctx); err != nil {
		s.logger.Error("job failed", "job", job.Name,
			"error", err.Error(), "duration", time.Since(started).String())
		metrics.JobRuns.WithLabelValues(job.Name, "error").Inc()
		return
	}
	metrics.JobRuns.WithLabelValues(job.Name, "ok").Inc()
}

// Stop cancels all timer loops and waits up to the drain bound for
// in-flight runs to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.loops.Wait()

	done := make(chan struct{})
	go func() {
		s.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("scheduler stopped")
	case <-time.After(s.drain):
		s.logger.Warn("scheduler stop timed out waiting for running jobs",
			"drain", s.drain.String())
	}
}
