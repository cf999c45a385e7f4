// Package scheduler provides named one-shot and interval jobs with
// cancellation by name. The original (original_source/common/scheduler.py)
// wraps APScheduler's BackgroundScheduler; no such library exists in
// this pack's dependency surface, so jobs are driven directly over
// time.Timer/time.Ticker, matched against the original's
// execute_interval/execute_delayed/cancel surface (spec §9 open
// question (a): a single scheduling abstraction, not two).
package scheduler

import (
	"sync"
	"time"
)

type job struct {
	stop func() bool // returns true iff it prevented the job body from running
}

// Scheduler runs named jobs. Long-press detection relies on cancel(name)
// returning whether the job was still pending (spec §5).
type Scheduler struct {
	mu   sync.Mutex
	jobs map[string]*job
}

func New() *Scheduler {
	return &Scheduler{jobs: make(map[string]*job)}
}

// ExecuteDelayed runs fn once after d, under the given name. A prior job
// registered under the same name is implicitly replaced (not cancelled
// first by the caller — mirrors the original's behaviour of simply
// overwriting the scheduler's job id).
func (s *Scheduler) ExecuteDelayed(name string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.jobs[name]; ok {
		old.stop()
	}
	t := time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.jobs, name)
		s.mu.Unlock()
		fn()
	})
	s.jobs[name] = &job{stop: t.Stop}
}

// ExecuteInterval runs fn every d until cancelled.
func (s *Scheduler) ExecuteInterval(name string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tk := time.NewTicker(d)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-tk.C:
				fn()
			case <-done:
				return
			}
		}
	}()
	stopped := false
	s.jobs[name] = &job{stop: func() bool {
		if stopped {
			return false
		}
		stopped = true
		tk.Stop()
		close(done)
		return true
	}}
}

// Cancel removes a named job. For a one-shot job, returns true iff the
// job existed and its body had not yet started running; for an interval
// job, true iff it was still registered. The one-shot case is what drives
// long-press/short-press disambiguation: a successful cancel means the
// long-press body never ran, so the caller should treat it as a short
// press instead.
func (s *Scheduler) Cancel(name string) bool {
	s.mu.Lock()
	j, ok := s.jobs[name]
	if ok {
		delete(s.jobs, name)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	return j.stop()
}
