package engine

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Supervisor watches the workers of one run. Any failure flips the shared
// interrupt flag so every worker stops at its next loop iteration, and runs
// the abort hooks once.
type Supervisor struct {
	interrupted atomic.Bool
	finished    atomic.Int32
	failures    atomic.Int32

	mu        sync.Mutex
	first     error
	hooks     []func(error)
	abortOnce sync.Once

	logger zerolog.Logger
}

// NewSupervisor returns a supervisor logging to logger.
func NewSupervisor(logger zerolog.Logger) *Supervisor {
	return &Supervisor{logger: logger}
}

// OnAbort registers fn to run once when the run is aborted.
func (s *Supervisor) OnAbort(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Interrupted reports whether workers must stop.
func (s *Supervisor) Interrupted() bool { return s.interrupted.Load() }

// Interrupt asks every worker to stop and aborts the run with reason.
func (s *Supervisor) Interrupt(reason error) {
	s.interrupted.Store(true)
	s.abort(reason)
}

// ReportFailure records a fatal failure of worker, or of the cluster when
// worker is negative.
func (s *Supervisor) ReportFailure(worker int, err error) {
	if worker >= 0 {
		s.logger.Error().Err(err).Int("worker", worker).Msg("worker failed")
	} else {
		s.logger.Error().Err(err).Msg("cluster failure")
	}
	s.failures.Add(1)

	s.mu.Lock()
	if s.first == nil {
		s.first = err
	}
	s.mu.Unlock()

	s.Interrupt(err)
}

func (s *Supervisor) abort(reason error) {
	s.abortOnce.Do(func() {
		s.mu.Lock()
		hooks := s.hooks
		s.mu.Unlock()
		for _, fn := range hooks {
			fn(reason)
		}
	})
}

// Finished returns the number of workers that returned.
func (s *Supervisor) Finished() int { return int(s.finished.Load()) }

// Failures returns the number of reported failures.
func (s *Supervisor) Failures() int { return int(s.failures.Load()) }

// Err returns the first reported failure.
func (s *Supervisor) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.first
}

// Go runs fn for worker on its own goroutine. A returned error or a panic
// is reported as a failure; either way the worker counts as finished.
func (s *Supervisor) Go(wg *sync.WaitGroup, worker int, fn func() error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer s.finished.Add(1)
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().Int("worker", worker).Bytes("stack", debug.Stack()).Msg("worker panicked")
				s.ReportFailure(worker, fmt.Errorf("panic: %v", r))
			}
		}()
		if err := fn(); err != nil {
			s.ReportFailure(worker, err)
		}
	}()
}
