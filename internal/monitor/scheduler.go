package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"pollwatch/internal/poll"
	"pollwatch/internal/schedule"
)

// ClassRunner watches one class until its window closes or the context is
// cancelled. *Watcher satisfies this via RunClass.
type ClassRunner interface {
	RunClass(ctx context.Context, class schedule.Class) error
}

// RunClass adapts Watcher to the ClassRunner contract.
func (w *Watcher) RunClass(ctx context.Context, class schedule.Class) error {
	return w.Run(ctx, class)
}

// Scheduler owns the session registry: which classes currently have a live
// watcher. The registry is the single source of truth for "is class X being
// watched" and guarantees at most one watcher per class.
type Scheduler struct {
	classes     map[string]schedule.Class
	runner      ClassRunner
	tick        time.Duration
	joinTimeout time.Duration
	logger      *zap.Logger
	now         func() time.Time

	mu      sync.Mutex
	running map[string]struct{}
	skipped map[string]struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler for a fixed roster.
func NewScheduler(classes map[string]schedule.Class, runner ClassRunner, tick, joinTimeout time.Duration, logger *zap.Logger) *Scheduler {
	if tick <= 0 {
		tick = 10 * time.Second
	}
	if joinTimeout <= 0 {
		joinTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		classes:     classes,
		runner:      runner,
		tick:        tick,
		joinTimeout: joinTimeout,
		logger:      logger,
		now:         time.Now,
		running:     make(map[string]struct{}),
		skipped:     make(map[string]struct{}),
	}
}

// Run scans the roster on a coarse cadence, starting a watcher for every
// class inside its window that isn't already registered. On cancellation it
// stops ticking and joins the remaining watchers, bounded by the join
// timeout.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started",
		zap.Int("classes", len(s.classes)),
		zap.Duration("tick", s.tick))

	for {
		s.Tick(ctx)

		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		case <-time.After(s.tick):
		}
	}
}

// Tick starts watchers for every class currently inside its active window.
func (s *Scheduler) Tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	now := s.now()
	for name, class := range s.classes {
		if class.ActiveAt(now) {
			s.startClass(ctx, name, class)
		}
	}
}

// startClass registers and launches one watcher. Check-then-register is
// atomic under the registry lock, so a second start for the same class while
// the first is live is a no-op.
func (s *Scheduler) startClass(ctx context.Context, name string, class schedule.Class) {
	s.mu.Lock()
	if _, live := s.running[name]; live {
		s.mu.Unlock()
		return
	}
	if _, skip := s.skipped[name]; skip {
		s.mu.Unlock()
		return
	}
	s.running[name] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.deregister(name)

		err := s.runner.RunClass(ctx, class)
		if err == nil {
			return
		}
		if errors.Is(err, poll.ErrSessionUnavailable) {
			// No authenticated state: retrying every tick would just fail
			// again, so the class sits out the rest of the run.
			s.logger.Error("class skipped for this run",
				zap.String("class", name), zap.Error(err))
			s.markSkipped(name)
			return
		}
		s.logger.Error("watcher exited with error",
			zap.String("class", name), zap.Error(err))
		s.markSkipped(name)
	}()
}

func (s *Scheduler) deregister(name string) {
	s.mu.Lock()
	delete(s.running, name)
	s.mu.Unlock()
}

func (s *Scheduler) markSkipped(name string) {
	s.mu.Lock()
	s.skipped[name] = struct{}{}
	s.mu.Unlock()
}

// Running returns the names of classes with a live watcher.
func (s *Scheduler) Running() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.running))
	for name := range s.running {
		names = append(names, name)
	}
	return names
}

// shutdown joins the remaining watchers, best-effort: a watcher stuck in a
// collaborator call may outlive the bound, and that is accepted.
func (s *Scheduler) shutdown() {
	s.logger.Info("shutdown requested, waiting for watchers")

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("all watchers finished")
	case <-time.After(s.joinTimeout):
		s.logger.Warn("join timeout reached, abandoning remaining watchers",
			zap.Strings("still_running", s.Running()))
	}
}
