package monitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pollwatch/internal/poll"
	"pollwatch/internal/schedule"
)

// Watcher runs the watch loop for one class: it owns one page session for
// the class's window, detects prompt changes, and drives the decision
// pipeline and the fallback mediator.
type Watcher struct {
	provider poll.Provider
	pipeline *Pipeline
	mediator *Mediator
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewWatcher creates a watcher. mediator may be nil when no fallback
// recipient is configured.
func NewWatcher(provider poll.Provider, pipeline *Pipeline, mediator *Mediator, interval time.Duration, logger *zap.Logger) *Watcher {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		provider: provider,
		pipeline: pipeline,
		mediator: mediator,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Run watches one class until its window closes, the context is cancelled,
// or the session becomes unusable. The page session is released on every
// exit path.
func (w *Watcher) Run(ctx context.Context, class schedule.Class) error {
	logger := w.logger.With(zap.String("class", class.Name))
	logger.Info("starting session",
		zap.String("section", class.Section),
		zap.String("window", class.Window()))

	sess, err := w.provider.Open(ctx, class)
	if err != nil {
		return fmt.Errorf("open session for %s: %w", class.Name, err)
	}
	defer func() {
		_ = sess.Close()
		logger.Info("session closed")
	}()

	detector := &Detector{}
	location, err := sess.Location(ctx)
	if err != nil {
		return fmt.Errorf("initial location read for %s: %w", class.Name, err)
	}
	detector.Prime(sess.Fingerprint(ctx), location)

	// A prompt may already be open when the watcher starts.
	w.handle(ctx, sess, logger)

	for {
		if class.EndedAt(w.now()) {
			logger.Info("class window ended", zap.String("end", class.EndTime))
			return nil
		}

		select {
		case <-ctx.Done():
			logger.Info("shutdown requested")
			return nil
		case <-time.After(w.interval):
		}

		if class.EndedAt(w.now()) {
			logger.Info("class window ended", zap.String("end", class.EndTime))
			return nil
		}

		location, err := sess.Location(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("session became unusable", zap.Error(err))
			return fmt.Errorf("read location for %s: %w", class.Name, err)
		}
		if detector.ObserveLocation(location) {
			// Navigation invalidates both the fingerprint and the dedup key,
			// and counts as a content change in its own right.
			detector.Prime(sess.Fingerprint(ctx), location)
			w.pipeline.ResetDedup()
			w.handle(ctx, sess, logger)
			continue
		}

		if detector.Observe(sess.Fingerprint(ctx)) {
			w.handle(ctx, sess, logger)
		}
	}
}

// handle runs the decision pipeline for the current prompt and, for
// low-confidence answers, a fallback mediation round. The mediation is
// synchronous: no new change is evaluated while it runs, and its abort check
// is what serializes prompt rotation against the human race.
func (w *Watcher) handle(ctx context.Context, sess poll.Session, logger *zap.Logger) {
	snap, _, action := w.pipeline.Handle(ctx, sess)
	if action != ActionFallback || !w.mediator.Enabled() {
		return
	}

	result := w.mediator.Run(ctx, sess, snap)
	logger.Info("fallback round finished",
		zap.String("outcome", result.Outcome.String()),
		zap.Int("overrides", result.Overrides))
	// Whatever moved the content on is left for the next tick's Observe;
	// the dedup key keeps a settled prompt from re-firing.
}
