package monitor

import (
	"context"

	"go.uber.org/zap"

	"pollwatch/internal/oracle"
	"pollwatch/internal/poll"
)

// Asker is the answer oracle as the pipeline consumes it.
type Asker interface {
	Ask(ctx context.Context, snap poll.QuestionSnapshot) oracle.Decision
}

// Action is what the pipeline did with the current prompt.
type Action int

const (
	// ActionNone: no prompt on screen, or the prompt was already handled.
	ActionNone Action = iota
	// ActionCommitted: an option was applied and the question is settled.
	ActionCommitted
	// ActionFallback: a provisional option was applied; a human override
	// round should follow.
	ActionFallback
	// ActionError: the oracle response was unusable; nothing was applied.
	ActionError
)

// Pipeline maps a displayed prompt to a commit action through the confidence
// policy. One pipeline serves one watcher; its dedup state is unsynchronized
// by design.
type Pipeline struct {
	oracle   Asker
	notifier oracle.Notifier
	logger   *zap.Logger

	lastHandled string
	haveLast    bool
}

// NewPipeline creates a pipeline. notifier may be nil.
func NewPipeline(asker Asker, notifier oracle.Notifier, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{oracle: asker, notifier: notifier, logger: logger}
}

// ResetDedup forgets the last handled question. Called when the page
// navigates or the prompt disappears, either of which invalidates the
// question identity the dedup key was protecting.
func (p *Pipeline) ResetDedup() {
	p.lastHandled = ""
	p.haveLast = false
}

// Handle reads the current prompt off the session and routes it.
//
// A missing prompt is not an error (the poll may simply be closed); it
// clears dedup state so the same title can fire again after a gap. A prompt
// whose text matches the last handled one is skipped without consulting the
// oracle.
func (p *Pipeline) Handle(ctx context.Context, sess poll.Session) (poll.QuestionSnapshot, oracle.Decision, Action) {
	snap, ok := sess.ReadQuestion(ctx)
	if !ok {
		p.ResetDedup()
		return poll.QuestionSnapshot{}, oracle.Decision{}, ActionNone
	}

	if p.haveLast && snap.Question == p.lastHandled {
		return snap, oracle.Decision{}, ActionNone
	}

	p.logger.Info("asking oracle",
		zap.String("question", snap.Question),
		zap.Strings("options", snap.Options))

	decision := p.oracle.Ask(ctx, snap)

	// Mark the question handled at the first decision, before any fallback
	// round, so the content churn caused by our own click cannot re-trigger
	// the oracle on the same prompt.
	p.lastHandled = snap.Question
	p.haveLast = true

	switch decision.Status {
	case oracle.Error:
		p.logger.Error("oracle error", zap.String("reasoning", decision.Reasoning))
		oracle.NotifyDecision(p.notifier, snap, decision)
		return snap, decision, ActionError

	case oracle.LowConfidence:
		p.logger.Warn("low confidence answer",
			zap.Int("option", decision.Option),
			zap.String("reasoning", truncate(decision.Reasoning, 100)))
		oracle.NotifyDecision(p.notifier, snap, decision)
		if !sess.ApplyChoice(ctx, decision.Option) {
			p.logger.Error("failed to apply provisional choice", zap.Int("option", decision.Option))
		}
		return snap, decision, ActionFallback

	case oracle.Answered:
		p.logger.Info("oracle answered",
			zap.Int("option", decision.Option),
			zap.String("confidence", decision.Confidence))
		if !sess.ApplyChoice(ctx, decision.Option) {
			p.logger.Error("failed to apply choice", zap.Int("option", decision.Option))
		}
		return snap, decision, ActionCommitted
	}

	return snap, decision, ActionNone
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
