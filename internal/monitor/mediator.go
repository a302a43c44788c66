package monitor

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"pollwatch/internal/fallback"
	"pollwatch/internal/poll"
)

// Outcome is the terminal state of one mediation round.
type Outcome int

const (
	// Aborted: the prompt closed or rotated, the send failed, or shutdown
	// was requested. Any baseline commit already made stays in effect.
	Aborted Outcome = iota
	// TimedOut: the optional wait ceiling elapsed with no resolution.
	TimedOut
)

func (o Outcome) String() string {
	switch o {
	case Aborted:
		return "aborted"
	case TimedOut:
		return "timed_out"
	}
	return "unknown"
}

// MediationResult summarizes a mediation round.
type MediationResult struct {
	Outcome     Outcome
	Overrides   int // number of accepted human overrides
	FinalOption int // last applied option, 0 if the human never overrode
}

// Mediator runs the human-override race for a low-confidence answer: it
// texts the question to the configured helper and keeps listening for reply
// overrides until the prompt itself goes away.
type Mediator struct {
	channel      fallback.Channel
	recipient    string
	pollInterval time.Duration
	maxWait      time.Duration // 0 = bounded only by the prompt's lifetime
	logger       *zap.Logger
}

// NewMediator creates a mediator. maxWait of zero disables the wait ceiling.
func NewMediator(channel fallback.Channel, recipient string, pollInterval, maxWait time.Duration, logger *zap.Logger) *Mediator {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mediator{
		channel:      channel,
		recipient:    recipient,
		pollInterval: pollInterval,
		maxWait:      maxWait,
		logger:       logger,
	}
}

// Enabled reports whether a fallback recipient is configured.
func (m *Mediator) Enabled() bool {
	return m != nil && m.recipient != ""
}

// replyAction is the pure decision for one inbound reply.
type replyAction int

const (
	replyIgnore   replyAction = iota // stale or absent
	replyInvalid                     // new but not a valid option number
	replyOverride                    // new and valid: clear then apply
)

// evaluateReply classifies an inbound message against the watermark and the
// option count. It advances the watermark for every new message, valid or
// not, so a stale or garbled reply is never reprocessed.
func evaluateReply(msg fallback.Message, ok bool, watermark int64, optionCount int) (action replyAction, option int, newWatermark int64) {
	if !ok || msg.ID <= watermark {
		return replyIgnore, 0, watermark
	}
	n, err := strconv.Atoi(strings.TrimSpace(msg.Text))
	if err != nil || n < 1 || n > optionCount {
		return replyInvalid, 0, msg.ID
	}
	return replyOverride, n, msg.ID
}

// Run executes one mediation round for the given prompt. The baseline
// fingerprint is read at entry, after the caller's provisional commit, so
// that commit's own content churn does not trip the abort check.
func (m *Mediator) Run(ctx context.Context, sess poll.Session, snap poll.QuestionSnapshot) MediationResult {
	result := MediationResult{Outcome: Aborted}

	if !m.channel.Send(ctx, m.recipient, snap.FallbackPrompt()) {
		m.logger.Warn("fallback send failed, skipping listen",
			zap.String("recipient", m.recipient))
		return result
	}
	m.logger.Info("fallback prompt sent", zap.String("recipient", m.recipient))

	baseline := sess.Fingerprint(ctx)

	// Never act on messages that predate this round.
	var watermark int64
	if msg, ok := m.channel.Latest(ctx, m.recipient); ok {
		watermark = msg.ID
	}

	deadline := time.Time{}
	if m.maxWait > 0 {
		deadline = time.Now().Add(m.maxWait)
	}

	m.logger.Info("listening for replies", zap.String("recipient", m.recipient))

	for {
		if ctx.Err() != nil {
			return result
		}

		// Abort check runs before the reply check: once the prompt has
		// rotated, a reply would apply to the wrong question.
		current := sess.Fingerprint(ctx)
		if current != "" && current != baseline {
			m.logger.Info("content changed, stopping fallback listener")
			return result
		}

		msg, ok := m.channel.Latest(ctx, m.recipient)
		action, option, newWatermark := evaluateReply(msg, ok, watermark, snap.OptionCount())
		watermark = newWatermark

		switch action {
		case replyOverride:
			m.logger.Info("override received", zap.Int("option", option))
			sess.ClearChoice(ctx)
			if sess.ApplyChoice(ctx, option) {
				result.Overrides++
				result.FinalOption = option
			} else {
				m.logger.Error("failed to apply override", zap.Int("option", option))
			}
			// Our own clicks changed the content; rebase the abort check so
			// the helper can keep changing their mind.
			if fp := sess.Fingerprint(ctx); fp != "" {
				baseline = fp
			}
		case replyInvalid:
			m.logger.Warn("ignoring invalid reply", zap.String("text", msg.Text))
		case replyIgnore:
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			m.logger.Warn("fallback wait ceiling reached")
			result.Outcome = TimedOut
			return result
		}

		select {
		case <-ctx.Done():
			return result
		case <-time.After(m.pollInterval):
		}
	}
}
