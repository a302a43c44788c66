package monitor

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"pollwatch/internal/fallback"
)

func testMediator(ch fallback.Channel, maxWait time.Duration) *Mediator {
	return NewMediator(ch, "+16075551234", 2*time.Millisecond, maxWait, nil)
}

func TestEvaluateReply(t *testing.T) {
	cases := []struct {
		name       string
		msg        fallback.Message
		ok         bool
		watermark  int64
		wantAction replyAction
		wantOption int
		wantMark   int64
	}{
		{"no message", fallback.Message{}, false, 5, replyIgnore, 0, 5},
		{"stale equal", fallback.Message{Text: "3", ID: 5}, true, 5, replyIgnore, 0, 5},
		{"stale older", fallback.Message{Text: "3", ID: 4}, true, 5, replyIgnore, 0, 5},
		{"valid", fallback.Message{Text: "3", ID: 6}, true, 5, replyOverride, 3, 6},
		{"valid padded", fallback.Message{Text: " 2 ", ID: 6}, true, 5, replyOverride, 2, 6},
		{"out of range", fallback.Message{Text: "9", ID: 6}, true, 5, replyInvalid, 0, 6},
		{"zero", fallback.Message{Text: "0", ID: 6}, true, 5, replyInvalid, 0, 6},
		{"not a number", fallback.Message{Text: "the second one", ID: 6}, true, 5, replyInvalid, 0, 6},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			action, option, mark := evaluateReply(tc.msg, tc.ok, tc.watermark, 4)
			if action != tc.wantAction || option != tc.wantOption || mark != tc.wantMark {
				t.Errorf("got (%v, %d, %d), want (%v, %d, %d)",
					action, option, mark, tc.wantAction, tc.wantOption, tc.wantMark)
			}
		})
	}
}

func TestMediator_SendFailureAborts(t *testing.T) {
	latestCalls := int32(0)
	ch := &MockChannel{
		SendFunc: func(string, string) bool { return false },
		LatestFunc: func(string) (fallback.Message, bool) {
			atomic.AddInt32(&latestCalls, 1)
			return fallback.Message{}, false
		},
	}
	sess := &MockSession{}

	result := testMediator(ch, 0).Run(context.Background(), sess, testQuestion)
	if result.Outcome != Aborted {
		t.Errorf("Outcome = %v, want Aborted", result.Outcome)
	}
	if atomic.LoadInt32(&latestCalls) != 0 {
		t.Error("no listening should happen after a failed send")
	}
}

func TestMediator_PromptFormat(t *testing.T) {
	var fp atomic.Value
	fp.Store("base")
	sess := &MockSession{FingerprintFunc: func() string { return fp.Load().(string) }}
	ch := &MockChannel{}

	go func() {
		time.Sleep(10 * time.Millisecond)
		fp.Store("changed")
	}()
	testMediator(ch, 0).Run(context.Background(), sess, testQuestion)

	sent := ch.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	for _, want := range []string{
		"Which layer handles retransmission?",
		"1. Application",
		"4. Link",
		"Reply with 1-4",
	} {
		if !strings.Contains(sent[0], want) {
			t.Errorf("prompt missing %q:\n%s", want, sent[0])
		}
	}
}

func TestMediator_AbortBeforeReply(t *testing.T) {
	// The fingerprint changes and a fresh valid reply arrives in the same
	// tick; the abort check must win and the reply must not be applied.
	first := true
	sess := &MockSession{FingerprintFunc: func() string {
		if first {
			first = false
			return "base" // baseline read at Run entry
		}
		return "changed"
	}}
	latestCalls := 0
	ch := &MockChannel{
		LatestFunc: func(string) (fallback.Message, bool) {
			latestCalls++
			if latestCalls == 1 {
				return fallback.Message{}, false // watermark init: no history
			}
			return fallback.Message{Text: "3", ID: 100}, true
		},
	}

	result := testMediator(ch, 0).Run(context.Background(), sess, testQuestion)
	if result.Outcome != Aborted {
		t.Errorf("Outcome = %v, want Aborted", result.Outcome)
	}
	if result.Overrides != 0 {
		t.Errorf("Overrides = %d, want 0", result.Overrides)
	}
	if got := len(sess.CallsOf("apply")); got != 0 {
		t.Errorf("apply called %d times after abort, want 0", got)
	}
}

func TestMediator_OverrideClearsThenApplies(t *testing.T) {
	sess := &MockSession{}
	replyID := int64(0)
	ch := &MockChannel{
		LatestFunc: func(string) (fallback.Message, bool) {
			id := atomic.LoadInt64(&replyID)
			if id == 0 {
				return fallback.Message{}, false
			}
			return fallback.Message{Text: "3", ID: id}, true
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan MediationResult, 1)
	go func() {
		done <- testMediator(ch, 0).Run(ctx, sess, testQuestion)
	}()

	atomic.StoreInt64(&replyID, 10)
	waitFor(t, func() bool { return len(sess.CallsOf("apply")) == 1 })
	cancel()
	result := <-done

	if result.Overrides != 1 || result.FinalOption != 3 {
		t.Errorf("result = %+v, want 1 override of option 3", result)
	}
	calls := sess.Calls()
	var ops []string
	for _, c := range calls {
		ops = append(ops, c.op)
	}
	// Every apply must be preceded by a clear.
	for i, c := range calls {
		if c.op == "apply" {
			if i == 0 || calls[i-1].op != "clear" {
				t.Errorf("apply at %d not preceded by clear: %v", i, ops)
			}
		}
	}
}

func TestMediator_RepeatedOverrides(t *testing.T) {
	// The helper changes their mind: reply "3" then reply "2".
	sess := &MockSession{}
	var reply atomic.Value
	reply.Store(fallback.Message{})
	ch := &MockChannel{
		LatestFunc: func(string) (fallback.Message, bool) {
			msg := reply.Load().(fallback.Message)
			if msg.ID == 0 {
				return fallback.Message{}, false
			}
			return msg, true
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan MediationResult, 1)
	go func() {
		done <- testMediator(ch, 0).Run(ctx, sess, testQuestion)
	}()

	reply.Store(fallback.Message{Text: "3", ID: 10})
	waitFor(t, func() bool { return len(sess.CallsOf("apply")) == 1 })
	reply.Store(fallback.Message{Text: "2", ID: 11})
	waitFor(t, func() bool { return len(sess.CallsOf("apply")) == 2 })
	cancel()
	result := <-done

	if result.Overrides != 2 || result.FinalOption != 2 {
		t.Errorf("result = %+v, want 2 overrides ending on option 2", result)
	}
	applies := sess.CallsOf("apply")
	if applies[0].arg != 3 || applies[1].arg != 2 {
		t.Errorf("applies = %v, want [3 2]", applies)
	}
	if got := len(sess.CallsOf("clear")); got != 2 {
		t.Errorf("clear called %d times, want 2", got)
	}
}

func TestMediator_StaleReplyIgnored(t *testing.T) {
	// A message already in the conversation when fallback starts must never
	// be treated as a reply, even though it parses as a valid option.
	sess := &MockSession{}
	ch := &MockChannel{
		LatestFunc: func(string) (fallback.Message, bool) {
			return fallback.Message{Text: "2", ID: 42}, true
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	result := testMediator(ch, 0).Run(ctx, sess, testQuestion)

	if result.Overrides != 0 {
		t.Errorf("Overrides = %d, want 0 (message predates fallback)", result.Overrides)
	}
	if got := len(sess.CallsOf("apply")); got != 0 {
		t.Errorf("apply called %d times, want 0", got)
	}
}

func TestMediator_MaxWaitTimesOut(t *testing.T) {
	sess := &MockSession{}
	ch := &MockChannel{}

	result := testMediator(ch, 10*time.Millisecond).Run(context.Background(), sess, testQuestion)
	if result.Outcome != TimedOut {
		t.Errorf("Outcome = %v, want TimedOut", result.Outcome)
	}
}

func TestMediator_ShutdownAborts(t *testing.T) {
	sess := &MockSession{}
	ch := &MockChannel{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := testMediator(ch, 0).Run(ctx, sess, testQuestion)
	if result.Outcome != Aborted {
		t.Errorf("Outcome = %v, want Aborted", result.Outcome)
	}
}

// waitFor polls cond until it holds or a couple of seconds pass.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
