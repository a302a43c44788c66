// Package fallback carries the human-in-the-loop channel: when the oracle
// cannot answer confidently, the question is texted to a configured helper
// and their replies are polled back.
package fallback

import "context"

// Message is one inbound message. ID is monotonically increasing per
// conversation and is used as the staleness watermark.
type Message struct {
	Text string
	ID   int64
}

// Channel sends outbound prompts and polls for the helper's latest reply.
type Channel interface {
	// Send delivers text to the recipient. Returns false (with no error
	// detail) when delivery failed; the mediator aborts on failure.
	Send(ctx context.Context, recipient, text string) bool

	// Latest returns the most recent inbound message from the recipient,
	// or ok=false when there is none. Non-blocking.
	Latest(ctx context.Context, recipient string) (msg Message, ok bool)
}
