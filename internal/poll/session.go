package poll

import (
	"context"
	"errors"

	"pollwatch/internal/schedule"
)

// ErrSessionUnavailable means no authenticated browser state exists for a
// class, so a page session cannot be opened. The scheduler skips such a class
// for the remainder of the run.
var ErrSessionUnavailable = errors.New("poll: session unavailable (run 'pollwatch login' first)")

// Session is one live poll page under observation. All methods are driven by
// a single watcher goroutine; implementations need not be safe for concurrent
// use.
type Session interface {
	// Fingerprint returns an opaque digest of the currently displayed
	// content. An empty string signals a transient read failure, never a
	// content change.
	Fingerprint(ctx context.Context) string

	// Location returns the page's current address.
	Location(ctx context.Context) (string, error)

	// ReadQuestion returns the currently displayed prompt, or ok=false when
	// no multiple-choice prompt is on screen.
	ReadQuestion(ctx context.Context) (snap QuestionSnapshot, ok bool)

	// ApplyChoice selects option n (1-indexed). Returns false when the
	// option could not be clicked.
	ApplyChoice(ctx context.Context, n int) bool

	// ClearChoice undoes every currently selected option. Returns true when
	// at least one selection was cleared.
	ClearChoice(ctx context.Context) bool

	// Close releases the underlying page and its browser resources.
	Close() error
}

// Provider opens a Session for a class. Returns ErrSessionUnavailable
// (possibly wrapped) when no prior authenticated browser state exists.
type Provider interface {
	Open(ctx context.Context, class schedule.Class) (Session, error)
}
