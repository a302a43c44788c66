// Package poll defines the domain types shared between the monitor core and
// the collaborator adapters: the question snapshot read off a live poll page
// and the page session contract the watchers drive.
package poll

import (
	"fmt"
	"strings"
)

// QuestionSnapshot is one multiple-choice prompt as read from a page.
// Options are ordered; option k is Options[k-1].
type QuestionSnapshot struct {
	Question string
	Options  []string
}

// SameQuestion reports whether two snapshots refer to the same prompt.
// Identity is the question text only: presenters re-shuffle or reword options
// under an unchanged title, and that must not count as a new question.
func (q QuestionSnapshot) SameQuestion(other QuestionSnapshot) bool {
	return q.Question == other.Question
}

// OptionCount returns the number of options.
func (q QuestionSnapshot) OptionCount() int {
	return len(q.Options)
}

// ValidOption reports whether n is a valid 1-indexed option number.
func (q QuestionSnapshot) ValidOption(n int) bool {
	return n >= 1 && n <= len(q.Options)
}

// FallbackPrompt formats the snapshot as the plain-text message sent to a
// human helper: question, enumerated options, and a "Reply with 1-N" footer.
func (q QuestionSnapshot) FallbackPrompt() string {
	var b strings.Builder
	b.WriteString("PollEV Help!\nQ: ")
	b.WriteString(q.Question)
	b.WriteString("\n")
	for i, opt := range q.Options {
		fmt.Fprintf(&b, "%d. %s\n", i+1, opt)
	}
	fmt.Fprintf(&b, "Reply with 1-%d", len(q.Options))
	return b.String()
}
