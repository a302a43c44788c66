package oracle

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"pollwatch/internal/poll"
)

// Notifier surfaces answers that need operator attention.
type Notifier interface {
	Notify(title, message string)
}

// DesktopNotifier posts macOS notification-center alerts via osascript. On
// other platforms Notify is a no-op.
type DesktopNotifier struct {
	Sound string
}

// NewDesktopNotifier returns a notifier with the default alert sound.
func NewDesktopNotifier() *DesktopNotifier {
	return &DesktopNotifier{Sound: "Glass"}
}

// Notify posts the notification. Failures are deliberately swallowed: a
// notification is advisory and must never disturb the watch loop.
func (n *DesktopNotifier) Notify(title, message string) {
	if runtime.GOOS != "darwin" {
		return
	}
	escape := func(s string) string {
		return strings.ReplaceAll(s, `"`, `\"`)
	}
	script := fmt.Sprintf(`display notification "%s" with title "%s" sound name "%s"`,
		escape(message), escape(title), n.Sound)
	_ = exec.Command("osascript", "-e", script).Run()
}

// NotifyDecision formats and posts the alert for a low-confidence or error
// decision; other statuses are ignored.
func NotifyDecision(n Notifier, snap poll.QuestionSnapshot, d Decision) {
	if n == nil {
		return
	}
	switch d.Status {
	case LowConfidence:
		n.Notify(
			fmt.Sprintf("PollEV: Low Confidence (%s)", d.QuestionType),
			fmt.Sprintf("Clicked option %d: %s", d.Option, truncate(snap.Question, 40)),
		)
	case Error:
		n.Notify("PollEV: AI Error", fmt.Sprintf("Error: %s", truncate(d.Reasoning, 50)))
	case Answered:
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
