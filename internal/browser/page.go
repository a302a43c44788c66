package browser

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"pollwatch/internal/poll"
)

// mainContentJS returns the visible text of the page's main content area.
// Scoping to the main region keeps clocks, nav bars and vote counters out of
// the fingerprint where possible.
const mainContentJS = `
() => {
	const main = document.querySelector('main') ||
	             document.querySelector('[role="main"]') ||
	             document.querySelector('.content') ||
	             document.body;
	return main ? main.innerText : '';
}`

// pageSession implements poll.Session over one rod page. All methods are
// called from a single watcher goroutine.
type pageSession struct {
	id     string
	page   *rod.Page
	logger *zap.Logger
}

// Fingerprint digests the main content text. Empty on any failure so the
// detector treats it as a transient read, not a change.
func (s *pageSession) Fingerprint(ctx context.Context) string {
	res, err := s.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:      mainContentJS,
		ByValue: true,
	})
	if err != nil || res == nil {
		return ""
	}
	content := res.Value.Str()
	if content == "" {
		return ""
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(content))
	return fmt.Sprintf("%x", h.Sum64())
}

// Location returns the page's current URL.
func (s *pageSession) Location(ctx context.Context) (string, error) {
	info, err := s.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("page info: %w", err)
	}
	return info.URL, nil
}

// ReadQuestion parses the current DOM for a multiple-choice prompt.
func (s *pageSession) ReadQuestion(ctx context.Context) (poll.QuestionSnapshot, bool) {
	html, err := s.page.Context(ctx).HTML()
	if err != nil {
		return poll.QuestionSnapshot{}, false
	}
	return ExtractQuestion(html)
}

// ApplyChoice clicks the n-th vote button (1-indexed).
func (s *pageSession) ApplyChoice(ctx context.Context, n int) bool {
	buttons, err := s.page.Context(ctx).Elements("." + voteClass)
	if err != nil {
		s.logger.Warn("locate vote buttons", zap.Error(err))
		return false
	}
	if n < 1 || n > len(buttons) {
		s.logger.Warn("vote button out of range",
			zap.Int("option", n), zap.Int("buttons", len(buttons)))
		return false
	}
	if err := buttons[n-1].Click(proto.InputMouseButtonLeft, 1); err != nil {
		s.logger.Warn("click vote button", zap.Int("option", n), zap.Error(err))
		return false
	}
	return true
}

// ClearChoice clicks every visible undo button, clearing all current
// selections even when the control allows multi-select.
func (s *pageSession) ClearChoice(ctx context.Context) bool {
	buttons, err := s.page.Context(ctx).Elements("." + undoClass)
	if err != nil {
		return false
	}
	cleared := false
	for _, btn := range buttons {
		visible, err := btn.Visible()
		if err != nil || !visible {
			continue
		}
		if err := btn.Click(proto.InputMouseButtonLeft, 1); err != nil {
			s.logger.Warn("click undo button", zap.Error(err))
			continue
		}
		cleared = true
	}
	return cleared
}

// Close releases the page.
func (s *pageSession) Close() error {
	s.logger.Debug("closing page session", zap.String("session", s.id))
	return s.page.Close()
}
