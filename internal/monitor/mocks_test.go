package monitor

import (
	"context"
	"sync"

	"pollwatch/internal/fallback"
	"pollwatch/internal/oracle"
	"pollwatch/internal/poll"
	"pollwatch/internal/schedule"
)

// call records one interaction with a mock session, e.g. {"apply", 2}.
type call struct {
	op  string
	arg int
}

// MockSession implements poll.Session with pluggable behavior and a call log.
type MockSession struct {
	mu    sync.Mutex
	calls []call

	FingerprintFunc  func() string
	LocationFunc     func() (string, error)
	ReadQuestionFunc func() (poll.QuestionSnapshot, bool)
	ApplyChoiceFunc  func(n int) bool
	ClearChoiceFunc  func() bool

	closed bool
}

func (m *MockSession) record(op string, arg int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call{op, arg})
}

// Calls returns a copy of the interaction log.
func (m *MockSession) Calls() []call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsOf filters the log to one operation.
func (m *MockSession) CallsOf(op string) []call {
	var out []call
	for _, c := range m.Calls() {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

func (m *MockSession) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockSession) Fingerprint(ctx context.Context) string {
	if m.FingerprintFunc != nil {
		return m.FingerprintFunc()
	}
	return "stable"
}

func (m *MockSession) Location(ctx context.Context) (string, error) {
	if m.LocationFunc != nil {
		return m.LocationFunc()
	}
	return "https://pollev.com/test", nil
}

func (m *MockSession) ReadQuestion(ctx context.Context) (poll.QuestionSnapshot, bool) {
	if m.ReadQuestionFunc != nil {
		return m.ReadQuestionFunc()
	}
	return poll.QuestionSnapshot{}, false
}

func (m *MockSession) ApplyChoice(ctx context.Context, n int) bool {
	m.record("apply", n)
	if m.ApplyChoiceFunc != nil {
		return m.ApplyChoiceFunc(n)
	}
	return true
}

func (m *MockSession) ClearChoice(ctx context.Context) bool {
	m.record("clear", 0)
	if m.ClearChoiceFunc != nil {
		return m.ClearChoiceFunc()
	}
	return true
}

func (m *MockSession) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// MockProvider implements poll.Provider.
type MockProvider struct {
	mu       sync.Mutex
	opens    int
	OpenFunc func(class schedule.Class) (poll.Session, error)
}

func (m *MockProvider) Open(ctx context.Context, class schedule.Class) (poll.Session, error) {
	m.mu.Lock()
	m.opens++
	m.mu.Unlock()
	if m.OpenFunc != nil {
		return m.OpenFunc(class)
	}
	return &MockSession{}, nil
}

func (m *MockProvider) Opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

// MockOracle implements Asker.
type MockOracle struct {
	mu      sync.Mutex
	asks    int
	AskFunc func(snap poll.QuestionSnapshot) oracle.Decision
}

func (m *MockOracle) Ask(ctx context.Context, snap poll.QuestionSnapshot) oracle.Decision {
	m.mu.Lock()
	m.asks++
	m.mu.Unlock()
	if m.AskFunc != nil {
		return m.AskFunc(snap)
	}
	return oracle.Decision{Status: oracle.Answered, Option: 1, Confidence: "high"}
}

func (m *MockOracle) Asks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asks
}

// MockChannel implements fallback.Channel.
type MockChannel struct {
	mu         sync.Mutex
	sent       []string
	SendFunc   func(recipient, text string) bool
	LatestFunc func(recipient string) (fallback.Message, bool)
}

func (m *MockChannel) Send(ctx context.Context, recipient, text string) bool {
	m.mu.Lock()
	m.sent = append(m.sent, text)
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(recipient, text)
	}
	return true
}

func (m *MockChannel) Latest(ctx context.Context, recipient string) (fallback.Message, bool) {
	if m.LatestFunc != nil {
		return m.LatestFunc(recipient)
	}
	return fallback.Message{}, false
}

func (m *MockChannel) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	copy(out, m.sent)
	return out
}

// MockNotifier implements oracle.Notifier.
type MockNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (m *MockNotifier) Notify(title, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.titles = append(m.titles, title)
}

func (m *MockNotifier) Titles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.titles))
	copy(out, m.titles)
	return out
}
