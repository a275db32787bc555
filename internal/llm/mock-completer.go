package llm

import (
	"context"
	"sync"
)

// MockCompleter is a Completer for tests. It records every prompt and answers
// with Reply, or with the result of ReplyFunc when set.
type MockCompleter struct {
	Reply     string
	ReplyFunc func(prompt string) (string, error)
	Err       error

	mu      sync.Mutex
	prompts []string
}

// NewMockCompleter returns a mock that always answers reply.
func NewMockCompleter(reply string) *MockCompleter {
	return &MockCompleter{Reply: reply}
}

// Complete records prompt and returns the configured reply or error.
func (m *MockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	if m.ReplyFunc != nil {
		return m.ReplyFunc(prompt)
	}
	return m.Reply, nil
}

// ModelName returns "mock".
func (m *MockCompleter) ModelName() string {
	return "mock"
}

// Calls returns the number of Complete calls made.
func (m *MockCompleter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Prompts returns a copy of every prompt received, in call order.
func (m *MockCompleter) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}
