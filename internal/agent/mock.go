package agent

import (
	"context"
	"fmt"
	"sync"
)

// MockAgent is a scriptable Agent for tests. Responses are returned in
// order; when they run out the last one repeats.
type MockAgent struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	// ErrAfter lets the first N calls succeed before Err kicks in.
	// Zero means every call fails when Err is set.
	ErrAfter int
	Prompts  []string
	calls    int
}

func (m *MockAgent) Send(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Prompts = append(m.Prompts, prompt)
	m.calls++

	if m.Err != nil && (m.ErrAfter == 0 || m.calls > m.ErrAfter) {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", fmt.Errorf("mock agent has no responses configured")
	}
	idx := m.calls - 1
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	return m.Responses[idx], nil
}

// Calls reports how many prompts were sent.
func (m *MockAgent) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
