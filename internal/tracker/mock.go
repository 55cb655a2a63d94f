package tracker

import (
	"context"
	"fmt"
	"sync"

	"qaflow/internal/model"
)

// MockTracker is an in-memory tracker for tests and dry runs.
type MockTracker struct {
	Items     []model.WorkItem
	SearchErr error
	CreateErr error

	mu       sync.Mutex
	defects  []Defect
	comments map[string][]string
	nextID   int
}

var _ Tracker = (*MockTracker)(nil)

func NewMockTracker(items ...model.WorkItem) *MockTracker {
	return &MockTracker{Items: items, comments: make(map[string][]string)}
}

func (m *MockTracker) SearchItems(ctx context.Context, query string) ([]model.WorkItem, error) {
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	return m.Items, nil
}

func (m *MockTracker) GetItem(ctx context.Context, id string) (*model.WorkItem, error) {
	for i := range m.Items {
		if m.Items[i].ID == id {
			return &m.Items[i], nil
		}
	}
	return nil, fmt.Errorf("work item %s not found", id)
}

func (m *MockTracker) CreateDefect(ctx context.Context, defect Defect) (string, error) {
	if m.CreateErr != nil {
		return "", m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.defects = append(m.defects, defect)
	return fmt.Sprintf("BUG-%d", m.nextID), nil
}

func (m *MockTracker) AddComment(ctx context.Context, id, comment string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.comments == nil {
		m.comments = make(map[string][]string)
	}
	m.comments[id] = append(m.comments[id], comment)
	return nil
}

// Defects returns a copy of the defects filed so far.
func (m *MockTracker) Defects() []Defect {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Defect, len(m.defects))
	copy(out, m.defects)
	return out
}

// Comments returns the comments added to an item.
func (m *MockTracker) Comments(id string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.comments[id]...)
}
