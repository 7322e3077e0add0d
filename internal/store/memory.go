package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory implementation of Store for local development and testing
type MemoryStore struct {
	mu sync.RWMutex

	expenses map[string]*Expense
	// order preserves insertion order so listings are stable
	order []string
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		expenses: make(map[string]*Expense),
	}
}

// CreateExpense stores a copy of the expense
func (m *MemoryStore) CreateExpense(ctx context.Context, expense *Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if _, exists := m.expenses[expense.ID]; !exists {
		m.order = append(m.order, expense.ID)
	}
	cp := *expense
	m.expenses[expense.ID] = &cp
	return nil
}

// ListExpenses lists a user's expenses in insertion order
func (m *MemoryStore) ListExpenses(ctx context.Context, userID string) ([]*Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Expense
	for _, id := range m.order {
		expense := m.expenses[id]
		if expense.UserID == userID {
			cp := *expense
			result = append(result, &cp)
		}
	}
	return result, nil
}

// ListLabeledExpenses lists expenses that have both a description and a category
func (m *MemoryStore) ListLabeledExpenses(ctx context.Context, limit int) ([]*Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Expense
	for _, id := range m.order {
		expense := m.expenses[id]
		if !expense.HasLabel() {
			continue
		}
		cp := *expense
		result = append(result, &cp)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// Ping always succeeds for the memory store
func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
