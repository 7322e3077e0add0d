package store

import (
	"context"
	"errors"
)

//go:generate mockgen -source=store.go -destination=store_mock.go -package=store

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Expense is a raw expense record as persisted by the upstream application.
// Amount and Date are kept as stored text; coercion happens in the analytics cleaner.
type Expense struct {
	ID          string  `json:"id" firestore:"-"`
	UserID      string  `json:"userId" firestore:"userId"`
	Amount      string  `json:"amount" firestore:"amount"`
	Date        string  `json:"date" firestore:"date"`
	Description string  `json:"description" firestore:"description"`
	Category    *string `json:"category,omitempty" firestore:"category,omitempty"`
	Notes       string  `json:"notes,omitempty" firestore:"notes,omitempty"`
}

// HasLabel reports whether the expense can be used as a classifier training example.
func (e *Expense) HasLabel() bool {
	return e.Description != "" && e.Category != nil && *e.Category != ""
}

// Store defines the read/write operations the analytics service needs from the expense database
type Store interface {
	// ListExpenses returns every expense owned by userID in storage order.
	ListExpenses(ctx context.Context, userID string) ([]*Expense, error)

	// ListLabeledExpenses returns up to limit expenses, across all users, that carry
	// both a description and a category. A limit <= 0 means no limit.
	ListLabeledExpenses(ctx context.Context, limit int) ([]*Expense, error)

	// CreateExpense persists a new expense. An empty ID is filled in by the store.
	CreateExpense(ctx context.Context, expense *Expense) error

	// Ping checks connectivity to the backing database.
	Ping(ctx context.Context) error
}
