package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

// ExpensesCollection is the Firestore collection holding personal expenses.
const ExpensesCollection = "personalexpenses"

// FirestoreStore implements the Store interface using Firestore
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreStore creates a new Firestore-backed store
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{
		client:     client,
		collection: ExpensesCollection,
	}
}

// CreateExpense writes an expense document
func (s *FirestoreStore) CreateExpense(ctx context.Context, expense *Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	_, err := s.client.Collection(s.collection).Doc(expense.ID).Set(ctx, expense)
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

// ListExpenses lists all expenses for a user
func (s *FirestoreStore) ListExpenses(ctx context.Context, userID string) ([]*Expense, error) {
	query := s.client.Collection(s.collection).Where("userId", "==", userID)
	return s.collect(ctx, query, 0, nil)
}

// ListLabeledExpenses lists categorised expenses across all users
func (s *FirestoreStore) ListLabeledExpenses(ctx context.Context, limit int) ([]*Expense, error) {
	query := s.client.Collection(s.collection).Where("category", "!=", "")
	return s.collect(ctx, query, limit, func(e *Expense) bool { return e.HasLabel() })
}

// Ping issues a one-document read to verify the connection
func (s *FirestoreStore) Ping(ctx context.Context) error {
	iter := s.client.Collection(s.collection).Limit(1).Documents(ctx)
	defer iter.Stop()
	_, err := iter.Next()
	if err != nil && !errors.Is(err, iterator.Done) {
		return fmt.Errorf("failed to ping firestore: %w", err)
	}
	return nil
}

func (s *FirestoreStore) collect(ctx context.Context, query firestore.Query, limit int, keep func(*Expense) bool) ([]*Expense, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	var expenses []*Expense
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list expenses: %w", err)
		}

		expense := expenseFromDoc(doc.Ref.ID, doc.Data())
		if keep != nil && !keep(expense) {
			continue
		}
		expenses = append(expenses, expense)
		if limit > 0 && len(expenses) >= limit {
			break
		}
	}
	return expenses, nil
}

// expenseFromDoc decodes a document leniently. Documents written by other clients
// store amounts as numbers or strings and dates as timestamps or strings.
func expenseFromDoc(id string, data map[string]interface{}) *Expense {
	expense := &Expense{
		ID:          id,
		UserID:      stringValue(data["userId"]),
		Amount:      stringValue(data["amount"]),
		Date:        stringValue(data["date"]),
		Description: stringValue(data["description"]),
		Notes:       stringValue(data["notes"]),
	}
	if raw, ok := data["category"]; ok && raw != nil {
		category := stringValue(raw)
		expense.Category = &category
	}
	return expense
}

func stringValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(val)
	}
}
