package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

const createExpensesTable = `
CREATE TABLE IF NOT EXISTS personal_expenses (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	amount      TEXT,
	date        TEXT,
	description TEXT NOT NULL DEFAULT '',
	category    TEXT,
	notes       TEXT NOT NULL DEFAULT '',
	seq         BIGSERIAL
);
CREATE INDEX IF NOT EXISTS personal_expenses_user_id_idx ON personal_expenses (user_id);`

// PostgresStore implements the Store interface on a Postgres table
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects to Postgres and ensures the schema exists
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, createExpensesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return NewPostgresStore(db), nil
}

// NewPostgresStore wraps an existing connection pool
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Close releases the connection pool
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// CreateExpense inserts an expense row
func (s *PostgresStore) CreateExpense(ctx context.Context, expense *Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO personal_expenses (id, user_id, amount, date, description, category, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		expense.ID, expense.UserID, expense.Amount, expense.Date, expense.Description,
		nullableString(expense.Category), expense.Notes)
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

// ListExpenses lists all expenses for a user in insertion order
func (s *PostgresStore) ListExpenses(ctx context.Context, userID string) ([]*Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, amount, date, description, category, notes
		 FROM personal_expenses WHERE user_id = $1 ORDER BY seq`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	return scanExpenses(rows)
}

// ListLabeledExpenses lists categorised expenses across all users
func (s *PostgresStore) ListLabeledExpenses(ctx context.Context, limit int) ([]*Expense, error) {
	query := `SELECT id, user_id, amount, date, description, category, notes
		FROM personal_expenses
		WHERE description <> '' AND category IS NOT NULL AND category <> ''
		ORDER BY seq`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list labeled expenses: %w", err)
	}
	return scanExpenses(rows)
}

// Ping checks the database connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func scanExpenses(rows *sql.Rows) ([]*Expense, error) {
	defer rows.Close()

	var expenses []*Expense
	for rows.Next() {
		var e Expense
		var amount, date, cat sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &amount, &date, &e.Description, &cat, &e.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		e.Amount = amount.String
		e.Date = date.String
		if cat.Valid {
			category := cat.String
			e.Category = &category
		}
		expenses = append(expenses, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}
	return expenses, nil
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
