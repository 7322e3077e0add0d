package main

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/castlemilk/pfinance/analytics/internal/analytics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateExpenses(t *testing.T) {
	now := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	expenses := generateExpenses("demo", 6, now, rand.New(rand.NewSource(42)))
	require.NotEmpty(t, expenses)

	for _, e := range expenses {
		assert.Equal(t, "demo", e.UserID)
		require.NotNil(t, e.Category)
		ts, ok := analytics.ParseTimestamp(e.Date)
		require.True(t, ok, e.Date)
		assert.False(t, ts.After(now.AddDate(0, 0, 5)), e.Date)
	}

	// The generated history is usable by every analysis.
	set, err := analytics.Clean(expenses, analytics.CleanOptions{MinRecords: 10, RequireCategory: true})
	require.NoError(t, err)
	assert.Equal(t, len(expenses), set.Len())

	rec, err := analytics.RecommendBudget("demo", expenses, analytics.BudgetOptions{MinRecords: 1})
	require.NoError(t, err)
	assert.InDelta(t, 2200, rec.Categories["Rent"], 0.01)

	report, err := analytics.NewDetector(analytics.DefaultForestConfig, 10).Detect(context.Background(), "demo", expenses)
	require.NoError(t, err)
	assert.NotEmpty(t, report.Anomalies)
}

func TestGenerateExpenses_Deterministic(t *testing.T) {
	now := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	a := generateExpenses("demo", 2, now, rand.New(rand.NewSource(7)))
	b := generateExpenses("demo", 2, now, rand.New(rand.NewSource(7)))
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Amount, b[i].Amount)
		assert.Equal(t, a[i].Date, b[i].Date)
	}
}
