package main

import (
	"context"
	"strings"
	"testing"

	"github.com/castlemilk/pfinance/analytics/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadExpenses(t *testing.T) {
	input := `userId,amount,date,description,category,notes
u1,12.50,2024-01-03,Coffee,Food,
u1,abc,2024-01-04,Broken,Food,
u1,40,not-a-date,Taxi,,late
,5,2024-01-05,Orphan,,
u2, 900 ,2024-01-06 10:30,Rent,Rent,January
`
	expenses, rowErrs, err := readExpenses(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, expenses, 2)
	assert.Len(t, rowErrs, 3)

	assert.Equal(t, "u1", expenses[0].UserID)
	assert.Equal(t, "12.50", expenses[0].Amount)
	require.NotNil(t, expenses[0].Category)
	assert.Equal(t, "Food", *expenses[0].Category)

	assert.Equal(t, "900", expenses[1].Amount)
	assert.Equal(t, "January", expenses[1].Notes)
}

func TestReadExpenses_OptionalColumnsAbsent(t *testing.T) {
	expenses, rowErrs, err := readExpenses(strings.NewReader("date,amount,userId\n2024-02-01,3,u1\n"))
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
	require.Len(t, expenses, 1)
	assert.Nil(t, expenses[0].Category)
	assert.Empty(t, expenses[0].Description)
}

func TestReadExpenses_MissingRequiredColumn(t *testing.T) {
	_, _, err := readExpenses(strings.NewReader("userId,amount\nu1,3\n"))
	assert.ErrorContains(t, err, `"date"`)
}

func TestImportExpenses(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	expenses, _, err := readExpenses(strings.NewReader("userId,amount,date\nu1,1,2024-01-01\nu1,2,2024-01-02\n"))
	require.NoError(t, err)

	n, err := importExpenses(ctx, s, expenses)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stored, err := s.ListExpenses(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}
