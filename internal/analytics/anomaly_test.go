package analytics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/castlemilk/pfinance/analytics/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spikeExpenses returns nine ordinary expenses around 100 and one of 10000,
// all on the same weekday, hour and category.
func spikeExpenses() []*store.Expense {
	amounts := []string{"95", "105", "98", "102", "100", "97", "103", "99", "101", "10000"}
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	raw := make([]*store.Expense, len(amounts))
	for i, a := range amounts {
		raw[i] = &store.Expense{
			ID:          fmt.Sprintf("e%d", i),
			UserID:      "u1",
			Amount:      a,
			Date:        start.AddDate(0, 0, 7*i).Format(time.RFC3339),
			Description: "groceries",
			Category:    strPtr("Groceries"),
		}
	}
	return raw
}

func TestDetector_FlagsSpike(t *testing.T) {
	d := NewDetector(DefaultForestConfig, DefaultMinRecords)

	report, err := d.Detect(context.Background(), "u1", spikeExpenses())
	require.NoError(t, err)
	require.NotEmpty(t, report.Anomalies)

	first := report.Anomalies[0]
	assert.Equal(t, "e9", first.ExpenseID)
	assert.Equal(t, 10000.0, first.Amount)
	assert.Contains(t, first.Reason, "Amount is 9.2x higher than average")
	assert.Less(t, first.Score, 0.0)
	assert.NotEmpty(t, first.ID)

	assert.Equal(t, "u1", report.UserID)
	assert.Equal(t, 10, report.TotalExpenses)
	assert.Equal(t, len(report.Anomalies), report.TotalAnomalies)
	assert.Equal(t, DetectionMethod, report.DetectionMethod)
	assert.Equal(t, fmt.Sprintf("Detected %d anomalies out of 10 expenses", report.TotalAnomalies), report.Message)
}

func TestDetector_SortedAscending(t *testing.T) {
	raw := spikeExpenses()
	for i := 0; i < 20; i++ {
		raw = append(raw, &store.Expense{
			ID:     fmt.Sprintf("x%d", i),
			Amount: fmt.Sprintf("%d", 50+i*37%200),
			Date:   time.Date(2024, 2, 1+i, (i*5)%24, 0, 0, 0, time.UTC).Format(time.RFC3339),
		})
	}

	report, err := NewDetector(DefaultForestConfig, DefaultMinRecords).Detect(context.Background(), "u1", raw)
	require.NoError(t, err)
	require.NotEmpty(t, report.Anomalies)
	for i := 1; i < len(report.Anomalies); i++ {
		assert.LessOrEqual(t, report.Anomalies[i-1].Score, report.Anomalies[i].Score)
	}
}

func TestDetector_Reproducible(t *testing.T) {
	d := NewDetector(DefaultForestConfig, DefaultMinRecords)
	a, err := d.Detect(context.Background(), "u1", spikeExpenses())
	require.NoError(t, err)
	b, err := d.Detect(context.Background(), "u1", spikeExpenses())
	require.NoError(t, err)

	require.Equal(t, len(a.Anomalies), len(b.Anomalies))
	for i := range a.Anomalies {
		assert.Equal(t, a.Anomalies[i].ExpenseID, b.Anomalies[i].ExpenseID)
		assert.Equal(t, a.Anomalies[i].Score, b.Anomalies[i].Score)
	}
}

func TestDetector_InsufficientData(t *testing.T) {
	raw := spikeExpenses()[:9]
	_, err := NewDetector(DefaultForestConfig, DefaultMinRecords).Detect(context.Background(), "u1", raw)
	require.Error(t, err)
	assert.Equal(t, ErrInsufficientData, CodeOf(err))
}

func TestDetector_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDetector(DefaultForestConfig, DefaultMinRecords).Detect(ctx, "u1", spikeExpenses())
	require.ErrorIs(t, err, context.Canceled)
}

func TestExplain(t *testing.T) {
	amounts := []float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 200}
	mean := 0.0
	for _, a := range amounts {
		mean += a
	}
	mean /= float64(len(amounts))

	tests := []struct {
		name   string
		amount float64
		hour   int
		want   string
	}{
		{
			name:   "high amount and top percentile",
			amount: 200,
			hour:   12,
			want:   "Amount is 7.7x higher than average; Amount is in top 8.3% of all expenses",
		},
		{name: "early hour", amount: 10, hour: 3, want: "Unusual time of transaction"},
		{name: "nothing fires", amount: 10, hour: 12, want: "Pattern deviation detected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, explain(tt.amount, tt.hour, mean, amounts))
		})
	}
}
