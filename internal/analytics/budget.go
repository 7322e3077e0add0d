package analytics

import (
	"fmt"
	"time"

	"github.com/castlemilk/pfinance/analytics/internal/store"
	"github.com/shopspring/decimal"
)

// lowConfidenceMonths is the month count below which a recommendation carries a note.
const lowConfidenceMonths = 3

// BudgetOptions tunes RecommendBudget.
type BudgetOptions struct {
	MinRecords int
	// Location decides which calendar month a timestamp falls in. Defaults to UTC.
	Location *time.Location
}

// BudgetRecommendation maps each category to its average monthly spend.
type BudgetRecommendation struct {
	UserID         string             `json:"userId"`
	Categories     map[string]float64 `json:"recommendations"`
	MonthsObserved int                `json:"monthsObserved"`
	Note           string             `json:"note,omitempty"`
}

type monthKey struct {
	year  int
	month time.Month
}

// RecommendBudget averages each category's monthly totals over the months in
// which the category has spending.
func RecommendBudget(userID string, raw []*store.Expense, opts BudgetOptions) (*BudgetRecommendation, error) {
	set, err := Clean(raw, CleanOptions{MinRecords: opts.MinRecords, RequireCategory: true})
	if err != nil {
		return nil, err
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	totals := make(map[string]map[monthKey]decimal.Decimal)
	months := make(map[monthKey]struct{})
	for _, r := range set.Records {
		local := r.Timestamp.In(loc)
		key := monthKey{year: local.Year(), month: local.Month()}
		months[key] = struct{}{}

		byMonth, ok := totals[*r.Category]
		if !ok {
			byMonth = make(map[monthKey]decimal.Decimal)
			totals[*r.Category] = byMonth
		}
		byMonth[key] = byMonth[key].Add(r.Amount)
	}

	rec := &BudgetRecommendation{
		UserID:         userID,
		Categories:     make(map[string]float64, len(totals)),
		MonthsObserved: len(months),
	}
	for category, byMonth := range totals {
		sum := decimal.Zero
		for _, total := range byMonth {
			sum = sum.Add(total)
		}
		avg := sum.Div(decimal.NewFromInt(int64(len(byMonth)))).Round(2)
		rec.Categories[category] = avg.InexactFloat64()
	}
	if rec.MonthsObserved < lowConfidenceMonths {
		rec.Note = fmt.Sprintf("Only %d month(s) of data available. Estimates may be less accurate.", rec.MonthsObserved)
	}
	return rec, nil
}
