package analytics

import (
	"strings"
	"time"

	"github.com/castlemilk/pfinance/analytics/internal/store"
	"github.com/shopspring/decimal"
)

// DefaultMinRecords is the minimum number of usable records any model needs.
const DefaultMinRecords = 10

// timestampLayouts are tried in order when parsing stored dates.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
}

// Record is a validated expense.
type Record struct {
	ID          string
	UserID      string
	Amount      decimal.Decimal
	Timestamp   time.Time
	Description string
	Category    *string
	Notes       string
}

// AmountFloat returns the amount as a float64 for numeric work.
func (r Record) AmountFloat() float64 {
	f, _ := r.Amount.Float64()
	return f
}

// CleanedSet is the ordered result of Clean.
type CleanedSet struct {
	Records  []Record
	RawCount int
}

// Len returns the number of usable records.
func (s *CleanedSet) Len() int {
	return len(s.Records)
}

// CleanOptions tunes Clean.
type CleanOptions struct {
	MinRecords int
	// RequireCategory makes category a required field and drops rows without one.
	RequireCategory bool
}

func (o CleanOptions) minRecords() int {
	if o.MinRecords <= 0 {
		return DefaultMinRecords
	}
	return o.MinRecords
}

// Clean coerces and filters raw expenses into a CleanedSet.
// Rows whose amount or date is missing or unparseable are dropped, as are
// non-positive amounts. Input order is preserved.
func Clean(raw []*store.Expense, opts CleanOptions) (*CleanedSet, error) {
	min := opts.minRecords()
	if len(raw) == 0 {
		return nil, InsufficientDataError(0, min)
	}
	if err := checkFieldsPresent(raw, opts.RequireCategory); err != nil {
		return nil, err
	}

	set := &CleanedSet{RawCount: len(raw)}
	for _, e := range raw {
		if e == nil {
			continue
		}
		amount, ok := parseAmount(e.Amount)
		if !ok || !amount.IsPositive() {
			continue
		}
		ts, ok := ParseTimestamp(e.Date)
		if !ok {
			continue
		}
		var category *string
		if e.Category != nil && strings.TrimSpace(*e.Category) != "" {
			c := strings.TrimSpace(*e.Category)
			category = &c
		}
		if opts.RequireCategory && category == nil {
			continue
		}

		set.Records = append(set.Records, Record{
			ID:          e.ID,
			UserID:      e.UserID,
			Amount:      amount,
			Timestamp:   ts,
			Description: e.Description,
			Category:    category,
			Notes:       e.Notes,
		})
	}

	if len(set.Records) < min {
		return nil, InsufficientDataError(len(set.Records), min)
	}
	return set, nil
}

// checkFieldsPresent fails when a required field is absent from every record.
func checkFieldsPresent(raw []*store.Expense, requireCategory bool) error {
	var hasAmount, hasDate, hasCategory bool
	for _, e := range raw {
		if e == nil {
			continue
		}
		hasAmount = hasAmount || strings.TrimSpace(e.Amount) != ""
		hasDate = hasDate || strings.TrimSpace(e.Date) != ""
		hasCategory = hasCategory || e.Category != nil
	}
	switch {
	case !hasAmount:
		return MissingFieldError("amount")
	case !hasDate:
		return MissingFieldError("date")
	case requireCategory && !hasCategory:
		return MissingFieldError("category")
	}
	return nil
}

func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ParseTimestamp parses a stored date in any supported layout. Values without
// an offset are taken as UTC. The result is always in UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
