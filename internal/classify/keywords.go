package classify

import (
	"context"
	"strings"
)

// DefaultCategory is returned when no keyword matches.
const DefaultCategory = "Other"

// KeywordRule maps any of its keywords to Category.
type KeywordRule struct {
	Category string
	Keywords []string
}

// KeywordTable classifies by substring match. Rules are tried in order and
// the first match wins.
type KeywordTable []KeywordRule

// DefaultKeywordTable is the built-in rule set.
var DefaultKeywordTable = KeywordTable{
	{Category: "Food", Keywords: []string{"food", "pizza", "restaurant", "dinner", "lunch", "breakfast"}},
	{Category: "Groceries", Keywords: []string{"grocery", "groceries"}},
	{Category: "Vegetable", Keywords: []string{"vegetables", "vegetable"}},
	{Category: "Taxi", Keywords: []string{"taxi", "uber", "ola"}},
	{Category: "Fuel", Keywords: []string{"fuel", "petrol", "gas"}},
	{Category: "Rent", Keywords: []string{"rent"}},
	{Category: "Electricity", Keywords: []string{"electricity", "electric"}},
	{Category: "Water", Keywords: []string{"water"}},
	{Category: "Internet", Keywords: []string{"internet", "wifi"}},
}

// Predict returns the category of the first rule with a keyword contained in text.
func (t KeywordTable) Predict(ctx context.Context, text string) (string, error) {
	lower := strings.ToLower(text)
	for _, rule := range t {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				return rule.Category, nil
			}
		}
	}
	return DefaultCategory, nil
}
