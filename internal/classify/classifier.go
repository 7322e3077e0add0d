// Package classify predicts a spending category from an expense description.
package classify

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Classifier predicts a single category label for free text.
type Classifier interface {
	Predict(ctx context.Context, text string) (string, error)
}

// Tokenize normalizes text and splits it into lowercase word tokens of at
// least two runes.
func Tokenize(text string) []string {
	folded := cases.Fold().String(norm.NFKC.String(text))
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
