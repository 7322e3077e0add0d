package classify

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeLabel canonicalizes a user-entered category so that "food",
// " FOOD " and "Food" train as one class. Words longer than two runes are
// title-cased; shorter ones are treated as abbreviations and upper-cased.
func NormalizeLabel(raw string) string {
	caser := cases.Title(language.English)
	words := strings.Fields(raw)
	for i, word := range words {
		if utf8.RuneCountInString(word) > 2 {
			words[i] = caser.String(strings.ToLower(word))
		} else {
			words[i] = strings.ToUpper(word)
		}
	}
	return strings.Join(words, " ")
}
