package normalize

import "strings"

// Locale is a BCP-47-ish tag (e.g. "en-US", "en-GB", "de-DE") governing
// date-field order and decimal/thousands separator conventions.
type Locale string

const DefaultLocale Locale = "en-US"

// Tags whose conventions are day-first dates and comma-decimal numbers.
// en-GB is deliberately on this side: UK exports are day-first, and the
// brokers that label files en-GB also emit continental number grouping.
var europeanTags = []string{"en-GB", "en-AU", "en-IE", "en-NZ", "de", "fr", "es", "pt", "it", "nl"}

// DayFirst reports whether dates under this locale are day-first (31/12/2024)
// rather than month-first (12/31/2024).
func (l Locale) DayFirst() bool {
	for _, tag := range europeanTags {
		if strings.HasPrefix(string(l), tag) {
			return true
		}
	}
	return false
}

// commaDecimal reports whether the locale writes decimals with a comma and
// groups thousands with a dot or space.
func (l Locale) commaDecimal() bool {
	return l.DayFirst()
}

// Or returns l, or the fallback when l is empty.
func (l Locale) Or(fallback Locale) Locale {
	if l == "" {
		return fallback
	}
	return l
}
