// Package adapters holds the broker-specific import formats. Each broker is a
// declarative Descriptor (detection signals, column fallbacks, non-trade
// keywords, defaults) interpreted by one shared parsing engine; formats whose
// semantics do not fit the column model plug in a RowResolver instead.
package adapters

import (
	"strings"

	"github.com/username/tradefolio/backend/src/models"
	"github.com/username/tradefolio/backend/src/normalize"
)

// RowResolver replaces the engine's standard column extraction for one row.
// Returning skip drops the row silently (expected non-trade content); a
// non-nil error drops the row with a warning. A resolver may return more than
// one trade (gains-report rows expand into a buy and a sell leg); the engine
// re-checks the positive qty/price invariant on every leg and drops the row
// whole if any leg fails it.
type RowResolver func(d *Descriptor, row models.Row, loc normalize.Locale) (trades []models.NormalizedTrade, skip bool, err error)

// Descriptor declares one broker's export format.
type Descriptor struct {
	// ID tags every trade this adapter produces (provenance, not behavior).
	ID string

	// Detect is a fast, conservative predicate over a sample of decoded
	// text. Every detector must key on at least one signal unique to this
	// broker's export, never on generic headers alone: a false positive
	// sends the whole file through the wrong column semantics.
	Detect func(sample string) bool

	// Columns lists, per standard field, the broker's column names in
	// priority order (current name first, historical/alternate names after).
	Columns map[models.StandardField][]string

	// NonTradeKeywords identify action values describing events that are
	// not trades (dividends, transfers, interest). Matching rows are
	// skipped without a warning.
	NonTradeKeywords []string

	// DefaultCurrency is used when no currency column is present.
	DefaultCurrency string

	// DefaultLocale governs date and number parsing when the caller
	// supplies no locale hint.
	DefaultLocale normalize.Locale

	// Resolve, when set, handles rows whose semantics the column model
	// cannot express (description grammars, two-sided exchange records).
	Resolve RowResolver
}

// cell returns the first populated cell among the descriptor's column
// fallbacks for a field.
func (d *Descriptor) cell(row models.Row, field models.StandardField) string {
	for _, col := range d.Columns[field] {
		if v := strings.TrimSpace(row[col]); v != "" {
			return v
		}
	}
	return ""
}

// isNonTrade reports whether an upper-cased action value names a non-trade
// event for this broker.
func (d *Descriptor) isNonTrade(actionUpper string) bool {
	for _, kw := range d.NonTradeKeywords {
		if strings.Contains(actionUpper, kw) {
			return true
		}
	}
	return false
}

// Match returns the first descriptor whose detector accepts the sample, or
// nil when no broker format is recognized. First match wins; detector
// exclusivity over known sample files is covered by tests.
func Match(sample string) *Descriptor {
	for _, d := range Registry {
		if d.Detect(sample) {
			return d
		}
	}
	return nil
}

// hasAll reports whether every token occurs in the sample. Tokens are
// case-sensitive on purpose: header casing is part of a broker's signature.
func hasAll(sample string, tokens ...string) bool {
	for _, tok := range tokens {
		if !strings.Contains(sample, tok) {
			return false
		}
	}
	return true
}
