// Package normalize holds the locale-aware scalar normalizers shared by every
// import path: dates to ISO-8601, numeric strings to decimals, instrument
// identifiers to canonical tickers, plus currency inference and the stable
// row fingerprint used for downstream deduplication.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/username/tradefolio/backend/src/models"
)

var (
	ErrDateParse   = errors.New("unrecognized date")
	ErrNumberParse = errors.New("not a number")
)

var (
	ymdRe     = regexp.MustCompile(`^(\d{4})[/\-.](\d{1,2})[/\-.](\d{1,2})`)
	localedRe = regexp.MustCompile(`^(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{2,4})`)
	compactRe = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})$`)

	currencyPrefixRe = regexp.MustCompile(`^[A-Za-z]{3}\s+`)
	thousandsDotRe   = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)
	thousandsComaRe  = regexp.MustCompile(`^\d{1,3}(,\d{3})+$`)

	suffixTickerRe = regexp.MustCompile(`^[A-Za-z0-9]+:[A-Za-z0-9]+$`)
	slashPairRe    = regexp.MustCompile(`^[A-Za-z0-9]+/[A-Za-z0-9]+$`)
	dashPairRe     = regexp.MustCompile(`^[A-Za-z0-9]+-[A-Za-z0-9]+$`)
	plainTickerRe  = regexp.MustCompile(`^[A-Z0-9.\-]+$`)
)

// ToISO parses a date string under the given locale's field ordering and
// returns an ISO-8601 calendar date ("2006-01-02"). ISO input (with or
// without a time component) is accepted regardless of locale.
func ToISO(raw string, loc Locale) (string, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", fmt.Errorf("%w: empty value", ErrDateParse)
	}

	if m := ymdRe.FindStringSubmatch(v); m != nil {
		return isoDate(m[1], m[2], m[3], raw)
	}
	if m := compactRe.FindStringSubmatch(v); m != nil {
		return isoDate(m[1], m[2], m[3], raw)
	}
	if m := localedRe.FindStringSubmatch(v); m != nil {
		a, b, y := m[1], m[2], m[3]
		if len(y) == 2 {
			y = "20" + y
		}
		if loc.DayFirst() {
			return isoDate(y, b, a, raw)
		}
		return isoDate(y, a, b, raw)
	}
	return "", fmt.Errorf("%w: %q", ErrDateParse, raw)
}

// isoDate assembles and validates a calendar date from string components.
// Rejects dates that do not round-trip (e.g. month 13, Feb 31).
func isoDate(y, mo, d, raw string) (string, error) {
	year, _ := strconv.Atoi(y)
	month, _ := strconv.Atoi(mo)
	day, _ := strconv.Atoi(d)
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day || year < 1900 {
		return "", fmt.Errorf("%w: %q", ErrDateParse, raw)
	}
	return t.Format("2006-01-02"), nil
}

// ToNumber parses a numeric string respecting the locale's decimal and
// thousands separators. Strings carrying both separators are resolved
// structurally (the first-occurring separator is the thousands group), which
// keeps mixed exports parseable under either locale. A leading three-letter
// currency code ("USD 111.97") is stripped.
func ToNumber(raw string, loc Locale) (decimal.Decimal, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return decimal.Zero, fmt.Errorf("%w: empty value", ErrNumberParse)
	}
	v = currencyPrefixRe.ReplaceAllString(v, "")
	v = strings.ReplaceAll(v, " ", "")
	v = strings.ReplaceAll(v, " ", "")

	hasComma := strings.Contains(v, ",")
	hasDot := strings.Contains(v, ".")
	switch {
	case hasComma && hasDot:
		if strings.Index(v, ",") < strings.Index(v, ".") {
			v = strings.ReplaceAll(v, ",", "")
		} else {
			v = strings.ReplaceAll(v, ".", "")
			v = strings.Replace(v, ",", ".", 1)
		}
	case hasComma:
		stripped := strings.TrimPrefix(v, "-")
		if !loc.commaDecimal() && thousandsComaRe.MatchString(stripped) {
			v = strings.ReplaceAll(v, ",", "")
		} else {
			v = strings.Replace(v, ",", ".", 1)
		}
	case hasDot:
		stripped := strings.TrimPrefix(v, "-")
		if loc.commaDecimal() && thousandsDotRe.MatchString(stripped) {
			v = strings.ReplaceAll(v, ".", "")
		}
	}

	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrNumberParse, raw)
	}
	return d, nil
}

// ToTicker canonicalizes an instrument identifier: uppercased and trimmed,
// with the base symbol extracted from exchange-suffix notation ("TSLA:US")
// and pair notation ("BTC/USDT", "BTC-USDT"). A free-text description keeps
// its last token ("Apple Inc. AAPL" -> "AAPL"). Empty input yields an empty
// symbol; callers reject empty tickers upstream.
func ToTicker(raw string) string {
	v := strings.TrimSpace(raw)
	if v == "" {
		return ""
	}
	switch {
	case suffixTickerRe.MatchString(v):
		return strings.ToUpper(v[:strings.Index(v, ":")])
	case slashPairRe.MatchString(v):
		return strings.ToUpper(v[:strings.Index(v, "/")])
	case dashPairRe.MatchString(v):
		return strings.ToUpper(v[:strings.Index(v, "-")])
	}
	if strings.ContainsAny(v, " \t") && !plainTickerRe.MatchString(v) {
		parts := strings.Fields(v)
		last := parts[len(parts)-1]
		last = strings.NewReplacer("(", "", ")", "").Replace(last)
		return strings.ToUpper(last)
	}
	return strings.ToUpper(v)
}

// currencyAliases are the header names commonly carrying an explicit
// currency code, tried in order.
var currencyAliases = []string{"Currency", "CCY", "Currency (native)", "currency", "Quote Currency"}

// InferCurrency returns the row's explicit currency if one of the common
// currency headers is present and populated, else the caller's fallback
// (typically the broker's home currency).
func InferCurrency(row models.Row, fallback string) string {
	for _, alias := range currencyAliases {
		if v := strings.TrimSpace(row[alias]); v != "" {
			return v
		}
	}
	return fallback
}

// HashRow returns a deterministic, order-independent fingerprint of a row's
// key/value pairs. Stable across calls for identical content; used by
// downstream consumers to deduplicate trades across imports.
func HashRow(row models.Row) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0x1f})
		h.Write([]byte(row[k]))
		h.Write([]byte{0x1e})
	}
	return hex.EncodeToString(h.Sum(nil))
}
