// Package universal is the fallback import pipeline used when no broker
// adapter recognizes a file: it infers a column mapping from a synonym
// dictionary, scores its confidence, and either parses immediately or asks
// the caller to confirm the mapping before a second, authoritative pass.
package universal

import (
	"strings"

	"github.com/username/tradefolio/backend/src/models"
	"github.com/username/tradefolio/backend/src/normalize"
)

// fieldOrder fixes the assignment order across fields: a header claimed by
// an earlier field cannot be reassigned to a later one.
var fieldOrder = []models.StandardField{
	models.FieldDate, models.FieldTicker, models.FieldAction,
	models.FieldQuantity, models.FieldPrice, models.FieldCurrency, models.FieldFees,
}

// synonyms lists known header names per standard field, in priority order.
// Harvested from the per-broker adapter corpus; compared after aggressive
// normalization (trim, case-fold, strip non-alphanumerics).
var synonyms = map[models.StandardField][]string{
	models.FieldDate: {
		"date", "tradedate", "transactiondate", "koinlydate", "dateutc",
		"timestamp", "datetime", "rundate", "activitydate", "opendate",
		"opentime", "filledtime", "time",
	},
	models.FieldTicker: {
		"ticker", "symbol", "instrument", "stock", "asset", "security",
		"pair", "market", "currencyname", "produto",
	},
	models.FieldAction: {
		"action", "type", "side", "direction", "transactiontype",
		"transcode", "buysell", "activity", "label", "ordertype",
	},
	models.FieldQuantity: {
		"quantity", "qty", "shares", "units", "noofshares",
		"quantitytransacted", "vol", "volume", "filled", "totalqty",
		"executed", "size",
	},
	models.FieldPrice: {
		"price", "pricepershare", "priceshare", "tradeprice",
		"executionprice", "tprice", "shareprice", "unitprice", "openrate",
		"openprice", "avgprice", "usdspotpriceattransaction",
		"spotpriceattransaction", "rate",
	},
	models.FieldCurrency: {
		"currency", "currencynative", "ccy", "currencypriceshare",
		"spotpricecurrency", "quotecurrency", "currencycode",
	},
	models.FieldFees: {
		"fees", "fee", "commission", "feescomm", "commfee", "feeamount",
		"feegbp", "charges", "brokerage", "feesandorspread",
	},
}

// Inference is a best-guess mapping with its confidence score: the fraction
// of required fields successfully matched, a value in {0, 0.2, ..., 1.0}.
type Inference struct {
	Mapping    models.UniversalMapping
	Confidence float64
}

// Infer runs heuristic column-mapping inference over the file's headers and
// a small sample of early rows. First synonym match wins within a field;
// first-come priority holds across fields. For the numeric fields, a chosen
// column whose sample values do not parse as numbers under the locale is
// traded for an alternate synonym match whose samples do.
func Infer(headers []string, sample []models.Row, loc normalize.Locale) Inference {
	// normalized header -> original header, first occurrence wins
	normIndex := make(map[string]string, len(headers))
	for _, h := range headers {
		key := normalizeHeader(h)
		if key == "" {
			continue
		}
		if _, seen := normIndex[key]; !seen {
			normIndex[key] = h
		}
	}

	mapping := models.UniversalMapping{}
	assigned := make(map[string]bool)
	for _, field := range fieldOrder {
		for _, syn := range synonyms[field] {
			if orig, ok := normIndex[syn]; ok && !assigned[orig] {
				mapping[field] = orig
				assigned[orig] = true
				break
			}
		}
	}

	for _, field := range []models.StandardField{models.FieldQuantity, models.FieldPrice} {
		refineNumeric(field, mapping, assigned, normIndex, sample, loc)
	}

	required := 0
	for _, f := range models.RequiredFields {
		if mapping[f] != "" {
			required++
		}
	}
	return Inference{
		Mapping:    mapping,
		Confidence: float64(required) / float64(len(models.RequiredFields)),
	}
}

// refineNumeric guards against synonym collisions where a non-numeric column
// shares a header name with a numeric one: if the chosen column's samples
// fail to parse, prefer another synonym-matching column whose samples do.
func refineNumeric(field models.StandardField, mapping models.UniversalMapping, assigned map[string]bool, normIndex map[string]string, sample []models.Row, loc normalize.Locale) {
	chosen := mapping[field]
	if chosen == "" || len(sample) == 0 || samplesNumeric(sample, chosen, loc) {
		return
	}
	for _, syn := range synonyms[field] {
		orig, ok := normIndex[syn]
		if !ok || orig == chosen || assigned[orig] {
			continue
		}
		if samplesNumeric(sample, orig, loc) {
			delete(assigned, chosen)
			mapping[field] = orig
			assigned[orig] = true
			return
		}
	}
}

// samplesNumeric reports whether the column's populated sample cells parse
// as numbers under the locale. Vacuously true for an all-blank column.
func samplesNumeric(sample []models.Row, header string, loc normalize.Locale) bool {
	parsed, populated := 0, 0
	for _, row := range sample {
		v := strings.TrimSpace(row[header])
		if v == "" {
			continue
		}
		populated++
		if _, err := normalize.ToNumber(v, loc); err == nil {
			parsed++
		}
	}
	if populated == 0 {
		return true
	}
	return parsed*2 > populated
}

var headerJunk = strings.NewReplacer(" ", "", "\t", "", ".", "", ",", "", "/", "", "\\", "", "-", "", "_", "", "(", "", ")", "", "$", "", "&", "", "#", "", "'", "", "\"", "", ":", "", ";", "")

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = headerJunk.Replace(h)
	// strip anything else non-alphanumeric
	var b strings.Builder
	for _, r := range h {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
