package adapters

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/username/tradefolio/backend/src/models"
	"github.com/username/tradefolio/backend/src/normalize"
	"github.com/username/tradefolio/backend/src/tabular"
)

// PipelineVersion is stamped into every ParseResult's metadata.
const PipelineVersion = "1.0.0"

// Parse runs the shared engine over decoded text with one broker's
// descriptor. Row-level failures become warnings; the engine never aborts a
// file because of a bad row.
func Parse(d *Descriptor, text string, loc normalize.Locale) *models.ParseResult {
	start := time.Now()
	loc = loc.Or(d.DefaultLocale)

	rows, issues := tabular.Parse(text)
	warnings := append([]string(nil), issues...)
	var trades []models.NormalizedTrade

	for _, row := range rows {
		rowTrades, skip, err := d.resolveRow(row, loc)
		if skip {
			continue
		}
		if err != nil {
			warnings = append(warnings, WarnRow(row, err))
			continue
		}
		valid := true
		for _, trade := range rowTrades {
			if !trade.Qty.IsPositive() || !trade.Price.IsPositive() {
				warnings = append(warnings, WarnRow(row, fmt.Errorf("Non-positive qty/price: qty=%s, price=%s", trade.Qty, trade.Price)))
				valid = false
				break
			}
		}
		if !valid {
			continue
		}
		trades = append(trades, rowTrades...)
	}

	return &models.ParseResult{
		Broker:   d.ID,
		Trades:   trades,
		Warnings: warnings,
		Meta: models.ImportMeta{
			Rows:       len(rows),
			Invalid:    len(warnings),
			DurationMs: time.Since(start).Milliseconds(),
			Version:    PipelineVersion,
		},
	}
}

func (d *Descriptor) resolveRow(row models.Row, loc normalize.Locale) ([]models.NormalizedTrade, bool, error) {
	if d.Resolve != nil {
		return d.Resolve(d, row, loc)
	}
	trade, skip, err := d.standardRow(row, loc)
	if skip || err != nil {
		return nil, skip, err
	}
	return []models.NormalizedTrade{*trade}, false, nil
}

// standardRow is the engine's default row transform: action keyword
// classification, then per-field extraction through the descriptor's column
// fallbacks. Blank identifying fields mean "not a trade row" and skip
// silently; parse failures and non-positive values are warned.
func (d *Descriptor) standardRow(row models.Row, loc normalize.Locale) (*models.NormalizedTrade, bool, error) {
	action := strings.ToUpper(d.cell(row, models.FieldAction))
	if action == "" || d.isNonTrade(action) {
		return nil, true, nil
	}
	tradeType := models.TradeBuy
	if strings.Contains(action, "SELL") {
		tradeType = models.TradeSell
	}

	rawDate := d.cell(row, models.FieldDate)
	rawTicker := d.cell(row, models.FieldTicker)
	if rawDate == "" || rawTicker == "" {
		return nil, true, nil
	}

	date, err := normalize.ToISO(rawDate, loc)
	if err != nil {
		return nil, false, err
	}
	ticker := normalize.ToTicker(rawTicker)

	qty, err := numberOrZero(d.cell(row, models.FieldQuantity), loc)
	if err != nil {
		return nil, false, err
	}
	price, err := numberOrZero(d.cell(row, models.FieldPrice), loc)
	if err != nil {
		return nil, false, err
	}

	currency := d.cell(row, models.FieldCurrency)
	if currency == "" {
		currency = normalize.InferCurrency(row, d.DefaultCurrency)
	}

	fees := decimal.Zero
	if rawFees := d.cell(row, models.FieldFees); rawFees != "" {
		fees, err = normalize.ToNumber(rawFees, loc)
		if err != nil {
			return nil, false, err
		}
		fees = fees.Abs()
	}

	return &models.NormalizedTrade{
		Date:     date,
		Ticker:   ticker,
		Type:     tradeType,
		Qty:      qty,
		Price:    price,
		Currency: currency,
		Fees:     fees,
		Source:   d.ID,
		RawHash:  normalize.HashRow(row),
	}, false, nil
}

// numberOrZero parses a cell that may legitimately be absent; a missing cell
// is zero (and fails the positivity check later with a warning), while a
// populated but unparseable cell is a parse error.
func numberOrZero(raw string, loc normalize.Locale) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return normalize.ToNumber(raw, loc)
}

// WarnRow renders the standard row-rejection warning: a truncated dump of the
// offending row plus the failure reason. The cut backs up to a rune boundary
// so dumps with non-ASCII headers stay valid UTF-8.
func WarnRow(row models.Row, err error) string {
	dump, _ := json.Marshal(row)
	s := string(dump)
	if len(s) > 120 {
		cut := 120
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return fmt.Sprintf("row %s… → %v", s, err)
}
