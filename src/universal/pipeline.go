package universal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/username/tradefolio/backend/src/adapters"
	"github.com/username/tradefolio/backend/src/logger"
	"github.com/username/tradefolio/backend/src/models"
	"github.com/username/tradefolio/backend/src/normalize"
	"github.com/username/tradefolio/backend/src/tabular"
)

const (
	// GenericSource tags trades produced by the universal path, distinct
	// from broker-specific provenance.
	GenericSource = "generic"

	// ConfidenceThreshold gates immediate parsing: below it the caller is
	// asked to confirm the mapping first.
	ConfidenceThreshold = 0.9

	// SuggestedConfidence is the fixed score assigned to an accepted LLM
	// mapping suggestion. Distinct from every purely-heuristic value so
	// provenance stays recoverable.
	SuggestedConfidence = 0.95

	sampleRowLimit = 5
)

// ErrMissingRequiredColumn is returned when a caller-confirmed mapping still
// lacks a required field. Fatal for the import; never degraded to per-row
// failures.
var ErrMissingRequiredColumn = errors.New("missing required column mapping")

// MappingSuggester proposes a column mapping for headers the heuristics
// could not resolve confidently. Implementations are remote and may fail;
// the pipeline always falls back to the heuristic result.
type MappingSuggester interface {
	SuggestMapping(ctx context.Context, headers []string, sample []models.Row) (models.UniversalMapping, error)
}

// Pipeline is the universal import path. The zero value works; Suggester is
// optional and off unless set.
type Pipeline struct {
	Suggester      MappingSuggester
	SuggestTimeout time.Duration
}

// Run decodes nothing and caches nothing: it takes decoded text, infers a
// mapping, and either parses immediately (high confidence, all required
// fields mapped) or returns a mapping-confirmation request carrying
// everything needed for the second pass.
func (p *Pipeline) Run(ctx context.Context, text string, loc normalize.Locale) *models.ImportOutcome {
	headers := tabular.Headers(text)
	rows, _ := tabular.Parse(text)
	sample := rows
	if len(sample) > sampleRowLimit {
		sample = sample[:sampleRowLimit]
	}

	inf := Infer(headers, sample, loc)
	mapping, confidence := inf.Mapping, inf.Confidence

	if confidence < ConfidenceThreshold && p.Suggester != nil {
		if suggested, ok := p.suggest(ctx, headers, sample); ok {
			mapping, confidence = suggested, SuggestedConfidence
		}
	}

	if confidence >= ConfidenceThreshold && mapping.Complete() {
		result := parseWithMapping(text, mapping, loc)
		return &models.ImportOutcome{Status: models.StatusParsed, Result: result}
	}

	return &models.ImportOutcome{
		Status: models.StatusRequiresMapping,
		Mapping: &models.RequiresMappingResult{
			Headers:    headers,
			SampleRows: sample,
			Proposed:   mapping,
			Confidence: confidence,
			RawText:    text,
		},
	}
}

// suggest consults the remote suggester under a timeout. Any failure
// (transport, timeout, malformed response) degrades to the heuristic
// mapping and is never surfaced to the end user.
func (p *Pipeline) suggest(ctx context.Context, headers []string, sample []models.Row) (models.UniversalMapping, bool) {
	timeout := p.SuggestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	suggested, err := p.Suggester.SuggestMapping(ctx, headers, sample)
	if err != nil {
		if logger.L != nil {
			logger.L.Warn("Mapping suggestion failed, falling back to heuristic mapping", "error", err)
		}
		return nil, false
	}

	known := make(map[string]bool, len(headers))
	for _, h := range headers {
		known[h] = true
	}
	cleaned := models.UniversalMapping{}
	for field, header := range suggested {
		if known[header] {
			cleaned[field] = header
		}
	}
	if !cleaned.Complete() {
		if logger.L != nil {
			logger.L.Warn("Mapping suggestion incomplete, falling back to heuristic mapping", "suggested", suggested)
		}
		return nil, false
	}
	return cleaned, true
}

// ParseWithMapping runs the authoritative second pass with a caller-confirmed
// mapping. A mapping missing any required field is rejected up front.
func ParseWithMapping(text string, mapping models.UniversalMapping, loc normalize.Locale) (*models.ParseResult, error) {
	if !mapping.Complete() {
		var missing []string
		for _, f := range models.RequiredFields {
			if mapping[f] == "" {
				missing = append(missing, string(f))
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrMissingRequiredColumn, strings.Join(missing, ", "))
	}
	return parseWithMapping(text, mapping, loc), nil
}

func parseWithMapping(text string, mapping models.UniversalMapping, loc normalize.Locale) *models.ParseResult {
	start := time.Now()
	rows, issues := tabular.Parse(text)
	warnings := append([]string(nil), issues...)
	var trades []models.NormalizedTrade

	for _, row := range rows {
		trade, skip, err := rowToTrade(row, mapping, loc)
		if skip {
			continue
		}
		if err != nil {
			warnings = append(warnings, adapters.WarnRow(row, err))
			continue
		}
		trades = append(trades, *trade)
	}

	return &models.ParseResult{
		Broker:   GenericSource,
		Trades:   trades,
		Warnings: warnings,
		Meta: models.ImportMeta{
			Rows:       len(rows),
			Invalid:    len(warnings),
			DurationMs: time.Since(start).Milliseconds(),
			Version:    adapters.PipelineVersion,
		},
	}
}

// rowToTrade is the generic row transform. Blank identifying fields mean
// "not a trade row" and skip silently; numeric violations are malformed
// trade rows and carry a warning. That asymmetry is deliberate.
func rowToTrade(row models.Row, mapping models.UniversalMapping, loc normalize.Locale) (*models.NormalizedTrade, bool, error) {
	action := strings.ToUpper(strings.TrimSpace(row[mapping[models.FieldAction]]))
	if action == "" || isNonTradeAction(action) {
		return nil, true, nil
	}

	rawDate := strings.TrimSpace(row[mapping[models.FieldDate]])
	rawTicker := strings.TrimSpace(row[mapping[models.FieldTicker]])
	if rawDate == "" || rawTicker == "" {
		return nil, true, nil
	}

	date, err := normalize.ToISO(rawDate, loc)
	if err != nil {
		return nil, false, err
	}
	ticker := normalize.ToTicker(rawTicker)

	qty, err := mappedNumber(row, mapping, models.FieldQuantity, loc)
	if err != nil {
		return nil, false, err
	}
	price, err := mappedNumber(row, mapping, models.FieldPrice, loc)
	if err != nil {
		return nil, false, err
	}
	if !qty.IsPositive() || !price.IsPositive() {
		return nil, false, fmt.Errorf("Non-positive qty/price: qty=%s, price=%s", qty, price)
	}

	tradeType := models.TradeBuy
	if strings.Contains(action, "SELL") {
		tradeType = models.TradeSell
	}

	currency := ""
	if col := mapping[models.FieldCurrency]; col != "" {
		currency = strings.TrimSpace(row[col])
	}
	if currency == "" {
		currency = normalize.InferCurrency(row, "USD")
	}

	fees := decimal.Zero
	if col := mapping[models.FieldFees]; col != "" && strings.TrimSpace(row[col]) != "" {
		fees, err = normalize.ToNumber(row[col], loc)
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
		Source:   GenericSource,
		RawHash:  normalize.HashRow(row),
	}, false, nil
}

func isNonTradeAction(actionUpper string) bool {
	for _, kw := range []string{"DIVIDEND", "INTEREST", "TRANSFER"} {
		if strings.Contains(actionUpper, kw) {
			return true
		}
	}
	return false
}

// mappedNumber parses a mapped numeric cell; blank cells are zero so the
// positivity check downstream produces the standard warning.
func mappedNumber(row models.Row, mapping models.UniversalMapping, field models.StandardField, loc normalize.Locale) (decimal.Decimal, error) {
	raw := strings.TrimSpace(row[mapping[field]])
	if raw == "" {
		return decimal.Zero, nil
	}
	return normalize.ToNumber(raw, loc)
}
