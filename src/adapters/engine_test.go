package adapters

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/tradefolio/backend/src/models"
)

func num(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestParse_TradesAndDividends(t *testing.T) {
	text := strings.Join([]string{
		"Action,Time,Ticker,No. of shares,Price / share,Currency (Price / share)",
		"Market buy,2024-01-01,AAPL,10,150.00,USD",
		"Dividend (Ordinary),2024-01-02,AAPL,,,",
		"Market sell,2024-01-03,AAPL,4,155.00,USD",
	}, "\n")

	result := Parse(trading212, text, "")
	require.Len(t, result.Trades, 2)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, "trading212", result.Broker)
	assert.Equal(t, 3, result.Meta.Rows)
	assert.Equal(t, 0, result.Meta.Invalid)
	assert.Equal(t, PipelineVersion, result.Meta.Version)

	buy, sell := result.Trades[0], result.Trades[1]
	assert.Equal(t, models.TradeBuy, buy.Type)
	assert.Equal(t, "2024-01-01", buy.Date)
	assert.Equal(t, "AAPL", buy.Ticker)
	assert.True(t, buy.Qty.Equal(num("10")))
	assert.True(t, buy.Price.Equal(num("150")))
	assert.Equal(t, "USD", buy.Currency)
	assert.Equal(t, "trading212", buy.Source)
	assert.NotEmpty(t, buy.RawHash)

	assert.Equal(t, models.TradeSell, sell.Type)
	assert.Equal(t, "2024-01-03", sell.Date)
}

func TestParse_NonPositiveQuantityIsWarned(t *testing.T) {
	text := strings.Join([]string{
		"Action,Time,Ticker,No. of shares,Price / share",
		"Market buy,2024-01-01,AAPL,0,150.00",
	}, "\n")

	result := Parse(trading212, text, "")
	assert.Empty(t, result.Trades)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "Non-positive qty/price")
	assert.Contains(t, result.Warnings[0], "qty=0")
	assert.Equal(t, 1, result.Meta.Invalid)
}

func TestParse_BlankDateOrTickerSkipsSilently(t *testing.T) {
	text := strings.Join([]string{
		"Action,Time,Ticker,No. of shares,Price / share",
		"Market buy,,AAPL,10,150.00",
		"Market buy,2024-01-01,,10,150.00",
	}, "\n")

	result := Parse(trading212, text, "")
	assert.Empty(t, result.Trades)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, 2, result.Meta.Rows)
}

func TestParse_BadDateIsWarned(t *testing.T) {
	text := strings.Join([]string{
		"Action,Time,Ticker,No. of shares,Price / share",
		"Market buy,not-a-date,AAPL,10,150.00",
	}, "\n")

	result := Parse(trading212, text, "")
	assert.Empty(t, result.Trades)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "unrecognized date")
}

func TestParse_MalformedLineBecomesWarning(t *testing.T) {
	text := strings.Join([]string{
		"Action,Time,Ticker,No. of shares,Price / share",
		"Market buy,2024-01-01,AAPL,10",
		"Market buy,2024-01-02,MSFT,5,400.00",
	}, "\n")

	result := Parse(trading212, text, "")
	// The short row is repaired but reported, then fails on its blank price.
	require.Len(t, result.Trades, 1)
	assert.Equal(t, "MSFT", result.Trades[0].Ticker)
	assert.NotEmpty(t, result.Warnings)
}

func TestParse_FeesAbsoluteValue(t *testing.T) {
	text := strings.Join([]string{
		"Action,Time,Ticker,No. of shares,Price / share,Currency conversion fee",
		"Market buy,2024-01-01,AAPL,10,150.00,-0.15",
	}, "\n")

	result := Parse(trading212, text, "")
	require.Len(t, result.Trades, 1)
	assert.True(t, result.Trades[0].Fees.Equal(num("0.15")))
}

func TestParse_CurrencyFallsBackToBrokerDefault(t *testing.T) {
	text := strings.Join([]string{
		"Action,Time,Ticker,No. of shares,Price / share",
		"Market buy,2024-01-01,AAPL,10,150.00",
	}, "\n")

	result := Parse(trading212, text, "")
	require.Len(t, result.Trades, 1)
	assert.Equal(t, "GBP", result.Trades[0].Currency)
}

func TestParse_CallerLocaleOverridesDefault(t *testing.T) {
	text := strings.Join([]string{
		"Action,Time,Ticker,No. of shares,Price / share",
		"Market buy,03/05/2024,AAPL,10,150.00",
	}, "\n")

	// trading212 defaults to en-GB (day first); an explicit en-US hint wins.
	result := Parse(trading212, text, "en-US")
	require.Len(t, result.Trades, 1)
	assert.Equal(t, "2024-03-05", result.Trades[0].Date)

	result = Parse(trading212, text, "")
	require.Len(t, result.Trades, 1)
	assert.Equal(t, "2024-05-03", result.Trades[0].Date)
}

func TestWarnRow(t *testing.T) {
	w := WarnRow(models.Row{"Ticker": "AAPL"}, errors.New("boom"))
	assert.True(t, strings.HasPrefix(w, "row {"))
	assert.Contains(t, w, "AAPL")
	assert.True(t, strings.HasSuffix(w, "→ boom"))

	long := models.Row{}
	for _, k := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		long[k] = strings.Repeat("x", 40)
	}
	w = WarnRow(long, errors.New("boom"))
	assert.LessOrEqual(t, strings.Index(w, "…"), 4+120+1)
}

func TestWarnRow_TruncatesAtRuneBoundary(t *testing.T) {
	// Accented headers (Descrição, Mudança) put multibyte runes near the
	// truncation point. The dump must stay valid UTF-8 wherever the cut lands.
	for pad := 60; pad < 130; pad++ {
		row := models.Row{"Descrição": strings.Repeat("x", pad) + "ações çãõ ações çãõ"}
		w := WarnRow(row, errors.New("boom"))
		assert.True(t, utf8.ValidString(w), "pad=%d produced invalid UTF-8: %q", pad, w)
	}
}
