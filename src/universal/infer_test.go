package universal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/tradefolio/backend/src/models"
)

func TestInfer_FullMatch(t *testing.T) {
	headers := []string{"Date", "Symbol", "Action", "Quantity", "Price"}
	inf := Infer(headers, nil, "en-US")

	assert.Equal(t, 1.0, inf.Confidence)
	assert.Equal(t, "Date", inf.Mapping[models.FieldDate])
	assert.Equal(t, "Symbol", inf.Mapping[models.FieldTicker])
	assert.Equal(t, "Action", inf.Mapping[models.FieldAction])
	assert.Equal(t, "Quantity", inf.Mapping[models.FieldQuantity])
	assert.Equal(t, "Price", inf.Mapping[models.FieldPrice])
	assert.True(t, inf.Mapping.Complete())
}

func TestInfer_SynonymsAndNoisyHeaderNames(t *testing.T) {
	headers := []string{"Trade Date", "Instrument", "Side", "No. of shares", "Price / share", "CCY", "Fees"}
	inf := Infer(headers, nil, "en-US")

	assert.Equal(t, 1.0, inf.Confidence)
	assert.Equal(t, "Trade Date", inf.Mapping[models.FieldDate])
	assert.Equal(t, "Instrument", inf.Mapping[models.FieldTicker])
	assert.Equal(t, "Side", inf.Mapping[models.FieldAction])
	assert.Equal(t, "No. of shares", inf.Mapping[models.FieldQuantity])
	assert.Equal(t, "Price / share", inf.Mapping[models.FieldPrice])
	assert.Equal(t, "CCY", inf.Mapping[models.FieldCurrency])
	assert.Equal(t, "Fees", inf.Mapping[models.FieldFees])
}

func TestInfer_NoMatch(t *testing.T) {
	inf := Infer([]string{"Alpha", "Beta", "Gamma"}, nil, "en-US")
	assert.Equal(t, 0.0, inf.Confidence)
	assert.False(t, inf.Mapping.Complete())
}

func TestInfer_PartialMatch(t *testing.T) {
	inf := Infer([]string{"Date", "Symbol", "Alpha", "Beta", "Gamma"}, nil, "en-US")
	assert.InDelta(t, 0.4, inf.Confidence, 1e-9)
}

func TestInfer_HeaderClaimedOnceOnly(t *testing.T) {
	// "Type" is a synonym for action; it must not be reassigned even though
	// nothing else matches ticker.
	headers := []string{"Date", "Type", "Quantity", "Price"}
	inf := Infer(headers, nil, "en-US")

	assert.Equal(t, "Type", inf.Mapping[models.FieldAction])
	assert.Empty(t, inf.Mapping[models.FieldTicker])
	assert.InDelta(t, 0.8, inf.Confidence, 1e-9)
}

func TestInfer_NumericRefinement(t *testing.T) {
	// "Quantity" wins on synonym priority but holds junk; "Units" holds the
	// actual numbers and must take over the quantity slot.
	headers := []string{"Date", "Symbol", "Action", "Quantity", "Units", "Price"}
	sample := []models.Row{
		{"Date": "2024-01-01", "Symbol": "AAPL", "Action": "BUY", "Quantity": "ten shares", "Units": "10", "Price": "150.00"},
		{"Date": "2024-01-02", "Symbol": "MSFT", "Action": "SELL", "Quantity": "five shares", "Units": "5", "Price": "400.00"},
	}
	inf := Infer(headers, sample, "en-US")

	assert.Equal(t, "Units", inf.Mapping[models.FieldQuantity])
	assert.Equal(t, 1.0, inf.Confidence)
}

func TestInfer_NumericRefinementKeepsParseableChoice(t *testing.T) {
	headers := []string{"Date", "Symbol", "Action", "Quantity", "Units", "Price"}
	sample := []models.Row{
		{"Date": "2024-01-01", "Symbol": "AAPL", "Action": "BUY", "Quantity": "10", "Units": "10", "Price": "150.00"},
	}
	inf := Infer(headers, sample, "en-US")
	assert.Equal(t, "Quantity", inf.Mapping[models.FieldQuantity])
}

func TestInfer_DuplicateHeadersFirstOccurrenceWins(t *testing.T) {
	headers := []string{"Date", "Date", "Symbol", "Action", "Quantity", "Price"}
	inf := Infer(headers, nil, "en-US")
	require.Equal(t, "Date", inf.Mapping[models.FieldDate])
	assert.Equal(t, 1.0, inf.Confidence)
}
