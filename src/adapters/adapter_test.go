package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// detectionSamples pairs every registered broker with a representative
// header line from its export format.
var detectionSamples = map[string]string{
	"trading212": "Action,Time,ISIN,Ticker,Name,No. of shares,Price / share,Currency (Price / share),Exchange rate,Total,Currency conversion fee",
	"etoro":      "Date,Type,Details,Amount,Units,Open Rate,Close Rate,Spread,Profit,Open Date,Close Date",
	"revolut":    "Date,Ticker,Type,Quantity,Price per share,Total Amount,Currency,FX Rate",
	"freetrade":  "Title,Type,Timestamp,Account Currency,Total Amount,Buy / Sell,Ticker,ISIN,Price per Share in Account Currency,Stamp Duty (GBP),Quantity,Total Shares Amount,FX Fee (GBP)",
	"ibkr_flex":  "Trades,Header,DataDiscriminator,Asset Category,Currency,Symbol,Date/Time,Quantity,T.Price,C.Price,Proceeds,Comm/Fee",
	"saxo":       "Trade Date,Value Date,Instrument,Instrument Symbol,Trade Event,Quantity,Price,Booked Amount,Currency",
	"ig":         "Date,Time,Activity,Market,Direction,Quantity,Price,Currency,Commission,Consideration",
	"degiro":     "Data,Hora,Data Valor,Produto,ISIN,Descrição,Taxa,Mudança,Saldo,ID da Ordem",
	"schwab":     "Date,Action,Symbol,Description,Quantity,Price,Fees & Comm,Amount",
	"fidelity":   "Run Date,Action,Symbol,Description,Type,Quantity,Price ($),Commission ($),Fees ($),Amount ($),Settlement Date",
	"vanguard":   "Account Number,Trade Date,Settlement Date,Transaction Type,Transaction Description,Investment Name,Symbol,Shares,Share Price,Principal Amount,Commission Fees,Net Amount",
	"robinhood":  "Activity Date,Process Date,Settle Date,Instrument,Description,Trans Code,Quantity,Price,Amount",
	"webull":     "Name,Symbol,Side,Status,Filled,Total Qty,Price,Avg Price,Time-in-Force,Placed Time,Filled Time",
	"xtb":        "Position,Symbol,Type,Volume,Open time,Open price,Close time,Close price,Profit",
	"coinbase":   "Timestamp,Transaction Type,Asset,Quantity Transacted,Spot Price Currency,Spot Price at Transaction,Subtotal,Total,Fees and/or Spread",
	"binance":    "Date(UTC),Pair,Side,Price,Executed,Amount,Fee",
	"kraken":     "txid,ordertxid,pair,time,type,ordertype,price,cost,fee,vol,margin,misc,ledgers",
	"koinly":     "Koinly Date,Pair,Sent Amount,Sent Currency,Received Amount,Received Currency,Fee Amount,Fee Currency,Net Worth Amount,Label,Description,TxHash",
	"turbotax":   "Currency Name,Purchase Date,Cost Basis,Date Sold,Proceeds",
}

func TestMatch_RecognizesEveryBroker(t *testing.T) {
	for id, sample := range detectionSamples {
		t.Run(id, func(t *testing.T) {
			d := Match(sample)
			require.NotNil(t, d, "no descriptor matched")
			assert.Equal(t, id, d.ID)
		})
	}
}

// Dispatch is first-match-wins, so a sample firing two detectors would make
// registry order load-bearing. Keep every detector exclusive instead.
func TestMatch_DetectorsAreExclusive(t *testing.T) {
	for id, sample := range detectionSamples {
		var fired []string
		for _, d := range Registry {
			if d.Detect(sample) {
				fired = append(fired, d.ID)
			}
		}
		assert.Equal(t, []string{id}, fired, "sample for %s", id)
	}
}

func TestMatch_UnknownFormat(t *testing.T) {
	assert.Nil(t, Match("Date,Open,High,Low,Close,Volume"))
	assert.Nil(t, Match(""))
}

func TestRegistry_EveryDescriptorIsComplete(t *testing.T) {
	seen := map[string]bool{}
	for _, d := range Registry {
		require.NotEmpty(t, d.ID)
		assert.False(t, seen[d.ID], "duplicate id %s", d.ID)
		seen[d.ID] = true
		assert.NotNil(t, d.Detect, "%s has no detector", d.ID)
		assert.NotEmpty(t, d.DefaultCurrency, "%s has no default currency", d.ID)
		if d.Resolve == nil {
			assert.NotEmpty(t, d.Columns, "%s has neither columns nor a resolver", d.ID)
		}
	}
}
