package adapters

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/username/tradefolio/backend/src/models"
	"github.com/username/tradefolio/backend/src/normalize"
)

// exchangeColumns names the columns of a pair/exchange-style export that
// records trades as two-sided transfers rather than a single signed action.
type exchangeColumns struct {
	Date             string
	DateFallbacks    []string
	SentAmount       string
	SentCurrency     string
	ReceivedAmount   string
	ReceivedCurrency string
	Pair             string
	Price            string
	FeeAmount        string
}

// resolveExchange implements exchange-direction resolution: one populated
// side is a plain BUY (received) or SELL (sent) of that side's asset; both
// sides populated is a currency exchange whose direction follows the base
// asset of the trading pair. Rows with no recoverable price are rejected
// with a warning rather than priced at a fabricated 1.
func resolveExchange(d *Descriptor, row models.Row, loc normalize.Locale, cols exchangeColumns) ([]models.NormalizedTrade, bool, error) {
	sent := tolerantNumber(row[cols.SentAmount], loc)
	received := tolerantNumber(row[cols.ReceivedAmount], loc)
	if !sent.IsPositive() && !received.IsPositive() {
		return nil, true, nil
	}

	sentCur := strings.TrimSpace(row[cols.SentCurrency])
	receivedCur := strings.TrimSpace(row[cols.ReceivedCurrency])
	pair := strings.TrimSpace(row[cols.Pair])
	base, quote := splitPair(pair)

	var (
		tradeType models.TradeType
		qty       decimal.Decimal
		price     decimal.Decimal
		ticker    string
		currency  string
	)

	switch {
	case sent.IsPositive() && received.IsPositive():
		// Currency exchange: selling the base asset is a SELL, acquiring
		// it is a BUY; implied unit price is the ratio of the two amounts.
		if base == "" {
			base = sentCur
		}
		if sentCur == base || sentCur == "" {
			tradeType = models.TradeSell
			qty = sent
			price = received.Div(sent)
			currency = firstNonEmpty(quote, receivedCur)
		} else {
			tradeType = models.TradeBuy
			qty = received
			price = sent.Div(received)
			currency = firstNonEmpty(quote, sentCur)
		}
		ticker = normalize.ToTicker(base)

	case sent.IsPositive():
		tradeType = models.TradeSell
		qty = sent
		price = tolerantNumber(row[cols.Price], loc)
		ticker = normalize.ToTicker(firstNonEmpty(sentCur, base))
		currency = firstNonEmpty(receivedCur, quote)

	default:
		tradeType = models.TradeBuy
		qty = received
		price = tolerantNumber(row[cols.Price], loc)
		ticker = normalize.ToTicker(firstNonEmpty(receivedCur, base))
		currency = firstNonEmpty(sentCur, quote)
	}

	if ticker == "" {
		return nil, true, nil
	}
	if !price.IsPositive() {
		return nil, false, fmt.Errorf("no recoverable price for %s of %s", tradeType, ticker)
	}

	rawDate := strings.TrimSpace(row[cols.Date])
	for _, fb := range cols.DateFallbacks {
		if rawDate != "" {
			break
		}
		rawDate = strings.TrimSpace(row[fb])
	}
	date, err := normalize.ToISO(rawDate, loc)
	if err != nil {
		return nil, false, err
	}

	if currency == "" {
		currency = normalize.InferCurrency(row, d.DefaultCurrency)
	}
	fees := tolerantNumber(row[cols.FeeAmount], loc).Abs()

	return []models.NormalizedTrade{{
		Date:     date,
		Ticker:   ticker,
		Type:     tradeType,
		Qty:      qty,
		Price:    price,
		Currency: currency,
		Fees:     fees,
		Source:   d.ID,
		RawHash:  normalize.HashRow(row),
	}}, false, nil
}

// splitPair extracts base and quote assets from a trading-pair string like
// "BTC-USD" or "BTC/USDT". Unseparated pairs return the whole string as base.
func splitPair(pair string) (base, quote string) {
	if pair == "" {
		return "", ""
	}
	for _, sep := range []string{"-", "/"} {
		if i := strings.Index(pair, sep); i > 0 {
			return pair[:i], pair[i+len(sep):]
		}
	}
	return pair, ""
}

// trimQuoteSuffix recovers base and quote from an unseparated pair string
// ("BTCUSDT", "XXBTZUSD") by trying each known quote asset as a suffix.
// Quotes are tried in order; list longer codes before their prefixes.
func trimQuoteSuffix(pair string, quotes []string) (base, quote string) {
	for _, q := range quotes {
		if len(pair) > len(q) && strings.HasSuffix(pair, q) {
			return strings.TrimSuffix(pair, q), q
		}
	}
	return pair, ""
}

// tolerantNumber treats blanks and junk as zero; exchange exports leave the
// inactive side of a transfer empty.
func tolerantNumber(raw string, loc normalize.Locale) decimal.Decimal {
	v, err := normalize.ToNumber(raw, loc)
	if err != nil {
		return decimal.Zero
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
