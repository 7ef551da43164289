package adapters

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/username/tradefolio/backend/src/models"
	"github.com/username/tradefolio/backend/src/normalize"
)

// Registry is the ordered list of supported broker formats. Dispatch is
// first-match-wins, so every detector keys on a signal unique to its broker
// (a distinctively named column or a brand token), never on generic headers
// like "Date,Price" that several exports share.
var Registry = []*Descriptor{
	trading212, etoro, revolut, freetrade, ibkrFlex, saxo, ig, degiro,
	schwab, fidelity, vanguard, robinhood, webull, xtb,
	coinbase, binance, kraken, koinly, turbotax,
}

var trading212 = &Descriptor{
	ID:     "trading212",
	Detect: func(s string) bool { return strings.Contains(s, "No. of shares") },
	Columns: map[models.StandardField][]string{
		models.FieldDate:     {"Time", "Date"},
		models.FieldTicker:   {"Ticker", "Instrument"},
		models.FieldAction:   {"Action", "Type"},
		models.FieldQuantity: {"No. of shares", "Quantity"},
		models.FieldPrice:    {"Price / share", "Price"},
		models.FieldCurrency: {"Currency (Price / share)", "Currency"},
		models.FieldFees:     {"Currency conversion fee", "Charge amount"},
	},
	NonTradeKeywords: []string{"DIVIDEND", "INTEREST", "DEPOSIT", "WITHDRAWAL", "LENDING"},
	DefaultCurrency:  "GBP",
	DefaultLocale:    "en-GB",
}

var etoro = &Descriptor{
	ID:     "etoro",
	Detect: func(s string) bool { return hasAll(s, "Units", "Open Rate") },
	Columns: map[models.StandardField][]string{
		models.FieldDate:     {"Date", "Open Date"},
		models.FieldTicker:   {"Instrument", "Symbol"},
		models.FieldAction:   {"Type", "Action"},
		models.FieldQuantity: {"Units", "Quantity"},
		models.FieldPrice:    {"Open Rate", "Price"},
		models.FieldCurrency: {"Currency"},
		models.FieldFees:     {"Fees", "Commission"},
	},
	NonTradeKeywords: []string{"DIVIDEND", "INTEREST", "DEPOSIT", "WITHDRAWAL", "ADJUSTMENT", "ROLLOVER"},
	DefaultCurrency:  "USD",
	DefaultLocale:    "en-US",
}

var revolut = &Descriptor{
	ID:     "revolut",
	Detect: func(s string) bool { return strings.Contains(s, "Price per share") },
	Columns: map[models.StandardField][]string{
		models.FieldDate:     {"Date", "Trade Date", "Transaction Date"},
		models.FieldTicker:   {"Ticker", "Stock", "Symbol"},
		models.FieldAction:   {"Type", "Action"},
		models.FieldQuantity: {"Quantity", "Qty", "Shares"},
		models.FieldPrice:    {"Price per share", "Price", "Trade Price"},
		models.FieldCurrency: {"Currency"},
		models.FieldFees:     {"Commission", "Fee"},
	},
	// Revolut labels market orders "BUY - MARKET"; the engine's keyword
	// classification handles the suffix without special casing.
	NonTradeKeywords: []string{"DIVIDEND", "INTEREST", "TRANSFER", "TOP-UP", "TOP UP", "WITHDRAWAL", "CUSTODY FEE"},
	DefaultCurrency:  "GBP",
	DefaultLocale:    "en-GB",
}

var freetrade = &Descriptor{
	ID: "freetrade",
	Detect: func(s string) bool {
		return strings.Contains(s, "Stamp Duty (GBP)") ||
			strings.Contains(s, "Freetrade") ||
			strings.Contains(s, "Date,Stock,Action,Quantity,Price")
	},
	Columns: map[models.StandardField][]string{
		models.FieldDate:     {"Date"},
		models.FieldTicker:   {"Stock", "Symbol"},
		models.FieldAction:   {"Action", "Type"},
		models.FieldQuantity: {"Quantity"},
		models.FieldPrice:    {"Price", "Price (native)"},
		models.FieldCurrency: {"Currency (native)"},
		models.FieldFees:     {"Fee (GBP)"},
	},
	NonTradeKeywords: []string{"DIVIDEND", "INTEREST", "CASH TOP UP", "CASH WITHDRAWAL", "STOCK SPLIT", "FREESHARE"},
	DefaultCurrency:  "GBP",
	DefaultLocale:    "en-GB",
}

var ibkrFlex = &Descriptor{
	ID:     "ibkr_flex",
	Detect: func(s string) bool { return strings.Contains(s, "T.Price") || strings.Contains(s, "IBKR") },
	Columns: map[models.StandardField][]string{
		models.FieldDate:     {"Date", "Trade Date", "Transaction Date"},
		models.FieldTicker:   {"Symbol", "Ticker", "Security"},
		models.FieldQuantity: {"Quantity", "Qty", "Shares"},
		models.FieldPrice:    {"T.Price", "Price", "Trade Price"},
		models.FieldCurrency: {"Currency"},
		models.FieldFees:     {"Comm/Fee", "Commission"},
	},
	DefaultCurrency: "USD",
	DefaultLocale:   "en-US",
	Resolve:         resolveIBKRFlex,
}

var saxo = &Descriptor{
	ID: "saxo",
	Detect: func(s string) bool {
		return strings.Contains(s, "Saxo") || hasAll(s, "Trade Event", "Booked Amount")
	},
	Columns: map[models.StandardField][]string{
		models.FieldDate:     {"Trade Date", "Date", "Transaction Date"},
		models.FieldTicker:   {"Instrument", "Symbol", "Ticker"},
		models.FieldAction:   {"Action", "Type"},
		models.FieldQuantity: {"Quantity", "Qty", "Shares"},
		models.FieldPrice:    {"Price", "Trade Price", "Execution Price"},
		models.FieldCurrency: {"Currency"},
		models.FieldFees:     {"Commission"},
	},
	NonTradeKeywords: []string{"DIVIDEND", "INTEREST", "TRANSFER", "DEPOSIT", "WITHDRAWAL"},
	DefaultCurrency:  "GBP",
	DefaultLocale:    "en-GB",
}

var ig = &Descriptor{
	ID:     "ig",
	Detect: func(s string) bool { return hasAll(s, "Direction", "Market") },
	Columns: map[models.StandardField][]string{
		models.FieldDate:     {"Date"},
		models.FieldTicker:   {"Market", "Instrument"},
		models.FieldAction:   {"Direction", "Activity"},
		models.FieldQuantity: {"Quantity", "Size"},
		models.FieldPrice:    {"Price"},
		models.FieldCurrency: {"Currency"},
		models.FieldFees:     {"Commission", "Charges"},
	},
	NonTradeKeywords: []string{"DIVIDEND", "INTEREST", "TRANSFER", "DEPOSIT", "WITHDRAWAL"},
	DefaultCurrency:  "GBP",
	DefaultLocale:    "en-GB",
}

var degiro = &Descriptor{
	ID:              "degiro",
	Detect:          func(s string) bool { return hasAll(s, "Data Valor", "ISIN") },
	DefaultCurrency: "EUR",
	DefaultLocale:   "pt-PT",
	Resolve:         resolveDegiro,
}

var schwab = &Descriptor{
	ID:     "schwab",
	Detect: func(s string) bool { return strings.Contains(s, "Fees & Comm") },
	Columns: map[models.StandardField][]string{
		models.FieldDate:     {"Date"},
		models.FieldTicker:   {"Symbol"},
		models.FieldAction:   {"Action"},
		models.FieldQuantity: {"Quantity"},
		models.FieldPrice:    {"Price"},
		models.FieldFees:     {"Fees & Comm"},
	},
	NonTradeKeywords: []string{"DIVIDEND", "INTEREST", "TRANSFER", "JOURNAL", "MONEYLINK", "REINVEST"},
	DefaultCurrency:  "USD",
	DefaultLocale:    "en-US",
}

var fidelity = &Descriptor{
	ID:     "fidelity",
	Detect: func(s string) bool { return strings.Contains(s, "Run Date") },
	Columns: map[models.StandardField][]string{
		models.FieldDate:     {"Run Date", "Settlement Date"},
		models.FieldTicker:   {"Symbol"},
		models.FieldAction:   {"Action"},
		models.FieldQuantity: {"Quantity"},
		models.FieldPrice:    {"Price ($)", "Price"},
		models.FieldFees:     {"Commission ($)", "Fees ($)"},
	},
	NonTradeKeywords: []string{"DIVIDEND", "INTEREST", "TRANSFER", "CONTRIBUTION", "DISTRIBUTION"},
	DefaultCurrency:  "USD",
	DefaultLocale:    "en-US",
}

var vanguard = &Descriptor{
	ID:     "vanguard",
	Detect: func(s string) bool { return hasAll(s, "Share Price", "Investment Name") },
	Columns: map[models.StandardField][]string{
		models.FieldDate:     {"Trade Date", "Settlement Date"},
		models.FieldTicker:   {"Symbol"},
		models.FieldAction:   {"Transaction Type"},
		models.FieldQuantity: {"Shares"},
		models.FieldPrice:    {"Share Price"},
		models.FieldFees:     {"Commission Fees", "Commission"},
	},
	NonTradeKeywords: []string{"DIVIDEND", "SWEEP", "TRANSFER", "CONTRIBUTION", "CAPITAL GAIN"},
	DefaultCurrency:  "USD",
	DefaultLocale:    "en-US",
}

var robinhood = &Descriptor{
	ID:     "robinhood",
	Detect: func(s string) bool { return strings.Contains(s, "Trans Code") },
	Columns: map[models.StandardField][]string{
		models.FieldDate:     {"Activity Date", "Process Date", "Settle Date"},
		models.FieldTicker:   {"Instrument", "Symbol"},
		models.FieldAction:   {"Trans Code"},
		models.FieldQuantity: {"Quantity"},
		models.FieldPrice:    {"Price"},
	},
	NonTradeKeywords: []string{"CDIV", "INT", "ACH", "DTAX", "GOLD"},
	DefaultCurrency:  "USD",
	DefaultLocale:    "en-US",
}

var webull = &Descriptor{
	ID:     "webull",
	Detect: func(s string) bool { return strings.Contains(s, "Time-in-Force") },
	Columns: map[models.StandardField][]string{
		models.FieldDate:     {"Filled Time", "Placed Time"},
		models.FieldTicker:   {"Symbol"},
		models.FieldAction:   {"Side"},
		models.FieldQuantity: {"Filled", "Total Qty"},
		models.FieldPrice:    {"Avg Price", "Price"},
	},
	DefaultCurrency: "USD",
	DefaultLocale:   "en-US",
}

var xtb = &Descriptor{
	ID:     "xtb",
	Detect: func(s string) bool { return hasAll(s, "Position", "Open price") },
	Columns: map[models.StandardField][]string{
		models.FieldDate:     {"Open time", "Time"},
		models.FieldTicker:   {"Symbol"},
		models.FieldAction:   {"Type"},
		models.FieldQuantity: {"Volume", "Lots"},
		models.FieldPrice:    {"Open price"},
		models.FieldFees:     {"Commission"},
	},
	NonTradeKeywords: []string{"DEPOSIT", "WITHDRAWAL", "INTEREST", "DIVIDEND", "FREE FUNDS"},
	DefaultCurrency:  "EUR",
	DefaultLocale:    "de-DE",
}

var coinbase = &Descriptor{
	ID:     "coinbase",
	Detect: func(s string) bool { return strings.Contains(s, "Quantity Transacted") },
	Columns: map[models.StandardField][]string{
		models.FieldDate:     {"Timestamp"},
		models.FieldTicker:   {"Asset"},
		models.FieldAction:   {"Transaction Type"},
		models.FieldQuantity: {"Quantity Transacted"},
		models.FieldPrice:    {"USD Spot Price at Transaction", "Spot Price at Transaction"},
		models.FieldCurrency: {"Spot Price Currency"},
		models.FieldFees:     {"Fees", "Fees and/or Spread"},
	},
	NonTradeKeywords: []string{"SEND", "RECEIVE", "REWARD", "STAKING", "DEPOSIT", "WITHDRAWAL", "LEARN"},
	DefaultCurrency:  "USD",
	DefaultLocale:    "en-US",
}

var binance = &Descriptor{
	ID:              "binance",
	Detect:          func(s string) bool { return strings.Contains(s, "Date(UTC)") },
	DefaultCurrency: "USDT",
	DefaultLocale:   "en-US",
	Resolve:         resolveBinance,
}

var kraken = &Descriptor{
	ID:              "kraken",
	Detect:          func(s string) bool { return strings.Contains(s, "ordertxid") },
	DefaultCurrency: "USD",
	DefaultLocale:   "en-US",
	Resolve:         resolveKraken,
}

var turbotax = &Descriptor{
	ID: "turbotax",
	Detect: func(s string) bool {
		return strings.Contains(s, "TurboTax") || strings.Contains(s, "Intuit") ||
			hasAll(s, "Currency Name", "Cost Basis")
	},
	DefaultCurrency: "USD",
	DefaultLocale:   "en-US",
	Resolve:         resolveTurbotax,
}

var koinly = &Descriptor{
	ID: "koinly",
	Detect: func(s string) bool {
		return strings.Contains(s, "Koinly Date") ||
			hasAll(s, "Pair", "Sent Amount", "Received Amount")
	},
	DefaultCurrency: "USD",
	DefaultLocale:   "en-US",
	Resolve:         resolveKoinly,
}

// --- broker-specific resolvers ---

// resolveKoinly keeps only rows labelled as trades and hands them to the
// exchange-direction resolver; deposits, withdrawals and transfers are
// expected content, not anomalies.
func resolveKoinly(d *Descriptor, row models.Row, loc normalize.Locale) ([]models.NormalizedTrade, bool, error) {
	label := strings.ToUpper(strings.TrimSpace(firstNonEmpty(row["Label"], row["label"])))
	if label == "" || !strings.Contains(label, "TRADE") {
		return nil, true, nil
	}
	return resolveExchange(d, row, loc, exchangeColumns{
		Date:             "Koinly Date",
		DateFallbacks:    []string{"Date"},
		SentAmount:       "Sent Amount",
		SentCurrency:     "Sent Currency",
		ReceivedAmount:   "Received Amount",
		ReceivedCurrency: "Received Currency",
		Pair:             "Pair",
		Price:            "Price",
		FeeAmount:        "Fee Amount",
	})
}

// resolveIBKRFlex handles Flex exports that omit an action column: direction
// is inferred from the quantity sign, then from the proceeds sign (negative
// proceeds is money out, a buy).
func resolveIBKRFlex(d *Descriptor, row models.Row, loc normalize.Locale) ([]models.NormalizedTrade, bool, error) {
	action := strings.ToUpper(firstNonEmpty(row["Action"], row["Type"]))
	qty := tolerantNumber(d.cell(row, models.FieldQuantity), loc)
	proceeds := tolerantNumber(row["Proceeds"], loc)

	if action == "" {
		switch {
		case qty.IsNegative():
			action = "SELL"
		case proceeds.IsNegative():
			action = "BUY"
		case proceeds.IsPositive() && qty.IsPositive():
			action = "SELL"
		default:
			action = "BUY"
		}
	}
	for _, kw := range []string{"DIVIDEND", "INTEREST", "TRANSFER"} {
		if strings.Contains(action, kw) {
			return nil, true, nil
		}
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
	price, err := numberOrZero(d.cell(row, models.FieldPrice), loc)
	if err != nil {
		return nil, false, err
	}

	tradeType := models.TradeBuy
	if strings.Contains(action, "SELL") {
		tradeType = models.TradeSell
	}
	return []models.NormalizedTrade{{
		Date:     date,
		Ticker:   normalize.ToTicker(rawTicker),
		Type:     tradeType,
		Qty:      qty.Abs(),
		Price:    price,
		Currency: d.cellOrInferred(row),
		Fees:     tolerantNumber(d.cell(row, models.FieldFees), loc).Abs(),
		Source:   d.ID,
		RawHash:  normalize.HashRow(row),
	}}, false, nil
}

var degiroTradeRe = regexp.MustCompile(`(?i)\s*(compra|venda)\s+([\d\s.,]+)\s+(.+?)\s*@([\d,.]+)`)

// resolveDegiro classifies the free-text Descrição column the way the
// account statement encodes trades: "Compra 10 APPLE INC@150,3" /
// "Venda 5 ...". Everything the grammar does not match (dividends, fees,
// deposits, FX sweeps) is expected statement noise and skips silently.
func resolveDegiro(d *Descriptor, row models.Row, loc normalize.Locale) ([]models.NormalizedTrade, bool, error) {
	desc := strings.ReplaceAll(firstNonEmpty(row["Descrição"], row["Description"]), " ", " ")
	m := degiroTradeRe.FindStringSubmatch(desc)
	if m == nil {
		return nil, true, nil
	}

	tradeType := models.TradeBuy
	if strings.EqualFold(m[1], "venda") {
		tradeType = models.TradeSell
	}

	qty, err := normalize.ToNumber(m[2], loc)
	if err != nil {
		return nil, false, err
	}
	price, err := normalize.ToNumber(m[4], loc)
	if err != nil {
		return nil, false, err
	}

	rawDate := firstNonEmpty(row["Data"], row["Date"])
	date, err := normalize.ToISO(rawDate, loc)
	if err != nil {
		return nil, false, err
	}

	ticker := strings.TrimSpace(row["ISIN"])
	if ticker == "" {
		ticker = normalize.ToTicker(m[3])
	}
	currency := firstNonEmpty(strings.TrimSpace(row["Mudança"]), d.DefaultCurrency)

	return []models.NormalizedTrade{{
		Date:     date,
		Ticker:   ticker,
		Type:     tradeType,
		Qty:      qty,
		Price:    price,
		Currency: currency,
		Fees:     tolerantNumber(row["Taxa"], loc).Abs(),
		Source:   d.ID,
		RawHash:  normalize.HashRow(row),
	}}, false, nil
}

var leadingAmountRe = regexp.MustCompile(`^[\d.,]+`)

// binanceQuoteAssets are trimmed off unseparated pair strings ("BTCUSDT")
// to recover the base asset.
var binanceQuoteAssets = []string{"USDT", "USDC", "BUSD", "TUSD", "FDUSD", "BTC", "ETH", "BNB", "EUR", "USD", "GBP", "TRY"}

// resolveBinance handles spot-trade exports whose Executed and Fee cells
// carry the asset glued to the amount ("0.5BTC").
func resolveBinance(d *Descriptor, row models.Row, loc normalize.Locale) ([]models.NormalizedTrade, bool, error) {
	side := strings.ToUpper(strings.TrimSpace(firstNonEmpty(row["Side"], row["Type"])))
	if side == "" {
		return nil, true, nil
	}
	tradeType := models.TradeBuy
	if strings.Contains(side, "SELL") {
		tradeType = models.TradeSell
	}

	pair := strings.TrimSpace(firstNonEmpty(row["Pair"], row["Market"]))
	base, quote := splitPair(pair)
	if quote == "" {
		base, quote = trimQuoteSuffix(base, binanceQuoteAssets)
	}
	if base == "" {
		return nil, true, nil
	}

	qty, err := normalize.ToNumber(leadingAmountRe.FindString(row["Executed"]), loc)
	if err != nil {
		return nil, false, err
	}
	price, err := normalize.ToNumber(row["Price"], loc)
	if err != nil {
		return nil, false, err
	}
	date, err := normalize.ToISO(row["Date(UTC)"], loc)
	if err != nil {
		return nil, false, err
	}

	return []models.NormalizedTrade{{
		Date:     date,
		Ticker:   normalize.ToTicker(base),
		Type:     tradeType,
		Qty:      qty,
		Price:    price,
		Currency: firstNonEmpty(quote, d.DefaultCurrency),
		Fees:     tolerantNumber(leadingAmountRe.FindString(row["Fee"]), loc).Abs(),
		Source:   d.ID,
		RawHash:  normalize.HashRow(row),
	}}, false, nil
}

// krakenQuoteAssets covers the quote side of Kraken's glued pair strings,
// including the exchange's classic Z-prefixed fiat and X-prefixed crypto
// codes. Longer codes come before their plain equivalents.
var krakenQuoteAssets = []string{
	"ZUSD", "ZEUR", "ZGBP", "ZJPY", "ZCAD", "ZAUD",
	"USDT", "USDC", "XXBT", "XETH", "XXDG", "DAI",
	"USD", "EUR", "GBP", "JPY", "CAD", "AUD",
}

// krakenAsset strips Kraken's one-letter asset-class prefix from classic
// four-letter codes (XXBT, ZUSD) and maps the exchange's legacy symbols onto
// the common ones.
func krakenAsset(code string) string {
	if len(code) == 4 && (code[0] == 'X' || code[0] == 'Z') {
		code = code[1:]
	}
	switch code {
	case "XBT":
		return "BTC"
	case "XDG":
		return "DOGE"
	}
	return code
}

// resolveKraken handles trade exports whose pair cell glues Kraken's classic
// asset codes together ("XXBTZUSD"). Ledger entries that are not buys or
// sells (deposits, withdrawals, staking) are expected content and skip.
func resolveKraken(d *Descriptor, row models.Row, loc normalize.Locale) ([]models.NormalizedTrade, bool, error) {
	action := strings.ToUpper(strings.TrimSpace(row["type"]))
	if !strings.Contains(action, "BUY") && !strings.Contains(action, "SELL") {
		return nil, true, nil
	}
	tradeType := models.TradeBuy
	if strings.Contains(action, "SELL") {
		tradeType = models.TradeSell
	}

	pair := strings.TrimSpace(row["pair"])
	base, quote := splitPair(pair)
	if quote == "" {
		base, quote = trimQuoteSuffix(base, krakenQuoteAssets)
	}
	if base == "" {
		return nil, true, nil
	}

	qty, err := normalize.ToNumber(row["vol"], loc)
	if err != nil {
		return nil, false, err
	}
	price, err := normalize.ToNumber(row["price"], loc)
	if err != nil {
		return nil, false, err
	}
	date, err := normalize.ToISO(row["time"], loc)
	if err != nil {
		return nil, false, err
	}

	return []models.NormalizedTrade{{
		Date:     date,
		Ticker:   normalize.ToTicker(krakenAsset(base)),
		Type:     tradeType,
		Qty:      qty,
		Price:    price,
		Currency: firstNonEmpty(krakenAsset(quote), d.DefaultCurrency),
		Fees:     tolerantNumber(row["fee"], loc).Abs(),
		Source:   d.ID,
		RawHash:  normalize.HashRow(row),
	}}, false, nil
}

// currencyNameTickers maps the spelled-out asset names of the TurboTax
// Universal Gains format onto ticker symbols.
var currencyNameTickers = map[string]string{
	"BITCOIN":          "BTC",
	"ETHEREUM":         "ETH",
	"SOLANA":           "SOL",
	"CARDANO":          "ADA",
	"POLKADOT":         "DOT",
	"POLYGON":          "MATIC",
	"AVALANCHE":        "AVAX",
	"CHAINLINK":        "LINK",
	"UNISWAP":          "UNI",
	"COSMOS":           "ATOM",
	"ALGORAND":         "ALGO",
	"RIPPLE":           "XRP",
	"DOGECOIN":         "DOGE",
	"LITECOIN":         "LTC",
	"BITCOIN CASH":     "BCH",
	"ETHEREUM CLASSIC": "ETC",
	"STELLAR":          "XLM",
	"TRON":             "TRX",
	"EOS":              "EOS",
}

// resolveTurbotax expands a Universal Gains row (Currency Name, Purchase
// Date, Cost Basis, Date Sold, Proceeds) into its buy and sell legs. The
// format carries totals only, so a whole-unit quantity is reconstructed from
// the average of the two totals and each leg's unit price derived from it.
func resolveTurbotax(d *Descriptor, row models.Row, loc normalize.Locale) ([]models.NormalizedTrade, bool, error) {
	name := strings.TrimSpace(firstNonEmpty(row["Currency Name"], row["currency name"]))
	if name == "" {
		return nil, true, nil
	}

	purchaseDate := strings.TrimSpace(firstNonEmpty(row["Purchase Date"], row["purchase date"]))
	dateSold := strings.TrimSpace(firstNonEmpty(row["Date Sold"], row["date sold"]))
	costBasis := tolerantNumber(firstNonEmpty(row["Cost Basis"], row["cost basis"]), loc)
	proceeds := tolerantNumber(firstNonEmpty(row["Proceeds"], row["proceeds"]), loc)
	if purchaseDate == "" || dateSold == "" || !costBasis.IsPositive() || !proceeds.IsPositive() {
		return nil, true, nil
	}

	buyDate, err := normalize.ToISO(purchaseDate, loc)
	if err != nil {
		return nil, false, err
	}
	sellDate, err := normalize.ToISO(dateSold, loc)
	if err != nil {
		return nil, false, err
	}

	ticker := currencyNameTickers[strings.ToUpper(name)]
	if ticker == "" {
		ticker = normalize.ToTicker(name)
	}

	one := decimal.NewFromInt(1)
	avg := costBasis.Add(proceeds).Div(decimal.NewFromInt(2))
	qty := costBasis.Div(avg).Round(0)
	if qty.LessThan(one) {
		qty = one
	}

	currency := normalize.InferCurrency(row, d.DefaultCurrency)
	return []models.NormalizedTrade{
		{
			Date:     buyDate,
			Ticker:   ticker,
			Type:     models.TradeBuy,
			Qty:      qty,
			Price:    costBasis.Div(qty),
			Currency: currency,
			Fees:     decimal.Zero,
			Source:   d.ID,
			RawHash:  normalize.HashRow(rowWithLeg(row, "BUY")),
		},
		{
			Date:     sellDate,
			Ticker:   ticker,
			Type:     models.TradeSell,
			Qty:      qty,
			Price:    proceeds.Div(qty),
			Currency: currency,
			Fees:     decimal.Zero,
			Source:   d.ID,
			RawHash:  normalize.HashRow(rowWithLeg(row, "SELL")),
		},
	}, false, nil
}

// rowWithLeg fingerprints one leg of a multi-leg row: the two legs share
// every source cell, so the leg marker keeps their hashes distinct.
func rowWithLeg(row models.Row, leg string) models.Row {
	tagged := make(models.Row, len(row)+1)
	for k, v := range row {
		tagged[k] = v
	}
	tagged["_leg"] = leg
	return tagged
}

// cellOrInferred resolves a currency through the descriptor's currency
// columns, then the shared alias scan, then the broker default.
func (d *Descriptor) cellOrInferred(row models.Row) string {
	if v := d.cell(row, models.FieldCurrency); v != "" {
		return v
	}
	return normalize.InferCurrency(row, d.DefaultCurrency)
}
