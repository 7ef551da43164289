package models

import "github.com/shopspring/decimal"

// RawFile is the caller-supplied input to one import operation: the uploaded
// file's name, its declared MIME type, and its full contents. It lives only
// for the duration of a single import call.
type RawFile struct {
	Name string
	MIME string
	Data []byte
}

// Row is one data line of a source file, keyed by the header strings exactly
// as they appear in the file. Headers are treated as unique keys within a row.
type Row map[string]string

// TradeType is the canonical trade direction.
type TradeType string

const (
	TradeBuy  TradeType = "BUY"
	TradeSell TradeType = "SELL"
)

// NormalizedTrade is the canonical output unit every source format converges
// to. Invariant: Qty > 0 and Price > 0 for any trade that leaves the pipeline.
type NormalizedTrade struct {
	Date     string          `json:"date"` // ISO-8601 calendar date
	Ticker   string          `json:"ticker"`
	Type     TradeType       `json:"type"`
	Qty      decimal.Decimal `json:"qty"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
	Fees     decimal.Decimal `json:"fees"`
	Source   string          `json:"source"`  // adapter id, or "generic"
	RawHash  string          `json:"rawHash"` // fingerprint of the originating row
}

// ImportMeta describes one parse pass.
type ImportMeta struct {
	Rows       int    `json:"rows"`
	Invalid    int    `json:"invalid"`
	DurationMs int64  `json:"durationMs"`
	Version    string `json:"version"`
}

// ParseResult is the pipeline's success envelope.
type ParseResult struct {
	Broker   string            `json:"broker"`
	Trades   []NormalizedTrade `json:"trades"`
	Warnings []string          `json:"warnings"`
	Meta     ImportMeta        `json:"meta"`
}

// StandardField is one of the seven canonical trade attributes a source
// format must be mapped onto.
type StandardField string

const (
	FieldDate     StandardField = "date"
	FieldTicker   StandardField = "ticker"
	FieldAction   StandardField = "action"
	FieldQuantity StandardField = "quantity"
	FieldPrice    StandardField = "price"
	FieldCurrency StandardField = "currency"
	FieldFees     StandardField = "fees"
)

// RequiredFields are the fields a UniversalMapping must resolve before the
// generic parse may run. Currency and fees have documented fallbacks.
var RequiredFields = []StandardField{FieldDate, FieldTicker, FieldAction, FieldQuantity, FieldPrice}

// UniversalMapping maps standard fields to the source file's actual column
// headers. Partial by design; see RequiredFields.
type UniversalMapping map[StandardField]string

// Complete reports whether every required field is mapped to a column.
func (m UniversalMapping) Complete() bool {
	for _, f := range RequiredFields {
		if m[f] == "" {
			return false
		}
	}
	return true
}

// RequiresMappingResult is the pipeline's "ambiguous" envelope: everything the
// caller's UI needs to present a manual column-mapping form, plus the decoded
// text so the confirmed second pass can run without re-reading the file.
type RequiresMappingResult struct {
	Headers    []string         `json:"headers"`
	SampleRows []Row            `json:"sampleRows"`
	Proposed   UniversalMapping `json:"proposed"`
	Confidence float64          `json:"confidence"`
	RawText    string           `json:"-"`
}

// Import outcome discriminator values.
const (
	StatusParsed          = "parsed"
	StatusRequiresMapping = "requires_mapping"
)

// ImportOutcome is the tagged union the dispatcher returns: exactly one of
// Result or Mapping is set, discriminated by Status.
type ImportOutcome struct {
	Status  string                 `json:"status"`
	Result  *ParseResult           `json:"result,omitempty"`
	Mapping *RequiresMappingResult `json:"mapping,omitempty"`
}
