package services

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/tradefolio/backend/src/logger"
	"github.com/username/tradefolio/backend/src/models"
	"github.com/username/tradefolio/backend/src/universal"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func newTestService() ImportService {
	return NewImportService(&universal.Pipeline{}, cache.New(time.Minute, time.Minute), "en-US")
}

func csvFile(name, content string) models.RawFile {
	return models.RawFile{Name: name, MIME: "text/csv", Data: []byte(content)}
}

func TestProcessImport_DispatchesToBrokerAdapter(t *testing.T) {
	svc := newTestService()
	file := csvFile("t212.csv",
		"Action,Time,Ticker,No. of shares,Price / share,Currency (Price / share)\n"+
			"Market buy,2024-01-01,AAPL,10,150.00,USD\n")

	resp, err := svc.ProcessImport(context.Background(), ImportRequest{File: file})
	require.NoError(t, err)
	require.Equal(t, models.StatusParsed, resp.Status)
	assert.Equal(t, "trading212", resp.Result.Broker)
	assert.Empty(t, resp.SessionID)
	require.Len(t, resp.Result.Trades, 1)
	assert.Equal(t, "trading212", resp.Result.Trades[0].Source)
}

func TestProcessImport_FallsBackToUniversal(t *testing.T) {
	svc := newTestService()
	file := csvFile("generic.csv",
		"Date,Symbol,Action,Quantity,Price\n2024-01-01,AAPL,BUY,10,150.00\n")

	resp, err := svc.ProcessImport(context.Background(), ImportRequest{File: file})
	require.NoError(t, err)
	require.Equal(t, models.StatusParsed, resp.Status)
	assert.Equal(t, universal.GenericSource, resp.Result.Broker)
}

func TestProcessImport_ForceUniversalSkipsAdapters(t *testing.T) {
	svc := newTestService()
	// A file a broker adapter would claim, routed through the universal
	// pipeline instead.
	file := csvFile("t212.csv",
		"Action,Time,Ticker,No. of shares,Price / share\n"+
			"Market buy,2024-01-01,AAPL,10,150.00\n")

	resp, err := svc.ProcessImport(context.Background(), ImportRequest{File: file, ForceUniversal: true})
	require.NoError(t, err)
	// "No. of shares" and "Price / share" are in the synonym dictionary, so
	// the universal path still parses it, just with generic provenance.
	require.Equal(t, models.StatusParsed, resp.Status)
	assert.Equal(t, universal.GenericSource, resp.Result.Broker)
}

func TestProcessImport_UnsupportedFile(t *testing.T) {
	svc := newTestService()
	file := models.RawFile{Name: "report.pdf", MIME: "application/pdf", Data: []byte("%PDF-1.4")}

	_, err := svc.ProcessImport(context.Background(), ImportRequest{File: file})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedFile)
}

func TestProcessImport_ConfirmRoundTrip(t *testing.T) {
	svc := newTestService()
	file := csvFile("mystery.csv",
		"When,What,How,Amount,Cost\n2024-01-01,AAPL,SELL,3,100\n")

	resp, err := svc.ProcessImport(context.Background(), ImportRequest{File: file})
	require.NoError(t, err)
	require.Equal(t, models.StatusRequiresMapping, resp.Status)
	require.NotNil(t, resp.Mapping)
	require.NotEmpty(t, resp.SessionID)

	mapping := models.UniversalMapping{
		models.FieldDate:     "When",
		models.FieldTicker:   "What",
		models.FieldAction:   "How",
		models.FieldQuantity: "Amount",
		models.FieldPrice:    "Cost",
	}
	result, err := svc.ConfirmImport(resp.SessionID, mapping, "")
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)
	assert.Equal(t, models.TradeSell, result.Trades[0].Type)

	// The session is consumed on success.
	_, err = svc.ConfirmImport(resp.SessionID, mapping, "")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestConfirmImport_IncompleteMappingKeepsSession(t *testing.T) {
	svc := newTestService()
	file := csvFile("mystery.csv",
		"When,What,How,Amount,Cost\n2024-01-01,AAPL,SELL,3,100\n")

	resp, err := svc.ProcessImport(context.Background(), ImportRequest{File: file})
	require.NoError(t, err)
	require.Equal(t, models.StatusRequiresMapping, resp.Status)

	incomplete := models.UniversalMapping{models.FieldDate: "When"}
	_, err = svc.ConfirmImport(resp.SessionID, incomplete, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, universal.ErrMissingRequiredColumn)
	assert.False(t, errors.Is(err, ErrSessionNotFound))

	// The caller can fix the mapping and retry against the same session.
	full := models.UniversalMapping{
		models.FieldDate:     "When",
		models.FieldTicker:   "What",
		models.FieldAction:   "How",
		models.FieldQuantity: "Amount",
		models.FieldPrice:    "Cost",
	}
	result, err := svc.ConfirmImport(resp.SessionID, full, "")
	require.NoError(t, err)
	assert.Len(t, result.Trades, 1)
}

func TestConfirmImport_UnknownSession(t *testing.T) {
	svc := newTestService()
	_, err := svc.ConfirmImport("no-such-session", models.UniversalMapping{}, "")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestProcessImport_LocalePropagates(t *testing.T) {
	svc := newTestService()
	file := csvFile("generic.csv",
		"Date,Symbol,Action,Quantity,Price\n03/05/2024,AAPL,BUY,10,150.00\n")

	resp, err := svc.ProcessImport(context.Background(), ImportRequest{File: file, Locale: "en-GB"})
	require.NoError(t, err)
	require.Equal(t, models.StatusParsed, resp.Status)
	require.Len(t, resp.Result.Trades, 1)
	assert.Equal(t, "2024-05-03", resp.Result.Trades[0].Date)
}
