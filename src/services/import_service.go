package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/username/tradefolio/backend/src/adapters"
	"github.com/username/tradefolio/backend/src/decoder"
	"github.com/username/tradefolio/backend/src/logger"
	"github.com/username/tradefolio/backend/src/models"
	"github.com/username/tradefolio/backend/src/normalize"
	"github.com/username/tradefolio/backend/src/universal"
)

// detectSampleBytes bounds how much decoded text broker detectors see.
const detectSampleBytes = 2048

// pendingSession is what a RequiresMapping round-trip needs for its second
// pass: the decoded text (so the file is never re-read) and the locale.
type pendingSession struct {
	rawText string
	locale  normalize.Locale
}

type importServiceImpl struct {
	pipeline      *universal.Pipeline
	sessions      *cache.Cache
	defaultLocale normalize.Locale
}

// NewImportService builds the dispatcher. Pending mapping-confirmation
// sessions live in the given cache until confirmed or expired; the parse
// pipeline itself stays stateless and reentrant.
func NewImportService(pipeline *universal.Pipeline, sessions *cache.Cache, defaultLocale string) ImportService {
	return &importServiceImpl{
		pipeline:      pipeline,
		sessions:      sessions,
		defaultLocale: normalize.Locale(defaultLocale).Or(normalize.DefaultLocale),
	}
}

func (s *importServiceImpl) ProcessImport(ctx context.Context, req ImportRequest) (*ImportResponse, error) {
	start := time.Now()
	loc := normalize.Locale(req.Locale).Or(s.defaultLocale)

	text, err := decoder.Decode(req.File)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFile, err)
	}

	if !req.ForceUniversal {
		if d := adapters.Match(sampleOf(text)); d != nil {
			result := adapters.Parse(d, text, loc)
			logger.L.Info("Import parsed by broker adapter",
				"file", req.File.Name, "broker", d.ID,
				"trades", len(result.Trades), "warnings", len(result.Warnings),
				"durationMs", time.Since(start).Milliseconds())
			return &ImportResponse{ImportOutcome: models.ImportOutcome{Status: models.StatusParsed, Result: result}}, nil
		}
	}

	outcome := s.pipeline.Run(ctx, text, loc)
	resp := &ImportResponse{ImportOutcome: *outcome}
	if outcome.Status == models.StatusRequiresMapping {
		sessionID := uuid.NewString()
		s.sessions.Set(sessionID, pendingSession{rawText: text, locale: loc}, cache.DefaultExpiration)
		resp.SessionID = sessionID
		logger.L.Info("Import requires mapping confirmation",
			"file", req.File.Name, "sessionID", sessionID,
			"confidence", outcome.Mapping.Confidence)
		return resp, nil
	}

	logger.L.Info("Import parsed by universal pipeline",
		"file", req.File.Name,
		"trades", len(outcome.Result.Trades), "warnings", len(outcome.Result.Warnings),
		"durationMs", time.Since(start).Milliseconds())
	return resp, nil
}

func (s *importServiceImpl) ConfirmImport(sessionID string, mapping models.UniversalMapping, locale string) (*models.ParseResult, error) {
	v, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	session := v.(pendingSession)

	loc := normalize.Locale(locale).Or(session.locale)
	result, err := universal.ParseWithMapping(session.rawText, mapping, loc)
	if err != nil {
		// Keep the session so the caller can fix the mapping and retry.
		return nil, err
	}
	s.sessions.Delete(sessionID)
	logger.L.Info("Import parsed with confirmed mapping",
		"sessionID", sessionID, "trades", len(result.Trades), "warnings", len(result.Warnings))
	return result, nil
}

// sampleOf returns the text detectors run over: enough for headers and a
// couple of rows, never the whole file.
func sampleOf(text string) string {
	if len(text) <= detectSampleBytes {
		return text
	}
	sample := text[:detectSampleBytes]
	// cut at a line boundary to avoid matching on a truncated header token
	if i := strings.LastIndexByte(sample, '\n'); i > 0 {
		sample = sample[:i]
	}
	return sample
}
