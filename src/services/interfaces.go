package services

import (
	"context"
	"errors"

	"github.com/username/tradefolio/backend/src/models"
)

var (
	// ErrUnsupportedFile wraps file-level decode failures (bad MIME type).
	ErrUnsupportedFile = errors.New("unsupported file")

	// ErrSessionNotFound means the mapping-confirmation session expired or
	// never existed.
	ErrSessionNotFound = errors.New("import session not found or expired")
)

// ImportRequest carries one import call's inputs.
type ImportRequest struct {
	File models.RawFile
	// Locale disambiguates date and number formats ("en-US", "en-GB");
	// empty falls back to the configured default.
	Locale string
	// ForceUniversal skips broker detection and runs the universal
	// pipeline directly ("smart import").
	ForceUniversal bool
}

// ImportResponse is the outcome plus, for ambiguous files, the session ID
// the caller resubmits with a confirmed mapping.
type ImportResponse struct {
	models.ImportOutcome
	SessionID string `json:"sessionId,omitempty"`
}

// ImportService is the dispatcher over the broker adapter registry and the
// universal pipeline.
type ImportService interface {
	ProcessImport(ctx context.Context, req ImportRequest) (*ImportResponse, error)
	ConfirmImport(sessionID string, mapping models.UniversalMapping, locale string) (*models.ParseResult, error)
}
