// Package llm provides the optional LLM-assisted column-mapping escalation.
// It is gated behind a feature flag and never required for a correct import:
// every failure path degrades to the heuristic mapping.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/username/tradefolio/backend/src/models"
)

const suggestPrompt = `You map spreadsheet columns of a brokerage trade export onto standard fields.
Standard fields: date, ticker, action, quantity, price, currency, fees.
Given the file's headers and a few sample rows, respond with JSON of the form
{"mapping": {"date": "<header>", "ticker": "<header>", ...}} using only headers
that appear in the file. Omit fields you cannot map. No prose.

Headers: %s
Sample rows: %s`

// GeminiSuggester implements universal.MappingSuggester with the Gemini API.
type GeminiSuggester struct {
	client  *genai.Client
	model   string
	limiter *rate.Limiter
}

// NewGeminiSuggester wraps an initialized genai client. The limiter keeps a
// burst of low-confidence imports from hammering the remote service.
func NewGeminiSuggester(client *genai.Client, model string) *GeminiSuggester {
	return &GeminiSuggester{
		client:  client,
		model:   model,
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 3),
	}
}

// SuggestMapping asks the model for a column mapping. The caller bounds the
// context; timeouts and malformed responses are ordinary errors the pipeline
// absorbs by falling back to its heuristic result.
func (s *GeminiSuggester) SuggestMapping(ctx context.Context, headers []string, sample []models.Row) (models.UniversalMapping, error) {
	if !s.limiter.Allow() {
		return nil, fmt.Errorf("mapping suggestion rate limit exceeded")
	}

	headerJSON, err := json.Marshal(headers)
	if err != nil {
		return nil, fmt.Errorf("encoding headers: %w", err)
	}
	sampleJSON, err := json.Marshal(sample)
	if err != nil {
		return nil, fmt.Errorf("encoding sample rows: %w", err)
	}

	prompt := fmt.Sprintf(suggestPrompt, headerJSON, sampleJSON)
	resp, err := s.client.Models.GenerateContent(ctx, s.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return nil, fmt.Errorf("mapping suggestion call: %w", err)
	}

	var out struct {
		Mapping map[models.StandardField]string `json:"mapping"`
	}
	if err := json.Unmarshal([]byte(resp.Text()), &out); err != nil {
		return nil, fmt.Errorf("malformed mapping suggestion: %w", err)
	}
	if len(out.Mapping) == 0 {
		return nil, fmt.Errorf("empty mapping suggestion")
	}
	return models.UniversalMapping(out.Mapping), nil
}
