// Package llm generates text for the drafting stage.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/use-agent/jobscout/models"
)

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Params selects and configures a provider.
type Params struct {
	Provider string // anthropic | openai | none
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// New returns the configured Generator, or nil for provider "none" or a
// missing API key. A nil Generator makes Fallback use its templates.
func New(p Params) (Generator, error) {
	switch strings.ToLower(p.Provider) {
	case "", "none":
		return nil, nil
	case "anthropic", "claude":
		if p.APIKey == "" {
			return nil, nil
		}
		return NewAnthropic(p), nil
	case "openai":
		if p.APIKey == "" {
			return nil, nil
		}
		return NewOpenAI(nil, p), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", p.Provider)
	}
}

// retryable keeps auth failures from burning the retry budget.
func retryable(err error) bool {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return se.Code != models.ErrCodeLLMAuthFailure
	}
	return true
}
