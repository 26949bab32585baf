// Package ai generates summary texts through a pluggable model provider.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/oto-macenauer/school-summary/internal/platform/config"
)

// Provider identifies a model backend. The set is closed; anything else is
// a configuration error.
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
)

// Request is one generation call.
type Request struct {
	Prompt            string
	SystemInstruction string
	MaxTokens         int
	Temperature       float64
}

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Usage() UsageSnapshot
	Name() string
}

// Generation errors.
var (
	ErrRateLimited   = errors.New("ai: rate limit exceeded")
	ErrInvalidKey    = errors.New("ai: invalid api key or access forbidden")
	ErrDailyLimit    = errors.New("ai: daily usage limit reached")
	ErrEmptyResponse = errors.New("ai: empty model response")
)

// UnknownProviderError reports a selected model that matches no configured
// backend.
type UnknownProviderError struct {
	Selected string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("ai: selected model %q matches no configured provider", e.Selected)
}

// New builds the Generator named by cfg.Selected. The lookup is a closed
// dispatch over the two supported provider families.
func New(cfg config.AIConfig, logger *slog.Logger) (Generator, error) {
	limits := cfg.Limits
	if limits.DailyRequests <= 0 {
		limits.DailyRequests = 1500
	}
	if limits.DailyTokens <= 0 {
		limits.DailyTokens = 1000000
	}

	if gcfg, ok := cfg.Gemini[cfg.Selected]; ok {
		return newGemini(cfg.Selected, gcfg, limits, logger), nil
	}
	if ocfg, ok := cfg.OpenAI[cfg.Selected]; ok {
		return newOpenAI(cfg.Selected, ocfg, limits, logger), nil
	}
	return nil, &UnknownProviderError{Selected: cfg.Selected}
}
