package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/oto-macenauer/school-summary/internal/platform/config"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// geminiGenerator talks to the Gemini REST API directly. The API key rides
// in a query parameter, which no chat-completions SDK models.
type geminiGenerator struct {
	name    string
	cfg     config.GeminiConfig
	http    *http.Client
	usage   *usageTracker
	logger  *slog.Logger
	baseURL string
}

func newGemini(name string, cfg config.GeminiConfig, limits config.AIUsageLimits, logger *slog.Logger) *geminiGenerator {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	return &geminiGenerator{
		name:    name,
		cfg:     cfg,
		http:    &http.Client{Timeout: 60 * time.Second},
		usage:   newUsageTracker(limits),
		logger:  logger,
		baseURL: baseURL,
	}
}

func (g *geminiGenerator) Name() string { return g.name }

func (g *geminiGenerator) Usage() UsageSnapshot { return g.usage.snapshot(string(ProviderGemini)) }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  struct {
		MaxOutputTokens int     `json:"maxOutputTokens"`
		Temperature     float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (g *geminiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if !g.usage.allow() {
		return "", ErrDailyLimit
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = 1024
	}
	if req.Temperature == 0 {
		req.Temperature = 0.7
	}

	payload := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: req.Prompt}}}},
	}
	if req.SystemInstruction != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemInstruction}}}
	}
	payload.GenerationConfig.MaxOutputTokens = req.MaxTokens
	payload.GenerationConfig.Temperature = req.Temperature

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("ai: encode request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.cfg.Model, g.cfg.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ai: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	g.logger.Debug("gemini request",
		slog.String("model", g.cfg.Model),
		slog.Int("prompt_length", len(req.Prompt)))

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ai: gemini request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ai: read gemini response: %w", err)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("ai: decode gemini response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("%w: %s", ErrRateLimited, parsed.Error.Message)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w: %s", ErrInvalidKey, parsed.Error.Message)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("ai: gemini returned status %d: %s", resp.StatusCode, parsed.Error.Message)
	}

	g.usage.record(parsed.UsageMetadata.PromptTokenCount, parsed.UsageMetadata.CandidatesTokenCount)

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}
