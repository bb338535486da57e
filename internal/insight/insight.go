// Package insight forwards strategy results to an OpenAI-compatible chat
// endpoint and returns a short institutional-style analysis. The engine
// never generates text itself; it only assembles the prompt and stamps
// the fixed disclaimer.
package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stratrun/stratrun/internal/domain"
)

const systemPrompt = `You are a senior quantitative analyst at an institutional trading desk.
Generate a concise, professional market analysis based on the strategy execution results provided.
Use precise quantitative language. Reference specific metrics. Avoid colloquial expressions.
Sound like an internal research note from a hedge fund quant team.
Do not use any emojis or icons. Keep the tone clinical and data-driven.
Structure: 1-2 sentence market regime assessment, 1-2 sentence strategy performance summary,
1 sentence risk assessment, 1 sentence actionable conclusion.
Maximum 150 words. No disclaimers in the insight body.`

// Request carries the result fields the analyst prompt references.
type Request struct {
	Ticker         string         `json:"ticker"`
	Strategy       string         `json:"strategy"`
	Metrics        domain.Metrics `json:"metrics"`
	SignalsSummary string         `json:"signals_summary,omitempty"`
}

// Response is the outward insight record.
type Response struct {
	Ticker     string `json:"ticker"`
	Strategy   string `json:"strategy"`
	Insight    string `json:"insight"`
	Disclaimer string `json:"disclaimer"`
}

// Provider produces the natural-language insight for one request.
type Provider interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Config holds the chat-completions client settings.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	Temperature float64
}

// Client speaks the OpenAI chat-completions wire format.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient builds a client; zero-valued config fields get defaults.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	return &Client{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate implements Provider.
func (c *Client) Generate(ctx context.Context, req Request) (*Response, error) {
	metricsJSON, err := json.Marshal(req.Metrics)
	if err != nil {
		return nil, domain.InternalComputation(err, "encode metrics for insight")
	}
	userPrompt := fmt.Sprintf("Ticker: %s\nStrategy: %s\nMetrics: %s\nSignals Summary: %s\n",
		req.Ticker, req.Strategy, metricsJSON, req.SignalsSummary)

	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   2048,
	})
	if err != nil {
		return nil, domain.InternalComputation(err, "encode insight request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, domain.InternalComputation(err, "build insight request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.DataUnavailable(true, err, "insight provider unreachable")
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, domain.DataUnavailable(true, err, "read insight response")
	}
	log.Debug().Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).
		Str("ticker", req.Ticker).Msg("insight request")

	if resp.StatusCode != http.StatusOK {
		return nil, domain.DataUnavailable(true, nil, "insight provider status %d", resp.StatusCode)
	}
	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, domain.DataUnavailable(false, err, "decode insight response")
	}
	if parsed.Error != nil {
		return nil, domain.DataUnavailable(true, nil, "insight provider: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, domain.DataUnavailable(false, nil, "insight provider returned no choices")
	}

	return &Response{
		Ticker:     req.Ticker,
		Strategy:   req.Strategy,
		Insight:    strings.TrimSpace(parsed.Choices[0].Message.Content),
		Disclaimer: domain.Disclaimer,
	}, nil
}
