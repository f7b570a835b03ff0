package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/whale-copy-engine/internal/config"
)

// Model registry for the advisory backend. All entries are free-tier
// OpenRouter models; the default favors a reasoning model because the
// response must be a strictly structured JSON object.
const (
	ModelDefault   = "qwen/qwen3-vl-235b-a22b-thinking"
	ModelFast      = "qwen/qwen3-4b:free"
	ModelReasoning = "deepseek/deepseek-r1-0528:free"
)

// OpenRouterClient implements Completer against an OpenRouter-style
// chat-completions endpoint.
type OpenRouterClient struct {
	baseURL     string
	apiKey      string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

// NewOpenRouterClient creates a client from configuration. The
// sampling temperature is fixed low and the output length bounded, so
// responses stay as deterministic and cheap as the backend allows.
func NewOpenRouterClient(cfg config.Config) *OpenRouterClient {
	return &OpenRouterClient{
		baseURL:     cfg.AdvisoryURL,
		apiKey:      cfg.AdvisoryAPIKey,
		temperature: cfg.AdvisoryTemperature,
		maxTokens:   cfg.AdvisoryMaxTokens,
		httpClient:  newDecisionClient(cfg.AdvisoryTimeout),
	}
}

// chatRequest matches the OpenRouter chat-completions request format
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

// chatResponse matches the OpenRouter chat-completions response format
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends one prompt to the advisory backend and returns the raw
// completion text. A missing credential fails fast without an outbound
// call.
func (c *OpenRouterClient) Complete(ctx context.Context, model, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}
	if model == "" {
		model = ModelReasoning
	}

	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("error encoding advisory request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("error creating advisory request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("HTTP-Referer", "https://whale-copy.app")
	req.Header.Set("X-Title", "Whale Copy Engine")

	start := time.Now()
	logrus.Debugf("Requesting advisory completion from %s (model %s)", c.baseURL, model)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error calling advisory backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("advisory backend error: status %d, body: %s", resp.StatusCode, string(raw))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("error decoding advisory response: %w", err)
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from advisory backend")
	}

	logrus.Debugf("Advisory completion received in %s", time.Since(start))
	return parsed.Choices[0].Message.Content, nil
}
