package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"

	"PaperNotifier/internal/ports"
)

const (
	ActivationSigmoid = "sigmoid"
	ActivationNone    = "none"
)

// Client talks to an external cross-encoder service that scores query/text pairs.
type Client struct {
	endpoint   string
	apiKey     string
	model      string
	activation string
	http       *http.Client
}

var _ ports.Scorer = (*Client)(nil)

// Options configures the scoring service.
type Options struct {
	Endpoint   string
	APIKey     string
	Model      string
	Activation string
	HTTPClient *http.Client
}

// NewClient creates a reusable HTTP client. The caller bounds each call with ctx.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	activation := strings.ToLower(strings.TrimSpace(opts.Activation))
	if activation == "" {
		activation = ActivationSigmoid
	}
	return &Client{
		endpoint:   strings.TrimRight(opts.Endpoint, "/"),
		apiKey:     opts.APIKey,
		model:      opts.Model,
		activation: activation,
		http:       httpClient,
	}
}

// Model reports the reranker identifier sent to the service.
func (c *Client) Model() string { return c.model }

// Score sends all texts in one batch and returns one score per text.
func (c *Client) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload := map[string]any{
		"model": c.model,
		"query": query,
		"texts": texts,
	}

	var resp struct {
		Scores []float64 `json:"scores"`
	}
	if err := c.post(ctx, "/rerank", payload, &resp); err != nil {
		return nil, err
	}
	if len(resp.Scores) != len(texts) {
		return nil, fmt.Errorf("scorer returned %d scores for %d texts", len(resp.Scores), len(texts))
	}

	if c.activation == ActivationSigmoid {
		for i, s := range resp.Scores {
			resp.Scores[i] = sigmoid(s)
		}
	}
	return resp.Scores, nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
