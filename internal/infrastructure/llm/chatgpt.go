package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"PaperNotifier/internal/ports"
)

// ModelPrefix selects this scorer in the reranker setting, e.g. "openai:gpt-4o-mini".
const ModelPrefix = "openai:"

const defaultPrompt = "You grade research abstracts for relevance to a search query. " +
	"Reply with only a JSON array of numbers between 0 and 1, one per abstract, in input order."

// ChatGPTScorer implements ports.Scorer on an OpenAI-compatible chat completions API.
type ChatGPTScorer struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	httpClient   *http.Client
}

var _ ports.Scorer = (*ChatGPTScorer)(nil)

// Options configures the chat completions endpoint.
type Options struct {
	Endpoint     string
	Model        string
	APIKey       string
	SystemPrompt string
	HTTPClient   *http.Client
}

// NewChatGPTScorer builds a scorer from configuration.
func NewChatGPTScorer(opts Options) *ChatGPTScorer {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &ChatGPTScorer{
		endpoint:     opts.Endpoint,
		model:        strings.TrimPrefix(opts.Model, ModelPrefix),
		apiKey:       opts.APIKey,
		systemPrompt: opts.SystemPrompt,
		httpClient:   httpClient,
	}
}

// Model returns the chat model name.
func (c *ChatGPTScorer) Model() string { return c.model }

// Score asks the model to grade every text in a single completion.
func (c *ChatGPTScorer) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if c == nil {
		return nil, fmt.Errorf("chatgpt scorer is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return nil, fmt.Errorf("chatgpt scorer misconfigured")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	user, err := json.Marshal(map[string]any{"query": query, "abstracts": texts})
	if err != nil {
		return nil, fmt.Errorf("marshal abstracts: %w", err)
	}
	body, err := json.Marshal(map[string]any{
		"model":       c.model,
		"temperature": 0,
		"messages": []map[string]string{
			{"role": "system", "content": safePrompt(c.systemPrompt)},
			{"role": "user", "content": string(user)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("score abstracts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("chatgpt error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("decode completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("chatgpt returned no choices")
	}

	scores, err := parseScores(completion.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(texts) {
		return nil, fmt.Errorf("chatgpt returned %d scores for %d texts", len(scores), len(texts))
	}
	return scores, nil
}

// parseScores reads the JSON array, tolerating a fenced code block around it.
func parseScores(content string) ([]float64, error) {
	content = strings.TrimSpace(content)
	if start := strings.Index(content, "["); start >= 0 {
		if end := strings.LastIndex(content, "]"); end > start {
			content = content[start : end+1]
		}
	}
	var scores []float64
	if err := json.Unmarshal([]byte(content), &scores); err != nil {
		return nil, fmt.Errorf("parse scores %q: %w", content, err)
	}
	for i, s := range scores {
		scores[i] = min(max(s, 0), 1)
	}
	return scores, nil
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return defaultPrompt
	}
	return prompt
}
