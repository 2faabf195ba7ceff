package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatGPTScorer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var req struct {
			Model    string              `json:"model"`
			Messages []map[string]string `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Contains(t, req.Messages[1]["content"], `"query":"rag"`)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"` + "```json\\n[0.9, 1.4, -0.2]\\n```" + `"}}]}`))
	}))
	defer srv.Close()

	scorer := NewChatGPTScorer(Options{Endpoint: srv.URL, Model: "openai:gpt-4o-mini", APIKey: "key"})
	assert.Equal(t, "gpt-4o-mini", scorer.Model())

	scores, err := scorer.Score(context.Background(), "rag", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.9, 1, 0}, scores)
}

func TestChatGPTScorerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewChatGPTScorer(Options{Endpoint: srv.URL, Model: "gpt", APIKey: "key"}).Score(context.Background(), "q", []string{"a"})
	assert.ErrorContains(t, err, "rate limited")

	_, err = NewChatGPTScorer(Options{Endpoint: srv.URL, Model: "gpt"}).Score(context.Background(), "q", []string{"a"})
	assert.ErrorContains(t, err, "misconfigured")
}

func TestParseScores(t *testing.T) {
	scores, err := parseScores("[0.1,0.2]")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2}, scores)

	_, err = parseScores("not json")
	assert.Error(t, err)
}
