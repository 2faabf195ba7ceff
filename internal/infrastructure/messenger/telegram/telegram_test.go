package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PaperNotifier/internal/domain"
)

func TestFormatAndSend(t *testing.T) {
	t.Parallel()

	texts := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "42", r.PostForm.Get("chat_id"))
		assert.Equal(t, "HTML", r.PostForm.Get("parse_mode"))
		texts <- r.PostForm.Get("text")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	m := New(Options{BotToken: "TOKEN", ChatID: "42", APIURL: srv.URL})
	assert.Equal(t, "telegram", m.Name())

	score := 0.75
	msg, err := m.Format("graphs & trees", []domain.RankedResult{
		{Document: domain.Document{Title: "A <b>bold</b> claim", Link: "http://arxiv.org/abs/1"}, Score: &score},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.MessageDigest, msg.Kind)

	delivery, err := m.Send(context.Background(), msg)
	require.NoError(t, err)
	assert.True(t, delivery.OK())
	gotText := <-texts
	assert.Equal(t, "<b>graphs &amp; trees</b>: 1 new papers\n\n"+
		`1. <a href="http://arxiv.org/abs/1">A &lt;b&gt;bold&lt;/b&gt; claim</a> (0.750)`, gotText)
}

func TestFormatEmptyAndMisconfigured(t *testing.T) {
	t.Parallel()

	m := New(Options{APIURL: "https://api.telegram.org"})
	msg, err := m.Format("llm", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.MessageEmpty, msg.Kind)
	assert.Equal(t, "No new papers for <b>llm</b>.", msg.Form.Get("text"))

	_, err = m.Send(context.Background(), msg)
	assert.Error(t, err)
}

func TestSendReportsNonSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false,"description":"chat not found"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	m := New(Options{BotToken: "T", ChatID: "1", APIURL: srv.URL})
	msg, err := m.Format("llm", nil)
	require.NoError(t, err)

	delivery, err := m.Send(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, delivery.StatusCode)
	assert.Contains(t, delivery.Body, "chat not found")
}

func TestFormatStaysWithinTextLimit(t *testing.T) {
	t.Parallel()

	results := make([]domain.RankedResult, 50)
	for i := range results {
		results[i] = domain.RankedResult{Document: domain.Document{
			Title: strings.Repeat("Very long title word ", 40),
			Link:  "http://arxiv.org/abs/2401.00001",
		}}
	}

	msg, err := New(Options{BotToken: "TOKEN", ChatID: "42"}).Format("llm", results)
	require.NoError(t, err)

	text := msg.Form.Get("text")
	assert.LessOrEqual(t, utf8.RuneCountInString(text), maxTextRunes)
	assert.Contains(t, text, "<b>llm</b>: 50 new papers")
	assert.Contains(t, text, "more")
	assert.Contains(t, text, "…</a>", "long titles are shortened")
}
