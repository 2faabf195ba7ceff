package usecase

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"PaperNotifier/internal/domain"
	"PaperNotifier/internal/metrics"
	"PaperNotifier/internal/ports"
	"PaperNotifier/internal/settings"
)

type fakeFeed struct {
	mu       sync.Mutex
	entries  map[string][]domain.Entry
	failing  map[string]error
	requests []domain.Window
}

func (f *fakeFeed) Fetch(_ context.Context, category string, w domain.Window) ([]domain.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, w)
	if err := f.failing[category]; err != nil {
		return nil, err
	}
	var out []domain.Entry
	for _, e := range f.entries[category] {
		if w.Contains(e.PublishedAt) {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeIndex struct {
	mu        sync.Mutex
	docs      map[string]domain.Document
	order     []string
	queries   []domain.Query
	searchErr map[string]error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{docs: map[string]domain.Document{}}
}

func (f *fakeIndex) Create(_ context.Context, doc domain.Document) (domain.WriteOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[doc.ID]; ok {
		return domain.WriteAlreadyExists, nil
	}
	f.docs[doc.ID] = doc
	f.order = append(f.order, doc.ID)
	return domain.WriteCreated, nil
}

func (f *fakeIndex) Search(_ context.Context, q domain.Query) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if err := f.searchErr[q.Keyword]; err != nil {
		return nil, err
	}
	var out []domain.Document
	for _, id := range f.order {
		d := f.docs[id]
		if !strings.Contains(strings.ToLower(d.Abstract), strings.ToLower(q.Keyword)) {
			continue
		}
		if d.PublishedAt.Before(q.From) || d.PublishedAt.After(q.To) {
			continue
		}
		out = append(out, d)
		if len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

type fakeScorer struct {
	scores []float64
	err    error
	calls  int
}

func (f *fakeScorer) Score(_ context.Context, _ string, texts []string) ([]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.scores == nil {
		out := make([]float64, len(texts))
		for i := range out {
			out[i] = 0.9
		}
		return out, nil
	}
	return f.scores, nil
}

func (f *fakeScorer) Model() string { return "fake-model" }

type sentMessage struct {
	Keyword string
	Kind    domain.MessageKind
	Results []domain.RankedResult
}

type fakeMessenger struct {
	mu      sync.Mutex
	sent    []sentMessage
	status  map[string]int
	sendErr error
}

func (f *fakeMessenger) Name() string { return "fake" }

func (f *fakeMessenger) Format(keyword string, results []domain.RankedResult) (domain.Message, error) {
	kind := domain.MessageDigest
	if len(results) == 0 {
		kind = domain.MessageEmpty
	}
	f.mu.Lock()
	f.sent = append(f.sent, sentMessage{Keyword: keyword, Kind: kind, Results: results})
	f.mu.Unlock()
	return domain.Message{Kind: kind, Keyword: keyword, Endpoint: "fake://", Form: url.Values{}}, nil
}

func (f *fakeMessenger) Send(_ context.Context, msg domain.Message) (domain.Delivery, error) {
	if f.sendErr != nil {
		return domain.Delivery{}, f.sendErr
	}
	if code, ok := f.status[msg.Keyword]; ok {
		return domain.Delivery{StatusCode: code, Body: `{"msg":"rejected"}`}, nil
	}
	return domain.Delivery{StatusCode: 200, Body: "ok"}, nil
}

func (f *fakeMessenger) keywords() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, s := range f.sent {
		out[i] = s.Keyword
	}
	return out
}

type fakeComponents struct {
	scorer    ports.Scorer
	scorerErr error
	messenger ports.Messenger
}

func (f fakeComponents) Scorer(model string) (ports.Scorer, error) {
	if model == "" {
		return nil, nil
	}
	if f.scorerErr != nil {
		return nil, f.scorerErr
	}
	return f.scorer, nil
}

func (f fakeComponents) Messenger(settings.Settings) (ports.Messenger, error) {
	if f.messenger == nil {
		return nil, errors.New("no messenger")
	}
	return f.messenger, nil
}

func entry(id, category, abstract string, published time.Time) domain.Entry {
	return domain.Entry{
		ID:          "http://arxiv.org/abs/" + id,
		Title:       "Paper " + id,
		Authors:     []string{"Grace Hopper"},
		Summary:     abstract,
		PublishedAt: published,
		Link:        "http://arxiv.org/abs/" + id,
		Category:    category,
	}
}

func docs(ids ...string) []domain.Document {
	out := make([]domain.Document, len(ids))
	for i, id := range ids {
		out[i] = domain.Document{ID: id, Abstract: "abstract " + id}
	}
	return out
}

func ids(results []domain.RankedResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Document.ID
	}
	return out
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}
