package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PaperNotifier/internal/domain"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(context.Background(), filepath.Join(t.TempDir(), "papers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func doc(id, abstract string, published time.Time) domain.Document {
	return domain.Document{
		ID:          id,
		Title:       "Title " + id,
		Authors:     []string{"Ada Lovelace", "Alan Turing"},
		Abstract:    abstract,
		PublishedAt: published,
		Link:        "http://arxiv.org/abs/" + id,
	}
}

func TestCreateIsCreateOnly(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	published := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

	outcome, err := idx.Create(ctx, doc("abc123", "Transformers for retrieval.", published))
	require.NoError(t, err)
	assert.Equal(t, domain.WriteCreated, outcome)

	outcome, err = idx.Create(ctx, doc("abc123", "A different abstract about graphs.", published))
	require.NoError(t, err)
	assert.Equal(t, domain.WriteAlreadyExists, outcome)

	var count int
	require.NoError(t, idx.db.QueryRow("SELECT COUNT(*) FROM papers WHERE id = ?", "abc123").Scan(&count))
	assert.Equal(t, 1, count)

	docs, err := idx.Search(ctx, domain.Query{Keyword: "graphs", From: published.Add(-time.Hour), To: published.Add(time.Hour), Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, docs, "the second write must not overwrite the first")
}

func TestSearchRangeIsInclusive(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	for _, d := range []domain.Document{
		doc("at-start", "Language models reason.", start),
		doc("at-end", "Language models plan.", end),
		doc("before", "Language models forget.", start.Add(-time.Second)),
		doc("after", "Language models drift.", end.Add(time.Second)),
		doc("off-topic", "Protein folding dynamics.", start.Add(time.Hour)),
	} {
		_, err := idx.Create(ctx, d)
		require.NoError(t, err)
	}

	docs, err := idx.Search(ctx, domain.Query{Keyword: "language", From: start, To: end, Limit: 10})
	require.NoError(t, err)

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	assert.ElementsMatch(t, []string{"at-start", "at-end"}, ids)
	for _, d := range docs {
		assert.Equal(t, []string{"Ada Lovelace", "Alan Turing"}, d.Authors)
	}
}

func TestSearchLimitAndStemming(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	at := time.Date(2024, time.March, 3, 3, 0, 0, 0, time.UTC)

	for _, id := range []string{"a", "b", "c"} {
		_, err := idx.Create(ctx, doc(id, "We evaluate retrievers on benchmarks.", at))
		require.NoError(t, err)
	}

	docs, err := idx.Search(ctx, domain.Query{Keyword: "retriever", From: at, To: at, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestSearchQuotesOperators(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	at := time.Date(2024, time.March, 3, 3, 0, 0, 0, time.UTC)

	_, err := idx.Create(ctx, doc("x", "Sparse attention NOT dense.", at))
	require.NoError(t, err)

	docs, err := idx.Search(ctx, domain.Query{Keyword: `NOT "dense`, From: at, To: at, Limit: 5})
	require.NoError(t, err)
	require.Len(t, docs, 1)

	docs, err = idx.Search(ctx, domain.Query{Keyword: "   ", From: at, To: at, Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestMatchExpr(t *testing.T) {
	assert.Equal(t, `"graph" OR "neural"`, matchExpr(" graph  neural "))
	assert.Equal(t, `"say""hi"""`, matchExpr(`say"hi"`))
	assert.Equal(t, "", matchExpr(""))
}
