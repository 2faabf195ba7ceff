package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PaperNotifier/internal/domain"
)

func TestRetrieverSearchUsesInclusiveWindow(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	w := domain.Window{Start: start, End: start.Add(24 * time.Hour)}
	index := newFakeIndex()
	for _, d := range []domain.Document{
		{ID: "before", Abstract: "graph networks", PublishedAt: start.Add(-time.Second)},
		{ID: "at-start", Abstract: "graph networks", PublishedAt: start},
		{ID: "at-end", Abstract: "graph networks", PublishedAt: w.End},
		{ID: "other", Abstract: "protein folding", PublishedAt: start.Add(time.Hour)},
	} {
		_, err := index.Create(context.Background(), d)
		require.NoError(t, err)
	}

	got, err := NewRetriever(index, time.Second).Search(context.Background(), "  graph ", w, 10)
	require.NoError(t, err)

	var gotIDs []string
	for _, d := range got {
		gotIDs = append(gotIDs, d.ID)
	}
	assert.Equal(t, []string{"at-start", "at-end"}, gotIDs)
	require.Len(t, index.queries, 1)
	assert.Equal(t, domain.Query{Keyword: "graph", From: w.Start, To: w.End, Limit: 10}, index.queries[0])
}

func TestRetrieverSkipsBlankKeyword(t *testing.T) {
	t.Parallel()

	index := newFakeIndex()
	got, err := NewRetriever(index, time.Second).Search(context.Background(), "   ", domain.Window{}, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, index.queries)
}

func TestRetrieverPropagatesIndexError(t *testing.T) {
	t.Parallel()

	index := newFakeIndex()
	index.searchErr = map[string]error{"llm": errors.New("index down")}
	_, err := NewRetriever(index, time.Second).Search(context.Background(), "llm", domain.Window{}, 5)
	require.Error(t, err)
}
