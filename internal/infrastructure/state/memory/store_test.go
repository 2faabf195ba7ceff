package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PaperNotifier/internal/domain"
)

func TestStoreExpiry(t *testing.T) {
	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	store := New(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "recent_papers", "[]", time.Minute))
	got, err := store.Get(ctx, "recent_papers")
	require.NoError(t, err)
	assert.Equal(t, "[]", got)

	now = now.Add(time.Minute)
	_, err = store.Get(ctx, "recent_papers")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStoreSetManyAndSets(t *testing.T) {
	store := New(nil)
	ctx := context.Background()

	require.NoError(t, store.SetMany(ctx, map[string]string{"a": "1", "b": "2"}))
	got, err := store.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "2", got)

	require.NoError(t, store.ReplaceMembers(ctx, "search_keywords", []string{"llm", "llm", "rag"}))
	members, err := store.Members(ctx, "search_keywords")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"llm", "rag"}, members)

	require.NoError(t, store.ReplaceMembers(ctx, "search_keywords", nil))
	members, err = store.Members(ctx, "search_keywords")
	require.NoError(t, err)
	assert.Empty(t, members)
}
