package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PaperNotifier/internal/domain"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := Open(context.Background(), Options{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestGetSet(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "last_crawl_timestamp")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, store.Set(ctx, "recent_papers", "[]", 600*time.Second))
	got, err := store.Get(ctx, "recent_papers")
	require.NoError(t, err)
	assert.Equal(t, "[]", got)
	assert.Equal(t, 600*time.Second, mr.TTL("recent_papers"))

	mr.FastForward(601 * time.Second)
	_, err = store.Get(ctx, "recent_papers")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSetMany(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetMany(ctx, map[string]string{
		"last_crawl_timestamp":   "20240102000000",
		"last_crawl_paper_count": "42",
	}))
	mr.CheckGet(t, "last_crawl_timestamp", "20240102000000")
	mr.CheckGet(t, "last_crawl_paper_count", "42")
	assert.Equal(t, time.Duration(0), mr.TTL("last_crawl_timestamp"))

	require.NoError(t, store.SetMany(ctx, nil))
}

func TestReplaceMembers(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	members, err := store.Members(ctx, "search_keywords")
	require.NoError(t, err)
	assert.Empty(t, members)

	_, err = mr.SAdd("search_keywords", "stale")
	require.NoError(t, err)

	require.NoError(t, store.ReplaceMembers(ctx, "search_keywords", []string{"llm", "retrieval"}))
	members, err = store.Members(ctx, "search_keywords")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"llm", "retrieval"}, members)

	require.NoError(t, store.ReplaceMembers(ctx, "search_keywords", nil))
	assert.False(t, mr.Exists("search_keywords"))
}

func TestOpenFailsWithoutServer(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = Open(ctx, Options{Addr: addr})
	assert.Error(t, err)
}

func TestNewWrapsClient(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	store := New(client)
	defer store.Close()

	require.NoError(t, store.Set(context.Background(), "config", "{}", 0))
	mr.CheckGet(t, "config", "{}")
}
