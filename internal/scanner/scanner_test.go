package scanner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PaperNotifier/internal/domain"
)

type namedScanner string

func (n namedScanner) Name() string { return string(n) }

func (n namedScanner) Scan(context.Context, Request) ([]domain.Entry, error) { return nil, nil }

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(namedScanner("arxiv-api"))

	s, err := reg.Resolve("arxiv-api")
	require.NoError(t, err)
	assert.Equal(t, "arxiv-api", s.Name())

	_, err = reg.Resolve("rss")
	assert.Error(t, err)

	var zero Registry
	zero.Register(namedScanner("late"))
	_, err = zero.Resolve("late")
	assert.NoError(t, err)
}
