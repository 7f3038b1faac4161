package builder

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djfrancesco/poesie-francaise-scraper/internal/corpus"
)

func TestBatchFlushesAtSize(t *testing.T) {
	t.Parallel()

	var flushed [][]corpus.Poem
	b := NewBatch(2, func(_ context.Context, poems []corpus.Poem) error {
		flushed = append(flushed, poems)
		return nil
	})
	ctx := context.Background()

	require.NoError(t, b.Add(ctx, corpus.Poem{Title: "1"}))
	assert.Empty(t, flushed)
	require.NoError(t, b.Add(ctx, corpus.Poem{Title: "2"}))
	require.Len(t, flushed, 1)
	require.NoError(t, b.Add(ctx, corpus.Poem{Title: "3"}))
	assert.Equal(t, 1, b.Len())

	require.NoError(t, b.Flush(ctx))
	require.Len(t, flushed, 2)
	assert.Equal(t, []corpus.Poem{{Title: "3"}}, flushed[1])
	assert.Equal(t, []corpus.Poem{{Title: "1"}, {Title: "2"}}, flushed[0])

	require.NoError(t, b.Flush(ctx))
	assert.Len(t, flushed, 2, "empty flush must not write")
}

func TestBatchKeepsItemsOnFailure(t *testing.T) {
	t.Parallel()

	fail := true
	calls := 0
	b := NewBatch(5, func(_ context.Context, _ []corpus.Poem) error {
		calls++
		if fail {
			return errors.New("disk full")
		}
		return nil
	})
	ctx := context.Background()

	require.NoError(t, b.Add(ctx, corpus.Poem{Title: "1"}))
	require.Error(t, b.Flush(ctx))
	assert.Equal(t, 1, b.Len())

	fail = false
	require.NoError(t, b.Flush(ctx))
	assert.Zero(t, b.Len())
	assert.Equal(t, 2, calls)
}

func TestBatchMinimumSize(t *testing.T) {
	t.Parallel()

	calls := 0
	b := NewBatch(0, func(_ context.Context, _ []corpus.Poem) error {
		calls++
		return nil
	})
	require.NoError(t, b.Add(context.Background(), corpus.Poem{}))
	assert.Equal(t, 1, calls)
}
