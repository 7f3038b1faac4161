package builder

import (
	"context"

	"github.com/djfrancesco/poesie-francaise-scraper/internal/corpus"
)

// FlushFunc writes one batch of poems.
type FlushFunc func(ctx context.Context, poems []corpus.Poem) error

// Batch is a bounded buffer of parsed poems. Add flushes when the buffer
// reaches its size; Flush writes whatever remains.
type Batch struct {
	size  int
	items []corpus.Poem
	flush FlushFunc
}

// NewBatch returns a Batch holding at most size poems. A size below 1 means 1.
func NewBatch(size int, flush FlushFunc) *Batch {
	if size < 1 {
		size = 1
	}
	return &Batch{size: size, items: make([]corpus.Poem, 0, size), flush: flush}
}

// Add buffers a poem and flushes if the buffer is full.
func (b *Batch) Add(ctx context.Context, p corpus.Poem) error {
	b.items = append(b.items, p)
	if len(b.items) >= b.size {
		return b.Flush(ctx)
	}
	return nil
}

// Flush writes the buffered poems. An empty buffer is a no-op. On failure the
// buffer is kept so the caller may retry.
func (b *Batch) Flush(ctx context.Context) error {
	if len(b.items) == 0 {
		return nil
	}
	if err := b.flush(ctx, b.items); err != nil {
		return err
	}
	b.items = make([]corpus.Poem, 0, b.size)
	return nil
}

// Len returns the number of buffered poems.
func (b *Batch) Len() int { return len(b.items) }
