package corpus

import (
	"context"
	"io"
	"time"
)

// Fetcher retrieves the body of a page. Failures are reported as *FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Sink is the tabular store the corpus is written to. Failures are reported
// as *StoreError.
type Sink interface {
	// ReplacePoets drops and recreates the poets table with the given rows.
	ReplacePoets(ctx context.Context, poets []Poet) error
	// ReplacePoems drops and recreates the poems table with the given rows.
	ReplacePoems(ctx context.Context, poems []Poem) error
	// AppendPoems adds rows to the existing poems table.
	AppendPoems(ctx context.Context, poems []Poem) error
	// ReadPoets returns the stored roster in insertion order.
	ReadPoets(ctx context.Context) ([]Poet, error)
	Close() error
}

// Publisher pushes run notifications to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Hasher computes digests used as archive keys.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
