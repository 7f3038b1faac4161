// Package memory provides an in-memory corpus.Sink for tests and dry runs.
package memory

import (
	"context"
	"sync"

	"github.com/djfrancesco/poesie-francaise-scraper/internal/corpus"
	"github.com/djfrancesco/poesie-francaise-scraper/internal/store"
)

// Store keeps both tables in memory. It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	poets []corpus.Poet
	poems []corpus.Poem
	// hasPoets and hasPoems record whether each table was ever created.
	hasPoets bool
	hasPoems bool
	writes   []Write
}

// Write records one call made against the store.
type Write struct {
	Op    string
	Table string
	Rows  int
}

// New returns an empty Store.
func New() *Store {
	return &Store{}
}

// ReplacePoets swaps the poets table for the given rows.
func (s *Store) ReplacePoets(_ context.Context, poets []corpus.Poet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.poets = append([]corpus.Poet(nil), poets...)
	s.hasPoets = true
	s.writes = append(s.writes, Write{Op: "replace", Table: store.Poets.Name, Rows: len(poets)})
	return nil
}

// ReplacePoems swaps the poems table for the given rows.
func (s *Store) ReplacePoems(_ context.Context, poems []corpus.Poem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.poems = append([]corpus.Poem(nil), poems...)
	s.hasPoems = true
	s.writes = append(s.writes, Write{Op: "replace", Table: store.Poems.Name, Rows: len(poems)})
	return nil
}

// AppendPoems adds rows to the poems table.
func (s *Store) AppendPoems(_ context.Context, poems []corpus.Poem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.poems = append(s.poems, poems...)
	s.hasPoems = true
	s.writes = append(s.writes, Write{Op: "append", Table: store.Poems.Name, Rows: len(poems)})
	return nil
}

// ReadPoets returns a copy of the poets table.
func (s *Store) ReadPoets(_ context.Context) ([]corpus.Poet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasPoets {
		return nil, &corpus.StoreError{Op: "read", Table: store.Poets.Name, Err: corpus.ErrNotFound}
	}
	return append([]corpus.Poet(nil), s.poets...), nil
}

// Poems returns a copy of the poems table.
func (s *Store) Poems() []corpus.Poem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]corpus.Poem(nil), s.poems...)
}

// Writes returns the write calls in order.
func (s *Store) Writes() []Write {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Write(nil), s.writes...)
}

// Reset drops both tables.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.poets, s.poems = nil, nil
	s.hasPoets, s.hasPoems = false, false
	s.writes = nil
}

// DropAll is Reset for the builder's rebuild path.
func (s *Store) DropAll(_ context.Context) error {
	s.Reset()
	return nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
