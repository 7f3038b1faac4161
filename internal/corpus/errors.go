package corpus

import (
	"errors"
	"fmt"
)

// ErrFieldMissing is wrapped by every ParseError.
var ErrFieldMissing = errors.New("required field missing")

// ErrNotFound reports a missing table or row.
var ErrNotFound = errors.New("not found")

// FetchError reports a network or HTTP failure for one URL.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports a required field that could not be extracted from a page.
type ParseError struct {
	Field string
	URL   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: field %q: %v", e.URL, e.Field, ErrFieldMissing)
}

func (e *ParseError) Unwrap() error { return ErrFieldMissing }

// StoreError reports a failed write or read against the sink.
type StoreError struct {
	Op    string
	Table string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ConsistencyWarning describes a data-quality problem that is logged, never
// returned: a poet whose listing header disagrees with the links found.
type ConsistencyWarning struct {
	PoetSlug string
	Expected int
	Matched  int
}

func (w ConsistencyWarning) String() string {
	return fmt.Sprintf("poet %s: expected %d poems, matched %d", w.PoetSlug, w.Expected, w.Matched)
}

// IsFetchError reports whether err wraps a *FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// IsParseError reports whether err wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// IsStoreError reports whether err wraps a *StoreError.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
