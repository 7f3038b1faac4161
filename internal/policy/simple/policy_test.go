// Package simple includes tests for the host scope policy.
package simple

import (
	"context"
	"errors"
	"testing"

	"github.com/djfrancesco/poesie-francaise-scraper/internal/corpus"
)

type recordingFetcher struct{ urls []string }

func (r *recordingFetcher) Fetch(_ context.Context, url string) (string, error) {
	r.urls = append(r.urls, url)
	return "ok", nil
}

// TestPolicyAllowFetch checks scheme and host matching.
func TestPolicyAllowFetch(t *testing.T) {
	t.Parallel()

	p := New("https://www.poesie-francaise.fr/")
	cases := map[string]bool{
		"https://www.poesie-francaise.fr/poemes-victor-hugo/":    true,
		"http://WWW.poesie-francaise.fr/victor-hugo/poeme-x.php": true,
		"https://example.com/poemes-victor-hugo/":                false,
		"ftp://www.poesie-francaise.fr/":                         false,
		"/poemes-victor-hugo/":                                   false,
		"://bad":                                                 false,
	}
	for raw, want := range cases {
		if got := p.AllowFetch(raw); got != want {
			t.Fatalf("AllowFetch(%q) = %v, want %v", raw, got, want)
		}
	}
}

// TestGuardRefusesOutOfScope ensures refused URLs surface as FetchError.
func TestGuardRefusesOutOfScope(t *testing.T) {
	t.Parallel()

	next := &recordingFetcher{}
	f := New("https://www.poesie-francaise.fr/").Guard(next)

	if _, err := f.Fetch(context.Background(), "https://www.poesie-francaise.fr/poemes-auteurs/"); err != nil {
		t.Fatalf("in-scope fetch error = %v", err)
	}
	_, err := f.Fetch(context.Background(), "https://elsewhere.example/")
	var fe *corpus.FetchError
	if !errors.As(err, &fe) || !errors.Is(err, ErrOutOfScope) {
		t.Fatalf("expected out-of-scope FetchError, got %v", err)
	}
	if len(next.urls) != 1 {
		t.Fatalf("expected one delegated fetch, got %v", next.urls)
	}
}
