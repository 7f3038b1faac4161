// Package simple contains the host scope policy applied to every fetch.
package simple

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/djfrancesco/poesie-francaise-scraper/internal/corpus"
)

// ErrOutOfScope is wrapped in the FetchError returned for refused URLs.
var ErrOutOfScope = errors.New("url outside of the crawl scope")

// Policy allows http(s) URLs on a fixed set of hosts.
type Policy struct {
	hosts map[string]struct{}
}

// New creates a Policy for the hosts of the given base URLs.
func New(baseURLs ...string) *Policy {
	p := &Policy{hosts: make(map[string]struct{}, len(baseURLs))}
	for _, raw := range baseURLs {
		if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
			p.hosts[strings.ToLower(u.Hostname())] = struct{}{}
		}
	}
	return p
}

// AllowFetch reports whether rawURL may be requested.
func (p *Policy) AllowFetch(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	_, ok := p.hosts[strings.ToLower(u.Hostname())]
	return ok
}

// Guard wraps a fetcher so refused URLs never reach the network.
func (p *Policy) Guard(next corpus.Fetcher) corpus.Fetcher {
	return guarded{policy: p, next: next}
}

type guarded struct {
	policy *Policy
	next   corpus.Fetcher
}

func (g guarded) Fetch(ctx context.Context, rawURL string) (string, error) {
	if !g.policy.AllowFetch(rawURL) {
		return "", &corpus.FetchError{URL: rawURL, Err: ErrOutOfScope}
	}
	return g.next.Fetch(ctx, rawURL)
}
