// Package storage archives the raw pages a run fetched. The blob stores live
// in subpackages (local, gcs, memory); this package holds the fetcher
// decorator that feeds them.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/djfrancesco/poesie-francaise-scraper/internal/corpus"
)

// ContentType is the type recorded for archived pages.
const ContentType = "text/html; charset=utf-8"

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ArchivingFetcher stores every successfully fetched page in a BlobStore
// before handing it back. Archive failures are logged and never fail a fetch.
type ArchivingFetcher struct {
	next   corpus.Fetcher
	blobs  corpus.BlobStore
	hasher corpus.Hasher
	runID  string
	logger *zap.Logger
}

// NewArchivingFetcher wraps next.
func NewArchivingFetcher(
	next corpus.Fetcher,
	blobs corpus.BlobStore,
	hasher corpus.Hasher,
	runID string,
	logger *zap.Logger,
) *ArchivingFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchivingFetcher{next: next, blobs: blobs, hasher: hasher, runID: runID, logger: logger}
}

// Fetch delegates to the wrapped fetcher and archives the body.
func (a *ArchivingFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	body, err := a.next.Fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}

	uri, err := a.archive(ctx, rawURL, body)
	if err != nil {
		a.logger.Warn("archive page failed", zap.String("url", rawURL), zap.Error(err))
		return body, nil
	}
	a.logger.Debug("page archived", zap.String("url", rawURL), zap.String("uri", uri))
	return body, nil
}

func (a *ArchivingFetcher) archive(ctx context.Context, rawURL, body string) (string, error) {
	digest, err := a.hasher.Hash([]byte(body))
	if err != nil {
		return "", fmt.Errorf("hash page: %w", err)
	}
	key, err := ObjectKey(a.runID, rawURL, digest)
	if err != nil {
		return "", err
	}
	uri, err := a.blobs.PutObject(ctx, key, ContentType, strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return uri, nil
}

// ObjectKey maps a page URL to "<run>/<host>/<path>-<digest>.html". Directory
// URLs are stored as "index".
func ObjectKey(runID, rawURL, digest string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}

	var segments []string
	for _, seg := range strings.Split(u.Path, "/") {
		seg = unsafeKeyChars.ReplaceAllString(seg, "_")
		if seg == "" || seg == "." || seg == ".." {
			continue
		}
		segments = append(segments, seg)
	}
	name := "index"
	if !strings.HasSuffix(u.Path, "/") && len(segments) > 0 {
		name = strings.TrimSuffix(segments[len(segments)-1], ".php")
		segments = segments[:len(segments)-1]
	}
	if digest != "" {
		name += "-" + digest
	}

	parts := []string{unsafeKeyChars.ReplaceAllString(runID, "_"), strings.ToLower(u.Host)}
	parts = append(parts, segments...)
	parts = append(parts, name+".html")
	return path.Join(parts...), nil
}
