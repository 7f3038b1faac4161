// Package site describes the URL layout and markup landmarks of
// poesie-francaise.fr. Every selector and label the parsers rely on lives
// here so a change on the site is a change in one file.
package site

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// DefaultBaseURL is the public root of the site.
const DefaultBaseURL = "https://www.poesie-francaise.fr/"

// DefaultIndexPath is the author index, relative to the base URL.
const DefaultIndexPath = "poemes-auteurs/"

// Markup landmarks.
const (
	// RosterListSelector matches the navigation lists holding the poets.
	RosterListSelector = "ul.reglage-menu"
	// NextPagesSelector matches the container of the pagination links.
	NextPagesSelector = "div.nextpages"
	// PoetPathPrefix prefixes the slug in a poet listing path.
	PoetPathPrefix = "poemes-"
	// TitleLabel introduces the title heading of a poem page.
	TitleLabel = "Titre : "
	// PoetLabel introduces the author heading of a poem page.
	PoetLabel = "Poète : "
	// CollectionLabel introduces the collection line of a poem page.
	CollectionLabel = "Recueil : "
	// CollectionContainer is the opening tag of the unlinked collection line.
	CollectionContainer = `<div class="w3-margin-bottom">`
)

// NextLinkText matches the visible text of the "next page" anchor.
var NextLinkText = regexp.MustCompile(`(?i)suivante`)

// Layout resolves site URLs from a base.
type Layout struct {
	base      string
	indexPath string
}

// NewLayout validates the base URL and returns a Layout. The base always ends
// with a slash.
func NewLayout(baseURL, indexPath string) (Layout, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return Layout{}, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Layout{}, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	base := u.String()
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	if indexPath == "" {
		indexPath = DefaultIndexPath
	}
	return Layout{base: base, indexPath: strings.TrimPrefix(indexPath, "/")}, nil
}

// MustLayout is NewLayout for constant inputs.
func MustLayout(baseURL, indexPath string) Layout {
	l, err := NewLayout(baseURL, indexPath)
	if err != nil {
		panic(err)
	}
	return l
}

// BaseURL returns the site root with a trailing slash.
func (l Layout) BaseURL() string { return l.base }

// IndexURL returns the author index page.
func (l Layout) IndexURL() string { return l.base + l.indexPath }

// PoetRoot returns the prefix every poet listing URL starts with.
func (l Layout) PoetRoot() string { return l.base + PoetPathPrefix }

// PoetURL returns the first listing page of a poet.
func (l Layout) PoetURL(slug string) string { return l.PoetRoot() + slug + "/" }

// PoetSlugPattern captures the slug of a poet listing URL.
func (l Layout) PoetSlugPattern() *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(l.PoetRoot()) + `([^/]+)/`)
}

// PoemLinkPattern captures the poem and fable detail links of one poet.
func (l Layout) PoemLinkPattern(slug string) *regexp.Regexp {
	prefix := regexp.QuoteMeta(l.base + slug + "/")
	return regexp.MustCompile(`<a\s+href="(` + prefix + `(?:poeme|fable)-[^"]*?\.php)"\s*>`)
}
