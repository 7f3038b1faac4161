// Package pagination walks the paginated poem listing of one poet.
package pagination

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/djfrancesco/poesie-francaise-scraper/internal/corpus"
	"github.com/djfrancesco/poesie-francaise-scraper/internal/site"
)

// State is the transient walk state of one poet.
type State struct {
	Visited       map[string]struct{}
	CurrentURL    string
	CurrentMarkup string
	MatchCount    int
	ExpectedCount int
}

// Result is what a walk produced.
type Result struct {
	// PoemURLs holds the poem links in first-seen order, without duplicates.
	PoemURLs []string
	// MatchCount counts every poem link match, duplicates included.
	MatchCount int
	// ExpectedCount is the number announced by the listing header, 0 if absent.
	ExpectedCount int
	// Pages is the number of listing pages read.
	Pages int
}

// Consistent reports whether the header agrees with the links found.
func (r Result) Consistent() bool { return r.MatchCount == r.ExpectedCount }

// Walker follows "next page" links until there are none left or a page
// repeats.
type Walker struct {
	fetcher corpus.Fetcher
	layout  site.Layout
	logger  *zap.Logger
}

// NewWalker wires a Walker.
func NewWalker(fetcher corpus.Fetcher, layout site.Layout, logger *zap.Logger) *Walker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Walker{fetcher: fetcher, layout: layout, logger: logger}
}

// Walk collects the poem links of a poet starting from an already fetched
// first page. On a fetch failure past the first page it returns the links
// gathered so far together with the error.
func (w *Walker) Walk(ctx context.Context, poet corpus.Poet, firstURL, firstMarkup string) (Result, error) {
	logger := w.logger.With(zap.String("poet_slug", poet.Slug))
	links := w.layout.PoemLinkPattern(poet.Slug)

	st := &State{
		Visited:       map[string]struct{}{firstURL: {}},
		CurrentURL:    firstURL,
		CurrentMarkup: firstMarkup,
		ExpectedCount: ExpectedCount(firstMarkup, poet.Name),
	}

	var res Result
	seen := make(map[string]struct{})
	for {
		res.Pages++
		for _, m := range links.FindAllStringSubmatch(st.CurrentMarkup, -1) {
			st.MatchCount++
			if _, dup := seen[m[1]]; dup {
				continue
			}
			seen[m[1]] = struct{}{}
			res.PoemURLs = append(res.PoemURLs, m[1])
		}

		next, ok := NextPageURL(st.CurrentURL, st.CurrentMarkup)
		if !ok {
			break
		}
		if _, done := st.Visited[next]; done {
			logger.Debug("next page already visited", zap.String("url", next))
			break
		}
		st.Visited[next] = struct{}{}

		if err := ctx.Err(); err != nil {
			return w.result(res, st), err
		}
		markup, err := w.fetcher.Fetch(ctx, next)
		if err != nil {
			return w.result(res, st), fmt.Errorf("listing page %d of %s: %w", res.Pages+1, poet.Slug, err)
		}
		logger.Debug("listing page fetched", zap.String("url", next), zap.Int("page", res.Pages+1))
		st.CurrentURL = next
		st.CurrentMarkup = markup
	}

	return w.result(res, st), nil
}

func (w *Walker) result(res Result, st *State) Result {
	res.MatchCount = st.MatchCount
	res.ExpectedCount = st.ExpectedCount
	return res
}

// NextPageURL finds the "next" anchor of the pagination block and resolves it
// against the page URL.
func NextPageURL(pageURL, markup string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", false
	}

	var href string
	doc.Find(site.NextPagesSelector + " a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if !site.NextLinkText.MatchString(a.Text()) {
			return true
		}
		href, _ = a.Attr("href")
		return false
	})
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	next := base.ResolveReference(ref)
	next.Fragment = ""
	return next.String(), true
}

// ExpectedCount reads the poem count announced by the listing header, e.g.
// "<h2>Les 42 poèmes de Victor Hugo :</h2>". It returns 0 when absent.
func ExpectedCount(markup, poetName string) int {
	m := headerPattern(poetName).FindStringSubmatch(markup)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return 0
	}
	return n
}

func headerPattern(poetName string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)<h2>(?:[^\n\d]*(\d+)\s*-\s*)?Les (\d+) (?:poèmes|fables|poèmes\s+et\s+fables) d[e']?.*?` +
		regexp.QuoteMeta(poetName) + `\s*:</h2>`)
}
