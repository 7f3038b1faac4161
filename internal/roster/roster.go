// Package roster parses the author index page into the poet roster.
package roster

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/djfrancesco/poesie-francaise-scraper/internal/corpus"
	"github.com/djfrancesco/poesie-francaise-scraper/internal/site"
)

// labelPattern matches "Name (birth-death)". Anything else is not a poet.
var labelPattern = regexp.MustCompile(`^(.+?) \((\d+)-(\d+)\)`)

// Parser extracts poets from the author index.
type Parser struct {
	slugPattern *regexp.Regexp
	logger      *zap.Logger
}

// NewParser returns a Parser bound to the layout's poet URL prefix.
func NewParser(layout site.Layout, logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{slugPattern: layout.PoetSlugPattern(), logger: logger}
}

// Parse returns the poets in document order. Duplicates are kept. Items
// without a poet link or a dated label are skipped.
func (p *Parser) Parse(markup string) ([]corpus.Poet, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse index page: %w", err)
	}

	var poets []corpus.Poet
	skipped := 0
	doc.Find(site.RosterListSelector).Each(func(_ int, list *goquery.Selection) {
		list.Find("li").Each(func(_ int, item *goquery.Selection) {
			poet, ok := p.entry(item)
			if !ok {
				skipped++
				return
			}
			poets = append(poets, poet)
		})
	})

	p.logger.Debug("roster parsed", zap.Int("poets", len(poets)), zap.Int("skipped", skipped))
	return poets, nil
}

func (p *Parser) entry(item *goquery.Selection) (corpus.Poet, bool) {
	link := item.Find("a[href]").First()
	if link.Length() == 0 {
		return corpus.Poet{}, false
	}
	href, _ := link.Attr("href")
	m := p.slugPattern.FindStringSubmatch(strings.TrimSpace(href))
	if m == nil {
		return corpus.Poet{}, false
	}
	label := labelPattern.FindStringSubmatch(strings.TrimSpace(link.Text()))
	if label == nil {
		return corpus.Poet{}, false
	}
	return corpus.Poet{
		Slug:      m[1],
		Name:      strings.TrimSpace(label[1]),
		BirthYear: label[2],
		DeathYear: label[3],
	}, true
}
