package poempage

import (
	"go.uber.org/zap"

	"github.com/djfrancesco/poesie-francaise-scraper/internal/corpus"
	"github.com/djfrancesco/poesie-francaise-scraper/internal/normalize"
	"github.com/djfrancesco/poesie-francaise-scraper/internal/site"
	"github.com/djfrancesco/poesie-francaise-scraper/internal/slug"
)

// Parser turns poem detail pages into corpus.Poem records.
type Parser struct {
	layout site.Layout
	logger *zap.Logger
}

// NewParser constructs a Parser for the given site layout.
func NewParser(layout site.Layout, logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{layout: layout, logger: logger}
}

// Parse extracts one poem. A missing required field returns a
// *corpus.ParseError and no record.
func (p *Parser) Parse(pageURL, poetSlug, markup string) (corpus.Poem, error) {
	logger := p.logger.With(zap.String("poet_slug", poetSlug), zap.String("url", pageURL))

	title, err := p.required(TitleField, markup, pageURL, logger, cleanInline)
	if err != nil {
		return corpus.Poem{}, err
	}
	logger = logger.With(zap.String("poem_title", title))

	author, err := p.required(AuthorField, markup, pageURL, logger, cleanInline)
	if err != nil {
		return corpus.Poem{}, err
	}
	collection, err := p.required(CollectionField, markup, pageURL, logger, cleanInline)
	if err != nil {
		return corpus.Poem{}, err
	}
	body, err := p.required(BodyField(p.layout, poetSlug), markup, pageURL, logger, func(raw string) string {
		return normalize.Text(lastParagraph(raw))
	})
	if err != nil {
		return corpus.Poem{}, err
	}

	return corpus.Poem{
		PoetSlug:   poetSlug,
		Title:      title,
		TitleSlug:  slug.Make(title),
		AuthorName: author,
		Collection: collection,
		Body:       body,
	}, nil
}

func (p *Parser) required(
	field Field,
	markup string,
	pageURL string,
	logger *zap.Logger,
	clean func(string) string,
) (string, error) {
	m := field.Extract(markup)
	if !m.Found() {
		return "", &corpus.ParseError{Field: field.Name, URL: pageURL}
	}
	if m.Ambiguous() {
		logger.Warn("field matched more than once, using the first match",
			zap.String("field", field.Name),
			zap.String("rule", m.Rule),
			zap.Int("matches", m.Count),
		)
	}
	value := clean(m.Value)
	if value == "" {
		return "", &corpus.ParseError{Field: field.Name, URL: pageURL}
	}
	return value, nil
}
