// Package poempage extracts poem records from poem detail pages.
//
// Each field is described by an ordered list of rules. The first rule that
// matches wins; later rules are fallbacks. Extraction never panics or returns
// an error: absence is reported through Match.Found.
package poempage

import (
	"html"
	"regexp"
	"strings"

	"github.com/djfrancesco/poesie-francaise-scraper/internal/site"
)

// Field names as they appear in logs and ParseErrors.
const (
	FieldTitle      = "title"
	FieldAuthor     = "author"
	FieldCollection = "collection"
	FieldBody       = "body"
)

// Rule is one extraction pattern. The first capture group is the value.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

// Field is an ordered rule list for one value of a poem page.
type Field struct {
	Name  string
	Rules []Rule
}

// Match is the outcome of extracting a Field.
type Match struct {
	// Value is the first capture of the winning rule, trimmed.
	Value string
	// Count is how many times the winning rule matched the page.
	Count int
	// Rule names the winning rule; empty when nothing matched.
	Rule string
}

// Found reports whether any rule matched.
func (m Match) Found() bool { return m.Rule != "" }

// Ambiguous reports whether the winning rule matched more than once.
func (m Match) Ambiguous() bool { return m.Count > 1 }

// Extract applies the rules in order against the page markup.
func (f Field) Extract(markup string) Match {
	for _, rule := range f.Rules {
		matches := rule.Pattern.FindAllStringSubmatch(markup, -1)
		if len(matches) == 0 {
			continue
		}
		return Match{
			Value: strings.TrimSpace(matches[0][1]),
			Count: len(matches),
			Rule:  rule.Name,
		}
	}
	return Match{}
}

var (
	// TitleField reads "<h2>Titre : …</h2>".
	TitleField = Field{Name: FieldTitle, Rules: []Rule{{
		Name:    "title-heading",
		Pattern: regexp.MustCompile(`(?s)<h2>` + regexp.QuoteMeta(site.TitleLabel) + `(.*?)</h2>`),
	}}}

	// AuthorField reads "<h3>Poète : <a href="…">name</a>".
	AuthorField = Field{Name: FieldAuthor, Rules: []Rule{{
		Name:    "poet-heading",
		Pattern: regexp.MustCompile(`(?s)<h3>` + regexp.QuoteMeta(site.PoetLabel) + `<a href=".*?">(.*?)</a>`),
	}}}

	// CollectionField reads the linked collection, falling back to the plain
	// text line that ends with a period.
	CollectionField = Field{Name: FieldCollection, Rules: []Rule{
		{
			Name:    "collection-link",
			Pattern: regexp.MustCompile(`(?s)` + regexp.QuoteMeta(site.CollectionLabel) + `<a href=".*?">(.*?)</a>`),
		},
		{
			Name: "collection-text",
			Pattern: regexp.MustCompile(`(?s)` + regexp.QuoteMeta(site.CollectionContainer) +
				regexp.QuoteMeta(site.CollectionLabel) + `(.*?)\.</p>`),
		},
	}}
)

// BodyField reads the paragraph right before the link back to the poet page.
func BodyField(layout site.Layout, poetSlug string) Field {
	back := regexp.QuoteMeta(layout.PoetURL(poetSlug))
	return Field{Name: FieldBody, Rules: []Rule{{
		Name:    "paragraph-before-poet-link",
		Pattern: regexp.MustCompile(`(?s)<p>(.*?)</p>\s*<a href="` + back + `">`),
	}}}
}

var markupTag = regexp.MustCompile(`<[^>]*>`)

// cleanInline turns a heading capture into display text.
func cleanInline(raw string) string {
	s := markupTag.ReplaceAllString(raw, "")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// lastParagraph keeps what follows the last "<p>" of a lazy capture. The lazy
// body pattern starts at the first paragraph of the page; the poem is the one
// that closes right before the poet link.
func lastParagraph(raw string) string {
	if i := strings.LastIndex(raw, "<p>"); i >= 0 {
		return raw[i+len("<p>"):]
	}
	return raw
}
