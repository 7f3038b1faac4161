// Package normalize turns the raw markup of a poem body into plain text.
//
// The steps run in a fixed order:
//  1. every indentation span (class "decalageN") becomes exactly N spaces;
//  2. the fragment is serialized back to markup;
//  3. line-break elements become newlines;
//  4. spaces before a semicolon are dropped (a typographic habit of the site);
//  5. runs of blank lines collapse into a single blank line;
//  6. remaining tags are stripped.
//
// The result keeps &, < and > escaped, exactly as the serialized markup had
// them, so feeding the output back through Text returns it unchanged.
package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// IndentClassPrefix is the class prefix the site uses for indentation spans.
const IndentClassPrefix = "decalage"

// MaxIndent bounds the width of a single indentation marker. Wider markers are
// treated as unparsable and left alone.
const MaxIndent = 1024

var (
	indentClass    = regexp.MustCompile(`^` + IndentClassPrefix + `(\d+)$`)
	lineBreak      = regexp.MustCompile(`(?i)<br\s*/?>`)
	spaceSemicolon = regexp.MustCompile(` +;`)
	blankLines     = regexp.MustCompile(`\n\s*\n`)
	markupTag      = regexp.MustCompile(`<[^>]*>`)
	carriageReturn = strings.NewReplacer("\r\n", "\n", "\r", "\n")
	textEscaper    = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
)

// Text normalizes a poem body fragment. It never fails: a fragment that cannot
// be parsed skips indentation reconstruction and goes through the textual steps.
func Text(fragment string) string {
	markup, err := reindent(fragment)
	if err != nil {
		markup = fragment
	}

	text := lineBreak.ReplaceAllString(markup, "\n")
	text = spaceSemicolon.ReplaceAllString(text, ";")
	text = blankLines.ReplaceAllString(text, "\n\n")
	text = markupTag.ReplaceAllString(text, "")

	return finish(text)
}

// finish decodes entities and re-applies the whitespace rules that tag
// stripping or decoding may have re-exposed.
func finish(text string) string {
	text = html.UnescapeString(text)
	text = carriageReturn.Replace(text)
	text = textEscaper.Replace(text)
	text = blankLines.ReplaceAllString(text, "\n\n")
	text = spaceSemicolon.ReplaceAllString(text, ";")
	return strings.TrimSpace(text)
}

// reindent parses the fragment, swaps indentation spans for spaces and
// serializes the body back to markup.
func reindent(fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", err
	}

	doc.Find("span[class]").Each(func(_ int, s *goquery.Selection) {
		width, ok := IndentWidth(s.AttrOr("class", ""))
		if !ok {
			return
		}
		if width == 0 {
			s.Remove()
			return
		}
		s.ReplaceWithNodes(&html.Node{Type: html.TextNode, Data: strings.Repeat(" ", width)})
	})

	return doc.Find("body").Html()
}

// IndentWidth returns N for a class attribute carrying a "decalageN" token.
func IndentWidth(class string) (int, bool) {
	for _, token := range strings.Fields(class) {
		m := indentClass.FindStringSubmatch(token)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n > MaxIndent {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
