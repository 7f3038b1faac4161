package poempage

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/djfrancesco/poesie-francaise-scraper/internal/corpus"
	"github.com/djfrancesco/poesie-francaise-scraper/internal/site"
)

const poemURL = "https://www.poesie-francaise.fr/victor-hugo/poeme-demain-des-l-aube.php"

const poemPage = `<html><body>
<div class="w3-container">
<p>Retour à l'accueil</p>
<h2>Titre : Demain, dès l&#39;aube...</h2>
<h3>Poète : <a href="https://www.poesie-francaise.fr/poemes-victor-hugo/">Victor Hugo</a> (1802-1885)</h3>
<div class="w3-margin-bottom">Recueil : <a href="https://www.poesie-francaise.fr/victor-hugo/recueil-les-contemplations.php">Les contemplations</a> (1856).</div>
<p>Demain, dès l'aube, à l'heure où blanchit la campagne,<br />
<span class="decalage4"></span>Je partirai ; vois-tu, je sais que tu m'attends.</p>
<a href="https://www.poesie-francaise.fr/poemes-victor-hugo/">Victor Hugo</a>
</div>
</body></html>`

func newTestParser(t *testing.T) (*Parser, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	return NewParser(site.MustLayout(site.DefaultBaseURL, site.DefaultIndexPath), zap.New(core)), logs
}

func TestParseFullPage(t *testing.T) {
	t.Parallel()

	p, logs := newTestParser(t)
	poem, err := p.Parse(poemURL, "victor-hugo", poemPage)
	require.NoError(t, err)

	assert.Equal(t, corpus.Poem{
		PoetSlug:   "victor-hugo",
		Title:      "Demain, dès l'aube...",
		TitleSlug:  "demain-des-l-aube",
		AuthorName: "Victor Hugo",
		Collection: "Les contemplations",
		Body: "Demain, dès l'aube, à l'heure où blanchit la campagne,\n\n" +
			"    Je partirai; vois-tu, je sais que tu m'attends.",
	}, poem)
	assert.Zero(t, logs.Len())
}

func TestParseMissingTitleIsParseError(t *testing.T) {
	t.Parallel()

	p, _ := newTestParser(t)
	page := strings.Replace(poemPage, "<h2>Titre : Demain, dès l&#39;aube...</h2>", "<h2>Sans titre</h2>", 1)

	_, err := p.Parse(poemURL, "victor-hugo", page)
	require.Error(t, err)
	require.True(t, corpus.IsParseError(err))
	require.True(t, errors.Is(err, corpus.ErrFieldMissing))

	var pe *corpus.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, FieldTitle, pe.Field)
	assert.Equal(t, poemURL, pe.URL)
}

func TestParseMissingRequiredFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		old   string
		new   string
		field string
	}{
		{
			name:  "author",
			old:   "<h3>Poète : ",
			new:   "<h3>Auteur : ",
			field: FieldAuthor,
		},
		{
			name:  "collection",
			old:   "Recueil : ",
			new:   "Livre : ",
			field: FieldCollection,
		},
		{
			name:  "body",
			old:   "</p>\n<a href=\"https://www.poesie-francaise.fr/poemes-victor-hugo/\">",
			new:   "</p>\n<a href=\"https://www.poesie-francaise.fr/autre/\">",
			field: FieldBody,
		},
		{
			name:  "empty title",
			old:   "Titre : Demain, dès l&#39;aube...",
			new:   "Titre : <i></i>",
			field: FieldTitle,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, _ := newTestParser(t)
			page := strings.Replace(poemPage, tt.old, tt.new, 1)
			require.NotEqual(t, poemPage, page)

			_, err := p.Parse(poemURL, "victor-hugo", page)
			var pe *corpus.ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.field, pe.Field)
		})
	}
}

func TestParseCollectionFallback(t *testing.T) {
	t.Parallel()

	p, _ := newTestParser(t)
	page := strings.Replace(poemPage,
		`<div class="w3-margin-bottom">Recueil : <a href="https://www.poesie-francaise.fr/victor-hugo/recueil-les-contemplations.php">Les contemplations</a> (1856).</div>`,
		`<div class="w3-margin-bottom">Recueil : Poèmes divers (1830).</p>`,
		1)

	poem, err := p.Parse(poemURL, "victor-hugo", page)
	require.NoError(t, err)
	assert.Equal(t, "Poèmes divers (1830)", poem.Collection)
}

func TestParseDuplicateMatchesWarnAndUseFirst(t *testing.T) {
	t.Parallel()

	p, logs := newTestParser(t)
	page := strings.Replace(poemPage, "</h2>", "</h2>\n<h2>Titre : Un autre titre</h2>", 1)

	poem, err := p.Parse(poemURL, "victor-hugo", page)
	require.NoError(t, err)
	assert.Equal(t, "Demain, dès l'aube...", poem.Title)

	warnings := logs.FilterMessage("field matched more than once, using the first match").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, FieldTitle, warnings[0].ContextMap()["field"])
	assert.EqualValues(t, 2, warnings[0].ContextMap()["matches"])
}

func TestParseBodyIgnoresEarlierParagraphs(t *testing.T) {
	t.Parallel()

	p, _ := newTestParser(t)
	poem, err := p.Parse(poemURL, "victor-hugo", poemPage)
	require.NoError(t, err)
	assert.NotContains(t, poem.Body, "Retour")
	assert.NotContains(t, poem.Body, "Titre")
}

func TestFieldExtractRuleOrder(t *testing.T) {
	t.Parallel()

	both := `Recueil : <a href="x">Lié</a> <div class="w3-margin-bottom">Recueil : Texte.</p>`
	m := CollectionField.Extract(both)
	require.True(t, m.Found())
	assert.Equal(t, "collection-link", m.Rule)
	assert.Equal(t, "Lié", m.Value)

	textOnly := `<div class="w3-margin-bottom">Recueil : Texte seul.</p>`
	m = CollectionField.Extract(textOnly)
	require.True(t, m.Found())
	assert.Equal(t, "collection-text", m.Rule)
	assert.Equal(t, "Texte seul", m.Value)

	m = CollectionField.Extract("<p>rien</p>")
	assert.False(t, m.Found())
	assert.Equal(t, Match{}, m)
}

func TestBodyFieldIsScopedToPoet(t *testing.T) {
	t.Parallel()

	layout := site.MustLayout(site.DefaultBaseURL, site.DefaultIndexPath)
	markup := "<p>vers</p>\n<a href=\"https://www.poesie-francaise.fr/poemes-hugo/\">Hugo</a>"

	assert.True(t, BodyField(layout, "hugo").Extract(markup).Found())
	assert.False(t, BodyField(layout, "baudelaire").Extract(markup).Found())
}
