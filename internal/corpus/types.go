// Package corpus defines the records, collaborator interfaces and error
// taxonomy shared by every stage of the extraction pipeline.
package corpus

// Poet is one roster entry discovered on the author index page.
type Poet struct {
	Slug      string `json:"poet_slug"`
	Name      string `json:"poet_name"`
	BirthYear string `json:"poet_dob"`
	DeathYear string `json:"poet_dod"`
}

// Poem is one parsed poem page. Body holds the normalized plain text.
type Poem struct {
	PoetSlug   string `json:"poet_slug"`
	Title      string `json:"poem_title"`
	TitleSlug  string `json:"poem_slug"`
	AuthorName string `json:"poet_name"`
	Collection string `json:"poem_book"`
	Body       string `json:"poem_text"`
}

// Table names and column layouts used by every Sink implementation.
const (
	PoetsTable = "poets"
	PoemsTable = "poems"
)

// PoetColumns lists the poets table columns in storage order.
var PoetColumns = []string{"poet_slug", "poet_name", "poet_dob", "poet_dod"}

// PoemColumns lists the poems table columns in storage order.
var PoemColumns = []string{"poet_slug", "poem_title", "poem_slug", "poet_name", "poem_book", "poem_text"}

// Row returns the poet as a row matching PoetColumns.
func (p Poet) Row() []any {
	return []any{p.Slug, p.Name, p.BirthYear, p.DeathYear}
}

// Row returns the poem as a row matching PoemColumns.
func (p Poem) Row() []any {
	return []any{p.PoetSlug, p.Title, p.TitleSlug, p.AuthorName, p.Collection, p.Body}
}
