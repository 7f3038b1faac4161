package store

import (
	"fmt"
	"strings"

	"github.com/djfrancesco/poesie-francaise-scraper/internal/corpus"
)

// Table is a named column layout. Every column is text.
type Table struct {
	Name    string
	Columns []string
}

// Corpus tables.
var (
	Poets = Table{Name: corpus.PoetsTable, Columns: corpus.PoetColumns}
	Poems = Table{Name: corpus.PoemsTable, Columns: corpus.PoemColumns}
)

// CreateSQL returns the CREATE TABLE statement. ifNotExists guards appends
// against a missing table.
func (t Table) CreateSQL(ifNotExists bool) string {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = c + " TEXT"
	}
	guard := ""
	if ifNotExists {
		guard = "IF NOT EXISTS "
	}
	return fmt.Sprintf("CREATE TABLE %s%s (%s)", guard, t.Name, strings.Join(cols, ", "))
}

// DropSQL returns the DROP TABLE IF EXISTS statement.
func (t Table) DropSQL() string {
	return "DROP TABLE IF EXISTS " + t.Name
}

// InsertSQL returns an INSERT statement with placeholders produced by ph,
// called with the 1-based column position.
func (t Table) InsertSQL(ph func(int) string) string {
	marks := make([]string, len(t.Columns))
	for i := range t.Columns {
		marks[i] = ph(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.Name, strings.Join(t.Columns, ", "), strings.Join(marks, ", "))
}

// SelectSQL returns a SELECT of every column.
func (t Table) SelectSQL() string {
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(t.Columns, ", "), t.Name)
}

// PoetRows converts poets to rows in column order.
func PoetRows(poets []corpus.Poet) [][]any {
	rows := make([][]any, len(poets))
	for i, p := range poets {
		rows[i] = p.Row()
	}
	return rows
}

// PoemRows converts poems to rows in column order.
func PoemRows(poems []corpus.Poem) [][]any {
	rows := make([][]any, len(poems))
	for i, p := range poems {
		rows[i] = p.Row()
	}
	return rows
}
