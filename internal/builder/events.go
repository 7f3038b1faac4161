package builder

import (
	"strconv"
	"time"
)

// PoetEvent is published once a poet's poems are stored.
type PoetEvent struct {
	RunID        string    `json:"run_id"`
	PoetSlug     string    `json:"poet_slug"`
	PoetName     string    `json:"poet_name"`
	Pages        int       `json:"pages"`
	Stored       int       `json:"stored"`
	Skipped      int       `json:"skipped"`
	Expected     int       `json:"expected"`
	Matched      int       `json:"matched"`
	FinishedAt   time.Time `json:"finished_at"`
	ElapsedMilli int64     `json:"elapsed_ms"`
}

// Attributes are copied to the message attributes by the Pub/Sub publisher.
func (e PoetEvent) Attributes() map[string]string {
	return map[string]string{
		"event":      "poet_finished",
		"run_id":     e.RunID,
		"poet_slug":  e.PoetSlug,
		"consistent": strconv.FormatBool(e.Expected == e.Matched),
	}
}

// Summary totals one run.
type Summary struct {
	RunID         string        `json:"run_id"`
	Poets         int           `json:"poets"`
	PoetsSkipped  int           `json:"poets_skipped"`
	Poems         int           `json:"poems"`
	PoemsSkipped  int           `json:"poems_skipped"`
	Mismatches    int           `json:"mismatches"`
	Elapsed       time.Duration `json:"elapsed"`
	PoetsInRoster int           `json:"poets_in_roster"`
}
