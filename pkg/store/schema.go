package store

import (
	"fmt"
	"slices"

	"github.com/songledger/songledger/pkg/event"
)

// SchemaVersion is the version written to new databases. Databases with a
// greater major version are refused.
const SchemaVersion = "1.0.0"

// Table describes one backing table. Columns[0] is always "id".
type Table struct {
	Name     string
	Columns  []string
	Rules    map[string]string
	Defaults map[string]string
}

var songsTable = Table{
	Name:    "songs",
	Columns: []string{"id", "artist", "title", "duration", "composer", "lyricist", "label"},
	Rules: map[string]string{
		"id":       "omitempty,number",
		"artist":   "required",
		"title":    "required",
		"duration": "omitempty,duration",
	},
}

var reportTable = Table{
	Name: "report",
	Columns: []string{
		"id", "date", "time", "artist", "title", "play_duration", "total_duration",
		"composer", "lyricist", "program_name", "play_count", "genre", "label",
	},
	Rules: map[string]string{
		"id":             "omitempty,number",
		"date":           "required,isodate",
		"time":           "required,duration",
		"artist":         "required",
		"title":          "required",
		"play_duration":  "omitempty,duration",
		"total_duration": "omitempty,duration",
		"play_count":     "omitempty,number",
	},
	Defaults: map[string]string{
		"play_count": "1",
		"genre":      "song",
	},
}

// TableFor returns the table backing group g.
func TableFor(g event.Group) (Table, error) {
	switch g {
	case event.GroupSongs:
		return songsTable, nil
	case event.GroupReport:
		return reportTable, nil
	}
	return Table{}, fmt.Errorf("%w: %q", ErrUnknownTable, g.String())
}

// Index returns the position of column name, or -1.
func (t Table) Index(name string) int {
	return slices.Index(t.Columns, name)
}

// createStatements builds the DDL for every table.
func createStatements() []string {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, t := range []Table{songsTable, reportTable} {
		ddl := "CREATE TABLE IF NOT EXISTS " + t.Name + " (\n\t\t\tid INTEGER PRIMARY KEY AUTOINCREMENT"
		for _, c := range t.Columns[1:] {
			typ := "TEXT NOT NULL DEFAULT ''"
			if c == "play_count" {
				typ = "INTEGER NOT NULL DEFAULT 1"
			}
			ddl += ",\n\t\t\t" + c + " " + typ
		}
		ddl += "\n\t\t)"
		stmts = append(stmts, ddl)
	}
	return stmts
}
