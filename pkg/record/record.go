// Package record holds the value types shared by the live buffer, the store
// and the UI: a record is an ordered list of display fields whose first
// field is its identity.
package record

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Record is one row. Field 0 is the key.
type Record []string

// Key returns the record identity, or "" for an empty record.
func (r Record) Key() string {
	if len(r) == 0 {
		return ""
	}
	return r[0]
}

// Clone returns a copy that shares no storage with r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	copy(out, r)
	return out
}

// Field returns field i, or false when the record is too short.
func (r Record) Field(i int) (string, bool) {
	if i < 0 || i >= len(r) {
		return "", false
	}
	return r[i], true
}

// Direction is the sort direction of a SortKey.
type Direction int

const (
	Descending Direction = -1
	Unsorted   Direction = 0
	Ascending  Direction = 1
)

func (d Direction) String() string {
	switch d {
	case Ascending:
		return "asc"
	case Descending:
		return "desc"
	default:
		return "none"
	}
}

// ParseDirection accepts asc/desc/none and their numeric forms.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascending", "1", "+1", "":
		return Ascending, nil
	case "desc", "descending", "-1":
		return Descending, nil
	case "none", "natural", "0":
		return Unsorted, nil
	}
	return Unsorted, fmt.Errorf("invalid sort direction %q", s)
}

// SortKey selects a column and a direction. Name is the column name, which
// decides how values compare.
type SortKey struct {
	Column    int
	Name      string
	Direction Direction
}

// NaturalOrder is the zero sort key: insertion order, no comparison.
var NaturalOrder = SortKey{}

func (k SortKey) String() string {
	if k.Direction == Unsorted {
		return "natural"
	}
	name := k.Name
	if name == "" {
		name = strconv.Itoa(k.Column)
	}
	return name + ":" + k.Direction.String()
}

// ParseSortKey parses "column[:direction]" against the given column names.
// An empty string is NaturalOrder.
func ParseSortKey(s string, columns []string) (SortKey, error) {
	if strings.TrimSpace(s) == "" {
		return NaturalOrder, nil
	}
	name, dir, _ := strings.Cut(s, ":")
	name = strings.ToLower(strings.TrimSpace(name))
	idx := slices.Index(columns, name)
	if idx < 0 {
		return SortKey{}, fmt.Errorf("unknown column %q (columns: %s)", name, strings.Join(columns, ", "))
	}
	d, err := ParseDirection(dir)
	if err != nil {
		return SortKey{}, err
	}
	return SortKey{Column: idx, Name: name, Direction: d}, nil
}
