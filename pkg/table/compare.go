package table

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// ColumnKind decides how the values of a column compare.
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindInteger
	KindDuration
	KindDate
)

func (k ColumnKind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindDuration:
		return "duration"
	case KindDate:
		return "date"
	default:
		return "text"
	}
}

// ParseColumnKind parses the names produced by ColumnKind.String.
func ParseColumnKind(s string) (ColumnKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "":
		return KindText, nil
	case "integer", "int":
		return KindInteger, nil
	case "duration", "time":
		return KindDuration, nil
	case "date":
		return KindDate, nil
	}
	return KindText, fmt.Errorf("unknown column kind %q", s)
}

// DefaultColumnKinds maps the column names of the songs and report tables to
// their comparison kind. Columns not listed compare as text.
func DefaultColumnKinds() map[string]ColumnKind {
	return map[string]ColumnKind{
		"id":             KindInteger,
		"play_count":     KindInteger,
		"duration":       KindDuration,
		"play_duration":  KindDuration,
		"total_duration": KindDuration,
		"time":           KindDuration,
		"date":           KindDate,
	}
}

// sortValue is a column value decoded once for comparison. inf marks values
// that could not be decoded; they order after every decodable value.
type sortValue struct {
	inf  bool
	num  int64
	text string
}

var infinity = sortValue{inf: true}

// decode turns a raw field into a sortValue. ok is false when the field could
// not be parsed for kind.
func decode(kind ColumnKind, raw string, folder cases.Caser) (sortValue, bool) {
	switch kind {
	case KindInteger:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return infinity, false
		}
		return sortValue{num: n}, true
	case KindDuration:
		secs, err := ParseDuration(raw)
		if err != nil {
			return infinity, false
		}
		return sortValue{num: secs}, true
	case KindDate:
		// YYYY-MM-DD orders correctly as plain text
		return sortValue{text: strings.TrimSpace(raw)}, true
	default:
		return sortValue{text: folder.String(raw)}, true
	}
}

func compareValues(kind ColumnKind, a, b sortValue) int {
	switch {
	case a.inf && b.inf:
		return 0
	case a.inf:
		return 1
	case b.inf:
		return -1
	}
	if kind == KindInteger || kind == KindDuration {
		return cmp.Compare(a.num, b.num)
	}
	return strings.Compare(a.text, b.text)
}

// compareIDs orders keys by numeric id ascending. Keys that are not integers
// sort after all numeric ones, then by plain text. The result never depends on
// the sort direction.
func compareIDs(a, b string) int {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		if c := cmp.Compare(na, nb); c != 0 {
			return c
		}
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}

// ParseDuration converts "H:MM:SS", "MM:SS" or "SS" into seconds.
func ParseDuration(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	var total int64
	for _, p := range parts {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		total = total*60 + int64(n)
	}
	return total, nil
}
