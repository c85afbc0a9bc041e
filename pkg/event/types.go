package event

import (
	"fmt"
	"strings"
)

// Type identifies what happened. The set is closed; handlers switch on it.
type Type int

const (
	TypeSearchTermChanged Type = iota + 1
	TypeSortChanged
	TypeRecordsDeleted
	TypeRecordUpserted
	TypeFilteredRowsChanged
	TypeRowInserted
	TypeRowHidden
	TypeSaveRequested
	TypeValidationFailed
)

var typeNames = map[Type]string{
	TypeSearchTermChanged:   "search_term_changed",
	TypeSortChanged:         "sort_changed",
	TypeRecordsDeleted:      "records_deleted",
	TypeRecordUpserted:      "record_upserted",
	TypeFilteredRowsChanged: "filtered_rows_changed",
	TypeRowInserted:         "row_inserted",
	TypeRowHidden:           "row_hidden",
	TypeSaveRequested:       "save_requested",
	TypeValidationFailed:    "validation_failed",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// Group scopes an event to one logical table. GroupNone means unscoped.
type Group int

const (
	GroupNone Group = iota
	GroupSongs
	GroupReport
)

// Groups lists every concrete group, in display order.
func Groups() []Group {
	return []Group{GroupSongs, GroupReport}
}

// String returns the group name, which doubles as its table name.
func (g Group) String() string {
	switch g {
	case GroupSongs:
		return "songs"
	case GroupReport:
		return "report"
	case GroupNone:
		return ""
	}
	return fmt.Sprintf("group(%d)", int(g))
}

// ParseGroup maps a table name back to its Group.
func ParseGroup(s string) (Group, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "songs", "song":
		return GroupSongs, nil
	case "report", "reports":
		return GroupReport, nil
	case "", "none":
		return GroupNone, nil
	}
	return GroupNone, fmt.Errorf("unknown table %q", s)
}

// Route names the execution context a subscriber runs in. Each route has
// exactly one dispatcher registered on the bus.
type Route int

const (
	RouteUI Route = iota
	RouteTable
	RouteStore
	RouteCommon
)

func (r Route) String() string {
	switch r {
	case RouteUI:
		return "ui"
	case RouteTable:
		return "table"
	case RouteStore:
		return "store"
	case RouteCommon:
		return "common"
	}
	return fmt.Sprintf("route(%d)", int(r))
}
