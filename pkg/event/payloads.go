package event

import "github.com/songledger/songledger/pkg/record"

// SearchTermChanged asks a buffer to filter by Term.
type SearchTermChanged struct {
	Term string
}

// SortChanged asks a buffer to reorder by Key.
type SortChanged struct {
	Key record.SortKey
}

// RecordsDeleted removes IDs from every consumer of the group.
type RecordsDeleted struct {
	IDs []string
}

// RecordUpserted carries the authoritative state of one record after a save.
type RecordUpserted struct {
	Record record.Record
}

// FilteredRowsChanged replaces the visible rows. IsFullDataset is true when
// no filter is applied.
type FilteredRowsChanged struct {
	Rows          []record.Record
	IsFullDataset bool
}

// RowInserted places Record at Index of the filtered view.
type RowInserted struct {
	Record record.Record
	Index  int
}

// RowHidden tells views that ID no longer matches the active filter.
type RowHidden struct {
	ID string
}

// SaveRequested asks the store to persist a row given by column name.
// An empty or missing "id" creates a new row.
type SaveRequested struct {
	Fields map[string]string
}

// ValidationFailed reports which fields of a SaveRequested were rejected.
type ValidationFailed struct {
	Fields   map[string]string
	Problems map[string]string
}
