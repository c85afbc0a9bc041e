package ui

import (
	"context"
	"slices"

	"github.com/songledger/songledger/pkg/event"
	"github.com/songledger/songledger/pkg/record"
)

// View mirrors the visible rows of one group by applying the buffer's
// derived events. It is only touched from the UI loop.
type View struct {
	group   event.Group
	columns []string
	rows    []record.Record
	full    bool

	problems map[string]string
	onChange func(*View)
}

// NewView creates an empty view. columns name the record fields for display.
func NewView(group event.Group, columns []string) *View {
	return &View{group: group, columns: columns, full: true}
}

// OnChange registers fn to run after every applied event.
func (v *View) OnChange(fn func(*View)) { v.onChange = fn }

// Subscribe registers the view's handlers on route.
func (v *View) Subscribe(bus event.Subscriber, route event.Route) []*event.Subscription {
	g := event.WithGroup(v.group)
	return []*event.Subscription{
		bus.Subscribe(event.TypeFilteredRowsChanged, route, event.On(func(_ context.Context, _ event.Event, p event.FilteredRowsChanged) {
			v.Replace(p.Rows, p.IsFullDataset)
		}), g),
		bus.Subscribe(event.TypeRowInserted, route, event.On(func(_ context.Context, _ event.Event, p event.RowInserted) {
			v.Insert(p.Record, p.Index)
		}), g),
		bus.Subscribe(event.TypeRowHidden, route, event.On(func(_ context.Context, _ event.Event, p event.RowHidden) {
			v.Remove(p.ID)
		}), g),
		bus.Subscribe(event.TypeRecordsDeleted, route, event.On(func(_ context.Context, _ event.Event, p event.RecordsDeleted) {
			v.Remove(p.IDs...)
		}), g),
		bus.Subscribe(event.TypeValidationFailed, route, event.On(func(_ context.Context, _ event.Event, p event.ValidationFailed) {
			v.problems = p.Problems
			v.changed()
		}), g),
	}
}

// Replace swaps in a whole new set of rows.
func (v *View) Replace(rows []record.Record, full bool) {
	v.rows = rows
	v.full = full
	v.problems = nil
	v.changed()
}

// Insert splices rec in at index, replacing any row with the same key.
func (v *View) Insert(rec record.Record, index int) {
	v.rows = slices.DeleteFunc(v.rows, func(r record.Record) bool { return r.Key() == rec.Key() })
	index = max(0, min(index, len(v.rows)))
	v.rows = slices.Insert(v.rows, index, rec)
	v.problems = nil
	v.changed()
}

// Remove drops the rows with the given keys.
func (v *View) Remove(ids ...string) {
	before := len(v.rows)
	v.rows = slices.DeleteFunc(v.rows, func(r record.Record) bool { return slices.Contains(ids, r.Key()) })
	if len(v.rows) != before {
		v.changed()
	}
}

func (v *View) Group() event.Group { return v.group }
func (v *View) Columns() []string { return v.columns }
func (v *View) Rows() []record.Record { return v.rows }
func (v *View) IsFullDataset() bool { return v.full }
func (v *View) Problems() map[string]string { return v.problems }

func (v *View) changed() {
	if v.onChange != nil {
		v.onChange(v)
	}
}
