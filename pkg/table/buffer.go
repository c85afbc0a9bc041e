// Package table keeps a keyed record set sorted and filtered as records come
// and go, and publishes the minimal change a view needs to stay in sync.
//
// A Buffer is not safe for concurrent use. In the running application every
// call reaches it through the table route's single worker.
package table

import (
	"cmp"
	"context"
	"slices"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"

	"github.com/songledger/songledger/pkg/event"
	"github.com/songledger/songledger/pkg/record"
)

const DefaultMaxHistory = 10

// Entry is one keyed record handed to Load.
type Entry struct {
	Key    string
	Record record.Record
}

// HistoryEntry caches the keys that matched a filter term, in sorted order.
type HistoryEntry struct {
	Term string
	Keys []string
}

// Buffer is the keyed live buffer of one group.
type Buffer struct {
	group      event.Group
	bus        event.Publisher
	logger     zerolog.Logger
	kinds      map[string]ColumnKind
	maxHistory int
	folder     cases.Caser

	records    map[string]record.Record
	seq        map[string]uint64
	nextSeq    uint64
	sortedKeys []string
	sortKey    record.SortKey
	// ordered is false when the active sort key could not be applied and the
	// buffer fell back to natural order.
	ordered    bool
	filterTerm string
	history    []HistoryEntry
}

// Option configures a Buffer.
type Option func(*Buffer)

// WithMaxHistory bounds the filter history cache. Values below 1 are ignored.
func WithMaxHistory(n int) Option {
	return func(b *Buffer) {
		if n > 0 {
			b.maxHistory = n
		}
	}
}

// WithColumnKinds overrides the comparison kind of the named columns.
func WithColumnKinds(kinds map[string]ColumnKind) Option {
	return func(b *Buffer) {
		for name, k := range kinds {
			b.kinds[name] = k
		}
	}
}

// WithLogger sets the buffer logger.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Buffer) {
		b.logger = l
	}
}

// WithSortKey sets the sort key applied by Load.
func WithSortKey(k record.SortKey) Option {
	return func(b *Buffer) {
		b.sortKey = k
	}
}

// New creates an empty buffer publishing its derived events for group on bus.
func New(bus event.Publisher, group event.Group, opts ...Option) *Buffer {
	b := &Buffer{
		group:      group,
		bus:        bus,
		logger:     log.Logger,
		kinds:      DefaultColumnKinds(),
		maxHistory: DefaultMaxHistory,
		folder:     cases.Fold(),
		records:    make(map[string]record.Record),
		seq:        make(map[string]uint64),
		ordered:    true,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With().Str("component", "table").Str("group", group.String()).Logger()
	return b
}

// Subscribe registers the buffer's handlers on route, scoped to its group.
func (b *Buffer) Subscribe(bus event.Subscriber, route event.Route) []*event.Subscription {
	g := event.WithGroup(b.group)
	return []*event.Subscription{
		bus.Subscribe(event.TypeSearchTermChanged, route, event.On(func(ctx context.Context, _ event.Event, p event.SearchTermChanged) {
			b.FilterData(ctx, p.Term)
		}), g),
		bus.Subscribe(event.TypeSortChanged, route, event.On(func(ctx context.Context, _ event.Event, p event.SortChanged) {
			b.SortData(ctx, p.Key)
		}), g),
		bus.Subscribe(event.TypeRecordsDeleted, route, event.On(func(ctx context.Context, _ event.Event, p event.RecordsDeleted) {
			b.DeleteItems(ctx, p.IDs)
		}), g),
		bus.Subscribe(event.TypeRecordUpserted, route, event.On(func(ctx context.Context, _ event.Event, p event.RecordUpserted) {
			b.UpdateItem(ctx, p.Record)
		}), g),
	}
}

// Load replaces the record set. Entry order is the natural order. The
// configured sort key is applied without publishing anything.
func (b *Buffer) Load(entries ...Entry) {
	b.records = make(map[string]record.Record, len(entries))
	b.seq = make(map[string]uint64, len(entries))
	b.nextSeq = 0
	for _, e := range entries {
		if _, dup := b.records[e.Key]; !dup {
			b.seq[e.Key] = b.nextSeq
			b.nextSeq++
		}
		b.records[e.Key] = e.Record.Clone()
	}
	b.filterTerm = ""
	b.history = nil
	b.resort()
}

// LoadRecords is Load for records keyed by their first field.
func (b *Buffer) LoadRecords(recs []record.Record) {
	entries := make([]Entry, 0, len(recs))
	for _, r := range recs {
		if len(r) == 0 {
			b.logger.Warn().Msg("Skipping empty record")
			continue
		}
		entries = append(entries, Entry{Key: r.Key(), Record: r})
	}
	b.Load(entries...)
}

// SortData makes key the authoritative order, clears the history and
// republishes the filtered projection under the current term.
func (b *Buffer) SortData(ctx context.Context, key record.SortKey) {
	b.sortKey = key
	b.resort()
	b.history = nil
	b.FilterData(ctx, b.filterTerm)
}

// FilterData applies term and publishes the matching rows. A cached result for
// a prefix of term narrows the scan.
func (b *Buffer) FilterData(ctx context.Context, term string) {
	term = b.normalize(term)
	b.filterTerm = term

	base := b.sortedKeys
	for i := len(b.history) - 1; i >= 0; i-- {
		if strings.HasPrefix(term, b.history[i].Term) {
			base = b.history[i].Keys
			break
		}
	}

	keys := make([]string, 0, len(base))
	rows := make([]record.Record, 0, len(base))
	for _, k := range base {
		r, ok := b.records[k]
		if !ok {
			continue
		}
		if b.matches(r, term) {
			keys = append(keys, k)
			rows = append(rows, r.Clone())
		}
	}

	b.publish(ctx, event.TypeFilteredRowsChanged, event.FilteredRowsChanged{
		Rows:          rows,
		IsFullDataset: term == "",
	})

	b.history = append(b.history, HistoryEntry{Term: term, Keys: keys})
	if over := len(b.history) - b.maxHistory; over > 0 {
		b.history = slices.Delete(b.history, 0, over)
	}
}

// UpdateItem inserts or replaces rec, keyed by its first field, at its sorted
// position. Views get the row with its index in the filtered view, or a
// hidden notice when the row does not pass the current filter.
func (b *Buffer) UpdateItem(ctx context.Context, rec record.Record) {
	if len(rec) == 0 {
		b.logger.Warn().Msg("Ignoring update with empty record")
		return
	}
	key := rec.Key()
	rec = rec.Clone()

	if _, ok := b.seq[key]; !ok {
		b.seq[key] = b.nextSeq
		b.nextSeq++
	}
	b.records[key] = rec

	oldPos := slices.Index(b.sortedKeys, key)
	if oldPos >= 0 {
		b.sortedKeys = slices.Delete(b.sortedKeys, oldPos, oldPos+1)
	}

	var pos int
	if b.sorted() {
		pos = b.insertionIndex(key, rec)
	} else if oldPos >= 0 {
		pos = oldPos
	} else {
		pos = len(b.sortedKeys)
	}
	b.sortedKeys = slices.Insert(b.sortedKeys, pos, key)
	b.history = nil

	if !b.matches(rec, b.filterTerm) {
		b.publish(ctx, event.TypeRowHidden, event.RowHidden{ID: key})
		return
	}
	b.publish(ctx, event.TypeRowInserted, event.RowInserted{
		Record: rec.Clone(),
		Index:  b.viewIndex(pos),
	})
}

// DeleteItems drops ids from the record set and the sorted order. Unknown ids
// are ignored. History is always cleared.
func (b *Buffer) DeleteItems(_ context.Context, ids []string) {
	gone := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := b.records[id]; ok {
			gone[id] = struct{}{}
			delete(b.records, id)
			delete(b.seq, id)
		}
	}
	if len(gone) > 0 {
		b.sortedKeys = slices.DeleteFunc(b.sortedKeys, func(k string) bool {
			_, ok := gone[k]
			return ok
		})
	}
	b.history = nil
}

// SortedKeys returns a copy of the authoritative order.
func (b *Buffer) SortedKeys() []string { return slices.Clone(b.sortedKeys) }

// Rows returns every record in sorted order.
func (b *Buffer) Rows() []record.Record {
	out := make([]record.Record, 0, len(b.sortedKeys))
	for _, k := range b.sortedKeys {
		out = append(out, b.records[k].Clone())
	}
	return out
}

// Visible returns the records passing the current filter, in sorted order.
func (b *Buffer) Visible() []record.Record {
	out := make([]record.Record, 0, len(b.sortedKeys))
	for _, k := range b.sortedKeys {
		if r := b.records[k]; b.matches(r, b.filterTerm) {
			out = append(out, r.Clone())
		}
	}
	return out
}

// Get returns the record stored under key.
func (b *Buffer) Get(key string) (record.Record, bool) {
	r, ok := b.records[key]
	return r.Clone(), ok
}

// History returns a copy of the filter history, oldest first.
func (b *Buffer) History() []HistoryEntry {
	out := make([]HistoryEntry, len(b.history))
	for i, h := range b.history {
		out[i] = HistoryEntry{Term: h.Term, Keys: slices.Clone(h.Keys)}
	}
	return out
}

func (b *Buffer) SortKey() record.SortKey { return b.sortKey }
func (b *Buffer) FilterTerm() string { return b.filterTerm }
func (b *Buffer) Len() int { return len(b.records) }
func (b *Buffer) Group() event.Group { return b.group }

func (b *Buffer) sorted() bool {
	return b.ordered && b.sortKey.Direction != record.Unsorted
}

func (b *Buffer) kind() ColumnKind {
	return b.kinds[b.sortKey.Name]
}

// resort rebuilds sortedKeys from scratch under the current sort key.
func (b *Buffer) resort() {
	keys := make([]string, 0, len(b.records))
	for k := range b.records {
		keys = append(keys, k)
	}

	b.ordered = true
	if b.sortKey.Direction == record.Unsorted {
		b.naturalOrder(keys)
		return
	}

	col := b.sortKey.Column
	for _, k := range keys {
		if col < 0 || col >= len(b.records[k]) {
			b.logger.Warn().
				Int("column", col).
				Str("key", k).
				Msg("Sort column out of range, falling back to natural order")
			b.ordered = false
			b.naturalOrder(keys)
			return
		}
	}

	kind := b.kind()
	values := make(map[string]sortValue, len(keys))
	bad := 0
	for _, k := range keys {
		v, ok := decode(kind, b.records[k][col], b.folder)
		if !ok {
			bad++
		}
		values[k] = v
	}
	if bad > 0 {
		b.logger.Warn().
			Int("count", bad).
			Str("column", b.sortKey.String()).
			Msg("Unparsable sort values moved to the end")
	}

	dir := int(b.sortKey.Direction)
	slices.SortFunc(keys, func(x, y string) int {
		if c := compareValues(kind, values[x], values[y]) * dir; c != 0 {
			return c
		}
		return compareIDs(x, y)
	})
	b.sortedKeys = keys
}

func (b *Buffer) naturalOrder(keys []string) {
	slices.SortFunc(keys, func(x, y string) int {
		return cmp.Compare(b.seq[x], b.seq[y])
	})
	b.sortedKeys = keys
}

// insertionIndex finds where key belongs in sortedKeys by binary search.
func (b *Buffer) insertionIndex(key string, rec record.Record) int {
	kind := b.kind()
	dir := int(b.sortKey.Direction)
	v := b.valueOf(kind, key, rec)
	return sort.Search(len(b.sortedKeys), func(i int) bool {
		other := b.sortedKeys[i]
		c := compareValues(kind, v, b.valueOf(kind, other, b.records[other])) * dir
		if c == 0 {
			c = compareIDs(key, other)
		}
		return c < 0
	})
}

func (b *Buffer) valueOf(kind ColumnKind, key string, rec record.Record) sortValue {
	raw, ok := rec.Field(b.sortKey.Column)
	if !ok {
		b.logger.Warn().Str("key", key).Int("column", b.sortKey.Column).Msg("Record too short for sort column")
		return infinity
	}
	v, _ := decode(kind, raw, b.folder)
	return v
}

// viewIndex converts a position in sortedKeys into a position among the rows
// visible under the current filter.
func (b *Buffer) viewIndex(pos int) int {
	if b.filterTerm == "" {
		return pos
	}
	n := 0
	for _, k := range b.sortedKeys[:pos] {
		if b.matches(b.records[k], b.filterTerm) {
			n++
		}
	}
	return n
}

func (b *Buffer) normalize(term string) string {
	return b.folder.String(strings.TrimSpace(term))
}

func (b *Buffer) matches(rec record.Record, term string) bool {
	if term == "" {
		return true
	}
	for _, f := range rec {
		if strings.Contains(b.folder.String(f), term) {
			return true
		}
	}
	return false
}

func (b *Buffer) publish(ctx context.Context, t event.Type, payload any) {
	if b.bus == nil {
		return
	}
	b.bus.Publish(ctx, event.Of(t).In(b.group), payload)
}
