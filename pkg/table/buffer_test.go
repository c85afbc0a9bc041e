package table

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songledger/songledger/pkg/dispatch"
	"github.com/songledger/songledger/pkg/event"
	"github.com/songledger/songledger/pkg/record"
)

type recordingBus struct {
	msgs []event.Message
}

func (r *recordingBus) Publish(_ context.Context, ev event.Event, payload any) {
	r.msgs = append(r.msgs, event.Message{Event: ev, Payload: payload})
}

func (r *recordingBus) last(t *testing.T) event.Message {
	t.Helper()
	require.NotEmpty(t, r.msgs)
	return r.msgs[len(r.msgs)-1]
}

var byDuration = record.SortKey{Column: 2, Name: "duration", Direction: record.Ascending}

func newBuffer(bus event.Publisher, opts ...Option) *Buffer {
	opts = append([]Option{WithLogger(zerolog.Nop())}, opts...)
	return New(bus, event.GroupSongs, opts...)
}

func songs() []record.Record {
	return []record.Record{
		{"1", "Alpha", "5:36"},
		{"2", "Beta", "3:12"},
		{"3", "Gamma", "4:00"},
	}
}

func keysOf(rows []record.Record) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Key()
	}
	return out
}

func TestSortData_ByDuration(t *testing.T) {
	bus := &recordingBus{}
	b := newBuffer(bus)
	b.Load(
		Entry{Key: "1", Record: record.Record{"Alpha", "5:36"}},
		Entry{Key: "2", Record: record.Record{"Beta", "3:12"}},
		Entry{Key: "3", Record: record.Record{"Gamma", "4:00"}},
	)

	b.SortData(context.Background(), record.SortKey{Column: 1, Name: "duration", Direction: record.Ascending})

	assert.Equal(t, []string{"2", "3", "1"}, b.SortedKeys())
	msg := bus.last(t)
	assert.Equal(t, event.Of(event.TypeFilteredRowsChanged).In(event.GroupSongs), msg.Event)
	p := msg.Payload.(event.FilteredRowsChanged)
	assert.True(t, p.IsFullDataset)
	assert.Equal(t, []record.Record{{"Beta", "3:12"}, {"Gamma", "4:00"}, {"Alpha", "5:36"}}, p.Rows)
}

func TestFilterData_AfterSort(t *testing.T) {
	bus := &recordingBus{}
	b := newBuffer(bus)
	b.Load(
		Entry{Key: "1", Record: record.Record{"Alpha", "5:36"}},
		Entry{Key: "2", Record: record.Record{"Beta", "3:12"}},
		Entry{Key: "3", Record: record.Record{"Gamma", "4:00"}},
	)
	b.SortData(context.Background(), record.SortKey{Column: 1, Name: "duration", Direction: record.Ascending})

	b.FilterData(context.Background(), "al")

	p := bus.last(t).Payload.(event.FilteredRowsChanged)
	assert.False(t, p.IsFullDataset)
	assert.Equal(t, []record.Record{{"Alpha", "5:36"}}, p.Rows)
	assert.Equal(t, "al", b.FilterTerm())
}

func TestUpdateItem_InsertsAtFront(t *testing.T) {
	bus := &recordingBus{}
	b := newBuffer(bus)
	b.LoadRecords(songs())
	b.SortData(context.Background(), byDuration)

	b.UpdateItem(context.Background(), record.Record{"4", "Delta", "1:00"})

	assert.Equal(t, []string{"4", "2", "3", "1"}, b.SortedKeys())
	msg := bus.last(t)
	assert.Equal(t, event.TypeRowInserted, msg.Event.Type)
	assert.Equal(t, event.RowInserted{Record: record.Record{"4", "Delta", "1:00"}, Index: 0}, msg.Payload)
	assert.Empty(t, b.History(), "insert clears history")
}

func TestUpdateItem_HiddenWhenFilteredOut(t *testing.T) {
	bus := &recordingBus{}
	b := newBuffer(bus)
	b.LoadRecords(songs())
	b.SortData(context.Background(), byDuration)
	b.FilterData(context.Background(), "al")

	b.UpdateItem(context.Background(), record.Record{"4", "Delta", "1:00"})

	msg := bus.last(t)
	assert.Equal(t, event.Of(event.TypeRowHidden).In(event.GroupSongs), msg.Event)
	assert.Equal(t, event.RowHidden{ID: "4"}, msg.Payload)
	assert.Equal(t, "4", b.SortedKeys()[0], "hidden rows keep their sorted position")
	for _, m := range bus.msgs {
		assert.NotEqual(t, event.TypeRowInserted, m.Event.Type)
	}
}

func TestUpdateItem_IndexWithinFilteredView(t *testing.T) {
	bus := &recordingBus{}
	b := newBuffer(bus)
	b.LoadRecords([]record.Record{
		{"1", "Alpha", "1:00"},
		{"2", "Beta", "2:00"},
		{"3", "Gamma", "3:00"},
		{"4", "Omega", "4:00"},
	})
	b.SortData(context.Background(), byDuration)
	b.FilterData(context.Background(), "ga")

	b.UpdateItem(context.Background(), record.Record{"5", "Saga", "3:30"})

	assert.Equal(t, []string{"1", "2", "3", "5", "4"}, b.SortedKeys())
	// visible: Gamma, Saga, Omega
	assert.Equal(t, event.RowInserted{Record: record.Record{"5", "Saga", "3:30"}, Index: 1}, bus.last(t).Payload)
}

func TestUpdateItem_MovesExistingRecord(t *testing.T) {
	bus := &recordingBus{}
	b := newBuffer(bus)
	b.LoadRecords(songs())
	b.SortData(context.Background(), byDuration)

	b.UpdateItem(context.Background(), record.Record{"2", "Beta", "9:00"})

	assert.Equal(t, []string{"3", "1", "2"}, b.SortedKeys())
	assert.Equal(t, 3, b.Len())
	got, ok := b.Get("2")
	require.True(t, ok)
	assert.Equal(t, record.Record{"2", "Beta", "9:00"}, got)
	assert.Equal(t, event.RowInserted{Record: record.Record{"2", "Beta", "9:00"}, Index: 2}, bus.last(t).Payload)
}

func TestUpdateItem_UnsortedKeepsPositionOrAppends(t *testing.T) {
	bus := &recordingBus{}
	b := newBuffer(bus)
	b.LoadRecords(songs())
	require.Equal(t, []string{"1", "2", "3"}, b.SortedKeys(), "natural order is load order")

	b.UpdateItem(context.Background(), record.Record{"2", "Zeta", "0:01"})
	assert.Equal(t, []string{"1", "2", "3"}, b.SortedKeys())
	assert.Equal(t, event.RowInserted{Record: record.Record{"2", "Zeta", "0:01"}, Index: 1}, bus.last(t).Payload)

	b.UpdateItem(context.Background(), record.Record{"0", "Aardvark", "0:01"})
	assert.Equal(t, []string{"1", "2", "3", "0"}, b.SortedKeys())
}

func TestUpdateItem_IgnoresEmptyRecord(t *testing.T) {
	bus := &recordingBus{}
	b := newBuffer(bus)
	b.UpdateItem(context.Background(), nil)
	assert.Zero(t, b.Len())
	assert.Empty(t, bus.msgs)
}

func TestUpdateItem_AlwaysRepublishes(t *testing.T) {
	bus := &recordingBus{}
	b := newBuffer(bus)
	b.LoadRecords(songs())
	b.SortData(context.Background(), byDuration)
	before := len(bus.msgs)

	b.UpdateItem(context.Background(), record.Record{"1", "Alpha", "5:36"})
	b.UpdateItem(context.Background(), record.Record{"1", "Alpha", "5:36"})

	assert.Len(t, bus.msgs, before+2)
}

func TestSortData_Descending(t *testing.T) {
	b := newBuffer(&recordingBus{})
	b.LoadRecords(songs())
	b.SortData(context.Background(), record.SortKey{Column: 2, Name: "duration", Direction: record.Descending})
	assert.Equal(t, []string{"1", "3", "2"}, b.SortedKeys())

	b.UpdateItem(context.Background(), record.Record{"4", "Delta", "1:00"})
	assert.Equal(t, []string{"1", "3", "2", "4"}, b.SortedKeys())
}

func TestSortData_TiesBrokenByNumericID(t *testing.T) {
	b := newBuffer(&recordingBus{})
	b.LoadRecords([]record.Record{
		{"10", "Same", "1:00"},
		{"9", "Same", "1:00"},
		{"x", "Same", "1:00"},
		{"2", "Same", "1:00"},
	})

	for _, dir := range []record.Direction{record.Ascending, record.Descending} {
		b.SortData(context.Background(), record.SortKey{Column: 1, Name: "title", Direction: dir})
		assert.Equal(t, []string{"2", "9", "10", "x"}, b.SortedKeys(), "direction %s", dir)
	}
}

func TestSortData_UnparsableSortsLast(t *testing.T) {
	b := newBuffer(&recordingBus{})
	b.LoadRecords([]record.Record{
		{"1", "A", "soon"},
		{"2", "B", "2:00"},
		{"3", "C", ""},
		{"4", "D", "1:00"},
	})
	b.SortData(context.Background(), byDuration)
	assert.Equal(t, []string{"4", "2", "1", "3"}, b.SortedKeys())

	b.UpdateItem(context.Background(), record.Record{"5", "E", "??"})
	assert.Equal(t, []string{"4", "2", "1", "3", "5"}, b.SortedKeys())
}

func TestSortData_IntegerColumn(t *testing.T) {
	b := newBuffer(&recordingBus{})
	b.LoadRecords([]record.Record{
		{"1", "10"},
		{"2", "9"},
		{"3", "100"},
	})
	b.SortData(context.Background(), record.SortKey{Column: 1, Name: "play_count", Direction: record.Ascending})
	assert.Equal(t, []string{"2", "1", "3"}, b.SortedKeys())
}

func TestSortData_TextIsCaseInsensitive(t *testing.T) {
	b := newBuffer(&recordingBus{})
	b.LoadRecords([]record.Record{
		{"1", "beta"},
		{"2", "Alpha"},
		{"3", "ALPHA"},
		{"4", "gamma"},
	})
	b.SortData(context.Background(), record.SortKey{Column: 1, Name: "title", Direction: record.Ascending})
	assert.Equal(t, []string{"2", "3", "1", "4"}, b.SortedKeys())
}

func TestSortData_ColumnOutOfRangeFallsBack(t *testing.T) {
	bus := &recordingBus{}
	b := newBuffer(bus)
	b.LoadRecords([]record.Record{
		{"3", "Gamma", "4:00"},
		{"1", "Alpha"},
		{"2", "Beta", "3:12"},
	})
	b.SortData(context.Background(), byDuration)

	assert.Equal(t, []string{"3", "1", "2"}, b.SortedKeys(), "natural order on fallback")
	assert.Equal(t, byDuration, b.SortKey())
	assert.Equal(t, event.TypeFilteredRowsChanged, bus.last(t).Event.Type)

	b.UpdateItem(context.Background(), record.Record{"0", "Zero", "0:01"})
	assert.Equal(t, []string{"3", "1", "2", "0"}, b.SortedKeys())
}

func TestSortData_ClearsHistoryAndKeepsTerm(t *testing.T) {
	bus := &recordingBus{}
	b := newBuffer(bus)
	b.LoadRecords(songs())
	b.FilterData(context.Background(), "a")
	b.FilterData(context.Background(), "al")
	require.Len(t, b.History(), 2)

	b.SortData(context.Background(), byDuration)

	h := b.History()
	require.Len(t, h, 1, "history holds only the re-filter")
	assert.Equal(t, "al", h[0].Term)
	assert.False(t, bus.last(t).Payload.(event.FilteredRowsChanged).IsFullDataset)
}

func TestFilterData_NormalizesTerm(t *testing.T) {
	bus := &recordingBus{}
	b := newBuffer(bus)
	b.LoadRecords(songs())

	b.FilterData(context.Background(), "  GAM ")
	assert.Equal(t, "gam", b.FilterTerm())
	assert.Equal(t, []string{"3"}, keysOf(bus.last(t).Payload.(event.FilteredRowsChanged).Rows))

	b.FilterData(context.Background(), "")
	p := bus.last(t).Payload.(event.FilteredRowsChanged)
	assert.True(t, p.IsFullDataset)
	assert.Len(t, p.Rows, 3)
}

func TestFilterData_UsesPrefixHistory(t *testing.T) {
	bus := &recordingBus{}
	b := newBuffer(bus)
	b.LoadRecords(songs())
	b.FilterData(context.Background(), "a")

	// a stale cache entry shows the narrowed base is what gets scanned
	b.history[len(b.history)-1].Keys = []string{"1"}
	b.FilterData(context.Background(), "al")
	assert.Equal(t, []string{"1"}, keysOf(bus.last(t).Payload.(event.FilteredRowsChanged).Rows))

	b.FilterData(context.Background(), "gam")
	assert.Equal(t, []string{"3"}, keysOf(bus.last(t).Payload.(event.FilteredRowsChanged).Rows))
}

func TestFilterData_MatchesBruteForce(t *testing.T) {
	bus := &recordingBus{}
	b := newBuffer(bus)
	data := dataset(60)
	b.LoadRecords(data)
	b.SortData(context.Background(), byDuration)

	for _, term := range []string{"", "a", "al", "alp", "s", "so", "song", "1", "12", "zzz", "Song 1", "3:"} {
		b.FilterData(context.Background(), term)
		got := keysOf(bus.last(t).Payload.(event.FilteredRowsChanged).Rows)

		want := bruteFilter(b.SortedKeys(), data, term)
		assert.Equal(t, want, got, "term %q", term)
	}
}

func TestHistory_Bounded(t *testing.T) {
	b := newBuffer(&recordingBus{}, WithMaxHistory(3))
	b.LoadRecords(songs())
	for _, term := range []string{"a", "b", "c", "d", "e"} {
		b.FilterData(context.Background(), term)
	}

	h := b.History()
	require.Len(t, h, 3)
	terms := []string{h[0].Term, h[1].Term, h[2].Term}
	assert.Equal(t, []string{"c", "d", "e"}, terms)
}

func TestHistory_DefaultCapacity(t *testing.T) {
	b := newBuffer(&recordingBus{})
	b.LoadRecords(songs())
	for i := 0; i < 25; i++ {
		b.FilterData(context.Background(), fmt.Sprint(i))
	}
	assert.Len(t, b.History(), DefaultMaxHistory)
}

func TestDeleteItems(t *testing.T) {
	bus := &recordingBus{}
	b := newBuffer(bus)
	b.LoadRecords(songs())
	b.SortData(context.Background(), byDuration)
	b.FilterData(context.Background(), "a")
	require.NotEmpty(t, b.History())

	b.DeleteItems(context.Background(), []string{"3", "missing"})

	assert.Equal(t, []string{"2", "1"}, b.SortedKeys())
	_, ok := b.Get("3")
	assert.False(t, ok)
	assert.Empty(t, b.History())

	b.DeleteItems(context.Background(), nil)
	assert.Empty(t, b.History(), "history cleared even when nothing is removed")
}

func TestIncrementalMatchesFullRecompute(t *testing.T) {
	ctx := context.Background()
	inc := newBuffer(&recordingBus{})
	data := dataset(40)
	inc.LoadRecords(data)
	inc.SortData(ctx, byDuration)
	inc.FilterData(ctx, "o")

	final := map[string]record.Record{}
	for _, r := range data {
		final[r.Key()] = r
	}
	updates := []record.Record{
		{"5", "Solo", "0:05"},
		{"41", "Encore", "12:00"},
		{"17", "Reprise", "bad"},
		{"3", "Overture", "3:33"},
		{"42", "Coda", "3:33"},
	}
	for _, u := range updates {
		inc.UpdateItem(ctx, u)
		final[u.Key()] = u
	}
	inc.DeleteItems(ctx, []string{"8", "41"})
	delete(final, "8")
	delete(final, "41")

	full := newBuffer(&recordingBus{})
	var recs []record.Record
	for _, r := range final {
		recs = append(recs, r)
	}
	full.LoadRecords(recs)
	full.SortData(ctx, byDuration)
	full.FilterData(ctx, "o")

	assert.Equal(t, full.SortedKeys(), inc.SortedKeys())

	inc.FilterData(ctx, "o")
	assert.Equal(t, keysOf(full.Visible()), keysOf(inc.Visible()))
	assertMonotonic(t, inc, byDuration)
}

func TestSortedKeysMonotonic(t *testing.T) {
	ctx := context.Background()
	b := newBuffer(&recordingBus{})
	b.LoadRecords(dataset(80))

	for _, key := range []record.SortKey{
		byDuration,
		{Column: 2, Name: "duration", Direction: record.Descending},
		{Column: 1, Name: "title", Direction: record.Ascending},
		{Column: 1, Name: "title", Direction: record.Descending},
		{Column: 0, Name: "id", Direction: record.Descending},
	} {
		b.SortData(ctx, key)
		assertMonotonic(t, b, key)
	}
}

func TestAccessorsReturnCopies(t *testing.T) {
	b := newBuffer(&recordingBus{})
	b.LoadRecords(songs())

	keys := b.SortedKeys()
	keys[0] = "mutated"
	rows := b.Rows()
	rows[0][1] = "mutated"

	assert.Equal(t, []string{"1", "2", "3"}, b.SortedKeys())
	got, _ := b.Get("1")
	assert.Equal(t, "Alpha", got[1])
}

func TestSubscribe_RoutesGroupEvents(t *testing.T) {
	bus := event.New(event.WithLogger(zerolog.Nop()))
	w := dispatch.NewWorker("table", dispatch.WithWorkerLogger(zerolog.Nop()))
	bus.RegisterDispatcher(event.RouteTable, w)

	b := New(bus, event.GroupSongs, WithLogger(zerolog.Nop()))
	b.LoadRecords(songs())
	subs := b.Subscribe(bus, event.RouteTable)
	require.Len(t, subs, 4)
	bus.Start()

	ctx := context.Background()
	bus.Publish(ctx, event.Of(event.TypeSortChanged).In(event.GroupSongs), event.SortChanged{Key: byDuration})
	bus.Publish(ctx, event.Of(event.TypeRecordUpserted).In(event.GroupReport), event.RecordUpserted{Record: record.Record{"9", "Other", "0:01"}})
	bus.Publish(ctx, event.Of(event.TypeRecordUpserted).In(event.GroupSongs), event.RecordUpserted{Record: record.Record{"4", "Delta", "1:00"}})
	bus.Publish(ctx, event.Of(event.TypeRecordsDeleted).In(event.GroupSongs), event.RecordsDeleted{IDs: []string{"1"}})
	bus.Publish(ctx, event.Of(event.TypeSearchTermChanged).In(event.GroupSongs), event.SearchTermChanged{Term: "ta"})
	bus.StopAllDispatchers()

	assert.Equal(t, []string{"4", "2", "3"}, b.SortedKeys())
	assert.Equal(t, "ta", b.FilterTerm())
	_, ok := b.Get("9")
	assert.False(t, ok, "other group's upsert must not reach this buffer")
}

func TestWithColumnKinds(t *testing.T) {
	b := newBuffer(&recordingBus{}, WithColumnKinds(map[string]ColumnKind{"rank": KindInteger}))
	b.LoadRecords([]record.Record{{"1", "10"}, {"2", "9"}})
	b.SortData(context.Background(), record.SortKey{Column: 1, Name: "rank", Direction: record.Ascending})
	assert.Equal(t, []string{"2", "1"}, b.SortedKeys())
}

func TestLoad_AppliesConfiguredSortKey(t *testing.T) {
	bus := &recordingBus{}
	b := newBuffer(bus, WithSortKey(byDuration))
	b.LoadRecords(songs())

	assert.Equal(t, []string{"2", "3", "1"}, b.SortedKeys())
	assert.Empty(t, bus.msgs, "Load does not publish")
	assert.Equal(t, event.GroupSongs, b.Group())
}

func dataset(n int) []record.Record {
	words := []string{"Alpha", "alpine", "Solo", "Song", "Salt", "Opus", "Gala"}
	out := make([]record.Record, 0, n)
	for i := 1; i <= n; i++ {
		dur := fmt.Sprintf("%d:%02d", (i*7)%6, (i*13)%60)
		if i%11 == 0 {
			dur = "n/a"
		}
		title := fmt.Sprintf("%s %d", words[i%len(words)], i%5)
		out = append(out, record.Record{fmt.Sprint(i), title, dur})
	}
	return out
}

func bruteFilter(order []string, data []record.Record, term string) []string {
	term = strings.ToLower(strings.TrimSpace(term))
	byKey := map[string]record.Record{}
	for _, r := range data {
		byKey[r.Key()] = r
	}
	out := []string{}
	for _, k := range order {
		if term == "" || slices.ContainsFunc(byKey[k], func(f string) bool {
			return strings.Contains(strings.ToLower(f), term)
		}) {
			out = append(out, k)
		}
	}
	return out
}

func assertMonotonic(t *testing.T, b *Buffer, key record.SortKey) {
	t.Helper()
	kind := b.kinds[key.Name]
	keys := b.SortedKeys()
	for i := 1; i < len(keys); i++ {
		prev, _ := b.Get(keys[i-1])
		cur, _ := b.Get(keys[i])
		pv, _ := decode(kind, prev[key.Column], b.folder)
		cv, _ := decode(kind, cur[key.Column], b.folder)
		c := compareValues(kind, pv, cv) * int(key.Direction)
		require.LessOrEqual(t, c, 0, "%s before %s under %s", keys[i-1], keys[i], key)
		if c == 0 {
			require.Equal(t, -1, compareIDs(keys[i-1], keys[i]), "tie %s/%s not ordered by id", keys[i-1], keys[i])
		}
	}
}
