package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songledger/songledger/pkg/dispatch"
	"github.com/songledger/songledger/pkg/event"
)

func TestSubscribe_SaveAndDelete(t *testing.T) {
	s, _ := openTestStore(t)

	bus := event.New(event.WithLogger(zerolog.Nop()))
	bus.RegisterDispatcher(event.RouteStore, dispatch.NewWorker("store", dispatch.WithWorkerLogger(zerolog.Nop())))
	bus.RegisterDispatcher(event.RouteCommon, dispatch.NewWorker("common", dispatch.WithWorkerLogger(zerolog.Nop())))
	s.Subscribe(bus, event.RouteStore)

	var mu sync.Mutex
	var upserts []event.Message
	var failures []event.Message
	collect := func(dst *[]event.Message) event.Handler {
		return func(_ context.Context, msg event.Message) {
			mu.Lock()
			*dst = append(*dst, msg)
			mu.Unlock()
		}
	}
	bus.Subscribe(event.TypeRecordUpserted, event.RouteCommon, collect(&upserts))
	bus.Subscribe(event.TypeValidationFailed, event.RouteCommon, collect(&failures))
	bus.Start()

	ctx := context.Background()
	bus.Publish(ctx, event.Of(event.TypeSaveRequested).In(event.GroupSongs), event.SaveRequested{
		Fields: map[string]string{"artist": "Alpha", "title": "One", "duration": "4:00"},
	})
	bus.Publish(ctx, event.Of(event.TypeSaveRequested).In(event.GroupSongs), event.SaveRequested{
		Fields: map[string]string{"artist": "", "title": "Two"},
	})
	bus.Publish(ctx, event.Of(event.TypeSaveRequested).In(event.GroupSongs), event.SaveRequested{
		Fields: map[string]string{"artist": "Gamma", "title": "Three"},
	})
	bus.Publish(ctx, event.Of(event.TypeRecordsDeleted).In(event.GroupSongs), event.RecordsDeleted{IDs: []string{"1"}})

	// the store publishes from its own worker; give the bus a moment to
	// accept those before draining everything
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(upserts) == 2 && len(failures) == 1
	}, 2*time.Second, 10*time.Millisecond)
	bus.StopAllDispatchers()

	require.Len(t, upserts, 2)
	assert.Equal(t, event.Of(event.TypeRecordUpserted).In(event.GroupSongs), upserts[0].Event)
	assert.Equal(t, "1", upserts[0].Payload.(event.RecordUpserted).Record.Key())
	assert.Equal(t, "Gamma", upserts[1].Payload.(event.RecordUpserted).Record[1])

	failed := failures[0].Payload.(event.ValidationFailed)
	assert.Contains(t, failed.Problems, "artist")
	assert.Equal(t, event.GroupSongs, failures[0].Event.Group)

	rows, err := s.Rows(ctx, event.GroupSongs)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2", rows[0].Key())
}
