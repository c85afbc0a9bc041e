package store

import (
	"context"
	"errors"

	"github.com/songledger/songledger/pkg/event"
)

// Subscribe wires the store to bus on route. Save requests are validated and
// persisted, then announced as RecordUpserted (or ValidationFailed) in the
// same group; deletions are applied to the group's table.
func (s *Store) Subscribe(bus event.EventBus, route event.Route) []*event.Subscription {
	s.mu.Lock()
	s.bus = bus
	s.mu.Unlock()

	return []*event.Subscription{
		bus.Subscribe(event.TypeSaveRequested, route, event.On(s.onSaveRequested)),
		bus.Subscribe(event.TypeRecordsDeleted, route, event.On(s.onRecordsDeleted)),
	}
}

func (s *Store) onSaveRequested(ctx context.Context, ev event.Event, p event.SaveRequested) {
	rec, err := s.Save(ctx, ev.Group, p.Fields)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			s.logger.Info().Str("table", verr.Table).Interface("problems", verr.Problems).Msg("Rejected save request")
			s.publish(ctx, event.Of(event.TypeValidationFailed).In(ev.Group), event.ValidationFailed{
				Fields:   p.Fields,
				Problems: verr.Problems,
			})
			return
		}
		s.logger.Error().Err(err).Str("group", ev.Group.String()).Msg("Failed to save row")
		s.publish(ctx, event.Of(event.TypeValidationFailed).In(ev.Group), event.ValidationFailed{
			Fields:   p.Fields,
			Problems: map[string]string{"row": err.Error()},
		})
		return
	}
	s.logger.Debug().Str("group", ev.Group.String()).Str("id", rec.Key()).Msg("Row saved")
	s.publish(ctx, event.Of(event.TypeRecordUpserted).In(ev.Group), event.RecordUpserted{Record: rec})
}

func (s *Store) onRecordsDeleted(ctx context.Context, ev event.Event, p event.RecordsDeleted) {
	n, err := s.Delete(ctx, ev.Group, p.IDs)
	if err != nil {
		s.logger.Error().Err(err).Str("group", ev.Group.String()).Msg("Failed to delete rows")
		return
	}
	s.logger.Debug().Str("group", ev.Group.String()).Int64("deleted", n).Msg("Rows deleted")
}

func (s *Store) publish(ctx context.Context, ev event.Event, payload any) {
	s.mu.Lock()
	bus := s.bus
	s.mu.Unlock()
	if bus != nil {
		bus.Publish(ctx, ev, payload)
	}
}
