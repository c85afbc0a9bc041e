// pkg/event/event.go
// Package event provides a routed publish-subscribe bus. Publishers never
// block; each subscription's handler runs on the dispatcher registered for
// the subscription's route.
package event

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Event is the routing envelope of a publish: what happened and, optionally,
// to which group it belongs.
type Event struct {
	Type  Type
	Group Group
}

// Of returns an ungrouped event of type t.
func Of(t Type) Event { return Event{Type: t} }

// In returns a copy of e scoped to g.
func (e Event) In(g Group) Event {
	e.Group = g
	return e
}

func (e Event) String() string {
	if e.Group == GroupNone {
		return e.Type.String()
	}
	return e.Type.String() + "@" + e.Group.String()
}

// Message is what a handler receives.
type Message struct {
	Event   Event
	Payload any
}

// Handler handles one delivered message.
type Handler func(ctx context.Context, msg Message)

// On adapts a handler that expects a payload of type T. Messages carrying any
// other payload type are logged and skipped.
func On[T any](fn func(ctx context.Context, ev Event, payload T)) Handler {
	return func(ctx context.Context, msg Message) {
		p, ok := msg.Payload.(T)
		if !ok {
			log.Warn().
				Str("component", "event").
				Str("event", msg.Event.String()).
				Str("payload", typeName(msg.Payload)).
				Msg("Unexpected payload type, skipping handler")
			return
		}
		fn(ctx, msg.Event, p)
	}
}

// Publisher is the producer side of the bus.
type Publisher interface {
	Publish(ctx context.Context, ev Event, payload any)
}

// Subscriber is the consumer side of the bus.
type Subscriber interface {
	Subscribe(t Type, route Route, h Handler, opts ...SubscribeOption) *Subscription
	Unsubscribe(sub *Subscription)
}

// EventBus defines the interface for an event system.
type EventBus interface {
	Publisher
	Subscriber
}
