package event

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/songledger/songledger/pkg/dispatch"
	"github.com/songledger/songledger/pkg/queue"
)

type envelope struct {
	ctx     context.Context
	event   Event
	payload any
}

// Bus fans published events out to subscriptions through per-route
// dispatchers. A single goroutine drains the publish queue, so deliveries to
// any one dispatcher keep publish order.
type Bus struct {
	logger zerolog.Logger

	mu          sync.RWMutex
	subscribers map[Type][]*Subscription
	dispatchers map[Route]dispatch.Dispatcher

	pending   *queue.FIFO[envelope]
	startOnce sync.Once
	stopOnce  sync.Once
	drained   chan struct{}
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithLogger sets the bus logger.
func WithLogger(l zerolog.Logger) BusOption {
	return func(b *Bus) {
		b.logger = l
	}
}

// New creates a new event bus. Call Start before expecting deliveries.
func New(opts ...BusOption) *Bus {
	b := &Bus{
		logger:      log.Logger,
		subscribers: make(map[Type][]*Subscription),
		dispatchers: make(map[Route]dispatch.Dispatcher),
		pending:     queue.New[envelope](),
		drained:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With().Str("component", "event").Logger()
	return b
}

// RegisterDispatcher binds route to d. A later registration replaces an
// earlier one.
func (b *Bus) RegisterDispatcher(route Route, d dispatch.Dispatcher) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.dispatchers[route]; ok {
		b.logger.Debug().Str("route", route.String()).Msg("Replacing dispatcher")
	}
	b.dispatchers[route] = d
}

// Subscribe registers h for events of type t, delivered on route.
func (b *Bus) Subscribe(t Type, route Route, h Handler, opts ...SubscribeOption) *Subscription {
	sub := newSubscription(t, route, h, opts)

	b.mu.Lock()
	b.subscribers[t] = append(b.subscribers[t], sub)
	b.mu.Unlock()

	b.logger.Debug().
		Str("event", t.String()).
		Str("route", route.String()).
		Str("group", sub.Group.String()).
		Str("subscription", sub.ID).
		Msg("Subscribed")
	return sub
}

// Unsubscribe removes sub. Unknown or nil subscriptions are ignored.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[sub.Type]
	for i, s := range subs {
		if s == sub {
			b.subscribers[sub.Type] = slices.Delete(slices.Clone(subs), i, i+1)
			return
		}
	}
}

// Publish enqueues an event and returns immediately. Handlers receive a
// context that keeps ctx's values but not its cancellation.
func (b *Bus) Publish(ctx context.Context, ev Event, payload any) {
	if ctx == nil {
		ctx = context.Background()
	}
	env := envelope{ctx: context.WithoutCancel(ctx), event: ev, payload: payload}
	if !b.pending.Push(env) {
		b.logger.Warn().Str("event", ev.String()).Msg("Bus stopped, dropping event")
	}
}

// Start launches the delivery goroutine. Calling it again has no effect.
func (b *Bus) Start() {
	b.startOnce.Do(func() {
		go b.run()
	})
}

// StopAllDispatchers delivers everything already published, then stops every
// registered dispatcher in route order. Worker dispatchers drain their own
// queues before returning, so on return all accepted work has run.
func (b *Bus) StopAllDispatchers() {
	b.stopOnce.Do(func() {
		b.Start()
		b.pending.Close()
		<-b.drained

		b.mu.RLock()
		routes := make([]Route, 0, len(b.dispatchers))
		for r := range b.dispatchers {
			routes = append(routes, r)
		}
		slices.Sort(routes)
		ds := make([]dispatch.Dispatcher, len(routes))
		for i, r := range routes {
			ds[i] = b.dispatchers[r]
		}
		b.mu.RUnlock()

		for i, d := range ds {
			b.logger.Debug().Str("route", routes[i].String()).Msg("Stopping dispatcher")
			d.Stop()
		}
	})
}

// Describe renders the subscriber map, one line per subscription.
func (b *Bus) Describe() string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	types := make([]Type, 0, len(b.subscribers))
	for t := range b.subscribers {
		types = append(types, t)
	}
	slices.Sort(types)

	var sb strings.Builder
	for _, t := range types {
		subs := b.subscribers[t]
		if len(subs) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "%s\n", t)
		for _, s := range subs {
			group := s.Group.String()
			if group == "" {
				group = "*"
			}
			_, registered := b.dispatchers[s.Route]
			fmt.Fprintf(&sb, "  route=%s group=%s id=%s dispatcher=%t\n", s.Route, group, s.ID, registered)
		}
	}
	return sb.String()
}

func (b *Bus) run() {
	defer close(b.drained)
	for {
		env, ok := b.pending.Pop()
		if !ok {
			return
		}
		b.deliver(env)
	}
}

func (b *Bus) deliver(env envelope) {
	b.mu.RLock()
	subs := slices.Clone(b.subscribers[env.event.Type])
	b.mu.RUnlock()

	msg := Message{Event: env.event, Payload: env.payload}
	for _, sub := range subs {
		if !sub.Accepts(env.event) {
			continue
		}

		b.mu.RLock()
		d := b.dispatchers[sub.Route]
		b.mu.RUnlock()
		if d == nil {
			b.logger.Warn().
				Str("event", env.event.String()).
				Str("route", sub.Route.String()).
				Msg("No dispatcher registered for route, skipping subscriber")
			continue
		}

		h, ctx := sub.handler, env.ctx
		d.Dispatch(func() { h(ctx, msg) })
	}
}

func typeName(v any) string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%T", v)
}
