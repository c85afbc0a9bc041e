package event

import "github.com/google/uuid"

// Subscription is one registration of a handler. It is immutable once
// returned by Subscribe and doubles as the unsubscribe token.
type Subscription struct {
	ID    string
	Type  Type
	Route Route
	Group Group

	handler Handler
}

func newSubscription(t Type, route Route, h Handler, opts []SubscribeOption) *Subscription {
	s := &Subscription{
		ID:      uuid.NewString(),
		Type:    t,
		Route:   route,
		handler: h,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Accepts reports whether a publish of ev should reach this subscription.
// Ungrouped subscriptions see every group; grouped ones see ungrouped
// publishes and their own group only.
//
// This is wider than exact group matching: the store and the audit log
// subscribe once without a group and rely on receiving every table's
// grouped publishes.
func (s *Subscription) Accepts(ev Event) bool {
	if ev.Type != s.Type {
		return false
	}
	if ev.Group == GroupNone || s.Group == GroupNone {
		return true
	}
	return ev.Group == s.Group
}

// SubscribeOption configures a subscription.
type SubscribeOption func(*Subscription)

// WithGroup restricts a subscription to publishes of group g.
func WithGroup(g Group) SubscribeOption {
	return func(s *Subscription) {
		s.Group = g
	}
}
