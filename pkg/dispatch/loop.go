package dispatch

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Loop hands tasks to a cooperative event loop through its Poster.
// It owns no goroutine, so Stop does nothing.
type Loop struct {
	poster Poster
	logger zerolog.Logger
}

// LoopOption configures a Loop dispatcher.
type LoopOption func(*Loop)

// WithLoopLogger sets the logger used when a posted task panics.
func WithLoopLogger(l zerolog.Logger) LoopOption {
	return func(d *Loop) {
		d.logger = l
	}
}

// NewLoop wraps p.
func NewLoop(p Poster, opts ...LoopOption) *Loop {
	d := &Loop{poster: p, logger: log.Logger}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With().Str("component", "dispatch").Str("worker", "loop").Logger()
	return d
}

// Dispatch posts task to the loop and returns immediately.
func (d *Loop) Dispatch(task Task) {
	if task == nil {
		return
	}
	logger := d.logger
	d.poster.Post(func() { runTask(logger, task) })
}

// Stop is a no-op; the loop's lifetime belongs to its owner.
func (d *Loop) Stop() {}
