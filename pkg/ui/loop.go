// Package ui is the terminal front end: a cooperative event loop that owns
// all view state, the views themselves, and a line-oriented console.
package ui

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/songledger/songledger/pkg/queue"
)

// Loop runs posted functions one at a time on the goroutine that calls Run.
// Anything touching views must go through Post.
type Loop struct {
	tasks    *queue.FIFO[func()]
	quit     chan struct{}
	quitOnce sync.Once
	logger   zerolog.Logger
}

// NewLoop creates an idle loop.
func NewLoop(logger ...zerolog.Logger) *Loop {
	l := log.Logger
	if len(logger) > 0 {
		l = logger[0]
	}
	return &Loop{
		tasks:  queue.New[func()](),
		quit:   make(chan struct{}),
		logger: l.With().Str("component", "ui.loop").Logger(),
	}
}

// Post schedules fn. It never blocks and may be called from any goroutine.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.tasks.Push(fn)
}

// Run processes posted functions until ctx is cancelled or Quit is called.
// Functions already posted when it stops are run before it returns.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Debug().Msg("Loop running")
	for {
		select {
		case <-ctx.Done():
			l.Drain()
			return ctx.Err()
		case <-l.quit:
			l.Drain()
			return nil
		case <-l.tasks.Ready():
			l.Drain()
		}
	}
}

// Drain runs every function currently queued and returns how many ran.
// Run calls it; tests and shutdown code call it directly.
func (l *Loop) Drain() int {
	n := 0
	for {
		fn, ok := l.tasks.TryPop()
		if !ok {
			return n
		}
		fn()
		n++
	}
}

// Quit makes Run return after draining. Safe to call more than once.
func (l *Loop) Quit() {
	l.quitOnce.Do(func() { close(l.quit) })
}

// Done is closed once Quit has been called.
func (l *Loop) Done() <-chan struct{} {
	return l.quit
}
