package importer

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/songledger/songledger/pkg/event"
)

// DefaultDebounce coalesces the burst of events editors produce on save.
const DefaultDebounce = 200 * time.Millisecond

// Watcher re-imports a seed file whenever it is written or recreated.
type Watcher struct {
	path     string
	pub      event.Publisher
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   zerolog.Logger

	mu    sync.Mutex
	timer *time.Timer
	ctx   context.Context
	// imports counts completed re-imports
	imports int
}

// NewWatcher creates a watcher for the seed at path. A non-positive debounce
// uses DefaultDebounce.
func NewWatcher(path string, pub event.Publisher, debounce time.Duration, logger zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		path:     path,
		pub:      pub,
		watcher:  fw,
		debounce: debounce,
		logger:   logger.With().Str("component", "importer.watcher").Logger(),
	}, nil
}

// Start watches until ctx is cancelled. Run it in its own goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	// fsnotify watches directories; filter on the file name below
	dir := filepath.Dir(w.path)
	name := filepath.Base(w.path)

	if err := w.watcher.Add(dir); err != nil {
		w.logger.Error().Err(err).Str("dir", dir).Msg("Failed to watch seed directory")
		return err
	}

	w.mu.Lock()
	w.ctx = ctx
	w.mu.Unlock()

	w.logger.Info().Str("file", w.path).Dur("debounce", w.debounce).Msg("Watching seed file")
	defer func() {
		w.stopTimer()
		if err := w.watcher.Close(); err != nil {
			w.logger.Warn().Err(err).Msg("Error closing watcher")
		}
		w.logger.Info().Msg("Stopped watching seed file")
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.logger.Debug().Str("op", ev.Op.String()).Msg("Seed file changed")
				w.schedule()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("File watcher error")
		}
	}
}

// Imports returns how many re-imports have completed.
func (w *Watcher) Imports() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.imports
}

// Close stops the watcher without waiting for Start to return.
func (w *Watcher) Close() error {
	w.stopTimer()
	return w.watcher.Close()
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reimport)
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

func (w *Watcher) reimport() {
	seed, err := Load(w.path)
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to reload seed")
		return
	}

	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	n := Publish(ctx, w.pub, seed)
	w.mu.Lock()
	w.imports++
	w.mu.Unlock()
	w.logger.Info().Int("rows", n).Msg("Seed re-imported")
}
