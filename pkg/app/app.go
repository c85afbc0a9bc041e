// pkg/app/app.go

// Package app wires the event bus, its dispatchers, the store, the live
// buffers and the UI views into one runtime and owns their shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/songledger/songledger/pkg/config"
	"github.com/songledger/songledger/pkg/dispatch"
	"github.com/songledger/songledger/pkg/event"
	"github.com/songledger/songledger/pkg/record"
	"github.com/songledger/songledger/pkg/store"
	"github.com/songledger/songledger/pkg/table"
	"github.com/songledger/songledger/pkg/ui"
	"github.com/songledger/songledger/pkg/workspace"
)

// Options configures New.
type Options struct {
	StorePath   string
	Lock        bool
	MaxHistory  int
	ColumnKinds map[string]string
	DefaultSort string
	// Groups lists the tables to mount; empty means all of them.
	Groups []event.Group
	Logger zerolog.Logger
}

// OptionsFromConfig derives Options from loaded configuration. Relative store
// paths resolve against the workspace data directory.
func OptionsFromConfig(cfg config.Config, root string) Options {
	return Options{
		StorePath:   workspace.StorePath(root, cfg.Store.Path),
		Lock:        cfg.Store.Lock,
		MaxHistory:  cfg.Buffer.MaxHistory,
		ColumnKinds: cfg.Buffer.ColumnKinds,
		DefaultSort: cfg.Buffer.DefaultSort,
		Logger:      log.Logger,
	}
}

// App is the central controller for the application's lifecycle.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger

	Bus    *event.Bus
	Loop   *ui.Loop
	Store  *store.Store
	groups []event.Group

	buffers map[event.Group]*table.Buffer
	views   map[event.Group]*ui.View

	mu        sync.Mutex
	onStop    []func(context.Context)
	startOnce sync.Once
	stopOnce  sync.Once
	stopErr   error
}

// New opens the store and builds every component. Nothing is delivered until
// Start.
func New(opts Options) (*App, error) {
	kinds, err := columnKinds(opts.ColumnKinds)
	if err != nil {
		return nil, err
	}
	groups := opts.Groups
	if len(groups) == 0 {
		groups = event.Groups()
	}

	storeOpts := []store.Option{store.WithLogger(opts.Logger)}
	if !opts.Lock {
		storeOpts = append(storeOpts, store.WithoutLock())
	}
	st, err := store.Open(opts.StorePath, storeOpts...)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		ctx:     ctx,
		cancel:  cancel,
		logger:  opts.Logger.With().Str("component", "app").Logger(),
		Bus:     event.New(event.WithLogger(opts.Logger)),
		Loop:    ui.NewLoop(opts.Logger),
		Store:   st,
		groups:  groups,
		buffers: make(map[event.Group]*table.Buffer, len(groups)),
		views:   make(map[event.Group]*ui.View, len(groups)),
	}

	a.Bus.RegisterDispatcher(event.RouteUI, dispatch.NewLoop(a.Loop, dispatch.WithLoopLogger(opts.Logger)))
	for _, r := range []event.Route{event.RouteTable, event.RouteStore, event.RouteCommon} {
		a.Bus.RegisterDispatcher(r, dispatch.NewWorker(r.String(), dispatch.WithWorkerLogger(opts.Logger)))
	}

	for _, g := range groups {
		tbl, err := store.TableFor(g)
		if err != nil {
			a.abort()
			return nil, err
		}
		key, err := record.ParseSortKey(opts.DefaultSort, tbl.Columns)
		if err != nil {
			a.abort()
			return nil, fmt.Errorf("default sort: %w", err)
		}

		buf := table.New(a.Bus, g,
			table.WithMaxHistory(opts.MaxHistory),
			table.WithColumnKinds(kinds),
			table.WithSortKey(key),
			table.WithLogger(opts.Logger),
		)
		buf.Subscribe(a.Bus, event.RouteTable)
		a.buffers[g] = buf

		view := ui.NewView(g, tbl.Columns)
		view.Subscribe(a.Bus, event.RouteUI)
		a.views[g] = view
	}

	st.Subscribe(a.Bus, event.RouteStore)
	a.subscribeAudit()
	return a, nil
}

// Start seeds every buffer from the store, starts delivery and publishes the
// initial projection of each table.
func (a *App) Start(ctx context.Context) error {
	var err error
	a.startOnce.Do(func() {
		for _, g := range a.groups {
			rows, e := a.Store.Rows(ctx, g)
			if e != nil {
				err = fmt.Errorf("load %s: %w", g, e)
				return
			}
			a.buffers[g].LoadRecords(rows)
			a.logger.Debug().Str("group", g.String()).Int("rows", len(rows)).Msg("Buffer loaded")
		}
		a.Bus.Start()
		for _, g := range a.groups {
			a.Bus.Publish(ctx, event.Of(event.TypeSearchTermChanged).In(g), event.SearchTermChanged{})
		}
	})
	return err
}

// Context returns the shared application context. It is cancelled by Shutdown.
func (a *App) Context() context.Context {
	return a.ctx
}

// Groups returns the mounted tables in order.
func (a *App) Groups() []event.Group { return a.groups }

// Buffer returns the live buffer for g. Its state belongs to the table
// worker once Start has run.
func (a *App) Buffer(g event.Group) *table.Buffer { return a.buffers[g] }

// View returns the UI view for g. Its state belongs to the UI loop.
func (a *App) View(g event.Group) *ui.View { return a.views[g] }

// Views returns the views in group order.
func (a *App) Views() []*ui.View {
	out := make([]*ui.View, 0, len(a.groups))
	for _, g := range a.groups {
		out = append(out, a.views[g])
	}
	return out
}

// OnShutdown registers fn to run after the dispatchers have stopped and
// before the store closes. Hooks run in registration order.
func (a *App) OnShutdown(fn func(context.Context)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onStop = append(a.onStop, fn)
}

// Shutdown delivers everything already published, stops the dispatchers,
// runs whatever the UI loop still holds, then closes the store.
func (a *App) Shutdown() error {
	a.stopOnce.Do(func() {
		a.Bus.StopAllDispatchers()
		a.Loop.Drain()

		a.mu.Lock()
		hooks := a.onStop
		a.mu.Unlock()
		for _, fn := range hooks {
			fn(a.ctx)
		}

		a.cancel()
		a.stopErr = a.Store.Close()
		a.logger.Debug().Msg("Shutdown complete")
	})
	return a.stopErr
}

// abort releases what New acquired before it failed.
func (a *App) abort() {
	a.Bus.StopAllDispatchers()
	a.cancel()
	_ = a.Store.Close()
}

// subscribeAudit logs data changes from the common worker.
func (a *App) subscribeAudit() {
	a.Bus.Subscribe(event.TypeRecordUpserted, event.RouteCommon, event.On(func(_ context.Context, ev event.Event, p event.RecordUpserted) {
		a.logger.Info().Str("group", ev.Group.String()).Str("id", p.Record.Key()).Msg("Record saved")
	}))
	a.Bus.Subscribe(event.TypeRecordsDeleted, event.RouteCommon, event.On(func(_ context.Context, ev event.Event, p event.RecordsDeleted) {
		a.logger.Info().Str("group", ev.Group.String()).Strs("ids", p.IDs).Msg("Records deleted")
	}))
	a.Bus.Subscribe(event.TypeValidationFailed, event.RouteCommon, event.On(func(_ context.Context, ev event.Event, p event.ValidationFailed) {
		a.logger.Warn().Str("group", ev.Group.String()).Interface("problems", p.Problems).Msg("Save rejected")
	}))
}

func columnKinds(in map[string]string) (map[string]table.ColumnKind, error) {
	out := make(map[string]table.ColumnKind, len(in))
	var errs []error
	for name, s := range in {
		k, err := table.ParseColumnKind(s)
		if err != nil {
			errs = append(errs, fmt.Errorf("column %s: %w", name, err))
			continue
		}
		out[name] = k
	}
	return out, errors.Join(errs...)
}
