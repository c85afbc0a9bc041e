package commands

import (
	"context"
	"errors"
	"slices"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/songledger/songledger/pkg/appctx"
	"github.com/songledger/songledger/pkg/event"
	"github.com/songledger/songledger/pkg/importer"
	"github.com/songledger/songledger/pkg/ui"
)

func newBrowseCommand() *cobra.Command {
	var (
		tableName string
		watch     string
	)

	cmd := &cobra.Command{
		Use:     "browse",
		Short:   "Browse and edit the tables interactively",
		GroupID: "data",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			active, err := event.ParseGroup(tableName)
			if err != nil {
				return err
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Shutdown() }()

			views := a.Views()
			if active != event.GroupNone {
				// the first view handed to the console starts active
				slices.SortStableFunc(views, func(x, y *ui.View) int {
					switch {
					case x.Group() == active:
						return -1
					case y.Group() == active:
						return 1
					}
					return 0
				})
			}

			printer := ui.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), useColor(cmd.OutOrStdout()))
			console := ui.NewConsole(a.Bus, a.Loop, printer, views...)
			console.Follow()

			if watch != "" {
				cfg, err := appctx.Settings(ctx)
				if err != nil {
					return err
				}
				w, err := importer.NewWatcher(watch, a.Bus, cfg.Import.Debounce, log.Logger)
				if err != nil {
					return err
				}
				a.OnShutdown(func(context.Context) { _ = w.Close() })
				go func() {
					if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
						log.Error().Err(err).Str("file", watch).Msg("Seed watcher stopped")
					}
				}()
			}

			if err := a.Start(ctx); err != nil {
				return err
			}

			consoleErr := make(chan error, 1)
			go func() { consoleErr <- console.Run(ctx, cmd.InOrStdin()) }()

			if err := a.Loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			cancel()
			if err := <-consoleErr; err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return a.Shutdown()
		},
	}

	cmd.Flags().StringVarP(&tableName, "table", "t", "songs", "Table to open first (songs, report)")
	cmd.Flags().StringVar(&watch, "watch", "", "Re-import this YAML seed whenever it changes")

	return cmd
}
