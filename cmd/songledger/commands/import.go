package commands

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/songledger/songledger/pkg/event"
	"github.com/songledger/songledger/pkg/importer"
	"github.com/songledger/songledger/pkg/ui"
	"github.com/songledger/songledger/pkg/workspace"
)

func newImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "import <file.yaml>",
		Short:   "Import songs and report rows from a YAML seed",
		GroupID: "data",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]
			if root, ok := workspace.FromContext(ctx); ok {
				path = workspace.FindImport(root, path)
			}
			seed, err := importer.Load(path)
			if err != nil {
				return err
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Shutdown() }()

			printer := ui.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), useColor(cmd.OutOrStdout()))
			want := int64(seed.Len())
			var saved, rejected atomic.Int64
			done := make(chan struct{})
			settle := func() {
				if saved.Load()+rejected.Load() == want {
					close(done)
				}
			}
			// Both handlers run on the common worker, one at a time.
			a.Bus.Subscribe(event.TypeRecordUpserted, event.RouteCommon, func(context.Context, event.Message) {
				saved.Add(1)
				settle()
			})
			a.Bus.Subscribe(event.TypeValidationFailed, event.RouteCommon, event.On(func(_ context.Context, ev event.Event, p event.ValidationFailed) {
				rejected.Add(1)
				_ = printer.PrintError(fmt.Errorf("%s row %v rejected", ev.Group, p.Fields))
				_ = printer.PrintProblems(p.Problems)
				settle()
			}))

			if err := a.Start(ctx); err != nil {
				return err
			}
			n := importer.Publish(ctx, a.Bus, seed)
			log.Debug().Int("rows", n).Str("file", path).Msg("Seed published")

			if want > 0 {
				select {
				case <-done:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if err := a.Shutdown(); err != nil {
				return err
			}
			return printer.PrintSummary(fmt.Sprintf("imported %d rows, %d rejected", saved.Load(), rejected.Load()))
		},
	}
}
