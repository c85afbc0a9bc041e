package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/songledger/songledger/pkg/event"
	"github.com/songledger/songledger/pkg/record"
	"github.com/songledger/songledger/pkg/store"
	"github.com/songledger/songledger/pkg/ui"
)

func newListCommand() *cobra.Command {
	var (
		tableName string
		sortSpec  string
		find      string
		limit     int
	)

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "Print one table, optionally filtered and sorted",
		GroupID: "data",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			g, err := event.ParseGroup(tableName)
			if err != nil {
				return err
			}
			if g == event.GroupNone {
				return errors.New("--table must name one table")
			}
			tbl, err := store.TableFor(g)
			if err != nil {
				return err
			}
			var key record.SortKey
			if cmd.Flags().Changed("sort") {
				if key, err = record.ParseSortKey(sortSpec, tbl.Columns); err != nil {
					return err
				}
			}

			a, err := openApp(ctx, g)
			if err != nil {
				return err
			}
			if err := a.Start(ctx); err != nil {
				_ = a.Shutdown()
				return err
			}
			if cmd.Flags().Changed("sort") {
				a.Bus.Publish(ctx, event.Of(event.TypeSortChanged).In(g), event.SortChanged{Key: key})
			}
			if find != "" {
				a.Bus.Publish(ctx, event.Of(event.TypeSearchTermChanged).In(g), event.SearchTermChanged{Term: find})
			}
			// After shutdown the table worker has applied everything, so the
			// buffer can be read here.
			if err := a.Shutdown(); err != nil {
				return err
			}

			printer := ui.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), useColor(cmd.OutOrStdout()))
			printer.MaxRows = limit
			view := ui.NewView(g, tbl.Columns)
			buf := a.Buffer(g)
			view.Replace(buf.Visible(), buf.FilterTerm() == "")
			return printer.PrintView(view)
		},
	}

	cmd.Flags().StringVarP(&tableName, "table", "t", "songs", "Table to list (songs, report)")
	cmd.Flags().StringVar(&sortSpec, "sort", "", "Sort as column[:asc|desc|none]")
	cmd.Flags().StringVarP(&find, "find", "f", "", "Only rows containing this text")
	cmd.Flags().IntVar(&limit, "limit", 0, "Print at most this many rows (0 prints all)")

	return cmd
}
