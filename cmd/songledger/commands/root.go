package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/songledger/songledger/pkg/app"
	"github.com/songledger/songledger/pkg/appctx"
	"github.com/songledger/songledger/pkg/config"
	"github.com/songledger/songledger/pkg/event"
	"github.com/songledger/songledger/pkg/logging"
	"github.com/songledger/songledger/pkg/paths"
	"github.com/songledger/songledger/pkg/workspace"
)

const cliExecutable = "songledger"

// NewCommand constructs the top-level songledger command: it loads
// configuration, configures logging and prepares the workspace before any
// subcommand runs.
func NewCommand() *cobra.Command {
	var (
		configFile string
		logFile    io.Closer
	)

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "Songledger keeps a song catalogue and a play report in sync",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile == "" {
				configFile = paths.ConfigFile()
			}
			mgr := config.NewManager()
			err := mgr.Load(cmd.Flags(), configFile)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			cfg := mgr.Get()

			ctx := appctx.WithConfig(cmd.Context(), mgr)
			logPath := cfg.Log.File
			var prepared string
			if cmd.Annotations["workspace"] != "skip" {
				prepared, err = workspace.Prepare(cfg.Workspace.Dir)
				if err != nil {
					return fmt.Errorf("prepare workspace: %w", err)
				}
				ctx = workspace.WithContext(ctx, prepared)
				if logPath != "" {
					logPath = workspace.Resolve(prepared, workspace.Logs, logPath)
				}
			}

			var w io.Writer = cmd.ErrOrStderr()
			if logPath != "" {
				f, err := logging.OpenFile(logPath)
				if err != nil {
					return err
				}
				w, logFile = f, f
			}
			if err := logging.Configure(cfg.Log.Level, cfg.Log.Format, w); err != nil {
				return err
			}
			if prepared != "" {
				log.Debug().Str("workspace", prepared).Msg("workspace ready")
			}

			cmd.SetContext(ctx)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if logFile != nil {
				return logFile.Close()
			}
			return nil
		},
	}

	cmd.SilenceUsage = true

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path (default: $XDG_CONFIG_HOME/songledger/config.yaml)")
	cmd.PersistentFlags().String("workspace-dir", "", "Override workspace root directory")
	cmd.PersistentFlags().Bool("no-lock", false, "Open the database without taking the lock file")
	config.BindFlags(cmd.PersistentFlags())

	cmd.AddGroup(&cobra.Group{ID: "data", Title: "Data Commands"})

	cmd.AddCommand(newBrowseCommand())
	cmd.AddCommand(newImportCommand())
	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// openApp builds the runtime from the configuration and workspace stored on
// ctx by the root command.
func openApp(ctx context.Context, groups ...event.Group) (*app.App, error) {
	cfg, err := appctx.Settings(ctx)
	if err != nil {
		return nil, err
	}
	root, ok := workspace.FromContext(ctx)
	if !ok {
		return nil, errors.New("workspace not prepared")
	}

	opts := app.OptionsFromConfig(cfg, root)
	opts.Groups = groups
	return app.New(opts)
}

// useColor reports whether w is an interactive terminal.
func useColor(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
