package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ghyeongl/snapcheck/snapshot"
	"github.com/ghyeongl/snapcheck/snapshot/history"
)

var errHistoryDisabled = errors.New("no history database configured (set --history-db or SNAPSHOT_HISTORY_DB)")

// app is the state shared by every subcommand.
type app struct {
	fs  afero.Fs
	out io.Writer

	v   *viper.Viper
	cfg snapshot.Config
	env *snapshot.FSEnvironment

	ok   func(a ...any) string
	bad  func(a ...any) string
	warn func(a ...any) string
}

func sub(component string) *slog.Logger {
	return snapshot.Logger("snapctl." + component)
}

// flag name → config key
var boundFlags = map[string]string{
	"dir":         "dir",
	"log-dir":     "log_dir",
	"log-level":   "log_level",
	"history-db":  "history_db",
	"color":       "color",
	"legacy-eval": "legacy_eval",
}

func newRootCmd(a *app) *cobra.Command {
	var configDirs []string
	root := &cobra.Command{
		Use:           "snapctl",
		Short:         "Inspect and maintain snapshot files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.Root().PersistentFlags(), configDirs)
		},
	}
	root.SetOut(a.out)
	root.SetErr(os.Stderr)

	pf := root.PersistentFlags()
	pf.StringSliceVar(&configDirs, "config-dir", nil, "extra directories searched for .snapshot.{yaml,json,toml}")
	pf.String("dir", "__snapshots__", "snapshot directory name next to test files")
	pf.String("log-dir", "", "directory for rotating log files")
	pf.String("log-level", "info", "file log level (debug, info, warn, error)")
	pf.String("history-db", "", "run history database")
	pf.Bool("color", false, "colour output (default: when stdout is a terminal)")
	pf.Bool("legacy-eval", true, "read eval-style snapshot files through the sandbox")

	root.AddCommand(
		newCheckCmd(a),
		newListCmd(a),
		newObsoleteCmd(a),
		newPruneCmd(a),
		newHistoryCmd(a),
		newWatchCmd(a),
	)
	return root
}

func (a *app) init(flags *pflag.FlagSet, configDirs []string) error {
	a.v = snapshot.NewViper(configDirs...)
	for name, key := range boundFlags {
		if err := a.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	cfg, err := snapshot.ConfigFrom(a.v)
	if err != nil {
		return err
	}
	if !flags.Changed("color") && !a.v.InConfig("color") && os.Getenv("SNAPSHOT_COLOR") == "" {
		cfg.Color = false
		if f, ok := a.out.(*os.File); ok {
			cfg.Color = isatty.IsTerminal(f.Fd())
		}
	}
	a.cfg = cfg
	snapshot.InitLogger(cfg.LogDir, cfg.LogLevel)
	a.env = snapshot.NewFSEnvironment(a.fs, cfg.SnapshotDir)

	color.NoColor = !cfg.Color
	a.ok, a.bad, a.warn = fmt.Sprint, fmt.Sprint, fmt.Sprint
	if cfg.Color {
		a.ok = color.New(color.FgGreen).Sprint
		a.bad = color.New(color.FgRed).Sprint
		a.warn = color.New(color.FgYellow).Sprint
	}
	sub("root").Debug("config loaded", "dir", cfg.SnapshotDir, "historyDB", cfg.HistoryDB, "color", cfg.Color)
	return nil
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// withHistory opens the configured history database for fn.
func (a *app) withHistory(ctx context.Context, fn func(*history.DB) error) error {
	if a.cfg.HistoryDB == "" {
		return errHistoryDisabled
	}
	db, err := history.Open(a.cfg.HistoryDB)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}
