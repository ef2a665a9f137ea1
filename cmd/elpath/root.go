package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/elements/pkg/elements/config"
	"github.com/randalmurphal/elements/pkg/elements/epath"
)

// app holds the state shared by all subcommands.
type app struct {
	verbosity  int
	configFile string
	registry   *epath.Registry
	logger     *slog.Logger
}

// NewRootCmd creates the elpath command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "elpath",
		Short: "Work with files on any storage backend",
		Long: `elpath runs file operations against local paths, proxy filesystem
paths (/cns/...) and object store paths (gs://bucket/...) through one
interface, and inspects checkpoint directories written by the checkpoint
package.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}

	rootCmd.PersistentFlags().CountVarP(&a.verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG)")
	rootCmd.PersistentFlags().StringVar(&a.configFile, "config", "", "YAML or JSON file with a storage section")

	rootCmd.AddCommand(
		newLsCmd(a),
		newCatCmd(a),
		newPutCmd(a),
		newCpCmd(a),
		newMvCmd(a),
		newRmCmd(a),
		newMkdirCmd(a),
		newLatestCmd(a),
		newSnapshotsCmd(a),
	)
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command) error {
	level := slog.LevelWarn
	switch {
	case a.verbosity >= 2:
		level = slog.LevelDebug
	case a.verbosity == 1:
		level = slog.LevelInfo
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	a.logger.Debug("command started", slog.String("command", cmd.Name()))

	if a.configFile == "" {
		a.registry = epath.Default()
		return nil
	}
	cfg, err := config.FromFile(a.configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.registry = epath.NewDefaultRegistry(cfg.Storage())
	epath.SetDefault(a.registry)
	return nil
}

func (a *app) parse(s string) (epath.Path, error) {
	return a.registry.Parse(s)
}

func (a *app) parse2(src, dst string) (epath.Path, epath.Path, error) {
	s, err := a.parse(src)
	if err != nil {
		return epath.Path{}, epath.Path{}, err
	}
	d, err := a.parse(dst)
	if err != nil {
		return epath.Path{}, epath.Path{}, err
	}
	return s, d, nil
}
