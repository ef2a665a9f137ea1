package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/elements/pkg/elements/checkpoint"
	"github.com/randalmurphal/elements/pkg/elements/epath"
)

func newLsCmd(a *app) *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "ls PATH [PATTERN]",
		Short: "List entries under PATH matching PATTERN (default \"*\")",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := a.parse(args[0])
			if err != nil {
				return err
			}
			pattern := "*"
			if len(args) == 2 {
				pattern = args[1]
			}
			matches, err := p.Glob(ctx, pattern)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, m := range matches {
				if !long {
					fmt.Fprintln(out, m)
					continue
				}
				dir, err := m.IsDir(ctx)
				if err != nil {
					return err
				}
				if dir {
					fmt.Fprintf(out, "%12s  %s/\n", "-", m)
					continue
				}
				size, err := m.Size(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%12d  %s\n", size, m)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&long, "long", "l", false, "Show sizes")
	return cmd
}

func newCatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cat PATH...",
		Short: "Print file contents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				p, err := a.parse(arg)
				if err != nil {
					return err
				}
				r, err := p.Open(cmd.Context())
				if err != nil {
					return err
				}
				_, err = io.Copy(cmd.OutOrStdout(), r)
				r.Close()
				if err != nil {
					return fmt.Errorf("read %s: %w", p, err)
				}
			}
			return nil
		},
	}
}

func newPutCmd(a *app) *cobra.Command {
	var appendMode, exclusive bool
	cmd := &cobra.Command{
		Use:   "put PATH",
		Short: "Write standard input to PATH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if appendMode && exclusive {
				return fmt.Errorf("--append and --exclusive are mutually exclusive")
			}
			p, err := a.parse(args[0])
			if err != nil {
				return err
			}
			mode := epath.Truncate
			switch {
			case appendMode:
				mode = epath.Append
			case exclusive:
				mode = epath.Exclusive
			}
			w, err := p.Create(cmd.Context(), mode)
			if err != nil {
				return err
			}
			if _, err := io.Copy(w, cmd.InOrStdin()); err != nil {
				w.Close()
				return fmt.Errorf("write %s: %w", p, err)
			}
			return w.Close()
		},
	}
	cmd.Flags().BoolVarP(&appendMode, "append", "a", false, "Append instead of replacing")
	cmd.Flags().BoolVarP(&exclusive, "exclusive", "x", false, "Fail if PATH exists")
	return cmd
}

func newCpCmd(a *app) *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "cp SRC DST",
		Short: "Copy a file, or a directory with -r",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, dst, err := a.parse2(args[0], args[1])
			if err != nil {
				return err
			}
			a.logger.Info("copy", "src", src.String(), "dst", dst.String(), "recursive", recursive)
			return src.Copy(cmd.Context(), dst, recursive)
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Copy directories recursively")
	return cmd
}

func newMvCmd(a *app) *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "mv SRC DST",
		Short: "Move a file, or a directory with -r",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, dst, err := a.parse2(args[0], args[1])
			if err != nil {
				return err
			}
			a.logger.Info("move", "src", src.String(), "dst", dst.String(), "recursive", recursive)
			return src.Move(cmd.Context(), dst, recursive)
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Move directories recursively")
	return cmd
}

func newRmCmd(a *app) *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "rm PATH...",
		Short: "Remove files, empty directories, or trees with -r",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				p, err := a.parse(arg)
				if err != nil {
					return err
				}
				if err := p.Remove(cmd.Context(), recursive); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Remove directories and their contents")
	return cmd
}

func newMkdirCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir PATH...",
		Short: "Create directories and their parents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				p, err := a.parse(arg)
				if err != nil {
					return err
				}
				if err := p.Mkdir(cmd.Context()); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (a *app) checkpoint(root string) (*checkpoint.Checkpoint, error) {
	p, err := a.parse(root)
	if err != nil {
		return nil, err
	}
	return checkpoint.New(p, checkpoint.WithLogger(a.logger)), nil
}

func newLatestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "latest ROOT",
		Short: "Print the snapshot the latest pointer of ROOT names",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ckpt, err := a.checkpoint(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			latest, ok, err := ckpt.Latest(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w under %s", checkpoint.ErrNoCheckpoint, ckpt.Root())
			}
			complete, err := ckpt.Exists(ctx, latest)
			if err != nil {
				return err
			}
			if !complete {
				return fmt.Errorf("%w: %s has no %s marker", checkpoint.ErrNoCheckpoint, latest, checkpoint.DoneFile)
			}
			fmt.Fprintln(cmd.OutOrStdout(), latest)
			return nil
		},
	}
}

func newSnapshotsCmd(a *app) *cobra.Command {
	var withKeys bool
	cmd := &cobra.Command{
		Use:   "snapshots ROOT",
		Short: "List complete snapshots under ROOT, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ckpt, err := a.checkpoint(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			snaps, err := ckpt.Snapshots(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range snaps {
				if !withKeys {
					fmt.Fprintln(out, s)
					continue
				}
				keys, err := payloadKeys(cmd, s)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\t%s\n", s, strings.Join(keys, ","))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&withKeys, "keys", "k", false, "Also list the stored keys")
	return cmd
}

// payloadKeys returns the saveable names stored in a snapshot directory.
func payloadKeys(cmd *cobra.Command, snap epath.Path) ([]string, error) {
	files, err := snap.Glob(cmd.Context(), "*")
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, f := range files {
		name := f.Name()
		if name == checkpoint.DoneFile {
			continue
		}
		stem := f.Stem()
		if i := strings.LastIndex(stem, "-"); i > 0 && isShardIndex(stem[i+1:]) {
			if !strings.HasSuffix(stem, "-0000") {
				continue
			}
			stem = stem[:i]
		}
		keys = append(keys, stem)
	}
	return keys, nil
}

func isShardIndex(s string) bool {
	if len(s) < 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
