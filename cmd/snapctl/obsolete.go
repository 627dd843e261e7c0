package main

import (
	"github.com/spf13/cobra"

	"github.com/ghyeongl/snapcheck/snapshot"
	"github.com/ghyeongl/snapcheck/snapshot/history"
)

func newObsoleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "obsolete",
		Short: "Show snapshots the last recorded run never visited",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withHistory(cmd.Context(), func(db *history.DB) error {
				run, files, err := db.LastObsolete(cmd.Context())
				if err != nil {
					return err
				}
				a.printf("run %d (%s): %d obsolete snapshot(s) in %d file(s)\n",
					run.ID, run.StartedAt.Format("2006-01-02 15:04:05"), run.Unchecked, len(files))
				for _, f := range files {
					a.printf("%s\n", f.FilePath)
					for _, k := range f.Keys {
						a.printf("  %s\n", a.warn(k))
					}
				}
				return nil
			})
		},
	}
}

// pruneObsolete removes the given keys and returns the number removed.
func (a *app) pruneObsolete(files []snapshot.ObsoleteFile, dryRun bool) (int, error) {
	total := 0
	for _, f := range files {
		if dryRun {
			a.printf("would prune %d key(s) from %s\n", len(f.Keys), f.FilePath)
			continue
		}
		n, err := snapshot.PruneKeys(a.env, f.FilePath, f.Keys)
		if err != nil {
			return total, err
		}
		total += n
		a.printf("pruned %d key(s) from %s\n", n, f.FilePath)
	}
	return total, nil
}

func newPruneCmd(a *app) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove the obsolete snapshots of the last recorded run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withHistory(cmd.Context(), func(db *history.DB) error {
				_, files, err := db.LastObsolete(cmd.Context())
				if err != nil {
					return err
				}
				n, err := a.pruneObsolete(files, dryRun)
				if err != nil {
					return err
				}
				if !dryRun {
					a.printf("%s\n", a.ok("pruned ", n, " snapshot(s)"))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only report what would be removed")
	return cmd
}
