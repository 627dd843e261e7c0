package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/ghyeongl/snapcheck/snapshot"
)

// snapshotPathFor accepts either a snapshot file or the test file it
// belongs to.
func (a *app) snapshotPathFor(arg string) (string, error) {
	if snapshot.IsSnapshotFile(arg) {
		return arg, nil
	}
	return a.env.ResolvePath(arg)
}

func newListCmd(a *app) *cobra.Command {
	var values bool
	cmd := &cobra.Command{
		Use:   "list <file>",
		Short: "List the keys of a snapshot file (or of a test file's snapshots)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.snapshotPathFor(args[0])
			if err != nil {
				return err
			}
			record, err := snapshot.LoadSnapshotFile(a.env, path, a.cfg.LegacyEval)
			if err != nil {
				return err
			}
			for _, k := range snapshot.SortKeys(record) {
				if !values {
					a.printf("%s\n", k)
					continue
				}
				a.printf("%s\n  %s\n", a.ok(k), strings.ReplaceAll(record[k], "\n", "\n  "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&values, "values", false, "print values below keys")
	return cmd
}
