package main

import (
	"github.com/spf13/cobra"

	"github.com/ghyeongl/snapcheck/snapshot/history"
)

func (a *app) printRun(r history.Run) {
	status := a.ok("pass")
	if r.Unmatched > 0 {
		status = a.bad("fail")
	}
	a.printf("%4d  %s  %-4s  %s  total=%d added=%d matched=%d unmatched=%d updated=%d obsolete=%d\n",
		r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Mode, status,
		r.Total, r.Added, r.Matched, r.Unmatched, r.Updated, r.Unchecked)
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded snapshot runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withHistory(cmd.Context(), func(db *history.DB) error {
				runs, err := db.Runs(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					return history.ErrNoRuns
				}
				for _, r := range runs {
					a.printRun(r)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show (0 for all)")
	return cmd
}
