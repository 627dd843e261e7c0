package snapshot

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// SaveRawSnapshots writes every non-readonly edit verbatim, in parallel.
// Edits never share a target path, so no ordering is needed between them.
func SaveRawSnapshots(ctx context.Context, env Environment, edits []RawEdit) error {
	writable := lo.Filter(edits, func(e RawEdit, _ int) bool { return !e.Readonly })
	g, ctx := errgroup.WithContext(ctx)
	for _, e := range writable {
		e := e
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := env.SaveSnapshotFile(e.File, e.Content); err != nil {
				return fmt.Errorf("write raw snapshot %s: %w", e.File, err)
			}
			sub("raw").Debug("raw snapshot written", "file", e.File, "bytes", len(e.Content))
			return nil
		})
	}
	return g.Wait()
}
