package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ghyeongl/snapcheck/snapshot"
)

const debounceInterval = 300 * time.Millisecond

// watcher feeds changed snapshot files below root into a checkQueue.
type watcher struct {
	root    string
	ignore  *snapshot.IgnoreList
	queue   *checkQueue
	fsw     *fsnotify.Watcher
	walkDir func(root string, fn func(dir string) error) error
}

func newWatcher(root string, ignore *snapshot.IgnoreList, queue *checkQueue, walkDir func(string, func(string) error) error) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &watcher{root: root, ignore: ignore, queue: queue, fsw: fsw, walkDir: walkDir}, nil
}

// wants reports whether an event on path should queue a re-check.
func (w *watcher) wants(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || w.ignore.IsIgnored(base, false) {
		return false
	}
	return snapshot.IsSnapshotFile(path)
}

// Start watches and debounces events until ctx is cancelled.
func (w *watcher) Start(ctx context.Context) error {
	l := sub("watcher")
	if err := w.walkDir(w.root, w.fsw.Add); err != nil {
		return err
	}
	l.Info("watching", "root", w.root)

	pending := make(map[string]struct{})
	timer := time.NewTimer(debounceInterval)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.fsw.Close()
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				// no-op for files
				w.fsw.Add(event.Name) //nolint:errcheck
			}
			if !w.wants(event.Name) {
				continue
			}
			pending[event.Name] = struct{}{}
			timer.Reset(debounceInterval)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			l.Warn("watch error", "err", err)

		case <-timer.C:
			if len(pending) > 0 {
				paths := lo.Keys(pending)
				w.queue.PushMany(paths)
				l.Debug("flushed paths to queue", "count", len(paths))
				pending = make(map[string]struct{})
			}
		}
	}
}

// watchDirs calls add for root and every directory below it that is not
// hidden or ignored.
func (a *app) watchDirs(ignore *snapshot.IgnoreList) func(string, func(string) error) error {
	return func(root string, add func(string) error) error {
		return afero.Walk(a.fs, root, func(path string, info fs.FileInfo, err error) error {
			if err != nil {
				return nil // skip inaccessible dirs
			}
			if !info.IsDir() {
				return nil
			}
			if path != root && (strings.HasPrefix(info.Name(), ".") || ignore.IsIgnored(info.Name(), true)) {
				return filepath.SkipDir
			}
			return add(path)
		})
	}
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [root]",
		Short: "Re-check snapshot files as they change",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return a.watch(ctx, root)
		},
	}
}

func (a *app) watch(ctx context.Context, root string) error {
	ignore := snapshot.LoadIgnore(a.fs, filepath.Join(root, snapshot.IgnoreFileName))
	queue := newCheckQueue()
	w, err := newWatcher(root, ignore, queue, a.watchDirs(ignore))
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Start(ctx) })
	g.Go(func() error {
		for {
			path, ok := queue.Pop(ctx.Done())
			if !ok {
				return nil
			}
			a.report(checkFile(a.env, path, a.cfg.LegacyEval, false))
		}
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
