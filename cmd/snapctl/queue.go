package main

import (
	"log/slog"
	gosync "sync"

	"github.com/ghyeongl/snapcheck/snapshot"
)

// checkQueue is a thread-safe set-based FIFO of snapshot files waiting to
// be re-checked. Duplicates are dropped while a path is queued.
type checkQueue struct {
	mu     gosync.Mutex
	set    map[string]struct{}
	order  []string
	notify chan struct{} // signaled when items are added
}

func newCheckQueue() *checkQueue {
	return &checkQueue{
		set:    make(map[string]struct{}),
		notify: make(chan struct{}, 1),
	}
}

// Push adds a path unless it is already queued.
func (q *checkQueue) Push(path string) {
	q.PushMany([]string{path})
}

// PushMany adds paths, skipping queued ones.
func (q *checkQueue) PushMany(paths []string) {
	q.mu.Lock()
	added := 0
	for _, path := range paths {
		if _, exists := q.set[path]; exists {
			continue
		}
		q.set[path] = struct{}{}
		q.order = append(q.order, path)
		added++
	}
	newLen := len(q.order)
	q.mu.Unlock()

	if snapshot.LogEnabled(slog.LevelDebug) {
		sub("queue").Debug("push", "requested", len(paths), "added", added, "queueLen", newLen)
	}
	if added > 0 {
		select {
		case q.notify <- struct{}{}:
		default:
		}
	}
}

// Pop removes and returns the oldest path. It blocks until one is
// available or done is closed, then returns ("", false).
func (q *checkQueue) Pop(done <-chan struct{}) (string, bool) {
	for {
		q.mu.Lock()
		if len(q.order) > 0 {
			path := q.order[0]
			q.order = q.order[1:]
			delete(q.set, path)
			remaining := len(q.order)
			q.mu.Unlock()
			if snapshot.LogEnabled(slog.LevelDebug) {
				sub("queue").Debug("pop", "path", path, "queueLen", remaining)
			}
			return path, true
		}
		q.mu.Unlock()

		select {
		case <-done:
			return "", false
		case <-q.notify:
		}
	}
}

// Has reports whether path is queued.
func (q *checkQueue) Has(path string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, exists := q.set[path]
	return exists
}

// Len returns the queue size.
func (q *checkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}
