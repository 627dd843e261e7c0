package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghyeongl/snapcheck/snapshot"
)

func TestCheckQueue_PushPop(t *testing.T) {
	q := newCheckQueue()

	q.Push("a.snap")
	q.Push("b.snap")
	assert.Equal(t, 2, q.Len())

	done := make(chan struct{})
	path, ok := q.Pop(done)
	require.True(t, ok)
	assert.Equal(t, "a.snap", path)

	path, ok = q.Pop(done)
	require.True(t, ok)
	assert.Equal(t, "b.snap", path)

	assert.Equal(t, 0, q.Len())
}

func TestCheckQueue_Dedup(t *testing.T) {
	q := newCheckQueue()

	q.Push("x.snap")
	q.PushMany([]string{"x.snap", "y.snap", "x.snap"})

	assert.Equal(t, 2, q.Len())
	assert.True(t, q.Has("y.snap"))
	assert.False(t, q.Has("z.snap"))

	q.Pop(make(chan struct{}))
	assert.False(t, q.Has("x.snap"))
	q.Push("x.snap")
	assert.True(t, q.Has("x.snap"), "a popped path can be queued again")
}

func TestCheckQueue_PopBlocks(t *testing.T) {
	q := newCheckQueue()
	done := make(chan struct{})

	result := make(chan string, 1)
	go func() {
		path, ok := q.Pop(done)
		if ok {
			result <- path
		}
	}()

	select {
	case <-result:
		t.Fatal("Pop should block when queue is empty")
	case <-time.After(50 * time.Millisecond):
	}

	q.Push("wakeup.snap")

	select {
	case path := <-result:
		assert.Equal(t, "wakeup.snap", path)
	case <-time.After(time.Second):
		t.Fatal("Pop should have unblocked")
	}
}

func TestCheckQueue_PopDone(t *testing.T) {
	q := newCheckQueue()
	done := make(chan struct{})
	close(done)

	path, ok := q.Pop(done)
	assert.False(t, ok)
	assert.Empty(t, path)
}

func TestCheckQueue_DebugLog(t *testing.T) {
	dir := t.TempDir()
	snapshot.InitLogger(dir, slog.LevelDebug)
	t.Cleanup(func() { snapshot.InitLogger("", slog.LevelWarn) })

	q := newCheckQueue()
	q.PushMany([]string{"a.snap", "a.snap"})
	_, ok := q.Pop(make(chan struct{}))
	require.True(t, ok)

	data, err := os.ReadFile(filepath.Join(dir, "snapshot_debug.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=push comp=snapctl.queue requested=2 added=1 queueLen=1")
	assert.Contains(t, string(data), "msg=pop comp=snapctl.queue path=a.snap queueLen=0")
}
