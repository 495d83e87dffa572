package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goalline/internal/watch"
)

func TestWatcherDebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.txt")
	other := filepath.Join(dir, "other.txt")
	require.NoError(t, os.WriteFile(path, []byte("A"), 0o644))

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := watch.Watcher{
		Path:     path,
		Debounce: 50 * time.Millisecond,
		OnChange: func(context.Context) { calls.Add(1) },
	}
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(other, []byte("ignored"), 0o644))
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("A\n    B"), 0o644))
	}
	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcherRunsOneChangeAtATime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.txt")
	require.NoError(t, os.WriteFile(path, []byte("A"), 0o644))

	var inflight, peak, calls atomic.Int32
	var finished atomic.Bool
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := watch.Watcher{
		Path:     path,
		Debounce: 20 * time.Millisecond,
		OnChange: func(context.Context) {
			n := inflight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			finished.Store(false)
			time.Sleep(300 * time.Millisecond)
			finished.Store(true)
			inflight.Add(-1)
			calls.Add(1)
		},
	}
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("A\n    B"), 0o644))
	assert.Eventually(t, func() bool { return inflight.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("A\n    C"), 0o644))
	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, int32(1), peak.Load())

	require.NoError(t, os.WriteFile(path, []byte("A\n    D"), 0o644))
	assert.Eventually(t, func() bool { return inflight.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
		assert.True(t, finished.Load())
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
