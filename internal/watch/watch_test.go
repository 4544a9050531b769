package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *recorder) handle(_ context.Context, changed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, changed)
}

func (r *recorder) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.calls...)
}

func TestDebounceBatchesSettledFiles(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.csv")
	mapping := filepath.Join(dir, "mapping.yaml")

	rec := &recorder{}
	w, err := New([]string{input, mapping, ""}, rec.handle, WithDebounce(time.Second))
	require.NoError(t, err)
	defer w.Stop()

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	w.handleEvent(fsnotify.Event{Name: mapping, Op: fsnotify.Write}, t0)
	w.handleEvent(fsnotify.Event{Name: input, Op: fsnotify.Write}, t0.Add(100*time.Millisecond))
	w.handleEvent(fsnotify.Event{Name: filepath.Join(dir, "other.txt"), Op: fsnotify.Write}, t0)
	w.handleEvent(fsnotify.Event{Name: input, Op: fsnotify.Chmod}, t0)

	ctx := context.Background()
	w.flush(ctx, t0.Add(500*time.Millisecond))
	assert.Empty(t, rec.snapshot())

	w.flush(ctx, t0.Add(1100*time.Millisecond))
	assert.Equal(t, [][]string{{input, mapping}}, rec.snapshot())

	// nothing left pending
	w.flush(ctx, t0.Add(time.Hour))
	assert.Len(t, rec.snapshot(), 1)

	stats := w.Stats()
	assert.Equal(t, 2, stats.Events)
	assert.Equal(t, 1, stats.Triggers)
	assert.Equal(t, input, stats.LastPath)
	assert.Equal(t, "modify", stats.LastOp)
}

func TestDebounceRestartsOnRepeatedEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.csv")
	rec := &recorder{}
	w, err := New([]string{path}, rec.handle, WithDebounce(time.Second))
	require.NoError(t, err)
	defer w.Stop()

	t0 := time.Now()
	w.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Create}, t0)
	w.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Write}, t0.Add(900*time.Millisecond))

	w.flush(context.Background(), t0.Add(1500*time.Millisecond))
	assert.Empty(t, rec.snapshot())

	w.flush(context.Background(), t0.Add(2*time.Second))
	assert.Equal(t, [][]string{{path}}, rec.snapshot())
}

func TestWatcherSeesWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(path, []byte("text\na\n"), 0644))

	changed := make(chan []string, 4)
	w, err := New([]string{path}, func(_ context.Context, paths []string) { changed <- paths },
		WithDebounce(50*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	require.NoError(t, w.Start(ctx)) // already running

	require.NoError(t, os.WriteFile(path, []byte("text\nb\n"), 0644))

	select {
	case got := <-changed:
		assert.Equal(t, []string{path}, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}

func TestStopWithoutStart(t *testing.T) {
	w, err := New([]string{"in.csv"}, nil)
	require.NoError(t, err)
	assert.NoError(t, w.Stop())
}
