package gate

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func markerPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), ".sync-complete")
}

func writeMarker(t *testing.T, path string, age time.Duration) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("1756600000\n"), 0o644))
	if age > 0 {
		mtime := time.Now().Add(-age)
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}
}

func TestReady(t *testing.T) {
	t.Parallel()

	t.Run("absent marker", func(t *testing.T) {
		t.Parallel()
		assert.False(t, New(markerPath(t)).Ready())
	})

	t.Run("fresh marker", func(t *testing.T) {
		t.Parallel()
		path := markerPath(t)
		writeMarker(t, path, 0)
		assert.True(t, New(path).Ready())
	})

	t.Run("stale marker counts as absent", func(t *testing.T) {
		t.Parallel()
		path := markerPath(t)
		writeMarker(t, path, 2*time.Hour)
		assert.False(t, New(path, WithFreshness(time.Hour)).Ready())
	})

	t.Run("zero freshness disables the age check", func(t *testing.T) {
		t.Parallel()
		path := markerPath(t)
		writeMarker(t, path, 48*time.Hour)
		assert.True(t, New(path, WithFreshness(0)).Ready())
	})
}

func TestWaitReturnsImmediatelyWhenReady(t *testing.T) {
	t.Parallel()

	path := markerPath(t)
	writeMarker(t, path, 0)

	g := New(path, WithInterval(time.Hour), WithTimeout(time.Hour))
	start := time.Now()
	require.NoError(t, g.Wait(context.Background()))
	assert.Less(t, time.Since(start), time.Second, "ready gate must not poll")
}

func TestWaitUnblocksWhenMarkerAppears(t *testing.T) {
	t.Parallel()

	path := markerPath(t)
	g := New(path, WithInterval(10*time.Millisecond), WithTimeout(5*time.Second))

	go func() {
		time.Sleep(50 * time.Millisecond)
		writeMarker(t, path, 0)
	}()

	require.NoError(t, g.Wait(context.Background()))
}

func TestWaitTimesOutFailOpen(t *testing.T) {
	t.Parallel()

	g := New(markerPath(t), WithInterval(10*time.Millisecond), WithTimeout(80*time.Millisecond))

	start := time.Now()
	err := g.Wait(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second, "timeout must fire near the budget")
}

func TestWaitHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	g := New(markerPath(t), WithInterval(10*time.Millisecond), WithTimeout(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Wait(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after cancellation")
	}
}

func TestReadProgress(t *testing.T) {
	t.Parallel()

	t.Run("no path configured", func(t *testing.T) {
		t.Parallel()
		assert.True(t, New(markerPath(t)).ReadProgress().IsAbsent())
	})

	t.Run("absent descriptor", func(t *testing.T) {
		t.Parallel()
		g := New(markerPath(t), WithProgressPath(filepath.Join(t.TempDir(), ".sync-progress.json")))
		assert.True(t, g.ReadProgress().IsAbsent())
	})

	t.Run("malformed descriptor", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), ".sync-progress.json")
		require.NoError(t, os.WriteFile(path, []byte("{half"), 0o644))
		g := New(markerPath(t), WithProgressPath(path))
		assert.True(t, g.ReadProgress().IsAbsent())
	})

	t.Run("valid descriptor", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), ".sync-progress.json")
		body := `{"stage":"downloading","progress":40,"current":2,"total":5}`
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

		g := New(markerPath(t), WithProgressPath(path))
		p, ok := g.ReadProgress().Get()
		require.True(t, ok)
		assert.Equal(t, Progress{Stage: "downloading", Progress: 40, Current: 2, Total: 5}, p)
	})
}
