package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelinc/edgegate/internal/gate"
)

func TestWaitForSync(t *testing.T) {
	t.Parallel()

	t.Run("ready marker starts immediately", func(t *testing.T) {
		t.Parallel()
		marker := filepath.Join(t.TempDir(), ".sync-complete")
		require.NoError(t, os.WriteFile(marker, []byte("1756600000\n"), 0o644))

		g := gate.New(marker, gate.WithInterval(time.Hour), gate.WithTimeout(time.Hour))
		start := time.Now()
		assert.NoError(t, waitForSync(context.Background(), g))
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("timeout starts degraded", func(t *testing.T) {
		t.Parallel()
		marker := filepath.Join(t.TempDir(), ".sync-complete")

		g := gate.New(marker,
			gate.WithInterval(10*time.Millisecond),
			gate.WithTimeout(50*time.Millisecond))
		assert.NoError(t, waitForSync(context.Background(), g),
			"an exhausted wait budget must not block the start")
	})

	t.Run("interrupt aborts the start", func(t *testing.T) {
		t.Parallel()
		marker := filepath.Join(t.TempDir(), ".sync-complete")

		g := gate.New(marker,
			gate.WithInterval(10*time.Millisecond),
			gate.WithTimeout(time.Hour))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- waitForSync(ctx, g) }()
		cancel()

		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(time.Second):
			t.Fatal("waitForSync did not return after cancellation")
		}
	})
}
