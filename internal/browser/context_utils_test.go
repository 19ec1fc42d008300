// internal/browser/context_utils_test.go
package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombineContext(t *testing.T) {
	type ctxKey string
	const key ctxKey = "engine"

	t.Run("KeepsEngineValues", func(t *testing.T) {
		engineCtx := context.WithValue(context.Background(), key, "tab-1")
		combined, cancel := CombineContext(engineCtx, context.Background())
		defer cancel()

		assert.Equal(t, "tab-1", combined.Value(key))
		assert.NoError(t, combined.Err())
	})

	t.Run("CanceledByOperation", func(t *testing.T) {
		opCtx, cancelOp := context.WithCancel(context.Background())
		combined, cancel := CombineContext(context.Background(), opCtx)
		defer cancel()

		cancelOp()
		assert.Eventually(t, func() bool { return combined.Err() != nil }, time.Second, 5*time.Millisecond)
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})

	t.Run("CanceledByEngine", func(t *testing.T) {
		engineCtx, cancelEngine := context.WithCancel(context.Background())
		combined, cancel := CombineContext(engineCtx, context.Background())
		defer cancel()

		cancelEngine()
		assert.Eventually(t, func() bool { return combined.Err() != nil }, time.Second, 5*time.Millisecond)
	})

	t.Run("CarriesOperationDeadline", func(t *testing.T) {
		deadline := time.Now().Add(time.Minute)
		opCtx, cancelOp := context.WithDeadline(context.Background(), deadline)
		defer cancelOp()

		combined, cancel := CombineContext(context.Background(), opCtx)
		defer cancel()

		got, ok := combined.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, deadline, got, time.Millisecond)
	})
}

func TestDetach(t *testing.T) {
	type ctxKey string
	parent, cancel := context.WithTimeout(context.WithValue(context.Background(), ctxKey("k"), "v"), time.Millisecond)
	cancel()

	detached := Detach(parent)
	assert.NoError(t, detached.Err())
	assert.Nil(t, detached.Done())
	_, ok := detached.Deadline()
	assert.False(t, ok)
	assert.Equal(t, "v", detached.Value(ctxKey("k")))
}

func TestRemainingMillis(t *testing.T) {
	assert.Equal(t, float64(1500), RemainingMillis(context.Background(), 1500*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	got := RemainingMillis(ctx, time.Millisecond)
	assert.Greater(t, got, float64(9000))
	assert.LessOrEqual(t, got, float64(10000))
}
