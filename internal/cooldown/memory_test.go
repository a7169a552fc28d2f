package cooldown

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGateBlocksWithinWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	gate := NewMemoryGate(clock)
	ctx := context.Background()

	ok, err := gate.Allow(ctx, "chan1", "viewer1", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	clock.Advance(10 * time.Second)
	ok, err = gate.Allow(ctx, "chan1", "viewer1", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	clock.Advance(21 * time.Second)
	ok, err = gate.Allow(ctx, "chan1", "viewer1", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryGateIsolatesViewersAndChannels(t *testing.T) {
	clock := clockwork.NewFakeClock()
	gate := NewMemoryGate(clock)
	ctx := context.Background()

	ok, _ := gate.Allow(ctx, "chan1", "viewer1", time.Minute)
	assert.True(t, ok)

	ok, _ = gate.Allow(ctx, "chan1", "viewer2", time.Minute)
	assert.True(t, ok)

	ok, _ = gate.Allow(ctx, "chan2", "viewer1", time.Minute)
	assert.True(t, ok)
}

func TestMemoryGateZeroWindowAlwaysAllows(t *testing.T) {
	clock := clockwork.NewFakeClock()
	gate := NewMemoryGate(clock)
	ctx := context.Background()

	for range 3 {
		ok, err := gate.Allow(ctx, "chan1", "viewer1", 0)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestMemoryGatePrune(t *testing.T) {
	clock := clockwork.NewFakeClock()
	gate := NewMemoryGate(clock)
	ctx := context.Background()

	_, _ = gate.Allow(ctx, "chan1", "viewer1", 10*time.Second)
	_, _ = gate.Allow(ctx, "chan1", "viewer2", time.Minute)

	clock.Advance(30 * time.Second)
	gate.Prune()

	assert.Len(t, gate.expires, 1)
}

func TestMemoryGateForget(t *testing.T) {
	clock := clockwork.NewFakeClock()
	gate := NewMemoryGate(clock)
	ctx := context.Background()

	_, _ = gate.Allow(ctx, "chan1", "viewer1", time.Minute)
	_, _ = gate.Allow(ctx, "chan2", "viewer1", time.Minute)

	gate.Forget("chan1")

	ok, _ := gate.Allow(ctx, "chan1", "viewer1", time.Minute)
	assert.True(t, ok)
	ok, _ = gate.Allow(ctx, "chan2", "viewer1", time.Minute)
	assert.False(t, ok)
}

func TestMemoryGatePruneTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	gate := NewMemoryGate(clock)
	ctx := context.Background()

	stop := gate.StartPruneTimer(time.Minute)
	defer stop()

	_, err := gate.Allow(ctx, "chan1", "viewer1", 10*time.Second)
	require.NoError(t, err)

	clock.Advance(time.Minute)

	require.Eventually(t, func() bool {
		gate.mu.Lock()
		defer gate.mu.Unlock()
		return len(gate.expires) == 0
	}, time.Second, 5*time.Millisecond)
}
