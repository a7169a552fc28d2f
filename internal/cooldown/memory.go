// Package cooldown provides an in-memory cooldown gate for single-instance
// deployments. The Redis-backed gate in internal/redis replaces it when the
// bot runs behind a shared Redis.
package cooldown

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type gateKey struct {
	ChannelID string
	ViewerID  string
}

// MemoryGate tracks cooldown windows in a local map. Expired entries are
// removed lazily on Allow and in bulk via Prune.
type MemoryGate struct {
	clock clockwork.Clock

	mu      sync.Mutex
	expires map[gateKey]time.Time
}

func NewMemoryGate(clock clockwork.Clock) *MemoryGate {
	return &MemoryGate{
		clock:   clock,
		expires: make(map[gateKey]time.Time),
	}
}

func (g *MemoryGate) Allow(_ context.Context, channelID, viewerID string, window time.Duration) (bool, error) {
	if window <= 0 {
		return true, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	key := gateKey{ChannelID: channelID, ViewerID: viewerID}
	now := g.clock.Now()
	if expiry, exists := g.expires[key]; exists && now.Before(expiry) {
		return false, nil
	}
	g.expires[key] = now.Add(window)
	return true, nil
}

// Prune removes expired entries. Call periodically from a maintenance loop.
func (g *MemoryGate) Prune() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	for key, expiry := range g.expires {
		if !now.Before(expiry) {
			delete(g.expires, key)
		}
	}
}

// StartPruneTimer runs Prune every interval until the returned stop
// function is called.
func (g *MemoryGate) StartPruneTimer(interval time.Duration) func() {
	stop := make(chan struct{})
	go func() {
		ticker := g.clock.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				g.Prune()
			case <-stop:
				return
			}
		}
	}()
	return func() { close(stop) }
}

// Forget clears all windows for a channel, used when a channel session is
// torn down.
func (g *MemoryGate) Forget(channelID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for key := range g.expires {
		if key.ChannelID == channelID {
			delete(g.expires, key)
		}
	}
}
