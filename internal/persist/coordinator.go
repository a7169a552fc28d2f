// Package persist stores per-channel snapshots and coalesces the writes.
// Feature state mutates on nearly every chat line, so the coordinator
// debounces: the first dirty mark arms a timer, further marks within the
// window only replace the staged snapshot, and one write goes out when the
// timer fires.
package persist

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"

	"github.com/mugummy/chzzkbot/internal/domain"
	"github.com/mugummy/chzzkbot/internal/metrics"
)

const writeTimeout = 5 * time.Second

type pendingEntry struct {
	snap  *domain.ChannelSnapshot
	timer clockwork.Timer
}

// Coordinator debounces snapshot writes per channel. MarkDirty is cheap and
// safe to call from any goroutine; the actual write happens on a timer
// goroutine behind a circuit breaker, so a struggling database slows nothing
// on the chat path.
type Coordinator struct {
	repo    domain.SnapshotRepository
	clock   clockwork.Clock
	window  time.Duration
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingEntry
	closed  bool
}

func NewCoordinator(repo domain.SnapshotRepository, clock clockwork.Clock, window time.Duration, logger *slog.Logger) *Coordinator {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "snapshot-writes",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
	})
	return &Coordinator{
		repo:    repo,
		clock:   clock,
		window:  window,
		breaker: breaker,
		logger:  logger,
		pending: make(map[string]*pendingEntry),
	}
}

// MarkDirty stages snap as the channel's next write. Later calls within the
// debounce window replace the staged snapshot, so only the newest state hits
// the repository.
func (c *Coordinator) MarkDirty(channelID string, snap *domain.ChannelSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if entry, exists := c.pending[channelID]; exists {
		entry.snap = snap
		return
	}

	entry := &pendingEntry{snap: snap}
	entry.timer = c.clock.AfterFunc(c.window, func() {
		c.flushChannel(channelID)
	})
	c.pending[channelID] = entry
	metrics.PersistPendingChannels.Set(float64(len(c.pending)))
}

func (c *Coordinator) flushChannel(channelID string) {
	c.mu.Lock()
	entry, exists := c.pending[channelID]
	if !exists {
		c.mu.Unlock()
		return
	}
	delete(c.pending, channelID)
	metrics.PersistPendingChannels.Set(float64(len(c.pending)))
	snap := entry.snap
	c.mu.Unlock()

	if err := c.write(channelID, snap); err != nil {
		c.logger.Error("snapshot write failed, rescheduling",
			"channel_id", channelID, "error", err)
		c.restage(channelID, snap)
	}
}

// restage re-arms a snapshot whose write failed. A snapshot marked dirty
// while that write was in flight is newer, so an existing pending entry
// wins and the failed one is dropped.
func (c *Coordinator) restage(channelID string, snap *domain.ChannelSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if _, exists := c.pending[channelID]; exists {
		return
	}

	entry := &pendingEntry{snap: snap}
	entry.timer = c.clock.AfterFunc(c.window, func() {
		c.flushChannel(channelID)
	})
	c.pending[channelID] = entry
	metrics.PersistPendingChannels.Set(float64(len(c.pending)))
}

func (c *Coordinator) write(channelID string, snap *domain.ChannelSnapshot) error {
	start := c.clock.Now()
	_, err := c.breaker.Execute(func() (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		return nil, c.repo.Save(ctx, channelID, snap)
	})
	metrics.PersistFlushDuration.Observe(c.clock.Since(start).Seconds())
	if err != nil {
		metrics.PersistFlushesTotal.WithLabelValues("error").Inc()
		return err
	}
	metrics.PersistFlushesTotal.WithLabelValues("ok").Inc()
	return nil
}

// Flush writes every staged snapshot immediately, bypassing the debounce
// timers and the breaker. Called on shutdown so no channel loses its last
// few seconds of state.
func (c *Coordinator) Flush(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	staged := make(map[string]*domain.ChannelSnapshot, len(c.pending))
	for channelID, entry := range c.pending {
		entry.timer.Stop()
		staged[channelID] = entry.snap
	}
	c.pending = make(map[string]*pendingEntry)
	metrics.PersistPendingChannels.Set(0)
	c.mu.Unlock()

	var errs []error
	for channelID, snap := range staged {
		if err := c.repo.Save(ctx, channelID, snap); err != nil {
			metrics.PersistFlushesTotal.WithLabelValues("error").Inc()
			errs = append(errs, err)
			continue
		}
		metrics.PersistFlushesTotal.WithLabelValues("ok").Inc()
	}
	return errors.Join(errs...)
}

// PendingCount reports how many channels have a staged write.
func (c *Coordinator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
