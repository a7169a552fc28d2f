package session

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/mugummy/chzzkbot/internal/domain"
	"github.com/mugummy/chzzkbot/internal/metrics"
)

// Registry owns the live channel sessions. It is the only place that maps a
// channel id to its coordinator; everything that needs a session resolves it
// here instead of through package-level state.
type Registry struct {
	repo  domain.SnapshotRepository
	deps  Deps
	group singleflight.Group

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
}

func NewRegistry(repo domain.SnapshotRepository, deps Deps) *Registry {
	return &Registry{
		repo:     repo,
		deps:     deps,
		sessions: make(map[string]*Session),
	}
}

// Lookup returns the session if the channel is already active.
func (r *Registry) Lookup(channelID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, exists := r.sessions[channelID]
	return s, exists
}

// Activate returns the channel's session, creating it from the stored
// snapshot if needed. Concurrent activations of the same channel collapse
// into one load via singleflight.
func (r *Registry) Activate(ctx context.Context, channelID string) (*Session, error) {
	if s, exists := r.Lookup(channelID); exists {
		return s, nil
	}

	v, err, _ := r.group.Do(channelID, func() (any, error) {
		if s, exists := r.Lookup(channelID); exists {
			return s, nil
		}

		snap, err := r.repo.Load(ctx, channelID)
		if err != nil {
			return nil, fmt.Errorf("failed to load channel snapshot: %w", err)
		}

		s := New(channelID, snap, r.deps)

		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			s.Stop()
			return nil, fmt.Errorf("registry is shut down")
		}
		r.sessions[channelID] = s
		metrics.SessionsActive.Set(float64(len(r.sessions)))
		r.mu.Unlock()

		r.deps.Logger.Info("channel session activated", "channel_id", channelID)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// Deactivate stops a channel's session and forgets it. Its staged snapshot
// still flushes through the persistence coordinator.
func (r *Registry) Deactivate(channelID string) {
	r.mu.Lock()
	s, exists := r.sessions[channelID]
	if exists {
		delete(r.sessions, channelID)
		metrics.SessionsActive.Set(float64(len(r.sessions)))
	}
	r.mu.Unlock()

	if exists {
		s.Stop()
		r.forgetCooldowns(channelID)
		r.deps.Logger.Info("channel session deactivated", "channel_id", channelID)
	}
}

// forgetCooldowns drops the channel's cooldown windows when the gate keeps
// them locally. The Redis gate expires its keys by TTL instead.
func (r *Registry) forgetCooldowns(channelID string) {
	if f, ok := r.deps.SongGate.(interface{ Forget(channelID string) }); ok {
		f.Forget(channelID)
	}
}

// Teardown deactivates the channel and deletes its stored snapshot. Meant
// for channels the bot is leaving for good, not for routine shutdown.
func (r *Registry) Teardown(ctx context.Context, channelID string) error {
	r.Deactivate(channelID)
	if err := r.repo.Delete(ctx, channelID); err != nil {
		return fmt.Errorf("failed to delete channel snapshot: %w", err)
	}
	return nil
}

// ActiveChannels lists the ids of all live sessions.
func (r *Registry) ActiveChannels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown stops every session. Callers flush the persistence coordinator
// afterwards.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	r.closed = true
	stopping := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		stopping = append(stopping, s)
		delete(r.sessions, id)
	}
	metrics.SessionsActive.Set(0)
	r.mu.Unlock()

	for _, s := range stopping {
		s.Stop()
	}
}
