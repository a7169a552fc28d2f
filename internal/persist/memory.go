package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mugummy/chzzkbot/internal/domain"
)

// MemoryRepository keeps snapshots in process memory for development and
// tests. Snapshots are stored as JSON so load/save round-trips behave the
// same as the Postgres repository.
type MemoryRepository struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{snapshots: make(map[string][]byte)}
}

func (r *MemoryRepository) Load(_ context.Context, channelID string) (*domain.ChannelSnapshot, error) {
	r.mu.RLock()
	raw, exists := r.snapshots[channelID]
	r.mu.RUnlock()
	if !exists {
		return nil, nil
	}

	var snap domain.ChannelSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}

func (r *MemoryRepository) Save(_ context.Context, channelID string, snap *domain.ChannelSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	r.mu.Lock()
	r.snapshots[channelID] = raw
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, channelID string) error {
	r.mu.Lock()
	delete(r.snapshots, channelID)
	r.mu.Unlock()
	return nil
}
