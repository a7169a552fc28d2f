package domain

import (
	"context"
	"time"
)

// ChatSender delivers outbound chat messages to the gateway. Fire-and-forget
// semantics: callers log failures and move on.
type ChatSender interface {
	SendChat(ctx context.Context, channelID, message string) error
}

// Broadcaster pushes a feature-tagged payload to every dashboard subscriber
// of a channel. Delivery is best effort.
type Broadcaster interface {
	Broadcast(channelID string, feature FeatureTag, payload any)
}

// SnapshotRepository persists per-channel snapshots. Load returns nil, nil
// when no snapshot exists yet. Delete is idempotent.
type SnapshotRepository interface {
	Load(ctx context.Context, channelID string) (*ChannelSnapshot, error)
	Save(ctx context.Context, channelID string, snap *ChannelSnapshot) error
	Delete(ctx context.Context, channelID string) error
}

// SongResolver looks up video metadata for a song request query.
type SongResolver interface {
	Resolve(ctx context.Context, query string) (*Song, error)
}

// LiveStatusSource supplies stream metadata for template substitution.
type LiveStatusSource interface {
	Status(ctx context.Context, channelID string) (*LiveStatus, error)
}

// CooldownGate answers whether a viewer action is allowed, atomically
// recording the attempt when it is. Implementations: in-memory map, Redis
// SetNX with TTL.
type CooldownGate interface {
	Allow(ctx context.Context, channelID, viewerID string, window time.Duration) (bool, error)
}
