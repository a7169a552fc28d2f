package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CooldownGate implements domain.CooldownGate on Redis. SetNX with TTL makes
// the check-and-record step atomic, so it stays correct even when several
// bot instances serve the same channel.
type CooldownGate struct {
	rdb   *redis.Client
	scope string
}

// NewCooldownGate creates a gate. scope namespaces the keys so independent
// features (song requests, chat replies) do not share windows.
func NewCooldownGate(client *Client, scope string) *CooldownGate {
	return &CooldownGate{rdb: client.Underlying(), scope: scope}
}

func (g *CooldownGate) Allow(ctx context.Context, channelID, viewerID string, window time.Duration) (bool, error) {
	if window <= 0 {
		return true, nil
	}
	key := g.scope + ":" + channelID + ":" + viewerID
	set, err := g.rdb.SetNX(ctx, key, "1", window).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check cooldown: %w", err)
	}
	return set, nil
}
