// Package redis wraps the go-redis client and provides the Redis-backed
// cooldown gate (SetNX with TTL, atomic across instances).
package redis
