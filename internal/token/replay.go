package token

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rasinmuhammed/matrix-admin/model"
)

// ReplayGuard enforces single-use semantics for capability tokens.
// Consume marks a token ID as spent; a second Consume of the same ID
// within ttl fails with TOKEN_REPLAYED.
type ReplayGuard interface {
	Consume(ctx context.Context, tokenID string, ttl time.Duration) error
}

// MemoryReplayGuard is an in-process ReplayGuard for single-instance
// deployments and tests.
type MemoryReplayGuard struct {
	mu    sync.Mutex
	spent map[string]time.Time
	now   func() time.Time
}

// NewMemoryReplayGuard creates an empty in-memory guard.
func NewMemoryReplayGuard() *MemoryReplayGuard {
	return &MemoryReplayGuard{spent: map[string]time.Time{}, now: time.Now}
}

// Consume implements ReplayGuard.
func (g *MemoryReplayGuard) Consume(_ context.Context, tokenID string, ttl time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for id, expires := range g.spent {
		if now.After(expires) {
			delete(g.spent, id)
		}
	}

	if _, ok := g.spent[tokenID]; ok {
		return model.NewTokenReplayedError()
	}
	g.spent[tokenID] = now.Add(ttl)
	return nil
}

// RedisReplayGuard is a ReplayGuard backed by Redis, for deployments
// with more than one admin instance behind a load balancer.
type RedisReplayGuard struct {
	client *redis.Client
	prefix string
}

// NewRedisReplayGuard creates a guard on the given client. Keys are
// namespaced under the prefix, which defaults to "capability:".
func NewRedisReplayGuard(client *redis.Client, prefix string) *RedisReplayGuard {
	if prefix == "" {
		prefix = "capability:"
	}
	return &RedisReplayGuard{client: client, prefix: prefix}
}

// Consume implements ReplayGuard using SETNX so concurrent presentations
// of the same token race safely.
func (g *RedisReplayGuard) Consume(ctx context.Context, tokenID string, ttl time.Duration) error {
	ok, err := g.client.SetNX(ctx, g.prefix+tokenID, "1", ttl).Result()
	if err != nil {
		return model.NewInternalError()
	}
	if !ok {
		return model.NewTokenReplayedError()
	}
	return nil
}

// HealthCheck reports whether Redis is reachable.
func (g *RedisReplayGuard) HealthCheck(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}
