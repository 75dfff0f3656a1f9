// Package scheduler runs the two-stage sync pipeline: queue workers, the
// per-tag concurrency guard, and the inbound confirmation consumer.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SyncGuard is the per-tag mutual-exclusion primitive of the pipeline.
// Acquire is non-blocking: false means another attempt already holds the tag
// and the caller must abort cleanly. The TTL doubles as crash recovery; there
// is no explicit cancel path.
type SyncGuard interface {
	Acquire(ctx context.Context, tagID uint, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, tagID uint) error
}

func guardKey(tagID uint) string {
	return fmt.Sprintf("shelfsync:guard:%d", tagID)
}

// RedisSyncGuard implements SyncGuard on a shared cache so guard state is
// visible across worker processes
type RedisSyncGuard struct {
	client *redis.Client
}

func NewRedisSyncGuard(client *redis.Client) *RedisSyncGuard {
	return &RedisSyncGuard{client: client}
}

// Acquire establishes the guard only if no unexpired record exists
func (g *RedisSyncGuard) Acquire(ctx context.Context, tagID uint, owner string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, guardKey(tagID), owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("guard acquire failed for tag %d: %w", tagID, err)
	}
	return ok, nil
}

// Release removes the guard unconditionally; releasing an absent guard is a no-op
func (g *RedisSyncGuard) Release(ctx context.Context, tagID uint) error {
	if err := g.client.Del(ctx, guardKey(tagID)).Err(); err != nil {
		return fmt.Errorf("guard release failed for tag %d: %w", tagID, err)
	}
	return nil
}

type memoryGuardEntry struct {
	owner     string
	expiresAt time.Time
}

// MemorySyncGuard is an in-process SyncGuard for tests and single-node
// deployments without a cache
type MemorySyncGuard struct {
	mu      sync.Mutex
	entries map[uint]memoryGuardEntry
}

func NewMemorySyncGuard() *MemorySyncGuard {
	g := &MemorySyncGuard{
		entries: make(map[uint]memoryGuardEntry),
	}
	go g.cleanupLoop()
	return g
}

func (g *MemorySyncGuard) Acquire(_ context.Context, tagID uint, owner string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if e, ok := g.entries[tagID]; ok && time.Now().Before(e.expiresAt) {
		return false, nil
	}
	g.entries[tagID] = memoryGuardEntry{owner: owner, expiresAt: time.Now().Add(ttl)}
	return true, nil
}

func (g *MemorySyncGuard) Release(_ context.Context, tagID uint) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, tagID)
	return nil
}

// cleanupLoop periodically removes expired guard entries
func (g *MemorySyncGuard) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		g.mu.Lock()
		for tagID, e := range g.entries {
			if now.After(e.expiresAt) {
				delete(g.entries, tagID)
			}
		}
		g.mu.Unlock()
	}
}
