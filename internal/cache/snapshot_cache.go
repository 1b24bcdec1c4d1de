package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hargapangan/pangan-monitor/internal/reconcile"
	"github.com/hargapangan/pangan-monitor/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "pangan:national"

// SnapshotCache keeps the national feed of one day so that repeated
// comparisons do not page through the backend again
type SnapshotCache interface {
	GetNational(ctx context.Context, date, category string) ([]reconcile.NationalRaw, bool, error)
	SetNational(ctx context.Context, date, category string, items []reconcile.NationalRaw) error
}

// NationalKey cache key of a category's feed on date; empty category means all
func NationalKey(date, category string) string {
	if category == "" {
		category = "all"
	}
	return fmt.Sprintf("%s:%s:%s", keyPrefix, category, date)
}

type redisSnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSnapshotCache creates a cache backed by Redis
func NewRedisSnapshotCache(client *redis.Client, ttl time.Duration) SnapshotCache {
	return &redisSnapshotCache{client: client, ttl: ttl}
}

func (c *redisSnapshotCache) GetNational(ctx context.Context, date, category string) ([]reconcile.NationalRaw, bool, error) {
	key := NationalKey(date, category)
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		logger.Error("Failed to read national snapshot", err, map[string]interface{}{
			"key": key,
		})
		return nil, false, err
	}

	var items []reconcile.NationalRaw
	if err := json.Unmarshal(data, &items); err != nil {
		// unreadable entry, treat as a miss
		logger.Warn("Discarding unreadable national snapshot", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return nil, false, nil
	}
	return items, true, nil
}

func (c *redisSnapshotCache) SetNational(ctx context.Context, date, category string, items []reconcile.NationalRaw) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal national snapshot: %w", err)
	}
	key := NationalKey(date, category)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logger.Error("Failed to write national snapshot", err, map[string]interface{}{
			"key": key,
		})
		return err
	}
	return nil
}

type memoryEntry struct {
	items   []reconcile.NationalRaw
	expires time.Time
}

type memorySnapshotCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemorySnapshotCache creates an in-process cache, used when Redis is disabled
func NewMemorySnapshotCache(ttl time.Duration) SnapshotCache {
	return newMemorySnapshotCache(ttl, time.Now)
}

func newMemorySnapshotCache(ttl time.Duration, now func() time.Time) *memorySnapshotCache {
	return &memorySnapshotCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     now,
	}
}

func (c *memorySnapshotCache) GetNational(ctx context.Context, date, category string) ([]reconcile.NationalRaw, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[NationalKey(date, category)]
	if !ok || !c.now().Before(entry.expires) {
		return nil, false, nil
	}
	out := make([]reconcile.NationalRaw, len(entry.items))
	copy(out, entry.items)
	return out, true, nil
}

func (c *memorySnapshotCache) SetNational(ctx context.Context, date, category string, items []reconcile.NationalRaw) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.entries {
		if !now.Before(entry.expires) {
			delete(c.entries, key)
		}
	}

	stored := make([]reconcile.NationalRaw, len(items))
	copy(stored, items)
	c.entries[NationalKey(date, category)] = memoryEntry{items: stored, expires: now.Add(c.ttl)}
	return nil
}

// size number of stored entries, expired ones included
func (c *memorySnapshotCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
