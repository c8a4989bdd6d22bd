// Package cache provides the catalog response cache: Redis in production,
// an in-memory TTL map otherwise.
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Cache stores JSON-serializable catalog responses.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, v any) error
}

type memoryItem struct {
	data      []byte
	expiresAt time.Time
}

// TTLCache is an in-memory Cache with per-entry expiry and optional NATS
// key-level invalidation.
type TTLCache struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	ttl   time.Duration
}

// NewTTLCache creates a TTLCache and wires up NATS invalidation when nc is
// non-nil. An invalidation message carries the key to drop, or "ALL".
func NewTTLCache(ttl time.Duration, nc *nats.Conn, subj string) *TTLCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	c := &TTLCache{
		items: make(map[string]memoryItem),
		ttl:   ttl,
	}
	if nc != nil && subj != "" {
		_, _ = nc.Subscribe(subj, func(m *nats.Msg) {
			key := string(m.Data)
			c.mu.Lock()
			defer c.mu.Unlock()
			if key == "" || strings.EqualFold(key, "ALL") {
				c.items = make(map[string]memoryItem)
				return
			}
			delete(c.items, key)
		})
	}
	return c
}

func (c *TTLCache) Get(_ context.Context, key string, dest any) (bool, error) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if time.Now().After(it.expiresAt) {
		c.mu.Lock()
		if cur, ok2 := c.items[key]; ok2 && time.Now().After(cur.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return false, nil
	}
	if err := json.Unmarshal(it.data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *TTLCache) Set(_ context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.items[key] = memoryItem{data: b, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return nil
}
