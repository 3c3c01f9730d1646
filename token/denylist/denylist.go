// Package denylist tracks revoked access token IDs until their natural
// expiry. Entries outlive nothing: once a token would have expired anyway the
// entry is dropped.
package denylist

import (
	"context"
	"sync"
	"time"
)

// Store records revoked jtis. Implementations must be safe for concurrent
// use; Contains sits on the hot verification path.
type Store interface {
	Add(ctx context.Context, jti string, expiresAt, now time.Time) error
	Contains(ctx context.Context, jti string) (bool, error)
	Sweep(ctx context.Context, now time.Time) error
}

// InMemory is a map-backed Store for tests and single-node deployments.
type InMemory struct {
	revoked map[string]time.Time
	mu      sync.RWMutex
}

var _ Store = (*InMemory)(nil)

func NewInMemory() *InMemory {
	return &InMemory{
		revoked: make(map[string]time.Time),
	}
}

func (c *InMemory) Add(_ context.Context, jti string, expiresAt, now time.Time) error {
	if !expiresAt.After(now) {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[jti] = expiresAt
	return nil
}

func (c *InMemory) Contains(_ context.Context, jti string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.revoked[jti]
	return exists, nil
}

// Sweep drops entries whose token has expired on its own.
func (c *InMemory) Sweep(_ context.Context, now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for jti, exp := range c.revoked {
		if now.After(exp) {
			delete(c.revoked, jti)
		}
	}
	return nil
}
