package memory

import (
	"context"
	"sync"
	"time"
)

// CodeIndex is an in-memory join-code reservation table with expiry, mirroring
// the Redis-backed index used in production.
type CodeIndex struct {
	clock func() time.Time

	mu    sync.Mutex
	codes map[string]time.Time // code -> expiry
}

func NewCodeIndex() *CodeIndex {
	return &CodeIndex{
		clock: time.Now,
		codes: make(map[string]time.Time),
	}
}

func (c *CodeIndex) Reserve(_ context.Context, code string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock()
	if expiry, ok := c.codes[code]; ok && expiry.After(now) {
		return false, nil
	}
	c.codes[code] = now.Add(ttl)
	return true, nil
}

func (c *CodeIndex) Exists(_ context.Context, code string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	expiry, ok := c.codes[code]
	return ok && expiry.After(c.clock()), nil
}

func (c *CodeIndex) Release(_ context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.codes, code)
	return nil
}
