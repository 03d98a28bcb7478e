package repository

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SendClaims reserves one prospect step for one dispatch so two operators
// cannot send the same step concurrently.
type SendClaims interface {
	Claim(ctx context.Context, prospectID string, stepIndex int, owner string) (bool, error)
	Release(ctx context.Context, prospectID string, stepIndex int) error
}

func claimKey(prospectID string, stepIndex int) string {
	return fmt.Sprintf("outreach:send-claim:%s:%d", prospectID, stepIndex)
}

// InMemorySendClaims is used when no Redis is configured and in tests.
type InMemorySendClaims struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	claims map[string]time.Time
}

func NewInMemorySendClaims(ttl time.Duration) *InMemorySendClaims {
	return &InMemorySendClaims{
		ttl:    ttl,
		now:    time.Now,
		claims: make(map[string]time.Time),
	}
}

func (c *InMemorySendClaims) Claim(_ context.Context, prospectID string, stepIndex int, _ string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := claimKey(prospectID, stepIndex)
	now := c.now()
	if exp, ok := c.claims[key]; ok && now.Before(exp) {
		return false, nil
	}
	c.claims[key] = now.Add(c.ttl)
	return true, nil
}

func (c *InMemorySendClaims) Release(_ context.Context, prospectID string, stepIndex int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.claims, claimKey(prospectID, stepIndex))
	return nil
}

var _ SendClaims = (*InMemorySendClaims)(nil)
