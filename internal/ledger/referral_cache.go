package ledger

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/rickgao/emission-engine/internal/mining"
)

// ReferralCache caches referral counts for a short TTL. Errors are not cached.
type ReferralCache struct {
	src   mining.ReferralSource
	cache *expirable.LRU[string, int]
}

// NewReferralCache wraps src with an LRU of size entries.
func NewReferralCache(src mining.ReferralSource, size int, ttl time.Duration) *ReferralCache {
	if size <= 0 {
		size = 1024
	}
	return &ReferralCache{
		src:   src,
		cache: expirable.NewLRU[string, int](size, nil, ttl),
	}
}

// ReferralCount implements mining.ReferralSource.
func (c *ReferralCache) ReferralCount(ctx context.Context, userID string) (int, error) {
	if n, ok := c.cache.Get(userID); ok {
		return n, nil
	}

	n, err := c.src.ReferralCount(ctx, userID)
	if err != nil {
		return 0, err
	}
	c.cache.Add(userID, n)
	return n, nil
}

// Invalidate drops userID's cached count.
func (c *ReferralCache) Invalidate(userID string) {
	c.cache.Remove(userID)
}
