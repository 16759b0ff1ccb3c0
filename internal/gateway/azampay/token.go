package azampay

import (
	"context"
	"sync"
	"time"
)

// Gateway tokens are valid for an hour; refresh five minutes early so a
// checkout never races token expiry mid-call.
const tokenTTL = 55 * time.Minute

// tokenCache caches the gateway access token with clock-based expiry. The
// clock is injectable so expiry is testable without sleeping.
type tokenCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
	ttl       time.Duration
	now       func() time.Time
	fetch     func(ctx context.Context) (string, error)
}

func newTokenCache(ttl time.Duration, now func() time.Time, fetch func(ctx context.Context) (string, error)) *tokenCache {
	if now == nil {
		now = time.Now
	}
	return &tokenCache{ttl: ttl, now: now, fetch: fetch}
}

// get returns the cached token while valid, otherwise fetches a fresh one.
// The mutex also single-flights concurrent refreshes.
func (tc *tokenCache) get(ctx context.Context) (string, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.token != "" && tc.now().Before(tc.expiresAt) {
		return tc.token, nil
	}

	token, err := tc.fetch(ctx)
	if err != nil {
		return "", err
	}
	tc.token = token
	tc.expiresAt = tc.now().Add(tc.ttl)
	return token, nil
}
