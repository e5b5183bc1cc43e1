package target

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// expirySkew is subtracted from a token's lifetime so a token close to
// expiry is refreshed before a push could race it.
const expirySkew = 30 * time.Second

// Authenticator exchanges credentials for a token. *Client implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (*Token, error)
}

// TokenCache amortizes authentication across a batch. It holds at most one
// token per credential identity and collapses concurrent refreshes for the
// same credentials into a single outbound call.
type TokenCache struct {
	auth  Authenticator
	group singleflight.Group

	mu     sync.Mutex
	tokens map[string]*Token

	// now is swappable for expiry tests.
	now func() time.Time
}

// NewTokenCache creates a cache backed by the given authenticator.
func NewTokenCache(auth Authenticator) *TokenCache {
	return &TokenCache{
		auth:   auth,
		tokens: make(map[string]*Token),
		now:    time.Now,
	}
}

// Get returns a valid token for the credentials, authenticating only when no
// unexpired cached token exists. Concurrent callers missing the cache for the
// same credentials share one in-flight authentication call and its outcome.
func (c *TokenCache) Get(ctx context.Context, creds Credentials) (*Token, error) {
	key := creds.ClientID + "\x00" + creds.ClientSecret

	if token := c.cached(key); token != nil {
		return token, nil
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		// A caller that queued behind the refresh may find the fresh token.
		if token := c.cached(key); token != nil {
			return token, nil
		}
		token, err := c.auth.Authenticate(ctx, creds)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.tokens[key] = token
		c.mu.Unlock()
		return token, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Token), nil
}

// cached returns the unexpired cached token for a key, or nil.
func (c *TokenCache) cached(key string) *Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	token, ok := c.tokens[key]
	if !ok {
		return nil
	}
	if c.now().Add(expirySkew).After(token.ExpiresAt) {
		delete(c.tokens, key)
		return nil
	}
	return token
}
