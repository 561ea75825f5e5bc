package tokenflows

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

// TokenCache stores token responses between flow executions so a still-valid
// token is reused instead of re-requested. Implementations must be safe for
// concurrent use. Get returning ok=false, and Put failing silently, are both
// acceptable: the cache is an optimization, never a correctness dependency.
type TokenCache interface {
	Get(ctx context.Context, key string) (tok *oauth2.Token, ok bool)
	Put(ctx context.Context, key string, tok *oauth2.Token)
}

// MemoryCache is the default process-local TokenCache.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*oauth2.Token
	maxSize int
}

// NewMemoryCache returns a cache bounded to maxSize entries; zero selects a
// default bound.
func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize == 0 {
		maxSize = 1000
	}
	return &MemoryCache{entries: make(map[string]*oauth2.Token), maxSize: maxSize}
}

// Get returns the cached token when present and still valid. Expired
// entries are dropped on access.
func (m *MemoryCache) Get(_ context.Context, key string) (*oauth2.Token, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if !tok.Valid() {
		delete(m.entries, key)
		return nil, false
	}
	return tok, true
}

// Put stores the token. When full, the cache drops all expired entries; if
// still full the new token is simply not cached.
func (m *MemoryCache) Put(_ context.Context, key string, tok *oauth2.Token) {
	if tok == nil || tok.Expiry.IsZero() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxSize {
		for k, t := range m.entries {
			if !t.Valid() {
				delete(m.entries, k)
			}
		}
		if len(m.entries) >= m.maxSize {
			return
		}
	}
	m.entries[key] = tok
}

// RedisCache shares token responses across processes through Redis. Entries
// expire with the token so a stale token is never served.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache wraps an existing Redis client. keyPrefix namespaces the
// cache keys; empty selects "tokenflows:".
func NewRedisCache(client *redis.Client, keyPrefix string) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = "tokenflows:"
	}
	return &RedisCache{client: client, prefix: keyPrefix}
}

// Get returns the cached token when present and still valid. Redis errors
// degrade to a cache miss.
func (r *RedisCache) Get(ctx context.Context, key string) (*oauth2.Token, bool) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, false
	}
	if !tok.Valid() {
		return nil, false
	}
	return &tok, true
}

// Put stores the token with a TTL matching its remaining lifetime. Redis
// errors are dropped; the next Get is a miss and the flow re-requests.
func (r *RedisCache) Put(ctx context.Context, key string, tok *oauth2.Token) {
	if tok == nil || tok.Expiry.IsZero() {
		return
	}
	ttl := time.Until(tok.Expiry)
	if ttl <= 0 {
		return
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return
	}
	_ = r.client.Set(ctx, r.prefix+key, data, ttl).Err()
}
