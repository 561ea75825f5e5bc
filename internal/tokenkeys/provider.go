package tokenkeys

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tenantsec/cloudauth-go/internal/httpx"
)

// ErrKeyNotFound indicates the issuer's key set, after a fetch attempt, does
// not vouch for the (algorithm, key id) pair the token names.
var ErrKeyNotFound = errors.New("tokenkeys: key not found")

// ErrServiceUnavailable indicates the JWKS endpoint could not be reached or
// answered with a non-success status.
var ErrServiceUnavailable = errors.New("tokenkeys: key service unavailable")

// CacheConfig bounds how long and how much key material is reused.
type CacheConfig struct {
	// TTL is how long a fetched key set is served before a refresh is
	// attempted. Zero selects the default.
	TTL time.Duration
	// MaxKeys caps keys retained per issuer endpoint. Zero selects the
	// default.
	MaxKeys int
	// MaxTenants caps memoized tenant-acceptance decisions per endpoint.
	// Zero selects the default.
	MaxTenants int
}

const (
	defaultTTL        = 10 * time.Minute
	defaultMaxKeys    = 1000
	defaultMaxTenants = 1000
)

func (c CacheConfig) withDefaults() CacheConfig {
	if c.TTL == 0 {
		c.TTL = defaultTTL
	}
	if c.MaxKeys == 0 {
		c.MaxKeys = defaultMaxKeys
	}
	if c.MaxTenants == 0 {
		c.MaxTenants = defaultMaxTenants
	}
	return c
}

// Provider resolves verification keys for one trusted issuer authority. It
// gates every candidate URL through the SSRF trust gate and keeps a single
// cached key set for the gate-validated authority, published atomically.
// Keying the cache by anything token-supplied (such as the jku path) would
// let an attacker mint one cache entry and one upstream fetch per token;
// the gate admits exactly one authority, so one entry is all there is.
type Provider struct {
	client  httpx.Doer
	gate    *TrustGate
	jwksURL string
	cfg     CacheConfig

	// Fetch headers the provider forwards so multi-tenant issuers can
	// select the tenant's key material.
	clientID string
	appTID   string

	entry cacheEntry
}

type cacheEntry struct {
	mu   sync.Mutex // serializes fetch and republish, never readers
	snap atomic.Pointer[snapshot]
}

type snapshot struct {
	set       *KeySet
	fetchedAt time.Time
}

// ProviderConfig configures a Provider.
type ProviderConfig struct {
	// Client executes JWKS fetches. Required.
	Client httpx.Doer
	// JwksURL is the issuer's configured JWKS endpoint. It both seeds the
	// trust gate and serves as the fetch URL when a token carries no jku.
	JwksURL string
	// ClientID and AppTID, when set, are forwarded as x-client_id and
	// x-app_tid fetch headers.
	ClientID string
	AppTID   string
	Cache    CacheConfig
}

// NewProvider builds a Provider. The trust gate is derived from JwksURL.
func NewProvider(cfg ProviderConfig) (*Provider, error) {
	if cfg.Client == nil {
		return nil, errors.New("tokenkeys: client is required")
	}
	gate, err := NewTrustGate(cfg.JwksURL)
	if err != nil {
		return nil, fmt.Errorf("tokenkeys: %w", err)
	}
	return &Provider{
		client:   cfg.Client,
		gate:     gate,
		jwksURL:  cfg.JwksURL,
		cfg:      cfg.Cache.withDefaults(),
		clientID: cfg.ClientID,
		appTID:   cfg.AppTID,
	}, nil
}

// Resolve returns the verification key for (alg, kid). jwksURL is the
// token-supplied jku header, or "" to use the configured endpoint; either
// way it passes the trust gate before any fetch. The cached-key path makes
// no network call.
func (p *Provider) Resolve(ctx context.Context, alg, kid, jwksURL string) (crypto.PublicKey, error) {
	if jwksURL == "" {
		jwksURL = p.jwksURL
	}
	if err := p.gate.Check(jwksURL); err != nil {
		return nil, err
	}

	entry := &p.entry
	if snap := entry.snap.Load(); snap != nil && time.Since(snap.fetchedAt) < p.cfg.TTL {
		if k, ok := snap.set.KeyByAlgorithmAndID(alg, kid); ok {
			return k.Key, nil
		}
	}

	if err := p.refresh(ctx, entry, jwksURL); err != nil {
		return nil, err
	}

	if snap := entry.snap.Load(); snap != nil {
		if k, ok := snap.set.KeyByAlgorithmAndID(alg, kid); ok {
			return k.Key, nil
		}
	}
	return nil, fmt.Errorf("%w: alg=%s kid=%s", ErrKeyNotFound, alg, kid)
}

// IsAppTIDAccepted returns the memoized trust decision for the tenant,
// computing and memoizing it on first sight. Memos live and die with the
// cache generation: once a snapshot ages past the TTL its decisions are
// discarded and compute runs again, so a tenant revoked at the identity
// service stops being accepted within one TTL.
func (p *Provider) IsAppTIDAccepted(appTID string, compute func() bool) bool {
	entry := &p.entry
	if snap := entry.snap.Load(); snap != nil && time.Since(snap.fetchedAt) < p.cfg.TTL && snap.set.ContainsAppTID(appTID) {
		return snap.set.IsAppTIDAccepted(appTID)
	}

	accepted := compute()

	entry.mu.Lock()
	defer entry.mu.Unlock()
	cur := entry.snap.Load()
	if cur != nil && time.Since(cur.fetchedAt) < p.cfg.TTL {
		if cur.set.ContainsAppTID(appTID) {
			return cur.set.IsAppTIDAccepted(appTID)
		}
		next := &snapshot{set: cur.set.Clone(), fetchedAt: cur.fetchedAt}
		next.set.WithAppTID(appTID, accepted)
		entry.snap.Store(next)
		return accepted
	}
	next := &snapshot{set: NewKeySet(p.cfg.MaxKeys, p.cfg.MaxTenants), fetchedAt: time.Now()}
	next.set.WithAppTID(appTID, accepted)
	entry.snap.Store(next)
	return accepted
}

// refresh fetches the key set and publishes a new snapshot. Within the TTL
// the fetched keys are merged into the current set (old ∪ new); past it the
// fetched set replaces the old snapshot wholesale, dropping stale keys and
// tenant memos alike. Readers observe either the old or the new snapshot,
// never an intermediate state.
func (p *Provider) refresh(ctx context.Context, entry *cacheEntry, jwksURL string) error {
	entry.mu.Lock()
	defer entry.mu.Unlock()

	// Another goroutine may have refreshed while we waited for the lock.
	if snap := entry.snap.Load(); snap != nil && time.Since(snap.fetchedAt) < p.cfg.TTL && snap.set.Len() > 0 {
		return nil
	}

	headers := map[string]string{}
	if p.clientID != "" {
		headers["x-client_id"] = p.clientID
	}
	if p.appTID != "" {
		headers["x-app_tid"] = p.appTID
	}
	doc, err := httpx.GetJSON(ctx, p.client, jwksURL, headers)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	fetched, err := ParseJWKS(doc, p.cfg.MaxKeys, p.cfg.MaxTenants)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	next := fetched
	if cur := entry.snap.Load(); cur != nil && time.Since(cur.fetchedAt) < p.cfg.TTL {
		merged := cur.set.Clone()
		merged.PutAll(fetched)
		next = merged
	}
	entry.snap.Store(&snapshot{set: next, fetchedAt: time.Now()})
	return nil
}
