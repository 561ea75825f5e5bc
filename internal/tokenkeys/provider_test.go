package tokenkeys

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"

	"github.com/tenantsec/cloudauth-go/internal/httpx"
)

func jwksServer(t *testing.T, kid string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	pk, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	doc, err := json.Marshal(map[string]any{
		"keys": []any{jose.JSONWebKey{Key: &pk.PublicKey, KeyID: kid, Algorithm: "RS256", Use: "sig"}},
	})
	if err != nil {
		t.Fatalf("marshal jwks: %v", err)
	}

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(doc)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestProvider(t *testing.T, jwksURL string) *Provider {
	t.Helper()
	p, err := NewProvider(ProviderConfig{
		Client:  httpx.NewClient(5 * time.Second),
		JwksURL: jwksURL,
	})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	return p
}

func TestResolveCachesAcrossCalls(t *testing.T) {
	srv, hits := jwksServer(t, "key-1")
	p := newTestProvider(t, srv.URL+"/token_keys")

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := p.Resolve(ctx, "RS256", "key-1", ""); err != nil {
			t.Fatalf("Resolve #%d: %v", i, err)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("JWKS endpoint hit %d times, want 1", got)
	}
}

func TestResolveUnknownKeyAfterFetch(t *testing.T) {
	srv, hits := jwksServer(t, "key-1")
	p := newTestProvider(t, srv.URL+"/token_keys")

	_, err := p.Resolve(context.Background(), "RS256", "no-such-key", "")
	if !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("err = %v, want ErrKeyNotFound", err)
	}
	// A fresh snapshot suppresses refetching for every bad token.
	if _, err := p.Resolve(context.Background(), "RS256", "still-missing", ""); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("err = %v, want ErrKeyNotFound", err)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("JWKS endpoint hit %d times, want 1", got)
	}
}

func TestResolveRejectsUntrustedURLWithoutFetching(t *testing.T) {
	srv, hits := jwksServer(t, "key-1")
	p := newTestProvider(t, srv.URL+"/token_keys")

	evil := srv.URL + "/token_keys@malicious.example/token_keys"
	_, err := p.Resolve(context.Background(), "RS256", "key-1", evil)
	if !errors.Is(err, ErrUntrustedEndpoint) {
		t.Fatalf("err = %v, want ErrUntrustedEndpoint", err)
	}
	if got := hits.Load(); got != 0 {
		t.Fatalf("JWKS endpoint hit %d times, want 0", got)
	}
}

func TestResolveServiceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	p := newTestProvider(t, srv.URL+"/token_keys")

	_, err := p.Resolve(context.Background(), "RS256", "key-1", "")
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("err = %v, want ErrServiceUnavailable", err)
	}
}

func TestResolveVariedTrustedPathsShareCache(t *testing.T) {
	srv, hits := jwksServer(t, "key-1")
	p := newTestProvider(t, srv.URL+"/token_keys")

	// A token controls its jku path freely; only the authority is pinned.
	// Distinct paths at the trusted host must not mint distinct cache
	// entries or upstream fetches.
	ctx := context.Background()
	for i := 0; i < 200; i++ {
		jku := fmt.Sprintf("%s/token_keys/%d", srv.URL, i)
		if _, err := p.Resolve(ctx, "RS256", "key-1", jku); err != nil {
			t.Fatalf("Resolve %q: %v", jku, err)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("JWKS endpoint hit %d times, want 1", got)
	}
}

func TestIsAppTIDAcceptedMemoizes(t *testing.T) {
	srv, _ := jwksServer(t, "key-1")
	p := newTestProvider(t, srv.URL+"/token_keys")

	var computations atomic.Int32
	compute := func() bool {
		computations.Add(1)
		return true
	}
	for i := 0; i < 4; i++ {
		if !p.IsAppTIDAccepted("tenant-a", compute) {
			t.Fatal("tenant-a should be accepted")
		}
	}
	if got := computations.Load(); got != 1 {
		t.Fatalf("acceptance computed %d times, want 1", got)
	}
}

func TestIsAppTIDAcceptedExpiresWithTTL(t *testing.T) {
	srv, _ := jwksServer(t, "key-1")
	p, err := NewProvider(ProviderConfig{
		Client:  httpx.NewClient(5 * time.Second),
		JwksURL: srv.URL + "/token_keys",
		Cache:   CacheConfig{TTL: 50 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	var computations atomic.Int32
	var accept atomic.Bool
	accept.Store(true)
	compute := func() bool {
		computations.Add(1)
		return accept.Load()
	}

	if !p.IsAppTIDAccepted("tenant-a", compute) {
		t.Fatal("tenant-a should be accepted while the identity service vouches for it")
	}
	if !p.IsAppTIDAccepted("tenant-a", compute) {
		t.Fatal("memoized decision changed within the TTL")
	}
	if got := computations.Load(); got != 1 {
		t.Fatalf("acceptance computed %d times within the TTL, want 1", got)
	}

	// The identity service revokes the tenant. Once the memo's generation
	// ages past the TTL the decision must be recomputed, not served stale.
	accept.Store(false)
	time.Sleep(60 * time.Millisecond)
	if p.IsAppTIDAccepted("tenant-a", compute) {
		t.Fatal("revoked tenant still accepted after the TTL elapsed")
	}
	if got := computations.Load(); got != 2 {
		t.Fatalf("acceptance computed %d times after expiry, want 2", got)
	}
}
