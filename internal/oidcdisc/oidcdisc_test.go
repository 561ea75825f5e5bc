package oidcdisc

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	jose "github.com/go-jose/go-jose/v4"
)

func newDiscoveryServer(t *testing.T, pk *rsa.PrivateKey, kid string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":         srv.URL,
			"jwks_uri":       srv.URL + "/keys",
			"token_endpoint": srv.URL + "/oauth/token",
		})
	})
	mux.HandleFunc("/keys", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []any{jose.JSONWebKey{Key: &pk.PublicKey, KeyID: kid, Algorithm: "RS256", Use: "sig"}},
		})
	})
	return srv
}

func TestDiscoveryKeySource(t *testing.T) {
	pk, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	srv := newDiscoveryServer(t, pk, "disc-key")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ks, err := New(ctx, srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := ks.JwksURI(); got != srv.URL+"/keys" {
		t.Errorf("JwksURI = %q", got)
	}
	if got := ks.TokenEndpoint(); got != srv.URL+"/oauth/token" {
		t.Errorf("TokenEndpoint = %q", got)
	}

	key, err := ks.Resolve(ctx, "RS256", "disc-key", "http://attacker.example/jwks")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	got, ok := key.(*rsa.PublicKey)
	if !ok || got.N.Cmp(pk.PublicKey.N) != 0 {
		t.Error("resolved key does not match the published one")
	}

	if _, err := ks.Resolve(ctx, "RS256", "unknown", ""); err == nil {
		t.Error("unknown kid resolved")
	}
	if _, err := ks.Resolve(ctx, "XX999", "disc-key", ""); err == nil {
		t.Error("unknown algorithm resolved")
	}
}

func TestDiscoveryRequiresReachableIssuer(t *testing.T) {
	if _, err := New(context.Background(), ""); err == nil {
		t.Error("empty issuer accepted")
	}
	if _, err := New(context.Background(), "http://127.0.0.1:1/"); err == nil {
		t.Error("unreachable issuer accepted")
	}
}
