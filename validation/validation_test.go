package validation

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tenantsec/cloudauth-go/token"
)

// testIDP is a mock identity provider serving a single-key JWKS and signing
// test tokens with the matching private key.
type testIDP struct {
	srv  *httptest.Server
	pk   *rsa.PrivateKey
	kid  string
	hits atomic.Int32
}

func newTestIDP(t *testing.T) *testIDP {
	t.Helper()
	pk, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	idp := &testIDP{pk: pk, kid: "test-key"}

	jwks, err := json.Marshal(map[string]any{
		"keys": []any{jose.JSONWebKey{Key: &pk.PublicKey, KeyID: idp.kid, Algorithm: "RS256", Use: "sig"}},
	})
	if err != nil {
		t.Fatalf("marshal jwks: %v", err)
	}
	idp.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idp.hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(jwks)
	}))
	t.Cleanup(idp.srv.Close)
	return idp
}

func (idp *testIDP) jwksURL() string { return idp.srv.URL + "/token_keys" }

func (idp *testIDP) config() Config {
	return Config{
		IssuerURL: idp.srv.URL,
		JwksURL:   idp.jwksURL(),
		ClientID:  "my-client",
	}
}

func (idp *testIDP) claims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss": idp.srv.URL,
		"sub": "user-1",
		"aud": "my-client",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
}

func (idp *testIDP) sign(t *testing.T, header map[string]any, claims jwt.MapClaims) *token.Token {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = idp.kid
	for k, v := range header {
		tok.Header[k] = v
	}
	raw, err := tok.SignedString(idp.pk)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	decoded, err := token.Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return decoded
}

func buildChain(t *testing.T, b *Builder) *CombiningValidator {
	t.Helper()
	chain, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return chain
}

func TestChainAcceptsValidToken(t *testing.T) {
	idp := newTestIDP(t)
	chain := buildChain(t, NewBuilder(idp.config()))

	res := chain.Validate(context.Background(), idp.sign(t, nil, idp.claims()))
	if !res.Valid() {
		t.Fatalf("valid token rejected: %s", res)
	}
}

func TestChainNamesFailingCheck(t *testing.T) {
	idp := newTestIDP(t)

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	forged := jwt.NewWithClaims(jwt.SigningMethodRS256, idp.claims())
	forged.Header["kid"] = idp.kid
	forgedRaw, err := forged.SignedString(otherKey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	forgedTok, err := token.Decode(forgedRaw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	expired := idp.claims()
	expired["exp"] = time.Now().Add(-time.Hour).Unix()
	wrongAud := idp.claims()
	wrongAud["aud"] = "someone-else"
	wrongIss := idp.claims()
	wrongIss["iss"] = "https://attacker.example.com"
	wrongTenant := idp.claims()
	wrongTenant["app_tid"] = "tenant-b"

	cases := []struct {
		name  string
		tok   *token.Token
		check string
	}{
		{"expired", idp.sign(t, nil, expired), "expiration"},
		{"wrong audience", idp.sign(t, nil, wrongAud), "audience"},
		{"wrong issuer", idp.sign(t, nil, wrongIss), "issuer"},
		{"wrong tenant", idp.sign(t, nil, wrongTenant), "tenant"},
		{"forged signature", forgedTok, "signature"},
	}
	for _, tc := range cases {
		chain := buildChain(t, NewBuilder(idp.config()))
		res := chain.Validate(context.Background(), tc.tok)
		if res.Valid() {
			t.Errorf("%s: token accepted", tc.name)
			continue
		}
		if res.Check() != tc.check {
			t.Errorf("%s: failing check = %q, want %q (%s)", tc.name, res.Check(), tc.check, res)
		}
		if res.Description() == "" {
			t.Errorf("%s: no diagnostic reason", tc.name)
		}
	}
}

func TestChainRejectsUntrustedJwksURL(t *testing.T) {
	idp := newTestIDP(t)

	cases := []struct {
		jku     string
		trusted bool
	}{
		{idp.jwksURL(), true},
		{idp.jwksURL() + "@malicious.example/token_keys", false},
		{"http://user@" + idp.srv.Listener.Addr().String() + "/token_keys", true},
		{idp.jwksURL() + "///malicious.example/token_keys", false},
	}
	for _, tc := range cases {
		idp.hits.Store(0)
		chain := buildChain(t, NewBuilder(idp.config()))
		tok := idp.sign(t, map[string]any{"jku": tc.jku}, idp.claims())

		res := chain.Validate(context.Background(), tok)
		if res.Valid() != tc.trusted {
			t.Errorf("jku %q: valid = %v, want %v (%s)", tc.jku, res.Valid(), tc.trusted, res)
		}
		if tc.trusted {
			if got := idp.hits.Load(); got != 1 {
				t.Errorf("jku %q: JWKS fetched %d times, want 1", tc.jku, got)
			}
		} else {
			if res.Check() != "signature" {
				t.Errorf("jku %q: failing check = %q, want signature", tc.jku, res.Check())
			}
			if got := idp.hits.Load(); got != 0 {
				t.Errorf("jku %q: rejected URL was fetched %d times", tc.jku, got)
			}
		}
	}
}

func TestChainNotifiesListeners(t *testing.T) {
	idp := newTestIDP(t)

	var outcomes []Result
	b := NewBuilder(idp.config()).
		WithListener(func(_ *token.Token, r Result) { panic("listener bug") }).
		WithListener(func(_ *token.Token, r Result) { outcomes = append(outcomes, r) })
	chain := buildChain(t, b)

	good := idp.sign(t, nil, idp.claims())
	if res := chain.Validate(context.Background(), good); !res.Valid() {
		t.Fatalf("panicking listener affected outcome: %s", res)
	}

	expired := idp.claims()
	expired["exp"] = time.Now().Add(-time.Hour).Unix()
	chain.Validate(context.Background(), idp.sign(t, nil, expired))

	if len(outcomes) != 2 {
		t.Fatalf("listener saw %d outcomes, want 2", len(outcomes))
	}
	if !outcomes[0].Valid() || outcomes[1].Valid() {
		t.Errorf("listener outcomes = %v", outcomes)
	}
}

func TestChainRunsCustomValidators(t *testing.T) {
	idp := newTestIDP(t)
	b := NewBuilder(idp.config()).
		With("user-scope", ValidatorFunc(func(_ context.Context, tok *token.Token) Result {
			if !tok.HasScope("uaa.user") {
				return Invalid("user-scope", "scope uaa.user is missing")
			}
			return ValidResult()
		}))
	chain := buildChain(t, b)

	res := chain.Validate(context.Background(), idp.sign(t, nil, idp.claims()))
	if res.Valid() {
		t.Fatal("custom validator should have failed the chain")
	}
	if res.Check() != "user-scope" {
		t.Errorf("failing check = %q, want user-scope", res.Check())
	}

	withScope := idp.claims()
	withScope["scope"] = []string{"uaa.user"}
	if res := chain.Validate(context.Background(), idp.sign(t, nil, withScope)); !res.Valid() {
		t.Fatalf("token with scope rejected: %s", res)
	}
}

func TestChainTenantAcceptance(t *testing.T) {
	idp := newTestIDP(t)
	cfg := idp.config()
	cfg.AppTID = "tenant-a"

	var computations atomic.Int32
	b := NewBuilder(cfg).WithTenantCheck(func(tid string) bool {
		computations.Add(1)
		return tid == "tenant-a"
	})
	chain := buildChain(t, b)

	claims := idp.claims()
	claims["app_tid"] = "tenant-a"
	for i := 0; i < 3; i++ {
		if res := chain.Validate(context.Background(), idp.sign(t, nil, claims)); !res.Valid() {
			t.Fatalf("tenant token rejected: %s", res)
		}
	}
	if got := computations.Load(); got != 1 {
		t.Errorf("tenant acceptance computed %d times, want 1", got)
	}
}
