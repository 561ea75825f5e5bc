// Package oidcdisc resolves verification keys for issuers that publish OIDC
// discovery metadata. The JWKS URI comes from /.well-known/openid-configuration
// of a statically configured issuer and is therefore trusted; token-supplied
// jku headers are ignored on this path. Keys auto-refresh in the background.
package oidcdisc

import (
	"context"
	"crypto"
	"errors"
	"fmt"

	keyfunc "github.com/MicahParks/keyfunc/v3"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

// KeySource resolves keys from a discovered JWKS endpoint.
type KeySource struct {
	issuer        string
	jwksURI       string
	tokenEndpoint string
	kf            keyfunc.Keyfunc
}

// New performs OIDC discovery against issuer and starts an auto-refreshing
// key set. ctx bounds discovery and scopes the background refresh.
func New(ctx context.Context, issuer string) (*KeySource, error) {
	if issuer == "" {
		return nil, errors.New("oidcdisc: issuer is required")
	}

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidcdisc: discovery failed: %w", err)
	}
	var meta struct {
		JwksURI       string `json:"jwks_uri"`
		TokenEndpoint string `json:"token_endpoint"`
	}
	if err := provider.Claims(&meta); err != nil {
		return nil, fmt.Errorf("oidcdisc: invalid discovery metadata: %w", err)
	}
	if meta.JwksURI == "" {
		return nil, errors.New("oidcdisc: discovery metadata has no jwks_uri")
	}

	kf, err := keyfunc.NewDefaultCtx(ctx, []string{meta.JwksURI})
	if err != nil {
		return nil, fmt.Errorf("oidcdisc: jwks init failed: %w", err)
	}

	return &KeySource{
		issuer:        issuer,
		jwksURI:       meta.JwksURI,
		tokenEndpoint: meta.TokenEndpoint,
		kf:            kf,
	}, nil
}

// Resolve returns the key for (alg, kid) from the discovered set. The
// token-supplied jwksURL parameter is deliberately unused.
func (s *KeySource) Resolve(_ context.Context, alg, kid, _ string) (crypto.PublicKey, error) {
	method := jwt.GetSigningMethod(alg)
	if method == nil {
		return nil, fmt.Errorf("oidcdisc: unknown algorithm %q", alg)
	}
	key, err := s.kf.Keyfunc(&jwt.Token{
		Method: method,
		Header: map[string]any{"alg": alg, "kid": kid},
	})
	if err != nil {
		return nil, fmt.Errorf("oidcdisc: no key for alg=%s kid=%s: %w", alg, kid, err)
	}
	return key, nil
}

// TokenEndpoint returns the discovered token endpoint, or "" when the
// issuer's metadata omits it.
func (s *KeySource) TokenEndpoint() string { return s.tokenEndpoint }

// JwksURI returns the discovered JWKS endpoint.
func (s *KeySource) JwksURI() string { return s.jwksURI }
