// Package security makes the currently authenticated principal available to
// request-handling code. The primary mechanism is explicit context.Context
// value threading, which scopes identity to one logical request and cannot
// leak across requests. For frameworks that pool workers and cannot thread a
// context, Entry offers slot-style storage with a Run guard that guarantees
// the slots are cleared on every exit path.
package security

import (
	"context"
	"time"

	"github.com/tenantsec/cloudauth-go/token"
)

// Principal is the minimal view of a validated token stored in the security
// context. *token.Token implements it.
type Principal interface {
	Raw() string
	Issuer() string
	Subject() string
}

// AccessToken is a Principal that additionally exposes access-token
// capabilities. Principals that wrap other token kinds (e.g. ID tokens) need
// not implement it.
type AccessToken interface {
	Principal
	Scopes() []string
	Expiration() (exp time.Time, ok bool)
}

type tokenKey struct{}
type certKey struct{}

// WithToken returns a context carrying the validated principal. Store only
// tokens that passed the validator chain.
func WithToken(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, tokenKey{}, p)
}

// TokenFromContext returns the current principal, if any.
func TokenFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(tokenKey{}).(Principal)
	return p, ok
}

// AccessTokenFromContext returns the current principal if it exposes
// access-token capabilities, and reports false otherwise even when a
// principal is present.
func AccessTokenFromContext(ctx context.Context) (AccessToken, bool) {
	at, ok := ctx.Value(tokenKey{}).(AccessToken)
	return at, ok
}

// WithClientCertificate returns a context carrying the forwarded client
// certificate.
func WithClientCertificate(ctx context.Context, c *token.Certificate) context.Context {
	return context.WithValue(ctx, certKey{}, c)
}

// ClientCertificateFromContext returns the current client certificate, if
// any.
func ClientCertificateFromContext(ctx context.Context) (*token.Certificate, bool) {
	c, ok := ctx.Value(certKey{}).(*token.Certificate)
	return c, ok
}
