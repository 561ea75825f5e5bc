package token

import (
	"time"
)

// Header parameter names used by multi-tenant identity providers.
const (
	HeaderAlgorithm = "alg"
	HeaderKeyID     = "kid"
	HeaderJwksURL   = "jku"
	HeaderType      = "typ"
)

// Claim names. Scopes are carried as a JSON array in the "scope" claim by the
// providers this module targets (not the space-delimited string of RFC 8693).
const (
	ClaimIssuer    = "iss"
	ClaimSubject   = "sub"
	ClaimExpiresAt = "exp"
	ClaimNotBefore = "nbf"
	ClaimAudience  = "aud"
	ClaimScopes    = "scope"
	ClaimClientID  = "cid"
	ClaimAppTID    = "app_tid"
	ClaimZoneID    = "zid"
)

// DefaultKeyID is assumed when a token header or a JWKS entry omits "kid".
const DefaultKeyID = "default"

// Token is an immutable view over one decoded compact JWT. It is created by
// Decode, never mutated, and safe for concurrent reads.
type Token struct {
	raw    string
	header map[string]any
	claims map[string]any
}

// Raw returns the compact serialization the token was decoded from.
func (t *Token) Raw() string { return t.raw }

// Algorithm returns the "alg" header parameter, or "" if absent.
func (t *Token) Algorithm() string { return t.headerString(HeaderAlgorithm) }

// KeyID returns the "kid" header parameter, or DefaultKeyID if absent.
func (t *Token) KeyID() string {
	if kid := t.headerString(HeaderKeyID); kid != "" {
		return kid
	}
	return DefaultKeyID
}

// JwksURL returns the "jku" header parameter verbatim. The value is
// attacker-controllable and must never be fetched without the trust gate.
func (t *Token) JwksURL() string { return t.headerString(HeaderJwksURL) }

// Issuer returns the "iss" claim, or "" if absent.
func (t *Token) Issuer() string { return t.claimString(ClaimIssuer) }

// Subject returns the "sub" claim, or "" if absent.
func (t *Token) Subject() string { return t.claimString(ClaimSubject) }

// ClientID returns the "cid" claim, or "" if absent.
func (t *Token) ClientID() string { return t.claimString(ClaimClientID) }

// AppTID returns the tenant identifier claim, falling back to the zone id
// claim for providers that predate "app_tid".
func (t *Token) AppTID() string {
	if tid := t.claimString(ClaimAppTID); tid != "" {
		return tid
	}
	return t.claimString(ClaimZoneID)
}

// ZoneID returns the "zid" claim, or "" if absent.
func (t *Token) ZoneID() string { return t.claimString(ClaimZoneID) }

// Expiration returns the "exp" claim as a time. ok is false when the claim
// is absent or not numeric.
func (t *Token) Expiration() (exp time.Time, ok bool) { return t.claimTime(ClaimExpiresAt) }

// NotBefore returns the "nbf" claim as a time. ok is false when the claim
// is absent or not numeric.
func (t *Token) NotBefore() (nbf time.Time, ok bool) { return t.claimTime(ClaimNotBefore) }

// Audience returns the "aud" claim normalized to a string slice. A single
// string becomes a one-element slice; a malformed claim yields nil.
func (t *Token) Audience() []string {
	switch v := t.claims[ClaimAudience].(type) {
	case string:
		return []string{v}
	case []any:
		var out []string
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Scopes returns the "scope" claim array. Non-string members and malformed
// claim shapes are skipped.
func (t *Token) Scopes() []string {
	arr, ok := t.claims[ClaimScopes].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// HasScope reports whether the "scope" claim array carries a literal match
// for scope. Malformed or missing claims count as scope absent; structural
// errors are deliberately swallowed here (see HasScopeRaw).
func (t *Token) HasScope(scope string) bool {
	for _, s := range t.Scopes() {
		if s == scope {
			return true
		}
	}
	return false
}

// Claim returns the named payload claim, or nil if absent.
func (t *Token) Claim(name string) any { return t.claims[name] }

// HeaderParam returns the named header parameter, or nil if absent.
func (t *Token) HeaderParam(name string) any { return t.header[name] }

func (t *Token) headerString(name string) string {
	s, _ := t.header[name].(string)
	return s
}

func (t *Token) claimString(name string) string {
	s, _ := t.claims[name].(string)
	return s
}

func (t *Token) claimTime(name string) (time.Time, bool) {
	switch v := t.claims[name].(type) {
	case float64:
		return time.Unix(int64(v), 0), true
	case int64:
		return time.Unix(v, 0), true
	}
	return time.Time{}, false
}
