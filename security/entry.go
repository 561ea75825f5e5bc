package security

import "github.com/tenantsec/cloudauth-go/token"

// Entry is per-worker identity storage for frameworks that reuse workers
// across requests and cannot thread a context. Each worker owns exactly one
// Entry and only that worker touches it, so no locking is involved — but a
// worker returned to its pool with an uncleared Entry leaks the previous
// request's identity into the next one. Prefer Run, which clears on every
// exit path including panics.
type Entry struct {
	token Principal
	cert  *token.Certificate
}

// SetToken stores the validated principal, replacing any previous one.
func (e *Entry) SetToken(p Principal) { e.token = p }

// Token returns the stored principal, or nil when the slot is empty.
func (e *Entry) Token() Principal { return e.token }

// AccessToken returns the stored principal when it exposes access-token
// capabilities; otherwise nil, even when a principal is stored.
func (e *Entry) AccessToken() AccessToken {
	if at, ok := e.token.(AccessToken); ok {
		return at
	}
	return nil
}

// SetClientCertificate stores the forwarded client certificate, replacing
// any previous one.
func (e *Entry) SetClientCertificate(c *token.Certificate) { e.cert = c }

// ClientCertificate returns the stored certificate, or nil when empty.
func (e *Entry) ClientCertificate() *token.Certificate { return e.cert }

// ClearToken empties the token slot. Clearing an empty slot is a no-op.
func (e *Entry) ClearToken() { e.token = nil }

// ClearClientCertificate empties the certificate slot. Clearing an empty
// slot is a no-op.
func (e *Entry) ClearClientCertificate() { e.cert = nil }

// Clear empties both slots.
func (e *Entry) Clear() {
	e.ClearToken()
	e.ClearClientCertificate()
}

// Run executes fn with a fresh Entry and clears it afterwards, whether fn
// returns, errors, or panics. This is the only safe way to use Entry on
// pooled workers.
func Run(fn func(e *Entry) error) error {
	e := &Entry{}
	defer e.Clear()
	return fn(e)
}
