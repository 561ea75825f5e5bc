// Package auth ties the validation chain to inbound requests: it extracts
// the bearer token and forwarded client certificate, runs the chain, and on
// success publishes the principal to the security context. Authentication
// failure is the expected "not authenticated" path and yields a generic
// outcome; the diagnostic reason goes to logs and listeners, not to the
// untrusted caller.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tenantsec/cloudauth-go/internal/logctx"
	"github.com/tenantsec/cloudauth-go/security"
	"github.com/tenantsec/cloudauth-go/token"
	"github.com/tenantsec/cloudauth-go/validation"
)

// Authenticator authenticates inbound requests against a validator chain.
// Build once during setup; it is immutable and safe for concurrent use.
type Authenticator struct {
	chain *validation.CombiningValidator
	log   *slog.Logger
}

// New returns an Authenticator over the given chain. logger may be nil, in
// which case slog.Default is used.
func New(chain *validation.CombiningValidator, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{chain: chain, log: logger}
}

// Result is the outcome of one authentication attempt.
type Result struct {
	authenticated bool
	reason        string
	tok           *token.Token
	cert          *token.Certificate
}

// Authenticated reports whether the request carried a valid token.
func (r Result) Authenticated() bool { return r.authenticated }

// Reason is the internal diagnostic for a failed attempt. Log it; do not
// return it to the caller.
func (r Result) Reason() string { return r.reason }

// Token returns the validated token, or nil for a failed attempt.
func (r Result) Token() *token.Token { return r.tok }

// ClientCertificate returns the forwarded client certificate when the
// request carried a parseable one, validated or not.
func (r Result) ClientCertificate() *token.Certificate { return r.cert }

// Context derives a context carrying the validated principal and
// certificate for downstream handlers, plus log correlation attributes. For
// a failed attempt it returns ctx unchanged.
func (r Result) Context(ctx context.Context) context.Context {
	if !r.authenticated {
		return ctx
	}
	ctx = security.WithToken(ctx, r.tok)
	if r.cert != nil {
		ctx = security.WithClientCertificate(ctx, r.cert)
	}
	return logctx.WithPrincipalData(ctx, &logctx.PrincipalData{
		Issuer:   r.tok.Issuer(),
		Subject:  r.tok.Subject(),
		AppTID:   r.tok.AppTID(),
		ClientID: r.tok.ClientID(),
	})
}

// Authenticate processes one request. A missing or malformed Authorization
// header, an undecodable token, and a failed validation all produce an
// unauthenticated Result, never a panic or error.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) Result {
	raw, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return a.unauthenticated(ctx, "authorization header is missing or not a bearer token")
	}

	tok, err := token.Decode(raw)
	if err != nil {
		return a.unauthenticated(ctx, err.Error())
	}

	if res := a.chain.Validate(ctx, tok); !res.Valid() {
		return a.unauthenticated(ctx, res.String())
	}

	result := Result{authenticated: true, tok: tok}
	if hdr := r.Header.Get(token.ForwardedCertHeader); hdr != "" {
		cert, err := token.ParseForwardedCertificate(hdr)
		if err != nil {
			a.log.WarnContext(ctx, "ignoring unparseable forwarded client certificate", "error", err)
		} else {
			result.cert = cert
		}
	}
	return result
}

func (a *Authenticator) unauthenticated(ctx context.Context, reason string) Result {
	a.log.WarnContext(ctx, "request could not be authenticated", "reason", reason)
	return Result{reason: reason}
}

func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		tok := strings.TrimSpace(header[len(prefix):])
		return tok, tok != ""
	}
	return "", false
}
