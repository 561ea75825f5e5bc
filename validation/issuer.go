package validation

import (
	"context"
	"net/url"
	"strings"

	"github.com/tenantsec/cloudauth-go/token"
)

const (
	checkIssuer = "issuer"
	checkTenant = "tenant"
)

// newIssuerValidator requires the iss claim to be a well-formed URL anchored
// at the trusted issuer host, or at a subdomain of one of the identity
// domains for multi-tenant providers. Parse failures fail closed.
func newIssuerValidator(trustedIssuer string, domains []string) Validator {
	trustedHost := ""
	if u, err := url.Parse(trustedIssuer); err == nil {
		trustedHost = u.Hostname()
	}
	return ValidatorFunc(func(_ context.Context, t *token.Token) Result {
		iss := t.Issuer()
		if iss == "" {
			return Invalid(checkIssuer, "token has no issuer claim")
		}
		u, err := url.Parse(iss)
		if err != nil {
			return Invalid(checkIssuer, "issuer %q is not a valid url", iss)
		}
		host := u.Hostname()
		if host == "" {
			// Providers may issue a bare host without scheme.
			host = iss
		}
		if strings.ContainsAny(iss, " \\%") {
			return Invalid(checkIssuer, "issuer %q contains forbidden characters", iss)
		}
		if trustedHost != "" && host == trustedHost {
			return ValidResult()
		}
		for _, d := range domains {
			if host == d || strings.HasSuffix(host, "."+d) {
				return ValidResult()
			}
		}
		return Invalid(checkIssuer, "issuer host %q is not trusted", host)
	})
}

// TenantGate memoizes per-tenant acceptance so the accept decision runs once
// per tenant id, not once per request. tokenkeys.Provider implements it.
type TenantGate interface {
	IsAppTIDAccepted(appTID string, compute func() bool) bool
}

// newTenantValidator checks the token's tenant id against accept. The
// decision is memoized through gate when one is supplied. A token without a
// tenant claim passes only when accept admits the empty id.
func newTenantValidator(gate TenantGate, accept func(appTID string) bool) Validator {
	return ValidatorFunc(func(_ context.Context, t *token.Token) Result {
		tid := t.AppTID()
		accepted := false
		if gate != nil {
			accepted = gate.IsAppTIDAccepted(tid, func() bool { return accept(tid) })
		} else {
			accepted = accept(tid)
		}
		if !accepted {
			return Invalid(checkTenant, "tenant %q is not accepted", tid)
		}
		return ValidResult()
	})
}
