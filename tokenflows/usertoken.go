package tokenflows

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/tenantsec/cloudauth-go/token"
)

// userScope is the scope a token must carry to be exchangeable for another
// user token. A consumer certificate bypasses the requirement.
const userScope = "uaa.user"

// UserTokenFlow exchanges a caller's user token for a token usable by the
// configured (target) client.
//
// Without a certificate the exchange is two-step: a user-token grant, in
// which the provider deliberately answers with a refresh token instead of a
// usable access token (provider-specific behavior, not the textbook
// user-token exchange), followed by a refresh-token grant executed with the
// target client's credentials. That cross-client pivot is the point of the
// flow: a token obtained under one client identity comes back usable by a
// different one.
//
// With a consumer certificate attached the flow routes directly to the
// certificate-bound JWT-bearer grant against the delegation endpoint.
type UserTokenFlow struct {
	f          *Flows
	userToken  string
	subdomain  string
	attributes map[string]string
	cert       *token.Certificate
}

// Token sets the caller's token to exchange.
func (u *UserTokenFlow) Token(raw string) *UserTokenFlow {
	u.userToken = raw
	return u
}

// Subdomain addresses the given tenant's instance of the provider.
func (u *UserTokenFlow) Subdomain(subdomain string) *UserTokenFlow {
	u.subdomain = subdomain
	return u
}

// Attributes requests additional authorization attributes in the exchanged
// token. They are serialized into the "authorities" request parameter as a
// JSON fragment.
func (u *UserTokenFlow) Attributes(attributes map[string]string) *UserTokenFlow {
	u.attributes = attributes
	return u
}

// ConsumerCertificate attaches the consumer's forwarded client certificate,
// switching the flow to the certificate-bound delegation grant. Requires
// the provider to expose a delegation endpoint (DelegationEndpoints).
func (u *UserTokenFlow) ConsumerCertificate(cert *token.Certificate) *UserTokenFlow {
	u.cert = cert
	return u
}

// Execute runs the exchange. Preconditions are checked here, once, before
// any network call; violating them is a configuration error, not a flow
// error.
func (u *UserTokenFlow) Execute(ctx context.Context) (*oauth2.Token, error) {
	if u.userToken == "" {
		return nil, fmt.Errorf("%w: user token not set", ErrConfiguration)
	}
	if u.cert == nil && !token.HasScopeRaw(u.userToken, userScope) {
		return nil, fmt.Errorf("%w: token does not carry scope %q and no consumer certificate is attached; only user tokens can be exchanged", ErrConfiguration, userScope)
	}
	if u.cert != nil && u.f.delegation == nil {
		return nil, fmt.Errorf("%w: certificate-bound exchange needs a provider with a delegation endpoint", ErrConfiguration)
	}

	authorities := buildAuthorities(u.attributes)

	if u.cert != nil {
		endpoint := replaceSubdomain(u.f.delegation.DelegationTokenEndpoint(), u.subdomain)
		tok, err := u.f.svc.jwtBearerGrant(ctx, endpoint, u.f.clientID, u.userToken, u.cert.PEM(), authorities)
		if err != nil {
			return nil, fmt.Errorf("requesting token with grant %q: %w", grantTypeJWTBearer, err)
		}
		return tok, nil
	}

	endpoint := replaceSubdomain(u.f.endpoints.TokenEndpoint(), u.subdomain)
	resp, err := u.f.svc.userTokenGrant(ctx, endpoint, u.f.clientID, u.userToken, authorities)
	if err != nil {
		return nil, fmt.Errorf("requesting token with grant %q: %w", grantTypeUserToken, err)
	}
	if resp.RefreshToken == "" {
		return nil, fmt.Errorf("%w: user-token grant response provides no refresh_token", ErrService)
	}

	// Pivot: redeem the refresh token with the target client's credentials.
	return u.f.RefreshTokenFlow().
		RefreshToken(resp.RefreshToken).
		Subdomain(u.subdomain).
		Execute(ctx)
}
