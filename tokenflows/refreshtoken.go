package tokenflows

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// RefreshTokenFlow exchanges a refresh token for a new access token. It is
// stateless beyond its inputs and never cached: each execution earns a fresh
// token.
type RefreshTokenFlow struct {
	f            *Flows
	refreshToken string
	subdomain    string
}

// RefreshToken sets the refresh token to redeem.
func (r *RefreshTokenFlow) RefreshToken(refreshToken string) *RefreshTokenFlow {
	r.refreshToken = refreshToken
	return r
}

// Subdomain addresses the given tenant's instance of the provider.
func (r *RefreshTokenFlow) Subdomain(subdomain string) *RefreshTokenFlow {
	r.subdomain = subdomain
	return r
}

// Execute runs the grant.
func (r *RefreshTokenFlow) Execute(ctx context.Context) (*oauth2.Token, error) {
	if r.refreshToken == "" {
		return nil, fmt.Errorf("%w: refresh token is required", ErrConfiguration)
	}
	endpoint := replaceSubdomain(r.f.endpoints.TokenEndpoint(), r.subdomain)
	return r.f.svc.refreshTokenGrant(ctx, endpoint, r.f.clientID, r.f.clientSecret, r.refreshToken, r.f.zoneID)
}
