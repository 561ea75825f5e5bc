package tokenflows

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// PasswordTokenFlow runs the resource-owner password grant. Intended for
// technical users and tests, not interactive logins.
type PasswordTokenFlow struct {
	f            *Flows
	username     string
	password     string
	subdomain    string
	disableCache bool
}

// Username sets the resource owner's name.
func (p *PasswordTokenFlow) Username(username string) *PasswordTokenFlow {
	p.username = username
	return p
}

// Password sets the resource owner's password.
func (p *PasswordTokenFlow) Password(password string) *PasswordTokenFlow {
	p.password = password
	return p
}

// Subdomain addresses the given tenant's instance of the provider.
func (p *PasswordTokenFlow) Subdomain(subdomain string) *PasswordTokenFlow {
	p.subdomain = subdomain
	return p
}

// DisableCache bypasses the token-response cache for this execution.
func (p *PasswordTokenFlow) DisableCache(disable bool) *PasswordTokenFlow {
	p.disableCache = disable
	return p
}

// Execute runs the grant. Mandatory fields are checked here, once, before
// any network call.
func (p *PasswordTokenFlow) Execute(ctx context.Context) (*oauth2.Token, error) {
	if p.username == "" || p.password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrConfiguration)
	}
	if p.f.clientSecret == "" {
		return nil, fmt.Errorf("%w: client secret is required for the password grant", ErrConfiguration)
	}
	endpoint := replaceSubdomain(p.f.endpoints.TokenEndpoint(), p.subdomain)
	key := cacheKey(endpoint, p.f.clientID, grantTypePassword, p.username, p.f.zoneID)

	if !p.disableCache {
		if tok, ok := p.f.cache.Get(ctx, key); ok && tok.Valid() {
			return tok, nil
		}
	}
	tok, err := p.f.svc.passwordGrant(ctx, endpoint, p.f.clientID, p.f.clientSecret, p.username, p.password, p.f.zoneID)
	if err != nil {
		return nil, err
	}
	if !p.disableCache {
		p.f.cache.Put(ctx, key, tok)
	}
	return tok, nil
}
