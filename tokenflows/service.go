package tokenflows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/tenantsec/cloudauth-go/internal/httpx"
)

// OAuth2 grant type values the provider's token endpoint understands.
// "user_token" is provider-specific; the others are standard.
const (
	grantTypeClientCredentials = "client_credentials"
	grantTypeRefreshToken      = "refresh_token"
	grantTypePassword          = "password"
	grantTypeUserToken         = "user_token"
	grantTypeJWTBearer         = "urn:ietf:params:oauth:grant-type:jwt-bearer"
)

// ErrConfiguration indicates a flow was executed with an incomplete or
// contradictory configuration. It is raised before any network call and
// retrying without fixing the configuration is pointless.
var ErrConfiguration = errors.New("tokenflows: invalid flow configuration")

// ErrService indicates the token endpoint could not be reached or rejected
// the request. The wrapped message carries the downstream detail; the caller
// decides whether to retry.
var ErrService = errors.New("tokenflows: token service error")

// tokenResponse is the provider's token endpoint response. Unknown fields
// are ignored.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

func (r *tokenResponse) toToken() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  r.AccessToken,
		TokenType:    r.TokenType,
		RefreshToken: r.RefreshToken,
	}
	if r.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	return tok
}

// tokenService issues requests against the provider's token endpoints. It
// holds no state beyond the transport.
type tokenService struct {
	client httpx.Doer
}

type tokenRequest struct {
	endpoint     string
	clientID     string
	clientSecret string // empty for bearer-authenticated grants
	form         url.Values
	headers      map[string]string
}

func (s *tokenService) request(ctx context.Context, req tokenRequest) (*oauth2.Token, error) {
	req.form.Set("client_id", req.clientID)
	body, err := httpx.PostForm(ctx, s.client, req.endpoint, req.form, req.clientID, req.clientSecret, req.headers)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrService, err)
	}
	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: unparseable token response: %v", ErrService, err)
	}
	if resp.AccessToken == "" && resp.RefreshToken == "" {
		return nil, fmt.Errorf("%w: token response carries no token", ErrService)
	}
	return resp.toToken(), nil
}

func (s *tokenService) clientCredentialsGrant(ctx context.Context, endpoint, clientID, clientSecret, zoneID string) (*oauth2.Token, error) {
	form := url.Values{"grant_type": {grantTypeClientCredentials}}
	return s.request(ctx, tokenRequest{
		endpoint:     endpoint,
		clientID:     clientID,
		clientSecret: clientSecret,
		form:         form,
		headers:      zidHeader(zoneID),
	})
}

func (s *tokenService) refreshTokenGrant(ctx context.Context, endpoint, clientID, clientSecret, refreshToken, zoneID string) (*oauth2.Token, error) {
	form := url.Values{
		"grant_type":    {grantTypeRefreshToken},
		"refresh_token": {refreshToken},
	}
	return s.request(ctx, tokenRequest{
		endpoint:     endpoint,
		clientID:     clientID,
		clientSecret: clientSecret,
		form:         form,
		headers:      zidHeader(zoneID),
	})
}

func (s *tokenService) passwordGrant(ctx context.Context, endpoint, clientID, clientSecret, username, password, zoneID string) (*oauth2.Token, error) {
	form := url.Values{
		"grant_type": {grantTypePassword},
		"username":   {username},
		"password":   {password},
	}
	return s.request(ctx, tokenRequest{
		endpoint:     endpoint,
		clientID:     clientID,
		clientSecret: clientSecret,
		form:         form,
		headers:      zidHeader(zoneID),
	})
}

// userTokenGrant authenticates with the caller's token as bearer credential
// rather than with the client secret; the provider answers with a refresh
// token for the named client.
func (s *tokenService) userTokenGrant(ctx context.Context, endpoint, clientID, userToken, authorities string) (*oauth2.Token, error) {
	form := url.Values{"grant_type": {grantTypeUserToken}}
	if authorities != "" {
		form.Set("authorities", authorities)
	}
	headers := map[string]string{"Authorization": "Bearer " + userToken}
	return s.request(ctx, tokenRequest{
		endpoint: endpoint,
		clientID: clientID,
		form:     form,
		headers:  headers,
	})
}

// jwtBearerGrant exchanges the caller's token as a JWT-bearer assertion at
// the delegation endpoint, forwarding the consumer certificate for
// certificate-bound authentication.
func (s *tokenService) jwtBearerGrant(ctx context.Context, endpoint, clientID, assertion, certPEM, authorities string) (*oauth2.Token, error) {
	form := url.Values{
		"grant_type": {grantTypeJWTBearer},
		"assertion":  {assertion},
	}
	if authorities != "" {
		form.Set("authorities", authorities)
	}
	headers := map[string]string{
		"x-forwarded-client-cert": url.QueryEscape(certPEM),
	}
	return s.request(ctx, tokenRequest{
		endpoint: endpoint,
		clientID: clientID,
		form:     form,
		headers:  headers,
	})
}

func zidHeader(zoneID string) map[string]string {
	if zoneID == "" {
		return nil
	}
	return map[string]string{"x-zid": zoneID}
}

// buildAuthorities serializes additional authorization attributes into the
// JSON fragment the provider expects in the "authorities" request parameter.
// Returns "" when there are no attributes.
func buildAuthorities(attributes map[string]string) string {
	if len(attributes) == 0 {
		return ""
	}
	b, err := json.Marshal(map[string]any{"az_attr": attributes})
	if err != nil {
		return ""
	}
	return string(b)
}
