// Package env loads identity-service configuration the way platform
// deployments provide it: environment variables for simple setups, a JSON
// service-binding document for bound services, with optional reload watching
// when the binding is mounted as a rotating file.
package env

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"

	"github.com/tenantsec/cloudauth-go/tokenflows"
	"github.com/tenantsec/cloudauth-go/validation"
)

// ServiceConfig is one identity-service binding. JSON tags match the
// binding document; env tags allow configuration without a binding.
type ServiceConfig struct {
	// URL is the provider base URL, e.g. "https://acme.auth.example.com".
	// ENV: IDENTITY_SERVICE_URL
	URL string `env:"IDENTITY_SERVICE_URL" json:"url"`
	// ClientID of this application. ENV: IDENTITY_CLIENT_ID
	ClientID string `env:"IDENTITY_CLIENT_ID" json:"clientid"`
	// ClientSecret of this application. ENV: IDENTITY_CLIENT_SECRET
	ClientSecret string `env:"IDENTITY_CLIENT_SECRET" json:"clientsecret"`
	// AppTID is this application's tenant id. ENV: IDENTITY_APP_TID
	AppTID string `env:"IDENTITY_APP_TID" json:"app_tid"`
	// Domain is the provider's identity domain; tenant issuers are
	// subdomains of it. ENV: IDENTITY_DOMAIN
	Domain string `env:"IDENTITY_DOMAIN" json:"uaadomain"`
	// KeyCacheTTL bounds reuse of fetched token keys.
	// ENV: IDENTITY_KEY_CACHE_TTL
	KeyCacheTTL time.Duration `env:"IDENTITY_KEY_CACHE_TTL,default=10m" json:"-"`
	// KeyCacheSize caps the number of cached keys and memoized tenant
	// decisions. ENV: IDENTITY_KEY_CACHE_SIZE
	KeyCacheSize int `env:"IDENTITY_KEY_CACHE_SIZE,default=1000" json:"-"`
}

// FromEnv populates a ServiceConfig from the environment. Defaults are
// applied via struct tags; mandatory fields are checked afterwards.
func FromEnv() (*ServiceConfig, error) {
	var cfg ServiceConfig
	// Optional fields stay zero when unset; envdecode flags a fully empty
	// environment, which validate reports more precisely below.
	_ = envdecode.Decode(&cfg)
	if cfg.KeyCacheTTL == 0 {
		cfg.KeyCacheTTL = 10 * time.Minute
	}
	if cfg.KeyCacheSize == 0 {
		cfg.KeyCacheSize = 1000
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromBindingFile reads a JSON service-binding document. Environment
// defaults for cache settings still apply.
func FromBindingFile(path string) (*ServiceConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("env: reading binding: %w", err)
	}
	return parseBinding(b)
}

func parseBinding(b []byte) (*ServiceConfig, error) {
	cfg := ServiceConfig{KeyCacheTTL: 10 * time.Minute, KeyCacheSize: 1000}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("env: parsing binding: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *ServiceConfig) validate() error {
	if c.URL == "" {
		return errors.New("env: service url is not configured")
	}
	if c.ClientID == "" {
		return errors.New("env: client id is not configured")
	}
	return nil
}

// JwksURL returns the provider's token-key endpoint.
func (c *ServiceConfig) JwksURL() string { return c.URL + "/token_keys" }

// ValidationConfig derives the validator-chain configuration.
func (c *ServiceConfig) ValidationConfig() validation.Config {
	var domains []string
	if c.Domain != "" {
		domains = []string{c.Domain}
	}
	return validation.Config{
		IssuerURL:       c.URL,
		JwksURL:         c.JwksURL(),
		ClientID:        c.ClientID,
		IdentityDomains: domains,
		AppTID:          c.AppTID,
	}
}

// CacheConfig derives the token-key cache bounds.
func (c *ServiceConfig) CacheConfig() validation.CacheConfig {
	return validation.CacheConfig{TTL: c.KeyCacheTTL, MaxSize: c.KeyCacheSize}
}

// FlowsConfig derives the token-flows configuration.
func (c *ServiceConfig) FlowsConfig() (tokenflows.Config, error) {
	endpoints, err := tokenflows.NewDefaultEndpoints(c.URL)
	if err != nil {
		return tokenflows.Config{}, err
	}
	return tokenflows.Config{
		Endpoints:    endpoints,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
	}, nil
}
