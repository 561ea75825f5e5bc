package validation

import (
	"context"
	"crypto"
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tenantsec/cloudauth-go/internal/tokenkeys"
	"github.com/tenantsec/cloudauth-go/token"
)

const checkSignature = "signature"

// KeySource resolves verification keys. jwksURL is the token-supplied jku
// header, possibly empty; implementations decide whether and how to trust
// it. tokenkeys.Provider and the OIDC discovery source both satisfy it.
type KeySource interface {
	Resolve(ctx context.Context, alg, kid, jwksURL string) (crypto.PublicKey, error)
}

type signatureValidator struct {
	keys        KeySource
	allowedAlgs []string
}

// newSignatureValidator verifies the token signature against a key from the
// source. Key-resolution failures, including trust-gate rejections, surface
// as invalid results naming this check; they never fall back to an
// unverified fetch.
func newSignatureValidator(keys KeySource, allowedAlgs []string) Validator {
	return &signatureValidator{keys: keys, allowedAlgs: allowedAlgs}
}

func (v *signatureValidator) Validate(ctx context.Context, t *token.Token) Result {
	alg := t.Algorithm()
	if !v.algAllowed(alg) {
		return Invalid(checkSignature, "disallowed algorithm %q", alg)
	}

	key, err := v.keys.Resolve(ctx, alg, t.KeyID(), t.JwksURL())
	if err != nil {
		switch {
		case errors.Is(err, tokenkeys.ErrUntrustedEndpoint):
			return Invalid(checkSignature, "jwks endpoint rejected: %v", err)
		case errors.Is(err, tokenkeys.ErrKeyNotFound):
			return Invalid(checkSignature, "no key for alg=%s kid=%s", alg, t.KeyID())
		default:
			return Invalid(checkSignature, "key retrieval failed: %v", err)
		}
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods(v.allowedAlgs),
		jwt.WithoutClaimsValidation(),
	)
	if _, err := parser.Parse(t.Raw(), func(*jwt.Token) (any, error) { return key, nil }); err != nil {
		return Invalid(checkSignature, "signature verification failed: %v", err)
	}
	return ValidResult()
}

func (v *signatureValidator) algAllowed(alg string) bool {
	for _, a := range v.allowedAlgs {
		if a == alg {
			return true
		}
	}
	return false
}
