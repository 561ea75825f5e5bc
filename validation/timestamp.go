package validation

import (
	"context"
	"time"

	"github.com/tenantsec/cloudauth-go/token"
)

const (
	checkExpiration = "expiration"
	checkNotBefore  = "not-before"
)

// newExpirationValidator rejects tokens that are expired or lack an exp
// claim entirely. leeway absorbs clock skew between issuer and validator.
func newExpirationValidator(now func() time.Time, leeway time.Duration) Validator {
	return ValidatorFunc(func(_ context.Context, t *token.Token) Result {
		exp, ok := t.Expiration()
		if !ok {
			return Invalid(checkExpiration, "token has no expiration claim")
		}
		if now().After(exp.Add(leeway)) {
			return Invalid(checkExpiration, "token expired at %s", exp.UTC().Format(time.RFC3339))
		}
		return ValidResult()
	})
}

// newNotBeforeValidator rejects tokens used before their nbf claim. A token
// without nbf passes.
func newNotBeforeValidator(now func() time.Time, leeway time.Duration) Validator {
	return ValidatorFunc(func(_ context.Context, t *token.Token) Result {
		nbf, ok := t.NotBefore()
		if !ok {
			return ValidResult()
		}
		if now().Add(leeway).Before(nbf) {
			return Invalid(checkNotBefore, "token not valid before %s", nbf.UTC().Format(time.RFC3339))
		}
		return ValidResult()
	})
}
