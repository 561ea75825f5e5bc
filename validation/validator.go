// Package validation decides whether a decoded token is trustworthy. A
// CombiningValidator composes independent checks (signature, expiration,
// audience, issuer/tenant, caller extensions) into one pass/fail verdict
// with a reason that names the failing check. Build a chain once at setup
// with Builder; the built chain is immutable and safe for concurrent use.
package validation

import (
	"context"

	"github.com/tenantsec/cloudauth-go/token"
)

// Validator is a single independent check over a decoded token. The context
// bounds any blocking work the check performs, such as a key fetch.
type Validator interface {
	Validate(ctx context.Context, t *token.Token) Result
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(ctx context.Context, t *token.Token) Result

// Validate calls f.
func (f ValidatorFunc) Validate(ctx context.Context, t *token.Token) Result { return f(ctx, t) }

// Listener observes validation outcomes, successful and failed, for
// observability. A listener must not influence the outcome; panics inside
// listeners are swallowed.
type Listener func(t *token.Token, r Result)

type namedValidator struct {
	name string
	v    Validator
}

// CombiningValidator evaluates its sub-validators in order and is valid only
// if every one of them is. It short-circuits on the first failure; the
// returned Result names the failing check. Instances are immutable once
// built and safe for concurrent use by many goroutines.
type CombiningValidator struct {
	validators []namedValidator
	listeners  []Listener
}

// Validate runs the chain over t and notifies listeners of the outcome.
func (c *CombiningValidator) Validate(ctx context.Context, t *token.Token) Result {
	result := ValidResult()
	for _, nv := range c.validators {
		r := nv.v.Validate(ctx, t)
		if !r.Valid() {
			if r.check == "" {
				r.check = nv.name
			}
			result = r
			break
		}
	}
	c.notify(t, result)
	return result
}

func (c *CombiningValidator) notify(t *token.Token, r Result) {
	for _, l := range c.listeners {
		func() {
			defer func() { _ = recover() }()
			l(t, r)
		}()
	}
}
