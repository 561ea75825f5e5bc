package validation

import "fmt"

// Result is the outcome of validating one token. It is a value, never an
// error: the invalid case is the expected "not authenticated" path and
// carries a diagnostic reason for logs and listeners.
type Result struct {
	valid       bool
	check       string
	description string
}

// ValidResult reports a passed validation.
func ValidResult() Result { return Result{valid: true} }

// Invalid reports a failed validation. check names the validator that
// failed; the formatted description says why.
func Invalid(check, format string, args ...any) Result {
	return Result{check: check, description: fmt.Sprintf(format, args...)}
}

// Valid reports whether the token passed.
func (r Result) Valid() bool { return r.valid }

// Check names the sub-validator that failed, or "" for a valid result.
func (r Result) Check() string { return r.check }

// Description is the human-readable failure reason, or "" for a valid
// result. It is diagnostic detail for logs and listeners, not for untrusted
// callers.
func (r Result) Description() string { return r.description }

func (r Result) String() string {
	if r.valid {
		return "valid"
	}
	return fmt.Sprintf("invalid (%s): %s", r.check, r.description)
}
