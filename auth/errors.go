package auth

import "fmt"

// Kind classifies authentication failures.
type Kind string

const (
	KindMalformed Kind = "malformed"
	KindSignature Kind = "signature"
	KindExpired   Kind = "expired"
)

// Error is returned for every authentication failure. Callers decide
// whether to reject or to continue unauthenticated; nothing in this
// package panics or lets a parse failure escape as anything else.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("auth: %s token: %v", e.Kind, e.cause)
	}
	return fmt.Sprintf("auth: %s token", e.Kind)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func newError(kind Kind, cause error) *Error {
	return &Error{Kind: kind, cause: cause}
}
