package session

import (
	"errors"
	"fmt"
)

var (
	ErrNoSession       = errors.New("no active session")
	ErrNoRefreshToken  = errors.New("no refresh token available")
	ErrUnknownProvider = errors.New("unknown identity provider")
	ErrSignInCancelled = errors.New("sign-in cancelled or invalid")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
