package market

import (
	"fmt"
	"strings"
)

// ValidationError is a caller mistake: bad page, page size or range.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AllProvidersError is returned when every step of a fallback chain failed.
type AllProvidersError struct {
	Op   string
	Errs []error
}

func (e *AllProvidersError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%s: all providers failed: %s", e.Op, strings.Join(msgs, "; "))
}

func (e *AllProvidersError) Unwrap() []error { return e.Errs }
