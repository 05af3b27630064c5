package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/kjannette/cryptodash/internal/httputil"
)

var (
	// ErrUnsupported means the provider has no endpoint for the operation.
	ErrUnsupported = errors.New("operation not supported by provider")

	// ErrSyntheticDisabled is returned when synthetic data is requested in a
	// production environment.
	ErrSyntheticDisabled = errors.New("synthetic data is disabled in production")

	// ErrEmptyResult marks a well-formed response with nothing usable in it.
	ErrEmptyResult = errors.New("provider returned no data")
)

// ProviderError wraps any failure of a single provider call: network error,
// non-2xx status, malformed payload or failed lookup.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Transient reports whether the underlying cause was a network failure,
// 5xx or 429.
func (e *ProviderError) Transient() bool {
	var se *httputil.StatusError
	if errors.As(e.Err, &se) {
		return se.Transient()
	}
	return !errors.Is(e.Err, ErrUnsupported) && !errors.Is(e.Err, ErrEmptyResult) && !isDecodeError(e.Err)
}

// LookupError is a failed slug to provider-id resolution.
type LookupError struct {
	Slug string
	Err  error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("resolve %q: %v", e.Slug, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

type decodeError struct{ err error }

func (e *decodeError) Error() string { return "decode: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

func isDecodeError(err error) bool {
	var de *decodeError
	return errors.As(err, &de)
}

// getJSON runs a GET through httputil.Do and decodes a 200 response into out.
// buildReq is invoked once per attempt.
func getJSON(ctx context.Context, client *http.Client, retry httputil.RetryConfig, buildReq func() (*http.Request, error), out any) error {
	resp, err := httputil.Do(ctx, client, retry, buildReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &httputil.StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &decodeError{err: err}
	}
	return nil
}
