package api

import (
	"errors"
	"net/http"

	"github.com/kjannette/cryptodash/internal/market"
	"github.com/kjannette/cryptodash/internal/portfolio"
	"github.com/kjannette/cryptodash/internal/risk"
	"github.com/kjannette/cryptodash/internal/session"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var (
		mve *market.ValidationError
		pve *portfolio.ValidationError
		sve *session.ValidationError
		ibe *portfolio.InsufficientBalanceError
		ife *portfolio.InsufficientFundsError
		blk *risk.BlockedError
		all *market.AllProvidersError
	)
	switch {
	case errors.As(err, &mve), errors.As(err, &pve), errors.As(err, &sve),
		errors.Is(err, portfolio.ErrNonPositivePrice), errors.Is(err, session.ErrSignInCancelled):
		return http.StatusBadRequest
	case errors.As(err, &ibe), errors.As(err, &ife):
		return http.StatusUnprocessableEntity
	case errors.As(err, &blk):
		return http.StatusForbidden
	case errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrNoRefreshToken):
		return http.StatusUnauthorized
	case errors.Is(err, session.ErrUnknownProvider):
		return http.StatusNotFound
	case errors.As(err, &all):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with its mapped status. Server-side failures are logged and
// their detail withheld from the client.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, what string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(what, "path", r.URL.Path, "err", err)
		if status == http.StatusBadGateway {
			writeError(w, status, what+": upstream providers unavailable")
			return
		}
		writeError(w, status, what)
		return
	}
	writeError(w, status, err.Error())
}
