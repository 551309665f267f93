// Package errhttp maps domain sentinel errors to HTTP status codes.
// Add a case to mapErrorToStatus for each new domain sentinel error.
package errhttp

import (
	"errors"
	"net/http"

	"github.com/ghuser/persistredis/pkg/httpx"
	"github.com/ghuser/persistredis/services/journal/domain"
)

// WriteError maps err to an HTTP status code and writes a JSON error response.
// Uses errors.Is() so wrapped sentinel errors are matched correctly. In
// production, 5xx bodies are replaced with the generic status text so
// internal detail (store hostnames, wrapped driver errors) never reaches the
// client. Defaults to 500 Internal Server Error for unrecognized errors.
func WriteError(w http.ResponseWriter, err error, isProduction bool) {
	status := mapErrorToStatus(err)
	httpx.JSONError(w, status, httpx.SafeError(err, status, isProduction))
}

func mapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRange):
		return http.StatusUnprocessableEntity // 422
	case errors.Is(err, domain.ErrConcurrentPull):
		return http.StatusConflict // 409
	case errors.Is(err, domain.ErrSourceClosed):
		return http.StatusGone // 410
	case errors.Is(err, domain.ErrDecodeFailure):
		return http.StatusInternalServerError // 500
	case errors.Is(err, domain.ErrStoreFailure):
		return http.StatusServiceUnavailable // 503
	case errors.Is(err, domain.ErrProtocolViolation):
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}
