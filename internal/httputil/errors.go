package httputil

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"repairchat/internal/domain"
)

// RespondDomainError maps err onto a status code and the failure envelope.
// Errors implementing domain.HTTPError choose their own status; bare
// sentinels are matched with errors.Is. Anything else is a 500 whose cause
// is logged but not returned.
func RespondDomainError(w http.ResponseWriter, err error) {
	var (
		validationErr *domain.ValidationError
		rateLimited   *domain.RateLimitedError
		storageErr    *domain.StorageUnavailableError
		httpErr       domain.HTTPError
	)

	switch {
	case errors.As(err, &validationErr):
		RespondError(w, validationErr.StatusCode(), validationErr.Message, validationErr.Details())

	case errors.As(err, &rateLimited):
		w.Header().Set("Retry-After", strconv.Itoa(domain.RetryAfterSeconds(rateLimited.RetryAfter)))
		RespondError(w, rateLimited.StatusCode(), rateLimited.Error(), rateLimited.Details())

	case errors.As(err, &storageErr):
		slog.Error("rate limit storage unavailable", "error", err)
		RespondError(w, storageErr.StatusCode(), "rate limit storage unavailable", nil)

	case errors.As(err, &httpErr):
		if httpErr.StatusCode() >= http.StatusInternalServerError {
			slog.Error("request failed", "status", httpErr.StatusCode(), "error", err)
		}
		var details any
		if d, ok := httpErr.(domain.ErrorDetailer); ok {
			details = d.Details()
		}
		RespondError(w, httpErr.StatusCode(), httpErr.Error(), details)

	case errors.Is(err, domain.ErrNotFound):
		RespondError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, domain.ErrUnauthorized):
		RespondError(w, http.StatusUnauthorized, err.Error(), nil)
	case errors.Is(err, domain.ErrForbidden):
		RespondError(w, http.StatusForbidden, err.Error(), nil)
	case errors.Is(err, domain.ErrValidation):
		RespondError(w, http.StatusUnprocessableEntity, err.Error(), nil)

	default:
		slog.Error("unhandled error", "error", err)
		RespondError(w, http.StatusInternalServerError, "internal server error", nil)
	}
}
