// Package httpserver contains HTTP handlers and middleware.
//
// It exposes the provider registry, verified model ledger, scope selection
// and translation operations as a JSON API. Errors are rendered as
// {"error":{"code","message","details"}} with the status derived from the
// domain sentinel carried by the error.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fairyhunter13/ai-translator/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error chain to an HTTP status and a stable code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "INVALID_ARGUMENT"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrMissingAPIKey):
		return http.StatusUnprocessableEntity, "MISSING_API_KEY"
	case errors.Is(err, domain.ErrNoProviderSelected):
		return http.StatusConflict, "NO_PROVIDER_SELECTED"
	case errors.Is(err, domain.ErrProviderInactive):
		return http.StatusConflict, "PROVIDER_INACTIVE"
	case errors.Is(err, domain.ErrDuplicateModel):
		return http.StatusConflict, "DUPLICATE_MODEL"
	case errors.Is(err, domain.ErrTranslationInProgress):
		return http.StatusConflict, "TRANSLATION_IN_PROGRESS"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMITED"
	case errors.Is(err, domain.ErrCredentialInvalid):
		return http.StatusBadGateway, "CREDENTIAL_INVALID"
	case errors.Is(err, domain.ErrUsageLimited):
		return http.StatusPaymentRequired, "USAGE_LIMITED"
	case errors.Is(err, domain.ErrNetworkFailure):
		return http.StatusServiceUnavailable, "NETWORK_FAILURE"
	case errors.Is(err, domain.ErrUnknownProvider):
		return http.StatusBadGateway, "PROVIDER_ERROR"
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusInternalServerError, "PERSISTENCE"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func writeError(w http.ResponseWriter, r *http.Request, err error, details interface{}) {
	code, codeStr := statusFor(err)
	if code >= http.StatusInternalServerError {
		LoggerFrom(r).Error("request failed", "code", codeStr, "error", err)
	}
	writeJSON(w, code, errorEnvelope{Error: apiError{Code: codeStr, Message: err.Error(), Details: details}})
}
