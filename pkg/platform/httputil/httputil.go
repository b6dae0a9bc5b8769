package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	dErrors "guardtag/pkg/domain-errors"
)

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code, so we ignore encoding errors.
	// The response body may be incomplete, but headers are already sent.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError centralizes domain error translation to HTTP responses.
// It translates transport-agnostic domain errors into HTTP status codes and
// error responses. Rate-limited errors also set the Retry-After header.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		if domainErr.Code == dErrors.CodeRateLimited && domainErr.RetryAfterSeconds > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(domainErr.RetryAfterSeconds))
		}
		status := DomainCodeToHTTPStatus(domainErr.Code)
		response := map[string]any{
			"error": string(domainErr.Code),
		}
		if domainErr.Message != "" {
			response["error_description"] = domainErr.Message
		}
		if domainErr.Code == dErrors.CodeRateLimited {
			response["retry_after_seconds"] = domainErr.RetryAfterSeconds
		}
		WriteJSON(w, status, response)
		return
	}

	// Fallback for unexpected errors
	WriteJSON(w, http.StatusInternalServerError, map[string]string{
		"error": string(dErrors.CodeInternal),
	})
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUnauthenticated:
		return http.StatusUnauthorized
	case dErrors.CodeUnauthorized, dErrors.CodeForbidden:
		return http.StatusForbidden
	// Token and status rejections are 404-equivalent: the scan boundary must not
	// reveal whether the bracelet exists, only that the scan is not serviceable.
	case dErrors.CodeInvalidToken:
		return http.StatusNotFound
	case dErrors.CodeInvalidStatus:
		return http.StatusConflict
	case dErrors.CodeInvalidPin:
		return http.StatusUnauthorized
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	case dErrors.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
