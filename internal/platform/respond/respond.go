// Package respond writes JSON responses and maps application errors to HTTP status codes.
package respond

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"pushauth/backend/internal/authz"
	"pushauth/backend/internal/platform/apperr"
)

// maxBodyBytes bounds request bodies. ML-DSA-87 keys and signatures base64-encode to under 10 KiB.
const maxBodyBytes = 64 << 10

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JSON writes data with status.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("respond: encode: %v", err)
	}
}

// Error writes err as an ErrorBody with the status from Describe. 5xx errors are logged.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status, body := Describe(err)
	if status >= http.StatusInternalServerError {
		log.Printf("http: %s %s: %d %v", r.Method, r.URL.Path, status, err)
	}
	JSON(w, status, body)
}

// Describe returns the HTTP status and body for err.
func Describe(err error) (int, ErrorBody) {
	switch {
	case errors.Is(err, authz.ErrUnauthenticated):
		return http.StatusUnauthorized, ErrorBody{Code: "UNAUTHENTICATED", Message: "missing or invalid authorization"}
	case errors.Is(err, authz.ErrForbidden):
		return http.StatusForbidden, ErrorBody{Code: "FORBIDDEN", Message: err.Error()}
	}
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError, ErrorBody{Code: "INTERNAL", Message: "internal server error"}
	}
	msg := ae.Message
	if ae.Kind == apperr.KindInvalid {
		// Client errors carry their cause so callers can fix the request.
		msg = err.Error()
	}
	return Status(err), ErrorBody{Code: ae.Code, Message: msg}
}

// Status maps an error's apperr.Kind to an HTTP status.
func Status(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindState:
		if errors.Is(err, apperr.ErrChallengeExpired) {
			return http.StatusGone
		}
		return http.StatusConflict
	case apperr.KindAuth:
		return http.StatusUnauthorized
	case apperr.KindConfig:
		return http.StatusPreconditionFailed
	case apperr.KindDependency:
		if errors.Is(err, apperr.ErrStoreUnavailable) {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	case apperr.KindInvalid:
		return http.StatusBadRequest
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// Decode reads a JSON body into v. Unknown fields and oversized bodies are rejected as ErrInvalidRequest.
func Decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Wrap(apperr.ErrInvalidRequest, err)
	}
	return nil
}
