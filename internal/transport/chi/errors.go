package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kailas-cloud/edasearch/internal/domain"
)

// ErrorCode is the machine-readable code of an error response.
type ErrorCode string

// Error codes returned in ErrorResponse.Code.
const (
	ErrorCodeBadRequest        ErrorCode = "bad_request"
	ErrorCodeUnauthorized      ErrorCode = "unauthorized"
	ErrorCodeNoQuery           ErrorCode = "no_query"
	ErrorCodeNoResults         ErrorCode = "no_results"
	ErrorCodeEngineError       ErrorCode = "engine_error"
	ErrorCodeEngineUnavailable ErrorCode = "engine_unavailable"
	ErrorCodeInternalError     ErrorCode = "internal_error"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

var errorHandlers = []errorHandler{
	sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, ErrorCodeBadRequest),
	sentinelHandler(domain.ErrNoQuery, http.StatusUnprocessableEntity, ErrorCodeNoQuery),
	sentinelHandler(domain.ErrEngineUnavailable, http.StatusServiceUnavailable, ErrorCodeEngineUnavailable),
	sentinelHandler(domain.ErrEngine, http.StatusBadGateway, ErrorCodeEngineError),
	sentinelHandler(domain.ErrNoResults, http.StatusInternalServerError, ErrorCodeNoResults),
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidRequest,
		domain.ErrNoQuery,
		domain.ErrNoResults,
		domain.ErrEngineUnavailable,
		domain.ErrEngine,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}
