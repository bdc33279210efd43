package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	gateway "github.com/aipipe/gateway/internal"
)

// jsonCT is a pre-allocated header value slice. Direct map assignment
// avoids the []string{v} alloc that Header.Set creates on every call.
var jsonCT = []string{"application/json"}

type errorBody struct {
	Message string `json:"message"`
}

func errorResponse(msg string) errorBody { return errorBody{Message: msg} }

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
		return
	}
	w.Header()["Content-Type"] = jsonCT
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse(msg))
}

// errorStatus maps domain sentinel errors to HTTP status codes, per
// the gateway's error taxonomy.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, gateway.ErrUnauthorized), errors.Is(err, gateway.ErrRevoked), errors.Is(err, gateway.ErrRequiresIdentity):
		return http.StatusUnauthorized
	case errors.Is(err, gateway.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, gateway.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, gateway.ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed
	case errors.Is(err, gateway.ErrBudgetExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, gateway.ErrBadRequest), errors.Is(err, gateway.ErrModelUnpriced):
		return http.StatusBadRequest
	case errors.Is(err, gateway.ErrUpstreamTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
