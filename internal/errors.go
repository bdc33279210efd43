package gateway

import "errors"

// Sentinel errors for the gateway domain. Handlers map these to HTTP
// status codes at the outermost layer (see internal/httpapi/respond.go);
// nothing below that layer writes to an http.ResponseWriter directly.
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrRevoked          = errors.New("token no longer valid")
	ErrRequiresIdentity = errors.New("requires AIPipe JWT token")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("not found")
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrBudgetExceeded   = errors.New("budget exceeded")
	ErrBadRequest       = errors.New("bad request")
	ErrModelUnpriced    = errors.New("model pricing unknown")
	ErrUpstream         = errors.New("upstream error")
	ErrUpstreamTimeout  = errors.New("upstream timeout")
)
