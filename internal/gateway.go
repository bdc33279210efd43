// Package gateway defines the domain types and the provider adapter
// contract for the aipipe gateway. This package has no project imports
// -- it is the dependency root.
package gateway

import (
	"context"
	"net/http"
)

// --- Identity ---

// Identity is the authenticated caller context attached to the request
// context after the bearer credential is classified. A native-prefix
// credential produces no Identity at all; only identity-token requests
// populate this.
type Identity struct {
	Email string // lower-cased, from the verified token payload
	Salt  string // salt claim as presented in the token, "" if absent
}

// --- context-key bundling ---
//
// One context.WithValue call per request carries both the request ID
// and the resolved identity, avoiding the extra allocation two
// separate WithValue calls would cost on every request.

type contextKey int

const ctxKeyMeta contextKey = 0

// requestMeta bundles per-request values into a single context allocation.
type requestMeta struct {
	RequestID string
	Identity  *Identity
}

func metaFromContext(ctx context.Context) *requestMeta {
	m, _ := ctx.Value(ctxKeyMeta).(*requestMeta)
	return m
}

// IdentityFromContext extracts the authenticated identity from context,
// or nil for native-key requests and unauthenticated routes.
func IdentityFromContext(ctx context.Context) *Identity {
	if m := metaFromContext(ctx); m != nil {
		return m.Identity
	}
	return nil
}

// ContextWithIdentity stores the identity in the existing requestMeta if
// present, avoiding a new context.WithValue allocation.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	if m := metaFromContext(ctx); m != nil {
		m.Identity = id
		return ctx
	}
	return context.WithValue(ctx, ctxKeyMeta, &requestMeta{Identity: id})
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if m := metaFromContext(ctx); m != nil {
		return m.RequestID
	}
	return ""
}

// ContextWithRequestID returns a context carrying the given request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyMeta, &requestMeta{RequestID: id})
}

// --- usage & cost ---

// Usage canonicalises the token-count triple reported by an upstream,
// regardless of the provider-specific field names it arrived under.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`

	// Modality sub-counters, present for OpenAI audio/transcribe models
	// and OpenRouter's extended usage shape. Zero when not reported.
	AudioInputTokens  int `json:"-"`
	AudioOutputTokens int `json:"-"`
	ReasoningTokens   int `json:"-"`
	ImageTokens       int `json:"-"`
}

// --- provider adapter contract ---

// APIError is a short-circuiting adapter error, forwarded to the
// client verbatim as {message: ...} with the given HTTP status.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

// TransformInput is what the gateway pipeline hands an adapter's
// Transform step: the provider-relative path (with query string), the
// inbound method/headers/body, and whether the credential classified
// as a native provider key (bypasses pricing gates and attribution
// headers).
type TransformInput struct {
	Path   string
	Method string
	Header http.Header
	Body   []byte
	Native bool
	Bearer string // the raw bearer credential (native key, or identity token -- adapters ignore the latter)
}

// TransformResult is the adapter's Transform output: either a proxy
// spec to forward upstream, a direct result the pipeline serialises
// itself (the similarity adapter), or an error to surface verbatim.
type TransformResult struct {
	// Proxy spec.
	URL    string
	Header http.Header
	Body   []byte

	// Direct result (bypasses the upstream fetch entirely).
	Direct      []byte
	DirectModel string
	DirectUsage *Usage

	// Short-circuit error, forwarded verbatim as {message} with Status.
	Err *APIError
}

// IsDirect reports whether this result should be served directly
// rather than forwarded upstream.
func (r *TransformResult) IsDirect() bool { return r.Direct != nil }

// CostInput is what Cost receives: the model id and the usage counters
// latched by the response classifier or the SSE splitter. Usage may be
// nil (e.g. a stream with no usage frame, or a response shape that
// never carries usage at all), in which case most adapters price it as
// zero. Path and RequestBody carry the original provider-relative
// request path and body through to Cost for the rare adapter that must
// re-derive a token count itself when the response didn't supply one
// (the Gemini adapter's countTokens side-call for embedContent).
type CostInput struct {
	Model       string
	Usage       *Usage
	Path        string
	RequestBody []byte
}

// Adapter is the uniform provider contract: transform a client
// request, parse usage out of a response frame, and price that usage.
type Adapter interface {
	// Name is the route-classifier prefix this adapter is mounted
	// under (e.g. "openai", "openrouter", "gemini", "similarity").
	Name() string

	// Transform rewrites a client request into an upstream proxy spec,
	// a direct result, or an error.
	Transform(ctx context.Context, in TransformInput) (*TransformResult, error)

	// Parse extracts {model, usage} from one JSON object -- either a
	// unary response body or a single SSE data: frame payload.
	Parse(data []byte) (model string, usage *Usage)

	// Cost prices a (model, usage) pair in dollars. Must treat a nil
	// Usage as zero cost.
	Cost(ctx context.Context, in CostInput) (float64, error)
}

// UsageRow is one row of the cost ledger, as returned by queries.
type UsageRow struct {
	Email string  `json:"email"`
	Date  string  `json:"date"`
	Cost  float64 `json:"cost"`
}
