package httpapi

import (
	"net/http"
	"strings"

	gateway "github.com/aipipe/gateway/internal"
	"github.com/aipipe/gateway/internal/policy"
)

type mintResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

// handleMintToken mints an identity token from an external credential: the
// caller supplies a third-party OIDC credential and receives an
// internal identity token bound to the verified email.
func (s *Server) handleMintToken(w http.ResponseWriter, r *http.Request) {
	credential := r.URL.Query().Get("credential")
	if credential == "" {
		writeError(w, http.StatusBadRequest, "missing credential")
		return
	}

	tok, email, err := s.Token.MintFromCredential(r.Context(), credential)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, mintResponse{Token: tok, Email: email})
}

type usageResponse struct {
	Email string            `json:"email"`
	Days  int               `json:"days"`
	Cost  float64           `json:"cost"`
	Usage []gateway.UsageRow `json:"usage"`
	Limit float64           `json:"limit"`
}

// handleUsage implements the self-usage query: the caller's own
// identity-token bearer determines which email's usage is returned.
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	bearer, ok := extractBearer(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	identity, err := s.Token.Verify(bearer)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}

	budget := policy.Lookup(identity.Email)
	usage, err := s.Ledger.UsageFor(r.Context(), identity.Email, budget.Days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "usage query failed")
		return
	}

	writeJSON(w, http.StatusOK, usageResponse{
		Email: usage.Email,
		Days:  usage.Days,
		Cost:  usage.Cost,
		Usage: usage.Usage,
		Limit: budget.Limit,
	})
}

// extractBearer reads the "Authorization: Bearer <t>" header.
func extractBearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return "", false
	}
	return strings.TrimPrefix(h, prefix), true
}
