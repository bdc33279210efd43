package httpapi

import (
	"encoding/json"
	"net/http"

	gateway "github.com/aipipe/gateway/internal"
)

// adminIdentity verifies the bearer as an identity token and requires
// its email be in the admin set. Admin endpoints are identity-token-only;
// a native key carries no email, so it is rejected outright.
func (s *Server) adminIdentity(r *http.Request) (*gateway.Identity, error) {
	bearer, ok := extractBearer(r)
	if !ok {
		return nil, gateway.ErrUnauthorized
	}
	if isNativeKey(bearer) {
		return nil, gateway.ErrRequiresIdentity
	}
	identity, err := s.Token.Verify(bearer)
	if err != nil {
		return nil, err
	}
	if !s.Token.IsAdmin(identity.Email) {
		return nil, gateway.ErrForbidden
	}
	return identity, nil
}

// handleAdminUsage implements GET /admin/usage: a full ledger scan.
func (s *Server) handleAdminUsage(w http.ResponseWriter, r *http.Request) {
	if _, err := s.adminIdentity(r); err != nil {
		writeAdminError(w, err)
		return
	}
	rows, err := s.Ledger.AllUsage(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "ledger scan failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rows})
}

// handleAdminToken implements GET /admin/token?email=E: mint an
// identity token for an arbitrary email on the admin's behalf.
func (s *Server) handleAdminToken(w http.ResponseWriter, r *http.Request) {
	caller, err := s.adminIdentity(r)
	if err != nil {
		writeAdminError(w, err)
		return
	}
	target := r.URL.Query().Get("email")
	if target == "" {
		writeError(w, http.StatusBadRequest, "missing email")
		return
	}
	tok, err := s.Token.AdminMint(caller.Email, target)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, mintResponse{Token: tok, Email: target})
}

type setCostRequest struct {
	Email string  `json:"email"`
	Date  string  `json:"date"`
	Cost  float64 `json:"cost"`
}

// handleAdminCost implements POST /admin/cost: an unconditional
// ledger setCost overwrite. The route is registered for every method
// (see server.go) so that a non-POST request is answered here with
// 405 before any authentication, rather than falling through to the
// /{provider}/* route.
func (s *Server) handleAdminCost(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if _, err := s.adminIdentity(r); err != nil {
		writeAdminError(w, err)
		return
	}

	var req setCostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Date == "" {
		writeError(w, http.StatusBadRequest, "email and date are required")
		return
	}

	if err := s.Ledger.SetCost(r.Context(), req.Email, req.Date, req.Cost); err != nil {
		writeError(w, http.StatusInternalServerError, "set cost failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"email": req.Email, "date": req.Date, "cost": req.Cost})
}

func writeAdminError(w http.ResponseWriter, err error) {
	writeError(w, errorStatus(err), err.Error())
}
