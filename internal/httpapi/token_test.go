package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestUsageRequiresBearer(t *testing.T) {
	t.Parallel()
	h := New(newTestServer(nil, newTestLedger(t), newTestToken(t)))

	req := httptest.NewRequest(http.MethodGet, "/usage", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestUsageReturnsOwnLedgerRows(t *testing.T) {
	t.Parallel()
	const admin = "admin@example.com"
	ledger := newTestLedger(t)
	tok := newTestToken(t, admin)

	if err := ledger.Add(context.Background(), "self@example.com", 2.0); err != nil {
		t.Fatal(err)
	}

	h := New(newTestServer(nil, ledger, tok))
	selfToken := mintIdentity(t, tok, admin, "self@example.com")

	req := httptest.NewRequest(http.MethodGet, "/usage", nil)
	req.Header.Set("Authorization", "Bearer "+selfToken)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body = %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"cost":2`) {
		t.Errorf("body = %q, want cost of 2 reflected", rec.Body.String())
	}
}

func TestMintTokenRequiresCredentialParam(t *testing.T) {
	t.Parallel()
	h := New(newTestServer(nil, newTestLedger(t), newTestToken(t)))

	req := httptest.NewRequest(http.MethodGet, "/token", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestMintTokenRejectsUnparsableCredential(t *testing.T) {
	t.Parallel()
	h := New(newTestServer(nil, newTestLedger(t), newTestToken(t)))

	req := httptest.NewRequest(http.MethodGet, "/token?credential=not-a-jwt", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized && rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d or %d (no JWKS configured, or invalid credential)", rec.Code, http.StatusUnauthorized, http.StatusInternalServerError)
	}
}
