package token

import (
	"context"
	"testing"

	gateway "github.com/aipipe/gateway/internal"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := New(context.Background(), "test-secret", []string{"admin@example.com"}, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

// fakeSalts lets a test simulate salt rotation without reaching into
// the policy package's compiled-in map.
func fakeSalts(m map[string]string) func(string) (string, bool) {
	return func(email string) (string, bool) {
		v, ok := m[email]
		return v, ok
	}
}

func TestAdminMintAndVerify(t *testing.T) {
	t.Parallel()

	s := newTestService(t)

	tok, err := s.AdminMint("admin@example.com", "user@example.com")
	if err != nil {
		t.Fatalf("AdminMint: %v", err)
	}

	id, err := s.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.Email != "user@example.com" {
		t.Errorf("Email = %q, want user@example.com", id.Email)
	}
}

func TestAdminMintRequiresAdmin(t *testing.T) {
	t.Parallel()

	s := newTestService(t)

	_, err := s.AdminMint("nobody@example.com", "user@example.com")
	if err != gateway.ErrForbidden {
		t.Errorf("AdminMint by non-admin = %v, want ErrForbidden", err)
	}
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	t.Parallel()

	s := newTestService(t)
	other, err := New(context.Background(), "other-secret", nil, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tok, err := other.buildToken("user@example.com")
	if err != nil {
		t.Fatalf("buildToken: %v", err)
	}

	if _, err := s.Verify(tok); err != gateway.ErrUnauthorized {
		t.Errorf("Verify cross-secret token = %v, want ErrUnauthorized", err)
	}
}

func TestVerifyRevokedBySaltRotation(t *testing.T) {
	t.Parallel()

	s := newTestService(t)
	s.salt = fakeSalts(map[string]string{})

	tok, err := s.buildToken("rotated@example.com")
	if err != nil {
		t.Fatalf("buildToken: %v", err)
	}

	// Simulate an operator rotating the salt for this email after the
	// token above was minted.
	s.salt = fakeSalts(map[string]string{"rotated@example.com": "v2"})

	if _, err := s.Verify(tok); err != gateway.ErrRevoked {
		t.Errorf("Verify after salt rotation = %v, want ErrRevoked", err)
	}
}

func TestVerifyAcceptsMatchingSalt(t *testing.T) {
	t.Parallel()

	s := newTestService(t)
	s.salt = fakeSalts(map[string]string{"stable@example.com": "v3"})

	tok, err := s.buildToken("stable@example.com")
	if err != nil {
		t.Fatalf("buildToken: %v", err)
	}

	id, err := s.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.Salt != "v3" {
		t.Errorf("Salt = %q, want v3", id.Salt)
	}
}

func TestIsAdmin(t *testing.T) {
	t.Parallel()

	s := newTestService(t)
	if !s.IsAdmin("Admin@Example.com") {
		t.Error("IsAdmin should be case-insensitive")
	}
	if s.IsAdmin("user@example.com") {
		t.Error("IsAdmin(user) should be false")
	}
}
