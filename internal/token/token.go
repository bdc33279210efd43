// Package token implements the gateway's Token Service: minting and
// verifying the internal HS256 identity token, and verifying the
// externally-issued OIDC credential presented to mint one.
package token

import (
	"context"
	"fmt"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	gateway "github.com/aipipe/gateway/internal"
	"github.com/aipipe/gateway/internal/policy"
)

// identityClaims is the payload of the internally-minted token:
// {email, salt?}, no expiry -- revocation is via policy.Salt rotation.
type identityClaims struct {
	Email string `json:"email"`
	Salt  string `json:"salt,omitempty"`
	jwt.RegisteredClaims
}

// credentialClaims is the subset of the external OIDC credential this
// service reads. Unknown fields are ignored by jwt.ParseWithClaims.
type credentialClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	jwt.RegisteredClaims
}

// Service mints and verifies identity tokens.
type Service struct {
	secret []byte
	admins map[string]struct{}
	jwks   keyfunc.Keyfunc            // nil when no JWKS URL is configured
	salt   func(string) (string, bool) // defaults to policy.Salt; overridden in tests
}

// New creates a Service. secret is AIPIPE_SECRET; adminEmails is the
// ADMIN_EMAILS list; jwksURL is the OIDC issuer's JWKS endpoint used to
// verify credentials presented to MintFromCredential. jwksURL may be
// empty in tests that never call MintFromCredential.
func New(ctx context.Context, secret string, adminEmails []string, jwksURL string) (*Service, error) {
	if secret == "" {
		return nil, fmt.Errorf("token: AIPIPE_SECRET must not be empty")
	}
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			admins[e] = struct{}{}
		}
	}

	s := &Service{secret: []byte(secret), admins: admins, salt: policy.Salt}
	if jwksURL != "" {
		k, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
		if err != nil {
			return nil, fmt.Errorf("token: fetch JWKS: %w", err)
		}
		s.jwks = k
	}
	return s, nil
}

// IsAdmin reports whether email is in the process-wide admin set.
func (s *Service) IsAdmin(email string) bool {
	_, ok := s.admins[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

// buildToken signs {email, salt?} with HS256 using the shared secret.
func (s *Service) buildToken(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	claims := identityClaims{Email: email}
	if salt, ok := s.salt(email); ok {
		claims.Salt = salt
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(s.secret)
}

// MintFromCredential verifies a third-party OIDC credential's
// signature against the issuer's JWKS, requires email_verified, and
// mints an internal identity token for the verified email.
func (s *Service) MintFromCredential(_ context.Context, credential string) (tokenStr, email string, err error) {
	if s.jwks == nil {
		return "", "", fmt.Errorf("token: no JWKS configured for credential verification")
	}
	var claims credentialClaims
	parsed, err := jwt.ParseWithClaims(credential, &claims, s.jwks.Keyfunc)
	if err != nil || !parsed.Valid {
		return "", "", gateway.ErrUnauthorized
	}
	if !claims.EmailVerified || claims.Email == "" {
		return "", "", gateway.ErrUnauthorized
	}

	tokenStr, err = s.buildToken(claims.Email)
	if err != nil {
		return "", "", fmt.Errorf("token: sign: %w", err)
	}
	return tokenStr, strings.ToLower(claims.Email), nil
}

// AdminMint mints an identity token for targetEmail, callable only
// when callerEmail is in the admin set.
func (s *Service) AdminMint(callerEmail, targetEmail string) (string, error) {
	if !s.IsAdmin(callerEmail) {
		return "", gateway.ErrForbidden
	}
	return s.buildToken(targetEmail)
}

// Verify validates an internal identity token's signature and, if the
// server has rotated a salt for this email, requires the token's own
// salt claim to match it -- otherwise the token is revoked.
func (s *Service) Verify(tokenStr string) (*gateway.Identity, error) {
	var claims identityClaims
	parsed, err := jwt.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid || claims.Email == "" {
		return nil, gateway.ErrUnauthorized
	}

	if serverSalt, ok := s.salt(claims.Email); ok {
		if claims.Salt == "" || claims.Salt != serverSalt {
			return nil, gateway.ErrRevoked
		}
	}

	return &gateway.Identity{Email: claims.Email, Salt: claims.Salt}, nil
}
