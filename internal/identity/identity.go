// Package identity resolves the caller from a signed session token.
//
// Tokens are HS256 JWTs in the shape issued by Supabase-style auth servers:
// "sub" carries the user id, "email" the address, "exp" the expiry. The
// server never creates users; it only verifies tokens signed with the shared
// secret and honours logouts through a revocation list.
package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/comigor/jarvis-chat/internal/config"
	"github.com/comigor/jarvis-chat/internal/domain"
	"github.com/comigor/jarvis-chat/internal/logger"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrRevokedToken = errors.New("token has been revoked")
	ErrMissingToken = errors.New("missing session token")
)

// Claims are the session token claims.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// Verifier validates session tokens and maintains their revocation.
type Verifier struct {
	secret  []byte
	issuer  string
	revoker Revoker
}

// NewVerifier creates a verifier. The JWT secret is required.
func NewVerifier(cfg config.AuthConfig, revoker Revoker) (*Verifier, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	if revoker == nil {
		revoker = NewMemoryRevoker()
	}
	return &Verifier{secret: []byte(cfg.JWTSecret), issuer: cfg.Issuer, revoker: revoker}, nil
}

// Resolve exchanges a token for an identity. Every failure is reported as
// domain.ErrUnauthenticated wrapping the cause.
func (v *Verifier) Resolve(ctx context.Context, token string) (*domain.Identity, error) {
	claims, err := v.parse(token)
	if err != nil {
		return nil, unauthenticated(err)
	}

	revoked, err := v.revoker.IsRevoked(ctx, revocationKey(token, claims))
	if err != nil {
		// fail closed
		logger.Ctx(ctx).Error().Err(err).Msg("revocation lookup failed")
		return nil, unauthenticated(err)
	}
	if revoked {
		return nil, unauthenticated(ErrRevokedToken)
	}

	return &domain.Identity{UserID: claims.Subject, Email: claims.Email}, nil
}

// Revoke invalidates token until it would have expired anyway.
func (v *Verifier) Revoke(ctx context.Context, token string) error {
	claims, err := v.parse(token)
	if err != nil {
		return unauthenticated(err)
	}
	return v.revoker.Revoke(ctx, revocationKey(token, claims), claims.ExpiresAt.Time)
}

// Issue signs a token for userID. Used by tooling and tests; production
// tokens come from the external auth server.
func (v *Verifier) Issue(userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    v.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: email,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

func (v *Verifier) parse(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// revocationKey prefers the token id and falls back to a digest of the token.
func revocationKey(token string, claims *Claims) string {
	if claims.ID != "" {
		return claims.ID
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func unauthenticated(err error) error {
	return &domain.Error{Kind: domain.KindUnauthenticated, Message: "unauthorized", Err: err}
}
