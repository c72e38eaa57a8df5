// Package middleware holds the gin middleware that resolves the caller and
// gates every conversation-scoped route.
package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/comigor/jarvis-chat/internal/domain"
	"github.com/comigor/jarvis-chat/internal/logger"
	"github.com/comigor/jarvis-chat/internal/response"
)

const (
	IdentityKey   = "identity"
	TokenKey      = "session_token"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// Resolver exchanges a session credential for an identity.
type Resolver interface {
	Resolve(ctx context.Context, token string) (*domain.Identity, error)
}

// TokenFrom reads the session credential from the cookie, falling back to a
// bearer token.
func TokenFrom(c *gin.Context, cookieName string) string {
	if v, err := c.Cookie(cookieName); err == nil && v != "" {
		return v
	}
	if h := c.GetHeader(AuthHeaderKey); strings.HasPrefix(h, BearerPrefix) {
		return strings.TrimPrefix(h, BearerPrefix)
	}
	return ""
}

// RequireAuth rejects requests without a valid session with 401.
func RequireAuth(resolver Resolver, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFrom(c, cookieName)
		if token == "" {
			response.Abort(c, domain.ErrUnauthenticated)
			return
		}

		id, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			response.Abort(c, err)
			return
		}

		c.Set(IdentityKey, id)
		c.Set(TokenKey, token)
		c.Set(logger.FieldUserID, id.UserID)

		l := logger.Ctx(c.Request.Context()).With().Str(logger.FieldUserID, id.UserID).Logger()
		c.Request = c.Request.WithContext(logger.WithLogger(c.Request.Context(), l))

		c.Next()
	}
}

// GetIdentity returns the identity set by RequireAuth.
func GetIdentity(c *gin.Context) *domain.Identity {
	if v, ok := c.Get(IdentityKey); ok {
		if id, ok := v.(*domain.Identity); ok {
			return id
		}
	}
	return nil
}

// GetToken returns the raw session credential set by RequireAuth.
func GetToken(c *gin.Context) string {
	return c.GetString(TokenKey)
}
