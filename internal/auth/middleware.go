package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	userIDKey    = "user_id"
	userEmailKey = "user_email"
)

type principalKey struct{}

type Middleware struct {
	verifier Verifier
	logger   *zap.Logger
}

func NewMiddleware(verifier Verifier, logger *zap.Logger) *Middleware {
	return &Middleware{
		verifier: verifier,
		logger:   logger,
	}
}

// RequireUser rejects requests without a valid bearer ID token. On success
// the caller's uid is available through GetUserID and PrincipalFromContext.
func (m *Middleware) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		principal, err := m.verifier.Verify(c.Request.Context(), token)
		if err != nil {
			m.logger.Warn("token verification failed",
				zap.Error(err),
				zap.String("request_id", c.GetString("request_id")),
				zap.String("path", c.Request.URL.Path),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Set(userIDKey, principal.UID)
		c.Set(userEmailKey, principal.Email)
		c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), principal))

		c.Next()
	}
}

// GetUserID retrieves the user ID from the gin context
func GetUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

func WithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	principal, ok := ctx.Value(principalKey{}).(*Principal)
	return principal, ok
}
