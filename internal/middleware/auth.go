package middleware

import (
	"context"
	"net/http"

	"github.com/Rijughosh14/EShop/internal/domain"
	"github.com/Rijughosh14/EShop/internal/transport"
	"github.com/Rijughosh14/EShop/pkg/response"
	"github.com/gin-gonic/gin"
)

const (
	UserIDKey    = "user_id"
	UserEmailKey = "user_email"
	// AccessTokenKey holds the raw token the request was authenticated with
	AccessTokenKey = "access_token"
)

// TokenValidator verifies access tokens
type TokenValidator interface {
	ValidateAccess(ctx context.Context, token string) (*domain.Claims, error)
}

// RequireAuth rejects requests without a valid access token.
// A missing token is 401, a rejected one is 403.
func RequireAuth(validator TokenValidator) gin.HandlerFunc {
	sources := transport.AccessTokenSources()
	return func(c *gin.Context) {
		token := transport.Extract(c, sources...)
		if token == "" {
			response.Abort(c, http.StatusUnauthorized, "NO_ACCESS_TOKEN", "Access token required")
			return
		}

		claims, err := validator.ValidateAccess(c.Request.Context(), token)
		if err != nil {
			response.Abort(c, http.StatusForbidden, "INVALID_TOKEN", "Invalid or expired token")
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UserEmailKey, claims.Email)
		c.Set(AccessTokenKey, token)
		c.Next()
	}
}

// GetUserID returns the authenticated user id
func GetUserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
