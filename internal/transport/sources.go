package transport

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
)

// maxPeekBytes bounds how much of a body BodySource will read
const maxPeekBytes = 64 << 10

// Source yields a credential from one place in the request, or ""
type Source func(c *gin.Context) string

// Extract returns the first non-empty credential in source order
func Extract(c *gin.Context, sources ...Source) string {
	for _, src := range sources {
		if v := src(c); v != "" {
			return v
		}
	}
	return ""
}

// CookieSource reads a named cookie
func CookieSource(name string) Source {
	return func(c *gin.Context) string {
		v, err := c.Cookie(name)
		if err != nil {
			return ""
		}
		return v
	}
}

// BearerSource reads "Authorization: Bearer <token>"
func BearerSource() Source {
	return func(c *gin.Context) string {
		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
			return ""
		}
		return strings.TrimSpace(header[len(prefix):])
	}
}

// BodySource reads a top-level string field of a JSON body.
// The body is restored so later handlers can bind it again.
func BodySource(field string) Source {
	return func(c *gin.Context) string {
		if c.Request == nil || c.Request.Body == nil {
			return ""
		}
		raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPeekBytes))
		_ = c.Request.Body.Close()
		c.Request.Body = io.NopCloser(bytes.NewReader(raw))
		if err != nil || len(raw) == 0 {
			return ""
		}

		var payload map[string]json.RawMessage
		if json.Unmarshal(raw, &payload) != nil {
			return ""
		}
		var v string
		if json.Unmarshal(payload[field], &v) != nil {
			return ""
		}
		return v
	}
}

// AccessTokenSources is the lookup order for access tokens
func AccessTokenSources() []Source {
	return []Source{CookieSource(AccessTokenCookie), BearerSource()}
}

// RefreshTokenSources is the lookup order for refresh tokens
func RefreshTokenSources() []Source {
	return []Source{CookieSource(RefreshTokenCookie), BodySource(RefreshTokenCookie)}
}
