package transport

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"

	AccessTokenMaxAge  = 30 * time.Minute
	RefreshTokenMaxAge = 30 * 24 * time.Hour
)

// CookiePolicy is the attribute set shared by every auth cookie.
// Clearing must reuse the exact set used when setting, or some browsers keep the cookie.
type CookiePolicy struct {
	Secure   bool
	SameSite http.SameSite
	Domain   string
	Path     string
}

// NewCookiePolicy returns Strict/insecure cookies in development and
// cross-site None/Secure cookies in production
func NewCookiePolicy(production bool, domain, path string) CookiePolicy {
	if path == "" {
		path = "/"
	}
	policy := CookiePolicy{
		Secure:   false,
		SameSite: http.SameSiteStrictMode,
		Domain:   domain,
		Path:     path,
	}
	if production {
		policy.Secure = true
		policy.SameSite = http.SameSiteNoneMode
	}
	return policy
}

func (p CookiePolicy) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     p.Path,
		Domain:   p.Domain,
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: p.SameSite,
	}
	if maxAge < 0 {
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
	} else {
		c.MaxAge = int(maxAge.Seconds())
	}
	return c
}

// SetAuthCookies writes both token cookies
func SetAuthCookies(c *gin.Context, policy CookiePolicy, accessToken, refreshToken string) {
	http.SetCookie(c.Writer, policy.cookie(AccessTokenCookie, accessToken, AccessTokenMaxAge))
	http.SetCookie(c.Writer, policy.cookie(RefreshTokenCookie, refreshToken, RefreshTokenMaxAge))
}

// ClearAuthCookies expires both token cookies
func ClearAuthCookies(c *gin.Context, policy CookiePolicy) {
	http.SetCookie(c.Writer, policy.cookie(AccessTokenCookie, "", -1))
	http.SetCookie(c.Writer, policy.cookie(RefreshTokenCookie, "", -1))
}
