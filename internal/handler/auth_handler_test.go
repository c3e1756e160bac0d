package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Rijughosh14/EShop/internal/dto"
	"github.com/Rijughosh14/EShop/internal/middleware"
	"github.com/Rijughosh14/EShop/internal/repository"
	"github.com/Rijughosh14/EShop/internal/service"
	"github.com/Rijughosh14/EShop/internal/transport"
	"github.com/Rijughosh14/EShop/pkg/logger"
	"github.com/Rijughosh14/EShop/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "handler-test-secret-at-least-32-chars"

func init() {
	gin.SetMode(gin.TestMode)
}

// failingRevokeRepo makes Delete fail so logout hits the server-fault path
type failingRevokeRepo struct {
	repository.RefreshTokenRepository
}

func (failingRevokeRepo) Delete(context.Context, string, string) error {
	return errors.New("store unavailable")
}

func authConfig() *service.AuthServiceConfig {
	return &service.AuthServiceConfig{
		JWTSecret:          testSecret,
		Issuer:             "eshop",
		AccessTokenExpiry:  30 * time.Minute,
		RefreshTokenExpiry: 30 * 24 * time.Hour,
		BcryptCost:         bcrypt.MinCost,
		RefreshTokenBytes:  64,
	}
}

func newAuthRouter(svc service.AuthService) *gin.Engine {
	h := NewAuthHandler(svc, transport.NewCookiePolicy(false, "", "/"), logger.NewNop())

	r := gin.New()
	auth := r.Group("/api/auth")
	auth.POST("/signup", h.Signup)
	auth.POST("/login", h.Login)
	auth.POST("/refresh-token", h.RefreshToken)

	protected := auth.Group("", middleware.RequireAuth(svc))
	protected.GET("/validate-token", h.ValidateToken)
	protected.GET("/profile", h.Profile)
	protected.POST("/logout", h.Logout)
	protected.POST("/logout-all", h.LogoutAll)
	return r
}

type authFixture struct {
	router *gin.Engine
	tokens *repository.MemoryRefreshTokenRepository
	users  *repository.MemoryUserRepository
}

func newAuthFixture() *authFixture {
	users := repository.NewMemoryUserRepository()
	tokens := repository.NewMemoryRefreshTokenRepository()
	svc := service.NewAuthService(users, tokens, authConfig())
	return &authFixture{router: newAuthRouter(svc), tokens: tokens, users: users}
}

func do(r http.Handler, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func responseCookies(w *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range w.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error, w.Body.String())
	return resp.Error.Code
}

func decodeAuth(t *testing.T, w *httptest.ResponseRecorder) dto.AuthResponse {
	t.Helper()
	var resp dto.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

const janeSignup = `{"email":"Jane@Example.com","password":"password123","name":"Jane"}`

func (f *authFixture) signup(t *testing.T) (dto.AuthResponse, map[string]*http.Cookie) {
	t.Helper()
	w := do(f.router, http.MethodPost, "/api/auth/signup", janeSignup)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeAuth(t, w), responseCookies(w)
}

func TestAuthHandler_Signup(t *testing.T) {
	f := newAuthFixture()

	resp, cookies := f.signup(t)
	assert.Equal(t, "User created successfully", resp.Message)
	assert.Equal(t, "jane@example.com", resp.User.Email)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, resp.AccessToken, resp.Token)
	assert.Len(t, resp.RefreshToken, 128)

	require.Contains(t, cookies, transport.AccessTokenCookie)
	require.Contains(t, cookies, transport.RefreshTokenCookie)
	assert.True(t, cookies[transport.AccessTokenCookie].HttpOnly)
	assert.Equal(t, 1800, cookies[transport.AccessTokenCookie].MaxAge)
	assert.Equal(t, 30*24*3600, cookies[transport.RefreshTokenCookie].MaxAge)
	assert.Equal(t, resp.RefreshToken, cookies[transport.RefreshTokenCookie].Value)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"duplicate email", `{"email":"jane@example.com","password":"password123","name":"J"}`, http.StatusBadRequest, "DUPLICATE_ACCOUNT"},
		{"missing name", `{"email":"x@example.com","password":"password123"}`, http.StatusBadRequest, "MISSING_FIELDS"},
		{"blank name", `{"email":"x@example.com","password":"password123","name":"   "}`, http.StatusBadRequest, "MISSING_FIELDS"},
		{"invalid email", `{"email":"nope","password":"password123","name":"X"}`, http.StatusBadRequest, "INVALID_EMAIL"},
		{"weak password", `{"email":"x@example.com","password":"abc","name":"X"}`, http.StatusBadRequest, "WEAK_PASSWORD"},
		{"malformed json", `{"email":`, http.StatusBadRequest, "BAD_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(f.router, http.MethodPost, "/api/auth/signup", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, errCode(t, w))
			assert.Empty(t, w.Result().Cookies())
		})
	}
}

func TestAuthHandler_Login(t *testing.T) {
	f := newAuthFixture()
	f.signup(t)

	t.Run("success", func(t *testing.T) {
		w := do(f.router, http.MethodPost, "/api/auth/login", `{"email":"jane@example.com","password":"password123"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Login successful", decodeAuth(t, w).Message)
		assert.Contains(t, responseCookies(w), transport.AccessTokenCookie)
	})

	t.Run("wrong password and unknown email look the same", func(t *testing.T) {
		bad := do(f.router, http.MethodPost, "/api/auth/login", `{"email":"jane@example.com","password":"wrong-one"}`)
		unknown := do(f.router, http.MethodPost, "/api/auth/login", `{"email":"who@example.com","password":"password123"}`)

		assert.Equal(t, http.StatusUnauthorized, bad.Code)
		assert.Equal(t, http.StatusUnauthorized, unknown.Code)
		assert.Equal(t, bad.Body.String(), unknown.Body.String())
		assert.Equal(t, "INVALID_CREDENTIALS", errCode(t, bad))
	})

	t.Run("missing fields", func(t *testing.T) {
		w := do(f.router, http.MethodPost, "/api/auth/login", `{"email":"jane@example.com"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "MISSING_FIELDS", errCode(t, w))
	})
}

func TestAuthHandler_ValidateToken(t *testing.T) {
	f := newAuthFixture()
	resp, cookies := f.signup(t)

	t.Run("no token", func(t *testing.T) {
		w := do(f.router, http.MethodGet, "/api/auth/validate-token", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "NO_ACCESS_TOKEN", errCode(t, w))
	})

	t.Run("forged token", func(t *testing.T) {
		w := do(f.router, http.MethodGet, "/api/auth/validate-token", "",
			&http.Cookie{Name: transport.AccessTokenCookie, Value: resp.AccessToken + "x"})
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "INVALID_TOKEN", errCode(t, w))
	})

	t.Run("cookie token", func(t *testing.T) {
		w := do(f.router, http.MethodGet, "/api/auth/validate-token", "", cookies[transport.AccessTokenCookie])
		require.Equal(t, http.StatusOK, w.Code)

		var body dto.ValidateTokenResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "Token is valid", body.Message)
		assert.Equal(t, resp.User.ID, body.User.ID)
	})

	t.Run("bearer fallback", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/validate-token", nil)
		req.Header.Set("Authorization", "Bearer "+resp.AccessToken)
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("user gone", func(t *testing.T) {
		// same secret, empty user table
		svc := service.NewAuthService(repository.NewMemoryUserRepository(), repository.NewMemoryRefreshTokenRepository(), authConfig())
		w := do(newAuthRouter(svc), http.MethodGet, "/api/auth/validate-token", "", cookies[transport.AccessTokenCookie])
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "USER_NOT_FOUND", errCode(t, w))
	})
}

func TestAuthHandler_RefreshToken(t *testing.T) {
	f := newAuthFixture()
	resp, cookies := f.signup(t)

	t.Run("no refresh token", func(t *testing.T) {
		w := do(f.router, http.MethodPost, "/api/auth/refresh-token", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "NO_REFRESH_TOKEN", errCode(t, w))
	})

	w := do(f.router, http.MethodPost, "/api/auth/refresh-token", "", cookies[transport.RefreshTokenCookie])
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rotated := decodeAuth(t, w)
	assert.Equal(t, "Tokens refreshed successfully", rotated.Message)
	assert.NotEqual(t, resp.RefreshToken, rotated.RefreshToken)
	assert.Equal(t, rotated.RefreshToken, responseCookies(w)[transport.RefreshTokenCookie].Value)

	t.Run("rotated token is rejected", func(t *testing.T) {
		w := do(f.router, http.MethodPost, "/api/auth/refresh-token", "", cookies[transport.RefreshTokenCookie])
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "INVALID_REFRESH_TOKEN", errCode(t, w))
		assert.Empty(t, w.Result().Cookies())
	})

	t.Run("body fallback", func(t *testing.T) {
		w := do(f.router, http.MethodPost, "/api/auth/refresh-token", `{"refreshToken":"`+rotated.RefreshToken+`"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, f.tokens.CountByUserID(resp.User.ID))
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	f := newAuthFixture()
	resp, cookies := f.signup(t)

	w := do(f.router, http.MethodPost, "/api/auth/logout", "",
		cookies[transport.AccessTokenCookie], cookies[transport.RefreshTokenCookie])
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Logged out successfully"}`, w.Body.String())

	cleared := responseCookies(w)
	for _, name := range []string{transport.AccessTokenCookie, transport.RefreshTokenCookie} {
		require.Contains(t, cleared, name)
		assert.Empty(t, cleared[name].Value)
		assert.Negative(t, cleared[name].MaxAge)
		assert.True(t, cleared[name].HttpOnly)
		assert.Equal(t, "/", cleared[name].Path)
	}
	assert.Zero(t, f.tokens.CountByUserID(resp.User.ID))

	t.Run("refresh after logout fails", func(t *testing.T) {
		w := do(f.router, http.MethodPost, "/api/auth/refresh-token", "", cookies[transport.RefreshTokenCookie])
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("second logout is still ok", func(t *testing.T) {
		w := do(f.router, http.MethodPost, "/api/auth/logout", "",
			cookies[transport.AccessTokenCookie], cookies[transport.RefreshTokenCookie])
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("requires access token", func(t *testing.T) {
		w := do(f.router, http.MethodPost, "/api/auth/logout", "", cookies[transport.RefreshTokenCookie])
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuthHandler_LogoutServerFaultStillClearsCookies(t *testing.T) {
	users := repository.NewMemoryUserRepository()
	tokens := repository.NewMemoryRefreshTokenRepository()
	svc := service.NewAuthService(users, failingRevokeRepo{tokens}, authConfig())
	r := newAuthRouter(svc)

	w := do(r, http.MethodPost, "/api/auth/signup", janeSignup)
	require.Equal(t, http.StatusCreated, w.Code)
	cookies := responseCookies(w)

	w = do(r, http.MethodPost, "/api/auth/logout", "",
		cookies[transport.AccessTokenCookie], cookies[transport.RefreshTokenCookie])
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "SERVER_FAULT", errCode(t, w))
	assert.Len(t, w.Result().Cookies(), 2)
	for _, c := range w.Result().Cookies() {
		assert.Negative(t, c.MaxAge)
	}
}

func TestAuthHandler_LogoutAll(t *testing.T) {
	f := newAuthFixture()
	resp, cookies := f.signup(t)
	w := do(f.router, http.MethodPost, "/api/auth/login", `{"email":"jane@example.com","password":"password123"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 2, f.tokens.CountByUserID(resp.User.ID))

	w = do(f.router, http.MethodPost, "/api/auth/logout-all", "", cookies[transport.AccessTokenCookie])
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, f.tokens.CountByUserID(resp.User.ID))
}

func TestAuthHandler_Profile(t *testing.T) {
	f := newAuthFixture()
	_, cookies := f.signup(t)

	w := do(f.router, http.MethodGet, "/api/auth/profile", "", cookies[transport.AccessTokenCookie])
	require.Equal(t, http.StatusOK, w.Code)

	var body dto.ProfileResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Jane", body.User.Name)
	_, err := time.Parse(time.RFC3339, body.User.CreatedAt)
	assert.NoError(t, err)
}
