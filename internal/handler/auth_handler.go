package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Rijughosh14/EShop/internal/domain"
	"github.com/Rijughosh14/EShop/internal/dto"
	"github.com/Rijughosh14/EShop/internal/middleware"
	"github.com/Rijughosh14/EShop/internal/service"
	"github.com/Rijughosh14/EShop/internal/transport"
	"github.com/Rijughosh14/EShop/pkg/logger"
	"github.com/Rijughosh14/EShop/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthHandler handles authentication HTTP requests
type AuthHandler struct {
	authService service.AuthService
	cookies     transport.CookiePolicy
	log         *logger.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService service.AuthService, cookies transport.CookiePolicy, log *logger.Logger) *AuthHandler {
	if log == nil {
		log = logger.Get()
	}
	return &AuthHandler{authService: authService, cookies: cookies, log: log}
}

// Signup handles user registration
// POST /api/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req dto.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err, "Email, password, and name are required")
		return
	}
	req.Normalize()

	if valid, msg := req.ValidateEmail(); !valid {
		response.Error(c, http.StatusBadRequest, "INVALID_EMAIL", msg, "")
		return
	}
	if valid, msg := req.ValidatePassword(); !valid {
		response.Error(c, http.StatusBadRequest, "WEAK_PASSWORD", msg, "")
		return
	}

	result, err := h.authService.Signup(c.Request.Context(), &req, clientMeta(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingFields):
			response.Error(c, http.StatusBadRequest, "MISSING_FIELDS", "Email, password, and name are required", "")
		case errors.Is(err, service.ErrUserAlreadyExists):
			response.Error(c, http.StatusBadRequest, "DUPLICATE_ACCOUNT", "User with this email already exists", "")
		default:
			h.serverFault(c, "Signup failed", err)
		}
		return
	}

	transport.SetAuthCookies(c, h.cookies, result.AccessToken, result.RefreshToken)
	c.JSON(http.StatusCreated, result)
}

// Login handles user login
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err, "Email and password are required")
		return
	}

	result, err := h.authService.Login(c.Request.Context(), &req, clientMeta(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingFields):
			response.Error(c, http.StatusBadRequest, "MISSING_FIELDS", "Email and password are required", "")
		case errors.Is(err, service.ErrInvalidCredentials):
			response.Error(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", "")
		default:
			h.serverFault(c, "Login failed", err)
		}
		return
	}

	transport.SetAuthCookies(c, h.cookies, result.AccessToken, result.RefreshToken)
	c.JSON(http.StatusOK, result)
}

// ValidateToken reports the user behind a valid access token
// GET /api/auth/validate-token
func (h *AuthHandler) ValidateToken(c *gin.Context) {
	user, ok := h.currentUser(c, "Token validation failed")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dto.ValidateTokenResponse{
		Message: "Token is valid",
		User:    dto.NewUserResponse(user),
	})
}

// RefreshToken rotates the presented refresh token
// POST /api/auth/refresh-token
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	token := transport.Extract(c, transport.RefreshTokenSources()...)

	result, err := h.authService.RotateRefresh(c.Request.Context(), token, clientMeta(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoRefreshToken):
			response.Error(c, http.StatusUnauthorized, "NO_REFRESH_TOKEN", "Refresh token required", "")
		case errors.Is(err, service.ErrInvalidRefreshToken):
			// cookies are left alone: the jar may already hold a newer pair
			response.Error(c, http.StatusForbidden, "INVALID_REFRESH_TOKEN", "Invalid refresh token", "")
		default:
			h.serverFault(c, "Token refresh failed", err)
		}
		return
	}

	transport.SetAuthCookies(c, h.cookies, result.AccessToken, result.RefreshToken)
	c.JSON(http.StatusOK, result)
}

// Logout revokes the presented refresh token and clears cookies, even on failure
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	token := transport.Extract(c, transport.RefreshTokenSources()...)

	err := h.authService.Revoke(c.Request.Context(), userID, token)
	transport.ClearAuthCookies(c, h.cookies)
	if err != nil {
		h.serverFault(c, "Logout failed", err)
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{Message: "Logged out successfully"})
}

// LogoutAll revokes every refresh token of the user
// POST /api/auth/logout-all
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "User not authenticated")
		return
	}

	revoked, err := h.authService.RevokeAll(c.Request.Context(), userID)
	transport.ClearAuthCookies(c, h.cookies)
	if err != nil {
		h.serverFault(c, "Logout failed", err)
		return
	}

	h.log.InfoContext(c.Request.Context(), "Revoked all sessions",
		zap.String("user_id", userID),
		zap.Int64("revoked", revoked),
	)
	c.JSON(http.StatusOK, dto.MessageResponse{Message: "All sessions logged out successfully"})
}

// Profile returns the current user including the creation time
// GET /api/auth/profile
func (h *AuthHandler) Profile(c *gin.Context) {
	user, ok := h.currentUser(c, "Failed to fetch profile")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dto.ProfileResponse{User: dto.NewProfileUserResponse(user)})
}

func (h *AuthHandler) currentUser(c *gin.Context, failure string) (*domain.User, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "NO_ACCESS_TOKEN", "Access token required", "")
		return nil, false
	}

	user, err := h.authService.GetUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			response.Error(c, http.StatusNotFound, "USER_NOT_FOUND", "User not found", "")
		} else {
			h.serverFault(c, failure, err)
		}
		return nil, false
	}
	return user, true
}

// bindError tells malformed JSON apart from missing fields
func (h *AuthHandler) bindError(c *gin.Context, err error, missing string) {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		response.BadRequest(c, "Invalid request body")
		return
	}
	response.Error(c, http.StatusBadRequest, "MISSING_FIELDS", missing, "")
}

func (h *AuthHandler) serverFault(c *gin.Context, message string, err error) {
	h.log.ErrorContext(c.Request.Context(), message,
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.Error(err),
	)
	response.Error(c, http.StatusInternalServerError, "SERVER_FAULT", message, err.Error())
}

func clientMeta(c *gin.Context) domain.ClientMeta {
	return domain.ClientMeta{
		UserAgent: c.GetHeader("User-Agent"),
		IP:        c.ClientIP(),
	}
}
