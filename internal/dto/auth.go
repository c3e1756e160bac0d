package dto

import (
	"regexp"
	"strings"
	"time"

	"github.com/Rijughosh14/EShop/internal/domain"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

const (
	MinPasswordLength = 6
	MaxPasswordLength = 72 // bcrypt ignores anything longer
)

// SignupRequest represents a registration request
type SignupRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required"`
}

// Normalize trims whitespace and lowercases the email
func (r *SignupRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Name = strings.TrimSpace(r.Name)
}

// ValidatePassword checks the length bounds
func (r *SignupRequest) ValidatePassword() (bool, string) {
	if len(r.Password) < MinPasswordLength {
		return false, "Password must be at least 6 characters"
	}
	if len(r.Password) > MaxPasswordLength {
		return false, "Password must not exceed 72 characters"
	}
	return true, ""
}

// ValidateEmail checks the address shape
func (r *SignupRequest) ValidateEmail() (bool, string) {
	if !emailRegex.MatchString(r.Email) {
		return false, "Invalid email format"
	}
	return true, ""
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Normalize trims whitespace and lowercases the email
func (r *LoginRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

// RefreshTokenRequest carries the body fallback for the refresh cookie
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// AuthResponse is returned by signup, login and refresh
type AuthResponse struct {
	Message      string       `json:"message"`
	Token        string       `json:"token"` // same as AccessToken, kept for older clients
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresIn    int64        `json:"expiresIn"`
	User         UserResponse `json:"user"`
}

// UserResponse holds the public user fields
type UserResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// ValidateTokenResponse is returned by validate-token
type ValidateTokenResponse struct {
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

// ProfileResponse is returned by the profile endpoint
type ProfileResponse struct {
	User UserResponse `json:"user"`
}

// MessageResponse is a bare acknowledgement
type MessageResponse struct {
	Message string `json:"message"`
}

// NewUserResponse copies the public fields of u
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
	}
}

// NewProfileUserResponse also includes the creation time
func NewProfileUserResponse(u *domain.User) UserResponse {
	resp := NewUserResponse(u)
	resp.CreatedAt = u.CreatedAt.UTC().Format(time.RFC3339)
	return resp
}
