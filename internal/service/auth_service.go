package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Rijughosh14/EShop/internal/domain"
	"github.com/Rijughosh14/EShop/internal/dto"
	"github.com/Rijughosh14/EShop/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingFields       = errors.New("missing required fields")
	ErrUserAlreadyExists   = errors.New("user already exists")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidToken        = errors.New("invalid or expired access token")
	ErrNoRefreshToken      = errors.New("no refresh token provided")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

// maxTokenAttempts bounds regeneration after a refresh-token hash collision
const maxTokenAttempts = 3

// AuthServiceConfig holds configuration for AuthService
type AuthServiceConfig struct {
	JWTSecret          string
	Issuer             string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	BcryptCost         int
	RefreshTokenBytes  int
}

// AuthService defines the interface for authentication operations
type AuthService interface {
	// Signup registers a new user and issues a token pair
	Signup(ctx context.Context, req *dto.SignupRequest, meta domain.ClientMeta) (*dto.AuthResponse, error)
	// Login authenticates a user and issues a token pair
	Login(ctx context.Context, req *dto.LoginRequest, meta domain.ClientMeta) (*dto.AuthResponse, error)
	// ValidateAccess verifies an access token without touching storage
	ValidateAccess(ctx context.Context, token string) (*domain.Claims, error)
	// RotateRefresh exchanges a refresh token for a new pair, consuming the old one
	RotateRefresh(ctx context.Context, refreshToken string, meta domain.ClientMeta) (*dto.AuthResponse, error)
	// Revoke removes one refresh token from the user's set
	Revoke(ctx context.Context, userID, refreshToken string) error
	// RevokeAll removes every refresh token of the user
	RevokeAll(ctx context.Context, userID string) (int64, error)
	// GetUser retrieves user by ID
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

// authService implements AuthService
type authService struct {
	userRepo  repository.UserRepository
	tokenRepo repository.RefreshTokenRepository
	config    *AuthServiceConfig
	minter    *tokenMinter
	now       func() time.Time
	newToken  func(n int) (string, error)
}

// NewAuthService creates a new AuthService
func NewAuthService(
	userRepo repository.UserRepository,
	tokenRepo repository.RefreshTokenRepository,
	config *AuthServiceConfig,
) AuthService {
	return newAuthService(userRepo, tokenRepo, config)
}

func newAuthService(
	userRepo repository.UserRepository,
	tokenRepo repository.RefreshTokenRepository,
	config *AuthServiceConfig,
) *authService {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	if config.AccessTokenExpiry == 0 {
		config.AccessTokenExpiry = 30 * time.Minute
	}
	if config.RefreshTokenExpiry == 0 {
		config.RefreshTokenExpiry = 30 * 24 * time.Hour
	}
	if config.RefreshTokenBytes < 32 {
		config.RefreshTokenBytes = 64
	}

	s := &authService{
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		config:    config,
		now:       time.Now,
		newToken:  generateRefreshToken,
	}
	s.minter = &tokenMinter{
		secret: []byte(config.JWTSecret),
		issuer: config.Issuer,
		expiry: config.AccessTokenExpiry,
		now:    func() time.Time { return s.now() },
	}
	return s
}

// Signup registers a new user
func (s *authService) Signup(ctx context.Context, req *dto.SignupRequest, meta domain.ClientMeta) (*dto.AuthResponse, error) {
	req.Normalize()
	if req.Email == "" || req.Password == "" || req.Name == "" {
		return nil, ErrMissingFields
	}

	exists, err := s.userRepo.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserAlreadyExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.config.BcryptCost)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		PasswordHash: string(hashedPassword),
		Name:         req.Name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// lost a race with a concurrent signup for the same email
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}

	pair, err := s.issue(ctx, user, meta)
	if err != nil {
		return nil, err
	}
	return s.authResponse("User created successfully", user, pair), nil
}

// Login authenticates a user
func (s *authService) Login(ctx context.Context, req *dto.LoginRequest, meta domain.ClientMeta) (*dto.AuthResponse, error) {
	req.Normalize()
	if req.Email == "" || req.Password == "" {
		return nil, ErrMissingFields
	}

	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	pair, err := s.issue(ctx, user, meta)
	if err != nil {
		return nil, err
	}
	return s.authResponse("Login successful", user, pair), nil
}

// ValidateAccess validates an access token and returns claims
func (s *authService) ValidateAccess(ctx context.Context, token string) (*domain.Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	return s.minter.verify(token)
}

// RotateRefresh consumes refreshToken and issues a new pair
func (s *authService) RotateRefresh(ctx context.Context, refreshToken string, meta domain.ClientMeta) (*dto.AuthResponse, error) {
	if refreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	oldHash := hashToken(refreshToken)
	current, err := s.tokenRepo.GetByHash(ctx, oldHash)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.userRepo.GetByID(ctx, current.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		_ = s.tokenRepo.Delete(ctx, current.UserID, oldHash)
		return nil, ErrInvalidRefreshToken
	}

	var raw string
	for attempt := 1; ; attempt++ {
		var record *domain.RefreshToken
		raw, record, err = s.newRecord(user.ID, meta)
		if err != nil {
			return nil, err
		}

		err = s.tokenRepo.Rotate(ctx, oldHash, record)
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		if !errors.Is(err, repository.ErrTokenCollision) || attempt == maxTokenAttempts {
			return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
		}
	}

	access, err := s.minter.mint(user)
	if err != nil {
		return nil, err
	}
	pair := &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: raw,
		ExpiresIn:    int64(s.config.AccessTokenExpiry.Seconds()),
	}
	return s.authResponse("Tokens refreshed successfully", user, pair), nil
}

// Revoke removes a single refresh token; unknown tokens are ignored
func (s *authService) Revoke(ctx context.Context, userID, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.tokenRepo.Delete(ctx, userID, hashToken(refreshToken))
}

// RevokeAll logs a user out of every device
func (s *authService) RevokeAll(ctx context.Context, userID string) (int64, error) {
	return s.tokenRepo.DeleteByUserID(ctx, userID)
}

// GetUser retrieves user by ID
func (s *authService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// issue mints an access token and appends one refresh token to the user's set
func (s *authService) issue(ctx context.Context, user *domain.User, meta domain.ClientMeta) (*domain.TokenPair, error) {
	access, err := s.minter.mint(user)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		raw, record, err := s.newRecord(user.ID, meta)
		if err != nil {
			return nil, err
		}

		err = s.tokenRepo.Create(ctx, record)
		if err == nil {
			return &domain.TokenPair{
				AccessToken:  access,
				RefreshToken: raw,
				ExpiresIn:    int64(s.config.AccessTokenExpiry.Seconds()),
			}, nil
		}
		if !errors.Is(err, repository.ErrTokenCollision) || attempt == maxTokenAttempts {
			return nil, fmt.Errorf("failed to store refresh token: %w", err)
		}
	}
}

func (s *authService) newRecord(userID string, meta domain.ClientMeta) (string, *domain.RefreshToken, error) {
	raw, err := s.newToken(s.config.RefreshTokenBytes)
	if err != nil {
		return "", nil, err
	}
	now := s.now()
	return raw, &domain.RefreshToken{
		TokenHash: hashToken(raw),
		UserID:    userID,
		UserAgent: meta.UserAgent,
		IP:        meta.IP,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.config.RefreshTokenExpiry),
	}, nil
}

func (s *authService) authResponse(message string, user *domain.User, pair *domain.TokenPair) *dto.AuthResponse {
	return &dto.AuthResponse{
		Message:      message,
		Token:        pair.AccessToken,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		User:         dto.NewUserResponse(user),
	}
}
