package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Rijughosh14/EShop/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrDuplicateEmail       = errors.New("email already registered")
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrTokenCollision       = errors.New("refresh token hash already exists")
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure
const uniqueViolation = "23505"

// DBTX is the subset of pgxpool.Pool used by the Postgres repositories
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user, ErrDuplicateEmail if the email is taken
	Create(ctx context.Context, user *domain.User) error
	// GetByID retrieves a user by ID, nil if absent
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByEmail retrieves a user by email, nil if absent
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// ExistsByEmail checks if a user exists with the given email
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// RefreshTokenRepository holds each user's set of active refresh tokens.
// Tokens are addressed by hash; the raw value is never stored.
type RefreshTokenRepository interface {
	// Create appends a token to its user's set, ErrTokenCollision if the hash exists
	Create(ctx context.Context, token *domain.RefreshToken) error
	// GetByHash returns the unexpired token with this hash, nil if absent
	GetByHash(ctx context.Context, hash string) (*domain.RefreshToken, error)
	// Rotate removes oldHash from next.UserID's set and appends next in one atomic step.
	// ErrRefreshTokenNotFound if oldHash is not an unexpired member of that set,
	// ErrTokenCollision if next's hash already exists (oldHash is then kept).
	Rotate(ctx context.Context, oldHash string, next *domain.RefreshToken) error
	// Delete removes one token from the user's set; absent tokens are not an error
	Delete(ctx context.Context, userID, hash string) error
	// DeleteByUserID removes every token of a user
	DeleteByUserID(ctx context.Context, userID string) (int64, error)
	// DeleteExpired removes tokens that expired before now
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
