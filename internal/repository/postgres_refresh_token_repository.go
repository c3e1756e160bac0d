package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Rijughosh14/EShop/internal/domain"
	"github.com/jackc/pgx/v5"
)

// PostgresRefreshTokenRepository implements RefreshTokenRepository using PostgreSQL
type PostgresRefreshTokenRepository struct {
	db DBTX
}

// NewPostgresRefreshTokenRepository creates a new PostgresRefreshTokenRepository
func NewPostgresRefreshTokenRepository(db DBTX) *PostgresRefreshTokenRepository {
	return &PostgresRefreshTokenRepository{db: db}
}

const insertRefreshToken = `
	INSERT INTO refresh_tokens (token_hash, user_id, user_agent, ip, issued_at, expires_at)
	VALUES ($1, $2, $3, $4, $5, $6)
`

// Create appends a refresh token to its user's set
func (r *PostgresRefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	_, err := r.db.Exec(ctx, insertRefreshToken, insertArgs(token)...)
	if isUniqueViolation(err) {
		return ErrTokenCollision
	}
	return err
}

// GetByHash retrieves an unexpired refresh token by hash
func (r *PostgresRefreshTokenRepository) GetByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	query := `
		SELECT token_hash, user_id, user_agent, ip, issued_at, expires_at
		FROM refresh_tokens
		WHERE token_hash = $1 AND expires_at > NOW()
	`
	token := &domain.RefreshToken{}
	err := r.db.QueryRow(ctx, query, hash).Scan(
		&token.TokenHash,
		&token.UserID,
		&token.UserAgent,
		&token.IP,
		&token.IssuedAt,
		&token.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return token, nil
}

// Rotate swaps oldHash for next inside one transaction. The DELETE takes the
// row lock, so a concurrent rotation of the same token sees zero rows.
func (r *PostgresRefreshTokenRepository) Rotate(ctx context.Context, oldHash string, next *domain.RefreshToken) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin rotation: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx,
		`DELETE FROM refresh_tokens WHERE token_hash = $1 AND user_id = $2 AND expires_at > $3`,
		oldHash, next.UserID, next.IssuedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRefreshTokenNotFound
	}

	if _, err = tx.Exec(ctx, insertRefreshToken, insertArgs(next)...); err != nil {
		if isUniqueViolation(err) {
			return ErrTokenCollision
		}
		return err
	}

	return tx.Commit(ctx)
}

// Delete removes one refresh token of a user
func (r *PostgresRefreshTokenRepository) Delete(ctx context.Context, userID, hash string) error {
	query := `DELETE FROM refresh_tokens WHERE token_hash = $1 AND user_id = $2`
	_, err := r.db.Exec(ctx, query, hash, userID)
	return err
}

// DeleteByUserID deletes all refresh tokens for a user
func (r *PostgresRefreshTokenRepository) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	query := `DELETE FROM refresh_tokens WHERE user_id = $1`
	tag, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteExpired deletes all expired refresh tokens
func (r *PostgresRefreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM refresh_tokens WHERE expires_at <= $1`
	tag, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func insertArgs(t *domain.RefreshToken) []any {
	return []any{t.TokenHash, t.UserID, t.UserAgent, t.IP, t.IssuedAt, t.ExpiresAt}
}
