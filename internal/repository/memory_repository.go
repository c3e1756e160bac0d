package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Rijughosh14/EShop/internal/domain"
)

// MemoryUserRepository keeps users in process memory
type MemoryUserRepository struct {
	mu      sync.RWMutex
	byID    map[string]*domain.User
	byEmail map[string]string
}

// NewMemoryUserRepository creates an empty MemoryUserRepository
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:    make(map[string]*domain.User),
		byEmail: make(map[string]string),
	}
}

func (r *MemoryUserRepository) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(user.Email)
	if _, ok := r.byEmail[key]; ok {
		return ErrDuplicateEmail
	}
	cp := *user
	r.byID[user.ID] = &cp
	r.byEmail[key] = user.ID
	return nil
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	id, ok := r.byEmail[strings.ToLower(email)]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

func (r *MemoryUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byEmail[strings.ToLower(email)]
	return ok, nil
}

// MemoryRefreshTokenRepository keeps refresh tokens in process memory.
// A single mutex serialises Rotate against every other mutation.
type MemoryRefreshTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]*domain.RefreshToken
	now    func() time.Time
}

// NewMemoryRefreshTokenRepository creates an empty MemoryRefreshTokenRepository
func NewMemoryRefreshTokenRepository() *MemoryRefreshTokenRepository {
	return &MemoryRefreshTokenRepository{
		tokens: make(map[string]*domain.RefreshToken),
		now:    time.Now,
	}
}

func (r *MemoryRefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[token.TokenHash]; ok {
		return ErrTokenCollision
	}
	cp := *token
	r.tokens[token.TokenHash] = &cp
	return nil
}

func (r *MemoryRefreshTokenRepository) GetByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[hash]
	if !ok || t.Expired(r.now()) {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *MemoryRefreshTokenRepository) Rotate(ctx context.Context, oldHash string, next *domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.tokens[oldHash]
	if !ok || old.UserID != next.UserID || old.Expired(next.IssuedAt) {
		return ErrRefreshTokenNotFound
	}
	if _, ok := r.tokens[next.TokenHash]; ok {
		return ErrTokenCollision
	}
	delete(r.tokens, oldHash)
	cp := *next
	r.tokens[next.TokenHash] = &cp
	return nil
}

func (r *MemoryRefreshTokenRepository) Delete(ctx context.Context, userID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.tokens[hash]; ok && t.UserID == userID {
		delete(r.tokens, hash)
	}
	return nil
}

func (r *MemoryRefreshTokenRepository) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for hash, t := range r.tokens {
		if t.UserID == userID {
			delete(r.tokens, hash)
			n++
		}
	}
	return n, nil
}

func (r *MemoryRefreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for hash, t := range r.tokens {
		if t.Expired(now) {
			delete(r.tokens, hash)
			n++
		}
	}
	return n, nil
}

// CountByUserID reports how many tokens a user holds
func (r *MemoryRefreshTokenRepository) CountByUserID(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, t := range r.tokens {
		if t.UserID == userID {
			n++
		}
	}
	return n
}
