package authclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// User is the public identity returned by the auth endpoints
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// Tokens is the client-side mirror of the auth cookies
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         *User  `json:"user,omitempty"`
}

// Empty reports whether no token of either kind is held
func (t Tokens) Empty() bool {
	return t.AccessToken == "" && t.RefreshToken == ""
}

// EventKind tells subscribers what happened to the stored pair
type EventKind int

const (
	TokensUpdated EventKind = iota + 1
	TokensCleared
)

// Event is broadcast after every Save and Clear
type Event struct {
	Kind   EventKind
	Tokens Tokens
}

// TokenStore holds the current pair and broadcasts changes
type TokenStore interface {
	Load() Tokens
	Save(t Tokens) error
	Clear() error
	// Subscribe registers fn and returns a function that removes it
	Subscribe(fn func(Event)) (unsubscribe func())
}

type subscribers struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(Event)
}

func (s *subscribers) add(fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func(Event))
	}
	id := s.next
	s.next++
	s.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.fns, id)
			s.mu.Unlock()
		})
	}
}

// publish runs subscribers outside the lock so they may call back into the store
func (s *subscribers) publish(ev Event) {
	s.mu.Lock()
	fns := make([]func(Event), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// MemoryStore keeps tokens for the lifetime of the process
type MemoryStore struct {
	mu     sync.RWMutex
	tokens Tokens
	subs   subscribers
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() Tokens {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens
}

func (s *MemoryStore) Save(t Tokens) error {
	s.mu.Lock()
	s.tokens = t
	s.mu.Unlock()
	s.subs.publish(Event{Kind: TokensUpdated, Tokens: t})
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	s.tokens = Tokens{}
	s.mu.Unlock()
	s.subs.publish(Event{Kind: TokensCleared})
	return nil
}

func (s *MemoryStore) Subscribe(fn func(Event)) func() {
	return s.subs.add(fn)
}

// FileStore persists tokens as JSON so a CLI session survives restarts.
// The file is written with 0600 permissions and replaced atomically.
type FileStore struct {
	path   string
	mu     sync.RWMutex
	tokens Tokens
	subs   subscribers
}

// OpenFileStore loads path if it exists
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.tokens); err != nil {
			return nil, fmt.Errorf("failed to decode token file: %w", err)
		}
	}
	return s, nil
}

func (s *FileStore) Load() Tokens {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens
}

func (s *FileStore) Save(t Tokens) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}

	s.mu.Lock()
	err = writeFileAtomic(s.path, data)
	if err == nil {
		s.tokens = t
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.subs.publish(Event{Kind: TokensUpdated, Tokens: t})
	return nil
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	s.tokens = Tokens{}
	err := os.Remove(s.path)
	s.mu.Unlock()

	s.subs.publish(Event{Kind: TokensCleared})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

func (s *FileStore) Subscribe(fn func(Event)) func() {
	return s.subs.add(fn)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create token dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tokens-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
