package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/Rijughosh14/EShop/pkg/logger"
	"go.uber.org/zap"
)

// State is the refresh pipeline state
type State int

const (
	StateIdle State = iota
	StateRefreshing
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRefreshing:
		return "refreshing"
	case StateDraining:
		return "draining"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// RefreshFunc exchanges a refresh token for a new pair
type RefreshFunc func(ctx context.Context, refreshToken string) (Tokens, error)

// SendFunc performs one attempt of a request with the given access token.
// It is called at most twice per Do.
type SendFunc func(ctx context.Context, accessToken string) (*http.Response, error)

type refreshResult struct {
	token string
	err   error
}

type waiter struct {
	id uint64
	ch chan refreshResult
}

// Coordinator runs at most one refresh at a time. Requests that fail
// authorization while a refresh is in flight park in a FIFO queue and are
// released with the outcome of that refresh.
type Coordinator struct {
	store   TokenStore
	refresh RefreshFunc
	log     *logger.Logger

	mu     sync.Mutex
	state  State
	queue  []waiter
	nextID uint64

	// onResolve observes queue release order
	onResolve func(id uint64)
}

// NewCoordinator creates a Coordinator over store
func NewCoordinator(store TokenStore, refresh RefreshFunc, log *logger.Logger) *Coordinator {
	if log == nil {
		log = logger.NewNop()
	}
	return &Coordinator{store: store, refresh: refresh, log: log}
}

// State returns the current pipeline state
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Do sends a request and, on an authorization failure, refreshes once and
// retries once. A second authorization failure is returned as ErrUnauthorized.
func (c *Coordinator) Do(ctx context.Context, send SendFunc) (*http.Response, error) {
	sent := c.store.Load().AccessToken
	resp, err := send(ctx, sent)
	if err != nil {
		return nil, err
	}
	if ok, _ := authFailure(resp); !ok {
		return resp, nil
	}

	token, err := c.Refresh(ctx, sent)
	if err != nil {
		return nil, err
	}

	resp, err = send(ctx, token)
	if err != nil {
		return nil, err
	}
	if ok, apiErr := authFailure(resp); ok {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, apiErr)
	}
	return resp, nil
}

// Refresh returns a fresh access token. stale is the token the caller saw
// rejected: if the store already holds a different one, it is returned
// without another round trip.
func (c *Coordinator) Refresh(ctx context.Context, stale string) (string, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		w := waiter{id: c.nextID, ch: make(chan refreshResult, 1)}
		c.nextID++
		c.queue = append(c.queue, w)
		c.mu.Unlock()

		select {
		case r := <-w.ch:
			return r.token, r.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if current := c.store.Load().AccessToken; current != "" && current != stale {
		c.mu.Unlock()
		return current, nil
	}
	c.state = StateRefreshing
	c.mu.Unlock()

	// one caller giving up must not tear down everyone's session
	token, err := c.runRefresh(context.WithoutCancel(ctx))

	c.mu.Lock()
	c.state = StateDraining
	c.mu.Unlock()
	c.drain(refreshResult{token: token, err: err})

	return token, err
}

func (c *Coordinator) runRefresh(ctx context.Context) (string, error) {
	current := c.store.Load()
	if current.RefreshToken == "" {
		c.clear()
		return "", ErrNoRefreshToken
	}

	next, err := c.refresh(ctx, current.RefreshToken)
	if err != nil {
		c.log.Warn("Token refresh rejected, clearing session", zap.Error(err))
		c.clear()
		return "", fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}
	if next.User == nil {
		next.User = current.User
	}
	if err := c.store.Save(next); err != nil {
		c.log.Warn("Failed to persist refreshed tokens", zap.Error(err))
	}
	return next.AccessToken, nil
}

// drain releases waiters in arrival order, including any that join while draining
func (c *Coordinator) drain(result refreshResult) {
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.state = StateIdle
			c.mu.Unlock()
			return
		}
		w := c.queue[0]
		c.queue = c.queue[1:]
		hook := c.onResolve
		c.mu.Unlock()

		if hook != nil {
			hook(w.id)
		}
		w.ch <- result
	}
}

func (c *Coordinator) clear() {
	if err := c.store.Clear(); err != nil {
		c.log.Warn("Failed to clear token store", zap.Error(err))
	}
}

// authFailureCodes are the server codes that mean "get a new access token"
var authFailureCodes = map[string]bool{
	"":                true,
	"NO_ACCESS_TOKEN": true,
	"INVALID_TOKEN":   true,
}

// authFailure consumes resp when it is an access-token rejection. Any
// other response is left readable.
func authFailure(resp *http.Response) (bool, *APIError) {
	if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden {
		return false, nil
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()

	var body errorBody
	_ = json.Unmarshal(data, &body)
	apiErr := body.apiError(resp.StatusCode)
	if authFailureCodes[apiErr.Code] {
		return true, apiErr
	}

	resp.Body = io.NopCloser(bytes.NewReader(data))
	return false, nil
}

// IsSessionEnded reports whether err means the user must log in again
func IsSessionEnded(err error) bool {
	return errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrNoRefreshToken) || errors.Is(err, ErrUnauthorized)
}
