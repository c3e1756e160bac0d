package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Rijughosh14/EShop/pkg/logger"
	"github.com/Rijughosh14/EShop/pkg/telemetry"
	"go.uber.org/zap"
)

const (
	// IdempotencyKeyHeader deduplicates order submissions
	IdempotencyKeyHeader = "X-Idempotency-Key"

	maxResponseBytes = 4 << 20
)

// Client talks to the storefront API. Access tokens travel as a Bearer
// header and refresh tokens in the request body, so the client works
// without cookies; WithCookies adds a jar for servers that only set them.
type Client struct {
	baseURL    string
	httpClient *http.Client
	jar        *resettableJar
	store      TokenStore
	coord      *Coordinator
	session    *Session
	log        *logger.Logger

	unsubscribe func()
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default instrumented http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTokenStore sets where tokens are kept; defaults to a MemoryStore
func WithTokenStore(store TokenStore) Option {
	return func(c *Client) { c.store = store }
}

// WithLogger sets the client logger
func WithLogger(log *logger.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithCookies attaches a cookie jar that is emptied whenever the token store is cleared
func WithCookies() Option {
	return func(c *Client) { c.jar = newResettableJar() }
}

// NewClient creates a client for the API rooted at baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{baseURL: strings.TrimRight(baseURL, "/")}
	for _, opt := range opts {
		opt(c)
	}

	if c.log == nil {
		c.log = logger.NewNop()
	}
	if c.store == nil {
		c.store = NewMemoryStore()
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout:   30 * time.Second,
			Transport: telemetry.HTTPTransport(nil),
		}
	}
	if c.jar != nil {
		hc := *c.httpClient
		hc.Jar = c.jar
		c.httpClient = &hc
		c.unsubscribe = c.store.Subscribe(func(ev Event) {
			if ev.Kind == TokensCleared {
				c.jar.reset()
			}
		})
	}

	c.coord = NewCoordinator(c.store, c.refreshTokens, c.log.Named("refresh"))
	c.session = NewSession(c.store)
	return c
}

// Close detaches the client from its token store
func (c *Client) Close() {
	c.session.Close()
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}

// Session returns the projection of the client's auth state
func (c *Client) Session() *Session { return c.session }

// Tokens returns the currently stored pair
func (c *Client) Tokens() Tokens { return c.store.Load() }

// Coordinator exposes the refresh pipeline state
func (c *Client) Coordinator() *Coordinator { return c.coord }

// SignupRequest registers a new account
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest carries credentials
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Message      string `json:"message"`
	AccessToken  string `json:"accessToken"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
	User         *User  `json:"user"`
}

func (r *authResponse) tokens() Tokens {
	access := r.AccessToken
	if access == "" {
		access = r.Token
	}
	return Tokens{AccessToken: access, RefreshToken: r.RefreshToken, User: r.User}
}

// Signup creates an account and stores the issued pair
func (c *Client) Signup(ctx context.Context, req SignupRequest) (*User, error) {
	return c.authenticate(ctx, "/api/auth/signup", req)
}

// Login stores the pair issued for valid credentials
func (c *Client) Login(ctx context.Context, req LoginRequest) (*User, error) {
	return c.authenticate(ctx, "/api/auth/login", req)
}

func (c *Client) authenticate(ctx context.Context, path string, payload any) (*User, error) {
	c.session.Started()

	resp, err := c.send(ctx, http.MethodPost, path, payload, "", nil)
	if err != nil {
		c.session.Failed(err)
		return nil, err
	}
	var out authResponse
	if err := decode(resp, &out); err != nil {
		c.session.Failed(err)
		return nil, err
	}

	if err := c.store.Save(out.tokens()); err != nil {
		c.log.Warn("Failed to persist tokens", zap.Error(err))
	}
	c.session.Succeeded(out.User)
	return out.User, nil
}

// ValidateToken asks the server whether the stored session is still good.
// A client holding no token is simply unauthenticated: it returns (nil, nil).
func (c *Client) ValidateToken(ctx context.Context) (*User, error) {
	if c.store.Load().Empty() {
		c.session.Unauthenticated()
		return nil, nil
	}
	c.session.Started()

	var out struct {
		Message string `json:"message"`
		User    *User  `json:"user"`
	}
	err := c.authed(ctx, http.MethodGet, "/api/auth/validate-token", nil, nil, &out)
	if err != nil {
		var apiErr *APIError
		if IsSessionEnded(err) || (errors.As(err, &apiErr) && apiErr.StatusCode < 500) {
			c.clear()
		}
		c.session.Failed(err)
		return nil, err
	}

	current := c.store.Load()
	current.User = out.User
	if err := c.store.Save(current); err != nil {
		c.log.Warn("Failed to persist tokens", zap.Error(err))
	}
	c.session.Succeeded(out.User)
	return out.User, nil
}

// Refresh forces a token rotation and returns the new access token
func (c *Client) Refresh(ctx context.Context) (string, error) {
	return c.coord.Refresh(ctx, c.store.Load().AccessToken)
}

// Logout revokes the refresh token on the server and always forgets the
// session locally. Server failures are logged, not returned.
func (c *Client) Logout(ctx context.Context) error {
	if !c.store.Load().Empty() {
		body := func() any {
			return map[string]string{"refreshToken": c.store.Load().RefreshToken}
		}
		if err := c.authed(ctx, http.MethodPost, "/api/auth/logout", body, nil, nil); err != nil {
			c.log.Warn("Server logout failed, clearing local session anyway", zap.Error(err))
		}
	}

	c.clear()
	c.session.LoggedOut()
	return nil
}

// Profile returns the signed-in user with their creation time
func (c *Client) Profile(ctx context.Context) (*User, error) {
	var out struct {
		User *User `json:"user"`
	}
	if err := c.authed(ctx, http.MethodGet, "/api/auth/profile", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

// Products lists catalog products; the body is passed through as returned
func (c *Client) Products(ctx context.Context, limit, skip int) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("skip", strconv.Itoa(skip))

	resp, err := c.send(ctx, http.MethodGet, "/api/products?"+q.Encode(), nil, "", nil)
	if err != nil {
		return nil, err
	}
	var out json.RawMessage
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// OrderItem is one cart line
type OrderItem struct {
	ProductID int     `json:"productId"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// ShippingAddress is the delivery address of an order
type ShippingAddress struct {
	FullName   string `json:"fullName"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// OrderRequest is a checkout submission
type OrderRequest struct {
	Items    []OrderItem     `json:"items"`
	Shipping ShippingAddress `json:"shipping"`
	Total    float64         `json:"total"`
}

// OrderResult is the checkout outcome. A declined payment is a result
// with Success false, not an error.
type OrderResult struct {
	Success bool    `json:"success"`
	OrderID string  `json:"orderId"`
	Message string  `json:"message"`
	Total   float64 `json:"total"`
}

// PlaceOrder submits an order. A non-empty idempotencyKey makes retries safe.
func (c *Client) PlaceOrder(ctx context.Context, order OrderRequest, idempotencyKey string) (*OrderResult, error) {
	var header http.Header
	if idempotencyKey != "" {
		header = http.Header{IdempotencyKeyHeader: []string{idempotencyKey}}
	}

	resp, err := c.coord.Do(ctx, func(ctx context.Context, token string) (*http.Response, error) {
		return c.send(ctx, http.MethodPost, "/api/orders", order, token, header)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var failure errorBody
	_ = json.Unmarshal(data, &failure)

	declined := resp.StatusCode == http.StatusBadRequest && failure.Error == nil
	if resp.StatusCode != http.StatusOK && !declined {
		return nil, failure.apiError(resp.StatusCode)
	}

	var result OrderResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

// Do sends an authenticated JSON request to path and decodes the answer
// into out, refreshing the access token once if it was rejected.
func (c *Client) Do(ctx context.Context, method, path string, payload, out any) error {
	var body func() any
	if payload != nil {
		body = func() any { return payload }
	}
	return c.authed(ctx, method, path, body, nil, out)
}

// authed runs one request through the coordinator; body is rebuilt per attempt
func (c *Client) authed(ctx context.Context, method, path string, body func() any, header http.Header, out any) error {
	resp, err := c.coord.Do(ctx, func(ctx context.Context, token string) (*http.Response, error) {
		var payload any
		if body != nil {
			payload = body()
		}
		return c.send(ctx, method, path, payload, token, header)
	})
	if err != nil {
		return err
	}
	return decode(resp, out)
}

func (c *Client) send(ctx context.Context, method, path string, payload any, token string, header http.Header) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// refreshTokens is the Coordinator's RefreshFunc
func (c *Client) refreshTokens(ctx context.Context, refreshToken string) (Tokens, error) {
	payload := map[string]string{"refreshToken": refreshToken}
	resp, err := c.send(ctx, http.MethodPost, "/api/auth/refresh-token", payload, "", nil)
	if err != nil {
		return Tokens{}, err
	}

	var out authResponse
	if err := decode(resp, &out); err != nil {
		return Tokens{}, err
	}
	t := out.tokens()
	if t.AccessToken == "" || t.RefreshToken == "" {
		return Tokens{}, errors.New("authclient: refresh response carried no tokens")
	}
	c.log.Debug("Tokens rotated")
	return t, nil
}

func (c *Client) clear() {
	if err := c.store.Clear(); err != nil {
		c.log.Warn("Failed to clear token store", zap.Error(err))
	}
}

// decode closes resp and turns non-2xx answers into *APIError
func decode(resp *http.Response, out any) error {
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body errorBody
		_ = json.Unmarshal(data, &body)
		return body.apiError(resp.StatusCode)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// resettableJar lets the client forget server cookies on logout
type resettableJar struct {
	mu  sync.RWMutex
	jar *cookiejar.Jar
}

func newResettableJar() *resettableJar {
	j := &resettableJar{}
	j.reset()
	return j
}

func (j *resettableJar) reset() {
	jar, _ := cookiejar.New(nil) // only fails with a non-nil PublicSuffixList
	j.mu.Lock()
	j.jar = jar
	j.mu.Unlock()
}

func (j *resettableJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	j.jar.SetCookies(u, cookies)
}

func (j *resettableJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.jar.Cookies(u)
}
