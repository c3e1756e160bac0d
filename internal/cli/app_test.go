package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAPI answers the handful of endpoints the CLI uses
func stubAPI(t *testing.T) *httptest.Server {
	t.Helper()
	user := map[string]string{"id": "u1", "name": "Jane", "email": "jane@example.com"}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"error":{"code":"INVALID_CREDENTIALS","message":"Invalid email or password"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": "Login successful", "accessToken": "a1", "refreshToken": "r1", "user": user,
		})
	})
	mux.HandleFunc("GET /api/auth/validate-token", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer a1" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"success":false,"error":{"code":"INVALID_TOKEN","message":"Invalid or expired token"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"message": "Token is valid", "user": user})
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"Logged out successfully"}`))
	})
	mux.HandleFunc("GET /api/products", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"products":[{"id":1,"title":"Mascara","price":9.99},{"id":2,"title":"Lipstick","price":12.5}],"total":194}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestApp(t *testing.T, apiURL, sessionFile, input string) (*App, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	app, err := NewApp(&Config{APIURL: apiURL, SessionFile: sessionFile}, strings.NewReader(input), out, nil)
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app, out
}

func pipedInput(t *testing.T) {
	t.Helper()
	old := isTerminal
	isTerminal = func() bool { return false }
	t.Cleanup(func() { isTerminal = old })
}

func TestApp_SessionSurvivesRestart(t *testing.T) {
	pipedInput(t)
	srv := stubAPI(t)
	session := filepath.Join(t.TempDir(), "session.json")
	ctx := context.Background()

	app, out := newTestApp(t, srv.URL, session, "jane@example.com\nsecret1\n")
	require.NoError(t, app.Run(ctx, []string{"login"}))
	assert.Contains(t, out.String(), "Logged in as jane@example.com")

	next, out := newTestApp(t, srv.URL, session, "")
	require.NoError(t, next.Run(ctx, []string{"status"}))
	assert.Contains(t, out.String(), "Logged in as jane@example.com")

	out.Reset()
	require.NoError(t, next.Run(ctx, []string{"whoami"}))
	assert.Contains(t, out.String(), "Jane <jane@example.com> id=u1")

	out.Reset()
	require.NoError(t, next.Run(ctx, []string{"logout"}))
	assert.Contains(t, out.String(), "Logged out")
	_, err := os.Stat(session)
	assert.True(t, os.IsNotExist(err))

	out.Reset()
	require.NoError(t, next.Run(ctx, []string{"whoami"}))
	assert.Contains(t, out.String(), "Not logged in")
}

func TestApp_LoginRejected(t *testing.T) {
	pipedInput(t)
	srv := stubAPI(t)
	app, _ := newTestApp(t, srv.URL, filepath.Join(t.TempDir(), "session.json"), "jane@example.com\nwrong\n")

	err := app.Run(context.Background(), []string{"login"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_CREDENTIALS")
}

func TestApp_Products(t *testing.T) {
	srv := stubAPI(t)
	app, out := newTestApp(t, srv.URL, filepath.Join(t.TempDir(), "session.json"), "")

	require.NoError(t, app.Run(context.Background(), []string{"products", "2"}))
	assert.Contains(t, out.String(), "Mascara")
	assert.Contains(t, out.String(), "2 of 194 products")

	assert.Error(t, app.Run(context.Background(), []string{"products", "zero"}))
}

func TestApp_UnknownCommand(t *testing.T) {
	app, out := newTestApp(t, "http://127.0.0.1:0", filepath.Join(t.TempDir(), "session.json"), "")

	err := app.Run(context.Background(), []string{"frobnicate"})
	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.Contains(t, out.String(), "Usage: eshopctl")
}

func TestPromptPassword_Terminal(t *testing.T) {
	oldTerm, oldRead := isTerminal, readPassword
	t.Cleanup(func() { isTerminal, readPassword = oldTerm, oldRead })
	isTerminal = func() bool { return true }

	readPassword = func(int) ([]byte, error) { return []byte("secret1"), nil }
	var out bytes.Buffer
	got, err := promptPassword(bufio.NewReader(strings.NewReader("")), &out)
	require.NoError(t, err)
	assert.Equal(t, "secret1", got)
	assert.Equal(t, "Password: \n", out.String())

	readPassword = func(int) ([]byte, error) { return nil, errors.New("no tty") }
	_, err = promptPassword(bufio.NewReader(strings.NewReader("")), &out)
	assert.Error(t, err)
}
