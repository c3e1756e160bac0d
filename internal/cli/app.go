// Package cli implements eshopctl, a terminal client for the storefront API
// that keeps its session in a token file between runs.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/Rijughosh14/EShop/pkg/authclient"
	"github.com/Rijughosh14/EShop/pkg/logger"
	"go.uber.org/zap"
)

var ErrUnknownCommand = errors.New("unknown command")

// Config holds CLI settings
type Config struct {
	APIURL      string
	SessionFile string
}

// App runs one command against the API
type App struct {
	client *authclient.Client
	in     *bufio.Reader
	out    io.Writer
	log    *logger.Logger
}

// NewApp opens the session file and builds the API client
func NewApp(cfg *Config, in io.Reader, out io.Writer, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.NewNop()
	}
	store, err := authclient.OpenFileStore(cfg.SessionFile)
	if err != nil {
		return nil, err
	}

	client := authclient.NewClient(cfg.APIURL,
		authclient.WithTokenStore(store),
		authclient.WithLogger(log.Named("client")),
	)
	return &App{client: client, in: bufio.NewReader(in), out: out, log: log}, nil
}

// Close releases the client
func (a *App) Close() {
	a.client.Close()
}

// Run executes the command named by args[0]
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.usage()
		return nil
	}

	switch args[0] {
	case "signup":
		return a.signup(ctx)
	case "login":
		return a.login(ctx)
	case "whoami":
		return a.whoami(ctx)
	case "refresh":
		return a.refresh(ctx)
	case "logout":
		return a.logout(ctx)
	case "products":
		return a.products(ctx, args[1:])
	case "status":
		return a.status()
	case "help":
		a.usage()
		return nil
	default:
		a.usage()
		return fmt.Errorf("%w: %s", ErrUnknownCommand, args[0])
	}
}

func (a *App) usage() {
	fmt.Fprintln(a.out, `Usage: eshopctl [flags] <command>

Commands:
  signup              create an account and sign in
  login               sign in with email and password
  whoami              validate the stored session
  refresh             rotate the stored tokens
  logout              sign out and forget the session
  products [limit]    list catalog products
  status              show the local session state`)
}

func (a *App) signup(ctx context.Context) error {
	name, err := prompt(a.in, a.out, "Name")
	if err != nil {
		return err
	}
	email, err := prompt(a.in, a.out, "Email")
	if err != nil {
		return err
	}
	password, err := promptPassword(a.in, a.out)
	if err != nil {
		return err
	}

	user, err := a.client.Signup(ctx, authclient.SignupRequest{Name: name, Email: email, Password: password})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Welcome, %s (%s)\n", user.Name, user.Email)
	return nil
}

func (a *App) login(ctx context.Context) error {
	email, err := prompt(a.in, a.out, "Email")
	if err != nil {
		return err
	}
	password, err := promptPassword(a.in, a.out)
	if err != nil {
		return err
	}

	user, err := a.client.Login(ctx, authclient.LoginRequest{Email: email, Password: password})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s\n", user.Email)
	return nil
}

func (a *App) whoami(ctx context.Context) error {
	user, err := a.client.ValidateToken(ctx)
	if err != nil {
		if authclient.IsSessionEnded(err) {
			fmt.Fprintln(a.out, "Session expired, please log in again")
			return nil
		}
		return err
	}
	if user == nil {
		fmt.Fprintln(a.out, "Not logged in")
		return nil
	}
	fmt.Fprintf(a.out, "%s <%s> id=%s\n", user.Name, user.Email, user.ID)
	return nil
}

func (a *App) refresh(ctx context.Context) error {
	if _, err := a.client.Refresh(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Tokens refreshed")
	return nil
}

func (a *App) logout(ctx context.Context) error {
	if err := a.client.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) products(ctx context.Context, args []string) error {
	limit := 10
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid limit %q", args[0])
		}
		limit = n
	}

	raw, err := a.client.Products(ctx, limit, 0)
	if err != nil {
		return err
	}

	var page struct {
		Products []struct {
			ID    int     `json:"id"`
			Title string  `json:"title"`
			Price float64 `json:"price"`
		} `json:"products"`
		Total int `json:"total"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return fmt.Errorf("unexpected catalog response: %w", err)
	}
	for _, p := range page.Products {
		fmt.Fprintf(a.out, "%4d  %-40s %8.2f\n", p.ID, p.Title, p.Price)
	}
	fmt.Fprintf(a.out, "%d of %d products\n", len(page.Products), page.Total)
	return nil
}

func (a *App) status() error {
	st := a.client.Session().State()
	if !st.IsAuthenticated {
		fmt.Fprintln(a.out, "Not logged in")
		return nil
	}
	fmt.Fprintf(a.out, "Logged in as %s\n", st.User.Email)
	a.log.Debug("Session loaded", zap.String("user_id", st.User.ID))
	return nil
}
