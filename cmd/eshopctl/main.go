package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/Rijughosh14/EShop/internal/cli"
	"github.com/Rijughosh14/EShop/pkg/logger"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func main() {
	flags := pflag.NewFlagSet("eshopctl", pflag.ExitOnError)
	flags.String("api-url", "http://localhost:8080", "storefront API base URL")
	flags.String("session-file", defaultSessionFile(), "where the session tokens are kept")
	flags.Bool("debug", false, "log client activity to stderr")
	_ = flags.Parse(os.Args[1:])

	// flags win over ESHOP_API_URL, ESHOP_SESSION_FILE and ESHOP_DEBUG
	v := viper.New()
	v.SetEnvPrefix("eshop")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlags(flags)

	log := logger.NewNop()
	if v.GetBool("debug") {
		l, err := logger.New(&logger.Config{
			Level:       "debug",
			ServiceName: "eshopctl",
			Development: true,
			OutputPaths: []string{"stderr"},
		})
		if err == nil {
			log = l
		}
	}

	app, err := cli.NewApp(&cli.Config{
		APIURL:      v.GetString("api-url"),
		SessionFile: v.GetString("session-file"),
	}, os.Stdin, os.Stdout, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "eshopctl:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = app.Run(ctx, flags.Args())
	stop()
	app.Close()
	_ = log.Zap().Sync()

	if err != nil {
		fmt.Fprintln(os.Stderr, "eshopctl:", err)
		os.Exit(1)
	}
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "eshop", "session.json")
}
