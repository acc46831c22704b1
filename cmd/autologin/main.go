package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rayen0001/tekup-auto-login/internal/config"
	"github.com/spf13/cobra"
)

var version = "dev"

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfg   *config.RuntimeConfig
	out   io.Writer
	in    io.Reader
	url   string
	token string
}

// client talks to the running daemon, honouring --url and --token.
func (a *app) client() *client {
	base := a.cfg.BaseURL()
	if env := os.Getenv("AUTOLOGIN_URL"); env != "" {
		base = env
	}
	if a.url != "" {
		base = a.url
	}
	token := a.cfg.Token
	if a.token != "" {
		token = a.token
	}
	return newClient(strings.TrimRight(base, "/"), token, a.out)
}

func newRootCmd(out io.Writer, in io.Reader) *cobra.Command {
	a := &app{out: out, in: in}

	root := &cobra.Command{
		Use:   "autologin",
		Short: "TEK-UP portal auto-login",
		Long: `autologin drives a Chrome instance and fills the TEK-UP captive portal
login form whenever it shows up. Without a subcommand it runs the daemon.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.cfg = config.Load()
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: a.cfg.SlogLevel()})))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), a.cfg)
		},
	}
	root.SetOut(out)
	root.SetIn(in)

	root.PersistentFlags().StringVar(&a.url, "url", "", "Daemon URL (default from AUTOLOGIN_URL or the bind address)")
	root.PersistentFlags().StringVar(&a.token, "token", "", "Bearer token (default AUTOLOGIN_TOKEN)")

	root.AddCommand(
		newServeCmd(a),
		newStatusCmd(a),
		newOptionsCmd(a),
		newToggleCmd(a),
		newTestCmd(a),
		newLoginCmd(a),
		newTabsCmd(a),
		newHealthCmd(a),
		newWatchCmd(a),
		newProbeCmd(a),
		newConfigCmd(a),
		newVersionCmd(a),
	)
	return root
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(a.out, "autologin %s\n", version)
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stdin).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
