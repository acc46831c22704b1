package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/rayen0001/tekup-auto-login/internal/settings"
	"github.com/spf13/cobra"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether auto-login is active",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var st settings.Status
			if err := a.client().call("GET", "/popup", nil, &st); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(a.out, "Status:   %s\n", st.State)
			_, _ = fmt.Fprintf(a.out, "Username: %s\n", st.MaskedUsername)
			return nil
		},
	}
}

func newOptionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "options",
		Short: "Show, save or clear the portal credentials",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the saved settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var form settings.Form
			if err := a.client().call("GET", "/options", nil, &form); err != nil {
				return err
			}
			pw := settings.NotSet
			if form.Password != "" {
				pw = strings.Repeat("*", 8)
			}
			user := form.Username
			if user == "" {
				user = settings.NotSet
			}
			_, _ = fmt.Fprintf(a.out, "Username: %s\nPassword: %s\nEnabled:  %v\n", user, pw, form.Enabled)
			return nil
		},
	}

	var (
		username      string
		password      string
		passwordStdin bool
		enabled       bool
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Save credentials; unspecified fields keep their saved value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := a.client()
			var form settings.Form
			if err := c.call("GET", "/options", nil, &form); err != nil {
				return err
			}
			if cmd.Flags().Changed("username") {
				form.Username = username
			}
			if cmd.Flags().Changed("password") {
				form.Password = password
			}
			if passwordStdin {
				line, err := bufio.NewReader(a.in).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				form.Password = strings.TrimRight(line, "\r\n")
			}
			if cmd.Flags().Changed("enabled") {
				form.Enabled = enabled
			}

			var resp struct {
				Notice settings.Notice `json:"notice"`
			}
			if err := c.call("PUT", "/options", form, &resp); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(a.out, resp.Notice.Text)
			return nil
		},
	}
	set.Flags().StringVarP(&username, "username", "u", "", "Portal username")
	set.Flags().StringVarP(&password, "password", "p", "", "Portal password")
	set.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	set.Flags().BoolVar(&enabled, "enabled", true, "Enable auto-login")
	set.MarkFlagsMutuallyExclusive("password", "password-stdin")

	var yes bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all saved settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				_, _ = fmt.Fprintf(a.out, "%s [y/N] ", settings.MsgClearConfirm)
				line, _ := bufio.NewReader(a.in).ReadString('\n')
				if ans := strings.ToLower(strings.TrimSpace(line)); ans != "y" && ans != "yes" {
					_, _ = fmt.Fprintln(a.out, "Canceled")
					return nil
				}
			}
			var resp struct {
				Notice settings.Notice `json:"notice"`
			}
			if err := a.client().call("DELETE", "/options?confirm=true", nil, &resp); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(a.out, resp.Notice.Text)
			return nil
		},
	}
	clearCmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	cmd.AddCommand(show, set, clearCmd)
	return cmd
}

func newToggleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "toggle on|off",
		Short:     "Enable or disable auto-login",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			on := args[0] == "on"
			var resp struct {
				Enabled bool            `json:"enabled"`
				Status  settings.Status `json:"status"`
			}
			if err := a.client().call("POST", "/popup/toggle", map[string]bool{"enabled": on}, &resp); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(a.out, "Auto-login %s (%s)\n", onOff(resp.Enabled), resp.Status.State)
			return nil
		},
	}
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func newTestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Reload the portal tab, or open the login page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var res settings.TestResult
			if err := a.client().call("POST", "/popup/test", nil, &res); err != nil {
				return err
			}
			if res.Action == settings.TestReload {
				_, _ = fmt.Fprintf(a.out, "Reloaded tab %s\n", res.TabID)
			} else {
				_, _ = fmt.Fprintf(a.out, "Opened login page in tab %s\n", res.TabID)
			}
			return nil
		},
	}
}

func newLoginCmd(a *app) *cobra.Command {
	var (
		tabID string
		wait  bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Run autofill on a tab now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.client().print("POST", "/autofill", map[string]any{"tabId": tabID, "wait": wait})
		},
	}
	cmd.Flags().StringVar(&tabID, "tab", "", "Tab ID (default: active tab)")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the attempt to finish")
	return cmd
}

func newTabsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tabs",
		Short: "List open tabs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.client().print("GET", "/tabs", nil)
		},
	}
}

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.client().print("GET", "/health", nil)
		},
	}
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream settings changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchEvents(cmd.Context(), a.client())
		},
	}
}

// watchEvents prints each /events frame on its own line until ctx is done or
// the daemon closes the stream.
func watchEvents(ctx context.Context, c *client) error {
	u, err := url.Parse(c.base + "/events")
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	h := http.Header{}
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
	dialer := ws.Dialer{Header: ws.HandshakeHeaderHTTP(h)}
	conn, _, _, err := dialer.Dial(ctx, u.String())
	if err != nil {
		return fmt.Errorf("connect events: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer func() { _ = conn.Close() }()

	for {
		data, err := wsutil.ReadServerText(conn)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("events closed: %w", err)
		}
		_, _ = fmt.Fprintln(c.out, string(data))
	}
}
