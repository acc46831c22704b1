package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rayen0001/tekup-auto-login/internal/config"
	"github.com/rayen0001/tekup-auto-login/internal/dom"
	"github.com/rayen0001/tekup-auto-login/internal/locator"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var errNotReady = errors.New("login form not detected")

func newProbeCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "probe <file|url>",
		Short: "Check which login form selectors match a page, without a browser",
		Long: `probe parses a saved HTML file or fetches a URL and reports which selector
matched each login form field. Scripts are not run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := args[0]
			var (
				doc *dom.HTMLDocument
				err error
			)
			if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
				doc, err = dom.FetchHTML(cmd.Context(), src, a.cfg.NavigateTimeout)
			} else {
				var f *os.File
				f, err = os.Open(src)
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				doc, err = dom.ParseHTML(f)
			}
			if err != nil {
				return err
			}

			matches, err := locator.Probe(cmd.Context(), doc)
			if err != nil {
				return err
			}
			ready := locator.Ready(matches)
			if err := writeProbe(a.out, format, ready, matches); err != nil {
				return err
			}
			if !ready {
				return errNotReady
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", "table", "Output format: table, json or yaml")
	return cmd
}

func writeProbe(w io.Writer, format string, ready bool, matches []locator.Match) error {
	report := struct {
		Ready  bool            `json:"ready" yaml:"ready"`
		Fields []locator.Match `json:"fields" yaml:"fields"`
	}{ready, matches}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		data, err := yaml.Marshal(report)
		if err != nil {
			return fmt.Errorf("marshal yaml: %w", err)
		}
		_, err = w.Write(data)
		return err
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "FIELD\tFOUND\tSELECTOR")
		for _, m := range matches {
			sel := m.Selector
			if sel == "" {
				sel = "-"
			}
			_, _ = fmt.Fprintf(tw, "%s\t%v\t%s\n", m.Field, m.Found, sel)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q (want table, json or yaml)", format)
	}
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the config file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ConfigPath()
			if err := config.InitFile(path, force); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(a.out, "Config written to %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprint(a.out, config.Describe(a.cfg))
			_, _ = fmt.Fprintf(a.out, "\nConfig file: %s\n", config.ConfigPath())
		},
	}

	cmd.AddCommand(initCmd, show)
	return cmd
}
