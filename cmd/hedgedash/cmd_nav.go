package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"hedgedash/internal/report"
)

var (
	navFormat     string
	navOutDir     string
	passwordStdin bool
)

var navCmd = &cobra.Command{
	Use:   "nav",
	Short: "Refresh the holdings summary from NAV notices in the mailbox",
	Long: `Prompt for the dashboard password, scan the configured mailbox for
recent NAV notices and print the holdings summary.

Example:
  hedgedash nav --format json
  echo "$PW" | hedgedash nav --password-stdin`,
	RunE: runNav,
}

func init() {
	rootCmd.AddCommand(navCmd)
	navCmd.Flags().StringVarP(&navFormat, "format", "f", "text", "output format: text, json or csv")
	navCmd.Flags().StringVarP(&navOutDir, "out", "o", "", "also save the summary under this directory")
	navCmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
}

func runNav(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	format, err := report.ParseFormat(navFormat)
	if err != nil {
		return err
	}
	password, err := readPassword(cmd, "Password: ")
	if err != nil {
		return err
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	svc := buildServices(ctx, cfg)

	summary, err := svc.nav.Refresh(ctx, password)
	if err != nil {
		return err
	}

	render := func(w io.Writer) error { return report.WriteNav(w, summary, format) }
	if err := render(cmd.OutOrStdout()); err != nil {
		return err
	}
	if navOutDir != "" {
		path, err := report.Save(navOutDir, "holdings_"+summary.RefreshedAt.Format("20060102_150405"), format, render)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Saved to %s\n", path)
	}
	return nil
}

// readPassword reads one line from stdin with --password-stdin, otherwise
// prompts on the terminal without echo.
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	if passwordStdin {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("stdin is not a terminal; use --password-stdin")
	}
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", err
	}
	return string(b), nil
}
