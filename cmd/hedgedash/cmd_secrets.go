package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"hedgedash/internal/auth"
)

var secretsCmd = &cobra.Command{
	Use:   "secrets",
	Short: "Produce values for the password and credential settings",
	// no config or logging needed
	PersistentPreRunE:  func(cmd *cobra.Command, args []string) error { return nil },
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error { return nil },
}

var secretsDigestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Print the SHA-512 digest of the dashboard password",
	Long: `Print the value for dashboard.password_sha512 (or DASHBOARD_PASSWORD_SHA512).

Example:
  hedgedash secrets digest`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pw, err := readPassword(cmd, "Dashboard password: ")
		if err != nil {
			return err
		}
		if pw == "" {
			return auth.ErrEmptyPassword
		}
		fmt.Fprintln(cmd.OutOrStdout(), auth.Digest(pw))
		return nil
	},
}

var secretsEncryptCmd = &cobra.Command{
	Use:   "encrypt VALUE...",
	Short: "Encrypt mail credentials with the dashboard password",
	Long: `Encrypt each VALUE (mail server, username, password) with the dashboard
password. Store the output in the mail section and set mail.encrypted: true.

Example:
  hedgedash secrets encrypt imap.example.com user@example.com app-password`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pw, err := readPassword(cmd, "Dashboard password: ")
		if err != nil {
			return err
		}
		if pw == "" {
			return auth.ErrEmptyPassword
		}
		out := make([]string, 0, len(args))
		for _, v := range args {
			if strings.TrimSpace(v) == "" {
				return errors.New("cannot encrypt an empty value")
			}
			enc, err := auth.Encrypt(pw, v)
			if err != nil {
				return err
			}
			out = append(out, enc)
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(out, "\n"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(secretsCmd)
	secretsCmd.AddCommand(secretsDigestCmd, secretsEncryptCmd)
	secretsCmd.PersistentFlags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
}
