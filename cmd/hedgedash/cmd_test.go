package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hedgedash/internal/auth"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	t.Cleanup(func() { passwordStdin = false })
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSecretsDigest(t *testing.T) {
	out, err := runCLI(t, "hunter2\n", "secrets", "digest", "--password-stdin")
	require.NoError(t, err)
	assert.Equal(t, auth.Digest("hunter2")+"\n", out)
}

func TestSecretsEncryptRoundTrip(t *testing.T) {
	out, err := runCLI(t, "hunter2\n", "secrets", "encrypt", "--password-stdin", "imap.example.com", "user@example.com")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	server, err := auth.Decrypt("hunter2", lines[0])
	require.NoError(t, err)
	assert.Equal(t, "imap.example.com", server)
}

func TestSecretsRejectsEmptyPassword(t *testing.T) {
	_, err := runCLI(t, "\n", "secrets", "digest", "--password-stdin")
	assert.ErrorIs(t, err, auth.ErrEmptyPassword)
}
