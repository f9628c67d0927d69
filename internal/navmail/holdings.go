package navmail

import (
	"context"
	"fmt"

	"hedgedash/internal/auth"
	"hedgedash/internal/interfaces"
	"hedgedash/internal/logger"
	"hedgedash/internal/store"
	"hedgedash/internal/types"
)

// Holdings is the password-gated holdings refresh: verify, resolve mailbox
// credentials, connect, scan.
type Holdings struct {
	gate      *auth.Gate
	dialer    interfaces.MailDialer
	server    string
	username  string
	password  string
	encrypted bool
	scanner   *Scanner
}

func NewHoldings(cfg *store.Config, dialer interfaces.MailDialer, scanner *Scanner) *Holdings {
	return &Holdings{
		gate:      auth.NewGate(cfg.Dashboard.PasswordSHA512),
		dialer:    dialer,
		server:    cfg.Mail.Server,
		username:  cfg.Mail.Username,
		password:  cfg.Mail.Password,
		encrypted: cfg.Mail.Encrypted,
		scanner:   scanner,
	}
}

func (h *Holdings) Refresh(ctx context.Context, password string) (*types.NavSummary, error) {
	if err := h.gate.Verify(password); err != nil {
		return nil, err
	}

	creds, err := h.credentials(password)
	if err != nil {
		return nil, err
	}

	mb, err := h.dialer.Dial(ctx, creds)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := mb.Close(); err != nil {
			logger.Debug(ctx, "Mailbox logout failed", "error", err)
		}
	}()

	return h.scanner.Scan(ctx, mb)
}

// credentials decrypts the stored mailbox login with the dashboard password
// when it is kept encrypted.
func (h *Holdings) credentials(password string) (interfaces.MailCredentials, error) {
	creds := interfaces.MailCredentials{Server: h.server, Username: h.username, Password: h.password}
	if !h.encrypted {
		return creds, nil
	}

	fields := []struct {
		name string
		v    *string
	}{
		{"server", &creds.Server},
		{"username", &creds.Username},
		{"password", &creds.Password},
	}
	for _, f := range fields {
		plain, err := auth.Decrypt(password, *f.v)
		if err != nil {
			return interfaces.MailCredentials{}, fmt.Errorf("decrypt mail %s: %w", f.name, err)
		}
		*f.v = plain
	}
	return creds, nil
}
