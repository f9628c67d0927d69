package interfaces

import (
	"context"
	"time"
)

// MailCredentials are the decrypted IMAP login values.
type MailCredentials struct {
	Server   string
	Username string
	Password string
}

// Mailbox is an open, selected, read-only mailbox. Messages are addressed by UID.
type Mailbox interface {
	// Search returns UIDs of messages on or after since whose subject contains every entry of subjects.
	Search(ctx context.Context, since time.Time, subjects []string) ([]uint32, error)

	// FetchDates returns the Date header of each message. Unparsable dates are omitted.
	FetchDates(ctx context.Context, uids []uint32) (map[uint32]time.Time, error)

	// FetchRaw returns the full RFC 822 message.
	FetchRaw(ctx context.Context, uid uint32) ([]byte, error)

	Close() error
}

// MailDialer connects, logs in and selects the inbox.
type MailDialer interface {
	Dial(ctx context.Context, creds MailCredentials) (Mailbox, error)
}
