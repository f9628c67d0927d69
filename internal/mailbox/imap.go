package mailbox

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"

	"hedgedash/internal/interfaces"
	"hedgedash/internal/logger"
)

const defaultIMAPSPort = "993"

var ErrNotFound = errors.New("message not found")

// IMAPDialer opens IMAPS sessions with a read-only selected mailbox.
type IMAPDialer struct {
	Mailbox string
	Timeout time.Duration
	TLS     *tls.Config
}

func NewIMAPDialer(mailbox string, timeout time.Duration) *IMAPDialer {
	return &IMAPDialer{Mailbox: mailbox, Timeout: timeout}
}

func (d *IMAPDialer) Dial(ctx context.Context, creds interfaces.MailCredentials) (interfaces.Mailbox, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if creds.Server == "" {
		return nil, errors.New("connect: mail server not configured")
	}

	addr := creds.Server
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, defaultIMAPSPort)
	}
	host, _, _ := net.SplitHostPort(addr)

	tlsConfig := d.TLS
	if tlsConfig == nil {
		tlsConfig = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
	}

	c, err := client.DialWithDialerTLS(&net.Dialer{Timeout: d.Timeout}, addr, tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	c.Timeout = d.Timeout

	m := &IMAPMailbox{c: c}
	stop := context.AfterFunc(ctx, func() { _ = c.Terminate() })
	defer stop()

	if err := c.Login(creds.Username, creds.Password); err != nil {
		_ = c.Terminate()
		return nil, fmt.Errorf("login %s: %w", creds.Username, err)
	}

	name := d.Mailbox
	if name == "" {
		name = "INBOX"
	}
	status, err := c.Select(name, true)
	if err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("select %s: %w", name, err)
	}

	logger.Debug(ctx, "Mailbox selected", "server", addr, "mailbox", name, "messages", status.Messages)
	return m, nil
}

// IMAPMailbox is a logged-in client with a selected mailbox.
type IMAPMailbox struct {
	c *client.Client
}

// guard aborts the in-flight command by closing the connection when ctx ends.
func (m *IMAPMailbox) guard(ctx context.Context) func() bool {
	return context.AfterFunc(ctx, func() { _ = m.c.Terminate() })
}

func (m *IMAPMailbox) Search(ctx context.Context, since time.Time, subjects []string) ([]uint32, error) {
	defer m.guard(ctx)()

	criteria := imap.NewSearchCriteria()
	criteria.Since = since
	for _, s := range subjects {
		criteria.Header.Add("Subject", s)
	}

	uids, err := m.c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("search: %w", ctxErr(ctx, err))
	}
	return uids, nil
}

func (m *IMAPMailbox) FetchDates(ctx context.Context, uids []uint32) (map[uint32]time.Time, error) {
	dates := make(map[uint32]time.Time, len(uids))
	if len(uids) == 0 {
		return dates, nil
	}
	defer m.guard(ctx)()

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{
		BodyPartName: imap.BodyPartName{Specifier: imap.HeaderSpecifier, Fields: []string{"DATE"}},
		Peek:         true,
	}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() {
		done <- m.c.UidFetch(seqset, items, messages)
	}()

	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		if t, err := parseDateHeader(body); err == nil && !t.IsZero() {
			dates[msg.Uid] = t
		}
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetch dates: %w", ctxErr(ctx, err))
	}
	return dates, nil
}

func (m *IMAPMailbox) FetchRaw(ctx context.Context, uid uint32) ([]byte, error) {
	defer m.guard(ctx)()

	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- m.c.UidFetch(seqset, items, messages)
	}()

	var raw []byte
	var readErr error
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil || raw != nil {
			continue
		}
		raw, readErr = io.ReadAll(body)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetch %d: %w", uid, ctxErr(ctx, err))
	}
	if readErr != nil {
		return nil, fmt.Errorf("fetch %d: %w", uid, readErr)
	}
	if raw == nil {
		return nil, fmt.Errorf("fetch %d: %w", uid, ErrNotFound)
	}
	return raw, nil
}

func (m *IMAPMailbox) Close() error {
	if err := m.c.Logout(); err != nil {
		_ = m.c.Terminate()
		return err
	}
	return nil
}

func parseDateHeader(r io.Reader) (time.Time, error) {
	h, err := textproto.ReadHeader(bufio.NewReader(io.MultiReader(r, bytes.NewReader([]byte("\r\n")))))
	if err != nil {
		return time.Time{}, err
	}
	mh := mail.Header{}
	mh.Header.Header = h
	return mh.Date()
}

// ctxErr prefers the context error when a command failed because the
// connection was torn down on cancellation.
func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
