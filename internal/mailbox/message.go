package mailbox

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// Message is the part of an email the NAV extractors care about.
type Message struct {
	Subject   string
	From      string
	Date      time.Time
	HTMLParts []string
}

// ParseMessage walks every MIME part of raw, skipping attachments, and keeps
// the decoded text/html bodies. Unknown charsets are tolerated; such parts are
// decoded as GB18030 when they are not valid UTF-8.
func ParseMessage(raw []byte) (*Message, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("parse message: %w", err)
	}
	defer mr.Close()

	msg := &Message{}
	if s, err := mr.Header.Subject(); err == nil {
		msg.Subject = s
	} else {
		msg.Subject = mr.Header.Get("Subject")
	}
	if addrs, err := mr.Header.AddressList("From"); err == nil && len(addrs) > 0 {
		msg.From = addrs[0].String()
	} else {
		msg.From = mr.Header.Get("From")
	}
	msg.Date, _ = mr.Header.Date()

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if p == nil {
			if message.IsUnknownEncoding(err) {
				continue
			}
			return msg, fmt.Errorf("read part: %w", err)
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		if !strings.EqualFold(ct, "text/html") {
			continue
		}

		body, err := io.ReadAll(p.Body)
		if err != nil {
			return msg, fmt.Errorf("read html part: %w", err)
		}
		msg.HTMLParts = append(msg.HTMLParts, toUTF8(body))
	}

	return msg, nil
}

// toUTF8 falls back to GB18030, a superset of GBK and GB2312, for bodies the
// charset table could not decode.
func toUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	out, _, err := transform.Bytes(simplifiedchinese.GB18030.NewDecoder(), b)
	if err != nil {
		return string(b)
	}
	return string(out)
}
