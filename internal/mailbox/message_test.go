package mailbox

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"

	"hedgedash/internal/interfaces"
)

func crlf(s string) string {
	return strings.ReplaceAll(s, "\n", "\r\n")
}

func TestParseMessageMultipart(t *testing.T) {
	raw := crlf(`From: =?UTF-8?B?57+w6I2j?= <nav@hanrong.example.com>
To: ops@example.com
Subject: =?UTF-8?B?5Lqn5ZOB5YeA5YC8?=
Date: Mon, 06 Jan 2025 10:00:00 +0800
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: multipart/alternative; boundary="inner"

--inner
Content-Type: text/plain; charset=utf-8

plain body
--inner
Content-Type: text/html; charset=utf-8
Content-Transfer-Encoding: quoted-printable

<table><tr><td>=E7=BF=B0=E8=8D=A3</td></tr></table>
--inner--
--outer
Content-Type: text/html; charset=utf-8
Content-Disposition: attachment; filename="report.html"

<p>attached copy</p>
--outer--
`)

	msg, err := ParseMessage([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, "产品净值", msg.Subject)
	assert.Contains(t, msg.From, "nav@hanrong.example.com")
	assert.True(t, msg.Date.Equal(time.Date(2025, 1, 6, 2, 0, 0, 0, time.UTC)))
	require.Len(t, msg.HTMLParts, 1, "attachments are skipped")
	assert.Contains(t, msg.HTMLParts[0], "<td>翰荣</td>")
}

func TestParseMessageGBKCharset(t *testing.T) {
	body, err := simplifiedchinese.GBK.NewEncoder().String("<td>正定</td>")
	require.NoError(t, err)

	raw := crlf(`From: nav@zhengding.example.com
Subject: NAV
Content-Type: text/html; charset=gbk

`) + body

	msg, err := ParseMessage([]byte(raw))
	require.NoError(t, err)
	require.Len(t, msg.HTMLParts, 1)
	assert.Equal(t, "<td>正定</td>", msg.HTMLParts[0])
}

func TestParseMessageUnknownCharsetFallsBackToGB18030(t *testing.T) {
	body, err := simplifiedchinese.GB18030.NewEncoder().String("<span>蒙玺</span>")
	require.NoError(t, err)

	raw := crlf(`From: nav@mengxi.example.com
Subject: NAV
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="b"

--b
Content-Type: text/html; charset=x-made-up

`) + body + crlf(`
--b--
`)

	msg, err := ParseMessage([]byte(raw))
	require.NoError(t, err)
	require.Len(t, msg.HTMLParts, 1)
	assert.Contains(t, msg.HTMLParts[0], "<span>蒙玺</span>")
}

func TestParseMessageNoHTML(t *testing.T) {
	raw := crlf(`From: someone@example.com
Subject: hello
Content-Type: text/plain

just text
`)
	msg, err := ParseMessage([]byte(raw))
	require.NoError(t, err)
	assert.Empty(t, msg.HTMLParts)
}

func TestParseDateHeader(t *testing.T) {
	got, err := parseDateHeader(strings.NewReader("Date: Tue, 07 Jan 2025 09:30:00 +0800\r\n\r\n"))
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2025, 1, 7, 1, 30, 0, 0, time.UTC)))

	// servers may omit the trailing blank line
	got, err = parseDateHeader(strings.NewReader("Date: Tue, 07 Jan 2025 09:30:00 +0800\r\n"))
	require.NoError(t, err)
	assert.Equal(t, 2025, got.Year())

	_, err = parseDateHeader(strings.NewReader("Date: yesterday-ish\r\n\r\n"))
	assert.Error(t, err)
}

func TestDialRequiresServer(t *testing.T) {
	_, err := NewIMAPDialer("INBOX", time.Second).Dial(context.Background(), interfaces.MailCredentials{})
	assert.ErrorContains(t, err, "connect")
}
