package mail

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plainMessage = "Message-ID: <abc123@acme.com>\r\n" +
	"From: \"Acme Recruiting\" <Jobs@Acme.com>\r\n" +
	"To: jane@example.com\r\n" +
	"Subject: Your application to Acme\r\n" +
	"Date: Mon, 02 Mar 2026 10:00:00 +0000\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Hi Jane,\r\n\r\nThank you for applying   to the Backend Engineer role.\r\n"

const multipartMessage = "Message-ID: <mp@globex.com>\r\n" +
	"From: Globex Talent <talent@globex.com>\r\n" +
	"Subject: =?UTF-8?Q?Interview_invitation_=E2=80=93_Globex?=\r\n" +
	"Date: Tue, 03 Mar 2026 12:30:00 +0100\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"outer\"\r\n" +
	"\r\n" +
	"--outer\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<html><head><style>p{color:red}</style></head><body><p>We would like to</p><p>schedule an interview.</p><script>track()</script></body></html>\r\n" +
	"--outer\r\n" +
	"Content-Type: application/pdf\r\n" +
	"Content-Disposition: attachment; filename=\"details.pdf\"\r\n" +
	"\r\n" +
	"%PDF-1.4\r\n" +
	"--outer--\r\n"

func TestParseMessage_Plain(t *testing.T) {
	pm, err := ParseMessage([]byte(plainMessage))
	require.NoError(t, err)

	assert.Equal(t, "abc123@acme.com", pm.MessageID)
	assert.Equal(t, "Acme Recruiting", pm.SenderName)
	assert.Equal(t, "jobs@acme.com", pm.SenderEmail)
	assert.Equal(t, "Your application to Acme", pm.Subject)
	assert.Equal(t, "Hi Jane, Thank you for applying to the Backend Engineer role.", pm.Body)
	assert.True(t, pm.Date.Equal(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)))
}

func TestParseMessage_HTMLFallbackSkipsAttachments(t *testing.T) {
	pm, err := ParseMessage([]byte(multipartMessage))
	require.NoError(t, err)

	assert.Equal(t, "Interview invitation – Globex", pm.Subject)
	assert.Equal(t, "We would like to schedule an interview.", pm.Body)
	assert.NotContains(t, pm.Body, "track()")
	assert.NotContains(t, pm.Body, "PDF")
}

func TestParseMessage_BodyTruncated(t *testing.T) {
	msg := "From: a@b.com\r\nSubject: long\r\n\r\n" + strings.Repeat("x", maxBodyChars+500)
	pm, err := ParseMessage([]byte(msg))
	require.NoError(t, err)
	assert.Len(t, pm.Body, maxBodyChars)
}

func TestToRawEmail(t *testing.T) {
	pm := &ParsedMessage{SenderEmail: "a@b.com", Date: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	received := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	raw := pm.toRawEmail("provider-id", "thread", received)
	assert.Equal(t, "provider-id", raw.MessageID)
	assert.Equal(t, "thread", raw.ThreadID)
	assert.Equal(t, received, raw.ReceivedAt)

	pm.MessageID = "header-id"
	raw = pm.toRawEmail("provider-id", "", time.Time{})
	assert.Equal(t, "header-id", raw.MessageID)
	assert.Equal(t, pm.Date, raw.ReceivedAt)
}

func TestHTMLToText(t *testing.T) {
	assert.Equal(t, "Hello world", CleanBody(HTMLToText("<div>Hello</div><div>world</div>")))
}
