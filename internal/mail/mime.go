package mail

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset" // registers non-UTF-8 decoders
	gomail "github.com/emersion/go-message/mail"

	"github.com/jonathan/job-tracker/internal/textnorm"
	"github.com/jonathan/job-tracker/internal/types"
)

// ParsedMessage holds the fields extracted from an RFC 5322 message.
type ParsedMessage struct {
	MessageID   string
	SenderName  string
	SenderEmail string
	Subject     string
	Date        time.Time
	Body        string
}

// ParseMessage reads a full message. The body prefers text/plain parts and
// falls back to the text of text/html parts. Attachments are skipped.
func ParseMessage(raw []byte) (*ParsedMessage, error) {
	mr, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}
	defer mr.Close()

	pm := &ParsedMessage{}
	h := mr.Header
	if id, err := h.MessageID(); err == nil {
		pm.MessageID = id
	}
	if subject, err := h.Subject(); err == nil {
		pm.Subject = strings.TrimSpace(subject)
	} else {
		pm.Subject = strings.TrimSpace(h.Get("Subject"))
	}
	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		pm.SenderName = strings.TrimSpace(from[0].Name)
		pm.SenderEmail = strings.ToLower(from[0].Address)
	} else {
		pm.SenderName, pm.SenderEmail = textnorm.ParseSender(h.Get("From"))
	}
	if date, err := h.Date(); err == nil {
		pm.Date = date
	}

	var plain, html []string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				continue
			}
			// keep whatever was read before a malformed part
			break
		}

		inline, ok := part.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := inline.ContentType()
		data, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		switch contentType {
		case "text/plain", "":
			plain = append(plain, string(data))
		case "text/html":
			html = append(html, string(data))
		}
	}

	switch {
	case len(plain) > 0:
		pm.Body = CleanBody(strings.Join(plain, "\n"))
	case len(html) > 0:
		pm.Body = CleanBody(HTMLToText(strings.Join(html, "\n")))
	}
	return pm, nil
}

// HTMLToText extracts readable text from an HTML body.
func HTMLToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("script, style, head").Remove()
	doc.Find("br, p, div, li, tr, h1, h2, h3").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	return doc.Text()
}

// CleanBody collapses whitespace and truncates the body.
func CleanBody(body string) string {
	return textnorm.Truncate(textnorm.CollapseWhitespace(body), maxBodyChars)
}

// toRawEmail builds the provider-neutral view. id is used when the message carries
// no Message-ID; the Date header is used when receivedAt is zero.
func (pm *ParsedMessage) toRawEmail(id, threadID string, receivedAt time.Time) types.RawEmail {
	messageID := pm.MessageID
	if messageID == "" {
		messageID = id
	}
	received := receivedAt
	if received.IsZero() {
		received = pm.Date
	}
	return types.RawEmail{
		MessageID:   messageID,
		ThreadID:    threadID,
		SenderEmail: pm.SenderEmail,
		SenderName:  pm.SenderName,
		Subject:     pm.Subject,
		Body:        pm.Body,
		ReceivedAt:  received.UTC(),
	}
}
