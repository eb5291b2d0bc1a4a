package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/mmynk/ducats/internal/apperrors"
)

// Mailer delivers a fully formed RFC 5322 message.
type Mailer interface {
	Send(ctx context.Context, from string, to []string, msg []byte) error
}

// SMTPMailer sends mail through an SMTP relay with PLAIN auth.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Send implements Mailer.
func (m *SMTPMailer) Send(ctx context.Context, from string, to []string, msg []byte) error {
	addr := net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
	var auth smtp.Auth
	if m.Username != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}

	errc := make(chan error, 1)
	go func() { errc <- smtp.SendMail(addr, auth, from, to, msg) }()
	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("failed to send mail via %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MailSink mails the export as an attachment.
type MailSink struct {
	Mailer Mailer
	From   string
	Now    func() time.Time
}

// NewMailSink creates a MailSink sending from the given address.
func NewMailSink(mailer Mailer, from string) *MailSink {
	return &MailSink{Mailer: mailer, From: from, Now: time.Now}
}

// Kind implements Sink.
func (s *MailSink) Kind() SinkKind { return KindMail }

// Activate implements Sink. The message is built up front so a malformed
// payload fails activation; delivery happens in the background.
func (s *MailSink) Activate(ctx context.Context, p Payload) (<-chan Completion, error) {
	if len(p.Recipients) == 0 {
		return nil, apperrors.Validation("recipients", "", nil)
	}
	msg, err := BuildMessage(s.From, p, s.Now())
	if err != nil {
		return nil, err
	}

	ch := make(chan Completion, 1)
	go func() {
		if err := s.Mailer.Send(ctx, s.From, p.Recipients, msg); err != nil {
			if ctx.Err() != nil {
				ch <- Cancelled()
				return
			}
			ch <- FailedWith(err)
			return
		}
		ch <- Sent()
	}()
	return ch, nil
}

// BuildMessage renders p as a multipart/mixed message: a text/plain body and
// the export as a base64 attachment.
func BuildMessage(from string, p Payload, date time.Time) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	text, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=utf-8"},
		"Content-Transfer-Encoding": {"8bit"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create message body: %w", err)
	}
	if _, err := text.Write([]byte(p.Body + "\r\n")); err != nil {
		return nil, fmt.Errorf("failed to write message body: %w", err)
	}

	mimeType := p.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	attachment, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {mime.FormatMediaType(mimeType, map[string]string{"name": p.FileName})},
		"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": p.FileName})},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create attachment: %w", err)
	}
	if _, err := attachment.Write(wrapBase64(p.Data)); err != nil {
		return nil, fmt.Errorf("failed to write attachment: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish message: %w", err)
	}

	var msg bytes.Buffer
	header := func(k, v string) { fmt.Fprintf(&msg, "%s: %s\r\n", k, v) }
	header("From", from)
	header("To", strings.Join(p.Recipients, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", p.Subject))
	header("Date", date.Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", mime.FormatMediaType("multipart/mixed", map[string]string{"boundary": mw.Boundary()}))
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

// wrapBase64 encodes data in 76-column lines.
func wrapBase64(data []byte) []byte {
	enc := base64.StdEncoding.EncodeToString(data)
	var b bytes.Buffer
	for len(enc) > 76 {
		b.WriteString(enc[:76])
		b.WriteString("\r\n")
		enc = enc[76:]
	}
	b.WriteString(enc)
	b.WriteString("\r\n")
	return b.Bytes()
}
