package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
)

// SMTPSender delivers HTML mail through an SMTP relay.
type SMTPSender struct {
	addr     string
	auth     smtp.Auth
	from     string
	envelope string
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender creates a sender for the relay at addr (host:port). from may
// be a display address such as "Lucky Grid <no-reply@example.com>".
func NewSMTPSender(addr, user, pass, from string) (*SMTPSender, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("smtp address: %w", err)
	}
	parsed, err := mail.ParseAddress(from)
	if err != nil {
		return nil, fmt.Errorf("smtp from: %w", err)
	}
	s := &SMTPSender{
		addr:     addr,
		from:     parsed.String(),
		envelope: parsed.Address,
		send:     smtp.SendMail,
	}
	if user != "" {
		s.auth = smtp.PlainAuth("", user, pass, host)
	}
	return s, nil
}

// Send delivers one message. net/smtp has no context support, so ctx is
// only checked before dialing.
func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rcpt, err := mail.ParseAddress(to)
	if err != nil {
		return fmt.Errorf("recipient %q: %w", to, err)
	}
	msg := buildMessage(s.from, rcpt.String(), subject, htmlBody)
	return s.send(s.addr, s.auth, s.envelope, []string{rcpt.Address}, msg)
}

func buildMessage(from, to, subject, htmlBody string) []byte {
	return []byte(strings.Join([]string{
		"From: " + from,
		"To: " + to,
		"Subject: " + mime.QEncoding.Encode("utf-8", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=utf-8",
		"",
		htmlBody,
	}, "\r\n"))
}

// LogSender stands in when no relay is configured: it logs and drops mail.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send implements the mail sender contract.
func (s *LogSender) Send(_ context.Context, to, subject, _ string) error {
	if to == "" {
		return errors.New("empty recipient")
	}
	s.logger.Info("mail not configured, message dropped", "to", to, "subject", subject)
	return nil
}
