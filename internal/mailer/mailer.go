// Package mailer delivers plain-text email.
package mailer

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aura-events/backend/config"
)

// Message is a single outgoing email.
type Message struct {
	To      string
	ToName  string
	Subject string
	Body    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// New returns an SMTP sender when a host is configured and a log-only
// sender otherwise.
func New(cfg config.EmailConfig, logger *zap.Logger) Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set, emails will only be logged")
		return &LogSender{logger: logger}
	}
	return NewSMTP(cfg, logger)
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTP sends mail through a relay with PLAIN auth.
type SMTP struct {
	cfg    config.EmailConfig
	send   sendFunc
	now    func() time.Time
	logger *zap.Logger
}

// NewSMTP creates an SMTP sender.
func NewSMTP(cfg config.EmailConfig, logger *zap.Logger) *SMTP {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTP{cfg: cfg, send: smtp.SendMail, now: time.Now, logger: logger}
}

// Send delivers m. smtp.SendMail takes no context, so cancellation is only
// honoured before the connection is opened.
func (s *SMTP) Send(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.To == "" {
		return fmt.Errorf("send email: empty recipient")
	}
	var auth smtp.Auth
	if s.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPass, s.cfg.SMTPHost)
	}
	addr := net.JoinHostPort(s.cfg.SMTPHost, strconv.Itoa(s.cfg.SMTPPort))
	if err := s.send(addr, auth, s.cfg.FromAddress, []string{m.To}, s.build(m)); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	s.logger.Info("email sent", zap.String("to", m.To), zap.String("subject", m.Subject))
	return nil
}

func (s *SMTP) build(m Message) []byte {
	from := mail.Address{Name: s.cfg.FromName, Address: s.cfg.FromAddress}
	to := mail.Address{Name: m.ToName, Address: m.To}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from.String())
	fmt.Fprintf(&b, "To: %s\r\n", to.String())
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", s.now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(m.Body, "\n", "\r\n"))
	return []byte(b.String())
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	logger *zap.Logger
}

// Send logs m.
func (l *LogSender) Send(_ context.Context, m Message) error {
	l.logger.Info("email (not delivered)",
		zap.String("to", m.To),
		zap.String("subject", m.Subject),
		zap.Int("body_bytes", len(m.Body)),
	)
	return nil
}
