// Package mail delivers one-time login codes. The SMTP path supports
// implicit TLS and STARTTLS; a logging mailer backs local development.
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/reelsmith/reelsmith/internal/config"
)

const dialTimeout = 15 * time.Second

// Mailer sends one-time codes to users.
type Mailer interface {
	SendOTP(ctx context.Context, to, code string) error
}

// SMTPMailer delivers mail through a configured SMTP relay.
type SMTPMailer struct {
	cfg config.SMTPConfig
	log *slog.Logger
}

var _ Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer builds a mailer from the smtp config section.
func NewSMTPMailer(cfg config.SMTPConfig, log *slog.Logger) *SMTPMailer {
	if log == nil {
		log = slog.Default()
	}
	return &SMTPMailer{cfg: cfg, log: log}
}

// Configured reports whether the relay settings are complete enough to send.
func (m *SMTPMailer) Configured() bool {
	return m.cfg.Host != "" && m.cfg.From != ""
}

// SendOTP implements Mailer.
func (m *SMTPMailer) SendOTP(ctx context.Context, to, code string) error {
	if !m.Configured() {
		return fmt.Errorf("smtp is not configured")
	}

	subject := "Your login code"
	body := fmt.Sprintf("Your one-time login code is %s.\r\n\r\nIt expires in 10 minutes. If you did not request it, ignore this message.\r\n", code)
	msg := m.buildMessage(to, subject, body)

	deadline := time.Now().Add(dialTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	addr := net.JoinHostPort(m.cfg.Host, fmt.Sprintf("%d", m.cfg.Port))
	if err := m.deliver(addr, deadline, to, msg); err != nil {
		return fmt.Errorf("failed to send otp mail: %w", err)
	}
	m.log.Info("otp mail sent", slog.String("host", m.cfg.Host))
	return nil
}

func (m *SMTPMailer) buildMessage(to, subject, body string) []byte {
	from := m.cfg.From
	if m.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", m.cfg.FromName, m.cfg.From)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

func (m *SMTPMailer) deliver(addr string, deadline time.Time, to string, msg []byte) error {
	dialer := &net.Dialer{Deadline: deadline}

	var conn net.Conn
	var err error
	if m.cfg.UseSSL {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: m.cfg.Host})
	} else {
		conn, err = dialer.Dial("tcp", addr)
	}
	if err != nil {
		return err
	}
	_ = conn.SetDeadline(deadline)

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer client.Close()

	if !m.cfg.UseSSL {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
				return err
			}
		}
	}
	if m.cfg.User != "" {
		auth := smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return err
		}
	}

	if err := client.Mail(m.cfg.From); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// LogMailer prints codes to the log instead of sending mail. Only for
// development setups with auth.dev_print_code enabled.
type LogMailer struct {
	log *slog.Logger
}

var _ Mailer = (*LogMailer)(nil)

// NewLogMailer builds a mailer that logs instead of sending.
func NewLogMailer(log *slog.Logger) *LogMailer {
	if log == nil {
		log = slog.Default()
	}
	return &LogMailer{log: log}
}

// SendOTP implements Mailer.
func (m *LogMailer) SendOTP(_ context.Context, to, code string) error {
	m.log.Info("dev otp code", slog.String("email", to), slog.String("code", code))
	return nil
}
