// Package smtp delivers digest emails through a plain SMTP relay.
package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/slipstreamlabs/recordwatch/config"
	"github.com/slipstreamlabs/recordwatch/internal/core"
	apperrors "github.com/slipstreamlabs/recordwatch/internal/errors"
)

// MailerOptions groups dependencies for the SMTP mailer.
type MailerOptions struct {
	Config config.SMTPConfig
	Logger *slog.Logger
}

// Mailer implements core.Mailer against an SMTP relay. Each Send dials a
// fresh connection; digest volume is low enough that connection reuse is not
// worth the bookkeeping.
type Mailer struct {
	cfg    config.SMTPConfig
	logger *slog.Logger
}

// NewMailer constructs a Mailer. The config must carry a host and sender.
func NewMailer(opts MailerOptions) (*Mailer, error) {
	if strings.TrimSpace(opts.Config.Host) == "" {
		return nil, errors.New("smtp host is required")
	}
	if strings.TrimSpace(opts.Config.From) == "" {
		return nil, errors.New("smtp sender address is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Mailer{
		cfg:    opts.Config,
		logger: logger.With("component", "smtp_mailer"),
	}, nil
}

// Send delivers one message, retrying transient failures with a short linear
// backoff. Permanent rejections (5xx) are returned immediately.
func (m *Mailer) Send(ctx context.Context, msg core.MailMessage) error {
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return apperrors.Validation("mail recipient is required")
	}

	body := m.buildMessage(to, msg)

	attempts := m.cfg.RetryLimit + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := range attempts {
		err := m.deliver(ctx, to, body)
		if err == nil {
			if attempt > 0 {
				m.logger.InfoContext(ctx, "mail delivered after retry", "to", to, "attempt", attempt+1)
			}
			return nil
		}
		lastErr = classifySMTPError(err)
		if !apperrors.IsUnavailable(lastErr) {
			return lastErr
		}
		if attempt < attempts-1 {
			delay := time.Duration(attempt+1) * time.Second
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					<-timer.C
				}
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	return lastErr
}

// buildMessage assembles the RFC 5322 envelope. Digest bodies are plain text.
func (m *Mailer) buildMessage(to string, msg core.MailMessage) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("From: %s\r\n", m.cfg.From))
	b.WriteString(fmt.Sprintf("To: %s\r\n", to))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", sanitizeHeader(msg.Subject)))
	b.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z)))
	b.WriteString(fmt.Sprintf("Message-ID: <%s@%s>\r\n", uuid.NewString(), m.cfg.Host))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")
	return b.String()
}

// sanitizeHeader strips CR/LF so message fields cannot inject extra headers.
func sanitizeHeader(value string) string {
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.ReplaceAll(value, "\n", " ")
	return strings.TrimSpace(value)
}

func (m *Mailer) deliver(ctx context.Context, to, body string) error {
	addr := net.JoinHostPort(m.cfg.Host, fmt.Sprintf("%d", m.cfg.Port))

	dialer := &net.Dialer{Timeout: m.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect to smtp relay: %w", err)
	}
	defer func() { _ = conn.Close() }()

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer func() { _ = client.Close() }()

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsConfig := &tls.Config{
			ServerName: m.cfg.Host,
			MinVersion: tls.VersionTLS12,
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	if m.cfg.Username != "" && m.cfg.Password != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("open message body: %w", err)
	}
	if _, err := writer.Write([]byte(body)); err != nil {
		return fmt.Errorf("write message body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finish message body: %w", err)
	}

	// A QUIT failure after DATA is accepted does not lose the message.
	_ = client.Quit()
	return nil
}

// classifySMTPError maps relay responses onto the application error taxonomy.
// 4xx replies and connection-level failures are retryable; 5xx replies mean
// the relay rejected the message outright.
func classifySMTPError(err error) error {
	var proto *textproto.Error
	if errors.As(err, &proto) {
		if proto.Code >= 400 && proto.Code < 500 {
			return apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "smtp relay deferred message")
		}
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, "smtp relay rejected message")
	}
	return apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "smtp delivery failed")
}

// NopMailer logs instead of sending. Used in dev when no relay is configured
// so the digest worker can run end to end.
type NopMailer struct {
	logger *slog.Logger
}

// NewNopMailer constructs a NopMailer.
func NewNopMailer(logger *slog.Logger) *NopMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &NopMailer{logger: logger.With("component", "nop_mailer")}
}

// Send logs the message and drops it.
func (m *NopMailer) Send(ctx context.Context, msg core.MailMessage) error {
	m.logger.InfoContext(ctx, "mail delivery disabled, dropping message",
		"to", msg.To,
		"subject", msg.Subject,
		"body_bytes", len(msg.Body),
	)
	return nil
}
