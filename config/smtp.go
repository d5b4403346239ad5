package config

import (
	"strings"
	"time"
)

// SMTPConfig contains outbound mail relay configuration.
type SMTPConfig struct {
	// Enabled controls whether a real SMTP mailer is constructed. Disabled
	// deployments (and dev mode) get a nop mailer that logs instead.
	Enabled bool `env:"ENABLED" envDefault:"false"`

	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`

	// From is the envelope and header sender address.
	From string `env:"FROM"`

	// DialTimeout bounds the TCP connect to the relay.
	DialTimeout time.Duration `env:"DIAL_TIMEOUT" envDefault:"10s"`

	// RetryLimit is how many additional delivery attempts one send makes.
	RetryLimit int `env:"RETRY_LIMIT" envDefault:"2"`
}

// Sanitize applies guardrails to SMTP configuration values.
func (s *SMTPConfig) Sanitize() {
	s.Host = strings.TrimSpace(s.Host)
	s.From = strings.TrimSpace(s.From)
	if s.Port < 1 || s.Port > 65535 {
		s.Port = 587
	}
	if s.DialTimeout <= 0 {
		s.DialTimeout = 10 * time.Second
	}
	if s.RetryLimit < 0 {
		s.RetryLimit = 0
	}
	if s.Enabled && (s.Host == "" || s.From == "") {
		s.Enabled = false
	}
}

// DigestConfig contains daily digest dispatch configuration.
type DigestConfig struct {
	// SendConcurrency bounds the per-user email fan-out. Digest sends do not
	// touch the upstream API, so this is independent of the request budget.
	SendConcurrency int `env:"DIGEST_SEND_CONCURRENCY" envDefault:"4"`
}

// Sanitize applies guardrails to digest configuration values.
func (d *DigestConfig) Sanitize() {
	if d.SendConcurrency < 1 {
		d.SendConcurrency = 1
	}
}
