package config

import (
	"strings"
	"time"
)

// OpsConfig contains ops API server configuration.
type OpsConfig struct {
	// Addr is the address to bind the ops API server to.
	Addr string `env:"OPS_ADDR" envDefault:":8080"`

	// APIToken is the static bearer token required on /api/* routes.
	// Empty disables authentication (development only; Sanitize leaves it
	// alone so the server can refuse to start outside dev mode).
	APIToken string `env:"OPS_API_TOKEN"`

	// MaxConns caps concurrent accepted connections on the listener.
	MaxConns int `env:"OPS_MAX_CONNS" envDefault:"256"`

	// ReadTimeout bounds request header+body reads.
	ReadTimeout time.Duration `env:"OPS_READ_TIMEOUT" envDefault:"15s"`

	// WriteTimeout bounds response writes.
	WriteTimeout time.Duration `env:"OPS_WRITE_TIMEOUT" envDefault:"30s"`

	// ShutdownGrace is how long graceful shutdown waits for in-flight requests.
	ShutdownGrace time.Duration `env:"OPS_SHUTDOWN_GRACE" envDefault:"10s"`
}

// Sanitize applies guardrails to ops API configuration values.
func (o *OpsConfig) Sanitize() {
	o.APIToken = strings.TrimSpace(o.APIToken)
	if o.MaxConns < 1 {
		o.MaxConns = 1
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 15 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 30 * time.Second
	}
	if o.ShutdownGrace <= 0 {
		o.ShutdownGrace = 10 * time.Second
	}
}
