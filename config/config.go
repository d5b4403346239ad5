package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - database.go: Database and cache configuration
//   - http.go: Ops API server configuration
//   - raceapi.go: Upstream race service configuration
//   - services.go: Service mode and worker configuration
//   - smtp.go: Outbound mail and digest configuration
type AppConfig struct {
	// IsDev controls development mode behavior (.env loading, seed data, nop mailer).
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// TokenEncryptionKey encrypts the cached upstream credential pair at rest.
	// Required for production, optional for development.
	TokenEncryptionKey string `env:"TOKEN_ENCRYPTION_KEY"`

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`
	Cache    CacheConfig

	// Ops API server configuration
	Ops OpsConfig

	// Service mode configuration
	Services string `env:"SERVICES" envDefault:"api"`

	// Upstream race service configuration
	RaceAPI RaceAPIConfig `envPrefix:"RACEAPI_"`

	// Worker pipeline configuration
	Pipeline PipelineConfig

	// Per-queue worker configuration
	Workers WorkersConfig

	// On-demand search configuration
	Search SearchConfig

	// Digest dispatch and outbound mail configuration
	Digest DigestConfig
	SMTP   SMTPConfig `envPrefix:"SMTP_"`

	// Scheduler configuration
	Scheduler SchedulerConfig

	// Reaper configuration
	Reaper ReaperConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Ops.Sanitize()
	c.RaceAPI.Sanitize()
	c.Pipeline.Sanitize()
	c.Workers.Sanitize()
	c.Search.Sanitize()
	c.Digest.Sanitize()
	c.SMTP.Sanitize()
	c.Scheduler.Sanitize()
	c.Reaper.Sanitize()
	c.Observability.Sanitize()

	// Check NODE_ENV for dev mode
	c.detectDevMode()
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// This is called by Sanitize() to ensure IsDev is set correctly.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsAPIEnabled returns true if the ops API server service is enabled.
func (c *AppConfig) IsAPIEnabled() bool {
	return c.serviceEnabled(ServiceModeAPI)
}

// IsSearchWorkerEnabled returns true if the map-search worker service is enabled.
func (c *AppConfig) IsSearchWorkerEnabled() bool {
	return c.serviceEnabled(ServiceModeSearchWorker)
}

// IsCheckWorkerEnabled returns true if the daily check worker service is enabled.
func (c *AppConfig) IsCheckWorkerEnabled() bool {
	return c.serviceEnabled(ServiceModeCheckWorker)
}

// IsDigestWorkerEnabled returns true if the digest dispatch worker service is enabled.
func (c *AppConfig) IsDigestWorkerEnabled() bool {
	return c.serviceEnabled(ServiceModeDigestWorker)
}

// IsSchedulerEnabled returns true if the scheduler service is enabled.
func (c *AppConfig) IsSchedulerEnabled() bool {
	return c.serviceEnabled(ServiceModeScheduler)
}

// IsReaperEnabled returns true if the reaper service is enabled.
func (c *AppConfig) IsReaperEnabled() bool {
	return c.serviceEnabled(ServiceModeReaper)
}

func (c *AppConfig) serviceEnabled(mode ServiceMode) bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[mode]
}
