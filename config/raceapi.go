package config

import (
	"strings"
	"time"
)

// RaceAPIConfig contains upstream race service configuration: endpoint layout,
// identity provider settings, and credential cache behaviour.
type RaceAPIConfig struct {
	// Endpoint bases for the four upstream surfaces.
	MapsURL        string `env:"MAPS_URL"`
	LeaderboardURL string `env:"LEADERBOARD_URL"`
	PositionsURL   string `env:"POSITIONS_URL"`
	AccountsURL    string `env:"ACCOUNTS_URL"`

	// LeaderboardLength is the entry count requested per single-map fetch.
	LeaderboardLength int `env:"LEADERBOARD_LENGTH" envDefault:"100"`

	// RequestsPerSecond is the transport floor limiter rate. The documented
	// upstream budget is 2 req/s; callers additionally pace with fixed sleeps.
	RequestsPerSecond float64 `env:"REQUESTS_PER_SECOND" envDefault:"2"`

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`

	// Identity provider settings. IssuerURL enables OIDC endpoint discovery;
	// TokenURL overrides discovery with an explicit token endpoint.
	IssuerURL    string   `env:"ISSUER_URL"`
	TokenURL     string   `env:"TOKEN_URL"`
	ClientID     string   `env:"CLIENT_ID"`
	ClientSecret string   `env:"CLIENT_SECRET"`
	Username     string   `env:"USERNAME"`
	Password     string   `env:"PASSWORD"`
	Scopes       []string `env:"SCOPES" envSeparator:","`

	// TokenFreshness is the credential reuse window, measured from our own
	// issue timestamp rather than the upstream expiry.
	TokenFreshness time.Duration `env:"TOKEN_FRESHNESS" envDefault:"24h"`

	// TokenCacheKey overrides the shared credential cache slot.
	TokenCacheKey string `env:"TOKEN_CACHE_KEY"`
}

// Sanitize applies guardrails to upstream configuration values.
func (r *RaceAPIConfig) Sanitize() {
	r.MapsURL = strings.TrimSpace(r.MapsURL)
	r.LeaderboardURL = strings.TrimSpace(r.LeaderboardURL)
	r.PositionsURL = strings.TrimSpace(r.PositionsURL)
	r.AccountsURL = strings.TrimSpace(r.AccountsURL)
	r.IssuerURL = strings.TrimSpace(r.IssuerURL)
	r.TokenURL = strings.TrimSpace(r.TokenURL)
	r.TokenCacheKey = strings.TrimSpace(r.TokenCacheKey)

	if r.LeaderboardLength < 1 {
		r.LeaderboardLength = 100
	}
	if r.RequestsPerSecond <= 0 {
		r.RequestsPerSecond = 2
	}
	if r.Timeout <= 0 {
		r.Timeout = 30 * time.Second
	}
	if r.TokenFreshness <= 0 {
		r.TokenFreshness = 24 * time.Hour
	}
}

// Configured reports whether the upstream client has enough configuration to
// be constructed. Worker modes require it; the bare ops API does not.
func (r *RaceAPIConfig) Configured() bool {
	return r.MapsURL != "" && r.LeaderboardURL != "" &&
		r.PositionsURL != "" && r.AccountsURL != "" &&
		r.ClientID != "" && r.Username != "" && r.Password != "" &&
		(r.IssuerURL != "" || r.TokenURL != "")
}
