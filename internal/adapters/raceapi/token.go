package raceapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/slipstreamlabs/recordwatch/internal/core"
	"github.com/slipstreamlabs/recordwatch/internal/data/cryptoutil"
	apperrors "github.com/slipstreamlabs/recordwatch/internal/errors"
	"golang.org/x/oauth2"
)

const (
	// defaultFreshness bounds how long a cached credential pair is reused
	// before the manager renews it.
	defaultFreshness = 24 * time.Hour

	// defaultCredentialKey is the shared cache slot for the credential pair.
	defaultCredentialKey = "recordwatch:raceapi:token"
)

// TokenSource supplies bearer credentials for upstream requests.
type TokenSource interface {
	// Token returns a credential, renewing it when the cached pair is stale.
	Token(ctx context.Context) (string, error)

	// ForceRefresh renews the credential unconditionally. The transport calls
	// this once after a 401 before retrying.
	ForceRefresh(ctx context.Context) (string, error)
}

// TokenConfig holds identity provider settings for the upstream race service.
type TokenConfig struct {
	// IssuerURL enables OIDC endpoint discovery. TokenURL overrides discovery
	// with an explicit token endpoint; at least one must be set.
	IssuerURL string
	TokenURL  string

	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	Scopes       []string

	// Freshness is the reuse window measured from our own issue timestamp,
	// not the upstream expiry. Defaults to 24h.
	Freshness time.Duration

	// CacheKey overrides the shared cache slot. Defaults to
	// defaultCredentialKey.
	CacheKey string

	// HTTPClient is used for discovery and token grants. Defaults to
	// http.DefaultClient via the oauth2 package.
	HTTPClient *http.Client
}

// TokenManagerOptions configures NewTokenManager.
type TokenManagerOptions struct {
	Cache     core.CacheRepository
	Encryptor cryptoutil.Encryptor
	Config    TokenConfig
	Logger    *slog.Logger
}

// TokenManager keeps one credential pair in a shared cache and renews it with
// refresh-token and resource-owner password grants. Renewals are serialized
// in-process; cross-process writers race benignly (last writer wins, and
// refreshing twice is idempotent upstream).
type TokenManager struct {
	cache      core.CacheRepository
	encryptor  cryptoutil.Encryptor
	cfg        TokenConfig
	httpClient *http.Client
	freshness  time.Duration
	cacheKey   string
	logger     *slog.Logger

	mu       sync.Mutex
	endpoint *oauth2.Endpoint
}

// storedCredential is the JSON shape persisted to the shared cache. Encrypted
// at rest; IssuedAt is our own clock, recorded at grant time.
type storedCredential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	IssuedAt     time.Time `json:"issued_at"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// NewTokenManager creates a token manager backed by the given credential cache.
func NewTokenManager(opts TokenManagerOptions) (*TokenManager, error) {
	if opts.Cache == nil {
		return nil, errors.New("credential cache is required")
	}
	if opts.Encryptor == nil {
		return nil, errors.New("credential encryptor is required")
	}

	cfg := opts.Config
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errors.New("client ID is required")
	}
	if strings.TrimSpace(cfg.Username) == "" {
		return nil, errors.New("username is required")
	}
	if cfg.Password == "" {
		return nil, errors.New("password is required")
	}
	if strings.TrimSpace(cfg.TokenURL) == "" && strings.TrimSpace(cfg.IssuerURL) == "" {
		return nil, errors.New("issuer URL or token URL is required")
	}

	freshness := cfg.Freshness
	if freshness <= 0 {
		freshness = defaultFreshness
	}

	cacheKey := strings.TrimSpace(cfg.CacheKey)
	if cacheKey == "" {
		cacheKey = defaultCredentialKey
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &TokenManager{
		cache:      opts.Cache,
		encryptor:  opts.Encryptor,
		cfg:        cfg,
		httpClient: cfg.HTTPClient,
		freshness:  freshness,
		cacheKey:   cacheKey,
		logger:     logger,
	}, nil
}

// Token returns the cached access token while it is inside the freshness
// window, renewing it otherwise.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cred := m.load(ctx)
	if cred != nil && m.fresh(cred) {
		return cred.AccessToken, nil
	}

	renewed, err := m.renew(ctx, cred)
	if err != nil {
		return "", err
	}
	return renewed.AccessToken, nil
}

// ForceRefresh renews the credential pair regardless of freshness.
func (m *TokenManager) ForceRefresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	renewed, err := m.renew(ctx, m.load(ctx))
	if err != nil {
		return "", err
	}
	return renewed.AccessToken, nil
}

// load reads the cached credential pair. Read and decode failures degrade to
// re-authentication rather than failing the caller.
func (m *TokenManager) load(ctx context.Context) *storedCredential {
	raw, err := m.cache.Get(ctx, m.cacheKey)
	if err != nil {
		m.logger.WarnContext(ctx, "credential cache read failed", "error", err)
		return nil
	}
	if len(raw) == 0 {
		return nil
	}

	plain, err := m.encryptor.Decrypt(string(raw))
	if err != nil {
		m.logger.WarnContext(ctx, "cached credential undecryptable, re-authenticating", "error", err)
		return nil
	}

	var cred storedCredential
	if err := json.Unmarshal(plain, &cred); err != nil {
		m.logger.WarnContext(ctx, "cached credential unreadable, re-authenticating", "error", err)
		return nil
	}
	return &cred
}

// fresh reports whether the pair is still inside the freshness window. The
// window is measured from IssuedAt, never from the upstream expiry.
func (m *TokenManager) fresh(cred *storedCredential) bool {
	if cred.AccessToken == "" || cred.IssuedAt.IsZero() {
		return false
	}
	return time.Since(cred.IssuedAt) < m.freshness
}

// renew obtains a new credential pair, preferring a refresh grant when the
// previous pair carried a refresh token and falling back to the password
// grant. Callers hold m.mu.
func (m *TokenManager) renew(ctx context.Context, prev *storedCredential) (*storedCredential, error) {
	conf, err := m.oauthConfig(ctx)
	if err != nil {
		return nil, err
	}
	octx := m.oauthContext(ctx)

	var tok *oauth2.Token
	if prev != nil && prev.RefreshToken != "" {
		tok, err = refreshGrant(octx, conf, prev.RefreshToken)
		if err != nil {
			m.logger.WarnContext(ctx, "refresh grant failed, falling back to password grant", "error", err)
			tok = nil
		}
	}
	if tok == nil {
		tok, err = conf.PasswordCredentialsToken(octx, m.cfg.Username, m.cfg.Password)
		if err != nil {
			return nil, grantError(err, "authenticate with identity provider")
		}
	}

	cred := &storedCredential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		IssuedAt:     time.Now().UTC(),
		Expiry:       tok.Expiry,
	}
	if cred.RefreshToken == "" && prev != nil {
		// Providers may omit the refresh token on a refresh grant; keep the
		// previous one for the next renewal.
		cred.RefreshToken = prev.RefreshToken
	}

	m.store(ctx, cred)
	return cred, nil
}

// store persists the pair to the shared cache. The grant already succeeded,
// so a failed write is logged and only costs a re-authentication later.
func (m *TokenManager) store(ctx context.Context, cred *storedCredential) {
	plain, err := json.Marshal(cred)
	if err != nil {
		m.logger.WarnContext(ctx, "encode credential pair failed", "error", err)
		return
	}

	sealed, err := m.encryptor.Encrypt(plain)
	if err != nil {
		m.logger.WarnContext(ctx, "encrypt credential pair failed", "error", err)
		return
	}

	// The entry outlives the freshness window so a stale pair can still offer
	// its refresh token to the next renewal.
	if err := m.cache.Set(ctx, m.cacheKey, []byte(sealed), 2*m.freshness); err != nil {
		m.logger.WarnContext(ctx, "persist credential pair failed", "error", err)
	}
}

// oauthConfig builds the grant configuration, resolving the token endpoint on
// first use. Callers hold m.mu.
func (m *TokenManager) oauthConfig(ctx context.Context) (*oauth2.Config, error) {
	if m.endpoint == nil {
		if strings.TrimSpace(m.cfg.TokenURL) != "" {
			m.endpoint = &oauth2.Endpoint{TokenURL: m.cfg.TokenURL}
		} else {
			ep, err := m.discoverEndpoint(ctx)
			if err != nil {
				return nil, err
			}
			m.endpoint = &ep
		}
	}

	return &oauth2.Config{
		ClientID:     m.cfg.ClientID,
		ClientSecret: m.cfg.ClientSecret,
		Scopes:       m.cfg.Scopes,
		Endpoint:     *m.endpoint,
	}, nil
}

// discoverEndpoint fetches the issuer metadata once; later renewals reuse the
// resolved endpoint.
func (m *TokenManager) discoverEndpoint(ctx context.Context) (oauth2.Endpoint, error) {
	issuer := strings.TrimSuffix(m.cfg.IssuerURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	issuer = strings.TrimSuffix(issuer, ".well-known/openid-configuration")

	op, err := gooidc.NewProvider(m.oauthContext(ctx), issuer)
	if err != nil {
		return oauth2.Endpoint{}, apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "discover identity endpoints")
	}
	return op.Endpoint(), nil
}

// oauthContext pins the injected HTTP client for discovery and token grants.
func (m *TokenManager) oauthContext(ctx context.Context) context.Context {
	if m.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}

// refreshGrant exchanges a refresh token for a new pair. The seed token is
// already expired so TokenSource is forced through the grant instead of
// handing the seed back.
func refreshGrant(ctx context.Context, conf *oauth2.Config, refreshToken string) (*oauth2.Token, error) {
	seed := &oauth2.Token{RefreshToken: refreshToken, Expiry: time.Now().Add(-time.Minute)}
	return conf.TokenSource(ctx, seed).Token()
}

// grantError classifies a grant failure: a definitive rejection from the
// identity provider is unauthorized, anything else is the provider being
// unreachable.
func grantError(err error, op string) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, op)
	}
	return apperrors.Wrap(err, apperrors.ErrCodeUnavailable, op)
}
