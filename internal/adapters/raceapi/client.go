// Package raceapi talks to the upstream race service over its JSON HTTP API,
// handling bearer credentials, endpoint layout, and wire decoding. Pacing
// stays with the callers; the transport only carries a floor limiter at the
// documented request budget.
package raceapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/slipstreamlabs/recordwatch/internal/core"
	"github.com/slipstreamlabs/recordwatch/internal/domain/model"
	apperrors "github.com/slipstreamlabs/recordwatch/internal/errors"
	"golang.org/x/time/rate"
)

const (
	// maxTopsBatch is the documented upstream cap on the batched positions
	// endpoint.
	maxTopsBatch = 50

	// defaultLeaderboardLength is how many entries a single-map leaderboard
	// fetch asks for.
	defaultLeaderboardLength = 100

	// defaultRequestsPerSecond is the documented upstream request budget.
	defaultRequestsPerSecond = 2

	// errorSnippetLimit bounds how much of an upstream error body ends up in
	// our error messages.
	errorSnippetLimit = 2048
)

// Config holds the upstream endpoint layout and transport behaviour.
type Config struct {
	// Endpoint bases. MapsURL and the two POST endpoints are used as-is;
	// LeaderboardURL gets /<map_uid>/top appended.
	MapsURL        string
	LeaderboardURL string
	PositionsURL   string
	AccountsURL    string

	// LeaderboardLength is the entry count requested per single-map fetch.
	// Defaults to defaultLeaderboardLength.
	LeaderboardLength int

	// RequestsPerSecond is the floor limiter rate. Defaults to the documented
	// budget; callers that honor their pacing contract never wait on it.
	RequestsPerSecond float64

	// Timeout applies when no HTTPClient is injected. Defaults to 30s.
	Timeout time.Duration

	HTTPClient *http.Client
}

// ClientOptions configures NewClient.
type ClientOptions struct {
	Tokens TokenSource
	Config Config
	Logger *slog.Logger
}

// Client implements core.RaceClient against the upstream JSON API.
type Client struct {
	tokens            TokenSource
	client            *http.Client
	limiter           *rate.Limiter
	logger            *slog.Logger
	leaderboardLength int

	mapsURL        *url.URL
	leaderboardURL string
	positionsURL   string
	accountsURL    string
}

// NewClient builds an upstream API client.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.Tokens == nil {
		return nil, errors.New("token source is required")
	}

	cfg := opts.Config
	mapsURL, err := parseEndpoint("maps", cfg.MapsURL)
	if err != nil {
		return nil, err
	}
	if _, err := parseEndpoint("leaderboard", cfg.LeaderboardURL); err != nil {
		return nil, err
	}
	if _, err := parseEndpoint("positions", cfg.PositionsURL); err != nil {
		return nil, err
	}
	if _, err := parseEndpoint("accounts", cfg.AccountsURL); err != nil {
		return nil, err
	}

	length := cfg.LeaderboardLength
	if length <= 0 {
		length = defaultLeaderboardLength
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		tokens: opts.Tokens,
		client: hc,
		// Burst of one spaces requests evenly at the budgeted rate.
		limiter:           rate.NewLimiter(rate.Limit(rps), 1),
		logger:            logger,
		leaderboardLength: length,
		mapsURL:           mapsURL,
		leaderboardURL:    strings.TrimRight(strings.TrimSpace(cfg.LeaderboardURL), "/"),
		positionsURL:      strings.TrimSpace(cfg.PositionsURL),
		accountsURL:       strings.TrimSpace(cfg.AccountsURL),
	}, nil
}

// ListMaps returns one page of the subject's authored maps.
func (c *Client) ListMaps(ctx context.Context, params core.ListMapsParams) (*model.MapPage, error) {
	subject := strings.TrimSpace(params.Subject)
	if subject == "" {
		return nil, apperrors.ValidationField("subject", "subject is required")
	}

	u := *c.mapsURL
	q := u.Query()
	q.Set("author", subject)
	if params.Cursor != "" {
		q.Set("cursor", params.Cursor)
	}
	if params.PageSize > 0 {
		q.Set("length", strconv.Itoa(params.PageSize))
	}
	u.RawQuery = q.Encode()

	var page mapPageDTO
	if err := c.do(ctx, http.MethodGet, u.String(), nil, &page); err != nil {
		return nil, fmt.Errorf("list maps for %s: %w", subject, err)
	}
	return page.toModel(), nil
}

// Leaderboard returns the top entries of a single map's leaderboard.
func (c *Client) Leaderboard(ctx context.Context, mapID string) ([]model.LeaderboardEntry, error) {
	id := strings.TrimSpace(mapID)
	if id == "" {
		return nil, apperrors.ValidationField("map_id", "map ID is required")
	}

	endpoint, err := url.JoinPath(c.leaderboardURL, id, "top")
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeInternal, "build leaderboard URL for %s", id)
	}
	endpoint += "?length=" + strconv.Itoa(c.leaderboardLength)

	var body leaderboardDTO
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &body); err != nil {
		return nil, fmt.Errorf("fetch leaderboard %s: %w", id, err)
	}
	return toEntries(body.Entries), nil
}

// LeaderboardTops returns the sampled heads of up to fifty maps in one call.
func (c *Client) LeaderboardTops(ctx context.Context, params core.LeaderboardTopsParams) ([]model.LeaderboardHead, error) {
	if len(params.MapIDs) == 0 {
		return nil, nil
	}
	if len(params.MapIDs) > maxTopsBatch {
		return nil, apperrors.Validationf("tops batch of %d exceeds the %d map limit", len(params.MapIDs), maxTopsBatch)
	}

	reqBody := map[string]any{"map_uids": params.MapIDs}
	if params.Depth > 0 {
		reqBody["length"] = params.Depth
	}

	var heads []leaderboardHeadDTO
	if err := c.do(ctx, http.MethodPost, c.positionsURL, reqBody, &heads); err != nil {
		return nil, fmt.Errorf("fetch leaderboard tops: %w", err)
	}

	out := make([]model.LeaderboardHead, 0, len(heads))
	for _, head := range heads {
		out = append(out, model.LeaderboardHead{
			MapID:   head.MapUID,
			Entries: toEntries(head.Entries),
		})
	}
	return out, nil
}

// Profiles resolves account IDs to display names in a single batched call.
// IDs the upstream does not know are absent from the result.
func (c *Client) Profiles(ctx context.Context, accountIDs []string) ([]model.Profile, error) {
	ids := compactIDs(accountIDs)
	if len(ids) == 0 {
		return nil, nil
	}

	var body accountNamesDTO
	if err := c.do(ctx, http.MethodPost, c.accountsURL, map[string][]string{"account_ids": ids}, &body); err != nil {
		return nil, fmt.Errorf("resolve account names: %w", err)
	}

	profiles := make([]model.Profile, 0, len(body.Names))
	for id, name := range body.Names {
		profiles = append(profiles, model.Profile{AccountID: id, DisplayName: name})
	}
	// Map iteration order is random; sort so callers see a stable result.
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].AccountID < profiles[j].AccountID })
	return profiles, nil
}

// do issues one authenticated request. On a 401 it forces exactly one token
// refresh and retries once; a second 401 is surfaced as-is.
func (c *Client) do(ctx context.Context, method, rawURL string, body, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	err = c.send(ctx, method, rawURL, token, body, out)
	if err == nil || !apperrors.IsUnauthorized(err) {
		return err
	}

	c.logger.WarnContext(ctx, "credential rejected mid-request, forcing refresh", "url", rawURL)
	token, rerr := c.tokens.ForceRefresh(ctx)
	if rerr != nil {
		return rerr
	}
	return c.send(ctx, method, rawURL, token, body, out)
}

func (c *Client) send(ctx context.Context, method, rawURL, token string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for request slot: %w", err)
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInvalidData, "decode race service response")
	}
	return nil
}

// transportError classifies a round-trip failure.
func transportError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return apperrors.Wrap(err, apperrors.ErrCodeTimeout, "race service timeout")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(err, apperrors.ErrCodeTimeout, "race service timeout")
	}
	if errors.Is(err, context.Canceled) {
		return apperrors.Wrap(err, apperrors.ErrCodeCanceled, "race service request canceled")
	}
	return apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "race service unreachable")
}

// statusError maps an upstream status to the error taxonomy.
func statusError(resp *http.Response) error {
	snippet := readSnippet(resp.Body)
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return apperrors.Unauthorized("race service rejected credentials")
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.NotFound(statusMessage(resp.Status, snippet))
	case resp.StatusCode == http.StatusTooManyRequests:
		return apperrors.RateLimited(statusMessage(resp.Status, snippet))
	case resp.StatusCode >= 500:
		return apperrors.Unavailable(statusMessage(resp.Status, snippet))
	default:
		return apperrors.Internal(statusMessage(resp.Status, snippet))
	}
}

func statusMessage(status, snippet string) string {
	if snippet == "" {
		return "race service " + status
	}
	return fmt.Sprintf("race service %s: %s", status, snippet)
}

func readSnippet(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, errorSnippetLimit))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

func parseEndpoint(name, raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%s endpoint URL is required", name)
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse %s endpoint URL: %w", name, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s endpoint URL must be absolute", name)
	}
	return u, nil
}

func compactIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
