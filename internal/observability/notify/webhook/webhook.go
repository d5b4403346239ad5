// Package webhook delivers job failure notifications to an operator-configured
// HTTP endpoint. The request body is shaped by JMESPath expressions evaluated
// against the failure payload, so one sink config can feed chat tools, ticket
// systems, or bespoke collectors without code changes.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/slipstreamlabs/recordwatch/internal/observability/notify"
)

// Config captures runtime configuration for the generic webhook sink.
type Config struct {
	URL    string
	Method string
	// Fields is a JSON object mapping output field names to JMESPath
	// expressions evaluated against the failure document, e.g.
	// {"text": "join(': ', [job_type, error])", "id": "job_id"}.
	// When empty, the full failure document is sent as-is.
	Fields     string
	AuthHeader string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
}

// Client posts shaped job failure documents to a webhook endpoint.
type Client struct {
	url        string
	method     string
	fields     map[string]jmespath.JMESPath
	authHeader string
	retryLimit int
	client     *http.Client
}

// NewClient builds a webhook client, compiling all field expressions up front
// so a bad mapping fails at startup rather than on the first alert.
func NewClient(cfg Config) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.URL)
	if endpoint == "" {
		return nil, errors.New("webhook url is required")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse webhook url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("webhook url scheme must be http or https, got %q", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return nil, errors.New("webhook url is missing a host")
	}

	method := strings.ToUpper(strings.TrimSpace(cfg.Method))
	if method == "" {
		method = http.MethodPost
	}
	if method != http.MethodPost && method != http.MethodPut && method != http.MethodPatch {
		return nil, fmt.Errorf("unsupported webhook method %q", method)
	}

	fields, err := compileFields(cfg.Fields)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	retries := max(cfg.RetryLimit, 0)

	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		url:        endpoint,
		method:     method,
		fields:     fields,
		authHeader: strings.TrimSpace(cfg.AuthHeader),
		retryLimit: retries,
		client:     hc,
	}, nil
}

func compileFields(raw string) (map[string]jmespath.JMESPath, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var exprs map[string]string
	if err := json.Unmarshal([]byte(raw), &exprs); err != nil {
		return nil, fmt.Errorf("parse webhook field mappings: %w", err)
	}

	fields := make(map[string]jmespath.JMESPath, len(exprs))
	for name, expr := range exprs {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		compiled, err := jmespath.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compile webhook field %q: %w", name, err)
		}
		fields[name] = compiled
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return fields, nil
}

// SendJobFailure shapes and delivers a failure document to the endpoint.
func (c *Client) SendJobFailure(ctx context.Context, payload notify.JobFailurePayload) error {
	body, err := c.buildBody(payload)
	if err != nil {
		return err
	}

	attempts := c.retryLimit + 1
	var lastErr error
	for attempt := range attempts {
		err = c.post(ctx, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < attempts-1 {
			delay := time.Duration(attempt+1) * 200 * time.Millisecond
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

func (c *Client) buildBody(payload notify.JobFailurePayload) ([]byte, error) {
	doc := failureDocument(payload)

	if len(c.fields) == 0 {
		b, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encode webhook payload: %w", err)
		}
		return b, nil
	}

	out := make(map[string]any, len(c.fields))
	for name, expr := range c.fields {
		val, err := expr.Search(doc)
		if err != nil {
			return nil, fmt.Errorf("evaluate webhook field %q: %w", name, err)
		}
		out[name] = val
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode webhook payload: %w", err)
	}
	return b, nil
}

// failureDocument flattens the payload into the JSON shape field expressions
// are written against.
func failureDocument(payload notify.JobFailurePayload) map[string]any {
	occurredAt := payload.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	metadata := make(map[string]any, len(payload.Metadata))
	for k, v := range payload.Metadata {
		metadata[k] = v
	}

	severity := strings.ToLower(strings.TrimSpace(payload.Severity))
	if severity == "" {
		severity = notify.SeverityCritical
	}

	return map[string]any{
		"job_id":      payload.JobID,
		"job_type":    payload.JobType,
		"scope":       payload.Scope,
		"error":       payload.Error,
		"error_class": payload.ErrorClass,
		"severity":    severity,
		"occurred_at": occurredAt.UTC().Format(time.RFC3339),
		"metadata":    metadata,
	}
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, c.method, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authHeader != "" {
		req.Header.Set("Authorization", c.authHeader)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.handleErrorResponse(resp)
	}

	return drainWebhookSuccess(resp)
}

func drainWebhookSuccess(resp *http.Response) error {
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			return errors.Join(
				fmt.Errorf("drain webhook response body: %w", err),
				fmt.Errorf("close response body: %w", closeErr),
			)
		}
		return fmt.Errorf("drain webhook response body: %w", err)
	}
	if err := resp.Body.Close(); err != nil {
		return fmt.Errorf("close response body: %w", err)
	}
	return nil
}

func (c *Client) handleErrorResponse(resp *http.Response) error {
	respBody, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			return errors.Join(
				fmt.Errorf("read webhook error response: %w", readErr),
				fmt.Errorf("close response body: %w", closeErr),
			)
		}
		return fmt.Errorf("read webhook error response: %w", readErr)
	}
	if err := resp.Body.Close(); err != nil {
		return fmt.Errorf("close response body: %w", err)
	}

	return fmt.Errorf("webhook endpoint %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
}
