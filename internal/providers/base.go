// Package providers implements the completion backends behind the
// core.Provider port. Adapters are thin HTTP clients; all scheduling,
// retry, and fallback logic lives in the dispatcher.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hugo-lorenzo-mato/cascade-ai/internal/core"
	"github.com/hugo-lorenzo-mato/cascade-ai/internal/logging"
)

// ClientConfig holds per-provider connection settings.
type ClientConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
	MaxTokens    int
}

// client is the shared HTTP layer under every adapter.
type client struct {
	http    *http.Client
	baseURL string
	logger  *logging.Logger
}

func newClient(cfg ClientConfig, logger *logging.Logger) *client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &client{
		http:    &http.Client{Timeout: timeout},
		baseURL: cfg.BaseURL,
		logger:  logger,
	}
}

// postJSON sends a JSON request and decodes the response into out. Errors
// come back already classified through the domain taxonomy.
func (c *client) postJSON(ctx context.Context, provider, path string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return core.ErrValidation("REQUEST_ENCODING", fmt.Sprintf("encoding %s request: %v", provider, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return core.ErrValidation("REQUEST_BUILD", fmt.Sprintf("building %s request: %v", provider, err))
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransportError(provider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return core.ErrNetwork(fmt.Sprintf("%s: reading response: %v", provider, err))
	}

	if resp.StatusCode != http.StatusOK {
		return classifyStatus(provider, resp.StatusCode, raw)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return core.ErrProvider("RESPONSE_DECODING",
			fmt.Sprintf("%s: decoding response: %v", provider, err), false)
	}
	return nil
}

// getOK reports whether a GET to path answers with a 2xx, for health
// probes.
func (c *client) getOK(ctx context.Context, path string, headers map[string]string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// classifyTransportError maps transport failures: timeouts are retryable
// timeouts, everything else is a retryable network fault.
func classifyTransportError(provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return core.ErrTimeout(fmt.Sprintf("%s: request timed out", provider))
	}
	if errors.Is(err, context.Canceled) {
		return core.ErrCancelled(fmt.Sprintf("%s: request cancelled", provider))
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return core.ErrTimeout(fmt.Sprintf("%s: request timed out", provider))
	}
	return core.ErrNetwork(fmt.Sprintf("%s: %v", provider, err))
}

// classifyStatus maps HTTP status codes onto the error taxonomy: 429 is a
// retryable rate limit, 5xx is retryable, 401/403 is fatal auth, 400 is a
// fatal malformed request.
func classifyStatus(provider string, status int, body []byte) error {
	detail := truncateBody(body)
	switch {
	case status == http.StatusTooManyRequests:
		return core.ErrRateLimit(fmt.Sprintf("%s: rate limited: %s", provider, detail))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return core.ErrAuth(fmt.Sprintf("%s: authentication failed (%d): %s", provider, status, detail))
	case status == http.StatusBadRequest:
		return core.ErrValidation("MALFORMED_REQUEST",
			fmt.Sprintf("%s: rejected request: %s", provider, detail))
	case status == http.StatusNotFound:
		return core.ErrProvider("ENDPOINT_NOT_FOUND",
			fmt.Sprintf("%s: endpoint not found: %s", provider, detail), false)
	case status >= 500:
		return core.ErrProvider("UPSTREAM_ERROR",
			fmt.Sprintf("%s: upstream error (%d): %s", provider, status, detail), true)
	default:
		return core.ErrProvider("UNEXPECTED_STATUS",
			fmt.Sprintf("%s: unexpected status %d: %s", provider, status, detail), false)
	}
}

func truncateBody(body []byte) string {
	const max = 512
	if len(body) > max {
		body = body[:max]
	}
	return string(body)
}
