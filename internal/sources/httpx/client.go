// Package httpx is the shared HTTP plumbing every source driver builds its
// requests on: a klient.Client with the org's outbound proxy settings
// applied, JSON request/response helpers, and a single-retry-on-401
// discipline that asks the bound TokenGetter to refresh once before giving
// up. Drivers never construct http.Client themselves.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/worldline-go/klient"

	"github.com/airweave-core/airweave-core/internal/errkind"
	"github.com/airweave-core/airweave-core/internal/sources"
)

// Config configures a driver's outbound HTTP client.
type Config struct {
	BaseURL  string
	Proxy    string
	Insecure bool
}

// Client wraps klient.Client with bearer-token injection and a bounded
// 401-refresh-and-retry loop, shared by every source driver.
type Client struct {
	klient *klient.Client
	tok    sources.TokenGetter
}

// New builds a Client. tok supplies the bearer token; when tok is nil the
// client sends no Authorization header and does no 401 refresh. Callers
// have no way to set their own auth header per request.
func New(cfg Config, tok sources.TokenGetter) (*Client, error) {
	opts := []klient.OptionClientFn{
		klient.WithLogger(slog.Default()),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, klient.WithBaseURL(cfg.BaseURL))
	} else {
		opts = append(opts, klient.WithDisableBaseURLCheck(true))
	}
	if cfg.Proxy != "" {
		opts = append(opts, klient.WithProxy(cfg.Proxy))
	}
	if cfg.Insecure {
		opts = append(opts, klient.WithInsecureSkipVerify(true))
	}

	kc, err := klient.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("httpx: build klient client: %w", err)
	}

	return &Client{klient: kc, tok: tok}, nil
}

// JSON issues a JSON request against path (resolved against the client's
// base URL unless it's already absolute), decoding a JSON response body
// into out (a pointer, or nil to discard the body). A 401 triggers exactly
// one forced token refresh and retry; a second 401 is returned as-is.
func (c *Client) JSON(ctx context.Context, method, path string, body, out any) error {
	return c.do(ctx, method, path, body, out, true)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, allowRefresh bool) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("httpx: marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, path, reader)
	if err != nil {
		return fmt.Errorf("httpx: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if c.tok != nil {
		token, err := c.tok.Token(ctx)
		if err != nil {
			return errkind.Wrap(errkind.TokenRefresh, "token_resolve_failed", err, "httpx: resolve token")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	var statusCode int
	var rawBody []byte
	execErr := c.klient.Do(req, func(r *http.Response) error {
		statusCode = r.StatusCode
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return fmt.Errorf("httpx: read response body: %w", err)
		}
		rawBody = data
		return nil
	})

	if execErr != nil {
		return fmt.Errorf("httpx: %s %s: %w", method, path, execErr)
	}

	if statusCode == http.StatusUnauthorized && allowRefresh && c.tok != nil {
		if _, err := c.tok.RefreshOnUnauthorized(ctx); err != nil {
			return errkind.Wrap(errkind.TokenRefresh, "refresh_after_401_failed", err, "httpx: refresh after 401")
		}
		return c.do(ctx, method, path, body, out, false)
	}

	if statusCode == http.StatusTooManyRequests {
		return errkind.New(errkind.RateLimit, "rate_limited", "httpx: %s %s rate limited", method, path)
	}

	if statusCode >= http.StatusBadRequest {
		return errkind.New(statusKind(statusCode), "upstream_error", "httpx: %s %s: status %d: %s", method, path, statusCode, truncate(rawBody, 500))
	}

	if out != nil && len(rawBody) > 0 {
		if err := json.Unmarshal(rawBody, out); err != nil {
			return fmt.Errorf("httpx: decode response body: %w (body: %s)", err, truncate(rawBody, 500))
		}
	}

	return nil
}

// RawBody performs a request and returns the raw response bytes without any
// JSON decoding, for drivers that download non-JSON payloads (e.g. file
// content probed before handing off to the File Downloader).
func (c *Client) RawBody(ctx context.Context, method, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, path, nil)
	if err != nil {
		return nil, fmt.Errorf("httpx: build request: %w", err)
	}

	if c.tok != nil {
		token, err := c.tok.Token(ctx)
		if err != nil {
			return nil, errkind.Wrap(errkind.TokenRefresh, "token_resolve_failed", err, "httpx: resolve token")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	var rawBody []byte
	var statusCode int
	if err := c.klient.Do(req, func(r *http.Response) error {
		statusCode = r.StatusCode
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return err
		}
		rawBody = data
		return nil
	}); err != nil {
		return nil, fmt.Errorf("httpx: %s %s: %w", method, path, err)
	}

	if statusCode >= http.StatusBadRequest {
		return nil, errkind.New(statusKind(statusCode), "upstream_error", "httpx: %s %s: status %d", method, path, statusCode)
	}

	return rawBody, nil
}

func statusKind(status int) errkind.Kind {
	switch {
	case status == http.StatusUnauthorized:
		return errkind.TokenRefresh
	case status == http.StatusForbidden:
		return errkind.Permission
	case status == http.StatusNotFound:
		return errkind.NotFound
	case status == http.StatusConflict:
		return errkind.Conflict
	case status == http.StatusTooManyRequests:
		return errkind.RateLimit
	case status >= 500:
		return errkind.ProviderError
	default:
		return errkind.Validation
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
