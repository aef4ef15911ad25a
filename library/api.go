package library

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"
)

// Client is the thin request layer every controller goes through. The
// server authenticates with a session cookie, so the client carries a
// cookie jar; there is no token to store.
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
	debug   bool
}

// NewClient builds the API gateway from config. A nil logger falls back to
// slog.Default.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.APIURL, "/"),
		http: &http.Client{
			Jar:     jar,
			Timeout: cfg.HTTPTimeout,
		},
		log:   logger,
		debug: cfg.Debug,
	}, nil
}

// apiEnvelope is the error/notice shape the backend wraps most responses
// in. "message" takes precedence over "error".
type apiEnvelope struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (e apiEnvelope) text(fallback string) string {
	if e.Message != "" {
		return e.Message
	}
	if e.Error != "" {
		return e.Error
	}
	return fallback
}

// do issues one JSON request and decodes the response into out (when out is
// non-nil). Failures are normalized: transport faults become KindNetwork,
// a 401 becomes KindNotAuthenticated, other 4xx carry the server's message
// as KindAuthRejected, and 5xx are KindNetwork with the server's message.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return networkErr(err.Error(), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return networkErr("read response: "+err.Error(), err)
	}

	if c.debug {
		c.log.Debug("api request",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"duration", time.Since(start))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var env apiEnvelope
		_ = json.Unmarshal(raw, &env)
		msg := env.text(resp.Status)

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return notAuthenticated(msg)
		case resp.StatusCode < 500:
			return authRejected(msg, nil)
		default:
			return networkErr(msg, nil)
		}
	}

	if out != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return networkErr("decode response: "+err.Error(), err)
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

func (c *Client) delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, nil, out)
}
