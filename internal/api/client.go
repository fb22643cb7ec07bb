// Package api is the HTTP client for the tada REST backend.
package api

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
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/Makepad-fr/tada-client/internal/apperr"
	"github.com/Makepad-fr/tada-client/internal/logging"
)

// maxBody caps how much of a response we are willing to read.
const maxBody = 4 << 20

// CredentialAttacher adds the bearer header to an outbound request.
type CredentialAttacher interface {
	AttachCredential(req *http.Request)
}

// Client talks to the backend. Safe for concurrent use.
type Client struct {
	base *url.URL
	http *http.Client
	log  *log.Logger
	now  func() time.Time

	mu    sync.RWMutex
	creds CredentialAttacher
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.http
		hc.Timeout = d
		c.http = &hc
	}
}

// WithLogger sets the request logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithCredentials sets the attacher used on authenticated calls.
func WithCredentials(a CredentialAttacher) Option {
	return func(c *Client) { c.creds = a }
}

// WithClock sets the clock used to fill missing record timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New returns a client for the API rooted at baseURL, e.g.
// http://localhost:8000/api.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("api url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("api url %q must be absolute", baseURL)
	}
	c := &Client{
		base: u,
		http: &http.Client{Timeout: 10 * time.Second},
		log:  logging.Discard(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string { return c.base.String() }

// UseCredentials binds the attacher after construction.
func (c *Client) UseCredentials(a CredentialAttacher) {
	c.mu.Lock()
	c.creds = a
	c.mu.Unlock()
}

type request struct {
	op     string
	method string
	path   []string
	query  url.Values
	body   any
	authed bool
}

// do sends r and decodes a 2xx JSON body into out (when non-nil).
func (c *Client) do(ctx context.Context, r request, out any) error {
	u := c.base.JoinPath(r.path...)
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return apperr.Wrap(apperr.Validation, r.op, fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return apperr.Wrap(apperr.Network, r.op, err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.authed {
		c.mu.RLock()
		creds := c.creds
		c.mu.RUnlock()
		if creds != nil {
			creds.AttachCredential(req)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("request failed", "op", r.op, "method", r.method, "url", u.Redacted(), "request_id", reqID, "err", err)
		return &apperr.Error{Kind: apperr.Network, Op: r.op, Message: networkMessage(err), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	c.log.Debug("request",
		"op", r.op, "method", r.method, "url", u.Redacted(),
		"status", resp.StatusCode, "request_id", reqID, "took", time.Since(start).Round(time.Millisecond))
	if err != nil {
		return &apperr.Error{Kind: apperr.Network, Op: r.op, Message: networkMessage(err), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		kind := apperr.Fetch
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			kind = apperr.Auth
		}
		return &apperr.Error{
			Kind:    kind,
			Op:      r.op,
			Message: serverMessage(resp.StatusCode, data),
			Status:  resp.StatusCode,
		}
	}

	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return &apperr.Error{Kind: apperr.Fetch, Op: r.op, Message: "empty response body", Status: resp.StatusCode}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &apperr.Error{Kind: apperr.Fetch, Op: r.op, Message: "unexpected response: " + err.Error(), Status: resp.StatusCode, Err: err}
	}
	return nil
}

func networkMessage(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	case errors.Is(err, context.Canceled):
		return "request canceled"
	}
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Err != nil {
		return "cannot reach server: " + uerr.Err.Error()
	}
	return "cannot reach server: " + err.Error()
}

// serverMessage pulls a displayable message out of an error body. The
// backend answers {"detail": "..."}; validation failures carry a list.
func serverMessage(status int, data []byte) string {
	var body struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil {
		if msg := detailMessage(body.Detail); msg != "" {
			return msg
		}
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	if text := http.StatusText(status); text != "" {
		return fmt.Sprintf("%s (%d)", text, status)
	}
	return fmt.Sprintf("HTTP %d", status)
}

func detailMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var list []struct {
		Msg string `json:"msg"`
		Loc []any  `json:"loc"`
	}
	if json.Unmarshal(raw, &list) == nil {
		msgs := make([]string, 0, len(list))
		for _, d := range list {
			if d.Msg == "" {
				continue
			}
			if n := len(d.Loc); n > 0 {
				msgs = append(msgs, fmt.Sprintf("%v: %s", d.Loc[n-1], d.Msg))
				continue
			}
			msgs = append(msgs, d.Msg)
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
