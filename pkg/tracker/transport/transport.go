// Package transport sends tracker reports to the journeys HTTP API.
// Reports are best effort: nothing is retried.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 5 * time.Second

// API paths.
const (
	SessionsPath    = "/api/journeys/sessions"
	ImpressionsPath = "/api/journeys/impressions"
	ActionsPath     = "/api/journeys/actions"
)

// beaconContentType is what browsers send for keepalive beacons. The server
// decodes JSON regardless.
const beaconContentType = "text/plain;charset=UTF-8"

// ErrUnexpectedStatus is wrapped by StatusError.
var ErrUnexpectedStatus = errors.New("unexpected response status")

// StatusError reports a non-2xx response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d %s", ErrUnexpectedStatus, e.Code, e.Message)
}

func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

// SessionRequest starts a session.
type SessionRequest struct {
	VisitorID   string `json:"visitorId"`
	LandingPage string `json:"landingPage"`
	Referrer    string `json:"referrer"`
	UserAgent   string `json:"userAgent"`
}

// ImpressionRequest is an impression start or end report.
type ImpressionRequest struct {
	SessionID     string `json:"sessionId"`
	InteractionID string `json:"interactionId"`
	SectionID     string `json:"sectionId"`
	Duration      *int64 `json:"duration,omitempty"`
	ScrollDepth   *int   `json:"scrollDepth,omitempty"`
	Interactions  *int   `json:"interactions,omitempty"`
}

// ActionRequest is a discrete action report.
type ActionRequest struct {
	SessionID string         `json:"sessionId"`
	ActionID  string         `json:"actionId,omitempty"`
	Type      string         `json:"type"`
	Target    string         `json:"target"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Client calls the journeys API.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	headers http.Header
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithTimeout sets the per request timeout.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.timeout = d
		}
	}
}

// WithHeader adds a header to every request, such as edge location
// headers when running behind a proxy.
func WithHeader(key, value string) Option {
	return func(cl *Client) {
		cl.headers.Add(key, value)
	}
}

// New returns a Client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Transport: otelhttp.NewTransport(cleanhttp.DefaultPooledTransport())},
		timeout: DefaultTimeout,
		headers: make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Timeout is the per request timeout.
func (c *Client) Timeout() time.Duration { return c.timeout }

// CreateSession starts a session and returns its id.
func (c *Client) CreateSession(ctx context.Context, visitorID, landingPage, referrer, userAgent string) (string, error) {
	var resp struct {
		SessionID string `json:"sessionId"`
	}
	req := SessionRequest{VisitorID: visitorID, LandingPage: landingPage, Referrer: referrer, UserAgent: userAgent}
	if err := c.post(ctx, SessionsPath, "application/json", userAgent, req, &resp); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return resp.SessionID, nil
}

// RecordImpression sends an impression report as a beacon.
func (c *Client) RecordImpression(ctx context.Context, r ImpressionRequest) error {
	if err := c.post(ctx, ImpressionsPath, beaconContentType, "", r, nil); err != nil {
		return fmt.Errorf("record impression: %w", err)
	}
	return nil
}

// SendAction sends an action report as a beacon.
func (c *Client) SendAction(ctx context.Context, r ActionRequest) error {
	if err := c.post(ctx, ActionsPath, beaconContentType, "", r, nil); err != nil {
		return fmt.Errorf("record action: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path, contentType, userAgent string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", contentType)
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr)
		return &StatusError{Code: resp.StatusCode, Message: apiErr.Message}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
