// Package api is the HTTP client for the task-list REST API.
//
// Every request carries the stored access token as a bearer credential. A 401
// triggers exactly one refresh-and-retry; a second 401, a 403 or a failed
// refresh clears the session and fails with an authentication error.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"tasklist/internal/session"
)

const (
	// DefaultBaseURL is used when no base URL is configured.
	DefaultBaseURL = "http://localhost:8001/api"

	// DefaultTimeout bounds a single HTTP round trip.
	DefaultTimeout = 10 * time.Second

	// RefreshEndpoint exchanges a refresh token for a new access token.
	RefreshEndpoint = "/auth/refresh"

	// maxResponseSize caps how much of a response body is read.
	maxResponseSize = 10 << 20
)

// Client sends requests to the API and manages the token refresh cycle.
// It is safe for concurrent use.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	store      *session.Store
	logger     *slog.Logger
	metrics    *Metrics

	refreshGroup singleflight.Group
}

// NewClient creates a client that reads and updates credentials in store.
func NewClient(store *session.Store, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		timeout: DefaultTimeout,
		store:   store,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	return c
}

// BaseURL returns the resolved API base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Store returns the credential store the client writes to.
func (c *Client) Store() *session.Store { return c.store }

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// response is a fully read HTTP response.
type response struct {
	status      int
	contentType string
	body        []byte
	// token is the access token the request was sent with.
	token string
}

func (r *response) ok() bool { return r.status >= 200 && r.status < 300 }

// Request sends body (JSON-encoded, may be nil) to endpoint and returns the
// JSON response body, or nil when the response has no JSON content.
//
// Failures are *AuthenticationError, *NotAuthenticatedError, *RequestError or
// *NetworkError.
func (c *Client) Request(ctx context.Context, endpoint, method string, body any, headers http.Header) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	start := time.Now()
	reqID := uuid.NewString()
	log := c.logger.With("method", method, "endpoint", endpoint, "request_id", reqID)

	resp, err := c.send(ctx, method, endpoint, payload, headers, reqID, true)
	if err == nil && resp.status == http.StatusUnauthorized {
		log.Debug("access token rejected, refreshing")
		if _, rerr := c.refresh(ctx, resp.token); rerr != nil {
			if ctx.Err() != nil {
				log.Debug("request cancelled during refresh", "error", rerr)
				c.metrics.observeRequest(method, OutcomeNetworkError, start)
				return nil, rerr
			}
			log.Debug("token refresh failed", "error", rerr)
			c.metrics.observeRequest(method, OutcomeAuthError, start)
			return nil, NewAuthenticationError(errorDetail(resp.body), rerr)
		}
		resp, err = c.send(ctx, method, endpoint, payload, headers, reqID, true)
	}
	if err != nil {
		log.Debug("api request failed", "error", err)
		c.metrics.observeRequest(method, OutcomeNetworkError, start)
		return nil, err
	}

	switch {
	case resp.status == http.StatusUnauthorized:
		c.clearSession(ctx, log)
		log.Debug("access token rejected after refresh", "status", resp.status)
		c.metrics.observeRequest(method, OutcomeAuthError, start)
		return nil, NewAuthenticationError(errorDetail(resp.body), nil)

	case resp.status == http.StatusForbidden:
		c.clearSession(ctx, log)
		log.Debug("request forbidden", "status", resp.status)
		c.metrics.observeRequest(method, OutcomeForbidden, start)
		return nil, &NotAuthenticatedError{Message: errorDetail(resp.body)}

	case !resp.ok():
		reqErr := &RequestError{Status: resp.status, Message: errorMessage(resp.body, resp.status)}
		log.Debug("api request failed", "status", resp.status, "error", reqErr)
		c.metrics.observeRequest(method, OutcomeRequestError, start)
		return nil, reqErr
	}

	c.metrics.observeRequest(method, OutcomeOK, start)
	if !strings.Contains(resp.contentType, "application/json") || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil, nil
	}
	return json.RawMessage(resp.body), nil
}

// Do is Request followed by decoding the response into out.
// out may be nil; an empty response leaves out untouched.
func (c *Client) Do(ctx context.Context, method, endpoint string, body, out any) error {
	raw, err := c.Request(ctx, endpoint, method, body, nil)
	if err != nil {
		return err
	}
	if out == nil || raw == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// send performs one round trip. Transport failures come back as *NetworkError.
func (c *Client) send(ctx context.Context, method, endpoint string, payload []byte, headers http.Header, reqID string, withAuth bool) (*response, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", reqID)

	var used string
	if withAuth {
		tok, err := c.store.Token(ctx)
		switch {
		case errors.Is(err, session.ErrNoToken):
		case errors.Is(err, session.ErrCorrupt):
			// unreadable credentials are dropped; the request goes out unauthenticated
			c.logger.Warn("discarding unreadable session", "error", err)
			c.clearSession(ctx, c.logger)
		case err != nil:
			return nil, fmt.Errorf("read credentials: %w", err)
		default:
			tok.SetAuthHeader(req)
			used = tok.AccessToken
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &NetworkError{Cause: fmt.Errorf("read response body: %w", err)}
	}

	return &response{
		status:      resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
		body:        body,
		token:       used,
	}, nil
}

func (c *Client) clearSession(ctx context.Context, log *slog.Logger) {
	if err := c.store.Clear(ctx); err != nil {
		log.Error("failed to clear credentials", "error", err)
	}
}
