package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"tasklist/internal/session"
)

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Refresh exchanges the stored refresh token for a new access token and
// stores it. Any failure clears the session.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	return c.refresh(ctx, "")
}

// refresh runs at most one refresh at a time. stale is the access token that
// was just rejected; if the store already holds a different one, a concurrent
// request refreshed first and that token is returned without a network call.
//
// The shared refresh runs on a context detached from the caller's
// cancellation, bounded by the client timeout. A cancelled caller stops
// waiting but the refresh finishes for everyone else.
func (c *Client) refresh(ctx context.Context, stale string) (string, error) {
	ch := c.refreshGroup.DoChan("refresh", func() (any, error) {
		rctx, cancel := c.detached(ctx)
		defer cancel()

		if stale != "" {
			current, err := c.store.Get(rctx, session.KindAccess)
			if err == nil && current != "" && current != stale {
				return current, nil
			}
		}
		tok, err := c.doRefresh(rctx)
		c.metrics.observeRefresh(err)
		return tok, err
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", &NetworkError{Cause: ctx.Err()}
	}
}

func (c *Client) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if c.timeout <= 0 {
		return context.WithCancel(base)
	}
	return context.WithTimeout(base, c.timeout)
}

func (c *Client) doRefresh(ctx context.Context) (string, error) {
	log := c.logger.With("endpoint", RefreshEndpoint)

	refreshToken, err := c.store.Get(ctx, session.KindRefresh)
	if err != nil {
		c.clearSession(ctx, log)
		return "", err
	}
	if refreshToken == "" {
		c.clearSession(ctx, log)
		return "", ErrNoRefreshToken
	}

	payload, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return "", fmt.Errorf("failed to marshal refresh request: %w", err)
	}

	resp, err := c.send(ctx, http.MethodPost, RefreshEndpoint, payload, nil, uuid.NewString(), false)
	if err != nil {
		c.clearSession(ctx, log)
		return "", err
	}
	if !resp.ok() {
		c.clearSession(ctx, log)
		return "", &RequestError{Status: resp.status, Message: errorMessage(resp.body, resp.status)}
	}

	var out refreshResponse
	if err := json.Unmarshal(resp.body, &out); err != nil {
		c.clearSession(ctx, log)
		return "", fmt.Errorf("failed to unmarshal refresh response: %w", err)
	}
	if out.AccessToken == "" {
		c.clearSession(ctx, log)
		return "", errors.New("refresh response has no access token")
	}

	if err := c.store.Set(ctx, session.KindAccess, out.AccessToken); err != nil {
		c.clearSession(ctx, log)
		return "", err
	}
	log.Debug("access token refreshed")
	return out.AccessToken, nil
}
