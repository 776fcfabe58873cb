// Package auth manages the login session: register, login, logout and
// verification against the API, mirrored into the session store.
//
// The session is either logged out or authenticated. Register and login move
// it to authenticated; logout, a failed verification or a failed token
// refresh move it back.
package auth

import (
	"context"
	"log/slog"
	"net/http"

	"tasklist/internal/api"
	"tasklist/internal/service"
	"tasklist/internal/session"
)

// API endpoints used by the manager.
const (
	RegisterEndpoint = "/auth/register"
	LoginEndpoint    = "/auth/login"
	VerifyEndpoint   = "/auth/verify-token"
	ProfileEndpoint  = "/auth/profile"
)

// verifyFailedMessage marks a registration whose fresh token did not validate.
const verifyFailedMessage = "registration succeeded but the issued token did not validate"

// Result is the token pair returned by register and login.
type Result struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

func (r Result) complete() bool {
	return r.AccessToken != "" && r.RefreshToken != ""
}

// Profile is the authenticated user's profile.
type Profile struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	CreatedAt service.Timestamp `json:"created_at"`
}

type credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registration struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type verifyResponse struct {
	Valid bool   `json:"valid"`
	Email string `json:"email"`
}

// Manager is the auth session manager.
type Manager struct {
	client *api.Client
	store  *session.Store
	logger *slog.Logger
}

// NewManager creates a manager over client. Credentials are kept in the
// client's store. A nil logger uses slog.Default().
func NewManager(client *api.Client, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{client: client, store: client.Store(), logger: logger}
}

// Register creates an account and opens a session for it. The new token is
// verified right away; if that fails the session is cleared and an
// *api.AuthenticationError is returned. A response without both tokens
// returns false and no error.
func (m *Manager) Register(ctx context.Context, email, password string) (bool, error) {
	body := registration{Email: email, Password: password}
	if err := service.Validate(body); err != nil {
		return false, err
	}

	var res Result
	if err := m.client.Do(ctx, http.MethodPost, RegisterEndpoint, body, &res); err != nil {
		m.logger.Debug("registration failed", "email", email, "error", err)
		return false, err
	}
	if !res.complete() {
		m.logger.Debug("registration returned no tokens", "email", email)
		return false, nil
	}
	if err := m.open(ctx, email, res); err != nil {
		return false, err
	}

	valid, err := m.Verify(ctx)
	if err != nil || !valid {
		m.logger.Debug("token verification after registration failed", "email", email, "error", err)
		m.clear(ctx)
		return false, api.NewAuthenticationError(verifyFailedMessage, err)
	}
	return true, nil
}

// Login opens a session. A response without both tokens returns false and
// leaves the store untouched.
func (m *Manager) Login(ctx context.Context, email, password string) (bool, error) {
	body := credentials{Email: email, Password: password}
	if err := service.Validate(body); err != nil {
		return false, err
	}

	var res Result
	if err := m.client.Do(ctx, http.MethodPost, LoginEndpoint, body, &res); err != nil {
		m.logger.Debug("login failed", "email", email, "error", err)
		return false, err
	}
	if !res.complete() {
		m.logger.Debug("login returned no tokens", "email", email)
		return false, nil
	}
	if err := m.open(ctx, email, res); err != nil {
		return false, err
	}
	return true, nil
}

// Logout clears the session. Calling it again is a no-op.
func (m *Manager) Logout(ctx context.Context) error {
	return m.store.Clear(ctx)
}

// IsAuthenticated reports whether the authenticated marker is set and an
// access token is stored. Either one alone is not a session.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	marker, err := m.store.Get(ctx, session.KindAuthenticated)
	if err != nil {
		m.logger.Error("failed to read session", "error", err)
		return false
	}
	if marker != "true" {
		return false
	}
	access, err := m.store.Get(ctx, session.KindAccess)
	if err != nil {
		m.logger.Error("failed to read session", "error", err)
		return false
	}
	return access != ""
}

// Verify asks the server whether the current token is valid. It returns
// false without a call when there is no local session. Any failure, or a
// negative answer, clears the session.
func (m *Manager) Verify(ctx context.Context) (bool, error) {
	if !m.IsAuthenticated(ctx) {
		return false, nil
	}

	var res verifyResponse
	if err := m.client.Do(ctx, http.MethodPost, VerifyEndpoint, nil, &res); err != nil {
		m.logger.Debug("token verification failed", "error", err)
		m.clear(ctx)
		return false, err
	}
	if !res.Valid {
		m.logger.Debug("server reported token invalid")
		m.clear(ctx)
		return false, nil
	}
	return true, nil
}

// CurrentUser returns the stored email, falling back to the access token's
// subject. The value is for display only.
func (m *Manager) CurrentUser(ctx context.Context) string {
	email, err := m.store.Get(ctx, session.KindEmail)
	if err != nil {
		m.logger.Error("failed to read session", "error", err)
		return ""
	}
	if email != "" {
		return email
	}

	access, err := m.store.Get(ctx, session.KindAccess)
	if err != nil || access == "" {
		return ""
	}
	sub, ok := session.Subject(access)
	if !ok {
		m.logger.Debug("access token has no readable subject")
		return ""
	}
	return sub
}

// Profile fetches the user's profile.
func (m *Manager) Profile(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := m.client.Do(ctx, http.MethodGet, ProfileEndpoint, nil, &p); err != nil {
		m.logger.Debug("failed to fetch profile", "error", err)
		return nil, err
	}
	return &p, nil
}

func (m *Manager) open(ctx context.Context, email string, res Result) error {
	return m.store.SetSession(ctx, session.Session{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		Email:        email,
	})
}

func (m *Manager) clear(ctx context.Context) {
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Error("failed to clear session", "error", err)
	}
}
