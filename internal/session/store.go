// Package session stores the credentials of the current login: access token,
// refresh token, the authenticated user's email and the authenticated marker.
//
// The Store is an explicit object handed to the HTTP client and the auth
// manager. Where the values live is decided at construction time by the
// Backend (memory, encrypted file or Redis).
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
)

// Kind names one stored credential value.
type Kind string

const (
	// KindAccess is the short-lived bearer token.
	KindAccess Kind = "access_token"

	// KindRefresh is the token exchanged for a new access token.
	KindRefresh Kind = "refresh_token"

	// KindEmail is the email the session was opened with.
	KindEmail Kind = "user_email"

	// KindAuthenticated is the "true" marker written on login/register.
	KindAuthenticated Kind = "authenticated"
)

// AllKinds lists every key the Store manages, in the order Clear removes them.
var AllKinds = []Kind{KindAccess, KindRefresh, KindEmail, KindAuthenticated}

// ErrNoToken is returned by Token when no access token is stored.
var ErrNoToken = errors.New("no access token stored")

// Backend is the storage a Store writes through to.
// Save and Remove must apply all given keys in one step: a reader never sees
// half of a Save or half of a Remove.
type Backend interface {
	// Load returns the value for key and whether it was present.
	Load(ctx context.Context, key string) (string, bool, error)

	// Save writes all values.
	Save(ctx context.Context, values map[string]string) error

	// Remove deletes all keys. Missing keys are not an error.
	Remove(ctx context.Context, keys ...string) error
}

// Session is the set of values written when a login succeeds.
type Session struct {
	AccessToken  string
	RefreshToken string
	Email        string
}

// Store reads and writes session credentials through a Backend.
// It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	backend Backend
}

// NewStore creates a Store over the given backend.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// NewMemoryStore creates a Store backed by process memory.
func NewMemoryStore() *Store {
	return NewStore(NewMemoryBackend())
}

// Get returns the stored value for kind, or "" when it is absent.
func (s *Store) Get(ctx context.Context, kind Kind) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok, err := s.backend.Load(ctx, string(kind))
	if err != nil {
		return "", fmt.Errorf("load %s: %w", kind, err)
	}
	if !ok {
		return "", nil
	}
	return v, nil
}

// Set stores value under kind.
func (s *Store) Set(ctx context.Context, kind Kind, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Save(ctx, map[string]string{string(kind): value}); err != nil {
		return fmt.Errorf("save %s: %w", kind, err)
	}
	return nil
}

// SetSession stores both tokens, the email and the authenticated marker.
func (s *Store) SetSession(ctx context.Context, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values := map[string]string{
		string(KindAccess):        sess.AccessToken,
		string(KindRefresh):       sess.RefreshToken,
		string(KindAuthenticated): "true",
	}
	if sess.Email != "" {
		values[string(KindEmail)] = sess.Email
	}
	if err := s.backend.Save(ctx, values); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Clear removes every stored value. Afterwards Get returns "" for all kinds.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, len(AllKinds))
	for i, k := range AllKinds {
		keys[i] = string(k)
	}
	if err := s.backend.Remove(ctx, keys...); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Token returns the stored credentials as an oauth2 bearer token.
// Expiry is taken from the access token's exp claim when it is a JWT.
func (s *Store) Token(ctx context.Context) (*oauth2.Token, error) {
	access, err := s.Get(ctx, KindAccess)
	if err != nil {
		return nil, err
	}
	if access == "" {
		return nil, ErrNoToken
	}
	refresh, err := s.Get(ctx, KindRefresh)
	if err != nil {
		return nil, err
	}

	tok := &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
	}
	if exp, ok := Expiry(access); ok {
		tok.Expiry = exp
	}
	return tok, nil
}
