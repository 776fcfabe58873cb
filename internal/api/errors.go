package api

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrAuthentication matches *AuthenticationError.
	ErrAuthentication = errors.New("authentication failed")

	// ErrNotAuthenticated matches *NotAuthenticatedError.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrRequest matches *RequestError.
	ErrRequest = errors.New("request failed")

	// ErrNetwork matches *NetworkError.
	ErrNetwork = errors.New("network error")

	// ErrNoRefreshToken is the refresh failure when no refresh token is stored.
	ErrNoRefreshToken = errors.New("no refresh token stored")
)

// DefaultAuthMessage is used when the server gives no reason for a 401.
const DefaultAuthMessage = "Authentication failed. Please login again."

// AuthenticationError is returned when the access token is missing or
// rejected and could not be refreshed. Credentials are cleared before it is
// returned.
type AuthenticationError struct {
	// Message is the server-supplied reason, if any.
	Message string
	// Cause is the refresh failure or other underlying error.
	Cause error
}

// NewAuthenticationError creates an AuthenticationError.
func NewAuthenticationError(message string, cause error) *AuthenticationError {
	return &AuthenticationError{Message: message, Cause: cause}
}

func (e *AuthenticationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = DefaultAuthMessage
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	return msg
}

func (e *AuthenticationError) Unwrap() error { return e.Cause }

// Is supports errors.Is(err, ErrAuthentication).
func (e *AuthenticationError) Is(target error) bool { return target == ErrAuthentication }

// NotAuthenticatedError is returned on 403. Credentials are cleared before it
// is returned.
type NotAuthenticatedError struct {
	Message string
}

func (e *NotAuthenticatedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "Not authenticated"
}

// Is supports errors.Is(err, ErrNotAuthenticated).
func (e *NotAuthenticatedError) Is(target error) bool { return target == ErrNotAuthenticated }

// RequestError is any other non-2xx response.
type RequestError struct {
	// Status is the HTTP status code.
	Status int
	// Message is the server's detail, or "HTTP error! status: <code>".
	Message string
}

func (e *RequestError) Error() string { return e.Message }

// Is supports errors.Is(err, ErrRequest).
func (e *RequestError) Is(target error) bool { return target == ErrRequest }

// NetworkError is a transport-level failure: unreachable host, timeout,
// cancelled context.
type NetworkError struct {
	Cause error
}

func (e *NetworkError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("network error: %v", e.Cause)
	}
	return "network error"
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// Is supports errors.Is(err, ErrNetwork).
func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// IsAuthError reports whether err means the session is gone.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthentication) || errors.Is(err, ErrNotAuthenticated)
}
