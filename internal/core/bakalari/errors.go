package bakalari

import (
	"errors"
	"fmt"
)

// Sentinel errors for the token lifecycle.
var (
	// ErrNotAuthenticated means no login has happened yet.
	ErrNotAuthenticated = errors.New("bakalari: not authenticated")

	// ErrInvalidCredentials means the server rejected the username or
	// password (invalid_grant on the password grant).
	ErrInvalidCredentials = errors.New("bakalari: invalid credentials")

	// ErrRefreshExpired means the refresh token was rejected. The stored
	// token is gone and a fresh login is required.
	ErrRefreshExpired = errors.New("bakalari: refresh token expired")

	// ErrAuthenticationFailed covers other login failures, including
	// transport errors talking to the login endpoint.
	ErrAuthenticationFailed = errors.New("bakalari: authentication failed")
)

// APIError is a non-auth failure from the school API.
type APIError struct {
	Status int
	Method string
	Path   string
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bakalari: %s %s returned %d: %s", e.Method, e.Path, e.Status, e.Body)
}
