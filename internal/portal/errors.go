package portal

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRedirect means a strict login was answered without a redirect.
	ErrNoRedirect = errors.New("login did not redirect")
	// ErrUnexpectedLanding means a strict login redirected outside the authenticated area.
	ErrUnexpectedLanding = errors.New("login redirected outside the authenticated area")
	// ErrNoData means the listing response had no aaData field.
	ErrNoData = errors.New("listing response has no aaData field")
)

// AuthenticationError reports a rejected or failed login.
type AuthenticationError struct {
	StatusCode int
	Err        error
}

func (e *AuthenticationError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("portal login failed (status %d): %v", e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("portal login failed: %v", e.Err)
	default:
		return fmt.Sprintf("portal login failed: status %d", e.StatusCode)
	}
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// FetchError reports a failed listing request.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
