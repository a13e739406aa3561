package domain

import (
	"errors"
	"fmt"
)

// Domain errors - these are business logic errors that should be translated
// to appropriate HTTP status codes by the handler layer

var (
	// User errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")

	// Preference errors
	ErrUnknownPlatform = errors.New("unknown platform")
	ErrUnknownChannel  = errors.New("unknown delivery channel")
	ErrUnknownReminder = errors.New("unknown reminder kind")

	// Source errors
	ErrSourceStatus     = errors.New("upstream returned non-success status")
	ErrMalformedPayload = errors.New("malformed upstream payload")

	// Stats errors
	ErrHandleNotFound = errors.New("handle not found")
	ErrRatingNotFound = errors.New("rating not found")

	// Scheduler errors
	ErrTickInProgress = errors.New("reminder tick already in progress")

	// General errors
	ErrInternalServer = errors.New("internal server error")
	ErrUnauthorized   = errors.New("unauthorized")
)

// FetchError reports a transport-level failure of one upstream adapter
type FetchError struct {
	Platform Platform
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s fetch failed: %v", e.Platform, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError wraps err for the given platform, nil stays nil
func NewFetchError(platform Platform, err error) error {
	if err == nil {
		return nil
	}
	return &FetchError{Platform: platform, Err: err}
}
