package auth

import "errors"

var (
	// ErrUnauthenticated covers every reason a token cannot identify a live, active account
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidCredentials is returned for a bad email/password pair
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDisabled is returned when credentials match a suspended account
	ErrAccountDisabled = errors.New("account disabled")
	// ErrProviderUnavailable is returned when the identity provider cannot be reached
	ErrProviderUnavailable = errors.New("identity provider unavailable")
	// ErrUserNotFound is returned by user stores on a lookup miss
	ErrUserNotFound = errors.New("user not found")
)
