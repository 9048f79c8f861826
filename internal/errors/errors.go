package errors

import (
	"errors"
	"fmt"
)

// Common error types for the hub client
var (
	// Session errors
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNoSession        = errors.New("no session")
	ErrSessionCorrupt   = errors.New("persisted session is corrupt")

	// Token errors
	ErrNoRefreshToken  = errors.New("no refresh token")
	ErrRefreshRejected = errors.New("refresh token rejected")
	ErrNoAccessToken   = errors.New("no access token")

	// Redirect errors
	ErrUnsafeRedirect = errors.New("unsafe redirect path")

	// Storage errors
	ErrNotFound   = errors.New("not found")
	ErrInvalidKey = errors.New("invalid key")

	// General errors
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
	ErrNoInput     = errors.New("no input")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
