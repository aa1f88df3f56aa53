package apperrors

import (
	"errors"
)

var (
	ErrTokenUnavailable = errors.New("access token not available")
	ErrSessionInvalid   = errors.New("session invalid, re-authentication required")

	ErrClientIDMissing   = errors.New("marketplace client id not configured")
	ErrRedirectURIBroken = errors.New("redirect uri could not be determined")

	ErrStateInvalid = errors.New("state parameter invalid or expired")
)
