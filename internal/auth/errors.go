package auth

import "errors"

var (
	ErrNotFound     = errors.New("auth: not found")
	ErrInvalidInput = errors.New("auth: invalid input")

	ErrInvalidCredentials  = errors.New("auth: invalid credentials")
	ErrDuplicateEmail      = errors.New("auth: email already registered")
	ErrDefaultRoleMissing  = errors.New("auth: default role is not configured")
	ErrInvalidRefreshToken = errors.New("auth: invalid refresh token")
	ErrUnauthenticated     = errors.New("auth: unauthenticated")
	ErrForbidden           = errors.New("auth: forbidden")

	// Token verification failures.
	ErrInvalidSignature = errors.New("auth: invalid token signature")
	ErrTokenExpired     = errors.New("auth: token expired")

	// ErrTokenInactive is returned by TokenStore.Rotate when the record was
	// already revoked or expired at the moment of the write.
	ErrTokenInactive = errors.New("auth: refresh token no longer active")
)
