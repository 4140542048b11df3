package auth

import "errors"

var (
	// ErrValidation indicates missing username or password.
	ErrValidation = errors.New("username and password are required")
	// ErrWeakPassword indicates a password below the minimum length.
	ErrWeakPassword = errors.New("password must be at least 6 characters")
	// ErrDuplicateUser indicates the username is already registered.
	ErrDuplicateUser = errors.New("user already exists")
	// ErrInvalidCredentials indicates login failure. It is returned for unknown
	// usernames and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// ErrPasswordTooLong indicates a password bcrypt cannot hash without truncation.
var ErrPasswordTooLong = errors.New("password must be at most 72 bytes")
