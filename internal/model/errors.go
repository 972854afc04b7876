package model

import "errors"

var (
	// User related errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrCredentialNotFound = errors.New("credential not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPasswordPolicy     = errors.New("password does not satisfy policy")

	// Token related errors
	ErrInvalidToken  = errors.New("invalid token")
	ErrTokenExpired  = errors.New("token expired")
	ErrNotLoggedIn   = errors.New("not logged in")
	ErrKeyNotFound   = errors.New("signing key not found")
	ErrEntropySource = errors.New("random source failure")

	// Permission/Access related errors
	ErrForbidden = errors.New("forbidden")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
