// Package common defines shared constants, sentinel errors and small helpers
// used across the report vault server and CLI. Callers should use errors.Is
// to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// ErrDecryption is the single undifferentiated decryption failure: wrong
	// passphrase, wrong identifier, or corrupted ciphertext all map to it.
	ErrDecryption = errors.New("incorrect passphrase")

	// Key hashing errors.
	ErrConfiguration    = errors.New("hasher configuration error")
	ErrUnknownAlgorithm = errors.New("unknown hashing algorithm")
	ErrInvalidSalt      = errors.New("invalid salt")
	ErrInvalidEncoding  = errors.New("invalid encoded key")

	// Matching errors.
	ErrMatchingPass = errors.New("matching pass failed")

	// Validation / lifecycle errors.
	ErrValidation       = errors.New("validation error")
	ErrAlreadySubmitted = errors.New("report already submitted")
)
