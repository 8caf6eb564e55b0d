// Package common defines shared constants and sentinel errors used across
// the client, the bridge and the storage layers. Callers should use errors.Is
// to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound      = errors.New("not found")
	ErrStorage       = errors.New("storage failure")
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// Input errors.
	ErrValidation = errors.New("validation error")

	// Key and crypto errors. ErrMissingKey means "set or unlock a key first",
	// ErrDecryption means "the key is wrong or the data is damaged".
	ErrMissingKey = errors.New("no password or master key available")
	ErrDecryption = errors.New("decryption failed")

	// Audit errors.
	ErrTamperDetected = errors.New("audit chain broken")

	// Backup errors.
	ErrMalformedBundle = errors.New("malformed backup bundle")
	ErrPartialRestore  = errors.New("restore skipped some items")
	ErrUnsupported     = errors.New("operation not supported by this backend")

	// Bridge auth errors.
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
