package kms

import "errors"

var (
	// ErrSizeOutOfRange is returned when a requested key size falls outside
	// the bounds of the suite or of the target key type. Nothing is
	// allocated or derived in that case.
	ErrSizeOutOfRange = errors.New("kms: key size out of range")

	// ErrInvalidContext is returned when a derivation context does not have
	// the exact length the suite requires.
	ErrInvalidContext = errors.New("kms: invalid derivation context")

	// ErrDecrypt is returned when a sealed box fails authentication.
	ErrDecrypt = errors.New("kms: decryption failed")

	// ErrInvalidShare is returned for malformed, duplicate or unauthorized
	// Shamir shares.
	ErrInvalidShare = errors.New("kms: invalid share")

	// ErrLocked is returned when the master key is requested before enough
	// shares were submitted.
	ErrLocked = errors.New("kms: locked, need more shares to unlock")
)
