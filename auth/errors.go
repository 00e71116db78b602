package auth

import "errors"

// Sentinel errors for credential handling.
var (
	// ErrMissingCredential is returned when a transport is built without
	// the credential material it needs.
	ErrMissingCredential = errors.New("auth: missing credential")

	// ErrNoSigningKey is returned when a service token transport has no
	// signing key configured.
	ErrNoSigningKey = errors.New("auth: no signing key configured")

	// ErrUnsupportedKeyType is returned when the signing key type does not
	// match the configured algorithm.
	ErrUnsupportedKeyType = errors.New("auth: unsupported signing key type")
)
