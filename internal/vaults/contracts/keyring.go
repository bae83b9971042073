// Package contracts defines the client seams of the vault backends.
// Backends talk to their SDKs through these interfaces so tests can inject
// fakes from tests/fakes.
package contracts

import "errors"

// KeyringClient abstracts the OS keyring (macOS Keychain, Linux Secret
// Service).
type KeyringClient interface {
	// Set stores secret under service/account, replacing any existing item.
	Set(service, account, secret string) error

	// Get returns ErrKeyringItemNotFound when no item exists.
	Get(service, account string) (string, error)

	// Delete returns ErrKeyringItemNotFound when no item exists.
	Delete(service, account string) error

	// IsAvailable returns true if a keyring exists on this platform
	IsAvailable() bool

	// IsHeadless returns true if running without a desktop session
	IsHeadless() bool
}

// Errors keyring clients translate platform failures into.
var (
	ErrKeyringItemNotFound = errors.New("keyring item not found")
	ErrKeyringAccessDenied = errors.New("keyring access denied")
	ErrKeyringLocked       = errors.New("keyring is locked")
	ErrKeyringUnavailable  = errors.New("keyring service unavailable")
	ErrKeyringDataTooBig   = errors.New("keyring item too large")
)
