package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/systmms/credbox/pkg/codec"
	"github.com/systmms/credbox/pkg/keyspace"
	"github.com/systmms/credbox/pkg/vault"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// VaultError wraps a backend failure with a suggestion derived from its status
func VaultError(backend string, operation string, err error) error {
	return UserError{
		Message:    fmt.Sprintf("%s vault error during %s", backend, operation),
		Details:    fmt.Sprintf("status %s (%d)", vault.StatusOf(err), int32(vault.StatusOf(err))),
		Suggestion: vaultSuggestion(backend, err),
		Err:        err,
	}
}

func vaultSuggestion(backend string, err error) string {
	switch vault.StatusOf(err) {
	case vault.StatusInteractionNotAllowed:
		return "Unlock the device or login keychain, or store the item with --accessibility after-first-unlock"
	case vault.StatusAuthFailed:
		switch {
		case strings.HasPrefix(backend, "aws"):
			return "Check IAM permissions and AWS credentials ('aws sts get-caller-identity')"
		case strings.HasPrefix(backend, "gcp"):
			return "Check the service account has roles/secretmanager.admin on the project"
		}
		return "Grant this process access to the credential store"
	case vault.StatusNotAvailable:
		if backend == "keyring" {
			return "No keyring service is running. On Linux start a Secret Service provider such as gnome-keyring"
		}
		return "The backend is unreachable. Check network access and backend configuration"
	case vault.StatusDecode:
		return "The stored item is corrupted. Delete it and write it again"
	case vault.StatusParam:
		return "The backend rejected the key or value. Check name length limits for this backend"
	case vault.StatusIO:
		return "Check that the vault file or database is writable"
	}
	return ""
}

// IsRetryable reports whether err is a transient backend condition
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	switch vault.StatusOf(err) {
	case vault.StatusNotAvailable, vault.StatusIO, vault.StatusInteractionNotAllowed:
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"timeout",
		"temporary failure",
		"connection reset",
		"rate limit",
		"throttling",
		"too many requests",
	} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	// Already a user-friendly error
	var ue UserError
	if errors.As(err, &ue) {
		return ue
	}
	var ce ConfigError
	if errors.As(err, &ce) {
		return ce
	}

	switch {
	case errors.Is(err, keyspace.ErrEmptyKey):
		return UserError{Message: "A key is required", Suggestion: "Pass a non-empty key name", Err: err}
	case errors.Is(err, codec.ErrDecodeMismatch):
		var mismatch *codec.MismatchError
		if errors.As(err, &mismatch) {
			return UserError{
				Message:    "Stored value has a different type",
				Details:    fmt.Sprintf("expected %s, found %s", mismatch.Want, mismatch.Got),
				Suggestion: "Read it with --type matching the stored value",
				Err:        err,
			}
		}
		return UserError{Message: "Stored value could not be decoded", Suggestion: "Delete the key and write it again", Err: err}
	case errors.Is(err, codec.ErrUnsupportedType):
		return UserError{
			Message:    "Value cannot be stored with the configured encoding",
			Suggestion: "Use the archive generation ('generation: archive' in credbox.yaml)",
			Err:        err,
		}
	}

	var verr *vault.Error
	if errors.As(err, &verr) {
		return UserError{
			Message:    fmt.Sprintf("Vault %s failed", verr.Op),
			Details:    verr.Status.String(),
			Suggestion: vaultSuggestion("", err),
			Err:        err,
		}
	}

	// Unwrap to get the root cause
	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}
	errStr := rootErr.Error()

	if strings.Contains(errStr, "yaml:") {
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	// Return original error if we can't simplify it
	return err
}
