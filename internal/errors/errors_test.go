package errors_test

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/credbox/internal/errors"
	"github.com/systmms/credbox/pkg/codec"
	"github.com/systmms/credbox/pkg/keyspace"
	"github.com/systmms/credbox/pkg/vault"
)

func TestUserErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.UserError{
		Message:    "Operation failed",
		Details:    "interaction-not-allowed",
		Suggestion: "Unlock the device",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "Operation failed")
	assert.Contains(t, errMsg, "Details: interaction-not-allowed")
	assert.Contains(t, errMsg, "Try: Unlock the device")
}

func TestUserErrorFallsBackToWrapped(t *testing.T) {
	t.Parallel()

	inner := fmt.Errorf("inner")
	err := errors.UserError{Err: inner}

	assert.Equal(t, "inner", err.Error())
	assert.ErrorIs(t, err, inner)
}

func TestConfigErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.ConfigError{
		Field:      "default_accessibility",
		Value:      "sometimes",
		Message:    "unknown accessibility",
		Suggestion: "Use one of when-unlocked, after-first-unlock, always",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "default_accessibility")
	assert.Contains(t, errMsg, "sometimes")
	assert.Contains(t, errMsg, "unknown accessibility")
	assert.Contains(t, errMsg, "after-first-unlock")
}

func TestVaultErrorSuggestions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		backend string
		status  vault.Status
		want    string
	}{
		{name: "locked", backend: "keyring", status: vault.StatusInteractionNotAllowed, want: "Unlock the device"},
		{name: "no keyring daemon", backend: "keyring", status: vault.StatusNotAvailable, want: "Secret Service"},
		{name: "aws denied", backend: "aws.secretsmanager", status: vault.StatusAuthFailed, want: "IAM permissions"},
		{name: "gcp denied", backend: "gcp.secretmanager", status: vault.StatusAuthFailed, want: "secretmanager.admin"},
		{name: "corrupt", backend: "file", status: vault.StatusDecode, want: "corrupted"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cause := vault.NewError("get", "k", tt.status, fmt.Errorf("backend said no"))
			err := errors.VaultError(tt.backend, "get", cause)

			var ue errors.UserError
			require.ErrorAs(t, err, &ue)
			assert.Contains(t, ue.Suggestion, tt.want)
			assert.Contains(t, ue.Details, tt.status.String())
			assert.ErrorIs(t, err, cause)
		})
	}
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	assert.False(t, errors.IsRetryable(nil))
	assert.True(t, errors.IsRetryable(vault.NewError("put", "k", vault.StatusNotAvailable, nil)))
	assert.True(t, errors.IsRetryable(fmt.Errorf("ThrottlingException: Rate limit exceeded")))
	assert.False(t, errors.IsRetryable(vault.NewError("put", "k", vault.StatusAuthFailed, nil)))
	assert.False(t, errors.IsRetryable(codec.ErrDecodeMismatch))
}

func TestSimplifyError(t *testing.T) {
	t.Parallel()

	assert.Nil(t, errors.SimplifyError(nil))

	mismatch := fmt.Errorf("reading token: %w", &codec.MismatchError{Want: codec.TypeString, Got: codec.TypeList})
	var ue errors.UserError
	require.ErrorAs(t, errors.SimplifyError(mismatch), &ue)
	assert.Contains(t, ue.Details, "credbox/list")

	require.ErrorAs(t, errors.SimplifyError(keyspace.ErrEmptyKey), &ue)
	assert.Equal(t, "A key is required", ue.Message)

	locked := vault.NewError("get", "k", vault.StatusInteractionNotAllowed, nil)
	require.ErrorAs(t, errors.SimplifyError(locked), &ue)
	assert.Equal(t, "Vault get failed", ue.Message)

	_, statErr := os.Stat("/definitely/not/here/credbox.yaml")
	require.ErrorAs(t, errors.SimplifyError(statErr), &ue)
	assert.Equal(t, "File or directory not found", ue.Message)

	var ce errors.ConfigError
	require.ErrorAs(t, errors.SimplifyError(fmt.Errorf("yaml: line 3: mapping values are not allowed")), &ce)

	plain := fmt.Errorf("something else")
	assert.Equal(t, plain, errors.SimplifyError(plain))
}
