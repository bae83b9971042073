package testutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

// AssertSecretRedacted verifies that secretValue does not appear in output
// and that the [REDACTED] marker does.
func AssertSecretRedacted(t *testing.T, output, secretValue string) {
	t.Helper()

	assert.NotContains(t, output, secretValue,
		"Secret value %q should be redacted, but appears in output", secretValue)
	assert.Contains(t, output, "[REDACTED]",
		"Expected [REDACTED] marker when secret is used")
}

// AssertNoSecretLeak verifies that none of secrets appear in output.
//
// Example usage:
//
//	AssertNoSecretLeak(t, out, []string{"hunter2", "0a0b0c"})
func AssertNoSecretLeak(t *testing.T, output string, secrets []string) {
	t.Helper()

	for _, secret := range secrets {
		assert.NotContains(t, output, secret,
			"Secret %q should be redacted, but appears in output", secret)
	}
}

// AssertFileContainsAll verifies that the file at path contains every
// substring.
func AssertFileContainsAll(t *testing.T, path string, substrings []string) {
	t.Helper()

	data, err := os.ReadFile(path)
	if !assert.NoError(t, err, "Failed to read file %s", path) {
		return
	}
	for _, substr := range substrings {
		assert.Contains(t, string(data), substr,
			"File %s should contain %q", path, substr)
	}
}

// AssertErrorContains verifies that an error occurred and contains a substring.
func AssertErrorContains(t *testing.T, err error, substr string) {
	t.Helper()

	if assert.Error(t, err, "Expected an error to occur") {
		assert.Contains(t, err.Error(), substr, "Error message should contain %q", substr)
	}
}
