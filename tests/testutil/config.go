// Package testutil provides test utilities and helpers for credbox tests.
//
// It contains a credbox.yaml builder, a capturing logger that satisfies
// logging.Sink, and assertions for secret redaction.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/systmms/credbox/internal/config"
)

// TestConfigBuilder provides a fluent API for building test configurations.
//
// The builder starts with a file vault named "local" inside a temporary
// directory, selected as the backend, so commands built from it persist
// entries across invocations without touching the OS keyring.
//
// Example usage:
//
//	path := NewTestConfig(t).
//	    WithPrefix("com.example.app").
//	    WithGeneration("legacy").
//	    Write()
type TestConfigBuilder struct {
	def *config.Definition
	dir string
	t   *testing.T
}

// NewTestConfig creates a new TestConfigBuilder.
func NewTestConfig(t *testing.T) *TestConfigBuilder {
	t.Helper()

	dir := t.TempDir()
	return &TestConfigBuilder{
		def: &config.Definition{
			Version: 0,
			Backend: "local",
			Vaults: map[string]config.VaultConfig{
				"local": {
					Type:   "file",
					Config: map[string]interface{}{"path": filepath.Join(dir, "vault.db")},
				},
			},
		},
		dir: dir,
		t:   t,
	}
}

// WithPrefix sets the service prefix.
func (b *TestConfigBuilder) WithPrefix(prefix string) *TestConfigBuilder {
	b.def.Prefix = prefix
	return b
}

// WithGeneration sets the write generation ("legacy" or "archive").
func (b *TestConfigBuilder) WithGeneration(gen string) *TestConfigBuilder {
	b.def.Generation = gen
	return b
}

// WithAccessibility sets default_accessibility. Invalid values are written
// as given so that validation can be tested.
func (b *TestConfigBuilder) WithAccessibility(access string) *TestConfigBuilder {
	b.def.DefaultAccessibility = access
	return b
}

// WithVault adds a named vault.
func (b *TestConfigBuilder) WithVault(name, vaultType string, settings map[string]interface{}) *TestConfigBuilder {
	b.def.Vaults[name] = config.VaultConfig{Type: vaultType, Config: settings}
	return b
}

// WithBackend selects the vault used when no --backend is given.
func (b *TestConfigBuilder) WithBackend(name string) *TestConfigBuilder {
	b.def.Backend = name
	return b
}

// WithMetricsTextfile sets metrics.textfile.
func (b *TestConfigBuilder) WithMetricsTextfile(path string) *TestConfigBuilder {
	b.def.Metrics.Textfile = path
	return b
}

// Dir returns the builder's temporary directory.
func (b *TestConfigBuilder) Dir() string {
	return b.dir
}

// Build returns the configuration definition.
func (b *TestConfigBuilder) Build() *config.Definition {
	return b.def
}

// Write writes credbox.yaml into the temporary directory and returns its
// path.
func (b *TestConfigBuilder) Write() string {
	b.t.Helper()

	data, err := yaml.Marshal(b.def)
	if err != nil {
		b.t.Fatalf("Failed to marshal config: %v", err)
	}
	path := filepath.Join(b.dir, "credbox.yaml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		b.t.Fatalf("Failed to write config: %v", err)
	}
	return path
}
