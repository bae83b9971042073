package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/systmms/credbox/internal/errors"
	"github.com/systmms/credbox/pkg/codec"
	"github.com/systmms/credbox/pkg/vault"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credbox.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
version: 0
prefix: com.example.app
default_accessibility: after_first_unlock
generation: legacy
backend: prod
vaults:
  local:
    type: file
    path: /tmp/credbox.db
  prod:
    type: aws.secretsmanager
    region: eu-west-1
    timeout_ms: 5000
metrics:
  textfile: /tmp/credbox.prom
`)
	cfg := &Config{Path: path}
	require.NoError(t, cfg.Load())

	def := cfg.Definition
	assert.Equal(t, "com.example.app", def.Prefix)
	access, err := def.Accessibility()
	require.NoError(t, err)
	assert.Equal(t, vault.AccessibleAfterFirstUnlock, access)
	gen, err := def.EncodingGeneration()
	require.NoError(t, err)
	assert.Equal(t, codec.GenerationLegacy, gen)
	assert.Equal(t, []string{"local", "prod"}, def.VaultNames())
	assert.Equal(t, "/tmp/credbox.prom", def.Metrics.Textfile)

	name, vc := cfg.ResolveVault("")
	assert.Equal(t, "prod", name)
	assert.Equal(t, "aws.secretsmanager", vc.Type)
	assert.Equal(t, 5*time.Second, vc.Timeout())
	assert.Equal(t, map[string]interface{}{"region": "eu-west-1"}, vc.Settings())

	name, vc = cfg.ResolveVault("local")
	assert.Equal(t, "local", name)
	assert.Equal(t, "/tmp/credbox.db", vc.Settings()["path"])
	assert.Equal(t, DefaultTimeout, vc.Timeout())

	// Unconfigured names are bare types.
	name, vc = cfg.ResolveVault("memory")
	assert.Equal(t, "memory", name)
	assert.Equal(t, VaultConfig{Type: "memory"}, vc)
}

func TestParseDefaults(t *testing.T) {
	t.Parallel()

	for _, content := range []string{"", "version: 0\n"} {
		def, err := Parse([]byte(content))
		require.NoError(t, err)

		access, err := def.Accessibility()
		require.NoError(t, err)
		assert.Equal(t, vault.DefaultAccessibility, access)
		gen, err := def.EncodingGeneration()
		require.NoError(t, err)
		assert.Equal(t, codec.DefaultGeneration, gen)

		cfg := &Config{Definition: def}
		name, vc := cfg.ResolveVault("")
		assert.Equal(t, DefaultBackend, name)
		assert.Equal(t, DefaultBackend, vc.Type)
	}
}

func TestParseRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		content   string
		wantField string
	}{
		{name: "invalid yaml", content: "prefix: [unclosed"},
		{name: "unknown top-level key", content: "secretStores: {}\n"},
		{name: "unknown accessibility", content: "default_accessibility: sometimes\n", wantField: "default_accessibility"},
		{name: "unknown generation", content: "generation: \"3\"\n", wantField: "generation"},
		{name: "vault without type", content: "vaults:\n  a:\n    path: x\n", wantField: "vaults.a"},
		{name: "negative timeout", content: "vaults:\n  a:\n    type: file\n    timeout_ms: -1\n", wantField: "vaults.a.timeout_ms"},
		{name: "unsupported version", content: "version: 2\n", wantField: "version"},
		{name: "backend not configured", content: "backend: prod\nvaults:\n  local:\n    type: file\n", wantField: "backend"},
		{name: "empty prefix", content: "prefix: \"\"\n", wantField: "prefix"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			def, err := Parse([]byte(tt.content))
			require.Error(t, err)
			assert.Nil(t, def)

			var cfgErr dserrors.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			if tt.wantField != "" {
				assert.Equal(t, tt.wantField, cfgErr.Field)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	cfg := &Config{Path: filepath.Join(t.TempDir(), "absent.yaml")}
	err := cfg.Load()

	var cfgErr dserrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "path", cfgErr.Field)
	assert.Nil(t, cfg.Definition)
}

func TestSettingsExpandHome(t *testing.T) {
	t.Parallel()

	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	vc := VaultConfig{Type: "gcp.secretmanager", Config: map[string]interface{}{
		"credentials_file": "~/gcp.json",
		"project_id":       "~literal",
		"path":             "~/vault.db",
	}}
	got := vc.Settings()
	assert.Equal(t, filepath.Join(home, "gcp.json"), got["credentials_file"])
	assert.Equal(t, filepath.Join(home, "vault.db"), got["path"])
	assert.Equal(t, "~literal", got["project_id"])
}

func TestLoadAllowMissing(t *testing.T) {
	t.Parallel()

	cfg := &Config{Path: filepath.Join(t.TempDir(), "absent.yaml"), AllowMissing: true}
	require.NoError(t, cfg.Load())
	require.NotNil(t, cfg.Definition)

	name, vc := cfg.ResolveVault("")
	assert.Equal(t, DefaultBackend, name)
	assert.Equal(t, DefaultBackend, vc.Type)
}

func TestCommandLineOverrides(t *testing.T) {
	t.Parallel()

	def, err := Parse([]byte("prefix: com.example.file\nbackend: local\nvaults:\n  local:\n    type: file\n  remote:\n    type: aws.ssm\nmetrics:\n  textfile: /var/lib/node/credbox.prom\n"))
	require.NoError(t, err)

	tests := []struct {
		name        string
		cfg         Config
		wantPrefix  string
		wantVault   string
		wantMetrics string
	}{
		{
			name:        "file values",
			cfg:         Config{Definition: def},
			wantPrefix:  "com.example.file",
			wantVault:   "local",
			wantMetrics: "/var/lib/node/credbox.prom",
		},
		{
			name:        "flags win",
			cfg:         Config{Definition: def, Prefix: "com.example.flag", Backend: "remote", MetricsFile: "/tmp/m.prom"},
			wantPrefix:  "com.example.flag",
			wantVault:   "remote",
			wantMetrics: "/tmp/m.prom",
		},
		{
			name:      "no definition",
			cfg:       Config{Backend: "memory"},
			wantVault: "memory",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.wantPrefix, tt.cfg.StorePrefix())
			assert.Equal(t, tt.wantMetrics, tt.cfg.MetricsTextfile())
			name, _ := tt.cfg.ResolveVault("")
			assert.Equal(t, tt.wantVault, name)
		})
	}
}
