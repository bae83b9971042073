package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	dserrors "github.com/systmms/credbox/internal/errors"
	"github.com/systmms/credbox/internal/logging"
	"github.com/systmms/credbox/pkg/codec"
	"github.com/systmms/credbox/pkg/vault"
)

// DefaultPath is the configuration file read when no --config is given.
const DefaultPath = "credbox.yaml"

// DefaultBackend is the vault type used when no backend is configured.
const DefaultBackend = "keyring"

// DefaultTimeout bounds a single CLI command's vault calls.
const DefaultTimeout = 30 * time.Second

//go:embed schema.json
var schemaJSON []byte

// Config holds the runtime configuration
type Config struct {
	Path       string
	Logger     *logging.Logger
	Definition *Definition

	// AllowMissing makes Load treat an absent file as an empty definition.
	AllowMissing bool

	// Command-line overrides. Empty values defer to the file.
	Prefix      string
	Backend     string
	MetricsFile string
}

// Definition represents the credbox.yaml structure
type Definition struct {
	Version              int                    `yaml:"version"`
	Prefix               string                 `yaml:"prefix,omitempty"`
	DefaultAccessibility string                 `yaml:"default_accessibility,omitempty"`
	Generation           string                 `yaml:"generation,omitempty"`
	Backend              string                 `yaml:"backend,omitempty"`
	Vaults               map[string]VaultConfig `yaml:"vaults,omitempty"`
	Metrics              MetricsConfig          `yaml:"metrics,omitempty"`
}

// VaultConfig holds one named vault. Keys other than type and timeout_ms are
// passed to the backend factory.
type VaultConfig struct {
	Type      string                 `yaml:"type"`
	TimeoutMs int                    `yaml:"timeout_ms,omitempty"`
	Config    map[string]interface{} `yaml:",inline"`
}

// MetricsConfig configures the Prometheus textfile written after each command.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// Load reads, schema-checks and parses the configuration file. A missing
// file yields a ConfigError on field "path".
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			if c.AllowMissing {
				c.Definition = &Definition{}
				return nil
			}
			return dserrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Create credbox.yaml or pass --config with the path to one",
			}
		}
		return dserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	def, err := Parse(data)
	if err != nil {
		return err
	}
	c.Definition = def
	return nil
}

// Parse validates data against the embedded schema and decodes it.
func Parse(data []byte) (*Definition, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, dserrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}
	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, dserrors.ConfigError{
			Message:    fmt.Sprintf("invalid configuration: %v", err),
			Suggestion: "Compare your file with the documented credbox.yaml layout",
		}
	}
	if err := def.validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

func validateSchema(doc interface{}) error {
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration for validation: %w", err)
	}
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schemaJSON), gojsonschema.NewBytesLoader(jsonData))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var messages []string
	for _, desc := range result.Errors() {
		messages = append(messages, desc.String())
	}
	sort.Strings(messages)
	field := result.Errors()[0].Field()
	return dserrors.ConfigError{
		Field:      field,
		Message:    "schema validation failed:\n  - " + strings.Join(messages, "\n  - "),
		Suggestion: "Fix the listed fields in credbox.yaml",
	}
}

func (d *Definition) validate() error {
	if d.Version != 0 {
		return dserrors.ConfigError{
			Field:      "version",
			Value:      d.Version,
			Message:    "unsupported configuration version",
			Suggestion: "Set 'version: 0' at the top of your credbox.yaml file",
		}
	}
	if _, err := d.Accessibility(); err != nil {
		return err
	}
	if _, err := d.EncodingGeneration(); err != nil {
		return err
	}
	if d.Backend != "" {
		if _, ok := d.Vaults[d.Backend]; !ok && len(d.Vaults) > 0 {
			return dserrors.ConfigError{
				Field:      "backend",
				Value:      d.Backend,
				Message:    "backend does not name a configured vault",
				Suggestion: fmt.Sprintf("Available vaults: %s", strings.Join(d.VaultNames(), ", ")),
			}
		}
	}
	return nil
}

// Accessibility returns the configured default policy.
func (d *Definition) Accessibility() (vault.Accessibility, error) {
	if d == nil || d.DefaultAccessibility == "" {
		return vault.DefaultAccessibility, nil
	}
	a, err := vault.ParseAccessibility(d.DefaultAccessibility)
	if err != nil {
		names := make([]string, 0, len(vault.Accessibilities()))
		for _, a := range vault.Accessibilities() {
			names = append(names, a.String())
		}
		return 0, dserrors.ConfigError{
			Field:      "default_accessibility",
			Value:      d.DefaultAccessibility,
			Message:    "unknown accessibility",
			Suggestion: "Use one of: " + strings.Join(names, ", "),
		}
	}
	return a, nil
}

// EncodingGeneration returns the configured write generation.
func (d *Definition) EncodingGeneration() (codec.Generation, error) {
	if d == nil || d.Generation == "" {
		return codec.DefaultGeneration, nil
	}
	g, err := codec.ParseGeneration(d.Generation)
	if err != nil {
		return 0, dserrors.ConfigError{
			Field:      "generation",
			Value:      d.Generation,
			Message:    err.Error(),
			Suggestion: "Use 'archive' for new deployments",
		}
	}
	return g, nil
}

// VaultNames returns the configured vault names, sorted.
func (d *Definition) VaultNames() []string {
	if d == nil {
		return nil
	}
	names := make([]string, 0, len(d.Vaults))
	for name := range d.Vaults {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveVault returns the vault selected by name. An empty name selects the
// --backend override, then the configured backend, then DefaultBackend. A
// name that is not configured is treated as a bare vault type with no
// settings.
func (c *Config) ResolveVault(name string) (string, VaultConfig) {
	def := c.Definition
	if name == "" {
		name = c.Backend
	}
	if name == "" && def != nil {
		name = def.Backend
	}
	if name == "" {
		name = DefaultBackend
	}
	if def != nil {
		if vc, ok := def.Vaults[name]; ok {
			return name, vc
		}
	}
	return name, VaultConfig{Type: name}
}

// StorePrefix returns the service prefix: the --prefix override, then the
// file's prefix. Empty means the caller should use the process identity.
func (c *Config) StorePrefix() string {
	if c.Prefix != "" {
		return c.Prefix
	}
	if c.Definition != nil {
		return c.Definition.Prefix
	}
	return ""
}

// MetricsTextfile returns where command metrics are written, or "".
func (c *Config) MetricsTextfile() string {
	if c.MetricsFile != "" {
		return c.MetricsFile
	}
	if c.Definition != nil {
		return c.Definition.Metrics.Textfile
	}
	return ""
}

// Timeout returns the per-command deadline of the vault.
func (v VaultConfig) Timeout() time.Duration {
	if v.TimeoutMs <= 0 {
		return DefaultTimeout
	}
	return time.Duration(v.TimeoutMs) * time.Millisecond
}

// Settings returns the backend settings with ~ expanded in path-like values.
func (v VaultConfig) Settings() map[string]interface{} {
	out := make(map[string]interface{}, len(v.Config))
	for k, val := range v.Config {
		if s, ok := val.(string); ok && (k == "path" || strings.HasSuffix(k, "_file")) {
			val = expandHome(s)
		}
		out[k] = val
	}
	return out
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
