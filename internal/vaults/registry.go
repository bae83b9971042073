// Package vaults builds vault.Vault backends by type name from configuration
// maps.
package vaults

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/systmms/credbox/internal/vaults/awsvault"
	"github.com/systmms/credbox/internal/vaults/boltvault"
	"github.com/systmms/credbox/internal/vaults/gcpvault"
	"github.com/systmms/credbox/internal/vaults/keyring"
	"github.com/systmms/credbox/internal/vaults/memory"
	"github.com/systmms/credbox/internal/vaults/sqlvault"
	"github.com/systmms/credbox/pkg/vault"
)

// Backend type names.
const (
	TypeKeyring        = "keyring"
	TypeMemory         = "memory"
	TypeFile           = "file"
	TypeSQL            = "sql"
	TypeSecretsManager = "aws.secretsmanager"
	TypeSSM            = "aws.ssm"
	TypeGCP            = "gcp.secretmanager"
)

// Factory creates a backend from its configuration map.
type Factory func(ctx context.Context, name string, config map[string]interface{}) (vault.Vault, error)

// Registry maps backend types to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates a registry with every built-in backend registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}

	r.Register(TypeKeyring, func(_ context.Context, name string, config map[string]interface{}) (vault.Vault, error) {
		return keyring.New(name, config), nil
	})
	r.Register(TypeMemory, newMemory)
	r.Register(TypeFile, func(_ context.Context, name string, config map[string]interface{}) (vault.Vault, error) {
		return boltvault.Open(name, config)
	})
	r.Register(TypeSQL, func(ctx context.Context, name string, config map[string]interface{}) (vault.Vault, error) {
		return sqlvault.Open(ctx, name, config)
	})
	r.Register(TypeSecretsManager, func(ctx context.Context, name string, config map[string]interface{}) (vault.Vault, error) {
		return awsvault.NewSecretsManager(ctx, name, config)
	})
	r.Register(TypeSSM, func(ctx context.Context, name string, config map[string]interface{}) (vault.Vault, error) {
		return awsvault.NewParameterStore(ctx, name, config)
	})
	r.Register(TypeGCP, func(ctx context.Context, name string, config map[string]interface{}) (vault.Vault, error) {
		return gcpvault.New(ctx, name, config)
	})
	return r
}

// Register adds or replaces the factory for typ.
func (r *Registry) Register(typ string, f Factory) {
	r.factories[typ] = f
}

// IsSupported reports whether typ has a factory.
func (r *Registry) IsSupported(typ string) bool {
	_, ok := r.factories[typ]
	return ok
}

// Types returns the registered type names in sorted order.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.factories))
	for typ := range r.factories {
		out = append(out, typ)
	}
	sort.Strings(out)
	return out
}

// Create builds the backend named name of type typ.
func (r *Registry) Create(ctx context.Context, name, typ string, config map[string]interface{}) (vault.Vault, error) {
	f, ok := r.factories[typ]
	if !ok {
		return nil, fmt.Errorf("unknown vault type: %s", typ)
	}
	if config == nil {
		config = map[string]interface{}{}
	}
	v, err := f(ctx, name, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s vault %q: %w", typ, name, err)
	}
	return v, nil
}

// Close closes v if its backend holds resources.
func Close(v vault.Vault) error {
	if c, ok := v.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// newMemory reads "locked", "unlocked_since_boot" and "passcode" booleans to
// set the simulated device state.
func newMemory(_ context.Context, name string, config map[string]interface{}) (vault.Vault, error) {
	state := vault.DeviceState{Unlocked: true, UnlockedSinceBoot: true, PasscodeSet: true}
	if locked, ok := config["locked"].(bool); ok {
		state.Unlocked = !locked
	}
	if since, ok := config["unlocked_since_boot"].(bool); ok {
		state.UnlockedSinceBoot = since
	}
	if passcode, ok := config["passcode"].(bool); ok {
		state.PasscodeSet = passcode
	}
	if state.Unlocked && !state.UnlockedSinceBoot {
		return nil, fmt.Errorf("memory vault cannot be unlocked without having been unlocked since boot")
	}
	return memory.New(name, memory.WithDeviceState(state)), nil
}
