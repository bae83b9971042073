package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/credbox/internal/config"
	dserrors "github.com/systmms/credbox/internal/errors"
	"github.com/systmms/credbox/internal/logging"
	"github.com/systmms/credbox/internal/metrics"
	"github.com/systmms/credbox/internal/vaults"
	"github.com/systmms/credbox/pkg/credbox"
	"github.com/systmms/credbox/pkg/vault"
)

// session is one command's store together with the vault it owns.
type session struct {
	cfg       *config.Config
	store     *credbox.Store
	vaultName string
	vaultType string
	ctx       context.Context
	cancel    context.CancelFunc
}

func logger(cfg *config.Config) *logging.Logger {
	if cfg.Logger == nil {
		return logging.Nop()
	}
	return cfg.Logger
}

// loadConfig reads the configuration file once per process.
func loadConfig(cfg *config.Config) error {
	if cfg.Definition != nil {
		return nil
	}
	if cfg.Path == "" {
		cfg.Path = config.DefaultPath
	}
	return cfg.Load()
}

// storeOptions builds the store options from flags, environment and file.
func storeOptions(cfg *config.Config) ([]credbox.Option, error) {
	access, err := cfg.Definition.Accessibility()
	if err != nil {
		return nil, err
	}
	gen, err := cfg.Definition.EncodingGeneration()
	if err != nil {
		return nil, err
	}

	opts := []credbox.Option{
		credbox.WithAccessibility(access),
		credbox.WithGeneration(gen),
		credbox.WithLogger(logger(cfg)),
	}
	// $CREDBOX_APP_ID outranks the file but not --prefix.
	prefix := cfg.Prefix
	if prefix == "" && strings.TrimSpace(os.Getenv(credbox.EnvAppID)) == "" {
		prefix = cfg.StorePrefix()
	}
	if prefix != "" {
		opts = append(opts, credbox.WithPrefix(prefix))
	}
	return opts, nil
}

// createVault builds the backend named name.
func createVault(ctx context.Context, name string, vc config.VaultConfig) (vault.Vault, error) {
	registry := vaults.NewRegistry()
	if !registry.IsSupported(vc.Type) {
		return nil, dserrors.ConfigError{
			Field:      "backend",
			Value:      name,
			Message:    fmt.Sprintf("unknown vault type %q", vc.Type),
			Suggestion: fmt.Sprintf("Configure a vault in credbox.yaml or use one of: %s", strings.Join(registry.Types(), ", ")),
		}
	}
	v, err := registry.Create(ctx, name, vc.Type, vc.Settings())
	if err != nil {
		return nil, dserrors.VaultError(vc.Type, "open", err)
	}
	return v, nil
}

func commandContext(cmd *cobra.Command, timeout time.Duration) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, timeout)
}

// openStore builds the store for the selected vault. extra options are
// applied after the configured ones.
func openStore(cmd *cobra.Command, cfg *config.Config, extra ...credbox.Option) (*session, error) {
	if err := loadConfig(cfg); err != nil {
		return nil, err
	}
	opts, err := storeOptions(cfg)
	if err != nil {
		return nil, err
	}

	name, vc := cfg.ResolveVault("")
	ctx, cancel := commandContext(cmd, vc.Timeout())
	v, err := createVault(ctx, name, vc)
	if err != nil {
		cancel()
		return nil, err
	}
	store, err := credbox.New(metrics.InstrumentVault(v), append(opts, extra...)...)
	if err != nil {
		cancel()
		_ = vaults.Close(v)
		return nil, err
	}

	logger(cfg).Debug("Using %s vault %q with prefix %q", vc.Type, name, store.Prefix())
	return &session{
		cfg:       cfg,
		store:     store,
		vaultName: name,
		vaultType: vc.Type,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Close releases the vault and writes the metrics textfile if one is
// configured. Failures are logged, not returned.
func (s *session) Close() {
	s.cancel()
	if err := vaults.Close(s.store.Vault()); err != nil {
		logger(s.cfg).Warn("Failed to close vault %s: %v", s.vaultName, err)
	}
	if path := s.cfg.MetricsTextfile(); path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			logger(s.cfg).Warn("Failed to write metrics to %s: %v", path, err)
		}
	}
}

// fail turns a store error into a user-facing one.
func (s *session) fail(op string, err error) error {
	var verr *vault.Error
	if errors.As(err, &verr) {
		return dserrors.VaultError(s.vaultType, op, err)
	}
	return dserrors.SimplifyError(err)
}

func notFound(what, key string) error {
	return dserrors.UserError{
		Message:    fmt.Sprintf("%s %q not found", what, key),
		Suggestion: "Run 'credbox keys' to list stored keys",
	}
}

// accessibilityFlag parses an --accessibility value; "" yields zero.
func accessibilityFlag(s string) (vault.Accessibility, error) {
	if s == "" {
		return 0, nil
	}
	a, err := vault.ParseAccessibility(s)
	if err != nil {
		names := make([]string, 0, len(vault.Accessibilities()))
		for _, p := range vault.Accessibilities() {
			names = append(names, p.String())
		}
		return 0, dserrors.UserError{
			Message:    fmt.Sprintf("Unknown accessibility %q", s),
			Suggestion: "Use one of: " + strings.Join(names, ", "),
		}
	}
	return a, nil
}

// writeOptions turns an --accessibility value into store write options.
func writeOptions(accessibility string) ([]credbox.WriteOption, error) {
	a, err := accessibilityFlag(accessibility)
	if err != nil || a == 0 {
		return nil, err
	}
	return []credbox.WriteOption{credbox.Accessible(a)}, nil
}
