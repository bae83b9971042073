package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/systmms/credbox/internal/config"
	dserrors "github.com/systmms/credbox/internal/errors"
	"github.com/systmms/credbox/internal/metrics"
	"github.com/systmms/credbox/internal/vaults"
	"github.com/systmms/credbox/pkg/credbox"
)

func NewDoctorCommand(cfg *config.Config) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and vault connectivity",
		Long: `Verify that the configuration is valid and that the selected vault can be
opened and listed under the prefix.

This command checks:
- Configuration file validity
- Vault construction and authentication
- Read access to the prefix namespace

Use --all to check every vault in credbox.yaml instead of only the selected
one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger(cfg)
			log.Info("Checking credbox configuration...")
			if err := loadConfig(cfg); err != nil {
				log.Error("Configuration error: %v", err)
				return err
			}
			opts, err := storeOptions(cfg)
			if err != nil {
				return err
			}
			log.Info("✓ Configuration loaded successfully")

			names := []string{""}
			if all && len(cfg.Definition.VaultNames()) > 0 {
				names = cfg.Definition.VaultNames()
			}

			results := make([]VaultHealth, 0, len(names))
			for _, name := range names {
				results = append(results, checkVault(cmd, cfg, name, opts))
			}

			out := cmd.OutOrStdout()
			displayHealthResults(out, results)

			healthy := 0
			for _, result := range results {
				if result.Status == "healthy" {
					healthy++
				}
			}
			_, _ = fmt.Fprintf(out, "\nSummary: %d/%d vaults healthy\n", healthy, len(results))
			if healthy < len(results) {
				return dserrors.UserError{
					Message:    "some vaults are not healthy",
					Suggestion: "See the MESSAGE column above",
				}
			}

			log.Info("✓ All systems operational!")
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Check every configured vault")

	return cmd
}

// VaultHealth is the outcome of checking one vault.
type VaultHealth struct {
	Name    string
	Type    string
	Prefix  string
	Status  string // healthy, error
	Message string
}

func checkVault(cmd *cobra.Command, cfg *config.Config, name string, opts []credbox.Option) VaultHealth {
	name, vc := cfg.ResolveVault(name)
	health := VaultHealth{Name: name, Type: vc.Type}

	ctx, cancel := commandContext(cmd, vc.Timeout())
	defer cancel()

	v, err := createVault(ctx, name, vc)
	if err != nil {
		health.Status, health.Message = "error", firstLine(err)
		return health
	}
	defer func() { _ = vaults.Close(v) }()

	store, err := credbox.New(metrics.InstrumentVault(v), opts...)
	if err != nil {
		health.Status, health.Message = "error", firstLine(err)
		return health
	}
	health.Prefix = store.Prefix()

	if health.Message, err = summarize(ctx, store); err != nil {
		health.Status = "error"
		health.Message = firstLine(dserrors.VaultError(vc.Type, "scan", err))
		return health
	}
	health.Status = "healthy"
	return health
}

func summarize(ctx context.Context, store *credbox.Store) (string, error) {
	keys, err := store.Keys(ctx)
	if err != nil {
		return "", err
	}
	users, err := store.ActiveUserCount(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d entries, %d users", len(keys), users), nil
}

func firstLine(err error) string {
	msg, _, _ := strings.Cut(err.Error(), "\n")
	return msg
}

// displayHealthResults shows vault health in a formatted table
func displayHealthResults(out io.Writer, results []VaultHealth) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "VAULT\tTYPE\tPREFIX\tSTATUS\tMESSAGE\n")
	_, _ = fmt.Fprintf(w, "-----\t----\t------\t------\t-------\n")

	for _, result := range results {
		status := result.Status
		switch result.Status {
		case "healthy":
			status = "✓ " + status
		case "error":
			status = "✗ " + status
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			result.Name, result.Type, result.Prefix, status, result.Message)
	}

	_ = w.Flush()
}
