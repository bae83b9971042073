package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/systmms/credbox/internal/config"
	dserrors "github.com/systmms/credbox/internal/errors"
	"github.com/systmms/credbox/pkg/codec"
	"github.com/systmms/credbox/pkg/credbox"
)

func NewMigrateCommand(cfg *config.Config) *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Rewrite entries in the current encoding generation",
		Long: `Re-encode every entry under the prefix in the target generation (the
configured generation by default). Entries keep their accessibility. Entries
already in the target generation are left alone, so the command can be re-run
safely.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var extra []credbox.Option
			if target != "" {
				gen, err := codec.ParseGeneration(target)
				if err != nil {
					return dserrors.UserError{
						Message:    fmt.Sprintf("Unknown generation %q", target),
						Suggestion: "Use --to legacy or --to archive",
						Err:        err,
					}
				}
				extra = append(extra, credbox.WithGeneration(gen))
			}

			sess, err := openStore(cmd, cfg, extra...)
			if err != nil {
				return err
			}
			defer sess.Close()

			report, err := sess.store.Migrate(sess.ctx)
			if err != nil {
				return sess.fail("scan", err)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Target: %s\nScanned: %d\nMigrated: %d\nCurrent: %d\nFailed: %d\n",
				report.Target, report.Scanned, report.Migrated, report.Current, len(report.Failed))
			if len(report.Failed) == 0 {
				return nil
			}

			keys := make([]string, 0, len(report.Failed))
			for k := range report.Failed {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				_, _ = fmt.Fprintf(out, "  %s: %v\n", k, report.Failed[k])
			}
			return dserrors.UserError{
				Message:    fmt.Sprintf("%d entries could not be migrated", len(report.Failed)),
				Suggestion: "Entries holding custom archived types stay in the archive generation",
			}
		},
	}

	cmd.Flags().StringVar(&target, "to", "", "Target generation: legacy or archive")

	return cmd
}
