package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/credbox/internal/config"
	dserrors "github.com/systmms/credbox/internal/errors"
)

func NewCleanCommand(cfg *config.Config) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete every entry under the prefix",
		Long: `Delete every entry stored under the configured prefix, including all user
records. Entries of other prefixes in the same vault are not touched. This
cannot be undone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openStore(cmd, cfg)
			if err != nil {
				return err
			}
			defer sess.Close()

			if !force {
				return dserrors.UserError{
					Message:    fmt.Sprintf("clean deletes every entry under prefix %q", sess.store.Prefix()),
					Suggestion: "Re-run with --force to confirm",
				}
			}

			removed, err := sess.store.Clean(sess.ctx)
			if err != nil {
				logger(cfg).Warn("Removed %d entries before failing", removed)
				return sess.fail("delete", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries under %s\n", removed, sess.store.Prefix())
			return err
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Confirm deletion")

	return cmd
}
