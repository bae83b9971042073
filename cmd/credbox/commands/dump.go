package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/systmms/credbox/internal/config"
	dserrors "github.com/systmms/credbox/internal/errors"
	"github.com/systmms/credbox/pkg/credbox"
)

func NewDumpCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump USERNAME",
		Short: "Print a user's stored fields (debug builds only)",
		Long: `Print every stored field of USERNAME with secrets redacted. Only available
in binaries built with -tags credboxdebug.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !credbox.DumpEnabled {
				return dserrors.UserError{
					Message:    "dump is disabled in release builds",
					Suggestion: "Rebuild with 'go build -tags credboxdebug' or use 'credbox user show'",
					Err:        credbox.ErrDumpDisabled,
				}
			}

			sess, err := openStore(cmd, cfg)
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := sess.store.Dump(sess.ctx, args[0], cmd.OutOrStdout()); err != nil {
				if errors.Is(err, credbox.ErrDumpDisabled) {
					return err
				}
				return sess.fail("get", err)
			}
			return nil
		},
	}

	return cmd
}
