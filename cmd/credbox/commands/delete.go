package commands

import (
	"github.com/spf13/cobra"

	"github.com/systmms/credbox/internal/config"
)

func NewDeleteCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "delete KEY...",
		Aliases: []string{"rm"},
		Short:   "Delete keys",
		Long:    `Delete each KEY. Deleting a key that does not exist succeeds.`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openStore(cmd, cfg)
			if err != nil {
				return err
			}
			defer sess.Close()

			for _, key := range args {
				if err := sess.store.Delete(sess.ctx, key); err != nil {
					return sess.fail("delete", err)
				}
			}
			return nil
		},
	}

	return cmd
}
