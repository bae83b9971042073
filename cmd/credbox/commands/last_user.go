package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/credbox/internal/config"
)

func NewLastUserCommand(cfg *config.Config) *cobra.Command {
	var accessibility string

	cmd := &cobra.Command{
		Use:   "last-user [USERNAME]",
		Short: "Print or record the most recent user",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := writeOptions(accessibility)
			if err != nil {
				return err
			}

			sess, err := openStore(cmd, cfg)
			if err != nil {
				return err
			}
			defer sess.Close()

			if len(args) == 1 {
				if err := sess.store.SaveLastUser(sess.ctx, args[0], opts...); err != nil {
					return sess.fail("set", err)
				}
				return nil
			}

			user, found, err := sess.store.LastUser(sess.ctx)
			if err != nil {
				return sess.fail("get", err)
			}
			if !found {
				return notFound("Key", "lastUser")
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), user)
			return err
		},
	}

	cmd.Flags().StringVarP(&accessibility, "accessibility", "a", "", "When the entry may be read")

	return cmd
}
