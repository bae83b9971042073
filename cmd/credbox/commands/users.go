package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/credbox/internal/config"
)

func NewUsersCommand(cfg *config.Config) *cobra.Command {
	var count bool

	cmd := &cobra.Command{
		Use:   "users",
		Short: "List users that have at least one stored field",
		Long: `List the distinct usernames that have any field stored under the prefix.
The list is derived from the vault contents on every call.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openStore(cmd, cfg)
			if err != nil {
				return err
			}
			defer sess.Close()

			out := cmd.OutOrStdout()
			if count {
				n, err := sess.store.ActiveUserCount(sess.ctx)
				if err != nil {
					return sess.fail("scan", err)
				}
				_, err = fmt.Fprintln(out, n)
				return err
			}

			users, err := sess.store.ActiveUsers(sess.ctx)
			if err != nil {
				return sess.fail("scan", err)
			}
			for _, u := range users {
				_, _ = fmt.Fprintln(out, u)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&count, "count", "c", false, "Print only the number of users")

	return cmd
}
