package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/credbox/internal/config"
)

func NewAppIDCommand(cfg *config.Config) *cobra.Command {
	var noCreate bool

	cmd := &cobra.Command{
		Use:   "app-id",
		Short: "Print the hashed installation identifier",
		Long: `Print the hashed installation identifier stored under the prefix. One is
generated and stored on first use unless --no-create is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openStore(cmd, cfg)
			if err != nil {
				return err
			}
			defer sess.Close()

			var id string
			if noCreate {
				var found bool
				id, found, err = sess.store.HashedAppUUID(sess.ctx)
				if err == nil && !found {
					return notFound("Key", "hashedAppUUID")
				}
			} else {
				id, err = sess.store.EnsureHashedAppUUID(sess.ctx)
			}
			if err != nil {
				return sess.fail("get", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
			return err
		},
	}

	cmd.Flags().BoolVar(&noCreate, "no-create", false, "Fail instead of generating an identifier")

	return cmd
}
