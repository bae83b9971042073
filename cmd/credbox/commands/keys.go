package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/credbox/internal/config"
)

func NewKeysCommand(cfg *config.Config) *cobra.Command {
	var (
		accessibility string
		long          bool
	)

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List the keys stored under the prefix",
		Long: `List every logical key stored under the configured prefix, sorted.

User record fields appear as user.<field>.<username>. With --long or
--accessibility the entries are read to report their accessibility, encoding
generation and modification time; entries the vault will not release while
locked show an accessibility of "locked".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := accessibilityFlag(accessibility)
			if err != nil {
				return err
			}

			sess, err := openStore(cmd, cfg)
			if err != nil {
				return err
			}
			defer sess.Close()

			out := cmd.OutOrStdout()
			if !long && filter == 0 {
				keys, err := sess.store.Keys(sess.ctx)
				if err != nil {
					return sess.fail("scan", err)
				}
				for _, key := range keys {
					_, _ = fmt.Fprintln(out, key)
				}
				return nil
			}

			entries, err := sess.store.Audit(sess.ctx)
			if err != nil {
				return sess.fail("scan", err)
			}

			if !long {
				for _, e := range entries {
					if e.Accessibility == filter {
						_, _ = fmt.Fprintln(out, e.Key)
					}
				}
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "KEY\tACCESSIBILITY\tGENERATION\tMODIFIED\n")
			for _, e := range entries {
				if filter != 0 && e.Accessibility != filter {
					continue
				}
				access, gen, modified := "locked", "-", "-"
				if e.Accessibility != 0 {
					access = e.Accessibility.String()
					gen = e.Generation.String()
				}
				if !e.ModifiedAt.IsZero() {
					modified = e.ModifiedAt.UTC().Format(time.RFC3339)
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Key, access, gen, modified)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&accessibility, "accessibility", "a", "", "Only list entries with this accessibility")
	cmd.Flags().BoolVarP(&long, "long", "l", false, "Show accessibility, generation and modification time")

	return cmd
}
