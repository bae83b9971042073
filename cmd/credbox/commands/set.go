package commands

import (
	"github.com/spf13/cobra"

	"github.com/systmms/credbox/internal/config"
)

func NewSetCommand(cfg *config.Config) *cobra.Command {
	var (
		valueType     string
		accessibility string
	)

	cmd := &cobra.Command{
		Use:   "set KEY VALUE...",
		Short: "Store a value under a key",
		Long: `Store a typed value under KEY in the configured vault.

Strings, times and bytes take one VALUE. Lists and sets take any number of
VALUEs; maps take key=value pairs. Bytes are hex encoded and times are RFC 3339
or "now". An existing entry is replaced, whatever its type.

Examples:
  credbox set apiToken s3cr3t
  credbox set recentFiles a.txt b.txt --type list
  credbox set endpoints eu=https://eu.example.com us=https://us.example.com --type map
  credbox set deviceKey 00ff10 --type bytes --accessibility after-first-unlock`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(valueType)
			if err != nil {
				return err
			}
			value, err := parseValue(kind, args[1:])
			if err != nil {
				return err
			}
			opts, err := writeOptions(accessibility)
			if err != nil {
				return err
			}

			sess, err := openStore(cmd, cfg)
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := sess.store.SetValue(sess.ctx, args[0], value, opts...); err != nil {
				return sess.fail("set", err)
			}
			logger(cfg).Debug("Stored %s value under %s", kind, args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&valueType, "type", "t", "string", "Value type: string, list, set, map, time or bytes")
	cmd.Flags().StringVarP(&accessibility, "accessibility", "a", "", "When the entry may be read (default: configured default_accessibility)")

	return cmd
}
