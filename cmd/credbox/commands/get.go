package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/credbox/internal/config"
	"github.com/systmms/credbox/pkg/codec"
)

func NewGetCommand(cfg *config.Config) *cobra.Command {
	var (
		valueType  string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Print the value stored under a key",
		Long: `Retrieve and display the value stored under KEY.

Without --type any built-in value is printed. With --type the stored value
must have that type; a different type is reported as an error and nothing is
printed. Collections print one element per line, maps as key=value.

Examples:
  credbox get apiToken
  export TOKEN=$(credbox get apiToken --type string)
  credbox get endpoints --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var kind codec.Kind
			if valueType != "" {
				var err error
				if kind, err = parseKind(valueType); err != nil {
					return err
				}
			}

			sess, err := openStore(cmd, cfg)
			if err != nil {
				return err
			}
			defer sess.Close()

			var (
				value codec.Value
				found bool
			)
			if kind == 0 {
				value, found, err = sess.store.Value(sess.ctx, args[0])
			} else {
				value, found, err = sess.store.ValueAs(sess.ctx, args[0], kind)
			}
			if err != nil {
				return sess.fail("get", err)
			}
			if !found {
				return notFound("Key", args[0])
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(map[string]interface{}{
					"key":   args[0],
					"type":  value.Kind().String(),
					"value": jsonValue(value),
				})
			}
			_, err = fmt.Fprintln(out, formatValue(value))
			return err
		},
	}

	cmd.Flags().StringVarP(&valueType, "type", "t", "", "Require the value to have this type")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format with the value type")

	return cmd
}
