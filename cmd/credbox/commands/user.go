package commands

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/systmms/credbox/internal/config"
	dserrors "github.com/systmms/credbox/internal/errors"
	"github.com/systmms/credbox/internal/logging"
	"github.com/systmms/credbox/pkg/credbox"
)

// NewUserCommand groups the per-user record commands.
func NewUserCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage per-user records",
		Long: `Read and write the fixed set of per-user fields (names, organization,
passwords and encryption keys). Usernames are Unicode-normalized, so the same
name typed on different keyboards selects the same record.

Fields: ` + fieldList(),
	}

	cmd.AddCommand(
		newUserSetCommand(cfg),
		newUserGetCommand(cfg),
		newUserShowCommand(cfg),
		newUserDeleteCommand(cfg),
	)

	return cmd
}

func fieldList() string {
	names := make([]string, 0, len(credbox.Fields()))
	for _, f := range credbox.Fields() {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}

func parseField(s string) (credbox.FieldName, error) {
	f, err := credbox.ParseField(s)
	if err != nil {
		return "", dserrors.UserError{
			Message:    fmt.Sprintf("Unknown user field %q", s),
			Suggestion: "Use one of: " + fieldList(),
			Err:        err,
		}
	}
	return f, nil
}

// binaryField reports whether f holds key material entered and shown as hex.
func binaryField(f credbox.FieldName) bool {
	return f == credbox.FieldDatabaseEncryptionKey || f == credbox.FieldFileEncryptionKey
}

func renderField(f credbox.FieldName, raw []byte, reveal bool) string {
	switch {
	case f.Secret() && !reveal:
		return logging.Secret(string(raw)).String()
	case binaryField(f):
		return hex.EncodeToString(raw)
	}
	return string(raw)
}

func newUserSetCommand(cfg *config.Config) *cobra.Command {
	var accessibility string

	cmd := &cobra.Command{
		Use:   "set USERNAME FIELD [VALUE]",
		Short: "Store one field of a user record",
		Long: `Store FIELD for USERNAME. Without VALUE the first line of standard input is
used, which keeps passwords out of shell history. Encryption keys are hex.

Examples:
  credbox user set alice firstName Alice
  credbox user set alice fileEncryptionKey 8f1e0c...
  read -rs PW && echo "$PW" | credbox user set alice userPassword`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			field, err := parseField(args[1])
			if err != nil {
				return err
			}
			opts, err := writeOptions(accessibility)
			if err != nil {
				return err
			}

			var value string
			if len(args) == 3 {
				value = args[2]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return dserrors.UserError{
						Message:    "No value given",
						Suggestion: "Pass VALUE or write it to standard input",
						Err:        err,
					}
				}
				value = strings.TrimRight(line, "\r\n")
			}

			sess, err := openStore(cmd, cfg)
			if err != nil {
				return err
			}
			defer sess.Close()

			if binaryField(field) {
				key, err := hex.DecodeString(value)
				if err != nil {
					return dserrors.UserError{
						Message:    fmt.Sprintf("%s must be hex encoded", field),
						Suggestion: "Generate one with 'openssl rand -hex 32'",
						Err:        err,
					}
				}
				err = sess.store.SaveFieldBytes(sess.ctx, args[0], field, key, opts...)
				if err != nil {
					return sess.fail("set", err)
				}
				return nil
			}
			if err := sess.store.SaveField(sess.ctx, args[0], field, value, opts...); err != nil {
				return sess.fail("set", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&accessibility, "accessibility", "a", "", "When the field may be read (default: configured default_accessibility)")

	return cmd
}

func newUserGetCommand(cfg *config.Config) *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "get USERNAME FIELD",
		Short: "Print one field of a user record",
		Long: `Print FIELD for USERNAME. Password and encryption key fields are only
printed with --reveal. The pseudo-field fullName joins the first and last name.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := args[0]
			fullName := strings.EqualFold(args[1], "fullName")
			var field credbox.FieldName
			if !fullName {
				var err error
				if field, err = parseField(args[1]); err != nil {
					return err
				}
				if field.Secret() && !reveal {
					return dserrors.UserError{
						Message:    fmt.Sprintf("%s is a secret field", field),
						Suggestion: "Pass --reveal to print it",
					}
				}
			}

			sess, err := openStore(cmd, cfg)
			if err != nil {
				return err
			}
			defer sess.Close()

			var (
				value string
				found bool
			)
			switch {
			case fullName:
				value, found, err = sess.store.FullName(sess.ctx, username)
			case field.Secret():
				buf, ok, serr := sess.store.SecretField(sess.ctx, username, field)
				found, err = ok, serr
				if ok {
					defer buf.Destroy()
					err = buf.Reveal(func(plain []byte) error {
						value = renderField(field, plain, true)
						return nil
					})
				}
			default:
				value, found, err = sess.store.Field(sess.ctx, username, field)
			}
			if err != nil {
				return sess.fail("get", err)
			}
			if !found {
				return notFound("Field", fmt.Sprintf("%s of %s", args[1], username))
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), value)
			return err
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print password and encryption key fields")

	return cmd
}

func newUserShowCommand(cfg *config.Config) *cobra.Command {
	var (
		reveal     bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "show USERNAME",
		Short: "Print every stored field of a user record",
		Long: `Print the stored fields of USERNAME. Secret fields are redacted unless
--reveal is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openStore(cmd, cfg)
			if err != nil {
				return err
			}
			defer sess.Close()

			rec, err := sess.store.LoadUser(sess.ctx, args[0])
			if err != nil {
				return sess.fail("get", err)
			}
			if rec == nil {
				return notFound("User", args[0])
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				fields := make(map[string]string)
				for _, f := range credbox.Fields() {
					if raw, ok := rec.Value(f); ok {
						fields[string(f)] = renderField(f, raw, reveal)
					}
				}
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(map[string]interface{}{
					"username": rec.Username,
					"fullName": rec.FullName(),
					"fields":   fields,
				})
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "FIELD\tVALUE\n")
			for _, f := range credbox.Fields() {
				if raw, ok := rec.Value(f); ok {
					_, _ = fmt.Fprintf(w, "%s\t%s\n", f, renderField(f, raw, reveal))
				}
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print password and encryption key fields")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}

func newUserDeleteCommand(cfg *config.Config) *cobra.Command {
	var field string

	cmd := &cobra.Command{
		Use:   "delete USERNAME",
		Short: "Delete a user record or one of its fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openStore(cmd, cfg)
			if err != nil {
				return err
			}
			defer sess.Close()

			if field != "" {
				f, err := parseField(field)
				if err != nil {
					return err
				}
				if err := sess.store.DeleteField(sess.ctx, args[0], f); err != nil {
					return sess.fail("delete", err)
				}
				return nil
			}

			removed, err := sess.store.DeleteUser(sess.ctx, args[0])
			if err != nil {
				return sess.fail("delete", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d entries for %s\n", removed, args[0])
			return err
		},
	}

	cmd.Flags().StringVarP(&field, "field", "f", "", "Delete only this field")

	return cmd
}
