//go:build credboxdebug

package credbox

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/systmms/credbox/internal/logging"
	"github.com/systmms/credbox/pkg/codec"
	"github.com/systmms/credbox/pkg/keyspace"
)

// DumpEnabled reports whether Dump writes anything in this build.
const DumpEnabled = true

func (s *Store) dump(ctx context.Context, username string, w io.Writer) error {
	if username == "" {
		return s.fail(keyspace.ErrEmptyUsername)
	}
	if _, err := fmt.Fprintf(w, "user: %s (prefix %q)\n", keyspace.NormalizeUsername(username), s.prefix); err != nil {
		return err
	}
	for _, field := range fieldNames {
		full, err := s.userKey(username, field)
		if err != nil {
			return s.fail(err)
		}
		item, found, err := s.get(ctx, full)
		if err != nil {
			fmt.Fprintf(w, "  %s: <%s>\n", field, s.LastStatus())
			continue
		}
		if !found {
			continue
		}
		if field.Secret() {
			fmt.Fprintf(w, "  %s: %s\n", field, logging.Secret(""))
			continue
		}
		v, _, err := codec.Decode(item.Payload)
		if err != nil {
			fmt.Fprintf(w, "  %s: <undecodable>\n", field)
			continue
		}
		fmt.Fprintf(w, "  %s: %s\n", field, render(v))
	}
	return nil
}

func render(v codec.Value) string {
	switch v := v.(type) {
	case codec.String:
		return string(v)
	case codec.Blob:
		return hex.EncodeToString(v)
	case codec.Time:
		return v.Std().Format(time.RFC3339Nano)
	case codec.Set:
		return fmt.Sprint(v.Members())
	}
	return fmt.Sprint(v)
}
