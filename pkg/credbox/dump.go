package credbox

import (
	"context"
	"errors"
	"io"
)

// ErrDumpDisabled is returned by Dump in builds without the credboxdebug tag.
var ErrDumpDisabled = errors.New("dump is only available in builds tagged credboxdebug")

// Dump writes the fields stored for username to w, one "field: value" line
// per stored field. Secret fields are always written as [REDACTED]. Outside
// builds tagged credboxdebug it writes nothing and returns ErrDumpDisabled.
func (s *Store) Dump(ctx context.Context, username string, w io.Writer) error {
	if !DumpEnabled {
		return ErrDumpDisabled
	}
	return s.dump(ctx, username, w)
}
