package commands

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	dserrors "github.com/systmms/credbox/internal/errors"
	"github.com/systmms/credbox/pkg/codec"
)

// parseValue builds a value of kind from command-line arguments. Strings,
// times and blobs take exactly one argument; lists, sets and maps take any
// number. Maps take key=value pairs, blobs take hex, times take RFC 3339 or
// "now".
func parseValue(kind codec.Kind, args []string) (codec.Value, error) {
	single := func() (string, error) {
		if len(args) != 1 {
			return "", dserrors.UserError{
				Message:    fmt.Sprintf("A %s value takes exactly one argument, got %d", kind, len(args)),
				Suggestion: "Quote values that contain spaces",
			}
		}
		return args[0], nil
	}

	switch kind {
	case codec.KindString:
		s, err := single()
		if err != nil {
			return nil, err
		}
		return codec.String(s), nil
	case codec.KindList:
		return codec.List(append([]string{}, args...)), nil
	case codec.KindSet:
		return codec.NewSet(args...), nil
	case codec.KindMap:
		m := make(codec.Map, len(args))
		for _, arg := range args {
			k, v, ok := strings.Cut(arg, "=")
			if !ok {
				return nil, dserrors.UserError{
					Message:    fmt.Sprintf("Map entry %q is not key=value", arg),
					Suggestion: "Pass entries as key=value",
				}
			}
			m[k] = v
		}
		return m, nil
	case codec.KindTime:
		s, err := single()
		if err != nil {
			return nil, err
		}
		if s == "now" {
			return codec.Time(time.Now()), nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, dserrors.UserError{
				Message:    fmt.Sprintf("Invalid time %q", s),
				Suggestion: "Use RFC 3339, for example 2024-05-01T12:00:00Z, or 'now'",
				Err:        err,
			}
		}
		return codec.Time(t), nil
	case codec.KindBlob:
		s, err := single()
		if err != nil {
			return nil, err
		}
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, dserrors.UserError{
				Message:    "Bytes values must be hex encoded",
				Suggestion: "Encode the value with 'xxd -p' or similar",
				Err:        err,
			}
		}
		return codec.Blob(b), nil
	}
	return nil, fmt.Errorf("unsupported value type %s", kind)
}

func parseKind(s string) (codec.Kind, error) {
	kind, err := codec.ParseKind(s)
	if err != nil {
		return 0, dserrors.UserError{
			Message:    fmt.Sprintf("Unknown value type %q", s),
			Suggestion: "Use --type string, list, set, map, time or bytes",
			Err:        err,
		}
	}
	return kind, nil
}

// formatValue renders v for terminal output, one element per line for
// collections.
func formatValue(v codec.Value) string {
	switch v := v.(type) {
	case codec.String:
		return string(v)
	case codec.List:
		return strings.Join(v, "\n")
	case codec.Set:
		return strings.Join(v.Members(), "\n")
	case codec.Map:
		lines := make([]string, 0, len(v))
		for _, k := range mapKeys(v) {
			lines = append(lines, k+"="+v[k])
		}
		return strings.Join(lines, "\n")
	case codec.Time:
		return v.Std().Format(time.RFC3339Nano)
	case codec.Blob:
		return hex.EncodeToString(v)
	}
	return ""
}

// jsonValue converts v into a value encoding/json renders naturally.
func jsonValue(v codec.Value) interface{} {
	switch v := v.(type) {
	case codec.String:
		return string(v)
	case codec.List:
		return []string(v)
	case codec.Set:
		return v.Members()
	case codec.Map:
		return map[string]string(v)
	case codec.Time, codec.Blob:
		return formatValue(v)
	}
	return nil
}

func mapKeys(m codec.Map) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
