package keyspace

import (
	"errors"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// UserNamespace is the logical-key prefix reserved for per-user fields.
const UserNamespace = "user."

var (
	// ErrEmptyUsername is returned when a per-user key has no username.
	ErrEmptyUsername = errors.New("username must not be empty")
	// ErrInvalidField is returned for field names that are empty or contain '.'.
	ErrInvalidField = errors.New("field name must be non-empty and must not contain '.'")
)

// UserKey returns the logical key of field for username:
//
//	user.<field>.<username>
//
// Usernames are NFC-normalized so that composed and decomposed spellings of
// the same name address the same record. Field names cannot contain '.', so
// the first '.' after the namespace always terminates the field.
func UserKey(field, username string) (string, error) {
	if field == "" || strings.Contains(field, ".") {
		return "", ErrInvalidField
	}
	if username == "" {
		return "", ErrEmptyUsername
	}
	return UserNamespace + field + "." + NormalizeUsername(username), nil
}

// ParseUserKey splits a logical key produced by UserKey.
func ParseUserKey(logicalKey string) (field, username string, ok bool) {
	rest, found := strings.CutPrefix(logicalKey, UserNamespace)
	if !found {
		return "", "", false
	}
	field, username, found = strings.Cut(rest, ".")
	if !found || field == "" || username == "" {
		return "", "", false
	}
	return field, username, true
}

// IsReserved reports whether logicalKey lies in a namespace managed by the
// user record layer.
func IsReserved(logicalKey string) bool {
	return strings.HasPrefix(logicalKey, UserNamespace)
}

// NormalizeUsername returns the canonical (NFC) form of a username.
func NormalizeUsername(username string) string {
	return norm.NFC.String(username)
}
