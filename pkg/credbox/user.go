package credbox

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/systmms/credbox/internal/logging"
	"github.com/systmms/credbox/internal/secure"
	"github.com/systmms/credbox/pkg/codec"
	"github.com/systmms/credbox/pkg/keyspace"
	"github.com/systmms/credbox/pkg/vault"
)

// FieldName names a per-user field.
type FieldName string

const (
	FieldUserID                FieldName = "userId"
	FieldFirstName             FieldName = "firstName"
	FieldLastName              FieldName = "lastName"
	FieldBadgeNumber           FieldName = "badgeNumber"
	FieldOrganizationName      FieldName = "organizationName"
	FieldOrganizationState     FieldName = "organizationState"
	FieldOrganizationCountry   FieldName = "organizationCountry"
	FieldOrganizationCity      FieldName = "organizationCity"
	FieldOrganizationAddress   FieldName = "organizationAddress"
	FieldDatabaseEncryptionKey FieldName = "databaseEncryptionKey"
	FieldFileEncryptionKey     FieldName = "fileEncryptionKey"
	FieldFolderGUID            FieldName = "folderGUID"
	FieldHashPassword          FieldName = "hashPassword"
	FieldUserPassword          FieldName = "userPassword"
)

// Logical keys of the store-wide entries.
const (
	LastUserKey      = "lastUser"
	HashedAppUUIDKey = "hashedAppUUID"
)

// ErrUnknownField is returned for field names outside the user schema.
var ErrUnknownField = errors.New("unknown user field")

var fieldNames = []FieldName{
	FieldUserID,
	FieldFirstName,
	FieldLastName,
	FieldBadgeNumber,
	FieldOrganizationName,
	FieldOrganizationState,
	FieldOrganizationCountry,
	FieldOrganizationCity,
	FieldOrganizationAddress,
	FieldDatabaseEncryptionKey,
	FieldFileEncryptionKey,
	FieldFolderGUID,
	FieldHashPassword,
	FieldUserPassword,
}

// Fields returns the user schema in display order.
func Fields() []FieldName {
	return append([]FieldName(nil), fieldNames...)
}

// ParseField resolves a field name case-insensitively.
func ParseField(s string) (FieldName, error) {
	for _, f := range fieldNames {
		if strings.EqualFold(string(f), s) {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// Valid reports whether f is part of the user schema. Names are
// case-sensitive; use ParseField for user input.
func (f FieldName) Valid() bool {
	for _, n := range fieldNames {
		if n == f {
			return true
		}
	}
	return false
}

// Secret reports whether values of f are credentials or key material.
func (f FieldName) Secret() bool {
	switch f {
	case FieldHashPassword, FieldUserPassword, FieldDatabaseEncryptionKey, FieldFileEncryptionKey:
		return true
	}
	return false
}

// userKey returns the fully-qualified key of field for username.
func (s *Store) userKey(username string, field FieldName) (string, error) {
	if !field.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownField, string(field))
	}
	logical, err := keyspace.UserKey(string(field), username)
	if err != nil {
		return "", err
	}
	return keyspace.Derive(s.prefix, logical)
}

// SaveField stores a string field for username.
func (s *Store) SaveField(ctx context.Context, username string, field FieldName, value string, opts ...WriteOption) error {
	full, err := s.userKey(username, field)
	if err != nil {
		return s.fail(err)
	}
	return s.putValue(ctx, full, codec.String(value), opts)
}

// Field returns a string field of username.
func (s *Store) Field(ctx context.Context, username string, field FieldName) (string, bool, error) {
	full, err := s.userKey(username, field)
	if err != nil {
		return "", false, s.fail(err)
	}
	v, found, err := s.getValue(ctx, full, codec.KindString)
	if !found {
		return "", false, err
	}
	return string(v.(codec.String)), true, nil
}

// SaveFieldBytes stores a blob field for username. Newer schemas keep the
// encryption keys as blobs. A nil value deletes the field.
func (s *Store) SaveFieldBytes(ctx context.Context, username string, field FieldName, value []byte, opts ...WriteOption) error {
	full, err := s.userKey(username, field)
	if err != nil {
		return s.fail(err)
	}
	if value == nil {
		return s.remove(ctx, full)
	}
	return s.putValue(ctx, full, codec.Blob(value), opts)
}

// FieldBytes returns a blob field of username.
func (s *Store) FieldBytes(ctx context.Context, username string, field FieldName) ([]byte, bool, error) {
	full, err := s.userKey(username, field)
	if err != nil {
		return nil, false, s.fail(err)
	}
	v, found, err := s.getValue(ctx, full, codec.KindBlob)
	if !found {
		return nil, false, err
	}
	return []byte(v.(codec.Blob)), true, nil
}

// SecretField returns a field of username inside locked memory. Both the
// string and the blob representation are accepted. The caller must Destroy
// the buffer.
func (s *Store) SecretField(ctx context.Context, username string, field FieldName) (*secure.SecureBuffer, bool, error) {
	full, err := s.userKey(username, field)
	if err != nil {
		return nil, false, s.fail(err)
	}
	raw, found, err := s.fieldRaw(ctx, full)
	if err != nil || !found {
		return nil, false, err
	}
	return secure.NewSecureBuffer(raw), true, nil
}

// fieldRaw reads a field stored either as a string or as a blob.
func (s *Store) fieldRaw(ctx context.Context, fullKey string) ([]byte, bool, error) {
	item, found, err := s.get(ctx, fullKey)
	if err != nil || !found {
		return nil, false, err
	}
	v, _, err := codec.Decode(item.Payload)
	if err != nil {
		return nil, false, s.fail(err)
	}
	switch v := v.(type) {
	case codec.String:
		return []byte(v), true, nil
	case codec.Blob:
		return v, true, nil
	}
	return nil, false, s.fail(&codec.MismatchError{Want: codec.TypeString + " or " + codec.TypeBlob, Got: v.Kind().String()})
}

// DeleteField removes one field of username.
func (s *Store) DeleteField(ctx context.Context, username string, field FieldName) error {
	full, err := s.userKey(username, field)
	if err != nil {
		return s.fail(err)
	}
	return s.remove(ctx, full)
}

// FullName joins the first and last name of username with a single space.
// Absent or empty parts are left out; found is false when both are.
func (s *Store) FullName(ctx context.Context, username string) (string, bool, error) {
	var parts []string
	for _, f := range []FieldName{FieldFirstName, FieldLastName} {
		v, found, err := s.Field(ctx, username, f)
		if err != nil {
			return "", false, err
		}
		if found && v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return "", false, nil
	}
	return strings.Join(parts, " "), true, nil
}

// ActiveUsers returns the distinct usernames with at least one stored field,
// sorted.
func (s *Store) ActiveUsers(ctx context.Context) ([]string, error) {
	keys, err := s.scan(ctx, keyspace.UserNamespace)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, k := range keys {
		logical, ok := keyspace.Logical(s.prefix, k)
		if !ok {
			continue
		}
		if _, username, ok := keyspace.ParseUserKey(logical); ok {
			seen[username] = struct{}{}
		}
	}
	users := make([]string, 0, len(seen))
	for u := range seen {
		users = append(users, u)
	}
	sort.Strings(users)
	return users, nil
}

// ActiveUserCount returns len(ActiveUsers).
func (s *Store) ActiveUserCount(ctx context.Context) (int, error) {
	users, err := s.ActiveUsers(ctx)
	if err != nil {
		return 0, err
	}
	return len(users), nil
}

// DeleteUser removes every field stored for username, including fields
// outside the current schema, and returns how many were removed.
func (s *Store) DeleteUser(ctx context.Context, username string) (int, error) {
	if username == "" {
		return 0, s.fail(keyspace.ErrEmptyUsername)
	}
	username = keyspace.NormalizeUsername(username)
	keys, err := s.scan(ctx, keyspace.UserNamespace)
	if err != nil {
		return 0, err
	}
	removed := 0
	var errs []error
	for _, k := range keys {
		logical, _ := keyspace.Logical(s.prefix, k)
		if _, u, ok := keyspace.ParseUserKey(logical); !ok || u != username {
			continue
		}
		if err := s.remove(ctx, k); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	if len(errs) > 0 {
		return removed, s.fail(errors.Join(errs...))
	}
	return removed, nil
}

// SaveLastUser records username as the most recently active user.
func (s *Store) SaveLastUser(ctx context.Context, username string, opts ...WriteOption) error {
	if username == "" {
		return s.fail(keyspace.ErrEmptyUsername)
	}
	full, err := keyspace.Derive(s.prefix, LastUserKey)
	if err != nil {
		return s.fail(err)
	}
	return s.putValue(ctx, full, codec.String(keyspace.NormalizeUsername(username)), opts)
}

// LastUser returns the most recently active username.
func (s *Store) LastUser(ctx context.Context) (string, bool, error) {
	return s.String(ctx, LastUserKey)
}

// SaveHashedAppUUID stores the installation identifier.
func (s *Store) SaveHashedAppUUID(ctx context.Context, id string, opts ...WriteOption) error {
	return s.SetString(ctx, HashedAppUUIDKey, id, opts...)
}

// HashedAppUUID returns the installation identifier.
func (s *Store) HashedAppUUID(ctx context.Context) (string, bool, error) {
	return s.String(ctx, HashedAppUUIDKey)
}

// EnsureHashedAppUUID returns the installation identifier, creating it from
// the SHA-256 of a random UUID when none is stored.
func (s *Store) EnsureHashedAppUUID(ctx context.Context, opts ...WriteOption) (string, error) {
	id, found, err := s.HashedAppUUID(ctx)
	if err != nil {
		return "", err
	}
	if found && id != "" {
		return id, nil
	}
	sum := sha256.Sum256([]byte(uuid.New().String()))
	id = hex.EncodeToString(sum[:])
	if err := s.SaveHashedAppUUID(ctx, id, opts...); err != nil {
		return "", err
	}
	s.log.Debug("generated installation identifier %s", logging.Secret(id))
	return id, nil
}

// UserRecord is the projection of every schema field of one user. Encryption
// keys are read from either representation and written as blobs.
type UserRecord struct {
	Username              string
	UserID                string
	FirstName             string
	LastName              string
	BadgeNumber           string
	OrganizationName      string
	OrganizationState     string
	OrganizationCountry   string
	OrganizationCity      string
	OrganizationAddress   string
	DatabaseEncryptionKey []byte
	FileEncryptionKey     []byte
	FolderGUID            string
	HashPassword          string
	UserPassword          string
}

func (r *UserRecord) text() map[FieldName]*string {
	return map[FieldName]*string{
		FieldUserID:              &r.UserID,
		FieldFirstName:           &r.FirstName,
		FieldLastName:            &r.LastName,
		FieldBadgeNumber:         &r.BadgeNumber,
		FieldOrganizationName:    &r.OrganizationName,
		FieldOrganizationState:   &r.OrganizationState,
		FieldOrganizationCountry: &r.OrganizationCountry,
		FieldOrganizationCity:    &r.OrganizationCity,
		FieldOrganizationAddress: &r.OrganizationAddress,
		FieldFolderGUID:          &r.FolderGUID,
		FieldHashPassword:        &r.HashPassword,
		FieldUserPassword:        &r.UserPassword,
	}
}

func (r *UserRecord) binary() map[FieldName]*[]byte {
	return map[FieldName]*[]byte{
		FieldDatabaseEncryptionKey: &r.DatabaseEncryptionKey,
		FieldFileEncryptionKey:     &r.FileEncryptionKey,
	}
}

// Value returns the stored bytes of field, and false when the field is empty
// or not part of the schema. Text fields are returned as their UTF-8 bytes.
func (r *UserRecord) Value(field FieldName) ([]byte, bool) {
	if dst, ok := r.text()[field]; ok && *dst != "" {
		return []byte(*dst), true
	}
	if dst, ok := r.binary()[field]; ok && len(*dst) > 0 {
		return *dst, true
	}
	return nil, false
}

// FullName joins FirstName and LastName the way Store.FullName does.
func (r *UserRecord) FullName() string {
	return strings.TrimSpace(strings.Join([]string{r.FirstName, r.LastName}, " "))
}

// LoadUser reads every schema field of username. It returns a nil record and
// a nil error when no field is stored.
func (s *Store) LoadUser(ctx context.Context, username string) (*UserRecord, error) {
	rec := &UserRecord{Username: keyspace.NormalizeUsername(username)}
	present := false
	for field, dst := range rec.text() {
		v, found, err := s.Field(ctx, username, field)
		if err != nil {
			return nil, err
		}
		if found {
			*dst, present = v, true
		}
	}
	for field, dst := range rec.binary() {
		full, err := s.userKey(username, field)
		if err != nil {
			return nil, s.fail(err)
		}
		v, found, err := s.fieldRaw(ctx, full)
		if err != nil {
			return nil, err
		}
		if found {
			*dst, present = v, true
		}
	}
	if !present {
		s.setStatus(vault.StatusItemNotFound)
		return nil, nil
	}
	s.setStatus(vault.StatusSuccess)
	return rec, nil
}

// SaveUser writes every non-empty field of rec. Empty fields are left as
// they are; there is no transaction across fields, so a failure part way
// leaves the earlier fields written.
func (s *Store) SaveUser(ctx context.Context, rec *UserRecord, opts ...WriteOption) error {
	if rec == nil || rec.Username == "" {
		return s.fail(keyspace.ErrEmptyUsername)
	}
	text, binary := rec.text(), rec.binary()
	for _, field := range fieldNames {
		if dst, ok := text[field]; ok && *dst != "" {
			if err := s.SaveField(ctx, rec.Username, field, *dst, opts...); err != nil {
				return err
			}
		}
		if dst, ok := binary[field]; ok && len(*dst) > 0 {
			if err := s.SaveFieldBytes(ctx, rec.Username, field, *dst, opts...); err != nil {
				return err
			}
		}
	}
	return nil
}
