package credbox_test

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/credbox/internal/vaults/memory"
	"github.com/systmms/credbox/pkg/codec"
	"github.com/systmms/credbox/pkg/credbox"
	"github.com/systmms/credbox/pkg/keyspace"
	"github.com/systmms/credbox/pkg/vault"
	"github.com/systmms/credbox/tests/fakes"
)

func TestActiveUserCount(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := newStore(t, memory.New("m"))

	count, err := s.ActiveUserCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, s.SaveField(ctx, "alice", credbox.FieldFirstName, "Ann"))
	require.NoError(t, s.SaveField(ctx, "bob", credbox.FieldUserID, "42"))
	count, err = s.ActiveUserCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, s.SaveField(ctx, "alice", credbox.FieldLastName, "Lee"))
	count, err = s.ActiveUserCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Store-wide entries are not users.
	require.NoError(t, s.SaveLastUser(ctx, "alice"))
	require.NoError(t, s.SetString(ctx, "user", "not a field"))
	users, err := s.ActiveUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, users)

	removed, err := s.Clean(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, removed)

	count, err = s.ActiveUserCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestActiveUsersNormalizesUsernames(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := newStore(t, memory.New("m"))
	composed := "Zo\u00eb"
	decomposed := "Zoe\u0308"

	require.NoError(t, s.SaveField(ctx, composed, credbox.FieldFirstName, "Zo\u00eb"))
	require.NoError(t, s.SaveField(ctx, decomposed, credbox.FieldLastName, "Park"))

	users, err := s.ActiveUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{composed}, users)

	name, found, err := s.FullName(ctx, decomposed)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Zo\u00eb Park", name)
}

func TestActiveUsersScanFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fv := fakes.NewFakeVault()
	s := newStore(t, fv)
	fv.FailOp("scan", vault.StatusNotAvailable)

	count, err := s.ActiveUserCount(ctx)
	assert.ErrorIs(t, err, vault.ErrNotAvailable)
	assert.Zero(t, count)
	assert.Equal(t, vault.StatusNotAvailable, s.LastStatus())
}

func TestFullName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		first     *string
		last      *string
		want      string
		wantFound bool
	}{
		{name: "first only", first: ptr("Ann"), want: "Ann", wantFound: true},
		{name: "last only", last: ptr("Lee"), want: "Lee", wantFound: true},
		{name: "both", first: ptr("Ann"), last: ptr("Lee"), want: "Ann Lee", wantFound: true},
		{name: "empty first", first: ptr(""), last: ptr("Lee"), want: "Lee", wantFound: true},
		{name: "neither"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			s := newStore(t, memory.New("m"))

			if tt.first != nil {
				require.NoError(t, s.SaveField(ctx, "alice", credbox.FieldFirstName, *tt.first))
			}
			if tt.last != nil {
				require.NoError(t, s.SaveField(ctx, "alice", credbox.FieldLastName, *tt.last))
			}

			got, found, err := s.FullName(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCleanScopedToPrefix(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	v := memory.New("shared")
	appA := newStore(t, v, credbox.WithPrefix("appA"))
	appB := newStore(t, v, credbox.WithPrefix("appB"))
	// A prefix that extends appA must not be swept along with it.
	appAX := newStore(t, v, credbox.WithPrefix("appA.x"))

	for _, s := range []*credbox.Store{appA, appB, appAX} {
		require.NoError(t, s.SetString(ctx, "token", s.Prefix()))
		require.NoError(t, s.SaveField(ctx, "alice", credbox.FieldFirstName, "Ann"))
	}

	removed, err := appA.Clean(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, found, err := appA.String(ctx, "token")
	require.NoError(t, err)
	assert.False(t, found)

	for _, s := range []*credbox.Store{appB, appAX} {
		got, found, err := s.String(ctx, "token")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, s.Prefix(), got)

		count, err := s.ActiveUserCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	}
}

func TestCleanReportsPartialFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fv := fakes.NewFakeVault()
	s := newStore(t, fv)
	require.NoError(t, s.SetString(ctx, "a", "1"))
	require.NoError(t, s.SetString(ctx, "b", "2"))
	full, err := keyspace.Derive(s.Prefix(), "a")
	require.NoError(t, err)
	fv.FailKey(full, vault.StatusAuthFailed)

	removed, err := s.Clean(ctx)
	assert.ErrorIs(t, err, vault.ErrAccessDenied)
	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{full}, fv.Keys())
}

func TestUserFieldValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := newStore(t, memory.New("m"))

	err := s.SaveField(ctx, "", credbox.FieldFirstName, "Ann")
	assert.ErrorIs(t, err, keyspace.ErrEmptyUsername)

	err = s.SaveField(ctx, "alice", credbox.FieldName("shoeSize"), "42")
	assert.ErrorIs(t, err, credbox.ErrUnknownField)
	assert.Equal(t, vault.StatusParam, s.LastStatus())

	f, err := credbox.ParseField("FIRSTNAME")
	require.NoError(t, err)
	assert.Equal(t, credbox.FieldFirstName, f)
	_, err = credbox.ParseField("nope")
	assert.ErrorIs(t, err, credbox.ErrUnknownField)

	assert.Len(t, credbox.Fields(), 14)
	assert.True(t, credbox.FieldUserPassword.Secret())
	assert.False(t, credbox.FieldFolderGUID.Secret())
}

func TestEncryptionKeyRepresentations(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := newStore(t, memory.New("m"))
	key := []byte{0xde, 0xad, 0xbe, 0xef}

	// Older schema: opaque string. Newer schema: blob.
	require.NoError(t, s.SaveField(ctx, "alice", credbox.FieldDatabaseEncryptionKey, hex.EncodeToString(key)))
	require.NoError(t, s.SaveFieldBytes(ctx, "alice", credbox.FieldFileEncryptionKey, key))

	str, found, err := s.Field(ctx, "alice", credbox.FieldDatabaseEncryptionKey)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "deadbeef", str)

	blob, found, err := s.FieldBytes(ctx, "alice", credbox.FieldFileEncryptionKey)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, key, blob)

	// The accessor has to match the representation.
	_, found, err = s.FieldBytes(ctx, "alice", credbox.FieldDatabaseEncryptionKey)
	assert.ErrorIs(t, err, codec.ErrDecodeMismatch)
	assert.False(t, found)

	buf, found, err := s.SecretField(ctx, "alice", credbox.FieldFileEncryptionKey)
	require.NoError(t, err)
	require.True(t, found)
	defer buf.Destroy()
	plain, err := buf.Copy()
	require.NoError(t, err)
	assert.Equal(t, key, plain)

	buf2, found, err := s.SecretField(ctx, "alice", credbox.FieldDatabaseEncryptionKey)
	require.NoError(t, err)
	require.True(t, found)
	defer buf2.Destroy()
	text, err := buf2.Text()
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", text)

	require.NoError(t, s.SaveFieldBytes(ctx, "alice", credbox.FieldFileEncryptionKey, nil))
	_, found, err = s.FieldBytes(ctx, "alice", credbox.FieldFileEncryptionKey)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLoadSaveDeleteUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	v := memory.New("m")
	s := newStore(t, v)

	rec, err := s.LoadUser(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, rec)

	in := &credbox.UserRecord{
		Username:          "alice",
		UserID:            "u-1",
		FirstName:         "Ann",
		LastName:          "Lee",
		OrganizationName:  "Acme",
		OrganizationCity:  "Oslo",
		FileEncryptionKey: []byte{1, 2, 3},
		HashPassword:      "$2a$10$hash",
	}
	require.NoError(t, s.SaveUser(ctx, in))
	require.NoError(t, s.SaveField(ctx, "bob", credbox.FieldFirstName, "Bob"))
	assert.Equal(t, 8, v.Len())

	out, err := s.LoadUser(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, in, out)
	assert.Equal(t, "Ann Lee", out.FullName())

	got, ok := out.Value(credbox.FieldFileEncryptionKey)
	assert.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, got)
	got, ok = out.Value(credbox.FieldOrganizationCity)
	assert.True(t, ok)
	assert.Equal(t, []byte("Oslo"), got)
	_, ok = out.Value(credbox.FieldBadgeNumber)
	assert.False(t, ok)

	removed, err := s.DeleteUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 7, removed)

	users, err := s.ActiveUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, users)

	err = s.SaveUser(ctx, &credbox.UserRecord{})
	assert.ErrorIs(t, err, keyspace.ErrEmptyUsername)
}

func TestLastUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := newStore(t, memory.New("m"))

	_, found, err := s.LastUser(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.SaveLastUser(ctx, "Zoe\u0308"))
	got, found, err := s.LastUser(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Zo\u00eb", got)

	assert.ErrorIs(t, s.SaveLastUser(ctx, ""), keyspace.ErrEmptyUsername)
}

func TestEnsureHashedAppUUID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := newStore(t, memory.New("m"))

	id, err := s.EnsureHashedAppUUID(ctx)
	require.NoError(t, err)
	assert.Len(t, id, 64)
	_, err = hex.DecodeString(id)
	require.NoError(t, err)

	again, err := s.EnsureHashedAppUUID(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	require.NoError(t, s.SaveHashedAppUUID(ctx, "fixed"))
	got, found, err := s.HashedAppUUID(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "fixed", got)

	// Other stores get their own identifier.
	other := newStore(t, memory.New("m2"))
	otherID, err := other.EnsureHashedAppUUID(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, id, otherID)
}

func ptr(s string) *string { return &s }
