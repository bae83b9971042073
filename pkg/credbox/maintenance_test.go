package credbox_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/credbox/internal/vaults/memory"
	"github.com/systmms/credbox/pkg/codec"
	"github.com/systmms/credbox/pkg/credbox"
	"github.com/systmms/credbox/pkg/vault"
	"github.com/systmms/credbox/tests/fakes"
)

func TestMigrateLegacyToArchive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fv := fakes.NewFakeVault()
	legacy := newStore(t, fv, credbox.WithGeneration(codec.GenerationLegacy))

	require.NoError(t, legacy.SetString(ctx, "token", "abc", credbox.Accessible(vault.AccessibleAfterFirstUnlock)))
	require.NoError(t, legacy.SetList(ctx, "recent", []string{"z", "a"}))
	require.NoError(t, legacy.SaveField(ctx, "alice", credbox.FieldFirstName, "Ann", credbox.Accessible(vault.AccessibleAlwaysThisDeviceOnly)))
	require.NoError(t, legacy.SaveFieldBytes(ctx, "alice", credbox.FieldFileEncryptionKey, []byte{9}))

	current := newStore(t, fv)
	require.NoError(t, current.Archive(ctx, "badge", &badge{Number: "1"}))

	report, err := current.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, codec.GenerationArchive, report.Target)
	assert.Equal(t, 5, report.Scanned)
	assert.Equal(t, 4, report.Migrated)
	assert.Equal(t, 1, report.Current)
	assert.Empty(t, report.Failed)

	for key, item := range fv.Items {
		gen, err := codec.Detect(item.Payload)
		require.NoError(t, err)
		assert.Equal(t, codec.GenerationArchive, gen, key)
	}

	access, _, err := current.Accessibility(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, vault.AccessibleAfterFirstUnlock, access)
	access, _, err = current.Accessibility(ctx, "user.firstName.alice")
	require.NoError(t, err)
	assert.Equal(t, vault.AccessibleAlwaysThisDeviceOnly, access)

	list, _, err := current.List(ctx, "recent")
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a"}, list)
	name, _, err := current.Field(ctx, "alice", credbox.FieldFirstName)
	require.NoError(t, err)
	assert.Equal(t, "Ann", name)

	again, err := current.Migrate(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Migrated)
	assert.Equal(t, 5, again.Current)
}

func TestMigrateReportsUnconvertibleEntries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fv := fakes.NewFakeVault()
	archive := newStore(t, fv)
	require.NoError(t, archive.Archive(ctx, "badge", &badge{Number: "1"}))
	require.NoError(t, archive.SetString(ctx, "token", "abc"))

	legacy := newStore(t, fv, credbox.WithGeneration(codec.GenerationLegacy))
	report, err := legacy.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Migrated)
	require.Contains(t, report.Failed, "badge")
	assert.ErrorIs(t, report.Failed["badge"], codec.ErrDecodeMismatch)

	// The unconvertible entry is untouched and still readable.
	var b badge
	found, err := legacy.Unarchive(ctx, "badge", &b)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "1", b.Number)
}

func TestMigrateScanFailure(t *testing.T) {
	t.Parallel()

	fv := fakes.NewFakeVault()
	fv.FailOp("scan", vault.StatusIO)
	s := newStore(t, fv)

	_, err := s.Migrate(context.Background())
	assert.Error(t, err)
	assert.Equal(t, vault.StatusIO, s.LastStatus())
}

func TestAudit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	v := memory.New("m")
	s := newStore(t, v, credbox.WithGeneration(codec.GenerationLegacy))
	require.NoError(t, s.SetString(ctx, "always", "1", credbox.Accessible(vault.AccessibleAlways)))
	require.NoError(t, s.SetString(ctx, "unlocked", "2"))

	entries, err := s.Audit(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "always", entries[0].Key)
	assert.Equal(t, vault.AccessibleAlways, entries[0].Accessibility)
	assert.Equal(t, codec.GenerationLegacy, entries[0].Generation)
	assert.Equal(t, vault.AccessibleWhenUnlocked, entries[1].Accessibility)

	v.Lock()
	entries, err = s.Audit(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, vault.AccessibleAlways, entries[0].Accessibility)
	assert.Equal(t, "unlocked", entries[1].Key)
	assert.Zero(t, entries[1].Accessibility)
}

func TestDumpRespectsBuildMode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := newStore(t, memory.New("m"))
	require.NoError(t, s.SaveField(ctx, "alice", credbox.FieldFirstName, "Ann"))
	require.NoError(t, s.SaveField(ctx, "alice", credbox.FieldUserPassword, "hunter2-password"))

	var out bytes.Buffer
	err := s.Dump(ctx, "alice", &out)
	assert.NotContains(t, out.String(), "hunter2-password")

	if !credbox.DumpEnabled {
		assert.ErrorIs(t, err, credbox.ErrDumpDisabled)
		assert.Zero(t, out.Len())
		return
	}
	require.NoError(t, err)
	assert.Contains(t, out.String(), "firstName: Ann")
	assert.Contains(t, out.String(), "userPassword: [REDACTED]")
	assert.NotContains(t, out.String(), "lastName")
}
