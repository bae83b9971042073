package boltvault

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/credbox/pkg/vault"
)

func openTemp(t *testing.T) *Vault {
	t.Helper()
	v, err := Open("file", map[string]interface{}{"path": filepath.Join(t.TempDir(), "nested", "credbox.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })
	return v
}

func TestBoltPutGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	v := openTemp(t)
	fixed := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	v.now = func() time.Time { return fixed }

	require.NoError(t, v.Put(ctx, "3:app.k", []byte("payload"), vault.AccessibleAfterFirstUnlockThisDeviceOnly))

	item, found, err := v.Get(ctx, "3:app.k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("payload"), item.Payload)
	assert.Equal(t, vault.AccessibleAfterFirstUnlockThisDeviceOnly, item.Accessibility)
	assert.True(t, fixed.Equal(item.ModifiedAt))

	_, found, err = v.Get(ctx, "3:app.absent")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBoltPersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "credbox.db")

	v, err := Open("file", map[string]interface{}{"path": path})
	require.NoError(t, err)
	require.NoError(t, v.Put(ctx, "3:app.k", []byte("kept"), vault.AccessibleAlways))
	require.NoError(t, v.Close())

	v, err = Open("file", map[string]interface{}{"path": path})
	require.NoError(t, err)
	defer v.Close()

	item, found, err := v.Get(ctx, "3:app.k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("kept"), item.Payload)
}

func TestBoltLockedByAnotherHandle(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "credbox.db")

	v, err := Open("file", map[string]interface{}{"path": path})
	require.NoError(t, err)
	defer v.Close()

	_, err = Open("file", map[string]interface{}{"path": path, "timeout": "50ms"})
	assert.ErrorIs(t, err, vault.ErrNotAvailable)
}

func TestBoltScanAndDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	v := openTemp(t)

	for _, k := range []string{"4:appA.b", "4:appA.a", "4:appB.a", "3:app.a"} {
		require.NoError(t, v.Put(ctx, k, []byte("v"), vault.AccessibleAlways))
	}

	keys, err := v.Scan(ctx, "4:appA.")
	require.NoError(t, err)
	assert.Equal(t, []string{"4:appA.a", "4:appA.b"}, keys)

	require.NoError(t, v.Delete(ctx, "4:appA.a"))
	require.NoError(t, v.Delete(ctx, "4:appA.a"))

	keys, err = v.Scan(ctx, "4:appA.")
	require.NoError(t, err)
	assert.Equal(t, []string{"4:appA.b"}, keys)
}

func TestBoltOpenRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := Open("file", nil)
	assert.Error(t, err)
	_, err = Open("file", map[string]interface{}{"path": filepath.Join(t.TempDir(), "x.db"), "timeout": "soon"})
	assert.Error(t, err)
}
