package memory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/credbox/internal/vaults/memory"
	"github.com/systmms/credbox/pkg/vault"
)

func TestMemoryPutGetDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	v := memory.New("memory", memory.WithClock(func() time.Time { return fixed }))
	defer v.Close()

	payload := []byte("secret")
	require.NoError(t, v.Put(ctx, "3:app.k", payload, vault.AccessibleWhenUnlocked))
	assert.Equal(t, []byte("secret"), payload, "caller's slice is left intact")

	item, found, err := v.Get(ctx, "3:app.k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("secret"), item.Payload)
	assert.Equal(t, vault.AccessibleWhenUnlocked, item.Accessibility)
	assert.Equal(t, fixed, item.ModifiedAt)

	require.NoError(t, v.Delete(ctx, "3:app.k"))
	require.NoError(t, v.Delete(ctx, "3:app.k"))
	_, found, err = v.Get(ctx, "3:app.k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryEmptyPayload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	v := memory.New("memory")

	require.NoError(t, v.Put(ctx, "3:app.k", nil, vault.AccessibleAlways))
	item, found, err := v.Get(ctx, "3:app.k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Empty(t, item.Payload)
}

func TestMemoryAccessibilityEnforced(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	v := memory.New("memory")

	require.NoError(t, v.Put(ctx, "3:app.unlocked", []byte("u"), vault.AccessibleWhenUnlocked))
	require.NoError(t, v.Put(ctx, "3:app.afu", []byte("a"), vault.AccessibleAfterFirstUnlock))
	require.NoError(t, v.Put(ctx, "3:app.always", []byte("x"), vault.AccessibleAlways))

	v.Lock()
	_, _, err := v.Get(ctx, "3:app.unlocked")
	assert.ErrorIs(t, err, vault.ErrLocked)
	_, found, err := v.Get(ctx, "3:app.afu")
	require.NoError(t, err)
	assert.True(t, found)

	err = v.Put(ctx, "3:app.unlocked", []byte("u2"), vault.AccessibleWhenUnlocked)
	assert.ErrorIs(t, err, vault.ErrLocked)

	v.Restart()
	_, _, err = v.Get(ctx, "3:app.afu")
	assert.ErrorIs(t, err, vault.ErrLocked)
	_, found, err = v.Get(ctx, "3:app.always")
	require.NoError(t, err)
	assert.True(t, found)

	keys, err := v.Scan(ctx, "3:app.")
	require.NoError(t, err)
	assert.Len(t, keys, 3, "keys stay enumerable while locked")

	v.Unlock()
	item, found, err := v.Get(ctx, "3:app.unlocked")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("u"), item.Payload)
}

func TestMemoryPasscodeBoundItems(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	v := memory.New("memory", memory.WithDeviceState(vault.DeviceState{Unlocked: true, UnlockedSinceBoot: true}))

	err := v.Put(ctx, "3:app.k", []byte("x"), vault.AccessibleWhenPasscodeSetThisDeviceOnly)
	assert.ErrorIs(t, err, vault.ErrNotAvailable)

	v.SetPasscode(true)
	require.NoError(t, v.Put(ctx, "3:app.k", []byte("x"), vault.AccessibleWhenPasscodeSetThisDeviceOnly))
	require.NoError(t, v.Put(ctx, "3:app.other", []byte("y"), vault.AccessibleWhenUnlocked))

	v.SetPasscode(false)
	_, found, err := v.Get(ctx, "3:app.k")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 1, v.Len())
}

func TestMemoryScanPrefix(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	v := memory.New("memory")

	for _, k := range []string{"4:appA.b", "4:appA.a", "4:appB.a"} {
		require.NoError(t, v.Put(ctx, k, []byte("v"), vault.AccessibleAlways))
	}
	keys, err := v.Scan(ctx, "4:appA.")
	require.NoError(t, err)
	assert.Equal(t, []string{"4:appA.a", "4:appA.b"}, keys)
}

func TestMemoryInvalidInput(t *testing.T) {
	t.Parallel()
	v := memory.New("memory")

	assert.ErrorIs(t, v.Put(context.Background(), "", []byte("x"), vault.AccessibleAlways), vault.ErrInvalidParam)
	assert.ErrorIs(t, v.Put(context.Background(), "k", []byte("x"), vault.Accessibility(99)), vault.ErrInvalidParam)
}

func TestMemoryConcurrentAccess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	v := memory.New("memory")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("3:app.k%d", i%5)
			_ = v.Put(ctx, key, []byte(key), vault.AccessibleAlways)
			_, _, _ = v.Get(ctx, key)
			_, _ = v.Scan(ctx, "3:app.")
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 5, v.Len())
}
