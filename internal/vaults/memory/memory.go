// Package memory is an in-process vault.Vault for tests, tooling and
// ephemeral sessions. Payloads are held in memguard enclaves.
//
// The vault simulates device lock state so accessibility policies are
// enforced the way a device keychain enforces them: reads of an item fail with
// StatusInteractionNotAllowed while its policy forbids access, and removing
// the passcode destroys every passcode-bound item.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/systmms/credbox/internal/secure"
	"github.com/systmms/credbox/pkg/vault"
)

type entry struct {
	buf      *secure.SecureBuffer
	access   vault.Accessibility
	modified time.Time
}

// Vault is an in-memory vault.Vault.
type Vault struct {
	name string
	now  func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry
	state   vault.DeviceState
}

// Option configures a memory Vault.
type Option func(*Vault)

// WithDeviceState sets the initial simulated device state.
func WithDeviceState(state vault.DeviceState) Option {
	return func(v *Vault) {
		v.state = state
	}
}

// WithClock replaces time.Now for modification timestamps.
func WithClock(now func() time.Time) Option {
	return func(v *Vault) {
		v.now = now
	}
}

// New creates an empty vault. The simulated device starts unlocked with a
// passcode set.
func New(name string, opts ...Option) *Vault {
	v := &Vault{
		name:    name,
		now:     time.Now,
		entries: make(map[string]*entry),
		state:   vault.DeviceState{Unlocked: true, UnlockedSinceBoot: true, PasscodeSet: true},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Vault) Name() string {
	return v.name
}

func (v *Vault) Put(ctx context.Context, fullKey string, payload []byte, access vault.Accessibility) error {
	if fullKey == "" {
		return vault.NewError("put", fullKey, vault.StatusParam, errors.New("empty key"))
	}
	if !access.Valid() {
		return vault.NewError("put", fullKey, vault.StatusParam, errors.New("invalid accessibility"))
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if !access.Writable(v.state) {
		return vault.NewError("put", fullKey, vault.StatusNotAvailable, errors.New("no device passcode set"))
	}
	if !access.Readable(v.state) {
		return vault.NewError("put", fullKey, vault.StatusInteractionNotAllowed, errors.New("device is locked"))
	}

	if old, ok := v.entries[fullKey]; ok {
		old.buf.Destroy()
	}
	v.entries[fullKey] = &entry{
		buf:      secure.CopySecureBuffer(payload),
		access:   access,
		modified: v.now(),
	}
	return nil
}

func (v *Vault) Get(ctx context.Context, fullKey string) (vault.Item, bool, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	e, ok := v.entries[fullKey]
	if !ok {
		return vault.Item{}, false, nil
	}
	if !e.access.Readable(v.state) {
		return vault.Item{}, false, vault.NewError("get", fullKey, vault.StatusInteractionNotAllowed,
			errors.New("item is not accessible in the current device state"))
	}
	payload, err := e.buf.Copy()
	if err != nil {
		return vault.Item{}, false, vault.NewError("get", fullKey, vault.StatusDecode, err)
	}
	return vault.Item{Payload: payload, Accessibility: e.access, ModifiedAt: e.modified}, true, nil
}

func (v *Vault) Delete(ctx context.Context, fullKey string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if e, ok := v.entries[fullKey]; ok {
		e.buf.Destroy()
		delete(v.entries, fullKey)
	}
	return nil
}

// Scan lists keys regardless of lock state; only item data is protected.
func (v *Vault) Scan(ctx context.Context, prefix string) ([]string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var keys []string
	for k := range v.entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of stored items.
func (v *Vault) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.entries)
}

// State returns the simulated device state.
func (v *Vault) State() vault.DeviceState {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state
}

// Lock simulates locking the device.
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.Unlocked = false
}

// Unlock simulates unlocking the device.
func (v *Vault) Unlock() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.Unlocked = true
	v.state.UnlockedSinceBoot = true
}

// Restart simulates a reboot: the device comes back locked and has not been
// unlocked since boot.
func (v *Vault) Restart() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.Unlocked = false
	v.state.UnlockedSinceBoot = false
}

// SetPasscode simulates setting or removing the device passcode. Removing it
// destroys every item written with AccessibleWhenPasscodeSetThisDeviceOnly.
func (v *Vault) SetPasscode(set bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.PasscodeSet = set
	if set {
		return
	}
	for k, e := range v.entries {
		if e.access == vault.AccessibleWhenPasscodeSetThisDeviceOnly {
			e.buf.Destroy()
			delete(v.entries, k)
		}
	}
}

// Close destroys every enclave.
func (v *Vault) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for k, e := range v.entries {
		e.buf.Destroy()
		delete(v.entries, k)
	}
	return nil
}

var _ vault.Vault = (*Vault)(nil)
