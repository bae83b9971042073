package fakes

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/systmms/credbox/pkg/vault"
)

// FakeVault is a map-backed vault.Vault whose calls can be made to fail per
// operation or per key.
type FakeVault struct {
	mu sync.Mutex

	// Items maps fully-qualified keys to stored items
	Items map[string]vault.Item

	// OpErrors maps an operation ("put", "get", "delete", "scan") to the
	// error every call of it returns
	OpErrors map[string]error

	// KeyErrors maps a fully-qualified key to the error every call on it
	// returns
	KeyErrors map[string]error

	// Calls records "op key" for every call
	Calls []string
}

// NewFakeVault creates an empty fake vault.
func NewFakeVault() *FakeVault {
	return &FakeVault{
		Items:     make(map[string]vault.Item),
		OpErrors:  make(map[string]error),
		KeyErrors: make(map[string]error),
	}
}

// FailOp makes every call of op fail with a *vault.Error carrying status.
func (f *FakeVault) FailOp(op string, status vault.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.OpErrors[op] = vault.NewError(op, "", status, nil)
}

// FailKey makes every call on fullKey fail with a *vault.Error carrying
// status.
func (f *FakeVault) FailKey(fullKey string, status vault.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.KeyErrors[fullKey] = vault.NewError("", fullKey, status, nil)
}

// Reset clears all injected failures.
func (f *FakeVault) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.OpErrors = make(map[string]error)
	f.KeyErrors = make(map[string]error)
}

// Keys returns the stored keys in order.
func (f *FakeVault) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.Items))
	for k := range f.Items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (f *FakeVault) fail(op, key string) error {
	f.Calls = append(f.Calls, op+" "+key)
	if err, ok := f.OpErrors[op]; ok {
		return err
	}
	if err, ok := f.KeyErrors[key]; ok {
		return err
	}
	return nil
}

func (f *FakeVault) Name() string { return "fake" }

func (f *FakeVault) Put(ctx context.Context, fullKey string, payload []byte, access vault.Accessibility) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("put", fullKey); err != nil {
		return err
	}
	f.Items[fullKey] = vault.Item{Payload: append([]byte{}, payload...), Accessibility: access}
	return nil
}

func (f *FakeVault) Get(ctx context.Context, fullKey string) (vault.Item, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("get", fullKey); err != nil {
		return vault.Item{}, false, err
	}
	item, ok := f.Items[fullKey]
	if !ok {
		return vault.Item{}, false, nil
	}
	item.Payload = append([]byte{}, item.Payload...)
	return item, true, nil
}

func (f *FakeVault) Delete(ctx context.Context, fullKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("delete", fullKey); err != nil {
		return err
	}
	delete(f.Items, fullKey)
	return nil
}

func (f *FakeVault) Scan(ctx context.Context, prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("scan", prefix); err != nil {
		return nil, err
	}
	var keys []string
	for k := range f.Items {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

var _ vault.Vault = (*FakeVault)(nil)
