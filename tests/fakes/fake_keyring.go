package fakes

import (
	"sync"

	"github.com/systmms/credbox/internal/vaults/contracts"
)

// FakeKeyringClient is a test double for contracts.KeyringClient
type FakeKeyringClient struct {
	mu sync.Mutex

	// Secrets is a map of service -> account -> value
	Secrets map[string]map[string]string

	// Available controls whether the keyring reports as available
	Available bool

	// Headless controls whether the environment is reported as headless
	Headless bool

	// Errors maps an account to the error every call on it returns
	Errors map[string]error

	// SetErr is returned by Set() if set
	SetErr error

	// MaxSecretSize makes Set reject longer secrets, as platform keyrings do.
	// Zero means unlimited.
	MaxSecretSize int

	// Calls counts client calls by method name
	Calls map[string]int
}

// NewFakeKeyringClient creates a new fake keyring client with defaults
func NewFakeKeyringClient() *FakeKeyringClient {
	return &FakeKeyringClient{
		Secrets:   make(map[string]map[string]string),
		Errors:    make(map[string]error),
		Calls:     make(map[string]int),
		Available: true,
	}
}

// SetSecret adds a secret to the fake keyring, bypassing Set
func (f *FakeKeyringClient) SetSecret(service, account, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.put(service, account, value)
}

// RemoveSecret deletes an item behind the client's back, as another program would
func (f *FakeKeyringClient) RemoveSecret(service, account string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Secrets[service], account)
}

// Accounts returns the number of items stored for service
func (f *FakeKeyringClient) Accounts(service string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Secrets[service])
}

// Secret returns the stored value of account, bypassing Get
func (f *FakeKeyringClient) Secret(service, account string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.Secrets[service][account]
	return value, ok
}

func (f *FakeKeyringClient) put(service, account, value string) {
	if f.Secrets[service] == nil {
		f.Secrets[service] = make(map[string]string)
	}
	f.Secrets[service][account] = value
}

// Set stores a secret in the fake keyring
func (f *FakeKeyringClient) Set(service, account, secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["Set"]++

	if f.SetErr != nil {
		return f.SetErr
	}
	if err := f.Errors[account]; err != nil {
		return err
	}
	if f.MaxSecretSize > 0 && len(secret) > f.MaxSecretSize {
		return contracts.ErrKeyringDataTooBig
	}
	f.put(service, account, secret)
	return nil
}

// Get retrieves a secret from the fake keyring
func (f *FakeKeyringClient) Get(service, account string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["Get"]++

	if err := f.Errors[account]; err != nil {
		return "", err
	}
	if value, ok := f.Secrets[service][account]; ok {
		return value, nil
	}
	return "", contracts.ErrKeyringItemNotFound
}

// Delete removes a secret from the fake keyring
func (f *FakeKeyringClient) Delete(service, account string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["Delete"]++

	if err := f.Errors[account]; err != nil {
		return err
	}
	if _, ok := f.Secrets[service][account]; !ok {
		return contracts.ErrKeyringItemNotFound
	}
	delete(f.Secrets[service], account)
	return nil
}

// IsAvailable returns whether the keyring is available
func (f *FakeKeyringClient) IsAvailable() bool {
	return f.Available
}

// IsHeadless returns whether running in headless environment
func (f *FakeKeyringClient) IsHeadless() bool {
	return f.Headless
}

var _ contracts.KeyringClient = (*FakeKeyringClient)(nil)
