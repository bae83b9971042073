//go:build !darwin && !linux

package keyring

import (
	"github.com/systmms/credbox/internal/vaults/contracts"
)

// unsupportedKeyringClient is a stub for unsupported platforms
type unsupportedKeyringClient struct{}

func newPlatformKeyringClient() contracts.KeyringClient {
	return &unsupportedKeyringClient{}
}

func (c *unsupportedKeyringClient) Set(service, account, secret string) error {
	return contracts.ErrKeyringUnavailable
}

func (c *unsupportedKeyringClient) Get(service, account string) (string, error) {
	return "", contracts.ErrKeyringUnavailable
}

func (c *unsupportedKeyringClient) Delete(service, account string) error {
	return contracts.ErrKeyringUnavailable
}

// IsAvailable returns false on unsupported platforms
func (c *unsupportedKeyringClient) IsAvailable() bool {
	return false
}

// IsHeadless returns false (irrelevant on unsupported platforms)
func (c *unsupportedKeyringClient) IsHeadless() bool {
	return false
}

var _ contracts.KeyringClient = (*unsupportedKeyringClient)(nil)
