//go:build darwin

package keyring

import (
	"errors"
	"fmt"
	"os"
	"strings"

	gokeyring "github.com/zalando/go-keyring"

	"github.com/systmms/credbox/internal/vaults/contracts"
)

// darwinKeyringClient stores items in the login keychain
type darwinKeyringClient struct{}

func newPlatformKeyringClient() contracts.KeyringClient {
	return &darwinKeyringClient{}
}

func (c *darwinKeyringClient) Set(service, account, secret string) error {
	return translate(gokeyring.Set(service, account, secret))
}

func (c *darwinKeyringClient) Get(service, account string) (string, error) {
	secret, err := gokeyring.Get(service, account)
	return secret, translate(err)
}

func (c *darwinKeyringClient) Delete(service, account string) error {
	return translate(gokeyring.Delete(service, account))
}

// IsAvailable returns true since we're on macOS
func (c *darwinKeyringClient) IsAvailable() bool {
	return true
}

// IsHeadless returns true for SSH sessions and CI, where unlock prompts cannot
// be answered
func (c *darwinKeyringClient) IsHeadless() bool {
	return os.Getenv("SSH_TTY") != "" || os.Getenv("CI") != ""
}

// translate maps security(1) failures onto the contract errors
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gokeyring.ErrNotFound) {
		return contracts.ErrKeyringItemNotFound
	}
	if errors.Is(err, gokeyring.ErrSetDataTooBig) {
		return fmt.Errorf("%w: %v", contracts.ErrKeyringDataTooBig, err)
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "user interaction is not allowed"),
		strings.Contains(msg, "keychain is locked"):
		return fmt.Errorf("%w: %v", contracts.ErrKeyringLocked, err)
	case strings.Contains(msg, "access denied"),
		strings.Contains(msg, "user denied"),
		strings.Contains(msg, "canceled"):
		return fmt.Errorf("%w: %v", contracts.ErrKeyringAccessDenied, err)
	case strings.Contains(msg, "executable file not found"):
		return fmt.Errorf("%w: %v", contracts.ErrKeyringUnavailable, err)
	}
	return err
}

var _ contracts.KeyringClient = (*darwinKeyringClient)(nil)
