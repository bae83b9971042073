//go:build linux

package keyring

import (
	"errors"
	"fmt"
	"os"
	"strings"

	gokeyring "github.com/zalando/go-keyring"

	"github.com/systmms/credbox/internal/vaults/contracts"
)

// linuxKeyringClient stores items through the Secret Service D-Bus API
type linuxKeyringClient struct{}

func newPlatformKeyringClient() contracts.KeyringClient {
	return &linuxKeyringClient{}
}

func (c *linuxKeyringClient) Set(service, account, secret string) error {
	return translate(gokeyring.Set(service, account, secret))
}

func (c *linuxKeyringClient) Get(service, account string) (string, error) {
	secret, err := gokeyring.Get(service, account)
	return secret, translate(err)
}

func (c *linuxKeyringClient) Delete(service, account string) error {
	return translate(gokeyring.Delete(service, account))
}

// IsAvailable returns true if a session bus is reachable
func (c *linuxKeyringClient) IsAvailable() bool {
	return os.Getenv("DBUS_SESSION_BUS_ADDRESS") != "" ||
		os.Getenv("DISPLAY") != "" ||
		os.Getenv("WAYLAND_DISPLAY") != ""
}

// IsHeadless returns true if running in headless environment
func (c *linuxKeyringClient) IsHeadless() bool {
	if os.Getenv("SSH_TTY") != "" || os.Getenv("CI") != "" {
		return true
	}
	return os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == ""
}

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
	case strings.Contains(msg, "org.freedesktop.secrets"),
		strings.Contains(msg, "dbus"):
		return fmt.Errorf("%w: %v", contracts.ErrKeyringUnavailable, err)
	case strings.Contains(msg, "prompt"),
		strings.Contains(msg, "locked"):
		return fmt.Errorf("%w: %v", contracts.ErrKeyringLocked, err)
	case strings.Contains(msg, "access denied"),
		strings.Contains(msg, "not authorized"):
		return fmt.Errorf("%w: %v", contracts.ErrKeyringAccessDenied, err)
	}
	return err
}

var _ contracts.KeyringClient = (*linuxKeyringClient)(nil)
