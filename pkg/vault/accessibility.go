package vault

import (
	"fmt"
	"strings"
)

// Accessibility controls when a stored item may be read back.
//
// The values map one to one onto the platform keychain protection classes.
// The zero value is invalid so that an unset policy is never written silently.
type Accessibility uint8

const (
	// AccessibleWhenUnlocked items are readable only while the device is unlocked.
	AccessibleWhenUnlocked Accessibility = iota + 1
	// AccessibleAfterFirstUnlock items are readable once the device has been
	// unlocked at least once since boot.
	AccessibleAfterFirstUnlock
	// AccessibleAlways items are readable regardless of lock state.
	AccessibleAlways
	// AccessibleWhenPasscodeSetThisDeviceOnly items are readable while unlocked,
	// require a device passcode, and never leave the device.
	AccessibleWhenPasscodeSetThisDeviceOnly
	// AccessibleWhenUnlockedThisDeviceOnly is AccessibleWhenUnlocked without
	// migration to other devices.
	AccessibleWhenUnlockedThisDeviceOnly
	// AccessibleAfterFirstUnlockThisDeviceOnly is AccessibleAfterFirstUnlock
	// without migration to other devices.
	AccessibleAfterFirstUnlockThisDeviceOnly
	// AccessibleAlwaysThisDeviceOnly is AccessibleAlways without migration to
	// other devices.
	AccessibleAlwaysThisDeviceOnly
)

// DefaultAccessibility is the policy applied when a caller configures none.
const DefaultAccessibility = AccessibleWhenUnlocked

var accessibilityNames = map[Accessibility]string{
	AccessibleWhenUnlocked:                   "when-unlocked",
	AccessibleAfterFirstUnlock:               "after-first-unlock",
	AccessibleAlways:                         "always",
	AccessibleWhenPasscodeSetThisDeviceOnly:  "when-passcode-set-this-device-only",
	AccessibleWhenUnlockedThisDeviceOnly:     "when-unlocked-this-device-only",
	AccessibleAfterFirstUnlockThisDeviceOnly: "after-first-unlock-this-device-only",
	AccessibleAlwaysThisDeviceOnly:           "always-this-device-only",
}

// Accessibilities returns every valid policy in declaration order.
func Accessibilities() []Accessibility {
	return []Accessibility{
		AccessibleWhenUnlocked,
		AccessibleAfterFirstUnlock,
		AccessibleAlways,
		AccessibleWhenPasscodeSetThisDeviceOnly,
		AccessibleWhenUnlockedThisDeviceOnly,
		AccessibleAfterFirstUnlockThisDeviceOnly,
		AccessibleAlwaysThisDeviceOnly,
	}
}

// String returns the configuration name of the policy.
func (a Accessibility) String() string {
	if name, ok := accessibilityNames[a]; ok {
		return name
	}
	return fmt.Sprintf("accessibility(%d)", uint8(a))
}

// Valid reports whether a is one of the declared policies.
func (a Accessibility) Valid() bool {
	_, ok := accessibilityNames[a]
	return ok
}

// ThisDeviceOnly reports whether items written with a are bound to the device
// and must not be exported or replicated.
func (a Accessibility) ThisDeviceOnly() bool {
	switch a {
	case AccessibleWhenPasscodeSetThisDeviceOnly,
		AccessibleWhenUnlockedThisDeviceOnly,
		AccessibleAfterFirstUnlockThisDeviceOnly,
		AccessibleAlwaysThisDeviceOnly:
		return true
	}
	return false
}

// Readable reports whether an item written with a may be read in state.
func (a Accessibility) Readable(state DeviceState) bool {
	switch a {
	case AccessibleAlways, AccessibleAlwaysThisDeviceOnly:
		return true
	case AccessibleAfterFirstUnlock, AccessibleAfterFirstUnlockThisDeviceOnly:
		return state.UnlockedSinceBoot
	case AccessibleWhenUnlocked, AccessibleWhenUnlockedThisDeviceOnly:
		return state.Unlocked
	case AccessibleWhenPasscodeSetThisDeviceOnly:
		return state.Unlocked && state.PasscodeSet
	}
	return false
}

// Writable reports whether an item may be written with a in state. Only the
// passcode-bound policy restricts writes.
func (a Accessibility) Writable(state DeviceState) bool {
	if a == AccessibleWhenPasscodeSetThisDeviceOnly {
		return state.PasscodeSet
	}
	return true
}

// ParseAccessibility converts a configuration name into a policy. Matching is
// case-insensitive and accepts underscores in place of dashes.
func ParseAccessibility(s string) (Accessibility, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for a, name := range accessibilityNames {
		if name == norm {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown accessibility %q", s)
}

// DeviceState describes the lock state a read is evaluated against.
type DeviceState struct {
	Unlocked          bool
	UnlockedSinceBoot bool
	PasscodeSet       bool
}
