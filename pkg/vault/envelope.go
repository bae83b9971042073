package vault

import (
	"fmt"
)

// envelopeVersion is the first byte of every sealed item.
const envelopeVersion byte = 0x01

// Seal packs an item's payload and accessibility into a single byte slice for
// backends that can only persist an opaque value.
//
// Layout: [0x01][accessibility][payload...]
func Seal(payload []byte, access Accessibility) []byte {
	out := make([]byte, 0, len(payload)+2)
	out = append(out, envelopeVersion, byte(access))
	return append(out, payload...)
}

// Open reverses Seal.
func Open(sealed []byte) (Item, error) {
	if len(sealed) < 2 {
		return Item{}, fmt.Errorf("sealed item too short (%d bytes)", len(sealed))
	}
	if sealed[0] != envelopeVersion {
		return Item{}, fmt.Errorf("unknown sealed item version 0x%02x", sealed[0])
	}
	access := Accessibility(sealed[1])
	if !access.Valid() {
		return Item{}, fmt.Errorf("sealed item carries invalid accessibility %d", sealed[1])
	}
	payload := make([]byte, len(sealed)-2)
	copy(payload, sealed[2:])
	return Item{Payload: payload, Accessibility: access}, nil
}
