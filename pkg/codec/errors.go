package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrDecodeMismatch is returned when a payload cannot be decoded as the
	// expected type. It covers unknown generations, corrupted layouts and
	// declared types that are not allowed.
	ErrDecodeMismatch = errors.New("decode mismatch")

	// ErrUnsupportedType is returned when a value cannot be written in the
	// configured generation.
	ErrUnsupportedType = errors.New("unsupported value type")
)

// MismatchError reports the type a caller expected and the type the payload
// declared.
type MismatchError struct {
	Want string
	Got  string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("decode mismatch: want %s, payload holds %s", e.Want, e.Got)
}

func (e *MismatchError) Unwrap() error {
	return ErrDecodeMismatch
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDecodeMismatch, fmt.Sprintf(format, args...))
}

// undecodable classifies an UnmarshalArchive failure as a decode mismatch.
func undecodable(typ string, err error) error {
	if errors.Is(err, ErrDecodeMismatch) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrDecodeMismatch, typ, err)
}
