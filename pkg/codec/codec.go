package codec

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Generation identifies an encoding generation.
type Generation uint8

const (
	GenerationLegacy  Generation = 1
	GenerationArchive Generation = 2

	// DefaultGeneration is written by a zero Codec.
	DefaultGeneration = GenerationArchive
)

func (g Generation) String() string {
	switch g {
	case GenerationLegacy:
		return "legacy"
	case GenerationArchive:
		return "archive"
	}
	return fmt.Sprintf("generation(%d)", uint8(g))
}

// ParseGeneration accepts "legacy", "archive", "1" or "2".
func ParseGeneration(s string) (Generation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "legacy", "1":
		return GenerationLegacy, nil
	case "archive", "2":
		return GenerationArchive, nil
	}
	return 0, fmt.Errorf("unknown encoding generation %q (want legacy or archive)", s)
}

// Detect classifies payload by its leading bytes.
func Detect(payload []byte) (Generation, error) {
	switch {
	case isArchive(payload):
		return GenerationArchive, nil
	case len(payload) > 0 && isLegacyTag(payload[0]):
		return GenerationLegacy, nil
	}
	return 0, corrupt("payload matches no known encoding generation")
}

// Codec encodes values in a fixed generation. The zero value writes
// DefaultGeneration.
type Codec struct {
	Generation Generation
}

func (c Codec) generation() Generation {
	if c.Generation == 0 {
		return DefaultGeneration
	}
	return c.Generation
}

// Encode writes a built-in value in the codec's generation.
func (c Codec) Encode(v Value) ([]byte, error) {
	if err := validate(v); err != nil {
		return nil, err
	}
	switch g := c.generation(); g {
	case GenerationLegacy:
		return encodeLegacy(v)
	case GenerationArchive:
		a, err := archivableOf(v)
		if err != nil {
			return nil, err
		}
		return sealArchive(a)
	default:
		return nil, fmt.Errorf("%w: generation %s", ErrUnsupportedType, g)
	}
}

// EncodeArchivable writes a. Types other than the built-in values can only be
// written in the archive generation.
func (c Codec) EncodeArchivable(a Archivable) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: nil archivable", ErrUnsupportedType)
	}
	if v, ok := valueOf(a); ok {
		return c.Encode(v)
	}
	if c.generation() != GenerationArchive {
		return nil, fmt.Errorf("%w: %s cannot be written in the %s generation", ErrUnsupportedType, a.ArchiveType(), c.generation())
	}
	return sealArchive(a)
}

// Decode reads a built-in value written in either generation.
func Decode(payload []byte) (Value, Generation, error) {
	g, err := Detect(payload)
	if err != nil {
		return nil, 0, err
	}
	if g == GenerationLegacy {
		v, err := decodeLegacy(payload)
		if err != nil {
			return nil, 0, err
		}
		return v, g, nil
	}

	container, err := openArchive(payload)
	if err != nil {
		return nil, 0, err
	}
	factory, ok := builtinFactory(container.GetTypeUrl())
	if !ok {
		return nil, 0, &MismatchError{Want: "built-in value", Got: container.GetTypeUrl()}
	}
	a := factory()
	if err := a.UnmarshalArchive(container.GetValue()); err != nil {
		return nil, 0, undecodable(container.GetTypeUrl(), err)
	}
	v, _ := valueOf(a)
	return v, g, nil
}

// DecodeAs reads payload and fails with a *MismatchError unless it holds a
// value of kind want.
func DecodeAs(payload []byte, want Kind) (Value, error) {
	if g, err := Detect(payload); err == nil && g == GenerationArchive {
		// Check the declared type before parsing the body.
		container, err := openArchive(payload)
		if err != nil {
			return nil, err
		}
		if got := container.GetTypeUrl(); got != archiveTypeOf(want) {
			return nil, &MismatchError{Want: archiveTypeOf(want), Got: got}
		}
	}
	v, _, err := Decode(payload)
	if err != nil {
		return nil, err
	}
	if v.Kind() != want {
		return nil, &MismatchError{Want: archiveTypeOf(want), Got: archiveTypeOf(v.Kind())}
	}
	return v, nil
}

// validate rejects values the archive generation cannot carry so that both
// generations accept the same inputs.
func validate(v Value) error {
	bad := func(what string) error {
		return fmt.Errorf("%w: %s is not valid UTF-8", ErrUnsupportedType, what)
	}
	switch v := v.(type) {
	case nil:
		return fmt.Errorf("%w: nil value", ErrUnsupportedType)
	case String:
		if !utf8.ValidString(string(v)) {
			return bad("string")
		}
	case List:
		for _, s := range v {
			if !utf8.ValidString(s) {
				return bad("list element")
			}
		}
	case Set:
		for s := range v {
			if !utf8.ValidString(s) {
				return bad("set member")
			}
		}
	case Map:
		for k, e := range v {
			if !utf8.ValidString(k) || !utf8.ValidString(e) {
				return bad("map entry")
			}
		}
	case Time:
		if err := timestampRange(v); err != nil {
			return err
		}
	}
	return nil
}
