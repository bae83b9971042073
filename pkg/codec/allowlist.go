package codec

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// AllowList names the archive types a caller is willing to reconstruct.
type AllowList struct {
	factories map[string]func() Archivable
}

// NewAllowList builds an allow-list from factories. Each factory must return
// a fresh value whose ArchiveType is the type it reconstructs.
func NewAllowList(factories ...func() Archivable) *AllowList {
	l := &AllowList{factories: make(map[string]func() Archivable, len(factories))}
	for _, f := range factories {
		l.factories[f().ArchiveType()] = f
	}
	return l
}

// BuiltinAllowList allows every built-in value type.
func BuiltinAllowList() *AllowList {
	l := &AllowList{factories: map[string]func() Archivable{}}
	for _, typ := range []string{TypeString, TypeList, TypeSet, TypeMap, TypeTime, TypeBlob} {
		f, _ := builtinFactory(typ)
		l.factories[typ] = f
	}
	return l
}

// Allows reports whether typ is on the list.
func (l *AllowList) Allows(typ string) bool {
	if l == nil {
		return false
	}
	_, ok := l.factories[typ]
	return ok
}

// Types returns the allowed type tags in sorted order.
func (l *AllowList) Types() []string {
	if l == nil {
		return nil
	}
	out := make([]string, 0, len(l.factories))
	for typ := range l.factories {
		out = append(out, typ)
	}
	sort.Strings(out)
	return out
}

func (l *AllowList) String() string {
	return "one of [" + strings.Join(l.Types(), ", ") + "]"
}

// Unarchive reconstructs the value in payload if its declared type is on
// allow. Legacy payloads are accepted when the built-in type of their tag is
// allowed; they are lifted through the archive form of that type.
func Unarchive(payload []byte, allow *AllowList) (Archivable, error) {
	return unarchive(payload, allow.String(), func(typ string) (Archivable, bool) {
		if !allow.Allows(typ) {
			return nil, false
		}
		return allow.factories[typ](), true
	})
}

// UnarchiveInto reconstructs payload into dst, which must be a non-nil
// pointer. Only dst's own archive type is accepted. The payload is decoded
// into a fresh value that replaces *dst only on success, so a failed decode
// leaves dst untouched.
func UnarchiveInto(payload []byte, dst Archivable) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: %T is not a non-nil pointer", ErrUnsupportedType, dst)
	}
	fresh, ok := reflect.New(rv.Elem().Type()).Interface().(Archivable)
	if !ok {
		return fmt.Errorf("%w: %T", ErrUnsupportedType, dst)
	}

	want := dst.ArchiveType()
	if _, err := unarchive(payload, want, func(typ string) (Archivable, bool) {
		return fresh, typ == want
	}); err != nil {
		return err
	}
	rv.Elem().Set(reflect.ValueOf(fresh).Elem())
	return nil
}

func unarchive(payload []byte, want string, resolve func(string) (Archivable, bool)) (Archivable, error) {
	g, err := Detect(payload)
	if err != nil {
		return nil, err
	}

	var typ string
	var body []byte
	if g == GenerationLegacy {
		v, err := decodeLegacy(payload)
		if err != nil {
			return nil, err
		}
		src, err := archivableOf(v)
		if err != nil {
			return nil, err
		}
		typ = src.ArchiveType()
		if _, ok := resolve(typ); !ok {
			return nil, &MismatchError{Want: want, Got: typ}
		}
		if body, err = src.MarshalArchive(); err != nil {
			return nil, fmt.Errorf("lifting legacy %s: %w", typ, err)
		}
	} else {
		container, err := openArchive(payload)
		if err != nil {
			return nil, err
		}
		typ, body = container.GetTypeUrl(), container.GetValue()
	}

	dst, ok := resolve(typ)
	if !ok {
		return nil, &MismatchError{Want: want, Got: typ}
	}
	if err := dst.UnmarshalArchive(body); err != nil {
		return nil, undecodable(typ, err)
	}
	if got := dst.ArchiveType(); got != typ {
		return nil, &MismatchError{Want: typ, Got: got}
	}
	return dst, nil
}
