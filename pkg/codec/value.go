package codec

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Kind identifies a built-in value type.
type Kind uint8

const (
	KindString Kind = iota + 1
	KindList
	KindSet
	KindMap
	KindTime
	KindBlob
)

var kindNames = map[Kind]string{
	KindString: "string",
	KindList:   "list",
	KindSet:    "set",
	KindMap:    "map",
	KindTime:   "time",
	KindBlob:   "blob",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind parses a kind name. "bytes" is accepted as an alias for blob.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "bytes" {
		return KindBlob, nil
	}
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown value type %q (want string, list, set, map, time or bytes)", s)
}

// Value is one of String, List, Set, Map, Time or Blob.
type Value interface {
	Kind() Kind
	isValue()
}

// String is a UTF-8 string value.
type String string

// List is an ordered sequence of strings. Order survives a round trip.
type List []string

// Set is an unordered collection of distinct strings.
type Set map[string]struct{}

// Map is an unordered string-to-string mapping.
type Map map[string]string

// Time is an instant with nanosecond precision.
type Time time.Time

// Blob is an opaque byte string.
type Blob []byte

func (String) Kind() Kind { return KindString }
func (List) Kind() Kind   { return KindList }
func (Set) Kind() Kind    { return KindSet }
func (Map) Kind() Kind    { return KindMap }
func (Time) Kind() Kind   { return KindTime }
func (Blob) Kind() Kind   { return KindBlob }

func (String) isValue() {}
func (List) isValue()   {}
func (Set) isValue()    {}
func (Map) isValue()    {}
func (Time) isValue()   {}
func (Blob) isValue()   {}

// NewSet builds a Set from members. Duplicates collapse.
func NewSet(members ...string) Set {
	s := make(Set, len(members))
	for _, m := range members {
		s[m] = struct{}{}
	}
	return s
}

// Members returns the set's members in sorted order.
func (s Set) Members() []string {
	out := make([]string, 0, len(s))
	for m := range s {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Has reports whether m is a member of s.
func (s Set) Has(m string) bool {
	_, ok := s[m]
	return ok
}

// Std returns t as a time.Time.
func (t Time) Std() time.Time { return time.Time(t) }

func sortedKeys(m Map) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
