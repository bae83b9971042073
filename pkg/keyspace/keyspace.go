// Package keyspace derives fully-qualified vault keys from a store prefix and a
// logical key.
//
// A fully-qualified key has the form
//
//	<len(prefix)>:<prefix>.<logicalKey>
//
// where len is the decimal byte length of the prefix. Because the prefix length
// is explicit, the mapping is injective even when the prefix or the logical key
// contain '.' or ':', and the namespace string of one prefix is never a prefix
// of another prefix's namespace. Scanning a vault for Namespace(p) therefore
// returns exactly the keys derived from p.
package keyspace

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrEmptyKey is returned when a logical key is empty.
	ErrEmptyKey = errors.New("logical key must not be empty")
	// ErrEmptyPrefix is returned when a prefix is empty.
	ErrEmptyPrefix = errors.New("key prefix must not be empty")
	// ErrMalformedKey is returned by Split for strings Derive cannot produce.
	ErrMalformedKey = errors.New("malformed fully-qualified key")
)

// Derive returns the fully-qualified key for logicalKey under prefix.
func Derive(prefix, logicalKey string) (string, error) {
	if prefix == "" {
		return "", ErrEmptyPrefix
	}
	if logicalKey == "" {
		return "", ErrEmptyKey
	}
	return Namespace(prefix) + logicalKey, nil
}

// Namespace returns the string every key derived from prefix starts with.
func Namespace(prefix string) string {
	return strconv.Itoa(len(prefix)) + ":" + prefix + "."
}

// Split is the inverse of Derive.
func Split(fullKey string) (prefix, logicalKey string, err error) {
	colon := strings.IndexByte(fullKey, ':')
	if colon <= 0 {
		return "", "", fmt.Errorf("%w: %q has no length header", ErrMalformedKey, fullKey)
	}
	n, err := strconv.Atoi(fullKey[:colon])
	if err != nil || n <= 0 || strconv.Itoa(n) != fullKey[:colon] {
		return "", "", fmt.Errorf("%w: %q has an invalid length header", ErrMalformedKey, fullKey)
	}
	rest := fullKey[colon+1:]
	if len(rest) < n+2 || rest[n] != '.' {
		return "", "", fmt.Errorf("%w: %q is truncated", ErrMalformedKey, fullKey)
	}
	return rest[:n], rest[n+1:], nil
}

// Logical strips prefix's namespace from fullKey. ok is false when fullKey
// was not derived from prefix.
func Logical(prefix, fullKey string) (string, bool) {
	ns := Namespace(prefix)
	if !strings.HasPrefix(fullKey, ns) || len(fullKey) == len(ns) {
		return "", false
	}
	return fullKey[len(ns):], true
}
