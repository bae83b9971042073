package credbox

import (
	"context"
	"time"

	"github.com/systmms/credbox/pkg/codec"
	"github.com/systmms/credbox/pkg/keyspace"
)

// SetString stores value under key.
func (s *Store) SetString(ctx context.Context, key, value string, opts ...WriteOption) error {
	return s.SetValue(ctx, key, codec.String(value), opts...)
}

// String returns the string stored under key.
func (s *Store) String(ctx context.Context, key string) (string, bool, error) {
	v, found, err := s.ValueAs(ctx, key, codec.KindString)
	if !found {
		return "", false, err
	}
	return string(v.(codec.String)), true, nil
}

// SetList stores an ordered list. A nil list deletes key.
func (s *Store) SetList(ctx context.Context, key string, value []string, opts ...WriteOption) error {
	if value == nil {
		return s.Delete(ctx, key)
	}
	return s.SetValue(ctx, key, codec.List(value), opts...)
}

// List returns the list stored under key in the order it was written.
func (s *Store) List(ctx context.Context, key string) ([]string, bool, error) {
	v, found, err := s.ValueAs(ctx, key, codec.KindList)
	if !found {
		return nil, false, err
	}
	return []string(v.(codec.List)), true, nil
}

// SetSet stores a set. A nil set deletes key.
func (s *Store) SetSet(ctx context.Context, key string, value codec.Set, opts ...WriteOption) error {
	if value == nil {
		return s.Delete(ctx, key)
	}
	return s.SetValue(ctx, key, value, opts...)
}

// Set returns the set stored under key.
func (s *Store) Set(ctx context.Context, key string) (codec.Set, bool, error) {
	v, found, err := s.ValueAs(ctx, key, codec.KindSet)
	if !found {
		return nil, false, err
	}
	return v.(codec.Set), true, nil
}

// SetMap stores a string mapping. A nil map deletes key.
func (s *Store) SetMap(ctx context.Context, key string, value map[string]string, opts ...WriteOption) error {
	if value == nil {
		return s.Delete(ctx, key)
	}
	return s.SetValue(ctx, key, codec.Map(value), opts...)
}

// Map returns the mapping stored under key.
func (s *Store) Map(ctx context.Context, key string) (map[string]string, bool, error) {
	v, found, err := s.ValueAs(ctx, key, codec.KindMap)
	if !found {
		return nil, false, err
	}
	return map[string]string(v.(codec.Map)), true, nil
}

// SetTime stores an instant.
func (s *Store) SetTime(ctx context.Context, key string, value time.Time, opts ...WriteOption) error {
	return s.SetValue(ctx, key, codec.Time(value), opts...)
}

// Time returns the instant stored under key, in UTC.
func (s *Store) Time(ctx context.Context, key string) (time.Time, bool, error) {
	v, found, err := s.ValueAs(ctx, key, codec.KindTime)
	if !found {
		return time.Time{}, false, err
	}
	return v.(codec.Time).Std(), true, nil
}

// SetBytes stores an opaque blob. A nil slice deletes key.
func (s *Store) SetBytes(ctx context.Context, key string, value []byte, opts ...WriteOption) error {
	if value == nil {
		return s.Delete(ctx, key)
	}
	return s.SetValue(ctx, key, codec.Blob(value), opts...)
}

// Bytes returns the blob stored under key.
func (s *Store) Bytes(ctx context.Context, key string) ([]byte, bool, error) {
	v, found, err := s.ValueAs(ctx, key, codec.KindBlob)
	if !found {
		return nil, false, err
	}
	return []byte(v.(codec.Blob)), true, nil
}

// SetValue stores any built-in value. A nil value, including a nil List,
// Set, Map or Blob, deletes key.
func (s *Store) SetValue(ctx context.Context, key string, v codec.Value, opts ...WriteOption) error {
	if isNilValue(v) {
		return s.Delete(ctx, key)
	}
	full, err := s.key(key)
	if err != nil {
		return s.fail(err)
	}
	return s.putValue(ctx, full, v, opts)
}

func isNilValue(v codec.Value) bool {
	switch v := v.(type) {
	case nil:
		return true
	case codec.List:
		return v == nil
	case codec.Set:
		return v == nil
	case codec.Map:
		return v == nil
	case codec.Blob:
		return v == nil
	}
	return false
}

// Value returns the built-in value stored under key, whatever its kind.
func (s *Store) Value(ctx context.Context, key string) (codec.Value, bool, error) {
	full, err := s.key(key)
	if err != nil {
		return nil, false, s.fail(err)
	}
	item, found, err := s.get(ctx, full)
	if err != nil || !found {
		return nil, false, err
	}
	v, _, err := codec.Decode(item.Payload)
	if err != nil {
		return nil, false, s.fail(err)
	}
	return v, true, nil
}

// ValueAs returns the value stored under key if it holds kind. Any other kind
// is a decode mismatch.
func (s *Store) ValueAs(ctx context.Context, key string, kind codec.Kind) (codec.Value, bool, error) {
	full, err := s.key(key)
	if err != nil {
		return nil, false, s.fail(err)
	}
	return s.getValue(ctx, full, kind)
}

// Archive stores a in the archive generation, whatever generation the store
// writes built-in values in. A nil a deletes key.
func (s *Store) Archive(ctx context.Context, key string, a codec.Archivable, opts ...WriteOption) error {
	if a == nil {
		return s.Delete(ctx, key)
	}
	full, err := s.key(key)
	if err != nil {
		return s.fail(err)
	}
	payload, err := codec.Codec{Generation: codec.GenerationArchive}.EncodeArchivable(a)
	if err != nil {
		return s.fail(err)
	}
	return s.put(ctx, full, payload, opts)
}

// Unarchive reconstructs the value stored under key into dst. The entry must
// declare dst's archive type; anything else fails with
// codec.ErrDecodeMismatch and leaves dst untouched.
func (s *Store) Unarchive(ctx context.Context, key string, dst codec.Archivable) (bool, error) {
	full, err := s.key(key)
	if err != nil {
		return false, s.fail(err)
	}
	item, found, err := s.get(ctx, full)
	if err != nil || !found {
		return false, err
	}
	if err := codec.UnarchiveInto(item.Payload, dst); err != nil {
		return false, s.fail(err)
	}
	return true, nil
}

// UnarchiveAny reconstructs the value stored under key if its type is on
// allow.
func (s *Store) UnarchiveAny(ctx context.Context, key string, allow *codec.AllowList) (codec.Archivable, bool, error) {
	full, err := s.key(key)
	if err != nil {
		return nil, false, s.fail(err)
	}
	item, found, err := s.get(ctx, full)
	if err != nil || !found {
		return nil, false, err
	}
	a, err := codec.Unarchive(item.Payload, allow)
	if err != nil {
		return nil, false, s.fail(err)
	}
	return a, true, nil
}

// Delete removes key. Deleting an absent key succeeds.
func (s *Store) Delete(ctx context.Context, key string) error {
	full, err := s.key(key)
	if err != nil {
		return s.fail(err)
	}
	return s.remove(ctx, full)
}

// Keys returns the logical keys of every entry under the store's prefix,
// sorted. Per-user entries are included with their user.<field>.<username>
// keys.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	full, err := s.scan(ctx, "")
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(full))
	for _, k := range full {
		if logical, ok := keyspace.Logical(s.prefix, k); ok {
			keys = append(keys, logical)
		}
	}
	return keys, nil
}

