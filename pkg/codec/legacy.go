package codec

import (
	"encoding/binary"
	"time"
	"unicode/utf8"
)

// Legacy type tags.
const (
	tagString byte = 's'
	tagList   byte = 'l'
	tagSet    byte = 'e'
	tagMap    byte = 'm'
	tagTime   byte = 't'
	tagBlob   byte = 'b'
)

const legacyTimeLen = 1 + 8 + 4

func isLegacyTag(b byte) bool {
	switch b {
	case tagString, tagList, tagSet, tagMap, tagTime, tagBlob:
		return true
	}
	return false
}

func encodeLegacy(v Value) ([]byte, error) {
	switch v := v.(type) {
	case String:
		return append([]byte{tagString}, v...), nil
	case List:
		return appendStrings([]byte{tagList}, v), nil
	case Set:
		return appendStrings([]byte{tagSet}, v.Members()), nil
	case Map:
		keys := sortedKeys(v)
		buf := binary.AppendUvarint([]byte{tagMap}, uint64(len(keys)))
		for _, k := range keys {
			buf = appendString(buf, k)
			buf = appendString(buf, v[k])
		}
		return buf, nil
	case Time:
		t := v.Std()
		buf := make([]byte, 0, legacyTimeLen)
		buf = append(buf, tagTime)
		buf = binary.BigEndian.AppendUint64(buf, uint64(t.Unix()))
		buf = binary.BigEndian.AppendUint32(buf, uint32(t.Nanosecond()))
		return buf, nil
	case Blob:
		return append([]byte{tagBlob}, v...), nil
	}
	return nil, ErrUnsupportedType
}

func decodeLegacy(p []byte) (Value, error) {
	if len(p) == 0 || !isLegacyTag(p[0]) {
		return nil, corrupt("no legacy type tag")
	}
	body := p[1:]
	switch p[0] {
	case tagString:
		if !utf8.Valid(body) {
			return nil, corrupt("legacy string is not valid UTF-8")
		}
		return String(body), nil
	case tagList:
		items, err := readStrings(body)
		if err != nil {
			return nil, err
		}
		return List(items), nil
	case tagSet:
		items, err := readStrings(body)
		if err != nil {
			return nil, err
		}
		return NewSet(items...), nil
	case tagMap:
		r := reader{buf: body}
		n, err := r.count(2)
		if err != nil {
			return nil, err
		}
		m := make(Map, n)
		for i := uint64(0); i < n; i++ {
			k, err := r.str()
			if err != nil {
				return nil, err
			}
			v, err := r.str()
			if err != nil {
				return nil, err
			}
			m[k] = v
		}
		if err := r.done(); err != nil {
			return nil, err
		}
		return m, nil
	case tagTime:
		if len(p) != legacyTimeLen {
			return nil, corrupt("legacy time is %d bytes, want %d", len(p), legacyTimeLen)
		}
		sec := int64(binary.BigEndian.Uint64(body[:8]))
		nsec := binary.BigEndian.Uint32(body[8:])
		if nsec >= 1e9 {
			return nil, corrupt("legacy time has %d nanoseconds", nsec)
		}
		return Time(time.Unix(sec, int64(nsec)).UTC()), nil
	default:
		return Blob(append([]byte{}, body...)), nil
	}
}

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

func appendStrings(buf []byte, items []string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(items)))
	for _, s := range items {
		buf = appendString(buf, s)
	}
	return buf
}

func readStrings(body []byte) ([]string, error) {
	r := reader{buf: body}
	n, err := r.count(1)
	if err != nil {
		return nil, err
	}
	items := make([]string, 0, n)
	for i := uint64(0); i < n; i++ {
		s, err := r.str()
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	return items, nil
}

type reader struct {
	buf []byte
}

func (r *reader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.buf)
	if n <= 0 {
		return 0, corrupt("bad length prefix")
	}
	r.buf = r.buf[n:]
	return v, nil
}

// count reads an element count. Each element occupies at least per bytes, so
// larger counts cannot be satisfied by the remaining input.
func (r *reader) count(per int) (uint64, error) {
	n, err := r.uvarint()
	if err != nil {
		return 0, err
	}
	if n > uint64(len(r.buf)/per) {
		return 0, corrupt("count %d exceeds payload", n)
	}
	return n, nil
}

func (r *reader) str() (string, error) {
	n, err := r.uvarint()
	if err != nil {
		return "", err
	}
	if n > uint64(len(r.buf)) {
		return "", corrupt("element length %d exceeds payload", n)
	}
	s := r.buf[:n]
	r.buf = r.buf[n:]
	if !utf8.Valid(s) {
		return "", corrupt("element is not valid UTF-8")
	}
	return string(s), nil
}

func (r *reader) done() error {
	if len(r.buf) != 0 {
		return corrupt("%d trailing bytes", len(r.buf))
	}
	return nil
}
