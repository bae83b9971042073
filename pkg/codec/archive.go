package codec

import (
	"bytes"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Archivable is implemented by types that can be written in the archive
// generation. ArchiveType names the type in the container and must be stable
// across releases. UnmarshalArchive must reject input that does not describe
// a value of the receiver's type.
type Archivable interface {
	ArchiveType() string
	MarshalArchive() ([]byte, error)
	UnmarshalArchive([]byte) error
}

// Archive type tags of the built-in values.
const (
	TypeString = "credbox/string"
	TypeList   = "credbox/list"
	TypeSet    = "credbox/set"
	TypeMap    = "credbox/map"
	TypeTime   = "credbox/time"
	TypeBlob   = "credbox/blob"
)

// archiveMagic starts every archive-generation payload. The leading byte is
// outside the legacy tag range so the two generations never overlap.
var archiveMagic = []byte{0xC5, 'C', 'B', 'X', 0x02}

var marshalOpts = proto.MarshalOptions{Deterministic: true}

func isArchive(p []byte) bool {
	return bytes.HasPrefix(p, archiveMagic)
}

func sealArchive(a Archivable) ([]byte, error) {
	typ := a.ArchiveType()
	if typ == "" {
		return nil, fmt.Errorf("%w: %T has an empty archive type", ErrUnsupportedType, a)
	}
	body, err := a.MarshalArchive()
	if err != nil {
		return nil, fmt.Errorf("archiving %s: %w", typ, err)
	}
	container, err := marshalOpts.Marshal(&anypb.Any{TypeUrl: typ, Value: body})
	if err != nil {
		return nil, fmt.Errorf("archiving %s: %w", typ, err)
	}
	return append(append(make([]byte, 0, len(archiveMagic)+len(container)), archiveMagic...), container...), nil
}

func openArchive(p []byte) (*anypb.Any, error) {
	if !isArchive(p) {
		return nil, corrupt("missing archive header")
	}
	var container anypb.Any
	if err := proto.Unmarshal(p[len(archiveMagic):], &container); err != nil {
		return nil, corrupt("archive container: %v", err)
	}
	if container.GetTypeUrl() == "" {
		return nil, corrupt("archive declares no type")
	}
	return &container, nil
}

// Archivable forms of the built-in values.

func (*String) ArchiveType() string { return TypeString }
func (*List) ArchiveType() string   { return TypeList }
func (*Set) ArchiveType() string    { return TypeSet }
func (*Map) ArchiveType() string    { return TypeMap }
func (*Time) ArchiveType() string   { return TypeTime }
func (*Blob) ArchiveType() string   { return TypeBlob }

func (s *String) MarshalArchive() ([]byte, error) {
	return marshalOpts.Marshal(wrapperspb.String(string(*s)))
}

func (s *String) UnmarshalArchive(b []byte) error {
	var w wrapperspb.StringValue
	if err := proto.Unmarshal(b, &w); err != nil {
		return corrupt("string archive: %v", err)
	}
	*s = String(w.GetValue())
	return nil
}

func (l *List) MarshalArchive() ([]byte, error) {
	return marshalOpts.Marshal(stringList(*l))
}

func (l *List) UnmarshalArchive(b []byte) error {
	items, err := parseStringList(b)
	if err != nil {
		return err
	}
	*l = items
	return nil
}

func (s *Set) MarshalArchive() ([]byte, error) {
	return marshalOpts.Marshal(stringList(s.Members()))
}

func (s *Set) UnmarshalArchive(b []byte) error {
	items, err := parseStringList(b)
	if err != nil {
		return err
	}
	*s = NewSet(items...)
	return nil
}

func (m *Map) MarshalArchive() ([]byte, error) {
	st := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(*m))}
	for k, v := range *m {
		st.Fields[k] = structpb.NewStringValue(v)
	}
	return marshalOpts.Marshal(st)
}

func (m *Map) UnmarshalArchive(b []byte) error {
	var st structpb.Struct
	if err := proto.Unmarshal(b, &st); err != nil {
		return corrupt("map archive: %v", err)
	}
	out := make(Map, len(st.GetFields()))
	for k, v := range st.GetFields() {
		sv, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return corrupt("map entry %q is not a string", k)
		}
		out[k] = sv.StringValue
	}
	*m = out
	return nil
}

func (t *Time) MarshalArchive() ([]byte, error) {
	return marshalOpts.Marshal(timestamppb.New(t.Std()))
}

func (t *Time) UnmarshalArchive(b []byte) error {
	var ts timestamppb.Timestamp
	if err := proto.Unmarshal(b, &ts); err != nil {
		return corrupt("time archive: %v", err)
	}
	if err := ts.CheckValid(); err != nil {
		return corrupt("time archive: %v", err)
	}
	*t = Time(ts.AsTime())
	return nil
}

func (bl *Blob) MarshalArchive() ([]byte, error) {
	return marshalOpts.Marshal(wrapperspb.Bytes(*bl))
}

func (bl *Blob) UnmarshalArchive(b []byte) error {
	var w wrapperspb.BytesValue
	if err := proto.Unmarshal(b, &w); err != nil {
		return corrupt("blob archive: %v", err)
	}
	*bl = append(Blob{}, w.GetValue()...)
	return nil
}

func stringList(items []string) *structpb.ListValue {
	lv := &structpb.ListValue{Values: make([]*structpb.Value, len(items))}
	for i, s := range items {
		lv.Values[i] = structpb.NewStringValue(s)
	}
	return lv
}

func parseStringList(b []byte) ([]string, error) {
	var lv structpb.ListValue
	if err := proto.Unmarshal(b, &lv); err != nil {
		return nil, corrupt("list archive: %v", err)
	}
	items := make([]string, len(lv.GetValues()))
	for i, v := range lv.GetValues() {
		sv, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, corrupt("list element %d is not a string", i)
		}
		items[i] = sv.StringValue
	}
	return items, nil
}

// archivableOf returns the Archivable form of a built-in value.
func archivableOf(v Value) (Archivable, error) {
	switch v := v.(type) {
	case String:
		return &v, nil
	case List:
		return &v, nil
	case Set:
		return &v, nil
	case Map:
		return &v, nil
	case Time:
		return &v, nil
	case Blob:
		return &v, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
}

// valueOf returns the built-in value behind a, if any.
func valueOf(a Archivable) (Value, bool) {
	var v Value
	switch a := a.(type) {
	case *String:
		if a != nil {
			v = *a
		}
	case *List:
		if a != nil {
			v = *a
		}
	case *Set:
		if a != nil {
			v = *a
		}
	case *Map:
		if a != nil {
			v = *a
		}
	case *Time:
		if a != nil {
			v = *a
		}
	case *Blob:
		if a != nil {
			v = *a
		}
	}
	return v, v != nil
}

func builtinFactory(typ string) (func() Archivable, bool) {
	switch typ {
	case TypeString:
		return func() Archivable { return new(String) }, true
	case TypeList:
		return func() Archivable { return new(List) }, true
	case TypeSet:
		return func() Archivable { return new(Set) }, true
	case TypeMap:
		return func() Archivable { return new(Map) }, true
	case TypeTime:
		return func() Archivable { return new(Time) }, true
	case TypeBlob:
		return func() Archivable { return new(Blob) }, true
	}
	return nil, false
}

func archiveTypeOf(k Kind) string {
	switch k {
	case KindString:
		return TypeString
	case KindList:
		return TypeList
	case KindSet:
		return TypeSet
	case KindMap:
		return TypeMap
	case KindTime:
		return TypeTime
	case KindBlob:
		return TypeBlob
	}
	return ""
}

func timestampRange(t Time) error {
	if err := timestamppb.New(t.Std()).CheckValid(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}
	return nil
}
