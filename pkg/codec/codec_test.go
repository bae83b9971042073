package codec_test

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/credbox/pkg/codec"
)

// badge is a caller-defined archivable record.
type badge struct {
	Number string `json:"number"`
	Org    string `json:"org"`
}

func (*badge) ArchiveType() string { return "test/badge" }

func (b *badge) MarshalArchive() ([]byte, error) { return json.Marshal(b) }

func (b *badge) UnmarshalArchive(data []byte) error {
	var out badge
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("%w: %v", codec.ErrDecodeMismatch, err)
	}
	*b = out
	return nil
}

func sampleValues() map[string]codec.Value {
	return map[string]codec.Value{
		"string":       codec.String("héllo"),
		"empty_string": codec.String(""),
		"list":         codec.List{"b", "a", "b"},
		"empty_list":   codec.List{},
		"set":          codec.NewSet("viewer", "admin"),
		"map":          codec.Map{"city": "Oslo", "country": "NO"},
		"time":         codec.Time(time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC)),
		"blob":         codec.Blob{0x00, 0x01, 0xfe, 0xff},
	}
}

func assertSameValue(t *testing.T, want, got codec.Value) {
	t.Helper()

	require.Equal(t, want.Kind(), got.Kind())
	switch w := want.(type) {
	case codec.Time:
		assert.True(t, w.Std().Equal(got.(codec.Time).Std()), "want %v, got %v", w.Std(), got.(codec.Time).Std())
	case codec.List:
		assert.Equal(t, []string(w), []string(got.(codec.List)))
	case codec.Set:
		assert.ElementsMatch(t, w.Members(), got.(codec.Set).Members())
	case codec.Blob:
		assert.Equal(t, []byte(w), []byte(got.(codec.Blob)))
	default:
		assert.Equal(t, want, got)
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	for _, gen := range []codec.Generation{codec.GenerationLegacy, codec.GenerationArchive} {
		for name, v := range sampleValues() {
			gen, name, v := gen, name, v
			t.Run(gen.String()+"/"+name, func(t *testing.T) {
				t.Parallel()

				payload, err := codec.Codec{Generation: gen}.Encode(v)
				require.NoError(t, err)

				detected, err := codec.Detect(payload)
				require.NoError(t, err)
				assert.Equal(t, gen, detected)

				got, g, err := codec.Decode(payload)
				require.NoError(t, err)
				assert.Equal(t, gen, g)
				assertSameValue(t, v, got)

				typed, err := codec.DecodeAs(payload, v.Kind())
				require.NoError(t, err)
				assertSameValue(t, v, typed)
			})
		}
	}
}

func TestListOrderPreserved(t *testing.T) {
	t.Parallel()

	in := codec.List{"z", "a", "m", "a"}
	for _, gen := range []codec.Generation{codec.GenerationLegacy, codec.GenerationArchive} {
		payload, err := codec.Codec{Generation: gen}.Encode(in)
		require.NoError(t, err)
		got, err := codec.DecodeAs(payload, codec.KindList)
		require.NoError(t, err)
		assert.Equal(t, in, got)
	}
}

func TestLegacyGolden(t *testing.T) {
	t.Parallel()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	legacy := codec.Codec{Generation: codec.GenerationLegacy}

	cases := map[string]codec.Value{
		"legacy_string":     codec.String("héllo"),
		"legacy_list":       codec.List{"b", "a", "b"},
		"legacy_set":        codec.NewSet("viewer", "admin"),
		"legacy_map":        codec.Map{"country": "NO", "city": "Oslo"},
		"legacy_time":       codec.Time(time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC)),
		"legacy_blob":       codec.Blob{0x00, 0x01, 0xfe, 0xff},
		"legacy_empty_list": codec.List{},
	}
	for name, v := range cases {
		payload, err := legacy.Encode(v)
		require.NoError(t, err, name)
		g.Assert(t, name, payload)
	}
}

func TestDecodeLegacyFixtures(t *testing.T) {
	t.Parallel()

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))

	got, gen, err := codec.Decode(g.GoldenFileData(t, "legacy_map"))
	require.NoError(t, err)
	assert.Equal(t, codec.GenerationLegacy, gen)
	assert.Equal(t, codec.Map{"city": "Oslo", "country": "NO"}, got)

	got, _, err = codec.Decode(g.GoldenFileData(t, "legacy_time"))
	require.NoError(t, err)
	assert.Equal(t, int64(1704164645), got.(codec.Time).Std().Unix())
	assert.Equal(t, 6, got.(codec.Time).Std().Nanosecond())
}

func TestDetect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload []byte
		want    codec.Generation
		wantErr bool
	}{
		{name: "empty", payload: nil, wantErr: true},
		{name: "unknown_tag", payload: []byte("xabc"), wantErr: true},
		{name: "legacy_string", payload: []byte("shi"), want: codec.GenerationLegacy},
		{name: "legacy_blob", payload: []byte{'b'}, want: codec.GenerationLegacy},
		{name: "archive", payload: []byte{0xC5, 'C', 'B', 'X', 0x02}, want: codec.GenerationArchive},
		{name: "short_magic", payload: []byte{0xC5, 'C', 'B'}, wantErr: true},
		{name: "other_version", payload: []byte{0xC5, 'C', 'B', 'X', 0x03}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := codec.Detect(tt.payload)
			if tt.wantErr {
				assert.ErrorIs(t, err, codec.ErrDecodeMismatch)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeAsMismatch(t *testing.T) {
	t.Parallel()

	for _, gen := range []codec.Generation{codec.GenerationLegacy, codec.GenerationArchive} {
		payload, err := codec.Codec{Generation: gen}.Encode(codec.List{"a"})
		require.NoError(t, err)

		v, err := codec.DecodeAs(payload, codec.KindString)
		assert.Nil(t, v)
		require.ErrorIs(t, err, codec.ErrDecodeMismatch)

		var mismatch *codec.MismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, codec.TypeString, mismatch.Want)
		assert.Equal(t, codec.TypeList, mismatch.Got)
	}
}

func TestDecodeCorrupted(t *testing.T) {
	t.Parallel()

	tests := map[string][]byte{
		"list_count_too_large":   {'l', 0x05, 0x01, 'a'},
		"list_trailing":          {'l', 0x01, 0x01, 'a', 'z'},
		"list_element_truncated": {'l', 0x01, 0x04, 'a'},
		"map_missing_value":      {'m', 0x01, 0x01, 'k'},
		"time_short":             {'t', 0x00, 0x01},
		"time_nanos_overflow":    {'t', 0, 0, 0, 0, 0, 0, 0, 0, 0x3b, 0x9a, 0xca, 0x00},
		"string_invalid_utf8":    {'s', 0xff},
		"archive_garbage":        {0xC5, 'C', 'B', 'X', 0x02, 0xff, 0xff},
		"archive_no_type":        {0xC5, 'C', 'B', 'X', 0x02},
	}

	for name, payload := range tests {
		v, _, err := codec.Decode(payload)
		assert.Nil(t, v, name)
		assert.ErrorIs(t, err, codec.ErrDecodeMismatch, name)
	}
}

func TestEncodeRejects(t *testing.T) {
	t.Parallel()

	for _, gen := range []codec.Generation{codec.GenerationLegacy, codec.GenerationArchive} {
		c := codec.Codec{Generation: gen}

		_, err := c.Encode(nil)
		assert.ErrorIs(t, err, codec.ErrUnsupportedType)

		_, err = c.Encode(codec.String("\xff"))
		assert.ErrorIs(t, err, codec.ErrUnsupportedType)

		_, err = c.Encode(codec.Time(time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC)))
		assert.ErrorIs(t, err, codec.ErrUnsupportedType)
	}
}

func TestZeroCodecWritesArchive(t *testing.T) {
	t.Parallel()

	payload, err := codec.Codec{}.Encode(codec.String("x"))
	require.NoError(t, err)
	gen, err := codec.Detect(payload)
	require.NoError(t, err)
	assert.Equal(t, codec.DefaultGeneration, gen)
}

func TestParseKindAndGeneration(t *testing.T) {
	t.Parallel()

	k, err := codec.ParseKind("Bytes")
	require.NoError(t, err)
	assert.Equal(t, codec.KindBlob, k)
	k, err = codec.ParseKind("set")
	require.NoError(t, err)
	assert.Equal(t, codec.KindSet, k)
	_, err = codec.ParseKind("tuple")
	assert.Error(t, err)

	g, err := codec.ParseGeneration("legacy")
	require.NoError(t, err)
	assert.Equal(t, codec.GenerationLegacy, g)
	g, err = codec.ParseGeneration("2")
	require.NoError(t, err)
	assert.Equal(t, codec.GenerationArchive, g)
	_, err = codec.ParseGeneration("3")
	assert.Error(t, err)
}
