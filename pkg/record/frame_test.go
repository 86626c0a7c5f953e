package record

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildVarRecord(fixed, varLen int) []byte {
	rec := bytes.Repeat([]byte{0xAA}, fixed)
	rec = binary.LittleEndian.AppendUint32(rec, uint32(varLen))

	return append(rec, bytes.Repeat([]byte{0x55}, varLen)...)
}

func TestFrameLength_RoundTrip(t *testing.T) {
	for _, fixed := range []int{0, 1, 10, 64} {
		for _, varLen := range []int{0, 1, 5, 300} {
			rec := buildVarRecord(fixed, varLen)

			size, err := FrameLength(rec, 0, fixed, true)
			require.NoError(t, err)
			assert.Equal(t, fixed+4+varLen, size, "fixed=%d var=%d", fixed, varLen)
		}
	}
}

func TestFrameLength_Example(t *testing.T) {
	size, err := FrameLength(buildVarRecord(10, 5), 0, 10, true)
	require.NoError(t, err)
	assert.Equal(t, 19, size)
}

func TestFrameLength_AtOffset(t *testing.T) {
	first := buildVarRecord(3, 2)
	second := buildVarRecord(3, 7)
	buf := append(append([]byte{}, first...), second...)

	size, err := FrameLength(buf, len(first), 3, true)
	require.NoError(t, err)
	assert.Equal(t, len(second), size)
}

func TestFrameLength_FixedOnly(t *testing.T) {
	size, err := FrameLength(make([]byte, 12), 0, 12, false)
	require.NoError(t, err)
	assert.Equal(t, 12, size)

	// trailing bytes belong to the next record and are ignored
	size, err = FrameLength(make([]byte, 30), 0, 12, false)
	require.NoError(t, err)
	assert.Equal(t, 12, size)
}

func TestFrameLength_Errors(t *testing.T) {
	tests := []struct {
		name   string
		buf    []byte
		offset int
		fixed  int
		hasVar bool
		want   error
	}{
		{name: "fixed prefix truncated", buf: make([]byte, 4), fixed: 8, want: ErrShortRecord},
		{name: "length prefix truncated", buf: make([]byte, 10), fixed: 8, hasVar: true, want: ErrShortRecord},
		{name: "offset past end", buf: make([]byte, 4), offset: 9, fixed: 1, want: ErrShortRecord},
		{
			name:   "var length overruns",
			buf:    buildVarRecord(2, 5)[:9],
			fixed:  2,
			hasVar: true,
			want:   ErrFrameOverrun,
		},
		{
			name:   "hostile var length",
			buf:    binary.LittleEndian.AppendUint32(nil, 0xFFFFFFFF),
			hasVar: true,
			want:   ErrFrameOverrun,
		},
		{name: "negative offset", buf: make([]byte, 4), offset: -1, fixed: 1, want: ErrInvalidLayout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FrameLength(tt.buf, tt.offset, tt.fixed, tt.hasVar)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLayout_BuildAndCheck(t *testing.T) {
	layout := Layout{FixedSize: 4, HasVarFields: true}

	rec, err := layout.Build([]byte{1, 2, 3, 4}, []byte("hello"))
	require.NoError(t, err)
	assert.Len(t, rec, 4+4+5)
	require.NoError(t, layout.Check(rec))

	err = layout.Check(append(rec, 0))
	require.ErrorIs(t, err, ErrLengthMismatch)

	_, err = layout.Build([]byte{1}, nil)
	require.ErrorIs(t, err, ErrLengthMismatch)

	fixedOnly := Layout{FixedSize: 2}
	_, err = fixedOnly.Build([]byte{1, 2}, []byte("x"))
	require.ErrorIs(t, err, ErrLengthMismatch)
}

func TestLayout_Descriptor(t *testing.T) {
	layout := Layout{FixedSize: 10, HasVarFields: true}
	assert.Equal(t, "fixed_size=10&var_fields=true", layout.String())

	parsed, err := ParseLayout(layout.String())
	require.NoError(t, err)
	assert.Equal(t, layout, parsed)

	parsed, err = ParseLayout("fixed_size=6")
	require.NoError(t, err)
	assert.Equal(t, Layout{FixedSize: 6}, parsed)

	for _, descriptor := range []string{"", "var_fields=true", "fixed_size=abc", "fixed_size=0", "fixed_size=1&var_fields=maybe", "%zz"} {
		_, err := ParseLayout(descriptor)
		require.ErrorIs(t, err, ErrInvalidLayout, "descriptor %q", descriptor)
	}
}

func TestLayout_Validate(t *testing.T) {
	require.NoError(t, Layout{FixedSize: 0, HasVarFields: true}.Validate())
	require.ErrorIs(t, Layout{FixedSize: -1}.Validate(), ErrInvalidLayout)
	require.ErrorIs(t, Layout{}.Validate(), ErrInvalidLayout)
	assert.Equal(t, 7, Layout{FixedSize: 3, HasVarFields: true}.MinRecordSize())
}
