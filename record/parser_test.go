package record

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const magicUnknown Magic = 0x1122334455667788

func TestParse_ForwardProgressOverUnknownKinds(t *testing.T) {
	t.Parallel()

	col := Collection{
		GUID: GUID{1},
		Refs: []Reference{
			{Kind: RefNone},
			{Kind: RefLocal, GUID: GUID{2}},
			{Kind: RefExternal, GUID: GUID{3}, Path: "models/a"},
		},
	}
	var b Builder
	b.Append(magicUnknown, []byte("opaque payload")).
		AppendCollection(col).
		Append(magicUnknown+1, nil).
		Append(magicUnknown, bytes.Repeat([]byte{0xAB}, 33))
	buf := b.Bytes()

	f, err := NewParser().Parse(buf)
	require.NoError(t, err)
	require.Len(t, f.Records, 4)

	assert.Equal(t, 0, f.Records[0].Offset)
	for i := 1; i < len(f.Records); i++ {
		assert.Equal(t, f.Records[i-1].End(), f.Records[i].Offset)
	}
	assert.Equal(t, len(buf), f.Records[3].End())

	assert.Equal(t, Opaque{Data: []byte("opaque payload")}, f.Records[0].Payload)
	assert.Equal(t, col, f.Records[1].Payload)
	assert.Equal(t, Opaque{Data: []byte{}}, f.Records[2].Payload)
	assert.Equal(t, "opaque", f.Records[3].Payload.Kind())
}

func TestParse_OpaqueOwnsItsBytes(t *testing.T) {
	t.Parallel()

	var b Builder
	buf := b.Append(magicUnknown, []byte("abc")).Bytes()

	f, err := NewParser().Parse(buf)
	require.NoError(t, err)
	buf[HeaderSize] = 'X'
	assert.Equal(t, []byte("abc"), f.Records[0].Payload.(Opaque).Data)
}

func TestParse_Empty(t *testing.T) {
	t.Parallel()

	f, err := NewParser().Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, f.Records)
}

func TestParse_Truncated(t *testing.T) {
	t.Parallel()

	var b Builder
	buf := b.Append(magicUnknown, []byte("first")).Append(magicUnknown, []byte("second")).Bytes()

	tests := []struct {
		name string
		buf  []byte
	}{
		{"partial header", buf[:HeaderSize+5+4]},
		{"partial payload", buf[:len(buf)-1]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f, err := NewParser().Parse(tt.buf)
			require.ErrorIs(t, err, ErrTruncated)
			require.Len(t, f.Records, 1)
			assert.Equal(t, Opaque{Data: []byte("first")}, f.Records[0].Payload)
		})
	}
}

func TestParse_MisalignedDecoderKeepsEarlierRecords(t *testing.T) {
	t.Parallel()

	const short Magic = 0xABCD
	reg := NewRegistry()
	require.NoError(t, reg.Register(short, "Short", func(c *Cursor, h Header) (Payload, error) {
		_, err := c.U32()
		return Opaque{}, err
	}))

	var b Builder
	buf := b.Append(magicUnknown, []byte("ok")).
		Append(short, []byte("12345678")).
		Append(magicUnknown, []byte("never")).
		Bytes()

	f, err := NewParser(WithRegistry(reg)).Parse(buf)
	require.ErrorIs(t, err, ErrMisalignment)

	var mis *MisalignmentError
	require.ErrorAs(t, err, &mis)
	assert.Equal(t, HeaderSize+2, mis.Offset)
	assert.Equal(t, 8, mis.Declared)
	assert.Equal(t, 4, mis.Consumed)
	assert.Equal(t, short, mis.Magic)

	require.Len(t, f.Records, 1)
}

func TestParse_DecoderCannotReadPastItsRecord(t *testing.T) {
	t.Parallel()

	const greedy Magic = 0xBEEF
	reg := NewRegistry()
	reg.MustRegister(greedy, "Greedy", func(c *Cursor, h Header) (Payload, error) {
		return Opaque{}, c.Skip(int(h.Size) + 4)
	})

	var b Builder
	buf := b.Append(magicUnknown, []byte("head")).
		Append(greedy, []byte("1234")).
		Append(magicUnknown, []byte("tail")).Bytes()

	f, err := NewParser(WithRegistry(reg)).Parse(buf)
	require.ErrorIs(t, err, ErrTruncated)
	assert.NotErrorIs(t, err, ErrMisalignment)
	assert.Len(t, f.Records, 1)
}

func TestParse_CollectionCountCheckedAgainstRecord(t *testing.T) {
	t.Parallel()

	// The count claims two references but the payload ends after it. The
	// record that follows must not be read as reference data.
	payload := make([]byte, 20)
	binary.LittleEndian.PutUint32(payload[16:], 2)
	var b Builder
	buf := b.Append(MagicCollection, payload).Append(magicUnknown, make([]byte, 256)).Bytes()

	f, err := NewParser().Parse(buf)
	require.ErrorIs(t, err, ErrTruncated)
	assert.NotErrorIs(t, err, ErrMisalignment)
	assert.NotErrorIs(t, err, ErrMalformed)
	assert.Empty(t, f.Records)
}

func TestParse_MalformedCollection(t *testing.T) {
	t.Parallel()

	payload := append(make([]byte, 16), 1, 0, 0, 0, 9)
	var b Builder
	buf := b.Append(magicUnknown, nil).Append(MagicCollection, payload).Bytes()

	f, err := NewParser().Parse(buf)
	require.ErrorIs(t, err, ErrMalformed)
	assert.Len(t, f.Records, 1)
}

func TestParse_CollectionCountBeyondPayload(t *testing.T) {
	t.Parallel()

	payload := make([]byte, 20)
	binary.LittleEndian.PutUint32(payload[16:], 1_000_000)
	var b Builder
	_, err := NewParser().Parse(b.Append(MagicCollection, payload).Bytes())
	require.ErrorIs(t, err, ErrTruncated)
}

func TestParse_Prefetch(t *testing.T) {
	t.Parallel()

	want := Prefetch{
		GUID:    GUID{0xAA},
		Strings: []HashedString{NewHashedString("models/a"), NewHashedString("sounds/b.stream")},
		Sizes:   []uint32{10, 20},
		Indices: []uint32{1, 0, 1},
	}
	var b Builder
	f, err := NewParser().Parse(b.AppendPrefetch(want).Bytes())
	require.NoError(t, err)

	rec, ok := f.Find(MagicPrefetch)
	require.True(t, ok)
	got := rec.Payload.(Prefetch)
	assert.Equal(t, want, got)
	for _, s := range got.Strings {
		assert.True(t, s.Valid())
	}

	var paths []string
	for p := range got.Paths() {
		paths = append(paths, p)
	}
	assert.Equal(t, []string{"models/a", "sounds/b.stream"}, paths)
}

func TestPeekMagic(t *testing.T) {
	t.Parallel()

	var b Builder
	c := NewCursor(b.Append(MagicPrefetch, nil).Bytes())
	m, err := PeekMagic(c)
	require.NoError(t, err)
	assert.Equal(t, MagicPrefetch, m)
	assert.Equal(t, 0, c.Pos())

	_, err = PeekMagic(NewCursor([]byte{1, 2}))
	require.ErrorIs(t, err, ErrTruncated)
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	reg := DefaultRegistry()
	assert.Equal(t, "Collection", reg.KindName(MagicCollection))
	assert.Equal(t, "Prefetch", reg.KindName(MagicPrefetch))
	assert.Equal(t, "1122334455667788", reg.KindName(magicUnknown))
	require.ErrorIs(t, reg.Register(MagicPrefetch, "Again", decodeOpaque), ErrDuplicateKind)

	kinds := reg.Kinds()
	require.Len(t, kinds, 2)
	assert.Less(t, kinds[0].Magic, kinds[1].Magic)
}

func TestGUIDString(t *testing.T) {
	t.Parallel()

	g := GUID{0x01, 0x23, 0x45, 0x67, 0x89, 0xAB, 0xCD, 0xEF, 0x01, 0x23, 0x45, 0x67, 0x89, 0xAB, 0xCD, 0xEF}
	assert.Equal(t, "01234567-89AB-CDEF-0123-456789ABCDEF", g.String())
	assert.True(t, GUID{}.IsZero())
}

func TestIsStream(t *testing.T) {
	t.Parallel()

	assert.True(t, IsStream("sounds/a.stream"))
	assert.False(t, IsStream("sounds/a.core"))
}
