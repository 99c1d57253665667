package namehash

import (
	"testing"

	"github.com/spaolacci/murmur3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"models/foo", "models/foo.core"},
		{"models\\foo", "models/foo.core"},
		{"/models/foo.core", "models/foo.core"},
		{"sounds/music.stream", "sounds/music.stream"},
		{"prefetch/fullgame.prefetch", "prefetch/fullgame.prefetch.core"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestOf_MatchesMurmurWithTrailingNUL(t *testing.T) {
	t.Parallel()

	want, _ := murmur3.Sum128WithSeed([]byte("models/foo.core\x00"), Seed)
	assert.Equal(t, Hash(want), Of("models/foo"))
	assert.Equal(t, Of("models/foo"), Of("models\\foo.core"))
	assert.NotEqual(t, Of("models/foo"), Of("models/bar"))
}

func TestParse(t *testing.T) {
	t.Parallel()

	h, err := Parse("0xAAA")
	require.NoError(t, err)
	assert.Equal(t, Hash(0xAAA), h)

	h, err = Parse("00000000000000FF")
	require.NoError(t, err)
	assert.Equal(t, Hash(0xFF), h)

	h, err = Parse("#170")
	require.NoError(t, err)
	assert.Equal(t, Hash(170), h)

	_, err = Parse("0xZZ")
	require.ErrorIs(t, err, ErrInvalidHash)

	_, err = Parse("")
	require.ErrorIs(t, err, ErrInvalidHash)
}

func TestHashString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0000000000000AAA", Hash(0xAAA).String())
}

func TestLooksLikeHash(t *testing.T) {
	t.Parallel()

	assert.True(t, LooksLikeHash("0x1F"))
	assert.True(t, LooksLikeHash("#12"))
	assert.False(t, LooksLikeHash("models/foo"))
	assert.False(t, LooksLikeHash("0xnothex"))
	assert.True(t, IsStream("a/b.stream"))
	assert.False(t, IsStream("a/b.core"))
}
