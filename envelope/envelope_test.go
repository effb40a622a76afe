package envelope

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	for _, plaintext := range []string{"", "hello", strings.Repeat("x", 4096), "剪贴板 ✓"} {
		blob, err := Seal([]byte(plaintext), "secret")
		require.NoError(t, err)
		assert.Len(t, blob, saltSize+nonceSize+len(plaintext)+16)

		got, err := Open(blob, "secret")
		require.NoError(t, err)
		assert.Equal(t, plaintext, string(got))
	}
}

func TestSealIsRandomized(t *testing.T) {
	a, err := Seal([]byte("same"), "pw")
	require.NoError(t, err)
	b, err := Seal([]byte("same"), "pw")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestOpenWrongPassword(t *testing.T) {
	blob, err := Seal([]byte("hello"), "pw")
	require.NoError(t, err)
	_, err = Open(blob, "pw2")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestOpenCorrupted(t *testing.T) {
	blob, err := Seal([]byte("hello"), "pw")
	require.NoError(t, err)
	blob[len(blob)-1] ^= 0xff
	_, err = Open(blob, "pw")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	_, err = Open([]byte("short"), "pw")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestFieldHelpers(t *testing.T) {
	sealed, err := SealField("hello", "pw")
	require.NoError(t, err)
	assert.True(t, IsSealed(sealed))
	assert.False(t, IsSealed("hello"))

	plain, err := OpenField(sealed, "pw")
	require.NoError(t, err)
	assert.Equal(t, "hello", plain)

	plain, err = OpenField("not sealed", "pw")
	require.NoError(t, err)
	assert.Equal(t, "not sealed", plain)

	_, err = OpenField(Prefix+"%%%", "pw")
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = OpenField(sealed, "other")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}
