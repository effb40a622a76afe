package clipboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryFormats(t *testing.T) {
	m := NewMemory()
	_, err := m.Text()
	assert.ErrorIs(t, err, ErrEmpty)

	require.NoError(t, m.SetHTML("<b>hi</b>", "hi"))
	text, err := m.Text()
	require.NoError(t, err)
	assert.Equal(t, "hi", text)
	html, err := m.HTML()
	require.NoError(t, err)
	assert.Equal(t, "<b>hi</b>", html)

	require.NoError(t, m.SetText("plain"))
	_, err = m.HTML()
	assert.ErrorIs(t, err, ErrEmpty)

	png := []byte{0x89, 'P', 'N', 'G'}
	require.NoError(t, m.SetImage(png))
	got, err := m.Image()
	require.NoError(t, err)
	assert.Equal(t, png, got)
	got[0] = 0
	again, _ := m.Image()
	assert.Equal(t, byte(0x89), again[0])
}

func TestSystemUnsupportedFormats(t *testing.T) {
	var s System
	_, err := s.HTML()
	assert.ErrorIs(t, err, ErrNotSupported)
	_, err = s.Image()
	assert.ErrorIs(t, err, ErrNotSupported)
	assert.ErrorIs(t, s.SetImage(nil), ErrNotSupported)
}

var _ Backend = (*Memory)(nil)
var _ Backend = System{}
