package media

import (
	"bytes"
	"errors"
	"testing"

	"github.com/anonto42/lofi-room/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R', 0, 0, 0, 1, 0, 0, 0, 1, 8, 6, 0, 0, 0}

func TestNewFile_Image(t *testing.T) {
	f, err := NewFile("cat.png", pngHeader)
	require.NoError(t, err)

	assert.Equal(t, models.MediaImage, f.Kind)
	assert.Equal(t, "image/png", f.ContentType)
	assert.Equal(t, ".png", f.Extension())
	assert.Equal(t, "cat.png", f.Name)
}

func TestNewFile_Audio(t *testing.T) {
	data := append([]byte("ID3\x03\x00\x00\x00\x00\x00\x00"), make([]byte, 64)...)
	f, err := NewFile("rain.mp3", data)
	require.NoError(t, err)

	assert.Equal(t, models.MediaAudio, f.Kind)
	assert.Equal(t, ".mp3", f.Extension())
}

func TestNewFile_SniffsContentNotName(t *testing.T) {
	// a text file renamed to .png is still text
	_, err := NewFile("fake.png", []byte("just some words, not an image"))
	assert.True(t, errors.Is(err, models.ErrUnsupportedMedia))
}

func TestNewFile_SizeLimits(t *testing.T) {
	_, err := NewFile("empty.png", nil)
	assert.Equal(t, models.CodeValidation, models.CodeOf(err))

	big := append(append([]byte(nil), pngHeader...), bytes.Repeat([]byte{0}, MaxFileSize)...)
	_, err = NewFile("big.png", big)
	assert.Equal(t, models.CodeValidation, models.CodeOf(err))
}
