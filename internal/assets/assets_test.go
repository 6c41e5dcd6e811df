package assets

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte{0x89, 0x50, 0x4E, 0x47}

func TestPlaceholderEmbedded(t *testing.T) {
	data, err := Placeholder()
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.True(t, bytes.HasPrefix(data, pngMagic), "placeholder must be a PNG")
}

func TestGetStaticFS(t *testing.T) {
	sub, err := GetStaticFS()
	require.NoError(t, err)

	f, err := sub.Open(PlaceholderName)
	require.NoError(t, err)
	f.Close()
}

func TestGetContentType(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"banner.png", "image/png"},
		{"slide.jpg", "image/jpeg"},
		{"clip.mp4", "video/mp4"},
		{"noextension", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetContentType(tt.path))
		})
	}
}
