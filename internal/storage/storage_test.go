package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectName(t *testing.T) {
	name, err := ObjectName("Photo.JPG", ImageExts)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, ".jpg"))
	assert.Len(t, name, 36+4)

	_, err = ObjectName("song.mp3", ImageExts)
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = ObjectName("song.mp3", AudioExts)
	assert.NoError(t, err)
}

func TestLocalSave(t *testing.T) {
	dir := t.TempDir()
	l := NewLocal(dir, "http://localhost:8080/")

	ref, err := l.Save(context.Background(), "images", "a.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/uploads/images/a.png", ref)

	data, err := os.ReadFile(filepath.Join(dir, "images", "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	_, err = l.Save(context.Background(), "images", "../evil.png", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "audio/mpeg", contentType("x.MP3"))
	assert.Equal(t, "application/octet-stream", contentType("x.bin"))
}
