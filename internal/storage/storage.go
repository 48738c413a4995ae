package storage

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrUnsupportedType = errors.New("unsupported file type")

// Store persists uploaded files and returns the public reference to them.
type Store interface {
	Save(ctx context.Context, folder, filename string, r io.Reader) (string, error)
}

var (
	ImageExts = []string{".png", ".jpg", ".jpeg", ".gif"}
	AudioExts = []string{".mp3", ".wav"}
)

var contentTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
}

// ObjectName returns a collision-free name for an upload, keeping its
// extension. It fails when the extension is not one of allowed.
func ObjectName(original string, allowed []string) (string, error) {
	ext := strings.ToLower(filepath.Ext(original))
	for _, a := range allowed {
		if ext == a {
			return uuid.NewString() + ext, nil
		}
	}
	return "", ErrUnsupportedType
}

func contentType(filename string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}
