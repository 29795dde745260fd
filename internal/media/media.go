package media

import (
	"context"
	"fmt"
	"strings"

	"github.com/anonto42/lofi-room/backend/internal/models"
	"github.com/gabriel-vasile/mimetype"
)

// MaxFileSize caps uploaded attachments.
const MaxFileSize = 10 << 20

// File is an attachment waiting to be uploaded
type File struct {
	Name        string
	ContentType string
	Kind        models.MediaKind
	Data        []byte
}

// NewFile sniffs the content type of data and classifies it.
func NewFile(name string, data []byte) (*File, error) {
	if len(data) == 0 {
		return nil, models.NewValidationError("file is empty")
	}
	if len(data) > MaxFileSize {
		return nil, models.NewValidationError(fmt.Sprintf("file exceeds %d bytes", MaxFileSize))
	}

	mt := mimetype.Detect(data)
	var kind models.MediaKind
	switch {
	case strings.HasPrefix(mt.String(), "image/"):
		kind = models.MediaImage
	case strings.HasPrefix(mt.String(), "audio/"):
		kind = models.MediaAudio
	default:
		return nil, models.Wrap(models.ErrUnsupportedMedia, fmt.Errorf("detected %s", mt.String()))
	}

	return &File{Name: name, ContentType: mt.String(), Kind: kind, Data: data}, nil
}

// Extension returns the canonical extension of the sniffed type, e.g. ".png".
func (f *File) Extension() string {
	if mt := mimetype.Lookup(f.ContentType); mt != nil {
		return mt.Extension()
	}
	return ""
}

// Uploader stores a file and returns its public URL
type Uploader interface {
	Upload(ctx context.Context, f *File) (string, error)
}
