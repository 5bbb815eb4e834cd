package storage

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Storage is a blob store for product images.
type Storage interface {
	// Upload stores a file and returns where it can be fetched.
	Upload(ctx context.Context, input *UploadInput) (*UploadResult, error)
}

// UploadInput holds the parameters for uploading a file.
type UploadInput struct {
	Key         string
	Filename    string
	ContentType string
	Size        int64
	Data        io.Reader
}

// UploadResult holds the result of a successful upload.
type UploadResult struct {
	Key string
	URL string
}

// NewKey returns a unique object key under prefix that keeps the file's
// extension, e.g. "products/<id>/<uuid>.png".
func NewKey(prefix, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return path.Join(prefix, uuid.NewString()+ext)
}
