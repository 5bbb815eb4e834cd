package memory

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/timiFoxtrot/main-product-store/internal/storage"
)

type fileEntry struct {
	ContentType string
	Size        int64
	URL         string
}

// Storage implements storage.Storage with an in-memory map. File bytes are
// drained and counted but not kept.
type Storage struct {
	mu      sync.RWMutex
	files   map[string]fileEntry
	baseURL string
}

// New creates an in-memory store whose URLs start with baseURL.
func New(baseURL string) *Storage {
	return &Storage{
		files:   make(map[string]fileEntry),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Upload records the file and returns its generated URL.
func (s *Storage) Upload(ctx context.Context, input *storage.UploadInput) (*storage.UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if input.Key == "" {
		return nil, fmt.Errorf("upload: empty key")
	}

	size := input.Size
	if input.Data != nil {
		n, err := io.Copy(io.Discard, input.Data)
		if err != nil {
			return nil, fmt.Errorf("read upload %s: %w", input.Key, err)
		}
		size = n
	}

	url := fmt.Sprintf("%s/media/%s", s.baseURL, input.Key)

	s.mu.Lock()
	s.files[input.Key] = fileEntry{ContentType: input.ContentType, Size: size, URL: url}
	s.mu.Unlock()

	return &storage.UploadResult{Key: input.Key, URL: url}, nil
}

// Len returns the number of stored files.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// Size returns the recorded size of key and whether it exists.
func (s *Storage) Size(key string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.files[key]
	return e.Size, ok
}
