package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	apperrors "github.com/utafrali/EcommerceGo/mediapipeline/pkg/errors"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/storage"
)

type object struct {
	contentType string
	data        []byte
	url         string
}

// Storage implements storage.Storage with an in-memory map. It keeps the
// bytes so previews of uploaded assets can be re-opened in development.
type Storage struct {
	mu      sync.RWMutex
	objects map[string]*object
	baseURL string
}

// New creates a new in-memory storage instance.
func New(baseURL string) *Storage {
	return &Storage{
		objects: make(map[string]*object),
		baseURL: baseURL,
	}
}

// Upload reads the payload into memory and returns the generated URL.
func (s *Storage) Upload(ctx context.Context, input *storage.UploadInput) (*storage.UploadResult, error) {
	if input.Key == "" {
		return nil, apperrors.InvalidInput("object key is required")
	}
	data, err := io.ReadAll(input.Data)
	if err != nil {
		return nil, fmt.Errorf("read upload payload: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/media/%s", s.baseURL, input.Key)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[input.Key] = &object{contentType: input.ContentType, data: data, url: url}
	return &storage.UploadResult{Key: input.Key, URL: url}, nil
}

// Delete removes an object from memory.
func (s *Storage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.objects[key]; !exists {
		return apperrors.NotFound("object", key)
	}
	delete(s.objects, key)
	return nil
}

// GetURL returns the URL for the given key.
func (s *Storage) GetURL(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, exists := s.objects[key]
	if !exists {
		return "", apperrors.NotFound("object", key)
	}
	return obj.url, nil
}

// Open returns a reader over a copy-free view of the stored bytes.
func (s *Storage) Open(_ context.Context, key string) (*storage.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, exists := s.objects[key]
	if !exists {
		return nil, apperrors.NotFound("object", key)
	}
	return &storage.Object{
		Body:        io.NopCloser(bytes.NewReader(obj.data)),
		ContentType: obj.contentType,
		Size:        int64(len(obj.data)),
	}, nil
}

// Keys lists stored keys in lexical order.
func (s *Storage) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Ping always succeeds.
func (s *Storage) Ping(context.Context) error { return nil }
