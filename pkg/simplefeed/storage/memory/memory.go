package memory

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/tendant/simple-feed/pkg/simplefeed"
)

var _ simplefeed.BlobStore = (*Backend)(nil)

type object struct {
	data        []byte
	contentType string
}

// Backend is an in-memory implementation of the simplefeed.BlobStore
// interface, intended for tests and local development.
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects: make(map[string]object),
	}
}

// Upload stores an image asset and returns a memory:// URL for it
func (b *Backend) Upload(ctx context.Context, assetID, contentType string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[assetID] = object{data: data, contentType: contentType}
	return "memory://" + assetID, nil
}

// Delete deletes an image asset
func (b *Backend) Delete(ctx context.Context, assetID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[assetID]; !exists {
		return errors.New("object not found")
	}

	delete(b.objects, assetID)
	return nil
}

// Get returns a stored asset's bytes and content type. Used by tests to
// verify uploads.
func (b *Backend) Get(assetID string) ([]byte, string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[assetID]
	if !exists {
		return nil, "", false
	}
	data := make([]byte, len(obj.data))
	copy(data, obj.data)
	return data, obj.contentType, true
}
