package repository

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"realtime_chat/internal/chat/domain"
	"realtime_chat/pkg/database"
)

// BlobRepository blob storage for profile pictures and message media
type BlobRepository interface {
	Upload(ctx context.Context, objectPath string, data []byte, contentType string) error
	// DownloadURL url of a stored object, domain.ErrNotFound when it is missing
	DownloadURL(ctx context.Context, objectPath string) (string, error)
}

type minioBlobRepository struct {
	client *database.MinIOClient
	expiry time.Duration
}

// NewMinIOBlobRepository BlobRepository on a minio bucket, urls are presigned for expiry
func NewMinIOBlobRepository(client *database.MinIOClient, expiry time.Duration) BlobRepository {
	return &minioBlobRepository{client: client, expiry: expiry}
}

// Upload put the object
func (r *minioBlobRepository) Upload(ctx context.Context, objectPath string, data []byte, contentType string) error {
	if err := r.client.UploadBytes(ctx, objectPath, data, contentType); err != nil {
		return &domain.StoreError{Op: "upload", Path: objectPath, Err: err}
	}
	return nil
}

// DownloadURL presigned get url
func (r *minioBlobRepository) DownloadURL(ctx context.Context, objectPath string) (string, error) {
	ok, err := r.client.Exists(ctx, objectPath)
	if err != nil {
		return "", &domain.StoreError{Op: "stat", Path: objectPath, Err: err}
	}
	if !ok {
		return "", fmt.Errorf("blob %s: %w", objectPath, domain.ErrNotFound)
	}
	u, err := r.client.PresignGetURL(ctx, objectPath, r.expiry)
	if err != nil {
		return "", &domain.StoreError{Op: "presign", Path: objectPath, Err: err}
	}
	return u, nil
}

type memoryBlob struct {
	data        []byte
	contentType string
}

// MemoryBlobRepository in-process BlobRepository
type MemoryBlobRepository struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]memoryBlob
}

// NewMemoryBlobRepository urls are baseURL + "/" + escaped object path
func NewMemoryBlobRepository(baseURL string) *MemoryBlobRepository {
	return &MemoryBlobRepository{baseURL: baseURL, objects: map[string]memoryBlob{}}
}

// Upload keep a copy of data
func (r *MemoryBlobRepository) Upload(ctx context.Context, objectPath string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return &domain.StoreError{Op: "upload", Path: objectPath, Err: err}
	}
	cp := make([]byte, len(data))
	copy(cp, data)

	r.mu.Lock()
	r.objects[objectPath] = memoryBlob{data: cp, contentType: contentType}
	r.mu.Unlock()
	return nil
}

// DownloadURL url of a stored object
func (r *MemoryBlobRepository) DownloadURL(ctx context.Context, objectPath string) (string, error) {
	r.mu.RLock()
	_, ok := r.objects[objectPath]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("blob %s: %w", objectPath, domain.ErrNotFound)
	}
	return r.baseURL + "/" + (&url.URL{Path: objectPath}).EscapedPath(), nil
}

// Get stored bytes and content type
func (r *MemoryBlobRepository) Get(objectPath string) ([]byte, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.objects[objectPath]
	return b.data, b.contentType, ok
}
