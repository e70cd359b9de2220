// Package storage provides the object store the statute corpus is read from
// (S3-compatible buckets, a local directory or memory), an optional
// read-through blob cache, and the SQLite article catalog used by the local index.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by ObjectStore.Get when the key does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectStore is an opaque key → bytes store.
type ObjectStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Writer stores objects. Implemented by the disk and memory stores.
type Writer interface {
	Put(ctx context.Context, key string, data []byte) error
}

// StoreType represents the storage backend type.
type StoreType string

const (
	StoreTypeDisk   StoreType = "disk"
	StoreTypeS3     StoreType = "s3"
	StoreTypeMemory StoreType = "memory"
)

// Config holds configuration for the object store.
type Config struct {
	Type     StoreType
	DiskPath string // For disk storage
	S3Bucket string // For S3 storage
	S3Region string // For S3 storage
	// S3Endpoint overrides the endpoint for S3-compatible services such as R2.
	S3Endpoint   string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// NewObjectStore creates a store based on configuration.
func NewObjectStore(ctx context.Context, cfg Config) (ObjectStore, error) {
	switch cfg.Type {
	case StoreTypeDisk, "":
		s, err := NewDiskStore(cfg.DiskPath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case StoreTypeS3:
		s, err := NewS3Store(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case StoreTypeMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// BlobCache caches object bytes by key.
type BlobCache interface {
	GetBlob(ctx context.Context, key string) ([]byte, bool, error)
	SetBlob(ctx context.Context, key string, data []byte, ttl time.Duration) error
}
