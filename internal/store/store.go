package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/petii/mp3-magic-machine/internal/config"
)

// ErrNotFound is returned by Get when the object does not exist
var ErrNotFound = errors.New("object not found")

// Content types used for delivered objects
const (
	ContentTypeMP3 = "audio/mpeg"
	ContentTypeZip = "application/zip"
)

// Store fetches and publishes objects
type Store interface {
	// Get opens the object body. The caller closes it.
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)

	// Put uploads size bytes from body under key.
	Put(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error
}

// PutFile uploads a local file
func PutFile(ctx context.Context, s Store, bucket, key, path, contentType string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	return s.Put(ctx, bucket, key, f, info.Size(), contentType)
}

// New builds the backend selected by cfg
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendS3:
		return NewS3StoreFromConfig(ctx, cfg)
	case config.BackendSwift:
		return DialSwift(cfg.Swift)
	case config.BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}
}
