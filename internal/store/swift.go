package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"sync"

	"github.com/ncw/swift"

	"github.com/petii/mp3-magic-machine/internal/config"
)

var authVersionRegex = regexp.MustCompile(`.*/v([0-9])[.0-9]*/?$`)

// getAuthVersion extracts the OpenStack auth version from the end of an auth URL.
func getAuthVersion(url string) (int, error) {
	matches := authVersionRegex.FindStringSubmatch(url)
	if len(matches) < 2 {
		return 0, fmt.Errorf("unable to extract an auth version number from url %s", url)
	}
	version, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, fmt.Errorf("unable to convert version number %s to an integer", matches[1])
	}
	return version, nil
}

// SwiftStore is a Store backed by OpenStack Swift. Buckets map to containers.
type SwiftStore struct {
	conn *swift.Connection

	mu      sync.Mutex
	created map[string]bool
}

// NewSwiftStore wraps an authenticated connection
func NewSwiftStore(conn *swift.Connection) *SwiftStore {
	return &SwiftStore{conn: conn, created: make(map[string]bool)}
}

// DialSwift authenticates against object storage. The auth URL must end in
// its version: https://example.com/v{1,2,3}
func DialSwift(cfg config.SwiftConfig) (*SwiftStore, error) {
	version, err := getAuthVersion(cfg.AuthURL)
	if err != nil {
		return nil, err
	}

	conn := &swift.Connection{
		UserName:    cfg.Username,
		ApiKey:      cfg.APIKey,
		AuthUrl:     cfg.AuthURL,
		Domain:      cfg.Domain,
		Tenant:      cfg.Tenant,
		AuthVersion: version,
	}
	if err := conn.Authenticate(); err != nil {
		return nil, fmt.Errorf("failed to authenticate with object storage: %w", err)
	}

	return NewSwiftStore(conn), nil
}

// Get opens an object body
func (s *SwiftStore) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, _, err := s.conn.ObjectOpen(bucket, key, false, nil)
	if err != nil {
		if errors.Is(err, swift.ObjectNotFound) || errors.Is(err, swift.ContainerNotFound) {
			return nil, fmt.Errorf("%w: swift://%s/%s", ErrNotFound, bucket, key)
		}
		return nil, fmt.Errorf("failed to open swift://%s/%s: %w", bucket, key, err)
	}
	return file, nil
}

// Put uploads an object, creating the container on first use
func (s *SwiftStore) Put(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ensureContainer(bucket); err != nil {
		return err
	}

	headers := swift.Headers{"Content-Length": strconv.FormatInt(size, 10)}
	if _, err := s.conn.ObjectPut(bucket, key, body, false, "", contentType, headers); err != nil {
		return fmt.Errorf("failed to put swift://%s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *SwiftStore) ensureContainer(container string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.created[container] {
		return nil
	}
	if err := s.conn.ContainerCreate(container, nil); err != nil {
		return fmt.Errorf("failed to create container %s: %w", container, err)
	}
	s.created[container] = true
	return nil
}
