package store

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/mattetti/filebuffer"
)

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryStore keeps objects in process memory. It backs local runs and tests.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string]map[string]memoryObject
	gets    int
	puts    int
	getErr  error
	putErr  error
}

// NewMemoryStore returns an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]map[string]memoryObject)}
}

// Add stores an object directly, bypassing the operation counters
func (m *MemoryStore) Add(bucket, key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(bucket, key, memoryObject{data: append([]byte(nil), data...)})
}

func (m *MemoryStore) set(bucket, key string, obj memoryObject) {
	b, ok := m.objects[bucket]
	if !ok {
		b = make(map[string]memoryObject)
		m.objects[bucket] = b
	}
	b[key] = obj
}

// Object returns a copy of a stored object and its content type
func (m *MemoryStore) Object(bucket, key string) ([]byte, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[bucket][key]
	if !ok {
		return nil, "", false
	}
	return append([]byte(nil), obj.data...), obj.contentType, true
}

// Keys lists the keys of a bucket in lexical order
func (m *MemoryStore) Keys(bucket string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.objects[bucket]))
	for k := range m.objects[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Stats returns how many Get and Put calls were made
func (m *MemoryStore) Stats() (gets, puts int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets, m.puts
}

// FailGets makes subsequent Get calls return err. nil clears it.
func (m *MemoryStore) FailGets(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getErr = err
}

// FailPuts makes subsequent Put calls return err. nil clears it.
func (m *MemoryStore) FailPuts(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putErr = err
}

// Get opens an object body
func (m *MemoryStore) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.gets++
	if m.getErr != nil {
		return nil, m.getErr
	}
	obj, ok := m.objects[bucket][key]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, key)
	}
	return filebuffer.New(append([]byte(nil), obj.data...)), nil
}

// Put stores an object
func (m *MemoryStore) Put(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.puts++
	putErr := m.putErr
	m.mu.Unlock()
	if putErr != nil {
		return putErr
	}

	buf, err := filebuffer.NewFromReader(body)
	if err != nil {
		return fmt.Errorf("failed to read body for %s/%s: %w", bucket, key, err)
	}
	data := buf.Bytes()
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("body for %s/%s is %d bytes, declared %d", bucket, key, len(data), size)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(bucket, key, memoryObject{data: data, contentType: contentType})
	return nil
}
