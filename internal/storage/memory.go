package storage

import (
	"context"
	"net/url"
	"strings"
	"sync"
)

// memoryRoots holds one object map per memory:// root so that two
// Resolve calls against the same "memory:///name" URL within a process
// see the same bundle, matching I3 (open is a pure function of the root
// and its history) for the ephemeral backend.
var (
	memoryRootsMu sync.Mutex
	memoryRoots   = map[string]*memoryStore{}
)

// MemoryStore implements Store as an in-process map. It backs the
// ephemeral "memory:///..." scheme used throughout the test suite and
// anywhere a caller wants a ready-to-discard bundle.
type MemoryStore = memoryStore

type memoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	url     string
}

func openMemoryStore(u *url.URL) *memoryStore {
	key := "memory://" + strings.TrimSuffix(u.Path, "/")

	memoryRootsMu.Lock()
	defer memoryRootsMu.Unlock()
	if s, ok := memoryRoots[key]; ok {
		return s
	}
	s := &memoryStore{objects: make(map[string][]byte), url: key}
	memoryRoots[key] = s
	return s
}

// ResetMemoryStores drops every in-process memory:// root. Intended for
// test isolation between independent test cases.
func ResetMemoryStores() {
	memoryRootsMu.Lock()
	defer memoryRootsMu.Unlock()
	memoryRoots = map[string]*memoryStore{}
}

func (m *memoryStore) RootURL() string { return m.url }

func (m *memoryStore) Get(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[path]
	if !ok {
		return nil, ErrObjectNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *memoryStore) Put(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.objects[path] = cp
	return nil
}

func (m *memoryStore) PutIfAbsent(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[path]; ok {
		return ErrAlreadyExists
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	m.objects[path] = cp
	return nil
}

func (m *memoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			rest := strings.TrimPrefix(k, prefix)
			rest = strings.TrimPrefix(rest, "/")
			if strings.Contains(rest, "/") {
				continue // non-recursive: skip entries nested further
			}
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *memoryStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, path)
	return nil
}

func (m *memoryStore) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[path]
	return ok, nil
}

var _ Store = (*memoryStore)(nil)
