package templating

import (
	"context"
	"sync"
	"time"
)

// Artifact is a compiled template as it is persisted between renders.
type Artifact struct {
	ID          string    `json:"id"`
	Compiled    string    `json:"compiled"`
	Fingerprint string    `json:"fingerprint"`
	Deps        []string  `json:"deps"`
	CompiledAt  time.Time `json:"compiled_at"`
}

// Store persists compiled templates. Entries are keyed by template
// identifier within a namespace.
type Store interface {
	// Get returns the artifact stored for id. The boolean is false when
	// there is no usable entry.
	Get(ctx context.Context, namespace, id string) (Artifact, bool, error)
	// Put replaces the artifact stored for a.ID.
	Put(ctx context.Context, namespace string, a Artifact) error
	// Clear removes every artifact in the namespace.
	Clear(ctx context.Context, namespace string) error
}

// MemoryStore keeps artifacts in process memory. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]map[string]Artifact
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]map[string]Artifact)}
}

func (s *MemoryStore) Get(_ context.Context, namespace, id string) (Artifact, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.entries[namespace][id]
	return a, ok, nil
}

func (s *MemoryStore) Put(_ context.Context, namespace string, a Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.entries[namespace]
	if !ok {
		ns = make(map[string]Artifact)
		s.entries[namespace] = ns
	}
	ns[a.ID] = a
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, namespace)
	return nil
}
