package docstore

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store with the same merge, increment and
// cascade semantics as the Firestore adapter. Used by tests and local dev.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]any
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]map[string]any)}
}

func (s *MemoryStore) Get(ctx context.Context, path string) (map[string]any, error) {
	if _, err := SplitPath(path); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[path]
	if !ok {
		return nil, ErrNotFound
	}
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) Set(ctx context.Context, path string, fields map[string]any, merge bool) error {
	if _, err := SplitPath(path); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[path]
	if !ok || !merge {
		doc = make(map[string]any, len(fields))
		s.docs[path] = doc
	}
	for k, v := range fields {
		doc[k] = v
	}
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, path string, fields map[string]any) error {
	if _, err := SplitPath(path); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[path]
	if !ok {
		return ErrNotFound
	}
	for k, v := range fields {
		doc[k] = v
	}
	return nil
}

func (s *MemoryStore) Increment(ctx context.Context, path string, field string, delta int64) error {
	if _, err := SplitPath(path); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[path]
	if !ok {
		doc = make(map[string]any)
		s.docs[path] = doc
	}
	doc[field] = asInt64(doc[field]) + delta
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, path string) error {
	if _, err := SplitPath(path); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, path)
	return nil
}

func (s *MemoryStore) ListChildren(ctx context.Context, collectionPath string) ([]string, error) {
	if _, err := SplitPath(collectionPath); err != nil {
		return nil, err
	}
	prefix := strings.Trim(collectionPath, "/") + "/"
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	var ids []string
	for path := range s.docs {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		rest := strings.TrimPrefix(path, prefix)
		id := rest
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			id = rest[:i]
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) DeleteTree(ctx context.Context, path string) error {
	if _, err := SplitPath(path); err != nil {
		return err
	}
	root := strings.Trim(path, "/")
	prefix := root + "/"
	s.mu.Lock()
	defer s.mu.Unlock()
	for p := range s.docs {
		if p == root || strings.HasPrefix(p, prefix) {
			delete(s.docs, p)
		}
	}
	return nil
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	default:
		return 0
	}
}
