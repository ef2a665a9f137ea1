package checkpoint

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// MemoryCatalog is an in-memory snapshot catalog for testing.
// Entries are lost when the process exits.
type MemoryCatalog struct {
	mu      sync.RWMutex
	entries map[string]map[string]SnapshotInfo // root -> name -> info
	closed  bool
}

// NewMemoryCatalog creates an empty in-memory catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		entries: make(map[string]map[string]SnapshotInfo),
	}
}

// Record implements Catalog.
func (m *MemoryCatalog) Record(_ context.Context, info SnapshotInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrCatalogClosed
	}
	if m.entries[info.Root] == nil {
		m.entries[info.Root] = make(map[string]SnapshotInfo)
	}
	// Copy keys to avoid retaining the caller's slice
	info.Keys = slices.Clone(info.Keys)
	m.entries[info.Root][info.Name] = info
	return nil
}

// Forget implements Catalog.
func (m *MemoryCatalog) Forget(_ context.Context, root, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrCatalogClosed
	}
	if snaps, ok := m.entries[root]; ok {
		delete(snaps, name)
	}
	return nil
}

// List implements Catalog.
func (m *MemoryCatalog) List(_ context.Context, root string) ([]SnapshotInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrCatalogClosed
	}
	snaps := m.entries[root]
	infos := make([]SnapshotInfo, 0, len(snaps))
	for _, info := range snaps {
		info.Keys = slices.Clone(info.Keys)
		infos = append(infos, info)
	}
	slices.SortFunc(infos, func(a, b SnapshotInfo) int {
		return strings.Compare(a.Name, b.Name)
	})
	return infos, nil
}

// Close implements Catalog.
func (m *MemoryCatalog) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.entries = nil
	return nil
}

// Len returns the number of entries across all roots.
// Useful for testing.
func (m *MemoryCatalog) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, snaps := range m.entries {
		count += len(snaps)
	}
	return count
}
