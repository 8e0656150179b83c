package storage

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/yield-indexer/internal/models"
)

// MemoryBackend keeps entities in process memory. It backs tests and dry runs.
type MemoryBackend struct {
	mu      sync.RWMutex
	data    map[models.Kind]map[string][]byte
	cursor  *Cursor
	commits int
}

// NewMemoryBackend creates an empty in-memory store
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[models.Kind]map[string][]byte)}
}

func (m *MemoryBackend) Get(_ context.Context, kind models.Kind, id string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[kind][id]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true, nil
}

func (m *MemoryBackend) Commit(_ context.Context, cs *Changeset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range cs.Records {
		table, ok := m.data[r.Kind]
		if !ok {
			table = make(map[string][]byte)
			m.data[r.Kind] = table
		}
		if _, exists := table[r.ID]; exists && r.WriteOnce {
			continue
		}
		data := make([]byte, len(r.Data))
		copy(data, r.Data)
		table[r.ID] = data
	}
	if cs.Cursor != nil {
		c := *cs.Cursor
		if c.UpdatedAt.IsZero() {
			c.UpdatedAt = time.Now().UTC()
		}
		m.cursor = &c
	}
	m.commits++
	return nil
}

var _ Backend = (*MemoryBackend)(nil)

func (m *MemoryBackend) Cursor(_ context.Context) (Cursor, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cursor == nil {
		return Cursor{}, false, nil
	}
	return *m.cursor, true, nil
}

func (m *MemoryBackend) DataSources(_ context.Context) ([]*models.DataSource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.DataSource
	for _, data := range m.data[models.KindDataSource] {
		var ds models.DataSource
		if err := json.Unmarshal(data, &ds); err != nil {
			return nil, err
		}
		out = append(out, &ds)
	}
	sortDataSources(out)
	return out, nil
}

// sortDataSources orders sources by start block, then address
func sortDataSources(out []*models.DataSource) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartBlock != out[j].StartBlock {
			return out[i].StartBlock < out[j].StartBlock
		}
		return out[i].Address < out[j].Address
	})
}

// IDs lists the stored ids of kind in sorted order
func (m *MemoryBackend) IDs(kind models.Kind) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.data[kind]))
	for id := range m.data[kind] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns how many entities of kind are stored
func (m *MemoryBackend) Count(kind models.Kind) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data[kind])
}

// Commits returns how many changesets were applied
func (m *MemoryBackend) Commits() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.commits
}
