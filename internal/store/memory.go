package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/randalmurphal/appforge/internal/flowstate"
)

// MemoryStore is an in-memory Store. Artifacts are deep-copied on the way
// in and out so callers never share maps with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	configs  map[string][]flowstate.Document // flowID -> versions (index = version-1)
	datasets map[string]flowstate.Datasets
	log      []LogEntry
	closed   bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		configs:  make(map[string][]flowstate.Document),
		datasets: make(map[string]flowstate.Datasets),
	}
}

func clone[T any](v T) (T, error) {
	var out T
	data, err := json.Marshal(v)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(data, &out)
	return out, err
}

// MaxVersion implements Store.
func (m *MemoryStore) MaxVersion(_ context.Context, flowID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStoreClosed
	}
	return len(m.configs[flowID]), nil
}

// GetConfig implements Store.
func (m *MemoryStore) GetConfig(_ context.Context, flowID string, version int) (flowstate.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	versions := m.configs[flowID]
	if version < 1 || version > len(versions) {
		return flowstate.Document{}, nil
	}
	return clone(versions[version-1])
}

// SaveConfig implements Store.
func (m *MemoryStore) SaveConfig(_ context.Context, flowID string, doc flowstate.Document) (int, error) {
	if doc == nil {
		doc = flowstate.Document{}
	}
	copied, err := clone(doc)
	if err != nil {
		return 0, fmt.Errorf("encode config: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrStoreClosed
	}
	m.configs[flowID] = append(m.configs[flowID], copied)
	return len(m.configs[flowID]), nil
}

// GetAllDatasets implements Store.
func (m *MemoryStore) GetAllDatasets(_ context.Context, flowID string) (flowstate.Datasets, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	sets, ok := m.datasets[flowID]
	if !ok {
		return flowstate.Datasets{}, nil
	}
	return clone(sets)
}

// SaveDataset implements Store.
func (m *MemoryStore) SaveDataset(_ context.Context, flowID, name string, records []flowstate.Record) error {
	if records == nil {
		records = []flowstate.Record{}
	}
	copied, err := clone(records)
	if err != nil {
		return fmt.Errorf("encode dataset %s: %w", name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	if m.datasets[flowID] == nil {
		m.datasets[flowID] = flowstate.Datasets{}
	}
	m.datasets[flowID][name] = copied
	return nil
}

// AppendLog implements Store.
func (m *MemoryStore) AppendLog(_ context.Context, entry LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	entry.ID = int64(len(m.log) + 1)
	entry.CreatedAt = time.Now().UTC()
	m.log = append(m.log, entry)
	return nil
}

// ListLog implements Store.
func (m *MemoryStore) ListLog(_ context.Context, flowID string) ([]LogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	var entries []LogEntry
	for _, e := range m.log {
		if e.FlowID == flowID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}
