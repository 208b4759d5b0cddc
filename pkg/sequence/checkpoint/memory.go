package checkpoint

import (
	"slices"
	"sync"
)

// MemoryStore keeps checkpoints in process memory. Checkpoints are held
// in encoded form so callers never share state with the store.
type MemoryStore struct {
	mu     sync.RWMutex
	runs   map[string]map[string]memoryEntry
	closed bool
}

type memoryEntry struct {
	info Info
	data []byte
}

// NewMemoryStore creates an empty in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]map[string]memoryEntry)}
}

// Save implements Store.
func (m *MemoryStore) Save(cp *Checkpoint) error {
	if err := validate(cp); err != nil {
		return err
	}
	data, err := cp.Marshal()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}

	run := m.runs[cp.RunID]
	if run == nil {
		run = make(map[string]memoryEntry)
		m.runs[cp.RunID] = run
	}
	run[cp.Step] = memoryEntry{info: cp.info(len(data)), data: data}
	return nil
}

// Latest implements Store.
func (m *MemoryStore) Latest(runID string) (*Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}

	latest, ok := newest(m.runs[runID])
	if !ok {
		return nil, ErrNotFound
	}
	return Unmarshal(latest.data)
}

// List implements Store.
func (m *MemoryStore) List(runID string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}

	run := m.runs[runID]
	infos := make([]Info, 0, len(run))
	for _, e := range run {
		infos = append(infos, e.info)
	}
	slices.SortFunc(infos, func(a, b Info) int {
		return a.Sequence - b.Sequence
	})
	return infos, nil
}

// Interrupted implements Store.
func (m *MemoryStore) Interrupted() ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}

	infos := []Info{}
	for _, run := range m.runs {
		if e, ok := newest(run); ok && e.info.NextStep != End {
			infos = append(infos, e.info)
		}
	}
	slices.SortFunc(infos, func(a, b Info) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return infos, nil
}

func newest(run map[string]memoryEntry) (memoryEntry, bool) {
	var best memoryEntry
	found := false
	for _, e := range run {
		if !found || e.info.Sequence > best.info.Sequence {
			best, found = e, true
		}
	}
	return best, found
}

// DeleteRun implements Store.
func (m *MemoryStore) DeleteRun(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	delete(m.runs, runID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.runs = nil
	return nil
}
