package checkpoint

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory checkpoint store.
// Data is lost when the process exits.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string][]storedCheckpoint // threadID -> history ordered by sequence
	closed  bool
}

// storedCheckpoint holds the serialized record so callers never share memory with the store.
type storedCheckpoint struct {
	data []byte
	info Info
}

// NewMemoryStore creates a new in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		threads: make(map[string][]storedCheckpoint),
	}
}

// Put implements Store.
func (m *MemoryStore) Put(_ context.Context, cp *Checkpoint) error {
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

	history := m.threads[cp.ThreadID]
	if n := len(history); n > 0 && cp.Sequence <= history[n-1].info.Sequence {
		return staleError(cp.ThreadID, cp.Sequence, history[n-1].info.Sequence)
	}

	m.threads[cp.ThreadID] = append(history, storedCheckpoint{
		data: data,
		info: infoFor(cp, len(data)),
	})
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, threadID string) (*Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	history := m.threads[threadID]
	if len(history) == 0 {
		return nil, ErrNotFound
	}
	return Unmarshal(history[len(history)-1].data)
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context, threadID string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	history := m.threads[threadID]
	infos := make([]Info, 0, len(history))
	for _, sc := range history {
		infos = append(infos, sc.info)
	}
	return infos, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	delete(m.threads, threadID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.threads = nil
	return nil
}

// Len returns the total number of checkpoints across all threads.
// Useful for testing.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, history := range m.threads {
		count += len(history)
	}
	return count
}
