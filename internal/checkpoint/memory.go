package checkpoint

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryRecord struct {
	state     []byte
	next      string
	step      int
	updatedAt time.Time
}

// MemoryStore keeps checkpoints in process memory. States are stored
// encoded, so callers never share memory with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
	closed  bool
	now     func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]memoryRecord), now: time.Now}
}

// Load implements Store.
func (m *MemoryStore) Load(ctx context.Context, threadID string) (*Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	rec, ok := m.records[threadID]
	if !ok {
		return nil, ErrNotFound
	}
	rs, err := decode(threadID, rec.state)
	if err != nil {
		return nil, err
	}
	return &Checkpoint{ThreadID: threadID, State: rs, Next: rec.next, Step: rec.step, UpdatedAt: rec.updatedAt}, nil
}

// Save implements Store. cp.UpdatedAt is set to the save time.
func (m *MemoryStore) Save(ctx context.Context, cp *Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encode(cp)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	cp.UpdatedAt = m.now()
	m.records[cp.ThreadID] = memoryRecord{state: data, next: cp.Next, step: cp.Step, updatedAt: cp.UpdatedAt}
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(ctx context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.records, threadID)
	return nil
}

// Threads implements Store.
func (m *MemoryStore) Threads(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := make([]string, 0, len(m.records))
	for id := range m.records {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.records = nil
	return nil
}

var _ Store = (*MemoryStore)(nil)
