package store

import (
	"context"
	"sync"
)

// MemoryStore keeps the record in process memory. FailNext makes the next
// write fail, which lets callers exercise their revert paths.
type MemoryStore struct {
	Notifier
	mu       sync.Mutex
	rec      Record
	failNext error
}

func NewMemoryStore(initial Record) *MemoryStore {
	return &MemoryStore{rec: initial}
}

func (m *MemoryStore) Get(ctx context.Context) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyRecord(m.rec), nil
}

func (m *MemoryStore) Set(ctx context.Context, p Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	if err := m.takeFailure(); err != nil {
		m.mu.Unlock()
		return err
	}
	old := copyRecord(m.rec)
	m.rec = p.Apply(m.rec)
	cur := copyRecord(m.rec)
	m.mu.Unlock()

	m.Publish(old, cur)
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	if err := m.takeFailure(); err != nil {
		m.mu.Unlock()
		return err
	}
	old := copyRecord(m.rec)
	m.rec = Record{}
	m.mu.Unlock()

	m.Publish(old, Record{})
	return nil
}

// FailNext makes the next Set or Clear return err without writing.
func (m *MemoryStore) FailNext(err error) {
	m.mu.Lock()
	m.failNext = err
	m.mu.Unlock()
}

func (m *MemoryStore) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func copyRecord(r Record) Record {
	if r.Enabled != nil {
		v := *r.Enabled
		r.Enabled = &v
	}
	return r
}
