package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/synergyos/synergyos/internal/shared"
)

type memoryDoc struct {
	record Record
	fields map[string]any
}

// MemoryStore keeps documents in process. Used for tests and DOCSTORE_DRIVER=memory.
type MemoryStore struct {
	mu    sync.RWMutex
	docs  map[string][]*memoryDoc
	clock func() time.Time
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]*memoryDoc), clock: time.Now}
}

// WithClock overrides the creation-time source.
func (m *MemoryStore) WithClock(clock func() time.Time) *MemoryStore {
	if clock != nil {
		m.clock = clock
	}
	return m
}

func (m *MemoryStore) Insert(ctx context.Context, collection string, doc any) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if err := checkCollection(collection); err != nil {
		return Record{}, err
	}
	id := NewID()
	createdAt := m.clock().UTC()
	body, fields, err := encodeBody(doc, id, createdAt)
	if err != nil {
		return Record{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkUniqueLocked(collection, "", fields); err != nil {
		return Record{}, err
	}
	rec := Record{ID: id, CreatedAt: createdAt, Body: body}
	m.docs[collection] = append(m.docs[collection], &memoryDoc{record: rec, fields: fields})
	return cloneRecord(rec), nil
}

func (m *MemoryStore) Get(ctx context.Context, collection, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if err := checkCollection(collection); err != nil {
		return Record{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.docs[collection] {
		if d.record.ID == id {
			return cloneRecord(d.record), nil
		}
	}
	return Record{}, fmt.Errorf("%w: %s/%s", shared.ErrNotFound, collection, id)
}

func (m *MemoryStore) Query(ctx context.Context, collection, index string, values ...string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx, err := lookupIndex(collection, index, values)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0)
	for _, d := range m.docs[collection] {
		if matches(d.fields, idx.Fields[:len(values)], values) {
			out = append(out, cloneRecord(d.record))
		}
	}
	return out, nil
}

func (m *MemoryStore) List(ctx context.Context, collection string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0, len(m.docs[collection]))
	for _, d := range m.docs[collection] {
		out = append(out, cloneRecord(d.record))
	}
	return out, nil
}

func (m *MemoryStore) Replace(ctx context.Context, collection, id string, doc any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkCollection(collection); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs[collection] {
		if d.record.ID != id {
			continue
		}
		body, fields, err := encodeBody(doc, id, d.record.CreatedAt)
		if err != nil {
			return err
		}
		if err := m.checkUniqueLocked(collection, id, fields); err != nil {
			return err
		}
		d.record.Body = body
		d.fields = fields
		return nil
	}
	return fmt.Errorf("%w: %s/%s", shared.ErrNotFound, collection, id)
}

func (m *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkCollection(collection); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := m.docs[collection]
	for i, d := range docs {
		if d.record.ID == id {
			m.docs[collection] = append(docs[:i:i], docs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s/%s", shared.ErrNotFound, collection, id)
}

// Len reports the number of documents in a collection.
func (m *MemoryStore) Len(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs[collection])
}

func (m *MemoryStore) checkUniqueLocked(collection, selfID string, fields map[string]any) error {
	for _, idx := range Schema[collection] {
		if !idx.Unique {
			continue
		}
		values := make([]string, len(idx.Fields))
		for i, f := range idx.Fields {
			values[i] = fieldString(fields, f)
		}
		for _, d := range m.docs[collection] {
			if d.record.ID == selfID {
				continue
			}
			if matches(d.fields, idx.Fields, values) {
				return fmt.Errorf("%w: %s.%s", shared.ErrConflict, collection, idx.Name)
			}
		}
	}
	return nil
}

func matches(fields map[string]any, names, values []string) bool {
	for i, name := range names {
		if fieldString(fields, name) != values[i] {
			return false
		}
	}
	return true
}

func cloneRecord(rec Record) Record {
	rec.Body = append(json.RawMessage(nil), rec.Body...)
	return rec
}
