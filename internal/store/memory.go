package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu      sync.Mutex
	tables  map[string]map[string]*Record // table -> id -> record
	seq     map[string]int                // id -> insertion order
	updates map[string]int                // table/id -> update count
	now     func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		tables:  map[string]map[string]*Record{},
		seq:     map[string]int{},
		updates: map[string]int{},
		now:     time.Now,
	}
}

// Find returns matching records in insertion order.
func (m *Memory) Find(ctx context.Context, table string, filter Filter) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []Record{}
	for _, rec := range m.tables[table] {
		if filter.Matches(rec.Fields) {
			out = append(out, copyRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return m.seq[out[i].ID] < m.seq[out[j].ID] })
	return out, nil
}

// Create stores a new record under a generated id.
func (m *Memory) Create(ctx context.Context, table string, fields Fields) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := &Record{
		ID:        uuid.New().String(),
		Fields:    copyFields(fields),
		CreatedAt: m.now(),
	}
	if m.tables[table] == nil {
		m.tables[table] = map[string]*Record{}
	}
	m.tables[table][rec.ID] = rec
	m.seq[rec.ID] = len(m.seq)
	return copyRecord(rec), nil
}

// Update merges fields into an existing record.
func (m *Memory) Update(ctx context.Context, table, id string, fields Fields) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.tables[table][id]
	if !ok {
		return Record{}, fmt.Errorf("%s/%s: %w", table, id, ErrNotFound)
	}
	for k, v := range fields {
		rec.Fields[k] = v
	}
	m.updates[table+"/"+id]++
	return copyRecord(rec), nil
}

// UpdateCount returns how many times a record was updated.
func (m *Memory) UpdateCount(table, id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates[table+"/"+id]
}

func copyFields(fields Fields) Fields {
	out := make(Fields, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func copyRecord(rec *Record) Record {
	return Record{ID: rec.ID, Fields: copyFields(rec.Fields), CreatedAt: rec.CreatedAt}
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}

var _ Store = (*Memory)(nil)
