// Package store defines the key-addressable record store orders live in and
// its implementations.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record id does not exist in a table.
var ErrNotFound = errors.New("record not found")

// Fields holds a record's values keyed by field name.
type Fields map[string]any

// Record is a stored document.
type Record struct {
	ID        string
	Fields    Fields
	CreatedAt time.Time
}

// Filter selects records whose Field equals any of Values. A zero Filter
// matches every record of the table.
type Filter struct {
	Field  string
	Values []string
}

// Matches reports whether the record fields satisfy the filter.
func (f Filter) Matches(fields Fields) bool {
	if f.Field == "" {
		return true
	}
	v, ok := fields[f.Field]
	if !ok || v == nil {
		return false
	}
	s := stringify(v)
	for _, want := range f.Values {
		if s == want {
			return true
		}
	}
	return false
}

// Store is the record store contract. Update merges the given fields into
// the record and leaves other fields untouched.
type Store interface {
	Find(ctx context.Context, table string, filter Filter) ([]Record, error)
	Create(ctx context.Context, table string, fields Fields) (Record, error)
	Update(ctx context.Context, table, id string, fields Fields) (Record, error)
}
