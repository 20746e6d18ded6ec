package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecordDTO is the database row backing a Record. Every table of the
// record store shares one relation; Collection names the logical table.
type RecordDTO struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Collection string     `gorm:"type:text;not null;index"`
	Fields     JSONFields `gorm:"type:jsonb;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName specifies the database table name for records.
func (RecordDTO) TableName() string {
	return "records"
}

// JSONFields stores Fields as a jsonb document.
type JSONFields Fields

// Value implements driver.Valuer.
func (f JSONFields) Value() (driver.Value, error) {
	if f == nil {
		return "{}", nil
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encoding record fields: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (f *JSONFields) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	case nil:
		*f = JSONFields{}
		return nil
	default:
		return fmt.Errorf("unsupported record fields type %T", src)
	}
	out := JSONFields{}
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("decoding record fields: %w", err)
	}
	*f = out
	return nil
}

func toRecord(dto RecordDTO) Record {
	fields := Fields{}
	for k, v := range dto.Fields {
		fields[k] = v
	}
	return Record{ID: dto.ID.String(), Fields: fields, CreatedAt: dto.CreatedAt}
}
