package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Postgres implements Store on a jsonb table using GORM.
type Postgres struct {
	db *gorm.DB
}

// OpenPostgres connects to the database at dsn.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return db, nil
}

// NewPostgres creates a store on an open connection.
func NewPostgres(db *gorm.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates or updates the records table.
func (p *Postgres) Migrate(ctx context.Context) error {
	return p.db.WithContext(ctx).AutoMigrate(&RecordDTO{})
}

// Find returns matching records ordered by creation time.
func (p *Postgres) Find(ctx context.Context, table string, filter Filter) ([]Record, error) {
	q := p.db.WithContext(ctx).Where("collection = ?", table)
	if filter.Field != "" {
		q = q.Where("fields ->> ? IN ?", filter.Field, filter.Values)
	}

	var dtos []RecordDTO
	if err := q.Order("created_at, id").Find(&dtos).Error; err != nil {
		return nil, fmt.Errorf("finding %s records: %w", table, err)
	}

	records := make([]Record, 0, len(dtos))
	for _, dto := range dtos {
		records = append(records, toRecord(dto))
	}
	return records, nil
}

// Create stores a new record under a generated id.
func (p *Postgres) Create(ctx context.Context, table string, fields Fields) (Record, error) {
	dto := RecordDTO{
		ID:         uuid.New(),
		Collection: table,
		Fields:     JSONFields(fields),
	}
	if err := p.db.WithContext(ctx).Create(&dto).Error; err != nil {
		return Record{}, fmt.Errorf("creating %s record: %w", table, err)
	}
	return toRecord(dto), nil
}

// Update merges fields into an existing record under a row lock.
func (p *Postgres) Update(ctx context.Context, table, id string, fields Fields) (Record, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return Record{}, fmt.Errorf("%s/%s: %w", table, id, ErrNotFound)
	}

	var dto RecordDTO
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&dto, "id = ? AND collection = ?", uid, table).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%s/%s: %w", table, id, ErrNotFound)
			}
			return err
		}

		if dto.Fields == nil {
			dto.Fields = JSONFields{}
		}
		for k, v := range fields {
			dto.Fields[k] = v
		}
		dto.UpdatedAt = time.Now()

		result := tx.Model(&RecordDTO{}).
			Where("id = ?", dto.ID).
			Updates(map[string]any{"fields": dto.Fields, "updated_at": dto.UpdatedAt})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%s/%s: %w", table, id, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	return toRecord(dto), nil
}

var _ Store = (*Postgres)(nil)
