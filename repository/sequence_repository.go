package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/leadflow/models"
	"gorm.io/gorm"
)

// SequenceRepositoryImpl implements SequenceRepository on the sequence_counters table
type SequenceRepositoryImpl struct {
	db *gorm.DB
}

// NewSequenceRepository creates a new sequence repository
func NewSequenceRepository(db *gorm.DB) SequenceRepository {
	return &SequenceRepositoryImpl{db: db}
}

// Next atomically increments the named counter, seeding it with start on first use
func (r *SequenceRepositoryImpl) Next(ctx context.Context, name string, start int64) (int64, error) {
	db := r.db.WithContext(ctx)
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		db = tx.WithContext(ctx)
	}

	var row models.SequenceCounter
	err := db.Raw(`
		INSERT INTO sequence_counters (name, last_value, created_at, updated_at)
		VALUES (?, ?, NOW() AT TIME ZONE 'UTC', NOW() AT TIME ZONE 'UTC')
		ON CONFLICT (name) DO UPDATE
		SET last_value = sequence_counters.last_value + 1, updated_at = NOW() AT TIME ZONE 'UTC'
		RETURNING name, last_value, created_at, updated_at`, name, start).
		Scan(&row).Error
	if err != nil {
		return 0, fmt.Errorf("failed to advance sequence %s: %w", name, err)
	}
	return row.LastValue, nil
}
