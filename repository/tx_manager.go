package repository

import (
	"context"

	"gorm.io/gorm"
)

// GormTxManager implements TxManager on top of WithTransaction
type GormTxManager struct {
	db *gorm.DB
}

// NewTxManager creates a transaction manager bound to db
func NewTxManager(db *gorm.DB) TxManager {
	return &GormTxManager{db: db}
}

// WithTransaction runs fn in a transaction, reusing one already present in ctx
func (m *GormTxManager) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return fn(ctx)
	}
	return WithTransaction(ctx, m.db, fn)
}
