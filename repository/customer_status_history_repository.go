package repository

import (
	"context"

	"github.com/amirphl/leadflow/models"
	"gorm.io/gorm"
)

// CustomerStatusHistoryRepositoryImpl implements CustomerStatusHistoryRepository interface.
// Rows are only ever inserted.
type CustomerStatusHistoryRepositoryImpl struct {
	*BaseRepository[models.CustomerStatusHistory, models.CustomerStatusHistoryFilter]
}

// NewCustomerStatusHistoryRepository creates a new status history repository
func NewCustomerStatusHistoryRepository(db *gorm.DB) CustomerStatusHistoryRepository {
	return &CustomerStatusHistoryRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CustomerStatusHistory, models.CustomerStatusHistoryFilter](db),
	}
}

// ListByCustomer returns the stored history of a lead in append order
func (r *CustomerStatusHistoryRepositoryImpl) ListByCustomer(ctx context.Context, customerID uint) ([]*models.CustomerStatusHistory, error) {
	return r.ByFilter(ctx, models.CustomerStatusHistoryFilter{CustomerID: &customerID}, "created_at ASC, id ASC", 0, 0)
}

func (r *CustomerStatusHistoryRepositoryImpl) applyFilter(query *gorm.DB, filter models.CustomerStatusHistoryFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.ActorID != nil {
		query = query.Where("actor_id = ?", *filter.ActorID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	return query
}

// ByFilter retrieves history rows based on filter criteria
func (r *CustomerStatusHistoryRepositoryImpl) ByFilter(ctx context.Context, filter models.CustomerStatusHistoryFilter, orderBy string, limit, offset int) ([]*models.CustomerStatusHistory, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.CustomerStatusHistory{}), filter)
	query = paginate(query, orderBy, limit, offset)

	var rows []*models.CustomerStatusHistory
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of history rows matching the filter
func (r *CustomerStatusHistoryRepositoryImpl) Count(ctx context.Context, filter models.CustomerStatusHistoryFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.CustomerStatusHistory{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any history row matching the filter exists
func (r *CustomerStatusHistoryRepositoryImpl) Exists(ctx context.Context, filter models.CustomerStatusHistoryFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
