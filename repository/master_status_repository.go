package repository

import (
	"context"
	"time"

	"github.com/amirphl/leadflow/models"
	"github.com/amirphl/leadflow/utils"
	"gorm.io/gorm"
)

// MasterStatusRepositoryImpl implements MasterStatusRepository interface
type MasterStatusRepositoryImpl struct {
	*BaseRepository[models.MasterStatus, models.MasterStatusFilter]
}

// NewMasterStatusRepository creates a new master status repository
func NewMasterStatusRepository(db *gorm.DB) MasterStatusRepository {
	return &MasterStatusRepositoryImpl{
		BaseRepository: NewBaseRepository[models.MasterStatus, models.MasterStatusFilter](db),
	}
}

// LiveByID retrieves a non-deleted status
func (r *MasterStatusRepositoryImpl) LiveByID(ctx context.Context, id uint) (*models.MasterStatus, error) {
	deleted := false
	rows, err := r.ByFilter(ctx, models.MasterStatusFilter{ID: &id, IsDeleted: &deleted}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// LiveByName retrieves a non-deleted status by name
func (r *MasterStatusRepositoryImpl) LiveByName(ctx context.Context, name string) (*models.MasterStatus, error) {
	deleted := false
	rows, err := r.ByFilter(ctx, models.MasterStatusFilter{Name: &name, IsDeleted: &deleted}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ListLive lists all non-deleted statuses in creation order
func (r *MasterStatusRepositoryImpl) ListLive(ctx context.Context) ([]*models.MasterStatus, error) {
	deleted := false
	return r.ByFilter(ctx, models.MasterStatusFilter{IsDeleted: &deleted}, "id ASC", 0, 0)
}

// Rename changes the name of a live status
func (r *MasterStatusRepositoryImpl) Rename(ctx context.Context, id uint, name string) (bool, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.MasterStatus{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(map[string]any{
			"name":       name,
			"updated_at": utils.UTCNow(),
		})
	if res.Error != nil {
		if IsUniqueViolation(res.Error) {
			return false, ErrDuplicateKey
		}
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SoftDelete flags a status as deleted
func (r *MasterStatusRepositoryImpl) SoftDelete(ctx context.Context, id uint, at time.Time) (bool, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.MasterStatus{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(map[string]any{
			"is_deleted": true,
			"deleted_at": at,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *MasterStatusRepositoryImpl) applyFilter(query *gorm.DB, filter models.MasterStatusFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.Name != nil {
		query = query.Where("name = ?", *filter.Name)
	}
	if filter.IsDeleted != nil {
		query = query.Where("is_deleted = ?", *filter.IsDeleted)
	}
	return query
}

// ByFilter retrieves statuses based on filter criteria
func (r *MasterStatusRepositoryImpl) ByFilter(ctx context.Context, filter models.MasterStatusFilter, orderBy string, limit, offset int) ([]*models.MasterStatus, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.MasterStatus{}), filter)
	query = paginate(query, orderBy, limit, offset)

	var rows []*models.MasterStatus
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of statuses matching the filter
func (r *MasterStatusRepositoryImpl) Count(ctx context.Context, filter models.MasterStatusFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.MasterStatus{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any status matching the filter exists
func (r *MasterStatusRepositoryImpl) Exists(ctx context.Context, filter models.MasterStatusFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
