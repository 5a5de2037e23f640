package repository

import (
	"context"
	"time"

	"github.com/amirphl/leadflow/models"
	"gorm.io/gorm"
)

// CompanyRepositoryImpl implements CompanyRepository interface
type CompanyRepositoryImpl struct {
	*BaseRepository[models.Company, models.CompanyFilter]
}

// NewCompanyRepository creates a new company repository
func NewCompanyRepository(db *gorm.DB) CompanyRepository {
	return &CompanyRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Company, models.CompanyFilter](db),
	}
}

// LiveByID retrieves a non-deleted company
func (r *CompanyRepositoryImpl) LiveByID(ctx context.Context, id uint) (*models.Company, error) {
	deleted := false
	rows, err := r.ByFilter(ctx, models.CompanyFilter{ID: &id, IsDeleted: &deleted}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// LiveByName retrieves a non-deleted company by exact name
func (r *CompanyRepositoryImpl) LiveByName(ctx context.Context, name string) (*models.Company, error) {
	deleted := false
	rows, err := r.ByFilter(ctx, models.CompanyFilter{Name: &name, IsDeleted: &deleted}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// SoftDelete flags the company as deleted; false when it was missing or already deleted
func (r *CompanyRepositoryImpl) SoftDelete(ctx context.Context, id uint, at time.Time) (bool, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.Company{}).
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

// applyFilter applies filter criteria to a GORM query
func (r *CompanyRepositoryImpl) applyFilter(query *gorm.DB, filter models.CompanyFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.Name != nil {
		query = query.Where("name = ?", *filter.Name)
	}
	if filter.NameLike != nil && *filter.NameLike != "" {
		like := "%" + *filter.NameLike + "%"
		query = query.Where("name ILIKE ? OR company_code ILIKE ?", like, like)
	}
	if filter.CompanyCode != nil {
		query = query.Where("company_code = ?", *filter.CompanyCode)
	}
	if filter.IsDeleted != nil {
		query = query.Where("is_deleted = ?", *filter.IsDeleted)
	}
	return query
}

// ByFilter retrieves companies based on filter criteria
func (r *CompanyRepositoryImpl) ByFilter(ctx context.Context, filter models.CompanyFilter, orderBy string, limit, offset int) ([]*models.Company, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Company{}), filter)
	query = paginate(query, orderBy, limit, offset)

	var rows []*models.Company
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of companies matching the filter
func (r *CompanyRepositoryImpl) Count(ctx context.Context, filter models.CompanyFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Company{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any company matching the filter exists
func (r *CompanyRepositoryImpl) Exists(ctx context.Context, filter models.CompanyFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
