package repository

import (
	"context"

	"github.com/amirphl/leadflow/models"
	"gorm.io/gorm"
)

// ProjectRepositoryImpl implements ProjectRepository interface
type ProjectRepositoryImpl struct {
	*BaseRepository[models.Project, models.ProjectFilter]
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &ProjectRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Project, models.ProjectFilter](db),
	}
}

func (r *ProjectRepositoryImpl) applyFilter(query *gorm.DB, filter models.ProjectFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.ProjectCode != nil {
		query = query.Where("project_code = ?", *filter.ProjectCode)
	}
	if filter.TitleLike != nil && *filter.TitleLike != "" {
		query = query.Where("title ILIKE ?", "%"+*filter.TitleLike+"%")
	}
	return query
}

// ByFilter retrieves projects based on filter criteria
func (r *ProjectRepositoryImpl) ByFilter(ctx context.Context, filter models.ProjectFilter, orderBy string, limit, offset int) ([]*models.Project, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Project{}), filter)
	query = paginate(query, orderBy, limit, offset)

	var rows []*models.Project
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of projects matching the filter
func (r *ProjectRepositoryImpl) Count(ctx context.Context, filter models.ProjectFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.Project{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any project matching the filter exists
func (r *ProjectRepositoryImpl) Exists(ctx context.Context, filter models.ProjectFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
