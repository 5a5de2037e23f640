package repository

import (
	"context"
	"errors"

	"github.com/amirphl/leadflow/models"
	"github.com/amirphl/leadflow/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AssociateUserRepositoryImpl implements AssociateUserRepository interface
type AssociateUserRepositoryImpl struct {
	*BaseRepository[models.AssociateUser, models.AssociateUserFilter]
}

// NewUserRepository creates a new associate user repository
func NewAssociateUserRepository(db *gorm.DB) AssociateUserRepository {
	return &AssociateUserRepositoryImpl{
		BaseRepository: NewBaseRepository[models.AssociateUser, models.AssociateUserFilter](db),
	}
}

// ByUUID retrieves an associate user by UUID
func (r *AssociateUserRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.AssociateUser, error) {
	return r.first(ctx, models.AssociateUserFilter{UUID: &id})
}

// ByEmail retrieves an associate user by email
func (r *AssociateUserRepositoryImpl) ByEmail(ctx context.Context, email string) (*models.AssociateUser, error) {
	email = utils.NormalizeEmail(email)
	return r.first(ctx, models.AssociateUserFilter{Email: &email})
}

// ByEmailOrPhone retrieves an associate user matching either the email or the phone number
func (r *AssociateUserRepositoryImpl) ByEmailOrPhone(ctx context.Context, email, phone string) (*models.AssociateUser, error) {
	db := r.getDB(ctx)
	var associate models.AssociateUser
	err := db.Where("email = ? OR phone_number = ?", utils.NormalizeEmail(email), phone).First(&associate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &associate, nil
}

// ListActiveAgents lists the active agents of a company
func (r *AssociateUserRepositoryImpl) ListActiveAgents(ctx context.Context, companyID uint) ([]*models.AssociateUser, error) {
	role := models.RoleAgent
	status := models.UserStatusActive
	return r.ByFilter(ctx, models.AssociateUserFilter{CompanyID: &companyID, Role: &role, Status: &status}, "id ASC", 0, 0)
}

// UpdateStatus sets the account status and returns the updated row, or nil when no user matched
func (r *AssociateUserRepositoryImpl) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.AssociateUser, error) {
	db := r.getDB(ctx)
	var associates []models.AssociateUser
	res := db.Model(&associates).
		Clauses(clause.Returning{}).
		Where("uuid = ?", id).
		Updates(map[string]any{
			"status":     status,
			"updated_at": utils.UTCNow(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 || len(associates) == 0 {
		return nil, nil
	}
	return &associates[0], nil
}

func (r *AssociateUserRepositoryImpl) first(ctx context.Context, filter models.AssociateUserFilter) (*models.AssociateUser, error) {
	associates, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(associates) == 0 {
		return nil, nil
	}
	return associates[0], nil
}

// applyFilter applies filter criteria to a GORM query
func (r *AssociateUserRepositoryImpl) applyFilter(query *gorm.DB, filter models.AssociateUserFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.Email != nil {
		query = query.Where("email = ?", *filter.Email)
	}
	if filter.PhoneNumber != nil {
		query = query.Where("phone_number = ?", *filter.PhoneNumber)
	}
	if filter.CompanyID != nil {
		query = query.Where("company_id = ?", *filter.CompanyID)
	}
	if filter.Role != nil {
		query = query.Where("role = ?", *filter.Role)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.CreatedByID != nil {
		query = query.Where("created_by_id = ?", *filter.CreatedByID)
	}
	return query
}

// ByFilter retrieves associate associates based on filter criteria
func (r *AssociateUserRepositoryImpl) ByFilter(ctx context.Context, filter models.AssociateUserFilter, orderBy string, limit, offset int) ([]*models.AssociateUser, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.AssociateUser{}), filter)
	query = paginate(query, orderBy, limit, offset)

	var associates []*models.AssociateUser
	if err := query.Find(&associates).Error; err != nil {
		return nil, err
	}
	return associates, nil
}

// Count returns the number of associate associates matching the filter
func (r *AssociateUserRepositoryImpl) Count(ctx context.Context, filter models.AssociateUserFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.AssociateUser{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any associate user matching the filter exists
func (r *AssociateUserRepositoryImpl) Exists(ctx context.Context, filter models.AssociateUserFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
