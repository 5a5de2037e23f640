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

// UserRepositoryImpl implements UserRepository interface
type UserRepositoryImpl struct {
	*BaseRepository[models.User, models.UserFilter]
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &UserRepositoryImpl{
		BaseRepository: NewBaseRepository[models.User, models.UserFilter](db),
	}
}

// ByUUID retrieves a user by UUID
func (r *UserRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.first(ctx, models.UserFilter{UUID: &id})
}

// ByEmail retrieves a user by email
func (r *UserRepositoryImpl) ByEmail(ctx context.Context, email string) (*models.User, error) {
	email = utils.NormalizeEmail(email)
	return r.first(ctx, models.UserFilter{Email: &email})
}

// ByEmailOrPhone retrieves a user matching either the email or the phone number
func (r *UserRepositoryImpl) ByEmailOrPhone(ctx context.Context, email, phone string) (*models.User, error) {
	db := r.getDB(ctx)
	var user models.User
	err := db.Where("email = ? OR phone_number = ?", utils.NormalizeEmail(email), phone).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// ListActiveAgents lists the active agents of a company
func (r *UserRepositoryImpl) ListActiveAgents(ctx context.Context, companyID uint) ([]*models.User, error) {
	role := models.RoleAgent
	status := models.UserStatusActive
	return r.ByFilter(ctx, models.UserFilter{CompanyID: &companyID, Role: &role, Status: &status}, "id ASC", 0, 0)
}

// UpdateStatus sets the account status and returns the updated row, or nil when no user matched
func (r *UserRepositoryImpl) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.User, error) {
	db := r.getDB(ctx)
	var users []models.User
	res := db.Model(&users).
		Clauses(clause.Returning{}).
		Where("uuid = ?", id).
		Updates(map[string]any{
			"status":     status,
			"updated_at": utils.UTCNow(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 || len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

func (r *UserRepositoryImpl) first(ctx context.Context, filter models.UserFilter) (*models.User, error) {
	users, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return users[0], nil
}

// applyFilter applies filter criteria to a GORM query
func (r *UserRepositoryImpl) applyFilter(query *gorm.DB, filter models.UserFilter) *gorm.DB {
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
	if filter.Query != nil && *filter.Query != "" {
		like := "%" + *filter.Query + "%"
		query = query.Where(
			"full_name ILIKE ? OR email ILIKE ? OR phone_number ILIKE ? OR location ILIKE ? OR company_name ILIKE ?",
			like, like, like, like, like,
		)
	}
	return query
}

// ByFilter retrieves users based on filter criteria
func (r *UserRepositoryImpl) ByFilter(ctx context.Context, filter models.UserFilter, orderBy string, limit, offset int) ([]*models.User, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.User{}), filter)
	query = paginate(query, orderBy, limit, offset)

	var users []*models.User
	if err := query.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Count returns the number of users matching the filter
func (r *UserRepositoryImpl) Count(ctx context.Context, filter models.UserFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.User{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any user matching the filter exists
func (r *UserRepositoryImpl) Exists(ctx context.Context, filter models.UserFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
