package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/leadflow/models"
	"github.com/amirphl/leadflow/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CustomerRepositoryImpl implements CustomerRepository interface
type CustomerRepositoryImpl struct {
	*BaseRepository[models.Customer, models.CustomerFilter]
}

// NewCustomerRepository creates a new lead repository
func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &CustomerRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Customer, models.CustomerFilter](db),
	}
}

// ByEmailOrPhone retrieves a lead matching either the email or the phone number
func (r *CustomerRepositoryImpl) ByEmailOrPhone(ctx context.Context, email, phone string) (*models.Customer, error) {
	db := r.getDB(ctx)
	var row models.Customer
	err := db.Where("email = ? OR phone_number = ?", utils.NormalizeEmail(email), phone).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// AcceptIfUnaccepted is a single conditional update; concurrent callers are serialized by
// the row lock and only the first one sees is_accepted = false.
func (r *CustomerRepositoryImpl) AcceptIfUnaccepted(ctx context.Context, id, companyID uint, agentID uuid.UUID, agentName string, at time.Time) (bool, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.Customer{}).
		Where("id = ? AND company_id = ? AND is_accepted = ?", id, companyID, false).
		Updates(map[string]any{
			"is_accepted":      true,
			"accepted_by":      agentID,
			"accepted_by_name": agentName,
			"accepted_at":      at,
			"updated_at":       at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to accept lead %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// AddDecline appends the agent to declined_by unless the lead is accepted or already declined by them
func (r *CustomerRepositoryImpl) AddDecline(ctx context.Context, id uint, agentID uuid.UUID, at time.Time) (bool, error) {
	db := r.getDB(ctx)
	agent := agentID.String()
	res := db.Model(&models.Customer{}).
		Where("id = ? AND is_accepted = ? AND NOT (? = ANY(declined_by))", id, false, agent).
		Updates(map[string]any{
			"declined_by": gorm.Expr("array_append(declined_by, ?)", agent),
			"declined_at": at,
			"updated_at":  at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to decline lead %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// UnionBroadcast locks the lead row, merges agentIDs into broadcasted_to and returns the added ones
func (r *CustomerRepositoryImpl) UnionBroadcast(ctx context.Context, id uint, agentIDs []uuid.UUID) (added []uuid.UUID, err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return nil, err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				err = db.Commit().Error
			}
		}()
	}

	var row models.Customer
	err = db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "broadcasted_to").
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		return nil, err
	}

	merged := make(pq.StringArray, 0, len(row.BroadcastedTo)+len(agentIDs))
	present := make(map[string]struct{}, len(row.BroadcastedTo)+len(agentIDs))
	for _, a := range row.BroadcastedTo {
		if _, ok := present[a]; ok {
			continue
		}
		present[a] = struct{}{}
		merged = append(merged, a)
	}
	for _, a := range agentIDs {
		key := a.String()
		if _, ok := present[key]; ok {
			continue
		}
		present[key] = struct{}{}
		merged = append(merged, key)
		added = append(added, a)
	}

	err = db.Model(&models.Customer{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"broadcasted_to": merged,
			"is_broadcasted": true,
			"updated_at":     utils.UTCNow(),
		}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to broadcast lead %d: %w", id, err)
	}

	return added, nil
}

// UpdateStatus sets the business status of a lead
func (r *CustomerRepositoryImpl) UpdateStatus(ctx context.Context, id uint, status string, at time.Time) (bool, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.Customer{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to update status of lead %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// CountByStatus groups the leads matching filter by status
func (r *CustomerRepositoryImpl) CountByStatus(ctx context.Context, filter models.CustomerFilter) ([]models.StatusCount, error) {
	db := r.getDB(ctx)
	var rows []models.StatusCount
	err := r.applyFilter(db.Model(&models.Customer{}), filter).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

type principalCount struct {
	PrincipalID uuid.UUID
	Count       int64
}

// CountByCreators counts leads created by each principal
func (r *CustomerRepositoryImpl) CountByCreators(ctx context.Context, creatorIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	return r.countGrouped(ctx, "created_by_id", creatorIDs)
}

// CountByAcceptors counts leads accepted by each agent
func (r *CustomerRepositoryImpl) CountByAcceptors(ctx context.Context, agentIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	return r.countGrouped(ctx, "accepted_by", agentIDs)
}

func (r *CustomerRepositoryImpl) countGrouped(ctx context.Context, column string, ids []uuid.UUID) (map[uuid.UUID]int64, error) {
	out := make(map[uuid.UUID]int64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	db := r.getDB(ctx)
	var rows []principalCount
	err := db.Model(&models.Customer{}).
		Select(column+" AS principal_id, COUNT(*) AS count").
		Where(column+" IN ?", ids).
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.PrincipalID] = row.Count
	}
	return out, nil
}

// applyFilter applies filter criteria to a GORM query
func (r *CustomerRepositoryImpl) applyFilter(query *gorm.DB, filter models.CustomerFilter) *gorm.DB {
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
	if filter.ProjectID != nil {
		query = query.Where("project_id = ?", *filter.ProjectID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.CreatedByID != nil {
		query = query.Where("created_by_id = ?", *filter.CreatedByID)
	}
	if filter.AcceptedBy != nil {
		query = query.Where("accepted_by = ?", *filter.AcceptedBy)
	}
	if filter.AssignedTo != nil {
		query = query.Where("(accepted_by = ? OR ? = ANY(broadcasted_to))", *filter.AssignedTo, filter.AssignedTo.String())
	}
	if filter.BroadcastedTo != nil {
		query = query.Where("? = ANY(broadcasted_to)", filter.BroadcastedTo.String())
	}
	if filter.IsAccepted != nil {
		query = query.Where("is_accepted = ?", *filter.IsAccepted)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves leads based on filter criteria
func (r *CustomerRepositoryImpl) ByFilter(ctx context.Context, filter models.CustomerFilter, orderBy string, limit, offset int) ([]*models.Customer, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Customer{}), filter)
	query = paginate(query, orderBy, limit, offset)

	var rows []*models.Customer
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of leads matching the filter
func (r *CustomerRepositoryImpl) Count(ctx context.Context, filter models.CustomerFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.Customer{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any lead matching the filter exists
func (r *CustomerRepositoryImpl) Exists(ctx context.Context, filter models.CustomerFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
