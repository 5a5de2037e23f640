package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/leadflow/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CustomerLinkRepositoryImpl implements CustomerLinkRepository interface
type CustomerLinkRepositoryImpl struct {
	*BaseRepository[models.CustomerLink, models.RegistrationLinkFilter]
}

// NewCustomerLinkRepository creates a new customer link repository
func NewCustomerLinkRepository(db *gorm.DB) CustomerLinkRepository {
	return &CustomerLinkRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CustomerLink, models.RegistrationLinkFilter](db),
	}
}

// ByCode retrieves a link by code regardless of expiry
func (r *CustomerLinkRepositoryImpl) ByCode(ctx context.Context, code string) (*models.CustomerLink, error) {
	return linkByCode[models.CustomerLink](r.getDB(ctx), code)
}

// ClaimByCode deletes and returns the link when it exists and has not expired
func (r *CustomerLinkRepositoryImpl) ClaimByCode(ctx context.Context, code string, now time.Time) (*models.CustomerLink, error) {
	return claimLink[models.CustomerLink](r.getDB(ctx), code, now)
}

// DeleteExpired purges links whose expiry has passed
func (r *CustomerLinkRepositoryImpl) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return deleteExpiredLinks[models.CustomerLink](r.getDB(ctx), now)
}

// AssociateLinkRepositoryImpl implements AssociateLinkRepository interface
type AssociateLinkRepositoryImpl struct {
	*BaseRepository[models.AssociateLink, models.RegistrationLinkFilter]
}

// NewAssociateLinkRepository creates a new associate link repository
func NewAssociateLinkRepository(db *gorm.DB) AssociateLinkRepository {
	return &AssociateLinkRepositoryImpl{
		BaseRepository: NewBaseRepository[models.AssociateLink, models.RegistrationLinkFilter](db),
	}
}

// ByCode retrieves a link by code regardless of expiry
func (r *AssociateLinkRepositoryImpl) ByCode(ctx context.Context, code string) (*models.AssociateLink, error) {
	return linkByCode[models.AssociateLink](r.getDB(ctx), code)
}

// ClaimByCode deletes and returns the link when it exists and has not expired
func (r *AssociateLinkRepositoryImpl) ClaimByCode(ctx context.Context, code string, now time.Time) (*models.AssociateLink, error) {
	return claimLink[models.AssociateLink](r.getDB(ctx), code, now)
}

// DeleteExpired purges links whose expiry has passed
func (r *AssociateLinkRepositoryImpl) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return deleteExpiredLinks[models.AssociateLink](r.getDB(ctx), now)
}

func linkByCode[T any](db *gorm.DB, code string) (*T, error) {
	var link T
	err := db.Where("code = ?", code).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}

// claimLink is a single DELETE ... RETURNING; of two concurrent redemptions only one
// gets the row back.
func claimLink[T any](db *gorm.DB, code string, now time.Time) (*T, error) {
	var claimed []T
	res := db.Clauses(clause.Returning{}).
		Where("code = ? AND expires_at > ?", code, now).
		Delete(&claimed)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to claim link: %w", res.Error)
	}
	if res.RowsAffected == 0 || len(claimed) == 0 {
		return nil, nil
	}
	return &claimed[0], nil
}

func deleteExpiredLinks[T any](db *gorm.DB, now time.Time) (int64, error) {
	var model T
	res := db.Where("expires_at <= ?", now).Delete(&model)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete expired links: %w", res.Error)
	}
	return res.RowsAffected, nil
}
