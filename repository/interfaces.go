// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/leadflow/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// TxManager runs a function inside a database transaction carried by the context
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(context.Context) error) error
}

// AdminRepository defines operations for admin accounts
type AdminRepository interface {
	Repository[models.Admin, models.AdminFilter]
	ByUUID(ctx context.Context, id uuid.UUID) (*models.Admin, error)
	ByEmail(ctx context.Context, email string) (*models.Admin, error)
	TouchLastLogin(ctx context.Context, id uint, at time.Time) error
}

// UserRepository defines operations for primary principals
type UserRepository interface {
	Repository[models.User, models.UserFilter]
	ByUUID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ByEmail(ctx context.Context, email string) (*models.User, error)
	ByEmailOrPhone(ctx context.Context, email, phone string) (*models.User, error)
	ListActiveAgents(ctx context.Context, companyID uint) ([]*models.User, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.User, error)
}

// AssociateUserRepository defines operations for associate principals
type AssociateUserRepository interface {
	Repository[models.AssociateUser, models.AssociateUserFilter]
	ByUUID(ctx context.Context, id uuid.UUID) (*models.AssociateUser, error)
	ByEmail(ctx context.Context, email string) (*models.AssociateUser, error)
	ByEmailOrPhone(ctx context.Context, email, phone string) (*models.AssociateUser, error)
	ListActiveAgents(ctx context.Context, companyID uint) ([]*models.AssociateUser, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.AssociateUser, error)
}

// CompanyRepository defines operations for companies
type CompanyRepository interface {
	Repository[models.Company, models.CompanyFilter]
	LiveByID(ctx context.Context, id uint) (*models.Company, error)
	LiveByName(ctx context.Context, name string) (*models.Company, error)
	SoftDelete(ctx context.Context, id uint, at time.Time) (bool, error)
}

// ProjectRepository defines operations for projects
type ProjectRepository interface {
	Repository[models.Project, models.ProjectFilter]
}

// MasterStatusRepository defines operations for the curated lead status list
type MasterStatusRepository interface {
	Repository[models.MasterStatus, models.MasterStatusFilter]
	LiveByID(ctx context.Context, id uint) (*models.MasterStatus, error)
	LiveByName(ctx context.Context, name string) (*models.MasterStatus, error)
	ListLive(ctx context.Context) ([]*models.MasterStatus, error)
	Rename(ctx context.Context, id uint, name string) (bool, error)
	SoftDelete(ctx context.Context, id uint, at time.Time) (bool, error)
}

// CustomerRepository defines operations for leads. Every mutation is a single guarded
// statement or runs under a row lock.
type CustomerRepository interface {
	Repository[models.Customer, models.CustomerFilter]
	ByEmailOrPhone(ctx context.Context, email, phone string) (*models.Customer, error)
	// AcceptIfUnaccepted claims the lead for the agent; false means someone else holds it
	AcceptIfUnaccepted(ctx context.Context, id, companyID uint, agentID uuid.UUID, agentName string, at time.Time) (bool, error)
	// AddDecline records the agent in declined_by; false means the lead is accepted or
	// the agent already declined
	AddDecline(ctx context.Context, id uint, agentID uuid.UUID, at time.Time) (bool, error)
	// UnionBroadcast adds agents to broadcasted_to and returns the ones that were not present
	UnionBroadcast(ctx context.Context, id uint, agentIDs []uuid.UUID) ([]uuid.UUID, error)
	UpdateStatus(ctx context.Context, id uint, status string, at time.Time) (bool, error)
	CountByStatus(ctx context.Context, filter models.CustomerFilter) ([]models.StatusCount, error)
	CountByCreators(ctx context.Context, creatorIDs []uuid.UUID) (map[uuid.UUID]int64, error)
	CountByAcceptors(ctx context.Context, agentIDs []uuid.UUID) (map[uuid.UUID]int64, error)
}

// CustomerStatusHistoryRepository defines operations for the append-only status log
type CustomerStatusHistoryRepository interface {
	Repository[models.CustomerStatusHistory, models.CustomerStatusHistoryFilter]
	ListByCustomer(ctx context.Context, customerID uint) ([]*models.CustomerStatusHistory, error)
}

// FollowUpRepository defines operations for lead follow-ups
type FollowUpRepository interface {
	AppendEntry(ctx context.Context, customerID uint, entry *models.FollowUpEntry) error
	ListEntries(ctx context.Context, customerID uint) ([]*models.FollowUpEntry, error)
}

// NoteRepository defines operations for lead notes
type NoteRepository interface {
	AppendEntry(ctx context.Context, customerID uint, entry *models.NoteEntry) error
	ListEntries(ctx context.Context, customerID uint) ([]*models.NoteEntry, error)
}

// CustomerLinkRepository defines operations for customer registration links
type CustomerLinkRepository interface {
	Save(ctx context.Context, link *models.CustomerLink) error
	ByCode(ctx context.Context, code string) (*models.CustomerLink, error)
	// ClaimByCode deletes the unexpired link and returns it; nil means invalid or expired
	ClaimByCode(ctx context.Context, code string, now time.Time) (*models.CustomerLink, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// AssociateLinkRepository defines operations for associate registration links
type AssociateLinkRepository interface {
	Save(ctx context.Context, link *models.AssociateLink) error
	ByCode(ctx context.Context, code string) (*models.AssociateLink, error)
	ClaimByCode(ctx context.Context, code string, now time.Time) (*models.AssociateLink, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SequenceRepository hands out monotonic numbers for human readable codes
type SequenceRepository interface {
	Next(ctx context.Context, name string, start int64) (int64, error)
}
