package businessflow

import (
	"context"
	"fmt"

	"github.com/amirphl/leadflow/app/dto"
	"github.com/amirphl/leadflow/models"
	"github.com/amirphl/leadflow/repository"
	"github.com/amirphl/leadflow/utils"
	"github.com/google/uuid"
)

// Principal is an authenticated actor: an admin, a primary user or an associate user
type Principal struct {
	ID          uuid.UUID
	Kind        string
	Name        string
	Email       string
	Role        string
	Status      string
	CompanyID   uint
	CompanyName string
}

func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == models.RoleAdmin
}

func (p *Principal) IsAgent() bool {
	return p != nil && p.Role == models.RoleAgent
}

func (p *Principal) IsChannelPartner() bool {
	return p != nil && p.Role == models.RoleChannelPartner
}

func (p *Principal) IsActive() bool {
	return p != nil && p.Status == models.UserStatusActive
}

// HasCompany reports whether the principal is scoped to a company
func (p *Principal) HasCompany() bool {
	return p != nil && p.CompanyID != 0
}

func principalFromUser(u *models.User) *Principal {
	return &Principal{
		ID:          u.UUID,
		Kind:        PrincipalKindUser,
		Name:        u.FullName,
		Email:       u.Email,
		Role:        u.Role,
		Status:      u.Status,
		CompanyID:   u.CompanyID,
		CompanyName: u.CompanyName,
	}
}

func principalFromAssociate(a *models.AssociateUser) *Principal {
	return &Principal{
		ID:          a.UUID,
		Kind:        PrincipalKindAssociate,
		Name:        a.FullName,
		Email:       a.Email,
		Role:        a.Role,
		Status:      a.Status,
		CompanyID:   a.CompanyID,
		CompanyName: a.CompanyName,
	}
}

func principalFromAdmin(a *models.Admin) *Principal {
	return &Principal{
		ID:     a.UUID,
		Kind:   PrincipalKindAdmin,
		Name:   a.Name,
		Email:  a.Email,
		Role:   models.RoleAdmin,
		Status: a.Status,
	}
}

// PrincipalResolver finds a principal by identity across users, associates and admins
type PrincipalResolver interface {
	Resolve(ctx context.Context, id uuid.UUID) (*Principal, error)
	// ResolveName returns the display name of id or "Unknown User"
	ResolveName(ctx context.Context, id uuid.UUID) string
	Profile(ctx context.Context, id uuid.UUID) (*dto.PrincipalDTO, error)
}

// PrincipalResolverImpl probes primary users, then associates, then admins
type PrincipalResolverImpl struct {
	userRepo      repository.UserRepository
	associateRepo repository.AssociateUserRepository
	adminRepo     repository.AdminRepository
}

func NewPrincipalResolver(userRepo repository.UserRepository, associateRepo repository.AssociateUserRepository, adminRepo repository.AdminRepository) PrincipalResolver {
	return &PrincipalResolverImpl{
		userRepo:      userRepo,
		associateRepo: associateRepo,
		adminRepo:     adminRepo,
	}
}

func (r *PrincipalResolverImpl) Resolve(ctx context.Context, id uuid.UUID) (*Principal, error) {
	if id == uuid.Nil {
		return nil, ErrPrincipalNotFound
	}

	user, err := r.userRepo.ByUUID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup user: %w", err)
	}
	if user != nil {
		return principalFromUser(user), nil
	}

	associate, err := r.associateRepo.ByUUID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup associate: %w", err)
	}
	if associate != nil {
		return principalFromAssociate(associate), nil
	}

	admin, err := r.adminRepo.ByUUID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup admin: %w", err)
	}
	if admin != nil {
		return principalFromAdmin(admin), nil
	}

	return nil, ErrPrincipalNotFound
}

func (r *PrincipalResolverImpl) ResolveName(ctx context.Context, id uuid.UUID) string {
	p, err := r.Resolve(ctx, id)
	if err != nil || p.Name == "" {
		return utils.UnknownActorName
	}
	return p.Name
}

// Profile returns the public view of the principal, used by the "me" endpoints
func (r *PrincipalResolverImpl) Profile(ctx context.Context, id uuid.UUID) (*dto.PrincipalDTO, error) {
	user, err := r.userRepo.ByUUID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("PROFILE_LOOKUP_FAILED", "Failed to lookup profile", err)
	}
	if user != nil {
		out := ToUserDTO(*user)
		return &out, nil
	}
	associate, err := r.associateRepo.ByUUID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("PROFILE_LOOKUP_FAILED", "Failed to lookup profile", err)
	}
	if associate != nil {
		out := ToAssociateDTO(*associate)
		return &out, nil
	}
	admin, err := r.adminRepo.ByUUID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("PROFILE_LOOKUP_FAILED", "Failed to lookup profile", err)
	}
	if admin != nil {
		out := ToAdminDTO(*admin)
		return &out, nil
	}
	return nil, NewBusinessError("PRINCIPAL_NOT_FOUND", "User not found", ErrPrincipalNotFound)
}
