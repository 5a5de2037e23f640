package businessflow

import (
	"context"
	"strings"

	"github.com/amirphl/leadflow/app/dto"
	"github.com/amirphl/leadflow/app/services"
	"github.com/amirphl/leadflow/models"
	"github.com/amirphl/leadflow/repository"
	"github.com/amirphl/leadflow/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var accountDeactivatedEvent = dto.ForceLogoutEvent{
	Reason:  "account_inactive",
	Title:   "Account Deactivated",
	Message: "Your account has been set to Inactive by the Admin. Please contact the Admin to reactivate it.",
	Type:    "warning",
}

// AccountInactiveEvent is the force-logout frame sent to inactive accounts
func AccountInactiveEvent() dto.ForceLogoutEvent {
	return accountDeactivatedEvent
}

// UserAdminFlow manages principals on behalf of admins and primary users
type UserAdminFlow interface {
	UpdateUserStatus(ctx context.Context, actor *Principal, id uuid.UUID, req *dto.UpdateUserStatusRequest) (*dto.PrincipalDTO, error)
	ListAgentsByCompany(ctx context.Context, actor *Principal, companyID uint) (*dto.AgentsResponse, error)
	ListUsers(ctx context.Context, actor *Principal, req *dto.ListUsersRequest) (*dto.ListUsersResponse, error)
	CreateAssociate(ctx context.Context, actor *Principal, req *dto.CreateAssociateRequest) (*dto.PrincipalDTO, error)
	ListAssociates(ctx context.Context, actor *Principal, req *dto.PageRequest) (*dto.ListAssociatesResponse, error)
}

// UserAdminFlowImpl implements UserAdminFlow
type UserAdminFlowImpl struct {
	userRepo      repository.UserRepository
	associateRepo repository.AssociateUserRepository
	companyRepo   repository.CompanyRepository
	customerRepo  repository.CustomerRepository
	txManager     repository.TxManager
	notifier      services.NotificationService
	auditLogger   *logrus.Logger
}

func NewUserAdminFlow(
	userRepo repository.UserRepository,
	associateRepo repository.AssociateUserRepository,
	companyRepo repository.CompanyRepository,
	customerRepo repository.CustomerRepository,
	txManager repository.TxManager,
	notifier services.NotificationService,
	auditLogger *logrus.Logger,
) UserAdminFlow {
	return &UserAdminFlowImpl{
		userRepo:      userRepo,
		associateRepo: associateRepo,
		companyRepo:   companyRepo,
		customerRepo:  customerRepo,
		txManager:     txManager,
		notifier:      notifier,
		auditLogger:   auditLogger,
	}
}

// UpdateUserStatus changes a user's account status, falling back to associates when no
// primary user carries the id. Deactivation logs the principal out of every live session.
func (uf *UserAdminFlowImpl) UpdateUserStatus(ctx context.Context, actor *Principal, id uuid.UUID, req *dto.UpdateUserStatusRequest) (*dto.PrincipalDTO, error) {
	if !actor.IsAdmin() {
		return nil, NewBusinessError("ROLE_NOT_ALLOWED", "Only admin can change user status", ErrRoleNotAllowed)
	}
	if id == uuid.Nil {
		return nil, NewBusinessError("INVALID_PRINCIPAL_ID", "Invalid user id", ErrInvalidPrincipalID)
	}
	if req == nil || (req.Status != models.UserStatusActive && req.Status != models.UserStatusInactive) {
		return nil, NewBusinessError("INVALID_USER_STATUS", "Status must be active or inactive", ErrInvalidUserStatus)
	}

	var out dto.PrincipalDTO
	user, err := uf.userRepo.UpdateStatus(ctx, id, req.Status)
	if err != nil {
		return nil, NewBusinessError("USER_STATUS_UPDATE_FAILED", "Failed to update user status", err)
	}
	if user != nil {
		out = ToUserDTO(*user)
	} else {
		associate, err := uf.associateRepo.UpdateStatus(ctx, id, req.Status)
		if err != nil {
			return nil, NewBusinessError("USER_STATUS_UPDATE_FAILED", "Failed to update user status", err)
		}
		if associate == nil {
			return nil, NewBusinessError("USER_NOT_FOUND", "User not found", ErrPrincipalNotFound)
		}
		out = ToAssociateDTO(*associate)
	}

	uf.auditLogger.WithFields(logrus.Fields{
		"admin":  actor.ID.String(),
		"user":   id.String(),
		"status": req.Status,
	}).Info("user status changed")

	if req.Status == models.UserStatusInactive {
		uf.notifier.ForceLogout(ctx, id, accountDeactivatedEvent)
	}
	return &out, nil
}

// ListAgentsByCompany returns active agents of a company, primary and associate alike
func (uf *UserAdminFlowImpl) ListAgentsByCompany(ctx context.Context, actor *Principal, companyID uint) (*dto.AgentsResponse, error) {
	if !actor.IsAdmin() && actor.CompanyID != companyID {
		return nil, NewBusinessError("ROLE_NOT_ALLOWED", "Not allowed to list agents of this company", ErrRoleNotAllowed)
	}
	company, err := uf.companyRepo.LiveByID(ctx, companyID)
	if err != nil {
		return nil, NewBusinessError("COMPANY_LOOKUP_FAILED", "Failed to lookup company", err)
	}
	if company == nil {
		return nil, NewBusinessError("COMPANY_NOT_FOUND", "Company not found", ErrCompanyNotFound)
	}

	users, err := uf.userRepo.ListActiveAgents(ctx, companyID)
	if err != nil {
		return nil, NewBusinessError("AGENTS_LOOKUP_FAILED", "Failed to list agents", err)
	}
	associates, err := uf.associateRepo.ListActiveAgents(ctx, companyID)
	if err != nil {
		return nil, NewBusinessError("AGENTS_LOOKUP_FAILED", "Failed to list agents", err)
	}

	results := make([]dto.PrincipalDTO, 0, len(users)+len(associates))
	for _, u := range users {
		results = append(results, ToUserDTO(*u))
	}
	for _, a := range associates {
		results = append(results, ToAssociateDTO(*a))
	}
	return &dto.AgentsResponse{Results: results}, nil
}

// ListUsers is the admin listing of primary users with their lead counters. Agents count
// accepted leads; channel partners count created leads and their channel partner associates.
func (uf *UserAdminFlowImpl) ListUsers(ctx context.Context, actor *Principal, req *dto.ListUsersRequest) (*dto.ListUsersResponse, error) {
	if !actor.IsAdmin() {
		return nil, NewBusinessError("ROLE_NOT_ALLOWED", "Only admin can list users", ErrRoleNotAllowed)
	}
	if req == nil {
		req = &dto.ListUsersRequest{}
	}

	filter := models.UserFilter{}
	if req.Role != "" {
		role := req.Role
		filter.Role = &role
	}
	if q := strings.TrimSpace(req.Query); q != "" {
		filter.Query = &q
	}

	page, perPage, offset := req.PageRequest.Normalize(utils.DefaultPerPage)
	total, err := uf.userRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("USERS_COUNT_FAILED", "Failed to count users", err)
	}
	users, err := uf.userRepo.ByFilter(ctx, filter, "created_at DESC", perPage, offset)
	if err != nil {
		return nil, NewBusinessError("USERS_LIST_FAILED", "Failed to list users", err)
	}

	var agentIDs, partnerIDs []uuid.UUID
	for _, u := range users {
		switch u.Role {
		case models.RoleAgent:
			agentIDs = append(agentIDs, u.UUID)
		case models.RoleChannelPartner:
			partnerIDs = append(partnerIDs, u.UUID)
		}
	}
	accepted, err := uf.customerRepo.CountByAcceptors(ctx, agentIDs)
	if err != nil {
		return nil, NewBusinessError("USERS_COUNT_FAILED", "Failed to count customers", err)
	}
	created, err := uf.customerRepo.CountByCreators(ctx, partnerIDs)
	if err != nil {
		return nil, NewBusinessError("USERS_COUNT_FAILED", "Failed to count customers", err)
	}

	results := make([]dto.UserWithCountsDTO, 0, len(users))
	for _, u := range users {
		row := dto.UserWithCountsDTO{PrincipalDTO: ToUserDTO(*u)}
		switch u.Role {
		case models.RoleAgent:
			row.CustomerCount = accepted[u.UUID]
		case models.RoleChannelPartner:
			row.CustomerCount = created[u.UUID]
			creatorID := u.UUID
			role := models.RoleChannelPartner
			n, err := uf.associateRepo.Count(ctx, models.AssociateUserFilter{CreatedByID: &creatorID, Role: &role})
			if err != nil {
				return nil, NewBusinessError("USERS_COUNT_FAILED", "Failed to count associates", err)
			}
			row.AssociatedCPCount = n
		}
		results = append(results, row)
	}

	return &dto.ListUsersResponse{
		Results:  results,
		PageInfo: dto.NewPageInfo(total, page, perPage, len(results)),
	}, nil
}

// CreateAssociate registers an associate bound to the calling primary user's company
func (uf *UserAdminFlowImpl) CreateAssociate(ctx context.Context, actor *Principal, req *dto.CreateAssociateRequest) (*dto.PrincipalDTO, error) {
	if actor == nil || actor.Kind != PrincipalKindUser {
		return nil, NewBusinessError("ONLY_PRIMARY_CAN_ADD", "Only primary users can add associates", ErrOnlyPrimaryCanAdd)
	}
	if req == nil {
		return nil, NewBusinessError("ASSOCIATE_VALIDATION_FAILED", "Request is required", ErrValidation)
	}
	if req.Role != models.RoleAgent && req.Role != models.RoleChannelPartner {
		return nil, NewBusinessError("ASSOCIATE_VALIDATION_FAILED", "Role must be agent or channel_partner", ErrValidation)
	}
	if !utils.IsValidUserPhone(req.PhoneNumber) {
		return nil, NewBusinessError("ASSOCIATE_VALIDATION_FAILED", "Phone number must be 10 digits", ErrValidation)
	}

	var associate *models.AssociateUser
	err := uf.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		email := utils.NormalizeEmail(req.Email)
		if err := ensureIdentityAvailable(txCtx, uf.userRepo, uf.associateRepo, email, req.PhoneNumber); err != nil {
			return err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return NewBusinessError("PASSWORD_HASH_FAILED", "Failed to hash password", err)
		}
		associate = &models.AssociateUser{
			FullName:      strings.TrimSpace(req.FullName),
			Email:         email,
			PhoneNumber:   req.PhoneNumber,
			Location:      req.Location,
			CompanyID:     actor.CompanyID,
			CompanyName:   actor.CompanyName,
			Role:          req.Role,
			Status:        models.UserStatusActive,
			PasswordHash:  string(hash),
			CreatedByID:   actor.ID,
			CreatedByName: actor.Name,
		}
		if err := uf.associateRepo.Save(txCtx, associate); err != nil {
			if repository.IsUniqueViolation(err) {
				return NewBusinessError("EMAIL_OR_PHONE_IN_USE", "Email or phone number already registered", ErrEmailOrPhoneInUse)
			}
			return NewBusinessError("ASSOCIATE_CREATE_FAILED", "Failed to create associate", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uf.auditLogger.WithFields(logrus.Fields{
		"creator":   actor.ID.String(),
		"associate": associate.UUID.String(),
		"role":      associate.Role,
	}).Info("associate created")
	out := ToAssociateDTO(*associate)
	return &out, nil
}

// ListAssociates returns every associate for admins and the caller's own otherwise
func (uf *UserAdminFlowImpl) ListAssociates(ctx context.Context, actor *Principal, req *dto.PageRequest) (*dto.ListAssociatesResponse, error) {
	if actor == nil {
		return nil, NewBusinessError("ROLE_NOT_ALLOWED", "Unauthorized", ErrRoleNotAllowed)
	}
	if req == nil {
		req = &dto.PageRequest{}
	}

	filter := models.AssociateUserFilter{}
	if !actor.IsAdmin() {
		creatorID := actor.ID
		filter.CreatedByID = &creatorID
	}

	page, perPage, offset := req.Normalize(utils.DefaultPerPage)
	total, err := uf.associateRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("ASSOCIATES_COUNT_FAILED", "Failed to count associates", err)
	}
	rows, err := uf.associateRepo.ByFilter(ctx, filter, "created_at DESC", perPage, offset)
	if err != nil {
		return nil, NewBusinessError("ASSOCIATES_LIST_FAILED", "Failed to list associates", err)
	}

	results := make([]dto.PrincipalDTO, 0, len(rows))
	for _, a := range rows {
		results = append(results, ToAssociateDTO(*a))
	}
	return &dto.ListAssociatesResponse{
		Results:  results,
		PageInfo: dto.NewPageInfo(total, page, perPage, len(results)),
	}, nil
}
