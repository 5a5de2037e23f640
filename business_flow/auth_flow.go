package businessflow

import (
	"context"
	"errors"
	"strings"

	"github.com/amirphl/leadflow/app/dto"
	"github.com/amirphl/leadflow/app/services"
	"github.com/amirphl/leadflow/models"
	"github.com/amirphl/leadflow/repository"
	"github.com/amirphl/leadflow/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// AuthFlow handles registration and authentication of every principal kind
type AuthFlow interface {
	RegisterAdmin(ctx context.Context, req *dto.RegisterAdminRequest) (*dto.PrincipalDTO, error)
	LoginAdmin(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error)
	RegisterUser(ctx context.Context, req *dto.RegisterUserRequest) (*dto.PrincipalDTO, error)
	LoginUser(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error)
	LoginAssociate(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error)
	RefreshToken(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.TokenPairResponse, error)
	Logout(ctx context.Context, accessToken string) error
	Me(ctx context.Context, actor *Principal) (*dto.PrincipalDTO, error)
}

// AuthFlowImpl implements AuthFlow
type AuthFlowImpl struct {
	adminRepo     repository.AdminRepository
	userRepo      repository.UserRepository
	associateRepo repository.AssociateUserRepository
	companyRepo   repository.CompanyRepository
	resolver      PrincipalResolver
	tokenService  services.TokenService
	txManager     repository.TxManager
	auditLogger   *logrus.Logger
}

func NewAuthFlow(
	adminRepo repository.AdminRepository,
	userRepo repository.UserRepository,
	associateRepo repository.AssociateUserRepository,
	companyRepo repository.CompanyRepository,
	resolver PrincipalResolver,
	tokenService services.TokenService,
	txManager repository.TxManager,
	auditLogger *logrus.Logger,
) AuthFlow {
	return &AuthFlowImpl{
		adminRepo:     adminRepo,
		userRepo:      userRepo,
		associateRepo: associateRepo,
		companyRepo:   companyRepo,
		resolver:      resolver,
		tokenService:  tokenService,
		txManager:     txManager,
		auditLogger:   auditLogger,
	}
}

// RegisterAdmin creates the one and only admin account
func (af *AuthFlowImpl) RegisterAdmin(ctx context.Context, req *dto.RegisterAdminRequest) (*dto.PrincipalDTO, error) {
	if req == nil || req.Password == "" || req.Password != req.ConfirmPassword {
		return nil, NewBusinessError("ADMIN_VALIDATION_FAILED", "Passwords do not match", ErrValidation)
	}

	var admin *models.Admin
	err := af.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		exists, err := af.adminRepo.Exists(txCtx, models.AdminFilter{})
		if err != nil {
			return NewBusinessError("ADMIN_LOOKUP_FAILED", "Failed to lookup admin", err)
		}
		if exists {
			return NewBusinessError("ADMIN_ALREADY_EXISTS", "Admin already exists. Only one admin allowed.", ErrAdminAlreadyExists)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return NewBusinessError("PASSWORD_HASH_FAILED", "Failed to hash password", err)
		}
		admin = &models.Admin{
			Name:         strings.TrimSpace(req.Name),
			Email:        utils.NormalizeEmail(req.Email),
			PasswordHash: string(hash),
			Status:       models.UserStatusActive,
		}
		if err := af.adminRepo.Save(txCtx, admin); err != nil {
			if repository.IsUniqueViolation(err) {
				return NewBusinessError("ADMIN_ALREADY_EXISTS", "Admin already exists. Only one admin allowed.", ErrAdminAlreadyExists)
			}
			return NewBusinessError("ADMIN_CREATE_FAILED", "Failed to create admin", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	af.auditLogger.WithFields(logrus.Fields{"admin": admin.UUID.String()}).Info("admin registered")
	out := ToAdminDTO(*admin)
	return &out, nil
}

func (af *AuthFlowImpl) LoginAdmin(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error) {
	if req == nil || req.Email == "" || req.Password == "" {
		return nil, NewBusinessError("LOGIN_VALIDATION_FAILED", "Email and password are required", ErrValidation)
	}

	admin, err := af.adminRepo.ByEmail(ctx, req.Email)
	if err != nil {
		return nil, NewBusinessError("ADMIN_LOOKUP_FAILED", "Failed to lookup admin", err)
	}
	if admin == nil {
		return nil, NewBusinessError("ADMIN_NOT_FOUND", "Admin not found with this email", ErrAdminNotFound)
	}
	if admin.Status != models.UserStatusActive {
		return nil, NewBusinessError("ACCOUNT_INACTIVE", "Admin account is inactive", ErrAccountInactive)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
		af.auditLogin(metadata, admin.UUID.String(), false)
		return nil, NewBusinessError("INCORRECT_PASSWORD", "Invalid credentials", ErrIncorrectPassword)
	}

	if err := af.adminRepo.TouchLastLogin(ctx, admin.ID, utils.UTCNow()); err != nil {
		af.auditLogger.WithError(err).Warn("failed to record admin last login")
	}

	out, err := af.issue(principalFromAdmin(admin), ToAdminDTO(*admin), false)
	if err != nil {
		return nil, err
	}
	af.auditLogin(metadata, admin.UUID.String(), true)
	return out, nil
}

// RegisterUser registers a primary agent or channel partner against a live company
func (af *AuthFlowImpl) RegisterUser(ctx context.Context, req *dto.RegisterUserRequest) (*dto.PrincipalDTO, error) {
	if req == nil {
		return nil, NewBusinessError("USER_VALIDATION_FAILED", "Request is required", ErrValidation)
	}
	if req.Role != models.RoleAgent && req.Role != models.RoleChannelPartner {
		return nil, NewBusinessError("USER_VALIDATION_FAILED", "Role must be agent or channel_partner", ErrValidation)
	}
	if !utils.IsValidUserPhone(req.PhoneNumber) {
		return nil, NewBusinessError("USER_VALIDATION_FAILED", "Phone number must be 10 digits", ErrValidation)
	}

	var user *models.User
	err := af.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		company, err := af.companyRepo.LiveByID(txCtx, req.CompanyID)
		if err != nil {
			return NewBusinessError("COMPANY_LOOKUP_FAILED", "Failed to lookup company", err)
		}
		if company == nil {
			return NewBusinessError("COMPANY_NOT_FOUND", "Company not found or has been deleted", ErrCompanyNotFound)
		}

		email := utils.NormalizeEmail(req.Email)
		if err := ensureIdentityAvailable(txCtx, af.userRepo, af.associateRepo, email, req.PhoneNumber); err != nil {
			return err
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return NewBusinessError("PASSWORD_HASH_FAILED", "Failed to hash password", err)
		}
		user = &models.User{
			FullName:     strings.TrimSpace(req.FullName),
			Email:        email,
			PhoneNumber:  req.PhoneNumber,
			Location:     req.Location,
			CompanyID:    company.ID,
			CompanyName:  company.Name,
			Role:         req.Role,
			Status:       models.UserStatusActive,
			PasswordHash: string(hash),
		}
		if err := af.userRepo.Save(txCtx, user); err != nil {
			if repository.IsUniqueViolation(err) {
				return NewBusinessError("EMAIL_OR_PHONE_IN_USE", "Email or phone number already registered", ErrEmailOrPhoneInUse)
			}
			return NewBusinessError("USER_CREATE_FAILED", "Failed to create user", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	af.auditLogger.WithFields(logrus.Fields{"user": user.UUID.String(), "role": user.Role, "company_id": user.CompanyID}).Info("user registered")
	out := ToUserDTO(*user)
	return &out, nil
}

// LoginUser authenticates against primary users first and falls back to associates
func (af *AuthFlowImpl) LoginUser(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error) {
	return af.loginPrincipal(ctx, req, metadata, true)
}

// LoginAssociate authenticates associates only
func (af *AuthFlowImpl) LoginAssociate(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error) {
	return af.loginPrincipal(ctx, req, metadata, false)
}

func (af *AuthFlowImpl) loginPrincipal(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata, probePrimary bool) (*dto.LoginResponse, error) {
	if req == nil || req.Email == "" || req.Password == "" {
		return nil, NewBusinessError("LOGIN_VALIDATION_FAILED", "Email and password are required", ErrValidation)
	}

	var (
		principal    *Principal
		view         dto.PrincipalDTO
		passwordHash string
		isAssociate  bool
	)

	if probePrimary {
		user, err := af.userRepo.ByEmail(ctx, req.Email)
		if err != nil {
			return nil, NewBusinessError("USER_LOOKUP_FAILED", "Failed to lookup user", err)
		}
		if user != nil {
			principal, view, passwordHash = principalFromUser(user), ToUserDTO(*user), user.PasswordHash
		}
	}
	if principal == nil {
		associate, err := af.associateRepo.ByEmail(ctx, req.Email)
		if err != nil {
			return nil, NewBusinessError("USER_LOOKUP_FAILED", "Failed to lookup user", err)
		}
		if associate != nil {
			principal, view, passwordHash = principalFromAssociate(associate), ToAssociateDTO(*associate), associate.PasswordHash
			isAssociate = true
		}
	}
	if principal == nil {
		return nil, NewBusinessError("USER_NOT_FOUND", "User not found with this email", ErrPrincipalNotFound)
	}
	if !principal.IsActive() {
		return nil, NewBusinessError("ACCOUNT_INACTIVE", "Your Account is Inactive. Please Contact with Admin to make Account Active.", ErrAccountInactive)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)); err != nil {
		af.auditLogin(metadata, principal.ID.String(), false)
		return nil, NewBusinessError("INCORRECT_PASSWORD", "Invalid credentials", ErrIncorrectPassword)
	}

	out, err := af.issue(principal, view, isAssociate)
	if err != nil {
		return nil, err
	}
	af.auditLogin(metadata, principal.ID.String(), true)
	return out, nil
}

func (af *AuthFlowImpl) issue(p *Principal, view dto.PrincipalDTO, isAssociate bool) (*dto.LoginResponse, error) {
	subject := services.TokenSubject{PrincipalID: p.ID, Role: p.Role}
	if p.HasCompany() {
		companyID := p.CompanyID
		subject.CompanyID = &companyID
	}
	accessToken, refreshToken, err := af.tokenService.GenerateTokens(subject)
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to generate tokens", err)
	}
	return &dto.LoginResponse{
		Principal:    view,
		IsAssociate:  isAssociate,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(af.tokenService.AccessTokenTTL().Seconds()),
		TokenType:    "Bearer",
	}, nil
}

// RefreshToken rotates a refresh token into a new pair
func (af *AuthFlowImpl) RefreshToken(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.TokenPairResponse, error) {
	if req == nil || req.RefreshToken == "" {
		return nil, NewBusinessError("REFRESH_VALIDATION_FAILED", "Refresh token is required", ErrValidation)
	}
	claims, err := af.tokenService.ValidateToken(ctx, req.RefreshToken)
	if err != nil || claims.TokenType != services.TokenTypeRefresh {
		return nil, NewBusinessError("INVALID_REFRESH_TOKEN", "Invalid refresh token", ErrInvalidToken)
	}

	principal, err := af.resolver.Resolve(ctx, claims.PrincipalID)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return nil, NewBusinessError("INVALID_REFRESH_TOKEN", "Invalid refresh token", ErrInvalidToken)
		}
		return nil, NewBusinessError("USER_LOOKUP_FAILED", "Failed to lookup user", err)
	}
	if !principal.IsActive() {
		return nil, NewBusinessError("ACCOUNT_INACTIVE", "Account is inactive", ErrAccountInactive)
	}

	accessToken, refreshToken, err := af.tokenService.RefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, NewBusinessError("INVALID_REFRESH_TOKEN", "Invalid refresh token", ErrInvalidToken)
	}
	return &dto.TokenPairResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(af.tokenService.AccessTokenTTL().Seconds()),
		TokenType:    "Bearer",
	}, nil
}

// Logout revokes the access token until it would have expired anyway
func (af *AuthFlowImpl) Logout(ctx context.Context, accessToken string) error {
	if err := af.tokenService.RevokeToken(ctx, accessToken); err != nil {
		return NewBusinessError("LOGOUT_FAILED", "Failed to revoke token", err)
	}
	return nil
}

func (af *AuthFlowImpl) Me(ctx context.Context, actor *Principal) (*dto.PrincipalDTO, error) {
	if actor == nil {
		return nil, NewBusinessError("UNAUTHORIZED", "Unauthorized", ErrInvalidToken)
	}
	return af.resolver.Profile(ctx, actor.ID)
}

func (af *AuthFlowImpl) auditLogin(metadata *ClientMetadata, principalID string, success bool) {
	fields := logrus.Fields{"principal": principalID, "success": success}
	if metadata != nil {
		fields["ip"] = metadata.IPAddress
		fields["user_agent"] = metadata.UserAgent
		fields["request_id"] = metadata.RequestID
	}
	af.auditLogger.WithFields(fields).Info("login attempt")
}
