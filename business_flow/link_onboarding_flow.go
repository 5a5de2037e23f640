package businessflow

import (
	"context"
	"strings"
	"time"

	"github.com/amirphl/leadflow/app/dto"
	"github.com/amirphl/leadflow/app/services"
	"github.com/amirphl/leadflow/models"
	"github.com/amirphl/leadflow/repository"
	"github.com/amirphl/leadflow/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const linkCodeAttempts = 3

// LinkOnboardingFlow issues and redeems single-use registration links
type LinkOnboardingFlow interface {
	GenerateCustomerLink(ctx context.Context, actor *Principal) (*dto.GenerateLinkResponse, error)
	RedeemCustomerLink(ctx context.Context, code string, req *dto.RedeemCustomerLinkRequest) (*dto.LeadDTO, error)
	GenerateAssociateLink(ctx context.Context, actor *Principal, req *dto.GenerateAssociateLinkRequest) (*dto.GenerateLinkResponse, error)
	RedeemAssociateLink(ctx context.Context, code string, req *dto.RedeemAssociateLinkRequest) (*dto.RedeemAssociateLinkResponse, error)
	CleanupExpiredLinks(ctx context.Context) (int64, error)
}

// LinkOnboardingFlowImpl implements LinkOnboardingFlow. A code is consumed by deleting
// its row inside the redemption transaction, so a failed redemption keeps the code.
type LinkOnboardingFlowImpl struct {
	customerLinkRepo  repository.CustomerLinkRepository
	associateLinkRepo repository.AssociateLinkRepository
	userRepo          repository.UserRepository
	associateRepo     repository.AssociateUserRepository
	resolver          PrincipalResolver
	writer            *leadWriter
	txManager         repository.TxManager
	notifier          services.NotificationService
	logger            *logrus.Logger
	linkTTL           time.Duration
	codeLength        int
}

func NewLinkOnboardingFlow(
	customerLinkRepo repository.CustomerLinkRepository,
	associateLinkRepo repository.AssociateLinkRepository,
	customerRepo repository.CustomerRepository,
	projectRepo repository.ProjectRepository,
	companyRepo repository.CompanyRepository,
	userRepo repository.UserRepository,
	associateRepo repository.AssociateUserRepository,
	resolver PrincipalResolver,
	txManager repository.TxManager,
	notifier services.NotificationService,
	logger *logrus.Logger,
	linkTTL time.Duration,
	codeLength int,
) LinkOnboardingFlow {
	if linkTTL <= 0 {
		linkTTL = utils.DefaultLinkTTL
	}
	if codeLength <= 0 {
		codeLength = utils.DefaultLinkCodeLength
	}
	return &LinkOnboardingFlowImpl{
		customerLinkRepo:  customerLinkRepo,
		associateLinkRepo: associateLinkRepo,
		userRepo:          userRepo,
		associateRepo:     associateRepo,
		resolver:          resolver,
		writer:            newLeadWriter(customerRepo, projectRepo, companyRepo, userRepo, associateRepo),
		txManager:         txManager,
		notifier:          notifier,
		logger:            logger,
		linkTTL:           linkTTL,
		codeLength:        codeLength,
	}
}

func (lf *LinkOnboardingFlowImpl) GenerateCustomerLink(ctx context.Context, actor *Principal) (*dto.GenerateLinkResponse, error) {
	if !actor.IsChannelPartner() {
		return nil, NewBusinessError("ACCESS_DENIED", "Only channel partners can generate customer links", ErrRoleNotAllowed)
	}

	expiresAt := utils.UTCNowAdd(lf.linkTTL)
	var link *models.CustomerLink
	err := lf.withFreshCode(func(code string) error {
		link = &models.CustomerLink{
			Code:          code,
			CreatedByID:   actor.ID,
			CreatedByName: actor.Name,
			CreatedByRole: actor.Role,
			ExpiresAt:     expiresAt,
		}
		return lf.customerLinkRepo.Save(ctx, link)
	})
	if err != nil {
		return nil, NewBusinessError("LINK_CREATE_FAILED", "Failed to generate customer link", err)
	}

	lf.logger.WithFields(logrus.Fields{"created_by": actor.ID.String(), "expires_at": link.ExpiresAt}).Info("customer link generated")
	return &dto.GenerateLinkResponse{
		Code:      link.Code,
		Path:      "/customer-links/" + link.Code,
		ExpiresAt: formatTime(link.ExpiresAt),
	}, nil
}

func (lf *LinkOnboardingFlowImpl) RedeemCustomerLink(ctx context.Context, code string, req *dto.RedeemCustomerLinkRequest) (*dto.LeadDTO, error) {
	code = strings.TrimSpace(code)
	if code == "" || req == nil {
		return nil, NewBusinessError("INVALID_CUSTOMER_LINK", "Invalid or expired customer link", ErrCustomerLinkInvalid)
	}

	var (
		lead    *models.Customer
		creator *Principal
	)
	err := lf.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		link, err := lf.customerLinkRepo.ClaimByCode(txCtx, code, utils.UTCNow())
		if err != nil {
			return NewBusinessError("LINK_CLAIM_FAILED", "Failed to redeem customer link", err)
		}
		if link == nil {
			return NewBusinessError("INVALID_CUSTOMER_LINK", "Invalid or expired customer link", ErrCustomerLinkInvalid)
		}

		creator, err = lf.linkCreator(txCtx, link.CreatedByID)
		if err != nil {
			return err
		}

		lead, err = lf.writer.create(txCtx, creator, creator.CompanyID, leadFields{
			FullName:            req.FullName,
			PhoneNumber:         req.PhoneNumber,
			Email:               req.Email,
			PersonalPhoneNumber: req.PersonalPhoneNumber,
			ProjectID:           req.ProjectID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	leadsCreatedTotal.WithLabelValues(creator.Role, leadSourceLink).Inc()
	notifyLeadCreated(ctx, lf.notifier, lead, creator)
	lf.logger.WithFields(logrus.Fields{"lead_id": lead.ID, "created_by": creator.ID.String()}).Info("customer link redeemed")

	out := ToLeadDTO(*lead)
	return &out, nil
}

func (lf *LinkOnboardingFlowImpl) GenerateAssociateLink(ctx context.Context, actor *Principal, req *dto.GenerateAssociateLinkRequest) (*dto.GenerateLinkResponse, error) {
	if !(actor.IsAgent() || actor.IsChannelPartner()) || !actor.HasCompany() {
		return nil, NewBusinessError("ACCESS_DENIED", "Only agents or channel partners can generate associate links", ErrRoleNotAllowed)
	}
	purpose := models.LinkPurposeAssociateRegistration
	if req != nil && req.Purpose != "" {
		purpose = req.Purpose
	}
	if purpose != models.LinkPurposeAssociateRegistration && purpose != models.LinkPurposeCustomerRegistration {
		return nil, NewBusinessError("INVALID_LINK_PURPOSE", "Invalid link purpose", ErrInvalidLinkPurpose)
	}

	expiresAt := utils.UTCNowAdd(lf.linkTTL)
	var link *models.AssociateLink
	err := lf.withFreshCode(func(code string) error {
		link = &models.AssociateLink{
			Code:        code,
			CreatedByID: actor.ID,
			Purpose:     purpose,
			ExpiresAt:   expiresAt,
		}
		return lf.associateLinkRepo.Save(ctx, link)
	})
	if err != nil {
		return nil, NewBusinessError("LINK_CREATE_FAILED", "Failed to generate associate link", err)
	}

	lf.logger.WithFields(logrus.Fields{"created_by": actor.ID.String(), "purpose": purpose}).Info("associate link generated")
	return &dto.GenerateLinkResponse{
		Code:      link.Code,
		Path:      "/associate-links/" + link.Code,
		Purpose:   link.Purpose,
		ExpiresAt: formatTime(link.ExpiresAt),
	}, nil
}

func (lf *LinkOnboardingFlowImpl) RedeemAssociateLink(ctx context.Context, code string, req *dto.RedeemAssociateLinkRequest) (*dto.RedeemAssociateLinkResponse, error) {
	code = strings.TrimSpace(code)
	if code == "" || req == nil {
		return nil, NewBusinessError("INVALID_ASSOCIATE_LINK", "Invalid or expired associate link", ErrAssociateLinkInvalid)
	}

	var (
		out       = &dto.RedeemAssociateLinkResponse{}
		creator   *Principal
		lead      *models.Customer
		associate *models.AssociateUser
	)
	err := lf.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		link, err := lf.associateLinkRepo.ClaimByCode(txCtx, code, utils.UTCNow())
		if err != nil {
			return NewBusinessError("LINK_CLAIM_FAILED", "Failed to redeem associate link", err)
		}
		if link == nil {
			return NewBusinessError("INVALID_ASSOCIATE_LINK", "Invalid or expired associate link", ErrAssociateLinkInvalid)
		}
		out.Purpose = link.Purpose

		creator, err = lf.linkCreator(txCtx, link.CreatedByID)
		if err != nil {
			return err
		}

		switch link.Purpose {
		case models.LinkPurposeAssociateRegistration:
			associate, err = lf.registerAssociate(txCtx, creator, req)
			return err
		case models.LinkPurposeCustomerRegistration:
			lead, err = lf.writer.create(txCtx, creator, creator.CompanyID, leadFields{
				FullName:            req.FullName,
				PhoneNumber:         req.PhoneNumber,
				Email:               req.Email,
				PersonalPhoneNumber: req.PersonalPhoneNumber,
				ProjectID:           req.ProjectID,
			})
			return err
		default:
			return NewBusinessError("INVALID_LINK_PURPOSE", "Invalid link purpose", ErrInvalidLinkPurpose)
		}
	})
	if err != nil {
		return nil, err
	}

	if associate != nil {
		p := ToAssociateDTO(*associate)
		out.Associate = &p
		lf.logger.WithFields(logrus.Fields{"associate": associate.UUID.String(), "created_by": creator.ID.String()}).Info("associate link redeemed")
	}
	if lead != nil {
		leadsCreatedTotal.WithLabelValues(creator.Role, leadSourceLink).Inc()
		notifyLeadCreated(ctx, lf.notifier, lead, creator)
		l := ToLeadDTO(*lead)
		out.Lead = &l
		lf.logger.WithFields(logrus.Fields{"lead_id": lead.ID, "created_by": creator.ID.String()}).Info("associate link redeemed")
	}
	return out, nil
}

// CleanupExpiredLinks purges expired links of both kinds
func (lf *LinkOnboardingFlowImpl) CleanupExpiredLinks(ctx context.Context) (int64, error) {
	now := utils.UTCNow()
	customerLinks, err := lf.customerLinkRepo.DeleteExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	associateLinks, err := lf.associateLinkRepo.DeleteExpired(ctx, now)
	if err != nil {
		return customerLinks, err
	}
	return customerLinks + associateLinks, nil
}

func (lf *LinkOnboardingFlowImpl) linkCreator(ctx context.Context, creatorID uuid.UUID) (*Principal, error) {
	creator, err := lf.resolver.Resolve(ctx, creatorID)
	if err != nil {
		if IsNotFound(err) {
			return nil, NewBusinessError("LINK_CREATOR_NOT_FOUND", "Link creator no longer exists", ErrLinkCreatorMissing)
		}
		return nil, NewBusinessError("LINK_CREATOR_LOOKUP_FAILED", "Failed to lookup link creator", err)
	}
	if !creator.HasCompany() {
		return nil, NewBusinessError("LINK_CREATOR_NOT_FOUND", "Link creator has no company", ErrLinkCreatorMissing)
	}
	return creator, nil
}

func (lf *LinkOnboardingFlowImpl) registerAssociate(ctx context.Context, creator *Principal, req *dto.RedeemAssociateLinkRequest) (*models.AssociateUser, error) {
	email := utils.NormalizeEmail(req.Email)
	phone := strings.TrimSpace(req.PhoneNumber)
	if len(strings.TrimSpace(req.FullName)) < 2 || email == "" {
		return nil, NewBusinessError("ASSOCIATE_VALIDATION_FAILED", "Full name and email are required", ErrValidation)
	}
	if !utils.IsValidUserPhone(phone) {
		return nil, NewBusinessError("ASSOCIATE_VALIDATION_FAILED", "Phone number must be 10 digits", ErrValidation)
	}
	if req.Role != models.RoleAgent && req.Role != models.RoleChannelPartner {
		return nil, NewBusinessError("ASSOCIATE_VALIDATION_FAILED", "Role must be agent or channel_partner", ErrValidation)
	}
	if len(req.Password) < 6 {
		return nil, NewBusinessError("ASSOCIATE_VALIDATION_FAILED", "Password must be at least 6 characters", ErrValidation)
	}

	if err := ensureIdentityAvailable(ctx, lf.userRepo, lf.associateRepo, email, phone); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, NewBusinessError("PASSWORD_HASH_FAILED", "Failed to hash password", err)
	}

	associate := &models.AssociateUser{
		FullName:      strings.TrimSpace(req.FullName),
		Email:         email,
		PhoneNumber:   phone,
		Location:      req.Location,
		CompanyID:     creator.CompanyID,
		CompanyName:   creator.CompanyName,
		Role:          req.Role,
		Status:        models.UserStatusActive,
		PasswordHash:  string(hash),
		CreatedByID:   creator.ID,
		CreatedByName: creator.Name,
	}
	if err := lf.associateRepo.Save(ctx, associate); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, NewBusinessError("EMAIL_OR_PHONE_IN_USE", "Email or phone number already registered", ErrEmailOrPhoneInUse)
		}
		return nil, NewBusinessError("ASSOCIATE_CREATE_FAILED", "Failed to create associate", err)
	}
	return associate, nil
}

// withFreshCode retries save on the rare code collision
func (lf *LinkOnboardingFlowImpl) withFreshCode(save func(code string) error) error {
	var err error
	for range linkCodeAttempts {
		var code string
		code, err = utils.RandomCode(lf.codeLength)
		if err != nil {
			return err
		}
		err = save(code)
		if err == nil || !repository.IsUniqueViolation(err) {
			return err
		}
	}
	return err
}

// ensureIdentityAvailable checks email and phone against both principal tables
func ensureIdentityAvailable(ctx context.Context, userRepo repository.UserRepository, associateRepo repository.AssociateUserRepository, email, phone string) error {
	user, err := userRepo.ByEmailOrPhone(ctx, email, phone)
	if err != nil {
		return NewBusinessError("USER_LOOKUP_FAILED", "Failed to check existing users", err)
	}
	if user != nil {
		return NewBusinessError("EMAIL_OR_PHONE_IN_USE", "Email or phone number already registered", ErrEmailOrPhoneInUse)
	}
	associate, err := associateRepo.ByEmailOrPhone(ctx, email, phone)
	if err != nil {
		return NewBusinessError("USER_LOOKUP_FAILED", "Failed to check existing users", err)
	}
	if associate != nil {
		return NewBusinessError("EMAIL_OR_PHONE_IN_USE", "Email or phone number already registered", ErrEmailOrPhoneInUse)
	}
	return nil
}
