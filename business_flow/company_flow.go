package businessflow

import (
	"context"
	"strings"

	"github.com/amirphl/leadflow/app/dto"
	"github.com/amirphl/leadflow/models"
	"github.com/amirphl/leadflow/repository"
	"github.com/amirphl/leadflow/utils"
	"github.com/sirupsen/logrus"
)

// CompanyFlow manages tenant companies
type CompanyFlow interface {
	CreateCompany(ctx context.Context, actor *Principal, req *dto.CreateCompanyRequest) (*dto.CompanyDTO, error)
	ListCompanies(ctx context.Context, req *dto.ListCompaniesRequest) (*dto.ListCompaniesResponse, error)
	GetCompany(ctx context.Context, id uint) (*dto.CompanyDTO, error)
	DeleteCompany(ctx context.Context, actor *Principal, id uint) error
}

// CompanyFlowImpl implements CompanyFlow
type CompanyFlowImpl struct {
	companyRepo  repository.CompanyRepository
	sequenceRepo repository.SequenceRepository
	txManager    repository.TxManager
	auditLogger  *logrus.Logger
}

func NewCompanyFlow(
	companyRepo repository.CompanyRepository,
	sequenceRepo repository.SequenceRepository,
	txManager repository.TxManager,
	auditLogger *logrus.Logger,
) CompanyFlow {
	return &CompanyFlowImpl{
		companyRepo:  companyRepo,
		sequenceRepo: sequenceRepo,
		txManager:    txManager,
		auditLogger:  auditLogger,
	}
}

// CreateCompany creates a company with the next "C-<n>" code. Names are unique among
// live companies; a deleted company's name can be reused.
func (cf *CompanyFlowImpl) CreateCompany(ctx context.Context, actor *Principal, req *dto.CreateCompanyRequest) (*dto.CompanyDTO, error) {
	if !actor.IsAdmin() {
		return nil, NewBusinessError("ROLE_NOT_ALLOWED", "Only admin can create companies", ErrRoleNotAllowed)
	}
	name := ""
	if req != nil {
		name = strings.TrimSpace(req.Name)
	}
	if name == "" {
		return nil, NewBusinessError("COMPANY_VALIDATION_FAILED", "Company name is required", ErrValidation)
	}

	var company *models.Company
	err := cf.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := cf.companyRepo.LiveByName(txCtx, name)
		if err != nil {
			return NewBusinessError("COMPANY_LOOKUP_FAILED", "Failed to lookup company", err)
		}
		if existing != nil {
			return NewBusinessError("COMPANY_ALREADY_EXISTS", "Company with this name already exists", ErrCompanyAlreadyExists)
		}

		n, err := cf.sequenceRepo.Next(txCtx, models.SequenceCompanyCode, utils.FirstSequentialCode)
		if err != nil {
			return NewBusinessError("COMPANY_CODE_FAILED", "Failed to allocate company code", err)
		}
		company = &models.Company{
			Name:        name,
			CompanyCode: utils.SequentialCode(utils.CompanyCodePrefix, n),
		}
		if err := cf.companyRepo.Save(txCtx, company); err != nil {
			if repository.IsUniqueViolation(err) {
				return NewBusinessError("COMPANY_ALREADY_EXISTS", "Company with this name already exists", ErrCompanyAlreadyExists)
			}
			return NewBusinessError("COMPANY_CREATE_FAILED", "Failed to create company", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	cf.auditLogger.WithFields(logrus.Fields{"admin": actor.ID.String(), "company": company.CompanyCode}).Info("company created")
	out := ToCompanyDTO(*company)
	return &out, nil
}

func (cf *CompanyFlowImpl) ListCompanies(ctx context.Context, req *dto.ListCompaniesRequest) (*dto.ListCompaniesResponse, error) {
	if req == nil {
		req = &dto.ListCompaniesRequest{}
	}
	deleted := false
	filter := models.CompanyFilter{IsDeleted: &deleted}
	if q := strings.TrimSpace(req.Query); q != "" {
		filter.NameLike = &q
	}

	page, perPage, offset := req.PageRequest.Normalize(utils.CompanyPerPage)
	total, err := cf.companyRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("COMPANIES_COUNT_FAILED", "Failed to count companies", err)
	}
	rows, err := cf.companyRepo.ByFilter(ctx, filter, "created_at DESC", perPage, offset)
	if err != nil {
		return nil, NewBusinessError("COMPANIES_LIST_FAILED", "Failed to list companies", err)
	}

	results := make([]dto.CompanyDTO, 0, len(rows))
	for _, c := range rows {
		results = append(results, ToCompanyDTO(*c))
	}
	return &dto.ListCompaniesResponse{
		Results:  results,
		PageInfo: dto.NewPageInfo(total, page, perPage, len(results)),
	}, nil
}

func (cf *CompanyFlowImpl) GetCompany(ctx context.Context, id uint) (*dto.CompanyDTO, error) {
	company, err := cf.companyRepo.LiveByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("COMPANY_LOOKUP_FAILED", "Failed to lookup company", err)
	}
	if company == nil {
		return nil, NewBusinessError("COMPANY_NOT_FOUND", "Company not found", ErrCompanyNotFound)
	}
	out := ToCompanyDTO(*company)
	return &out, nil
}

// DeleteCompany soft deletes a company; its users and leads stay in place
func (cf *CompanyFlowImpl) DeleteCompany(ctx context.Context, actor *Principal, id uint) error {
	if !actor.IsAdmin() {
		return NewBusinessError("ROLE_NOT_ALLOWED", "Only admin can delete companies", ErrRoleNotAllowed)
	}
	ok, err := cf.companyRepo.SoftDelete(ctx, id, utils.UTCNow())
	if err != nil {
		return NewBusinessError("COMPANY_DELETE_FAILED", "Failed to delete company", err)
	}
	if !ok {
		return NewBusinessError("COMPANY_NOT_FOUND", "Company not found", ErrCompanyNotFound)
	}
	cf.auditLogger.WithFields(logrus.Fields{"admin": actor.ID.String(), "company_id": id}).Info("company deleted")
	return nil
}
