package businessflow

import (
	"context"
	"strings"

	"github.com/amirphl/leadflow/app/dto"
	"github.com/amirphl/leadflow/models"
	"github.com/amirphl/leadflow/repository"
	"github.com/amirphl/leadflow/utils"
	"github.com/lib/pq"
)

// ProjectFlow manages the projects leads are raised against
type ProjectFlow interface {
	CreateProject(ctx context.Context, actor *Principal, req *dto.CreateProjectRequest) (*dto.ProjectDTO, error)
	ListProjects(ctx context.Context, req *dto.ListProjectsRequest) (*dto.ListProjectsResponse, error)
	GetProject(ctx context.Context, id uint) (*dto.ProjectDTO, error)
}

// ProjectFlowImpl implements ProjectFlow
type ProjectFlowImpl struct {
	projectRepo  repository.ProjectRepository
	sequenceRepo repository.SequenceRepository
	txManager    repository.TxManager
}

func NewProjectFlow(projectRepo repository.ProjectRepository, sequenceRepo repository.SequenceRepository, txManager repository.TxManager) ProjectFlow {
	return &ProjectFlowImpl{
		projectRepo:  projectRepo,
		sequenceRepo: sequenceRepo,
		txManager:    txManager,
	}
}

func (pf *ProjectFlowImpl) CreateProject(ctx context.Context, actor *Principal, req *dto.CreateProjectRequest) (*dto.ProjectDTO, error) {
	if !actor.IsAdmin() {
		return nil, NewBusinessError("ROLE_NOT_ALLOWED", "Only admin can create projects", ErrRoleNotAllowed)
	}
	if req == nil || strings.TrimSpace(req.Title) == "" {
		return nil, NewBusinessError("PROJECT_VALIDATION_FAILED", "Project title is required", ErrValidation)
	}
	if req.MinPrice < 0 || req.MaxPrice < req.MinPrice {
		return nil, NewBusinessError("PROJECT_VALIDATION_FAILED", "Invalid price range", ErrValidation)
	}

	var project *models.Project
	err := pf.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		n, err := pf.sequenceRepo.Next(txCtx, models.SequenceProjectCode, utils.FirstSequentialCode)
		if err != nil {
			return NewBusinessError("PROJECT_CODE_FAILED", "Failed to allocate project code", err)
		}
		project = &models.Project{
			Title:         strings.TrimSpace(req.Title),
			Description:   req.Description,
			Location:      req.Location,
			MinPrice:      req.MinPrice,
			MaxPrice:      req.MaxPrice,
			Images:        pq.StringArray(req.Images),
			Brochures:     pq.StringArray(req.Brochures),
			ProjectCode:   utils.SequentialCode(utils.ProjectCodePrefix, n),
			CreatedByID:   actor.ID,
			CreatedByRole: actor.Role,
		}
		if project.Images == nil {
			project.Images = pq.StringArray{}
		}
		if project.Brochures == nil {
			project.Brochures = pq.StringArray{}
		}
		if err := pf.projectRepo.Save(txCtx, project); err != nil {
			return NewBusinessError("PROJECT_CREATE_FAILED", "Failed to create project", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := ToProjectDTO(*project)
	return &out, nil
}

func (pf *ProjectFlowImpl) ListProjects(ctx context.Context, req *dto.ListProjectsRequest) (*dto.ListProjectsResponse, error) {
	if req == nil {
		req = &dto.ListProjectsRequest{}
	}
	filter := models.ProjectFilter{}
	if q := strings.TrimSpace(req.Query); q != "" {
		filter.TitleLike = &q
	}

	page, perPage, offset := req.PageRequest.Normalize(utils.DefaultPerPage)
	total, err := pf.projectRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("PROJECTS_COUNT_FAILED", "Failed to count projects", err)
	}
	rows, err := pf.projectRepo.ByFilter(ctx, filter, "created_at DESC", perPage, offset)
	if err != nil {
		return nil, NewBusinessError("PROJECTS_LIST_FAILED", "Failed to list projects", err)
	}

	results := make([]dto.ProjectDTO, 0, len(rows))
	for _, p := range rows {
		results = append(results, ToProjectDTO(*p))
	}
	return &dto.ListProjectsResponse{
		Results:  results,
		PageInfo: dto.NewPageInfo(total, page, perPage, len(results)),
	}, nil
}

func (pf *ProjectFlowImpl) GetProject(ctx context.Context, id uint) (*dto.ProjectDTO, error) {
	project, err := pf.projectRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("PROJECT_LOOKUP_FAILED", "Failed to lookup project", err)
	}
	if project == nil {
		return nil, NewBusinessError("PROJECT_NOT_FOUND", "Project not found", ErrProjectNotFound)
	}
	out := ToProjectDTO(*project)
	return &out, nil
}
