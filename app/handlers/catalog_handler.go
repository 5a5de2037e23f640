package handlers

import (
	"github.com/amirphl/leadflow/app/dto"
	businessflow "github.com/amirphl/leadflow/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// CatalogHandlerInterface defines company, project and master status endpoints
type CatalogHandlerInterface interface {
	CreateCompany(c fiber.Ctx) error
	ListCompanies(c fiber.Ctx) error
	GetCompany(c fiber.Ctx) error
	DeleteCompany(c fiber.Ctx) error
	CreateProject(c fiber.Ctx) error
	ListProjects(c fiber.Ctx) error
	GetProject(c fiber.Ctx) error
	ListStatuses(c fiber.Ctx) error
	CreateStatus(c fiber.Ctx) error
	RenameStatus(c fiber.Ctx) error
	DeleteStatus(c fiber.Ctx) error
}

// CatalogHandler serves the reference data every lead points at
type CatalogHandler struct {
	baseHandler
	companyFlow businessflow.CompanyFlow
	projectFlow businessflow.ProjectFlow
	statusFlow  businessflow.MasterStatusFlow
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(
	companyFlow businessflow.CompanyFlow,
	projectFlow businessflow.ProjectFlow,
	statusFlow businessflow.MasterStatusFlow,
	v *validator.Validate,
	logger *logrus.Logger,
) *CatalogHandler {
	return &CatalogHandler{
		baseHandler: newBaseHandler(v, logger),
		companyFlow: companyFlow,
		projectFlow: projectFlow,
		statusFlow:  statusFlow,
	}
}

func (h *CatalogHandler) CreateCompany(c fiber.Ctx) error {
	actor, resp := h.principal(c)
	if actor == nil {
		return resp
	}
	var req dto.CreateCompanyRequest
	if ok, resp := h.bindJSON(c, &req); !ok {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/companies")
	defer cancel()

	out, err := h.companyFlow.CreateCompany(ctx, actor, &req)
	if err != nil {
		return h.HandleBusinessError(c, err, "Failed to create company")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Company created successfully", out)
}

// ListCompanies is public so the registration form can offer companies
func (h *CatalogHandler) ListCompanies(c fiber.Ctx) error {
	var req dto.ListCompaniesRequest
	if ok, resp := h.bindQuery(c, &req); !ok {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/companies")
	defer cancel()

	out, err := h.companyFlow.ListCompanies(ctx, &req)
	if err != nil {
		return h.HandleBusinessError(c, err, "Failed to list companies")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Companies retrieved successfully", out)
}

func (h *CatalogHandler) GetCompany(c fiber.Ctx) error {
	id, resp := h.uintParam(c, "id", "Invalid company ID")
	if id == 0 {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/companies/:id")
	defer cancel()

	out, err := h.companyFlow.GetCompany(ctx, id)
	if err != nil {
		return h.HandleBusinessError(c, err, "Failed to load company")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Company retrieved successfully", out)
}

func (h *CatalogHandler) DeleteCompany(c fiber.Ctx) error {
	actor, resp := h.principal(c)
	if actor == nil {
		return resp
	}
	id, resp := h.uintParam(c, "id", "Invalid company ID")
	if id == 0 {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/companies/:id")
	defer cancel()

	if err := h.companyFlow.DeleteCompany(ctx, actor, id); err != nil {
		return h.HandleBusinessError(c, err, "Failed to delete company")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Company deleted successfully", nil)
}

func (h *CatalogHandler) CreateProject(c fiber.Ctx) error {
	actor, resp := h.principal(c)
	if actor == nil {
		return resp
	}
	var req dto.CreateProjectRequest
	if ok, resp := h.bindJSON(c, &req); !ok {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/projects")
	defer cancel()

	out, err := h.projectFlow.CreateProject(ctx, actor, &req)
	if err != nil {
		return h.HandleBusinessError(c, err, "Failed to create project")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Project created successfully", out)
}

func (h *CatalogHandler) ListProjects(c fiber.Ctx) error {
	var req dto.ListProjectsRequest
	if ok, resp := h.bindQuery(c, &req); !ok {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/projects")
	defer cancel()

	out, err := h.projectFlow.ListProjects(ctx, &req)
	if err != nil {
		return h.HandleBusinessError(c, err, "Failed to list projects")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Projects retrieved successfully", out)
}

func (h *CatalogHandler) GetProject(c fiber.Ctx) error {
	id, resp := h.uintParam(c, "id", "Invalid project ID")
	if id == 0 {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/projects/:id")
	defer cancel()

	out, err := h.projectFlow.GetProject(ctx, id)
	if err != nil {
		return h.HandleBusinessError(c, err, "Failed to load project")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Project retrieved successfully", out)
}

func (h *CatalogHandler) ListStatuses(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/statuses")
	defer cancel()

	out, err := h.statusFlow.ListStatuses(ctx)
	if err != nil {
		return h.HandleBusinessError(c, err, "Failed to list statuses")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Statuses retrieved successfully", out)
}

func (h *CatalogHandler) CreateStatus(c fiber.Ctx) error {
	actor, resp := h.principal(c)
	if actor == nil {
		return resp
	}
	var req dto.MasterStatusRequest
	if ok, resp := h.bindJSON(c, &req); !ok {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/statuses")
	defer cancel()

	out, err := h.statusFlow.CreateStatus(ctx, actor, &req)
	if err != nil {
		return h.HandleBusinessError(c, err, "Failed to create status")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Status created successfully", out)
}

func (h *CatalogHandler) RenameStatus(c fiber.Ctx) error {
	actor, resp := h.principal(c)
	if actor == nil {
		return resp
	}
	id, resp := h.uintParam(c, "id", "Invalid Status ID")
	if id == 0 {
		return resp
	}
	var req dto.MasterStatusRequest
	if ok, resp := h.bindJSON(c, &req); !ok {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/statuses/:id")
	defer cancel()

	out, err := h.statusFlow.RenameStatus(ctx, actor, id, &req)
	if err != nil {
		return h.HandleBusinessError(c, err, "Failed to rename status")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Status updated successfully", out)
}

func (h *CatalogHandler) DeleteStatus(c fiber.Ctx) error {
	actor, resp := h.principal(c)
	if actor == nil {
		return resp
	}
	id, resp := h.uintParam(c, "id", "Invalid Status ID")
	if id == 0 {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/statuses/:id")
	defer cancel()

	if err := h.statusFlow.DeleteStatus(ctx, actor, id); err != nil {
		return h.HandleBusinessError(c, err, "Failed to delete status")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Status deleted successfully", nil)
}
