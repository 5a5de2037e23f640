package handlers

import (
	"github.com/amirphl/leadflow/app/dto"
	businessflow "github.com/amirphl/leadflow/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// UserHandlerInterface defines user administration and associate endpoints
type UserHandlerInterface interface {
	UpdateUserStatus(c fiber.Ctx) error
	ListAgentsByCompany(c fiber.Ctx) error
	ListUsers(c fiber.Ctx) error
	CreateAssociate(c fiber.Ctx) error
	ListAssociates(c fiber.Ctx) error
}

// UserHandler serves user administration endpoints
type UserHandler struct {
	baseHandler
	userAdminFlow businessflow.UserAdminFlow
}

// NewUserHandler creates a new user handler
func NewUserHandler(userAdminFlow businessflow.UserAdminFlow, v *validator.Validate, logger *logrus.Logger) *UserHandler {
	return &UserHandler{
		baseHandler:   newBaseHandler(v, logger),
		userAdminFlow: userAdminFlow,
	}
}

// UpdateUserStatus activates or deactivates a user; deactivation forces a logout
func (h *UserHandler) UpdateUserStatus(c fiber.Ctx) error {
	actor, resp := h.principal(c)
	if actor == nil {
		return resp
	}
	id, resp := h.uuidParam(c, "id", "Invalid user ID")
	if id == uuid.Nil {
		return resp
	}
	var req dto.UpdateUserStatusRequest
	if ok, resp := h.bindJSON(c, &req); !ok {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/users/:id/status")
	defer cancel()

	out, err := h.userAdminFlow.UpdateUserStatus(ctx, actor, id, &req)
	if err != nil {
		return h.HandleBusinessError(c, err, "Failed to update user status")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "User status updated successfully", out)
}

func (h *UserHandler) ListAgentsByCompany(c fiber.Ctx) error {
	actor, resp := h.principal(c)
	if actor == nil {
		return resp
	}
	companyID, resp := h.uintParam(c, "id", "Invalid company ID")
	if companyID == 0 {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/companies/:id/agents")
	defer cancel()

	out, err := h.userAdminFlow.ListAgentsByCompany(ctx, actor, companyID)
	if err != nil {
		return h.HandleBusinessError(c, err, "Failed to list agents")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Agents retrieved successfully", out)
}

func (h *UserHandler) ListUsers(c fiber.Ctx) error {
	actor, resp := h.principal(c)
	if actor == nil {
		return resp
	}
	var req dto.ListUsersRequest
	if ok, resp := h.bindQuery(c, &req); !ok {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/users")
	defer cancel()

	out, err := h.userAdminFlow.ListUsers(ctx, actor, &req)
	if err != nil {
		return h.HandleBusinessError(c, err, "Failed to list users")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Users retrieved successfully", out)
}

func (h *UserHandler) CreateAssociate(c fiber.Ctx) error {
	actor, resp := h.principal(c)
	if actor == nil {
		return resp
	}
	var req dto.CreateAssociateRequest
	if ok, resp := h.bindJSON(c, &req); !ok {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/associates")
	defer cancel()

	out, err := h.userAdminFlow.CreateAssociate(ctx, actor, &req)
	if err != nil {
		return h.HandleBusinessError(c, err, "Failed to create associate")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Associate created successfully", out)
}

func (h *UserHandler) ListAssociates(c fiber.Ctx) error {
	actor, resp := h.principal(c)
	if actor == nil {
		return resp
	}
	var req dto.PageRequest
	if ok, resp := h.bindQuery(c, &req); !ok {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/associates")
	defer cancel()

	out, err := h.userAdminFlow.ListAssociates(ctx, actor, &req)
	if err != nil {
		return h.HandleBusinessError(c, err, "Failed to list associates")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Associates retrieved successfully", out)
}
