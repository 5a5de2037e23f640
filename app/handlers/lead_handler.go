package handlers

import (
	"fmt"

	"github.com/amirphl/leadflow/app/dto"
	businessflow "github.com/amirphl/leadflow/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// LeadHandlerInterface defines the lead lifecycle endpoints
type LeadHandlerInterface interface {
	CreateLead(c fiber.Ctx) error
	ListLeads(c fiber.Ctx) error
	GetLead(c fiber.Ctx) error
	ExportLeads(c fiber.Ctx) error
	BroadcastLead(c fiber.Ctx) error
	AcceptLead(c fiber.Ctx) error
	DeclineLead(c fiber.Ctx) error
	UpdateLeadStatus(c fiber.Ctx) error
	LeadStatusHistory(c fiber.Ctx) error
	LeadStats(c fiber.Ctx) error
	AddFollowUp(c fiber.Ctx) error
	ListFollowUps(c fiber.Ctx) error
	AddNote(c fiber.Ctx) error
	ListNotes(c fiber.Ctx) error
}

// LeadHandler serves lead creation, assignment, status and activity endpoints
type LeadHandler struct {
	baseHandler
	leadFlow       businessflow.LeadFlow
	assignmentFlow businessflow.LeadAssignmentFlow
	statusFlow     businessflow.LeadStatusFlow
	activityFlow   businessflow.ActivityFlow
}

// NewLeadHandler creates a new lead handler
func NewLeadHandler(
	leadFlow businessflow.LeadFlow,
	assignmentFlow businessflow.LeadAssignmentFlow,
	statusFlow businessflow.LeadStatusFlow,
	activityFlow businessflow.ActivityFlow,
	v *validator.Validate,
	logger *logrus.Logger,
) *LeadHandler {
	return &LeadHandler{
		baseHandler:    newBaseHandler(v, logger),
		leadFlow:       leadFlow,
		assignmentFlow: assignmentFlow,
		statusFlow:     statusFlow,
		activityFlow:   activityFlow,
	}
}

const invalidLeadID = "Invalid customer ID"

func (h *LeadHandler) CreateLead(c fiber.Ctx) error {
	actor, resp := h.principal(c)
	if actor == nil {
		return resp
	}
	var req dto.CreateLeadRequest
	if ok, resp := h.bindJSON(c, &req); !ok {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/customers")
	defer cancel()

	lead, err := h.leadFlow.CreateLead(ctx, actor, &req)
	if err != nil {
		return h.HandleBusinessError(c, err, "Failed to create customer")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Customer created successfully", lead)
}

func (h *LeadHandler) ListLeads(c fiber.Ctx) error {
	actor, resp := h.principal(c)
	if actor == nil {
		return resp
	}
	var req dto.ListLeadsRequest
	if ok, resp := h.bindQuery(c, &req); !ok {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/customers")
	defer cancel()

	out, err := h.leadFlow.ListLeads(ctx, actor, &req)
	if err != nil {
		return h.HandleBusinessError(c, err, "Failed to list customers")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Customers retrieved successfully", out)
}

func (h *LeadHandler) GetLead(c fiber.Ctx) error {
	actor, resp := h.principal(c)
	if actor == nil {
		return resp
	}
	id, resp := h.uintParam(c, "id", invalidLeadID)
	if id == 0 {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/customers/:id")
	defer cancel()

	lead, err := h.leadFlow.GetLead(ctx, actor, id)
	if err != nil {
		return h.HandleBusinessError(c, err, "Failed to load customer")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Customer retrieved successfully", lead)
}

// ExportLeads streams an xlsx workbook with one sheet per company
func (h *LeadHandler) ExportLeads(c fiber.Ctx) error {
	actor, resp := h.principal(c)
	if actor == nil {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/customers/export")
	defer cancel()

	filename, content, err := h.leadFlow.ExportLeads(ctx, actor)
	if err != nil {
		return h.HandleBusinessError(c, err, "Failed to export customers")
	}
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Status(fiber.StatusOK).Send(content)
}

func (h *LeadHandler) BroadcastLead(c fiber.Ctx) error {
	actor, resp := h.principal(c)
	if actor == nil {
		return resp
	}
	id, resp := h.uintParam(c, "id", invalidLeadID)
	if id == 0 {
		return resp
	}
	var req dto.BroadcastLeadRequest
	if ok, resp := h.bindJSON(c, &req); !ok {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/customers/:id/broadcast")
	defer cancel()

	out, err := h.assignmentFlow.BroadcastLead(ctx, actor, id, &req)
	if err != nil {
		return h.HandleBusinessError(c, err, "Failed to broadcast customer")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Customer broadcasted successfully", out)
}

// AcceptLead answers 200 for both winners and losers; Accepted tells them apart
func (h *LeadHandler) AcceptLead(c fiber.Ctx) error {
	actor, resp := h.principal(c)
	if actor == nil {
		return resp
	}
	id, resp := h.uintParam(c, "id", invalidLeadID)
	if id == 0 {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/customers/:id/accept")
	defer cancel()

	out, err := h.assignmentFlow.AcceptLead(ctx, actor, id)
	if err != nil {
		return h.HandleBusinessError(c, err, "Failed to accept customer")
	}
	return h.SuccessResponse(c, fiber.StatusOK, out.Message, out)
}

func (h *LeadHandler) DeclineLead(c fiber.Ctx) error {
	actor, resp := h.principal(c)
	if actor == nil {
		return resp
	}
	id, resp := h.uintParam(c, "id", invalidLeadID)
	if id == 0 {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/customers/:id/decline")
	defer cancel()

	out, err := h.assignmentFlow.DeclineLead(ctx, actor, id)
	if err != nil {
		return h.HandleBusinessError(c, err, "Failed to decline customer")
	}
	return h.SuccessResponse(c, fiber.StatusOK, out.Message, out)
}

func (h *LeadHandler) UpdateLeadStatus(c fiber.Ctx) error {
	actor, resp := h.principal(c)
	if actor == nil {
		return resp
	}
	id, resp := h.uintParam(c, "id", invalidLeadID)
	if id == 0 {
		return resp
	}
	var req dto.UpdateLeadStatusRequest
	if ok, resp := h.bindJSON(c, &req); !ok {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/customers/:id/status")
	defer cancel()

	lead, err := h.statusFlow.UpdateLeadStatus(ctx, actor, id, &req)
	if err != nil {
		return h.HandleBusinessError(c, err, "Failed to update customer status")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Customer status updated successfully", lead)
}

func (h *LeadHandler) LeadStatusHistory(c fiber.Ctx) error {
	actor, resp := h.principal(c)
	if actor == nil {
		return resp
	}
	id, resp := h.uintParam(c, "id", invalidLeadID)
	if id == 0 {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/customers/:id/status-history")
	defer cancel()

	out, err := h.statusFlow.LeadStatusHistory(ctx, actor, id)
	if err != nil {
		return h.HandleBusinessError(c, err, "Failed to load status history")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Status history retrieved successfully", out)
}

func (h *LeadHandler) LeadStats(c fiber.Ctx) error {
	actor, resp := h.principal(c)
	if actor == nil {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/customers/stats")
	defer cancel()

	out, err := h.statusFlow.LeadStats(ctx, actor)
	if err != nil {
		return h.HandleBusinessError(c, err, "Failed to load customer stats")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Customer stats retrieved successfully", out)
}

func (h *LeadHandler) AddFollowUp(c fiber.Ctx) error {
	actor, resp := h.principal(c)
	if actor == nil {
		return resp
	}
	id, resp := h.uintParam(c, "id", invalidLeadID)
	if id == 0 {
		return resp
	}
	var req dto.AddFollowUpRequest
	if ok, resp := h.bindJSON(c, &req); !ok {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/customers/:id/follow-ups")
	defer cancel()

	out, err := h.activityFlow.AddFollowUp(ctx, actor, id, &req)
	if err != nil {
		return h.HandleBusinessError(c, err, "Failed to add follow-up")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Follow-up added successfully", out)
}

func (h *LeadHandler) ListFollowUps(c fiber.Ctx) error {
	actor, resp := h.principal(c)
	if actor == nil {
		return resp
	}
	id, resp := h.uintParam(c, "id", invalidLeadID)
	if id == 0 {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/customers/:id/follow-ups")
	defer cancel()

	out, err := h.activityFlow.ListFollowUps(ctx, actor, id)
	if err != nil {
		return h.HandleBusinessError(c, err, "Failed to list follow-ups")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Follow-ups retrieved successfully", out)
}

func (h *LeadHandler) AddNote(c fiber.Ctx) error {
	actor, resp := h.principal(c)
	if actor == nil {
		return resp
	}
	id, resp := h.uintParam(c, "id", invalidLeadID)
	if id == 0 {
		return resp
	}
	var req dto.AddNoteRequest
	if ok, resp := h.bindJSON(c, &req); !ok {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/customers/:id/notes")
	defer cancel()

	out, err := h.activityFlow.AddNote(ctx, actor, id, &req)
	if err != nil {
		return h.HandleBusinessError(c, err, "Failed to add note")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Note added successfully", out)
}

func (h *LeadHandler) ListNotes(c fiber.Ctx) error {
	actor, resp := h.principal(c)
	if actor == nil {
		return resp
	}
	id, resp := h.uintParam(c, "id", invalidLeadID)
	if id == 0 {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/customers/:id/notes")
	defer cancel()

	out, err := h.activityFlow.ListNotes(ctx, actor, id)
	if err != nil {
		return h.HandleBusinessError(c, err, "Failed to list notes")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Notes retrieved successfully", out)
}
