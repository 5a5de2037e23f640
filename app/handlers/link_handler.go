package handlers

import (
	"strings"

	"github.com/amirphl/leadflow/app/dto"
	businessflow "github.com/amirphl/leadflow/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// LinkHandlerInterface defines onboarding link endpoints
type LinkHandlerInterface interface {
	GenerateCustomerLink(c fiber.Ctx) error
	RedeemCustomerLink(c fiber.Ctx) error
	GenerateAssociateLink(c fiber.Ctx) error
	RedeemAssociateLink(c fiber.Ctx) error
}

// LinkHandler serves single-use onboarding links
type LinkHandler struct {
	baseHandler
	linkFlow businessflow.LinkOnboardingFlow
}

// NewLinkHandler creates a new link handler
func NewLinkHandler(linkFlow businessflow.LinkOnboardingFlow, v *validator.Validate, logger *logrus.Logger) *LinkHandler {
	return &LinkHandler{
		baseHandler: newBaseHandler(v, logger),
		linkFlow:    linkFlow,
	}
}

func (h *LinkHandler) GenerateCustomerLink(c fiber.Ctx) error {
	actor, resp := h.principal(c)
	if actor == nil {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/customer-links")
	defer cancel()

	out, err := h.linkFlow.GenerateCustomerLink(ctx, actor)
	if err != nil {
		return h.HandleBusinessError(c, err, "Failed to generate customer link")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Customer link generated successfully", out)
}

// RedeemCustomerLink is public; the code itself is the credential
func (h *LinkHandler) RedeemCustomerLink(c fiber.Ctx) error {
	code := strings.TrimSpace(c.Params("code"))
	var req dto.RedeemCustomerLinkRequest
	if ok, resp := h.bindJSON(c, &req); !ok {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/customer-links/:code")
	defer cancel()

	out, err := h.linkFlow.RedeemCustomerLink(ctx, code, &req)
	if err != nil {
		return h.HandleBusinessError(c, err, "Failed to register customer")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Customer registered successfully", out)
}

func (h *LinkHandler) GenerateAssociateLink(c fiber.Ctx) error {
	actor, resp := h.principal(c)
	if actor == nil {
		return resp
	}
	var req dto.GenerateAssociateLinkRequest
	if ok, resp := h.bindJSON(c, &req); !ok {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/associate-links")
	defer cancel()

	out, err := h.linkFlow.GenerateAssociateLink(ctx, actor, &req)
	if err != nil {
		return h.HandleBusinessError(c, err, "Failed to generate associate link")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Associate link generated successfully", out)
}

func (h *LinkHandler) RedeemAssociateLink(c fiber.Ctx) error {
	code := strings.TrimSpace(c.Params("code"))
	var req dto.RedeemAssociateLinkRequest
	if ok, resp := h.bindJSON(c, &req); !ok {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/associate-links/:code")
	defer cancel()

	out, err := h.linkFlow.RedeemAssociateLink(ctx, code, &req)
	if err != nil {
		return h.HandleBusinessError(c, err, "Failed to redeem associate link")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Registration completed successfully", out)
}
