// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/amirphl/leadflow/app/dto"
	"github.com/amirphl/leadflow/app/middleware"
	businessflow "github.com/amirphl/leadflow/business_flow"
	"github.com/amirphl/leadflow/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const requestTimeout = 30 * time.Second

// NewValidator returns a validator with the domain tags registered
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("leadphone", func(fl validator.FieldLevel) bool {
		return utils.IsValidLeadPhone(fl.Field().String())
	})
	_ = v.RegisterValidation("userphone", func(fl validator.FieldLevel) bool {
		return utils.IsValidUserPhone(fl.Field().String())
	})
	_ = v.RegisterValidation("followupdate", func(fl validator.FieldLevel) bool {
		return utils.IsValidFollowUpDate(fl.Field().String())
	})
	return v
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return err.Field() + " must be at least " + err.Param() + " characters"
	case "max":
		return err.Field() + " must be at most " + err.Param() + " characters"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "eqfield":
		return err.Field() + " must match " + err.Param()
	case "leadphone":
		return "Phone number must be a 10 digit mobile number starting with 6-9"
	case "userphone":
		return "Phone number must be exactly 10 digits"
	case "followupdate":
		return "Follow-up date must be in DD/MM/YYYY format"
	case "url":
		return err.Field() + " must be a valid URL"
	case "gt", "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "gtefield":
		return fmt.Sprintf("%s must not be less than %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}

// baseHandler carries the response helpers shared by every handler
type baseHandler struct {
	validator *validator.Validate
	logger    *logrus.Logger
}

func newBaseHandler(v *validator.Validate, logger *logrus.Logger) baseHandler {
	if v == nil {
		v = NewValidator()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return baseHandler{validator: v, logger: logger}
}

func (h *baseHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *baseHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// validate writes a 400 and reports false when req fails validation. The
// written response must be returned as is; ok alone decides whether to go on.
func (h *baseHandler) validate(c fiber.Ctx, req any) (bool, error) {
	err := h.validator.Struct(req)
	if err == nil {
		return true, nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", err.Error())
	}
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, getValidationErrorMessage(fe))
	}
	return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", messages)
}

// bindJSON decodes and validates the body. req is usable only when ok is true.
func (h *baseHandler) bindJSON(c fiber.Ctx, req any) (bool, error) {
	if err := c.Bind().JSON(req); err != nil {
		return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	return h.validate(c, req)
}

func (h *baseHandler) bindQuery(c fiber.Ctx, req any) (bool, error) {
	if err := c.Bind().Query(req); err != nil {
		return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_QUERY", err.Error())
	}
	return h.validate(c, req)
}

// createRequestContext detaches the flow from fasthttp's recycled context and
// carries request-scoped values for logging.
func (h *baseHandler) createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, requestid.FromContext(c))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	return ctx, cancel
}

func (h *baseHandler) principal(c fiber.Ctx) (*businessflow.Principal, error) {
	p, ok := middleware.GetPrincipalFromContext(c)
	if !ok {
		return nil, h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", nil)
	}
	return p, nil
}

func (h *baseHandler) uintParam(c fiber.Ctx, name, message string) (uint, error) {
	v, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || v == 0 {
		return 0, h.ErrorResponse(c, fiber.StatusBadRequest, message, "INVALID_ID", nil)
	}
	return uint(v), nil
}

func (h *baseHandler) uuidParam(c fiber.Ctx, name, message string) (uuid.UUID, error) {
	id, err := utils.ParseUUID(c.Params(name))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, h.ErrorResponse(c, fiber.StatusBadRequest, message, "INVALID_ID", nil)
	}
	return id, nil
}

// statusFor maps an error kind to its HTTP status
func statusFor(err error) int {
	switch {
	case businessflow.IsValidation(err):
		return fiber.StatusBadRequest
	case businessflow.IsNotFound(err):
		return fiber.StatusNotFound
	case businessflow.IsConflict(err):
		return fiber.StatusConflict
	case businessflow.IsForbidden(err):
		return fiber.StatusForbidden
	case businessflow.IsUnauthorized(err):
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

var defaultCodes = map[int]string{
	fiber.StatusBadRequest:   "VALIDATION_ERROR",
	fiber.StatusNotFound:     "NOT_FOUND",
	fiber.StatusConflict:     "CONFLICT",
	fiber.StatusForbidden:    "ACCESS_DENIED",
	fiber.StatusUnauthorized: "UNAUTHORIZED",
}

// HandleBusinessError renders err using its kind, code and message. Internal
// failures are logged and their details hidden.
func (h *baseHandler) HandleBusinessError(c fiber.Ctx, err error, fallbackMessage string) error {
	status := statusFor(err)
	code, ok := defaultCodes[status]
	if !ok {
		code = "INTERNAL_ERROR"
	}
	var be *businessflow.BusinessError
	if errors.As(err, &be) && be.Code != "" {
		code = be.Code
	}

	if status == fiber.StatusInternalServerError {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"path":       c.Path(),
			"method":     c.Method(),
			"request_id": requestid.FromContext(c),
		}).Error(fallbackMessage)
		return h.ErrorResponse(c, status, fallbackMessage, code, nil)
	}
	return h.ErrorResponse(c, status, businessflow.ErrorMessage(err), code, nil)
}
