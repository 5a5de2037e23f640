package handlers

import (
	"context"

	"github.com/amirphl/leadflow/app/dto"
	"github.com/amirphl/leadflow/app/middleware"
	businessflow "github.com/amirphl/leadflow/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// AuthHandlerInterface defines the contract for authentication handlers
type AuthHandlerInterface interface {
	RegisterAdmin(c fiber.Ctx) error
	LoginAdmin(c fiber.Ctx) error
	RegisterUser(c fiber.Ctx) error
	LoginUser(c fiber.Ctx) error
	LoginAssociate(c fiber.Ctx) error
	RefreshToken(c fiber.Ctx) error
	Logout(c fiber.Ctx) error
	Me(c fiber.Ctx) error
}

// AuthHandler handles registration, login and session endpoints
type AuthHandler struct {
	baseHandler
	authFlow businessflow.AuthFlow
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authFlow businessflow.AuthFlow, v *validator.Validate, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		baseHandler: newBaseHandler(v, logger),
		authFlow:    authFlow,
	}
}

// RegisterAdmin creates the single admin account
func (h *AuthHandler) RegisterAdmin(c fiber.Ctx) error {
	var req dto.RegisterAdminRequest
	if ok, resp := h.bindJSON(c, &req); !ok {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/register")
	defer cancel()

	admin, err := h.authFlow.RegisterAdmin(ctx, &req)
	if err != nil {
		return h.HandleBusinessError(c, err, "Admin registration failed")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Admin registered successfully", admin)
}

// LoginAdmin authenticates the admin
func (h *AuthHandler) LoginAdmin(c fiber.Ctx) error {
	return h.login(c, "/api/v1/admin/login", h.authFlow.LoginAdmin)
}

// RegisterUser registers a primary agent or channel partner
func (h *AuthHandler) RegisterUser(c fiber.Ctx) error {
	var req dto.RegisterUserRequest
	if ok, resp := h.bindJSON(c, &req); !ok {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/auth/register")
	defer cancel()

	user, err := h.authFlow.RegisterUser(ctx, &req)
	if err != nil {
		return h.HandleBusinessError(c, err, "Registration failed")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "User registered successfully", user)
}

// LoginUser authenticates a primary user, falling back to associates
func (h *AuthHandler) LoginUser(c fiber.Ctx) error {
	return h.login(c, "/api/v1/auth/login", h.authFlow.LoginUser)
}

// LoginAssociate authenticates an associate user
func (h *AuthHandler) LoginAssociate(c fiber.Ctx) error {
	return h.login(c, "/api/v1/associates/login", h.authFlow.LoginAssociate)
}

type loginFunc func(ctx context.Context, req *dto.LoginRequest, metadata *businessflow.ClientMetadata) (*dto.LoginResponse, error)

func (h *AuthHandler) login(c fiber.Ctx, endpoint string, fn loginFunc) error {
	var req dto.LoginRequest
	if ok, resp := h.bindJSON(c, &req); !ok {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, endpoint)
	defer cancel()

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	result, err := fn(ctx, &req, metadata)
	if err != nil {
		return h.HandleBusinessError(c, err, "Login failed")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Login successful", result)
}

// RefreshToken exchanges a refresh token for a new pair
func (h *AuthHandler) RefreshToken(c fiber.Ctx) error {
	var req dto.RefreshTokenRequest
	if ok, resp := h.bindJSON(c, &req); !ok {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/auth/refresh")
	defer cancel()

	pair, err := h.authFlow.RefreshToken(ctx, &req)
	if err != nil {
		return h.HandleBusinessError(c, err, "Token refresh failed")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Token refreshed successfully", pair)
}

// Logout revokes the caller's access token
func (h *AuthHandler) Logout(c fiber.Ctx) error {
	token, ok := middleware.GetAccessTokenFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/auth/logout")
	defer cancel()

	if err := h.authFlow.Logout(ctx, token); err != nil {
		return h.HandleBusinessError(c, err, "Logout failed")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Logged out successfully", nil)
}

// Me returns the caller's profile
func (h *AuthHandler) Me(c fiber.Ctx) error {
	actor, resp := h.principal(c)
	if actor == nil {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/auth/me")
	defer cancel()

	me, err := h.authFlow.Me(ctx, actor)
	if err != nil {
		return h.HandleBusinessError(c, err, "Failed to load profile")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Profile retrieved successfully", me)
}
