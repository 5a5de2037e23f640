// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"errors"
	"slices"
	"strings"

	"github.com/amirphl/leadflow/app/dto"
	"github.com/amirphl/leadflow/app/services"
	businessflow "github.com/amirphl/leadflow/business_flow"
	"github.com/gofiber/fiber/v3"
)

const (
	principalLocal   = "principal"
	tokenClaimsLocal = "token_claims"
	rawTokenLocal    = "access_token"
)

// AuthMiddleware validates access tokens and loads the calling principal
type AuthMiddleware struct {
	tokenService services.TokenService
	resolver     businessflow.PrincipalResolver
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokenService services.TokenService, resolver businessflow.PrincipalResolver) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
		resolver:     resolver,
	}
}

func reject(c fiber.Ctx, status int, code, message string) error {
	authRejectionsTotal.WithLabelValues(code).Inc()
	return c.Status(status).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error:   dto.ErrorDetail{Code: code},
	})
}

func unauthorized(c fiber.Ctx, code, message string) error {
	return reject(c, fiber.StatusUnauthorized, code, message)
}

// Authenticate validates the bearer access token and resolves its principal.
// Deleted principals are rejected with 401, inactive ones with 403.
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, "MISSING_AUTHORIZATION_HEADER", "Authorization header is required")
		}

		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			return unauthorized(c, "INVALID_AUTHORIZATION_FORMAT", "Invalid authorization header format. Expected 'Bearer <token>'")
		}
		token = strings.TrimSpace(token)
		if token == "" {
			return unauthorized(c, "MISSING_ACCESS_TOKEN", "Access token is required")
		}

		claims, err := m.tokenService.ValidateToken(c.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrTokenExpired):
				return unauthorized(c, "TOKEN_EXPIRED", "Access token has expired")
			case errors.Is(err, services.ErrTokenRevoked):
				return unauthorized(c, "TOKEN_REVOKED", "Access token has been revoked")
			case errors.Is(err, services.ErrTokenInvalid):
				return unauthorized(c, "TOKEN_INVALID", "Invalid access token")
			default:
				return unauthorized(c, "TOKEN_VALIDATION_FAILED", "Token validation failed")
			}
		}
		if claims.TokenType != services.TokenTypeAccess {
			return unauthorized(c, "TOKEN_INVALID", "Invalid access token")
		}

		principal, err := m.resolver.Resolve(c.Context(), claims.PrincipalID)
		if err != nil {
			return unauthorized(c, "PRINCIPAL_NOT_FOUND", "User not found")
		}
		if !principal.IsActive() {
			return reject(c, fiber.StatusForbidden, "ACCOUNT_INACTIVE", "Your Account is Inactive. Please Contact with Admin to make Account Active.")
		}

		c.Locals(principalLocal, principal)
		c.Locals(tokenClaimsLocal, claims)
		c.Locals(rawTokenLocal, token)

		return c.Next()
	}
}

// RequireRoles admits only principals holding one of roles. It must run after Authenticate.
func RequireRoles(roles ...string) fiber.Handler {
	return func(c fiber.Ctx) error {
		principal, ok := GetPrincipalFromContext(c)
		if !ok {
			return unauthorized(c, "AUTHENTICATION_REQUIRED", "Authentication required")
		}
		if !slices.Contains(roles, principal.Role) {
			return reject(c, fiber.StatusForbidden, "ACCESS_DENIED", "You are not allowed to perform this action")
		}
		return c.Next()
	}
}

// GetPrincipalFromContext returns the principal stored by Authenticate
func GetPrincipalFromContext(c fiber.Ctx) (*businessflow.Principal, bool) {
	p, ok := c.Locals(principalLocal).(*businessflow.Principal)
	return p, ok && p != nil
}

// GetTokenClaimsFromContext extracts token claims from the request context
func GetTokenClaimsFromContext(c fiber.Ctx) (*services.TokenClaims, bool) {
	claims, ok := c.Locals(tokenClaimsLocal).(*services.TokenClaims)
	return claims, ok
}

// GetAccessTokenFromContext returns the raw bearer token of the request
func GetAccessTokenFromContext(c fiber.Ctx) (string, bool) {
	tok, ok := c.Locals(rawTokenLocal).(string)
	return tok, ok && tok != ""
}
