// Package businessflow contains the core business logic and use cases of the lead pipeline
package businessflow

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every business error wraps exactly one of them so transports can map it.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// Business flow error constants
var (
	// Principal errors
	ErrPrincipalNotFound   = fmt.Errorf("principal not found: %w", ErrNotFound)
	ErrAdminNotFound       = fmt.Errorf("admin not found: %w", ErrNotFound)
	ErrAdminAlreadyExists  = fmt.Errorf("admin already exists, only one admin allowed: %w", ErrValidation)
	ErrAccountInactive     = fmt.Errorf("account is inactive: %w", ErrForbidden)
	ErrIncorrectPassword   = fmt.Errorf("invalid credentials: %w", ErrUnauthorized)
	ErrEmailOrPhoneInUse   = fmt.Errorf("email or phone number already registered: %w", ErrConflict)
	ErrInvalidToken        = fmt.Errorf("invalid token: %w", ErrUnauthorized)
	ErrRoleNotAllowed      = fmt.Errorf("role not allowed for this operation: %w", ErrForbidden)
	ErrAgentNotInCompany   = fmt.Errorf("invalid agent ID or agent not part of this company: %w", ErrValidation)
	ErrNoActiveAgents      = fmt.Errorf("no active agents found for this company: %w", ErrNotFound)
	ErrInvalidAgentsTarget = fmt.Errorf(`agents must be "all" or a valid agent ID: %w`, ErrValidation)
	ErrInvalidUserStatus   = fmt.Errorf("status must be active or inactive: %w", ErrValidation)
	ErrOnlyPrimaryCanAdd   = fmt.Errorf("only primary users can create associates: %w", ErrForbidden)

	// Company and project errors
	ErrCompanyNotFound      = fmt.Errorf("company not found: %w", ErrNotFound)
	ErrCompanyAlreadyExists = fmt.Errorf("company already exists: %w", ErrConflict)
	ErrCompanyRequired      = fmt.Errorf("company is required: %w", ErrValidation)
	ErrProjectNotFound      = fmt.Errorf("project not found: %w", ErrNotFound)

	// Lead errors
	ErrLeadNotFound         = fmt.Errorf("customer not found: %w", ErrNotFound)
	ErrDuplicateLead        = fmt.Errorf("customer with this phone number or email already exists: %w", ErrConflict)
	ErrLeadAccessDenied     = fmt.Errorf("access denied to this customer: %w", ErrForbidden)
	ErrLeadAlreadyAccepted  = fmt.Errorf("customer already accepted: %w", ErrConflict)
	ErrLeadWrongCompany     = fmt.Errorf("customer does not belong to your company: %w", ErrForbidden)
	ErrBroadcastCompany     = fmt.Errorf("customer does not belong to this company: %w", ErrValidation)
	ErrInvalidStatusID      = fmt.Errorf("invalid status ID: %w", ErrValidation)
	ErrStatusAlreadyExists  = fmt.Errorf("status already exists: %w", ErrConflict)
	ErrStatusNotFound       = fmt.Errorf("status not found: %w", ErrNotFound)
	ErrDefaultStatusLocked  = fmt.Errorf("the default status cannot be changed: %w", ErrValidation)
	ErrInvalidFollowUpDate  = fmt.Errorf("follow up date must be DD/MM/YYYY: %w", ErrValidation)
	ErrInvalidLeadID        = fmt.Errorf("invalid customer ID: %w", ErrValidation)
	ErrInvalidPrincipalID   = fmt.Errorf("invalid principal ID: %w", ErrValidation)

	// Link errors
	ErrCustomerLinkInvalid  = fmt.Errorf("invalid or expired customer link: %w", ErrValidation)
	ErrAssociateLinkInvalid = fmt.Errorf("invalid or expired associate link: %w", ErrValidation)
	ErrInvalidLinkPurpose   = fmt.Errorf("invalid link purpose: %w", ErrValidation)
	ErrLinkCreatorMissing   = fmt.Errorf("link creator no longer exists: %w", ErrNotFound)

	ErrCacheNotAvailable = errors.New("cache not available")
)

// BusinessError carries a stable machine readable code alongside the wrapped cause
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// ErrorMessage returns the most specific human readable message of err
func ErrorMessage(err error) string {
	var be *BusinessError
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	return trimKind(err.Error())
}

func trimKind(msg string) string {
	for _, k := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrForbidden, ErrUnauthorized} {
		if trimmed, ok := strings.CutSuffix(msg, ": "+k.Error()); ok && trimmed != "" {
			return trimmed
		}
	}
	return msg
}
