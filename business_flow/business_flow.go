// Package businessflow contains the business logic for the application.
package businessflow

import (
	"time"

	"github.com/amirphl/leadflow/app/dto"
	"github.com/amirphl/leadflow/models"
)

// Principal kinds
const (
	PrincipalKindAdmin     = "admin"
	PrincipalKindUser      = "user"
	PrincipalKindAssociate = "associate"
)

// ClientMetadata holds client-related information for audit logging
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// ToLeadDTO converts a lead model for API responses
func ToLeadDTO(c models.Customer) dto.LeadDTO {
	out := dto.LeadDTO{
		ID:                  c.ID,
		UUID:                c.UUID.String(),
		FullName:            c.FullName,
		PhoneNumber:         c.PhoneNumber,
		Email:               c.Email,
		PersonalPhoneNumber: c.PersonalPhoneNumber,
		ProjectID:           c.ProjectID,
		CompanyID:           c.CompanyID,
		Status:              c.Status,
		IsAccepted:          c.IsAccepted,
		AcceptedByName:      c.AcceptedByName,
		AcceptedAt:          formatTimePtr(c.AcceptedAt),
		DeclinedBy:          []string(c.DeclinedBy),
		DeclinedAt:          formatTimePtr(c.DeclinedAt),
		IsBroadcasted:       c.IsBroadcasted,
		BroadcastedTo:       []string(c.BroadcastedTo),
		CreatedBy: dto.ActorDTO{
			ID:   c.CreatedByID.String(),
			Name: c.CreatedByName,
			Role: c.CreatedByRole,
		},
		CreatedAt: formatTime(c.CreatedAt),
		UpdatedAt: formatTime(c.UpdatedAt),
	}
	if c.AcceptedBy != nil {
		id := c.AcceptedBy.String()
		out.AcceptedBy = &id
	}
	if out.DeclinedBy == nil {
		out.DeclinedBy = []string{}
	}
	if out.BroadcastedTo == nil {
		out.BroadcastedTo = []string{}
	}
	return out
}

// ToCompanyDTO converts a company model for API responses
func ToCompanyDTO(c models.Company) dto.CompanyDTO {
	return dto.CompanyDTO{
		ID:          c.ID,
		Name:        c.Name,
		CompanyCode: c.CompanyCode,
		CreatedAt:   formatTime(c.CreatedAt),
	}
}

// ToProjectDTO converts a project model for API responses
func ToProjectDTO(p models.Project) dto.ProjectDTO {
	images := []string(p.Images)
	if images == nil {
		images = []string{}
	}
	brochures := []string(p.Brochures)
	if brochures == nil {
		brochures = []string{}
	}
	return dto.ProjectDTO{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Location:    p.Location,
		MinPrice:    p.MinPrice,
		MaxPrice:    p.MaxPrice,
		Images:      images,
		Brochures:   brochures,
		ProjectCode: p.ProjectCode,
		CreatedAt:   formatTime(p.CreatedAt),
	}
}

// ToUserDTO converts a primary user for API responses
func ToUserDTO(u models.User) dto.PrincipalDTO {
	companyID := u.CompanyID
	return dto.PrincipalDTO{
		ID:          u.UUID.String(),
		Kind:        PrincipalKindUser,
		FullName:    u.FullName,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
		Location:    u.Location,
		Role:        u.Role,
		Status:      u.Status,
		CompanyID:   &companyID,
		CompanyName: u.CompanyName,
		CreatedAt:   formatTime(u.CreatedAt),
	}
}

// ToAssociateDTO converts an associate user for API responses
func ToAssociateDTO(a models.AssociateUser) dto.PrincipalDTO {
	companyID := a.CompanyID
	createdByID := a.CreatedByID.String()
	createdByName := a.CreatedByName
	return dto.PrincipalDTO{
		ID:            a.UUID.String(),
		Kind:          PrincipalKindAssociate,
		FullName:      a.FullName,
		Email:         a.Email,
		PhoneNumber:   a.PhoneNumber,
		Location:      a.Location,
		Role:          a.Role,
		Status:        a.Status,
		CompanyID:     &companyID,
		CompanyName:   a.CompanyName,
		CreatedByID:   &createdByID,
		CreatedByName: &createdByName,
		CreatedAt:     formatTime(a.CreatedAt),
	}
}

// ToAdminDTO converts an admin for API responses
func ToAdminDTO(a models.Admin) dto.PrincipalDTO {
	return dto.PrincipalDTO{
		ID:        a.UUID.String(),
		Kind:      PrincipalKindAdmin,
		FullName:  a.Name,
		Email:     a.Email,
		Role:      models.RoleAdmin,
		Status:    a.Status,
		CreatedAt: formatTime(a.CreatedAt),
	}
}

func toActorDTO(p *Principal) dto.ActorDTO {
	return dto.ActorDTO{ID: p.ID.String(), Name: p.Name, Role: p.Role}
}
