package dto

// CreateLeadRequest creates a customer lead
type CreateLeadRequest struct {
	FullName            string  `json:"full_name" validate:"required,min=2,max=255"`
	PhoneNumber         string  `json:"phone_number" validate:"required,leadphone"`
	Email               string  `json:"email" validate:"required,email"`
	ProjectID           uint    `json:"project" validate:"required,gt=0"`
	PersonalPhoneNumber *string `json:"personal_phone_number,omitempty" validate:"omitempty,leadphone"`
	// CompanyID is required for channel partners and admins; agents use their own company
	CompanyID *uint `json:"company,omitempty" validate:"omitempty,gt=0"`
}

// LeadDTO is the API view of a lead
type LeadDTO struct {
	ID                  uint     `json:"id"`
	UUID                string   `json:"uuid"`
	FullName            string   `json:"full_name"`
	PhoneNumber         string   `json:"phone_number"`
	Email               string   `json:"email"`
	PersonalPhoneNumber *string  `json:"personal_phone_number,omitempty"`
	ProjectID           uint     `json:"project_id"`
	CompanyID           uint     `json:"company_id"`
	Status              string   `json:"status"`
	IsAccepted          bool     `json:"isAccepted"`
	AcceptedBy          *string  `json:"acceptedBy,omitempty"`
	AcceptedByName      *string  `json:"acceptedByName,omitempty"`
	AcceptedAt          *string  `json:"acceptedAt,omitempty"`
	DeclinedBy          []string `json:"declinedBy"`
	DeclinedAt          *string  `json:"declinedAt,omitempty"`
	IsBroadcasted       bool     `json:"is_broadcasted"`
	BroadcastedTo       []string `json:"broadcasted_to"`
	CreatedBy           ActorDTO `json:"createdBy"`
	CreatedAt           string   `json:"createdAt"`
	UpdatedAt           string   `json:"updatedAt"`
}

// ActorDTO identifies the principal behind an action
type ActorDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// ListLeadsRequest filters lead listings
type ListLeadsRequest struct {
	PageRequest
	Status string `query:"status" validate:"omitempty,max=100"`
}

// ListLeadsResponse is a page of leads
type ListLeadsResponse struct {
	Results []LeadDTO `json:"results"`
	PageInfo
}

// BroadcastLeadRequest targets "all" active agents of a company or a single agent id
type BroadcastLeadRequest struct {
	CompanyID uint   `json:"companyId" validate:"required,gt=0"`
	Agents    string `json:"agents" validate:"required"`
}

// BroadcastLeadResponse reports the broadcast outcome
type BroadcastLeadResponse struct {
	LeadID              uint     `json:"customerId"`
	TotalAgents         int      `json:"totalAgents"`
	AgentsBroadcastedTo []string `json:"agentsBroadcastedTo"`
	NewlyAdded          []string `json:"newlyAdded"`
}

// AcceptLeadResponse is returned to both the winner and the losers of an accept race
type AcceptLeadResponse struct {
	LeadID         uint    `json:"customerId"`
	Accepted       bool    `json:"accepted"`
	AcceptedBy     *string `json:"acceptedBy,omitempty"`
	AcceptedByName *string `json:"acceptedByName,omitempty"`
	AcceptedAt     *string `json:"acceptedAt,omitempty"`
	Message        string  `json:"message"`
}

// DeclineLeadResponse reports a decline
type DeclineLeadResponse struct {
	LeadID     uint   `json:"customerId"`
	DeclinedAt string `json:"declinedAt"`
	Message    string `json:"message"`
}

// UpdateLeadStatusRequest moves a lead to a master status
type UpdateLeadStatusRequest struct {
	StatusID uint `json:"status_id" validate:"required,gt=0"`
}

// StatusHistoryEntryDTO is one entry of a lead's reconstructed history
type StatusHistoryEntryDTO struct {
	Status    string   `json:"status"`
	UpdatedBy ActorDTO `json:"updatedBy"`
	UpdatedAt string   `json:"updatedAt"`
	Derived   bool     `json:"derived,omitempty"`
}

// StatusHistoryResponse is the full lifecycle of a lead
type StatusHistoryResponse struct {
	LeadID  uint                    `json:"customerId"`
	Current string                  `json:"currentStatus"`
	History []StatusHistoryEntryDTO `json:"history"`
}

// LeadStatsResponse is the dashboard count per status
type LeadStatsResponse struct {
	Role           string           `json:"role"`
	Total          int64            `json:"total"`
	ByStatus       map[string]int64 `json:"byStatus"`
	Statuses       []string         `json:"statuses"`
	BroadcastInbox *int64           `json:"broadcastInbox,omitempty"`
}
