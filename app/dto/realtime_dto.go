package dto

// Real-time event names
const (
	EventLeadCreated         = "lead-created"
	EventLeadBroadcasted     = "lead-broadcasted"
	EventLeadAccepted        = "lead-accepted"
	EventLeadAlreadyAccepted = "lead-already-accepted"
	EventLeadDeclined        = "lead-declined"
	EventLeadStatusChanged   = "lead-status-changed"
	EventForceLogout         = "force-logout"
	EventAcceptLead          = "accept-lead"
	EventError               = "error"
)

// Envelope is the frame exchanged over the real-time connection
type Envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// LeadCreatedEvent is sent to the company channel
type LeadCreatedEvent struct {
	LeadID    uint     `json:"leadId"`
	CompanyID uint     `json:"companyId"`
	CreatedBy ActorDTO `json:"createdBy"`
}

// LeadBroadcastedEvent is sent to each newly targeted agent
type LeadBroadcastedEvent struct {
	LeadID  uint   `json:"leadId"`
	By      string `json:"by"`
	Message string `json:"message"`
}

// LeadAcceptedEvent is sent to the winning agent and the lead creator
type LeadAcceptedEvent struct {
	LeadID    uint   `json:"leadId"`
	AgentID   string `json:"agentId"`
	AgentName string `json:"agentName"`
}

// LeadAlreadyAcceptedEvent is sent to the company channel after a lead is taken
type LeadAlreadyAcceptedEvent struct {
	LeadID    uint   `json:"leadId"`
	AgentName string `json:"agentName"`
}

// LeadDeclinedEvent is sent to the declining agent, the admins and the creator
type LeadDeclinedEvent struct {
	LeadID    uint   `json:"leadId"`
	AgentName string `json:"agentName"`
}

// LeadStatusChangedEvent is sent to the creator and the accepted agent
type LeadStatusChangedEvent struct {
	LeadID    uint     `json:"leadId"`
	NewStatus string   `json:"newStatus"`
	UpdatedBy ActorDTO `json:"updatedBy"`
}

// ForceLogoutEvent tells a client to drop its session
type ForceLogoutEvent struct {
	Reason  string `json:"reason"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// AcceptLeadCommand is the inbound payload of accept-lead
type AcceptLeadCommand struct {
	LeadID uint `json:"leadId"`
}

// ErrorEvent reports a rejected inbound command back to its sender
type ErrorEvent struct {
	Event   string `json:"event"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
