package businessflow

import (
	"context"
	"strings"

	"github.com/amirphl/leadflow/app/dto"
	"github.com/amirphl/leadflow/app/services"
	"github.com/amirphl/leadflow/models"
	"github.com/amirphl/leadflow/repository"
	"github.com/amirphl/leadflow/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// BroadcastAllAgents targets every active agent of the company
const BroadcastAllAgents = "all"

// LeadAssignmentFlow moves leads between agents: broadcast, accept and decline
type LeadAssignmentFlow interface {
	BroadcastLead(ctx context.Context, actor *Principal, leadID uint, req *dto.BroadcastLeadRequest) (*dto.BroadcastLeadResponse, error)
	AcceptLead(ctx context.Context, actor *Principal, leadID uint) (*dto.AcceptLeadResponse, error)
	DeclineLead(ctx context.Context, actor *Principal, leadID uint) (*dto.DeclineLeadResponse, error)
}

// LeadAssignmentFlowImpl implements LeadAssignmentFlow
type LeadAssignmentFlowImpl struct {
	customerRepo  repository.CustomerRepository
	companyRepo   repository.CompanyRepository
	userRepo      repository.UserRepository
	associateRepo repository.AssociateUserRepository
	txManager     repository.TxManager
	notifier      services.NotificationService
	logger        *logrus.Logger
}

func NewLeadAssignmentFlow(
	customerRepo repository.CustomerRepository,
	companyRepo repository.CompanyRepository,
	userRepo repository.UserRepository,
	associateRepo repository.AssociateUserRepository,
	txManager repository.TxManager,
	notifier services.NotificationService,
	logger *logrus.Logger,
) LeadAssignmentFlow {
	return &LeadAssignmentFlowImpl{
		customerRepo:  customerRepo,
		companyRepo:   companyRepo,
		userRepo:      userRepo,
		associateRepo: associateRepo,
		txManager:     txManager,
		notifier:      notifier,
		logger:        logger,
	}
}

// BroadcastLead adds agents of the lead's company to its broadcast set. Agents already
// in the set are kept and not notified again.
func (af *LeadAssignmentFlowImpl) BroadcastLead(ctx context.Context, actor *Principal, leadID uint, req *dto.BroadcastLeadRequest) (*dto.BroadcastLeadResponse, error) {
	if !actor.IsAdmin() {
		return nil, NewBusinessError("ACCESS_DENIED", "Only admin can broadcast customers", ErrRoleNotAllowed)
	}
	if req == nil || req.CompanyID == 0 {
		return nil, NewBusinessError("COMPANY_REQUIRED", "Company ID is required", ErrCompanyRequired)
	}

	lead, err := loadLead(ctx, af.customerRepo, leadID)
	if err != nil {
		return nil, err
	}

	company, err := af.companyRepo.LiveByID(ctx, req.CompanyID)
	if err != nil {
		return nil, NewBusinessError("COMPANY_LOOKUP_FAILED", "Failed to lookup company", err)
	}
	if company == nil {
		return nil, NewBusinessError("COMPANY_NOT_FOUND", "Company not found", ErrCompanyNotFound)
	}
	if lead.CompanyID != company.ID {
		return nil, NewBusinessError("COMPANY_MISMATCH", "Customer does not belong to this company", ErrBroadcastCompany)
	}

	targets, err := af.resolveTargets(ctx, company.ID, req.Agents)
	if err != nil {
		return nil, err
	}

	var added []uuid.UUID
	err = af.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		added, err = af.customerRepo.UnionBroadcast(txCtx, lead.ID, targets)
		return err
	})
	if err != nil {
		return nil, NewBusinessError("BROADCAST_FAILED", "Failed to broadcast customer", err)
	}

	if af.notifier != nil && len(added) > 0 {
		af.notifier.NotifyIdentities(ctx, added, dto.EventLeadBroadcasted, dto.LeadBroadcastedEvent{
			LeadID:  lead.ID,
			By:      actor.Name,
			Message: "A new customer has been broadcasted to you by admin.",
		})
	}

	af.logger.WithFields(logrus.Fields{
		"lead_id":     lead.ID,
		"company_id":  company.ID,
		"targets":     len(targets),
		"newly_added": len(added),
		"by":          actor.ID.String(),
	}).Info("lead broadcasted")

	return &dto.BroadcastLeadResponse{
		LeadID:              lead.ID,
		TotalAgents:         len(targets),
		AgentsBroadcastedTo: uuidStrings(targets),
		NewlyAdded:          uuidStrings(added),
	}, nil
}

func (af *LeadAssignmentFlowImpl) resolveTargets(ctx context.Context, companyID uint, agents string) ([]uuid.UUID, error) {
	agents = strings.TrimSpace(agents)
	if agents == BroadcastAllAgents {
		ids, err := activeAgentIDs(ctx, af.userRepo, af.associateRepo, companyID)
		if err != nil {
			return nil, NewBusinessError("AGENT_LOOKUP_FAILED", "Failed to list company agents", err)
		}
		if len(ids) == 0 {
			return nil, NewBusinessError("NO_ACTIVE_AGENTS", "No active agents found for this company", ErrNoActiveAgents)
		}
		return ids, nil
	}

	agentID, err := utils.ParseUUID(agents)
	if err != nil {
		return nil, NewBusinessError("INVALID_AGENTS", `Please provide "all" or a valid agent ID under the "agents" key`, ErrInvalidAgentsTarget)
	}

	isActiveAgent := func(role, status string, company uint) bool {
		return role == models.RoleAgent && status == models.UserStatusActive && company == companyID
	}

	user, err := af.userRepo.ByUUID(ctx, agentID)
	if err != nil {
		return nil, NewBusinessError("AGENT_LOOKUP_FAILED", "Failed to lookup agent", err)
	}
	if user != nil && isActiveAgent(user.Role, user.Status, user.CompanyID) {
		return []uuid.UUID{user.UUID}, nil
	}

	associate, err := af.associateRepo.ByUUID(ctx, agentID)
	if err != nil {
		return nil, NewBusinessError("AGENT_LOOKUP_FAILED", "Failed to lookup agent", err)
	}
	if associate != nil && isActiveAgent(associate.Role, associate.Status, associate.CompanyID) {
		return []uuid.UUID{associate.UUID}, nil
	}

	return nil, NewBusinessError("INVALID_AGENT", "Invalid agent ID or agent not part of this company", ErrAgentNotInCompany)
}

// AcceptLead claims an unaccepted lead for the calling agent. Exactly one concurrent
// caller wins; the others get Accepted=false with the winner's name.
func (af *LeadAssignmentFlowImpl) AcceptLead(ctx context.Context, actor *Principal, leadID uint) (*dto.AcceptLeadResponse, error) {
	if !actor.IsAgent() {
		leadAcceptAttemptsTotal.WithLabelValues(acceptResultRejected).Inc()
		return nil, NewBusinessError("ACCESS_DENIED", "Only agents can accept customers", ErrRoleNotAllowed)
	}

	lead, err := loadLead(ctx, af.customerRepo, leadID)
	if err != nil {
		leadAcceptAttemptsTotal.WithLabelValues(acceptResultRejected).Inc()
		return nil, err
	}
	if lead.CompanyID != actor.CompanyID {
		leadAcceptAttemptsTotal.WithLabelValues(acceptResultRejected).Inc()
		return nil, NewBusinessError("ACCESS_DENIED", "Customer does not belong to your company", ErrLeadWrongCompany)
	}

	if lead.IsAccepted {
		leadAcceptAttemptsTotal.WithLabelValues(acceptResultLost).Inc()
		return acceptOutcome(lead, actor), nil
	}

	now := utils.UTCNow()
	won, err := af.customerRepo.AcceptIfUnaccepted(ctx, lead.ID, actor.CompanyID, actor.ID, actor.Name, now)
	if err != nil {
		return nil, NewBusinessError("ACCEPT_FAILED", "Failed to accept customer", err)
	}

	if !won {
		leadAcceptAttemptsTotal.WithLabelValues(acceptResultLost).Inc()
		current, err := loadLead(ctx, af.customerRepo, lead.ID)
		if err != nil {
			return nil, err
		}
		return acceptOutcome(current, actor), nil
	}

	leadAcceptAttemptsTotal.WithLabelValues(acceptResultWon).Inc()
	agentID, agentName := actor.ID, actor.Name
	lead.IsAccepted = true
	lead.AcceptedBy = &agentID
	lead.AcceptedByName = &agentName
	lead.AcceptedAt = &now

	if af.notifier != nil {
		af.notifier.NotifyIdentities(ctx, []uuid.UUID{actor.ID, lead.CreatedByID}, dto.EventLeadAccepted, dto.LeadAcceptedEvent{
			LeadID:    lead.ID,
			AgentID:   actor.ID.String(),
			AgentName: actor.Name,
		})
		af.notifier.NotifyCompanyExcept(ctx, lead.CompanyID, actor.ID, dto.EventLeadAlreadyAccepted, dto.LeadAlreadyAcceptedEvent{
			LeadID:    lead.ID,
			AgentName: actor.Name,
		})
	}

	af.logger.WithFields(logrus.Fields{
		"lead_id": lead.ID,
		"agent":   actor.ID.String(),
	}).Info("lead accepted")

	return acceptOutcome(lead, actor), nil
}

// acceptOutcome reports the lead's holder from the point of view of actor
func acceptOutcome(lead *models.Customer, actor *Principal) *dto.AcceptLeadResponse {
	out := &dto.AcceptLeadResponse{
		LeadID:         lead.ID,
		Accepted:       lead.IsAcceptedBy(actor.ID),
		AcceptedByName: lead.AcceptedByName,
		AcceptedAt:     formatTimePtr(lead.AcceptedAt),
	}
	if lead.AcceptedBy != nil {
		id := lead.AcceptedBy.String()
		out.AcceptedBy = &id
	}
	switch {
	case out.Accepted:
		out.Message = "Customer accepted successfully."
	case lead.AcceptedByName != nil:
		out.Message = "Customer already accepted by " + *lead.AcceptedByName + " agent of your company."
	default:
		out.Message = "Customer already accepted."
	}
	return out
}

// DeclineLead records that the agent passed on the lead. Declining twice is a no-op.
func (af *LeadAssignmentFlowImpl) DeclineLead(ctx context.Context, actor *Principal, leadID uint) (*dto.DeclineLeadResponse, error) {
	if !actor.IsAgent() {
		return nil, NewBusinessError("ACCESS_DENIED", "Only agents can decline customers", ErrRoleNotAllowed)
	}

	lead, err := loadLead(ctx, af.customerRepo, leadID)
	if err != nil {
		return nil, err
	}
	if lead.CompanyID != actor.CompanyID {
		return nil, NewBusinessError("ACCESS_DENIED", "Customer does not belong to your company", ErrLeadWrongCompany)
	}
	if lead.IsAccepted {
		return nil, NewBusinessError("CUSTOMER_ALREADY_ACCEPTED", "Customer already accepted", ErrLeadAlreadyAccepted)
	}
	if lead.HasDeclined(actor.ID) {
		return declineOutcome(lead, "Customer already declined."), nil
	}

	now := utils.UTCNow()
	ok, err := af.customerRepo.AddDecline(ctx, lead.ID, actor.ID, now)
	if err != nil {
		return nil, NewBusinessError("DECLINE_FAILED", "Failed to decline customer", err)
	}
	if !ok {
		current, err := loadLead(ctx, af.customerRepo, lead.ID)
		if err != nil {
			return nil, err
		}
		if current.IsAccepted {
			return nil, NewBusinessError("CUSTOMER_ALREADY_ACCEPTED", "Customer already accepted", ErrLeadAlreadyAccepted)
		}
		return declineOutcome(current, "Customer already declined."), nil
	}

	lead.DeclinedAt = &now
	if af.notifier != nil {
		event := dto.LeadDeclinedEvent{LeadID: lead.ID, AgentName: actor.Name}
		af.notifier.NotifyIdentities(ctx, []uuid.UUID{actor.ID, lead.CreatedByID}, dto.EventLeadDeclined, event)
		af.notifier.NotifyAdmins(ctx, dto.EventLeadDeclined, event)
	}

	af.logger.WithFields(logrus.Fields{
		"lead_id": lead.ID,
		"agent":   actor.ID.String(),
	}).Info("lead declined")

	return declineOutcome(lead, "Customer declined successfully."), nil
}

func declineOutcome(lead *models.Customer, message string) *dto.DeclineLeadResponse {
	out := &dto.DeclineLeadResponse{LeadID: lead.ID, Message: message}
	if lead.DeclinedAt != nil {
		out.DeclinedAt = formatTime(*lead.DeclinedAt)
	}
	return out
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
