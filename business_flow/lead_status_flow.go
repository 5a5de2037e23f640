package businessflow

import (
	"context"
	"slices"
	"sort"

	"github.com/amirphl/leadflow/app/dto"
	"github.com/amirphl/leadflow/app/services"
	"github.com/amirphl/leadflow/models"
	"github.com/amirphl/leadflow/repository"
	"github.com/amirphl/leadflow/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LeadStatusFlow handles the business status of leads and the dashboard counts
type LeadStatusFlow interface {
	UpdateLeadStatus(ctx context.Context, actor *Principal, leadID uint, req *dto.UpdateLeadStatusRequest) (*dto.LeadDTO, error)
	LeadStatusHistory(ctx context.Context, actor *Principal, leadID uint) (*dto.StatusHistoryResponse, error)
	LeadStats(ctx context.Context, actor *Principal) (*dto.LeadStatsResponse, error)
}

// LeadStatusFlowImpl implements LeadStatusFlow
type LeadStatusFlowImpl struct {
	customerRepo repository.CustomerRepository
	historyRepo  repository.CustomerStatusHistoryRepository
	statusRepo   repository.MasterStatusRepository
	catalog      StatusCatalog
	resolver     PrincipalResolver
	txManager    repository.TxManager
	notifier     services.NotificationService
	logger       *logrus.Logger
}

func NewLeadStatusFlow(
	customerRepo repository.CustomerRepository,
	historyRepo repository.CustomerStatusHistoryRepository,
	statusRepo repository.MasterStatusRepository,
	catalog StatusCatalog,
	resolver PrincipalResolver,
	txManager repository.TxManager,
	notifier services.NotificationService,
	logger *logrus.Logger,
) LeadStatusFlow {
	return &LeadStatusFlowImpl{
		customerRepo: customerRepo,
		historyRepo:  historyRepo,
		statusRepo:   statusRepo,
		catalog:      catalog,
		resolver:     resolver,
		txManager:    txManager,
		notifier:     notifier,
		logger:       logger,
	}
}

// canUpdateStatus: admins any lead, channel partners their own, agents accepted or broadcast leads
func canUpdateStatus(actor *Principal, lead *models.Customer) bool {
	return canViewLead(actor, lead)
}

func (sf *LeadStatusFlowImpl) UpdateLeadStatus(ctx context.Context, actor *Principal, leadID uint, req *dto.UpdateLeadStatusRequest) (*dto.LeadDTO, error) {
	if actor == nil {
		return nil, NewBusinessError("ACCESS_DENIED", "Access denied", ErrRoleNotAllowed)
	}
	if req == nil || req.StatusID == 0 {
		return nil, NewBusinessError("INVALID_STATUS_ID", "Invalid Status ID", ErrInvalidStatusID)
	}

	lead, err := loadLead(ctx, sf.customerRepo, leadID)
	if err != nil {
		return nil, err
	}
	if !canUpdateStatus(actor, lead) {
		return nil, NewBusinessError("ACCESS_DENIED", "You are not allowed to update this customer", ErrLeadAccessDenied)
	}

	status, err := sf.statusRepo.LiveByID(ctx, req.StatusID)
	if err != nil {
		return nil, NewBusinessError("STATUS_LOOKUP_FAILED", "Failed to lookup status", err)
	}
	if status == nil {
		return nil, NewBusinessError("INVALID_STATUS_ID", "Invalid Status ID", ErrInvalidStatusID)
	}

	now := utils.UTCNow()
	err = sf.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		ok, err := sf.customerRepo.UpdateStatus(txCtx, lead.ID, status.Name, now)
		if err != nil {
			return NewBusinessError("STATUS_UPDATE_FAILED", "Failed to update status", err)
		}
		if !ok {
			return NewBusinessError("CUSTOMER_NOT_FOUND", "Customer not found", ErrLeadNotFound)
		}
		entry := &models.CustomerStatusHistory{
			CustomerID: lead.ID,
			Status:     status.Name,
			ActorID:    actor.ID,
			ActorName:  actor.Name,
			ActorRole:  actor.Role,
			CreatedAt:  now,
		}
		if err := sf.historyRepo.Save(txCtx, entry); err != nil {
			return NewBusinessError("STATUS_HISTORY_FAILED", "Failed to record status history", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	leadStatusChangesTotal.Inc()
	lead.Status = status.Name
	lead.UpdatedAt = now

	if sf.notifier != nil {
		recipients := []uuid.UUID{lead.CreatedByID}
		if lead.AcceptedBy != nil {
			recipients = append(recipients, *lead.AcceptedBy)
		}
		sf.notifier.NotifyIdentities(ctx, recipients, dto.EventLeadStatusChanged, dto.LeadStatusChangedEvent{
			LeadID:    lead.ID,
			NewStatus: status.Name,
			UpdatedBy: toActorDTO(actor),
		})
	}

	sf.logger.WithFields(logrus.Fields{
		"lead_id": lead.ID,
		"status":  status.Name,
		"by":      actor.ID.String(),
	}).Info("lead status updated")

	out := ToLeadDTO(*lead)
	return &out, nil
}

// LeadStatusHistory returns the lead's lifecycle oldest first. The initial "New" entry is
// derived from the lead itself when the stored log does not start with it.
func (sf *LeadStatusFlowImpl) LeadStatusHistory(ctx context.Context, actor *Principal, leadID uint) (*dto.StatusHistoryResponse, error) {
	lead, err := loadVisibleLead(ctx, sf.customerRepo, actor, leadID)
	if err != nil {
		return nil, err
	}

	rows, err := sf.historyRepo.ListByCustomer(ctx, lead.ID)
	if err != nil {
		return nil, NewBusinessError("STATUS_HISTORY_FAILED", "Failed to load status history", err)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].ID < rows[j].ID
		}
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})

	names := make(map[uuid.UUID]string)
	nameOf := func(id uuid.UUID) string {
		if n, ok := names[id]; ok {
			return n
		}
		n := sf.resolver.ResolveName(ctx, id)
		names[id] = n
		return n
	}

	history := make([]dto.StatusHistoryEntryDTO, 0, len(rows)+1)
	hasNew := slices.ContainsFunc(rows, func(r *models.CustomerStatusHistory) bool {
		return r.Status == utils.LeadStatusNew
	})
	if !hasNew {
		history = append(history, dto.StatusHistoryEntryDTO{
			Status: utils.LeadStatusNew,
			UpdatedBy: dto.ActorDTO{
				ID:   lead.CreatedByID.String(),
				Name: nameOf(lead.CreatedByID),
				Role: lead.CreatedByRole,
			},
			UpdatedAt: formatTime(lead.CreatedAt),
			Derived:   true,
		})
	}
	for _, r := range rows {
		history = append(history, dto.StatusHistoryEntryDTO{
			Status: r.Status,
			UpdatedBy: dto.ActorDTO{
				ID:   r.ActorID.String(),
				Name: nameOf(r.ActorID),
				Role: r.ActorRole,
			},
			UpdatedAt: formatTime(r.CreatedAt),
		})
	}

	return &dto.StatusHistoryResponse{
		LeadID:  lead.ID,
		Current: lead.Status,
		History: history,
	}, nil
}

// LeadStats counts the actor's leads per status, with every live master status present
func (sf *LeadStatusFlowImpl) LeadStats(ctx context.Context, actor *Principal) (*dto.LeadStatsResponse, error) {
	var filter models.CustomerFilter
	switch {
	case actor.IsAdmin():
	case actor.IsChannelPartner():
		id := actor.ID
		filter.CreatedByID = &id
	case actor.IsAgent():
		id := actor.ID
		filter.AcceptedBy = &id
	default:
		return nil, NewBusinessError("ACCESS_DENIED", "Access denied. Unauthorized role", ErrRoleNotAllowed)
	}

	statuses, err := sf.catalog.LiveStatusNames(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := sf.customerRepo.CountByStatus(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("STATS_FAILED", "Failed to count customers", err)
	}

	byStatus := make(map[string]int64, len(statuses))
	for _, s := range statuses {
		byStatus[s] = 0
	}
	var total int64
	for _, c := range counts {
		byStatus[c.Status] += c.Count
		total += c.Count
	}

	out := &dto.LeadStatsResponse{
		Role:     actor.Role,
		Total:    total,
		ByStatus: byStatus,
		Statuses: statuses,
	}

	if actor.IsAgent() {
		id := actor.ID
		notAccepted := false
		inbox, err := sf.customerRepo.Count(ctx, models.CustomerFilter{BroadcastedTo: &id, IsAccepted: &notAccepted})
		if err != nil {
			return nil, NewBusinessError("STATS_FAILED", "Failed to count broadcast inbox", err)
		}
		out.BroadcastInbox = &inbox
	}
	return out, nil
}
