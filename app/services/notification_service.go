package services

import (
	"context"

	"github.com/amirphl/leadflow/app/dto"
	"github.com/amirphl/leadflow/utils"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var notificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "lead_notifications_total",
		Help: "Lead notifications emitted partitioned by event and whether any connection received them",
	},
	[]string{"event", "delivered"},
)

// NotificationService delivers lead events to connected principals. Delivery is
// fire-and-forget: nothing here ever fails the calling operation.
type NotificationService interface {
	NotifyIdentities(ctx context.Context, ids []uuid.UUID, event string, payload any)
	NotifyCompany(ctx context.Context, companyID uint, event string, payload any)
	NotifyCompanyExcept(ctx context.Context, companyID uint, except uuid.UUID, event string, payload any)
	NotifyAdmins(ctx context.Context, event string, payload any)
	ForceLogout(ctx context.Context, id uuid.UUID, payload dto.ForceLogoutEvent)
}

// RealtimeProvider is the connection registry the notifications are pushed through.
// Each method returns the number of connections the frame was queued for.
type RealtimeProvider interface {
	EmitToIdentity(id uuid.UUID, event string, payload any) int
	EmitToCompany(companyID uint, event string, payload any) int
	EmitToCompanyExcept(companyID uint, except uuid.UUID, event string, payload any) int
	EmitToAdmins(event string, payload any) int
	ForceDisconnect(id uuid.UUID, event string, payload any) int
}

// NotificationServiceImpl implements NotificationService
type NotificationServiceImpl struct {
	provider RealtimeProvider
	logger   *logrus.Logger
}

// NewNotificationService creates a new notification service. A nil provider turns every
// notification into a logged no-op.
func NewNotificationService(provider RealtimeProvider, logger *logrus.Logger) NotificationService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &NotificationServiceImpl{
		provider: provider,
		logger:   logger,
	}
}

// NotifyIdentities sends the event to every connection of each distinct identity
func (s *NotificationServiceImpl) NotifyIdentities(ctx context.Context, ids []uuid.UUID, event string, payload any) {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		s.record(ctx, event, "identity", id.String(), func(p RealtimeProvider) int {
			return p.EmitToIdentity(id, event, payload)
		})
	}
}

// NotifyCompany sends the event to every connection of the company
func (s *NotificationServiceImpl) NotifyCompany(ctx context.Context, companyID uint, event string, payload any) {
	s.record(ctx, event, "company", companyID, func(p RealtimeProvider) int {
		return p.EmitToCompany(companyID, event, payload)
	})
}

// NotifyCompanyExcept sends the event to the company without reaching the excluded identity
func (s *NotificationServiceImpl) NotifyCompanyExcept(ctx context.Context, companyID uint, except uuid.UUID, event string, payload any) {
	s.record(ctx, event, "company", companyID, func(p RealtimeProvider) int {
		return p.EmitToCompanyExcept(companyID, except, event, payload)
	})
}

// NotifyAdmins sends the event to every admin connection
func (s *NotificationServiceImpl) NotifyAdmins(ctx context.Context, event string, payload any) {
	s.record(ctx, event, "admins", "admins", func(p RealtimeProvider) int {
		return p.EmitToAdmins(event, payload)
	})
}

// ForceLogout tells every connection of the identity to log out and closes them
func (s *NotificationServiceImpl) ForceLogout(ctx context.Context, id uuid.UUID, payload dto.ForceLogoutEvent) {
	s.record(ctx, dto.EventForceLogout, "identity", id.String(), func(p RealtimeProvider) int {
		return p.ForceDisconnect(id, dto.EventForceLogout, payload)
	})
}

func (s *NotificationServiceImpl) record(ctx context.Context, event, scope string, target any, emit func(RealtimeProvider) int) {
	if s.provider == nil {
		s.logger.WithFields(logrus.Fields{"event": event, "scope": scope, "target": target}).Debug("realtime provider not configured, notification dropped")
		return
	}
	n := emit(s.provider)
	delivered := "true"
	if n == 0 {
		delivered = "false"
	}
	notificationsTotal.WithLabelValues(event, delivered).Inc()

	entry := s.logger.WithFields(logrus.Fields{
		"event":       event,
		"scope":       scope,
		"target":      target,
		"connections": n,
	})
	if rid := ctx.Value(utils.RequestIDKey); rid != nil {
		entry = entry.WithField("request_id", rid)
	}
	entry.Debug("notification emitted")
}
