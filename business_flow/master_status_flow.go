package businessflow

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/amirphl/leadflow/app/dto"
	"github.com/amirphl/leadflow/models"
	"github.com/amirphl/leadflow/repository"
	"github.com/amirphl/leadflow/utils"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// StatusCatalog exposes the live master status names to the other lead flows
type StatusCatalog interface {
	LiveStatusNames(ctx context.Context) ([]string, error)
}

// MasterStatusFlow manages the curated list of lead statuses
type MasterStatusFlow interface {
	StatusCatalog
	ListStatuses(ctx context.Context) ([]dto.MasterStatusDTO, error)
	CreateStatus(ctx context.Context, actor *Principal, req *dto.MasterStatusRequest) (*dto.MasterStatusDTO, error)
	RenameStatus(ctx context.Context, actor *Principal, id uint, req *dto.MasterStatusRequest) (*dto.MasterStatusDTO, error)
	DeleteStatus(ctx context.Context, actor *Principal, id uint) error
	EnsureDefaultStatuses(ctx context.Context) error
}

// MasterStatusFlowImpl implements MasterStatusFlow. The live list is cached in redis
// and invalidated on every write; a nil client disables caching.
type MasterStatusFlowImpl struct {
	statusRepo  repository.MasterStatusRepository
	rc          *redis.Client
	cachePrefix string
	cacheTTL    time.Duration
	logger      *logrus.Logger
}

func NewMasterStatusFlow(statusRepo repository.MasterStatusRepository, rc *redis.Client, cachePrefix string, cacheTTL time.Duration, logger *logrus.Logger) MasterStatusFlow {
	return &MasterStatusFlowImpl{
		statusRepo:  statusRepo,
		rc:          rc,
		cachePrefix: cachePrefix,
		cacheTTL:    cacheTTL,
		logger:      logger,
	}
}

func redisKey(prefix, key string) string {
	return prefix + key
}

func (mf *MasterStatusFlowImpl) ListStatuses(ctx context.Context) ([]dto.MasterStatusDTO, error) {
	cacheKey := redisKey(mf.cachePrefix, utils.MasterStatusCacheKey)

	// try redis first
	if mf.rc != nil {
		if bs, err := mf.rc.Get(ctx, cacheKey).Bytes(); err == nil && len(bs) > 0 {
			var out []dto.MasterStatusDTO
			if err := json.Unmarshal(bs, &out); err == nil {
				return out, nil
			}
		}
	}

	rows, err := mf.statusRepo.ListLive(ctx)
	if err != nil {
		return nil, NewBusinessError("LIST_STATUSES_FAILED", "Failed to list statuses", err)
	}
	out := make([]dto.MasterStatusDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, dto.MasterStatusDTO{ID: r.ID, Name: r.Name})
	}

	if mf.rc != nil {
		if bs, err := json.Marshal(out); err == nil {
			if err := mf.rc.Set(ctx, cacheKey, bs, mf.cacheTTL).Err(); err != nil {
				mf.logger.WithError(err).Warn("failed to cache master statuses")
			}
		}
	}
	return out, nil
}

func (mf *MasterStatusFlowImpl) LiveStatusNames(ctx context.Context) ([]string, error) {
	statuses, err := mf.ListStatuses(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, s.Name)
	}
	return names, nil
}

func (mf *MasterStatusFlowImpl) CreateStatus(ctx context.Context, actor *Principal, req *dto.MasterStatusRequest) (*dto.MasterStatusDTO, error) {
	if !actor.IsAdmin() {
		return nil, NewBusinessError("ACCESS_DENIED", "Only admins can manage statuses", ErrRoleNotAllowed)
	}
	name, err := statusName(req)
	if err != nil {
		return nil, err
	}

	existing, err := mf.statusRepo.LiveByName(ctx, name)
	if err != nil {
		return nil, NewBusinessError("STATUS_LOOKUP_FAILED", "Failed to lookup status", err)
	}
	if existing != nil {
		return nil, NewBusinessError("STATUS_ALREADY_EXISTS", "Status already exists", ErrStatusAlreadyExists)
	}

	status := &models.MasterStatus{Name: name}
	if err := mf.statusRepo.Save(ctx, status); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, NewBusinessError("STATUS_ALREADY_EXISTS", "Status already exists", ErrStatusAlreadyExists)
		}
		return nil, NewBusinessError("STATUS_CREATE_FAILED", "Failed to create status", err)
	}
	mf.invalidate(ctx)
	return &dto.MasterStatusDTO{ID: status.ID, Name: status.Name}, nil
}

func (mf *MasterStatusFlowImpl) RenameStatus(ctx context.Context, actor *Principal, id uint, req *dto.MasterStatusRequest) (*dto.MasterStatusDTO, error) {
	if !actor.IsAdmin() {
		return nil, NewBusinessError("ACCESS_DENIED", "Only admins can manage statuses", ErrRoleNotAllowed)
	}
	name, err := statusName(req)
	if err != nil {
		return nil, err
	}

	current, err := mf.statusRepo.LiveByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("STATUS_LOOKUP_FAILED", "Failed to lookup status", err)
	}
	if current == nil {
		return nil, NewBusinessError("STATUS_NOT_FOUND", "Status not found", ErrStatusNotFound)
	}
	if current.Name == utils.LeadStatusNew && name != utils.LeadStatusNew {
		return nil, NewBusinessError("DEFAULT_STATUS_LOCKED", "The default status cannot be renamed", ErrDefaultStatusLocked)
	}

	ok, err := mf.statusRepo.Rename(ctx, id, name)
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, NewBusinessError("STATUS_ALREADY_EXISTS", "Status already exists", ErrStatusAlreadyExists)
		}
		return nil, NewBusinessError("STATUS_UPDATE_FAILED", "Failed to rename status", err)
	}
	if !ok {
		return nil, NewBusinessError("STATUS_NOT_FOUND", "Status not found", ErrStatusNotFound)
	}
	mf.invalidate(ctx)
	return &dto.MasterStatusDTO{ID: id, Name: name}, nil
}

func (mf *MasterStatusFlowImpl) DeleteStatus(ctx context.Context, actor *Principal, id uint) error {
	if !actor.IsAdmin() {
		return NewBusinessError("ACCESS_DENIED", "Only admins can manage statuses", ErrRoleNotAllowed)
	}
	current, err := mf.statusRepo.LiveByID(ctx, id)
	if err != nil {
		return NewBusinessError("STATUS_LOOKUP_FAILED", "Failed to lookup status", err)
	}
	if current == nil {
		return NewBusinessError("STATUS_NOT_FOUND", "Status not found", ErrStatusNotFound)
	}
	if current.Name == utils.LeadStatusNew {
		return NewBusinessError("DEFAULT_STATUS_LOCKED", "The default status cannot be deleted", ErrDefaultStatusLocked)
	}

	ok, err := mf.statusRepo.SoftDelete(ctx, id, utils.UTCNow())
	if err != nil {
		return NewBusinessError("STATUS_DELETE_FAILED", "Failed to delete status", err)
	}
	if !ok {
		return NewBusinessError("STATUS_NOT_FOUND", "Status not found", ErrStatusNotFound)
	}
	mf.invalidate(ctx)
	return nil
}

// EnsureDefaultStatuses seeds the "New" status every lead starts in
func (mf *MasterStatusFlowImpl) EnsureDefaultStatuses(ctx context.Context) error {
	existing, err := mf.statusRepo.LiveByName(ctx, utils.LeadStatusNew)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	err = mf.statusRepo.Save(ctx, &models.MasterStatus{Name: utils.LeadStatusNew})
	if err != nil && !repository.IsUniqueViolation(err) {
		return err
	}
	mf.invalidate(ctx)
	mf.logger.WithField("status", utils.LeadStatusNew).Info("seeded default master status")
	return nil
}

func (mf *MasterStatusFlowImpl) invalidate(ctx context.Context) {
	if mf.rc == nil {
		return
	}
	if err := mf.rc.Del(ctx, redisKey(mf.cachePrefix, utils.MasterStatusCacheKey)).Err(); err != nil {
		mf.logger.WithError(err).Warn("failed to invalidate master status cache")
	}
}

func statusName(req *dto.MasterStatusRequest) (string, error) {
	if req == nil {
		return "", NewBusinessError("STATUS_VALIDATION_FAILED", "Status name is required", ErrValidation)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > 100 {
		return "", NewBusinessError("STATUS_VALIDATION_FAILED", "Status name must be 1 to 100 characters", ErrValidation)
	}
	return name, nil
}
