package businessflow

import (
	"context"
	"strings"

	"github.com/amirphl/leadflow/app/dto"
	"github.com/amirphl/leadflow/models"
	"github.com/amirphl/leadflow/repository"
	"github.com/amirphl/leadflow/utils"
)

// ActivityFlow records follow-ups and notes against a lead
type ActivityFlow interface {
	AddFollowUp(ctx context.Context, actor *Principal, leadID uint, req *dto.AddFollowUpRequest) (*dto.FollowUpDTO, error)
	ListFollowUps(ctx context.Context, actor *Principal, leadID uint) ([]dto.FollowUpDTO, error)
	AddNote(ctx context.Context, actor *Principal, leadID uint, req *dto.AddNoteRequest) (*dto.NoteDTO, error)
	ListNotes(ctx context.Context, actor *Principal, leadID uint) ([]dto.NoteDTO, error)
}

// ActivityFlowImpl implements ActivityFlow
type ActivityFlowImpl struct {
	customerRepo repository.CustomerRepository
	followUpRepo repository.FollowUpRepository
	noteRepo     repository.NoteRepository
}

func NewActivityFlow(customerRepo repository.CustomerRepository, followUpRepo repository.FollowUpRepository, noteRepo repository.NoteRepository) ActivityFlow {
	return &ActivityFlowImpl{
		customerRepo: customerRepo,
		followUpRepo: followUpRepo,
		noteRepo:     noteRepo,
	}
}

func (af *ActivityFlowImpl) AddFollowUp(ctx context.Context, actor *Principal, leadID uint, req *dto.AddFollowUpRequest) (*dto.FollowUpDTO, error) {
	if req == nil || strings.TrimSpace(req.Task) == "" {
		return nil, NewBusinessError("FOLLOW_UP_VALIDATION_FAILED", "Task is required", ErrValidation)
	}
	if !utils.IsValidFollowUpDate(req.FollowUpDate) {
		return nil, NewBusinessError("FOLLOW_UP_VALIDATION_FAILED", "Follow up date must be DD/MM/YYYY", ErrInvalidFollowUpDate)
	}
	if req.CallStatus != models.CallStatusConnected && req.CallStatus != models.CallStatusNotConnected {
		return nil, NewBusinessError("FOLLOW_UP_VALIDATION_FAILED", "Call status must be connected or not connected", ErrValidation)
	}

	lead, err := loadVisibleLead(ctx, af.customerRepo, actor, leadID)
	if err != nil {
		return nil, err
	}

	entry := &models.FollowUpEntry{
		Task:         strings.TrimSpace(req.Task),
		Notes:        req.Notes,
		FollowUpDate: req.FollowUpDate,
		CallStatus:   req.CallStatus,
		AddedByID:    actor.ID,
		AddedByName:  actor.Name,
		AddedByRole:  actor.Role,
	}
	if err := af.followUpRepo.AppendEntry(ctx, lead.ID, entry); err != nil {
		return nil, NewBusinessError("FOLLOW_UP_CREATE_FAILED", "Failed to add follow up", err)
	}
	out := toFollowUpDTO(entry)
	return &out, nil
}

func (af *ActivityFlowImpl) ListFollowUps(ctx context.Context, actor *Principal, leadID uint) ([]dto.FollowUpDTO, error) {
	lead, err := loadVisibleLead(ctx, af.customerRepo, actor, leadID)
	if err != nil {
		return nil, err
	}
	entries, err := af.followUpRepo.ListEntries(ctx, lead.ID)
	if err != nil {
		return nil, NewBusinessError("FOLLOW_UP_LIST_FAILED", "Failed to list follow ups", err)
	}
	out := make([]dto.FollowUpDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, toFollowUpDTO(e))
	}
	return out, nil
}

func (af *ActivityFlowImpl) AddNote(ctx context.Context, actor *Principal, leadID uint, req *dto.AddNoteRequest) (*dto.NoteDTO, error) {
	if req == nil || strings.TrimSpace(req.Message) == "" {
		return nil, NewBusinessError("NOTE_VALIDATION_FAILED", "Message is required", ErrValidation)
	}

	lead, err := loadVisibleLead(ctx, af.customerRepo, actor, leadID)
	if err != nil {
		return nil, err
	}

	entry := &models.NoteEntry{
		Message:     strings.TrimSpace(req.Message),
		AddedByID:   actor.ID,
		AddedByName: actor.Name,
		AddedByRole: actor.Role,
	}
	if err := af.noteRepo.AppendEntry(ctx, lead.ID, entry); err != nil {
		return nil, NewBusinessError("NOTE_CREATE_FAILED", "Failed to add note", err)
	}
	out := toNoteDTO(entry)
	return &out, nil
}

func (af *ActivityFlowImpl) ListNotes(ctx context.Context, actor *Principal, leadID uint) ([]dto.NoteDTO, error) {
	lead, err := loadVisibleLead(ctx, af.customerRepo, actor, leadID)
	if err != nil {
		return nil, err
	}
	entries, err := af.noteRepo.ListEntries(ctx, lead.ID)
	if err != nil {
		return nil, NewBusinessError("NOTE_LIST_FAILED", "Failed to list notes", err)
	}
	out := make([]dto.NoteDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, toNoteDTO(e))
	}
	return out, nil
}

func toFollowUpDTO(e *models.FollowUpEntry) dto.FollowUpDTO {
	return dto.FollowUpDTO{
		ID:           e.ID,
		Task:         e.Task,
		Notes:        e.Notes,
		FollowUpDate: e.FollowUpDate,
		CallStatus:   e.CallStatus,
		AddedBy:      dto.ActorDTO{ID: e.AddedByID.String(), Name: e.AddedByName, Role: e.AddedByRole},
		CreatedAt:    formatTime(e.CreatedAt),
	}
}

func toNoteDTO(e *models.NoteEntry) dto.NoteDTO {
	return dto.NoteDTO{
		ID:        e.ID,
		Message:   e.Message,
		AddedBy:   dto.ActorDTO{ID: e.AddedByID.String(), Name: e.AddedByName, Role: e.AddedByRole},
		CreatedAt: formatTime(e.CreatedAt),
	}
}
