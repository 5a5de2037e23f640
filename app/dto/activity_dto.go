package dto

// AddFollowUpRequest appends a follow-up to a lead
type AddFollowUpRequest struct {
	Task         string `json:"task" validate:"required,min=1,max=255"`
	Notes        string `json:"notes" validate:"omitempty,max=5000"`
	FollowUpDate string `json:"follow_up_date" validate:"required,followupdate"`
	CallStatus   string `json:"call_status" validate:"required,oneof=connected 'not connected'"`
}

// FollowUpDTO is one follow-up entry
type FollowUpDTO struct {
	ID           uint     `json:"id"`
	Task         string   `json:"task"`
	Notes        string   `json:"notes"`
	FollowUpDate string   `json:"follow_up_date"`
	CallStatus   string   `json:"call_status"`
	AddedBy      ActorDTO `json:"added_by"`
	CreatedAt    string   `json:"createdAt"`
}

// AddNoteRequest appends a note to a lead
type AddNoteRequest struct {
	Message string `json:"message" validate:"required,min=1,max=5000"`
}

// NoteDTO is one note entry
type NoteDTO struct {
	ID        uint     `json:"id"`
	Message   string   `json:"message"`
	AddedBy   ActorDTO `json:"added_by"`
	CreatedAt string   `json:"created_at"`
}
