package dto

import (
	"time"

	"github.com/spec-kit/guild-desk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	GuildID   string                 `json:"guild_id"`
	ChannelID string                 `json:"channel_id"`
	OwnerID   string                 `json:"owner_id"`
	Category  string                 `json:"category"`
	Priority  *domain.TicketPriority `json:"priority,omitempty"`
}

// ActionRequest payload for ticket action endpoints.
type ActionRequest struct {
	ActorID  string `json:"actor_id"`
	Priority string `json:"priority,omitempty"`
	Note     string `json:"note,omitempty"`
}

// TicketResponse represents a ticket over the wire.
type TicketResponse struct {
	ID         string                `json:"id"`
	GuildID    string                `json:"guild_id"`
	ChannelID  string                `json:"channel_id"`
	OwnerID    string                `json:"owner_id"`
	Category   string                `json:"category"`
	Status     domain.TicketStatus   `json:"status"`
	AssignedTo *string               `json:"assigned_to"`
	Locked     bool                  `json:"locked"`
	Priority   domain.TicketPriority `json:"priority"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
	ClosedAt   *time.Time            `json:"closed_at"`
	ReopenedAt *time.Time            `json:"reopened_at"`
}

// TicketNoteResponse represents an internal note.
type TicketNoteResponse struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// ActionResponse wraps the result of a ticket action.
type ActionResponse struct {
	Ticket     *TicketResponse     `json:"ticket,omitempty"`
	Note       *TicketNoteResponse `json:"note,omitempty"`
	Transcript *TranscriptResponse `json:"transcript,omitempty"`
}

// TranscriptResponse is the exported conversation record.
type TranscriptResponse struct {
	Ticket TicketResponse       `json:"ticket"`
	Notes  []TicketNoteResponse `json:"notes"`
	Audit  []AuditEntryResponse `json:"audit"`
}

// AuditEntryResponse represents one audit log entry.
type AuditEntryResponse struct {
	ID        string         `json:"id"`
	TicketID  string         `json:"ticket_id"`
	GuildID   string         `json:"guild_id"`
	ActorID   string         `json:"actor_id"`
	Action    string         `json:"action"`
	Message   string         `json:"message"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// TicketListQuery captures list filters.
type TicketListQuery struct {
	GuildID    string
	OwnerID    *string
	AssignedTo *string
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Page       int
	PageSize   int
}

// ToTicketResponse maps a domain ticket.
func ToTicketResponse(t *domain.Ticket) *TicketResponse {
	if t == nil {
		return nil
	}
	return &TicketResponse{
		ID:         t.ID,
		GuildID:    t.GuildID,
		ChannelID:  t.ChannelID,
		OwnerID:    t.OwnerID,
		Category:   t.Category,
		Status:     t.Status,
		AssignedTo: t.AssignedTo,
		Locked:     t.Locked,
		Priority:   t.Priority,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
		ClosedAt:   t.ClosedAt,
		ReopenedAt: t.ReopenedAt,
	}
}

// ToTicketNoteResponse maps a domain note.
func ToTicketNoteResponse(n *domain.TicketNote) *TicketNoteResponse {
	if n == nil {
		return nil
	}
	return &TicketNoteResponse{
		ID:        n.ID,
		TicketID:  n.TicketID,
		AuthorID:  n.AuthorID,
		Body:      n.Body,
		CreatedAt: n.CreatedAt,
	}
}

// ToAuditEntryResponse maps a domain audit entry.
func ToAuditEntryResponse(e *domain.AuditLogEntry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:        e.ID,
		TicketID:  e.TicketID,
		GuildID:   e.GuildID,
		ActorID:   e.ActorID,
		Action:    string(e.Action),
		Message:   e.Message,
		Payload:   e.Payload,
		CreatedAt: e.CreatedAt,
	}
}
