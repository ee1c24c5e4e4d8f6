package events

import (
	"time"

	"github.com/spec-kit/guild-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated         EventType = "ticket_created"
	EventTicketClaimed         EventType = "ticket_claimed"
	EventTicketReleased        EventType = "ticket_released"
	EventTicketClosed          EventType = "ticket_closed"
	EventTicketCancelled       EventType = "ticket_cancelled"
	EventTicketReopened        EventType = "ticket_reopened"
	EventTicketLockToggled     EventType = "ticket_lock_toggled"
	EventTicketPriorityChanged EventType = "ticket_priority_changed"
	EventTicketNoteAdded       EventType = "ticket_note_added"
	EventTicketArchived        EventType = "ticket_archived"
	EventTicketExported        EventType = "ticket_exported"
)

// Event represents a domain event emitted after a successful ticket
// mutation. Publication is fire-and-forget: handler failures never roll
// back the transition that produced the event.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id"`
	GuildID   string    `json:"guild_id"`
	ActorID   string    `json:"actor_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	ChannelID string                `json:"channel_id"`
	OwnerID   string                `json:"owner_id"`
	Category  string                `json:"category"`
	Priority  domain.TicketPriority `json:"priority"`
}

// TicketClaimPayload covers claim and release.
type TicketClaimPayload struct {
	AssignedTo *string `json:"assigned_to,omitempty"`
}

// TicketStatusPayload covers close, cancel, reopen and archive.
type TicketStatusPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketLockPayload payload.
type TicketLockPayload struct {
	Locked bool `json:"locked"`
}

// TicketPriorityPayload payload.
type TicketPriorityPayload struct {
	OldPriority domain.TicketPriority `json:"old_priority"`
	NewPriority domain.TicketPriority `json:"new_priority"`
}

// TicketNotePayload payload.
type TicketNotePayload struct {
	NoteID      string `json:"note_id"`
	BodyPreview string `json:"body_preview"`
}
