package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/guild-desk/internal/domain"
	"github.com/spec-kit/guild-desk/internal/events"
	"github.com/spec-kit/guild-desk/internal/repository"
	apperrors "github.com/spec-kit/guild-desk/pkg/util"
)

// LifecycleService is the authoritative ticket state machine. It is the
// only code allowed to write Ticket.Status; every method assumes the
// caller holds the per-ticket lock. Illegal or already-satisfied
// transitions come back as INVALID_TRANSITION results without mutating
// anything.
//
// A closed or cancelled ticket keeps its last assignee for the audit
// trail; only release and reopen clear it.
type LifecycleService struct {
	tickets    repository.TicketRepository
	audit      *AuditService
	dispatcher events.Dispatcher
}

// LifecycleDependencies bundles collaborators for the state machine.
type LifecycleDependencies struct {
	TicketRepo repository.TicketRepository
	Audit      *AuditService
	Dispatcher events.Dispatcher
}

// NewLifecycleService constructs the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	return &LifecycleService{
		tickets:    deps.TicketRepo,
		audit:      deps.Audit,
		dispatcher: deps.Dispatcher,
	}
}

// Transcript is the serialized history returned by Export.
type Transcript struct {
	Ticket *domain.Ticket         `json:"ticket"`
	Notes  []domain.TicketNote    `json:"notes"`
	Audit  []domain.AuditLogEntry `json:"audit"`
}

// Claim assigns an open, unassigned ticket to the acting staff member.
func (s *LifecycleService) Claim(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	if !actor.IsStaff {
		return nil, apperrors.NewForbidden("staff role required")
	}
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !ticket.Status.IsOpen() {
		return nil, apperrors.NewInvalidTransition("ticket not open", statusDetail(ticket))
	}
	if ticket.AssignedTo != nil {
		return nil, apperrors.NewInvalidTransition("ticket already claimed", map[string]any{
			"assigned_to": *ticket.AssignedTo,
		})
	}

	ticket.Status = domain.TicketStatusClaimed
	assignee := actor.ID
	ticket.AssignedTo = &assignee
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.audit.Record(ctx, ticket.ID, ticket.GuildID, actor.ID, domain.AuditActionClaim, "ticket claimed", nil)
	s.publish(ctx, events.EventTicketClaimed, ticket, actor, events.TicketClaimPayload{AssignedTo: ticket.AssignedTo})
	return ticket, nil
}

// Release returns a claimed ticket to the unassigned pool. The assignee
// may release their own claim; any staff member may release anyone's.
func (s *LifecycleService) Release(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !ticket.Status.IsOpen() {
		return nil, apperrors.NewInvalidTransition("ticket not open", statusDetail(ticket))
	}
	if ticket.AssignedTo == nil {
		return nil, apperrors.NewInvalidTransition("ticket not claimed", nil)
	}
	if *ticket.AssignedTo != actor.ID && !actor.IsStaff {
		return nil, apperrors.NewForbidden("only the assignee or staff may release")
	}

	ticket.Status = domain.TicketStatusOpen
	ticket.AssignedTo = nil
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.audit.Record(ctx, ticket.ID, ticket.GuildID, actor.ID, domain.AuditActionRelease, "claim released", nil)
	s.publish(ctx, events.EventTicketReleased, ticket, actor, events.TicketClaimPayload{})
	return ticket, nil
}

// Close finalizes an open ticket. The assignee is retained for audit.
func (s *LifecycleService) Close(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	if !actor.IsStaff {
		return nil, apperrors.NewForbidden("staff role required")
	}
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status == domain.TicketStatusClosed {
		return nil, apperrors.NewInvalidTransition("ticket already closed", nil)
	}
	if !ticket.Status.IsOpen() {
		return nil, apperrors.NewInvalidTransition("ticket not open", statusDetail(ticket))
	}

	oldStatus := ticket.Status
	now := time.Now()
	ticket.Status = domain.TicketStatusClosed
	ticket.ClosedAt = &now
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.audit.Record(ctx, ticket.ID, ticket.GuildID, actor.ID, domain.AuditActionClose, "ticket closed", nil)
	s.publish(ctx, events.EventTicketClosed, ticket, actor, events.TicketStatusPayload{
		OldStatus: oldStatus,
		NewStatus: ticket.Status,
	})
	return ticket, nil
}

// Cancel ends a ticket without resolution. The owner may cancel their
// own ticket; staff may cancel any.
func (s *LifecycleService) Cancel(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.OwnerID != actor.ID && !actor.IsStaff {
		return nil, apperrors.NewForbidden("only the owner or staff may cancel")
	}
	if ticket.Status == domain.TicketStatusCancelled {
		return nil, apperrors.NewInvalidTransition("ticket already cancelled", nil)
	}
	if !ticket.Status.IsOpen() {
		return nil, apperrors.NewInvalidTransition("ticket not open", statusDetail(ticket))
	}

	oldStatus := ticket.Status
	now := time.Now()
	ticket.Status = domain.TicketStatusCancelled
	ticket.ClosedAt = &now
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.audit.Record(ctx, ticket.ID, ticket.GuildID, actor.ID, domain.AuditActionCancel, "ticket cancelled", nil)
	s.publish(ctx, events.EventTicketCancelled, ticket, actor, events.TicketStatusPayload{
		OldStatus: oldStatus,
		NewStatus: ticket.Status,
	})
	return ticket, nil
}

// Reopen returns a closed ticket to the open pool, unassigned.
func (s *LifecycleService) Reopen(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	if !actor.IsStaff {
		return nil, apperrors.NewForbidden("staff role required")
	}
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status != domain.TicketStatusClosed {
		return nil, apperrors.NewInvalidTransition("ticket not closed", statusDetail(ticket))
	}

	now := time.Now()
	ticket.Status = domain.TicketStatusOpen
	ticket.AssignedTo = nil
	ticket.ReopenedAt = &now
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.audit.Record(ctx, ticket.ID, ticket.GuildID, actor.ID, domain.AuditActionReopen, "ticket reopened", nil)
	s.publish(ctx, events.EventTicketReopened, ticket, actor, events.TicketStatusPayload{
		OldStatus: domain.TicketStatusClosed,
		NewStatus: ticket.Status,
	})
	return ticket, nil
}

// ToggleLock flips the channel write restriction on a live ticket. The
// flag is independent of status; enforcement of channel permissions is
// the gateway's job.
func (s *LifecycleService) ToggleLock(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	if !actor.IsStaff {
		return nil, apperrors.NewForbidden("staff role required")
	}
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status.IsFinal() {
		return nil, apperrors.NewInvalidTransition("ticket not open", statusDetail(ticket))
	}

	ticket.Locked = !ticket.Locked
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	action := domain.AuditActionLock
	message := "channel locked"
	if !ticket.Locked {
		action = domain.AuditActionUnlock
		message = "channel unlocked"
	}
	s.audit.Record(ctx, ticket.ID, ticket.GuildID, actor.ID, action, message, nil)
	s.publish(ctx, events.EventTicketLockToggled, ticket, actor, events.TicketLockPayload{Locked: ticket.Locked})
	return ticket, nil
}

// SetPriority changes the urgency label. Legal in every status.
func (s *LifecycleService) SetPriority(ctx context.Context, actor domain.Actor, ticketID string, priority domain.TicketPriority) (*domain.Ticket, error) {
	if !actor.IsStaff {
		return nil, apperrors.NewForbidden("staff role required")
	}
	if !domain.ValidPriority(priority) {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": priority})
	}
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	oldPriority := ticket.Priority
	ticket.Priority = priority
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.audit.Record(ctx, ticket.ID, ticket.GuildID, actor.ID, domain.AuditActionPriority, "priority changed", map[string]any{
		"old": oldPriority,
		"new": priority,
	})
	s.publish(ctx, events.EventTicketPriorityChanged, ticket, actor, events.TicketPriorityPayload{
		OldPriority: oldPriority,
		NewPriority: priority,
	})
	return ticket, nil
}

// AddNote appends a staff annotation. Notes only grow; nothing edits or
// removes them.
func (s *LifecycleService) AddNote(ctx context.Context, actor domain.Actor, ticketID, body string) (*domain.TicketNote, error) {
	if !actor.IsStaff {
		return nil, apperrors.NewForbidden("staff role required")
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("note body required", nil)
	}
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	note := &domain.TicketNote{
		ID:       uuid.NewString(),
		TicketID: ticket.ID,
		AuthorID: actor.ID,
		Body:     body,
	}
	if err := s.tickets.AppendNote(ctx, note); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.audit.Record(ctx, ticket.ID, ticket.GuildID, actor.ID, domain.AuditActionNote, "note added", map[string]any{
		"note_id": note.ID,
	})
	s.publish(ctx, events.EventTicketNoteAdded, ticket, actor, events.TicketNotePayload{
		NoteID:      note.ID,
		BodyPreview: preview(body, 120),
	})
	return note, nil
}

// Archive moves a finalized ticket to long-term retention, typically
// after the gateway deleted its channel.
func (s *LifecycleService) Archive(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	if !actor.IsStaff {
		return nil, apperrors.NewForbidden("staff role required")
	}
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status == domain.TicketStatusArchived {
		return nil, apperrors.NewInvalidTransition("ticket already archived", nil)
	}
	if ticket.Status != domain.TicketStatusClosed && ticket.Status != domain.TicketStatusCancelled {
		return nil, apperrors.NewInvalidTransition("ticket not finalized", statusDetail(ticket))
	}

	oldStatus := ticket.Status
	ticket.Status = domain.TicketStatusArchived
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.audit.Record(ctx, ticket.ID, ticket.GuildID, actor.ID, domain.AuditActionArchive, "ticket archived", nil)
	s.publish(ctx, events.EventTicketArchived, ticket, actor, events.TicketStatusPayload{
		OldStatus: oldStatus,
		NewStatus: ticket.Status,
	})
	return ticket, nil
}

// Export serializes the ticket's history for transcript delivery. Only
// the owner and staff may export, and only while the ticket is open.
func (s *LifecycleService) Export(ctx context.Context, actor domain.Actor, ticketID string) (*Transcript, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.OwnerID != actor.ID && !actor.IsStaff {
		return nil, apperrors.NewForbidden("only the owner or staff may export")
	}
	if !ticket.Status.IsOpen() {
		return nil, apperrors.NewInvalidTransition("ticket not open", statusDetail(ticket))
	}

	notes, err := s.tickets.ListNotes(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	entries, err := s.audit.Query(ctx, ticket.ID, 1000, 0)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.audit.Record(ctx, ticket.ID, ticket.GuildID, actor.ID, domain.AuditActionExport, "transcript exported", nil)
	s.publish(ctx, events.EventTicketExported, ticket, actor, nil)
	return &Transcript{Ticket: ticket, Notes: notes, Audit: entries}, nil
}

func (s *LifecycleService) getTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *LifecycleService) publish(ctx context.Context, eventType events.EventType, ticket *domain.Ticket, actor domain.Actor, payload any) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticket.ID,
		GuildID:   ticket.GuildID,
		ActorID:   actor.ID,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

func statusDetail(ticket *domain.Ticket) map[string]any {
	return map[string]any{"status": ticket.Status}
}

// preview truncates on rune boundaries so multi-byte text never splits
// mid-character in event payloads.
func preview(body string, max int) string {
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
