package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/guild-desk/internal/domain"
	"github.com/spec-kit/guild-desk/internal/events"
	"github.com/spec-kit/guild-desk/internal/guard"
	"github.com/spec-kit/guild-desk/internal/observability"
	"github.com/spec-kit/guild-desk/internal/ratelimit"
	"github.com/spec-kit/guild-desk/internal/repository"
	"github.com/spec-kit/guild-desk/internal/ticketlock"
	apperrors "github.com/spec-kit/guild-desk/pkg/util"
)

// Action names accepted by HandleAction.
const (
	ActionClaim    = "claim"
	ActionRelease  = "release"
	ActionClose    = "close"
	ActionCancel   = "cancel"
	ActionReopen   = "reopen"
	ActionLock     = "lock"
	ActionPriority = "priority"
	ActionNote     = "note"
	ActionExport   = "export"
	ActionArchive  = "archive"
)

// ActionRequest describes one inbound ticket action. Either TicketID or
// ChannelID identifies the ticket.
type ActionRequest struct {
	TicketID  string
	ChannelID string
	ActorID   string
	Action    string
	Priority  domain.TicketPriority
	NoteBody  string
}

// ActionResult carries the outcome of a dispatched action.
type ActionResult struct {
	Ticket     *domain.Ticket
	Note       *domain.TicketNote
	Transcript *Transcript
}

// CreateTicketInput describes ticket creation. The gateway has already
// created the channel; if the repository insert fails the gateway owns
// removing that channel again.
type CreateTicketInput struct {
	GuildID   string
	ChannelID string
	OwnerID   string
	Category  string
	Priority  domain.TicketPriority
}

// ActionService is the single entrypoint for ticket mutations. It runs
// the admission gate, the creation guard (creation only), then executes
// the lifecycle transition under the per-ticket lock.
type ActionService struct {
	limiter   *ratelimit.Limiter
	creation  *guard.CreationGuard
	locks     *ticketlock.Manager
	lifecycle *LifecycleService
	staff     StaffResolver
	tickets   repository.TicketRepository
	audit     *AuditService
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// ActionDependencies bundles collaborators for the dispatcher.
type ActionDependencies struct {
	Limiter    *ratelimit.Limiter
	Creation   *guard.CreationGuard
	Locks      *ticketlock.Manager
	Lifecycle  *LifecycleService
	Staff      StaffResolver
	TicketRepo repository.TicketRepository
	Audit      *AuditService
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewActionService constructs the dispatcher.
func NewActionService(deps ActionDependencies) *ActionService {
	return &ActionService{
		limiter:   deps.Limiter,
		creation:  deps.Creation,
		locks:     deps.Locks,
		lifecycle: deps.Lifecycle,
		staff:     deps.Staff,
		tickets:   deps.TicketRepo,
		audit:     deps.Audit,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
	}
}

// HandleAction validates, rate-limits and executes one ticket action.
// Admission and staff resolution happen before lock acquisition; the
// lifecycle transition itself runs inside the ticket's FIFO lock.
func (s *ActionService) HandleAction(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	start := time.Now()
	result, err := s.dispatch(ctx, req)
	s.metrics.RecordAction(req.Action, outcomeOf(err), time.Since(start))
	return result, err
}

func (s *ActionService) dispatch(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	ticket, err := s.resolveTicket(ctx, req)
	if err != nil {
		return nil, err
	}

	// Admission happens before lock acquisition and only delays; a
	// request that clears the gate may still queue behind other actions
	// on the same ticket.
	rateKey := ticket.GuildID + ":" + req.ActorID + ":" + req.Action
	if err := s.limiter.Acquire(ctx, rateKey, 1); err != nil {
		return nil, apperrors.MapError(err)
	}

	isStaff, err := s.staff.IsStaff(ctx, ticket.GuildID, req.ActorID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	actor := domain.Actor{ID: req.ActorID, IsStaff: isStaff}

	var result ActionResult
	err = s.locks.WithTicketLock(ctx, ticket.ID, func(ctx context.Context) error {
		switch req.Action {
		case ActionClaim:
			result.Ticket, err = s.lifecycle.Claim(ctx, actor, ticket.ID)
		case ActionRelease:
			result.Ticket, err = s.lifecycle.Release(ctx, actor, ticket.ID)
		case ActionClose:
			result.Ticket, err = s.lifecycle.Close(ctx, actor, ticket.ID)
		case ActionCancel:
			result.Ticket, err = s.lifecycle.Cancel(ctx, actor, ticket.ID)
		case ActionReopen:
			result.Ticket, err = s.lifecycle.Reopen(ctx, actor, ticket.ID)
		case ActionLock:
			result.Ticket, err = s.lifecycle.ToggleLock(ctx, actor, ticket.ID)
		case ActionPriority:
			result.Ticket, err = s.lifecycle.SetPriority(ctx, actor, ticket.ID, req.Priority)
		case ActionNote:
			result.Note, err = s.lifecycle.AddNote(ctx, actor, ticket.ID, req.NoteBody)
		case ActionExport:
			result.Transcript, err = s.lifecycle.Export(ctx, actor, ticket.ID)
		case ActionArchive:
			result.Ticket, err = s.lifecycle.Archive(ctx, actor, ticket.ID)
		default:
			err = apperrors.NewValidationError("unknown action", map[string]any{"action": req.Action})
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateTicket runs the idempotent creation path: a non-consuming
// admission check that rejects instead of delaying, then the creation
// guard, then the insert.
func (s *ActionService) CreateTicket(ctx context.Context, input CreateTicketInput) (*domain.Ticket, error) {
	if input.GuildID == "" || input.ChannelID == "" || input.OwnerID == "" {
		return nil, apperrors.NewValidationError("guild_id, channel_id, owner_id required", nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityNormal
	}
	if !domain.ValidPriority(priority) {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": priority})
	}

	rateKey := input.GuildID + ":" + input.OwnerID + ":create"
	if decision := s.limiter.Check(rateKey); !decision.Allowed {
		s.metrics.RecordRateLimited()
		return nil, apperrors.NewAdmissionDenied(decision.Wait.Milliseconds())
	}
	if err := s.limiter.Acquire(ctx, rateKey, 1); err != nil {
		return nil, apperrors.MapError(err)
	}

	ticket, err := s.creation.TryCreate(ctx, input.GuildID, input.OwnerID, func(ctx context.Context) (*domain.Ticket, error) {
		ticket := &domain.Ticket{
			ID:        uuid.NewString(),
			GuildID:   input.GuildID,
			ChannelID: input.ChannelID,
			OwnerID:   input.OwnerID,
			Category:  input.Category,
			Status:    domain.TicketStatusOpen,
			Priority:  priority,
		}
		if err := s.tickets.Create(ctx, ticket); err != nil {
			return nil, apperrors.MapError(err)
		}
		s.audit.Record(ctx, ticket.ID, ticket.GuildID, input.OwnerID, domain.AuditActionCreate, "ticket created", map[string]any{
			"category": ticket.Category,
			"priority": ticket.Priority,
		})
		s.lifecycle.publish(ctx, events.EventTicketCreated, ticket, domain.Actor{ID: input.OwnerID}, events.TicketCreatedPayload{
			ChannelID: ticket.ChannelID,
			OwnerID:   ticket.OwnerID,
			Category:  ticket.Category,
			Priority:  ticket.Priority,
		})
		return ticket, nil
	})
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeDuplicateTicket {
			s.metrics.RecordDuplicateCreation()
		}
		return nil, err
	}
	return ticket, nil
}

// GetTicket fetches a ticket by id for read-only views.
func (s *ActionService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// ListTickets returns tickets matching the filter.
func (s *ActionService) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	return s.tickets.ListWithFilter(ctx, filter)
}

// QueryAudit returns the action trail for a ticket.
func (s *ActionService) QueryAudit(ctx context.Context, ticketID string, limit, offset int) ([]domain.AuditLogEntry, error) {
	return s.audit.Query(ctx, ticketID, limit, offset)
}

func (s *ActionService) resolveTicket(ctx context.Context, req ActionRequest) (*domain.Ticket, error) {
	var (
		ticket *domain.Ticket
		err    error
	)
	switch {
	case req.TicketID != "":
		ticket, err = s.tickets.GetByID(ctx, req.TicketID)
	case req.ChannelID != "":
		ticket, err = s.tickets.GetByChannel(ctx, req.ChannelID)
	default:
		return nil, apperrors.NewValidationError("ticket_id or channel_id required", nil)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", nil)
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	return apperrors.CodeOf(err)
}
