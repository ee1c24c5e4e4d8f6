package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/guild-desk/internal/domain"
	"github.com/spec-kit/guild-desk/internal/repository"
)

// AuditService appends to the ticket action trail. Recording is
// best-effort: a failed append is logged and swallowed so it can never
// make a committed state transition appear failed.
type AuditService struct {
	entries repository.AuditLogRepository
	logger  *zap.Logger
}

// NewAuditService constructs the service.
func NewAuditService(entries repository.AuditLogRepository, logger *zap.Logger) *AuditService {
	return &AuditService{entries: entries, logger: logger}
}

// Record appends one entry for a mutating action.
func (a *AuditService) Record(ctx context.Context, ticketID, guildID, actorID string, action domain.AuditAction, message string, payload map[string]any) {
	if a == nil || a.entries == nil {
		return
	}
	entry := &domain.AuditLogEntry{
		ID:       uuid.NewString(),
		TicketID: ticketID,
		GuildID:  guildID,
		ActorID:  actorID,
		Action:   action,
		Message:  message,
		Payload:  payload,
	}
	// The transition already committed; a cancelled request context must
	// not lose its audit entry.
	if err := a.entries.Create(context.WithoutCancel(ctx), entry); err != nil {
		a.logger.Warn("audit append failed",
			zap.String("ticket_id", ticketID),
			zap.String("action", string(action)),
			zap.Error(err))
	}
}

// Query returns audit entries for a ticket in chronological order.
func (a *AuditService) Query(ctx context.Context, ticketID string, limit, offset int) ([]domain.AuditLogEntry, error) {
	return a.entries.ListByTicket(ctx, ticketID, limit, offset)
}
