// Package guard implements the idempotent ticket-creation path. It
// prevents duplicate ticket channels under double-clicks and concurrent
// submissions: of N simultaneous attempts for the same (guild, owner),
// exactly one creates a ticket and the rest receive a typed duplicate
// rejection.
package guard

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/guild-desk/internal/domain"
	apperrors "github.com/spec-kit/guild-desk/pkg/util"
)

// OpenTicketFinder is the slice of the ticket repository the guard
// needs: the open-ticket-per-owner uniqueness check.
type OpenTicketFinder interface {
	FindOpenByOwner(ctx context.Context, guildID, ownerID string) (*domain.Ticket, error)
}

// CreationGuard combines a TTL creation lock with a repository
// uniqueness check before invoking the side-effecting create function.
type CreationGuard struct {
	locker  KeyLocker
	tickets OpenTicketFinder
	lockTTL time.Duration
	logger  *zap.Logger
}

// NewCreationGuard constructs the guard.
func NewCreationGuard(locker KeyLocker, tickets OpenTicketFinder, lockTTL time.Duration, logger *zap.Logger) *CreationGuard {
	if lockTTL <= 0 {
		lockTTL = 5 * time.Second
	}
	return &CreationGuard{locker: locker, tickets: tickets, lockTTL: lockTTL, logger: logger}
}

// TryCreate runs createFn if no creation is in flight for the same
// (guild, owner) and the owner has no open ticket. The creation lock is
// released on every exit path; its TTL covers a crashed process.
//
// createFn performs the side-effecting resource creation followed by
// the repository insert. If it fails after partial side effects, the
// caller owns rolling those back before TryCreate returns — the guard
// only serializes, it does not compensate.
func (g *CreationGuard) TryCreate(ctx context.Context, guildID, ownerID string, createFn func(ctx context.Context) (*domain.Ticket, error)) (*domain.Ticket, error) {
	key := creationKey(guildID, ownerID)

	acquired, err := g.locker.TryLock(ctx, key, g.lockTTL)
	if err != nil {
		// A broken locker (e.g. Redis outage) degrades the guard to the
		// repository check alone rather than blocking all creation.
		g.logger.Warn("creation lock unavailable", zap.String("key", key), zap.Error(err))
	} else if !acquired {
		return nil, apperrors.NewDuplicateTicket("a ticket is already being created", map[string]any{
			"guild_id": guildID,
			"owner_id": ownerID,
		})
	} else {
		defer func() {
			if err := g.locker.Unlock(context.WithoutCancel(ctx), key); err != nil {
				g.logger.Warn("creation lock release failed", zap.String("key", key), zap.Error(err))
			}
		}()
	}

	existing, err := g.tickets.FindOpenByOwner(ctx, guildID, ownerID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}
	if existing != nil {
		return nil, apperrors.NewDuplicateTicket("owner already has an open ticket", map[string]any{
			"guild_id":   guildID,
			"owner_id":   ownerID,
			"ticket_id":  existing.ID,
			"channel_id": existing.ChannelID,
		})
	}

	return createFn(ctx)
}

func creationKey(guildID, ownerID string) string {
	return guildID + ":" + ownerID
}
