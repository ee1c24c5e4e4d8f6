package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/guild-desk/internal/domain"
	"github.com/spec-kit/guild-desk/internal/events"
	"github.com/spec-kit/guild-desk/internal/guard"
	"github.com/spec-kit/guild-desk/internal/ratelimit"
	"github.com/spec-kit/guild-desk/internal/ticketlock"
	apperrors "github.com/spec-kit/guild-desk/pkg/util"
)

type staticStaffResolver struct {
	staff map[string]bool
}

func (r *staticStaffResolver) IsStaff(ctx context.Context, guildID, userID string) (bool, error) {
	return r.staff[userID], nil
}

type actionFixture struct {
	service *ActionService
	tickets *memoryTicketRepo
	audit   *memoryAuditRepo
}

func newActionFixture(t *testing.T, rateCfg ratelimit.Config) *actionFixture {
	t.Helper()
	if rateCfg.Capacity == 0 {
		rateCfg = ratelimit.Config{Capacity: 100, RefillPerSecond: 100}
	}
	limiter := ratelimit.New(rateCfg)
	t.Cleanup(limiter.Close)

	tickets := newMemoryTicketRepo()
	audit := &memoryAuditRepo{}
	auditService := NewAuditService(audit, zap.NewNop())
	lifecycle := NewLifecycleService(LifecycleDependencies{
		TicketRepo: tickets,
		Audit:      auditService,
		Dispatcher: events.NewInMemoryDispatcher(),
	})
	svc := NewActionService(ActionDependencies{
		Limiter:    limiter,
		Creation:   guard.NewCreationGuard(guard.NewMemoryLocker(), tickets, time.Second, zap.NewNop()),
		Locks:      ticketlock.NewManager(),
		Lifecycle:  lifecycle,
		Staff:      &staticStaffResolver{staff: map[string]bool{"staff-1": true}},
		TicketRepo: tickets,
		Audit:      auditService,
		Logger:     zap.NewNop(),
	})
	return &actionFixture{service: svc, tickets: tickets, audit: audit}
}

func TestCreateTicketHappyPath(t *testing.T) {
	f := newActionFixture(t, ratelimit.Config{})

	ticket, err := f.service.CreateTicket(context.Background(), CreateTicketInput{
		GuildID:   "g1",
		ChannelID: "c1",
		OwnerID:   "owner-1",
		Category:  "support",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, ticket.ID)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, domain.TicketPriorityNormal, ticket.Priority, "priority defaults when omitted")
	assert.Equal(t, []domain.AuditAction{domain.AuditActionCreate}, f.audit.actions())
}

func TestCreateTicketValidatesInput(t *testing.T) {
	f := newActionFixture(t, ratelimit.Config{})

	_, err := f.service.CreateTicket(context.Background(), CreateTicketInput{GuildID: "g1"})
	assert.Equal(t, apperrors.CodeValidationFailed, apperrors.CodeOf(err))

	_, err = f.service.CreateTicket(context.Background(), CreateTicketInput{
		GuildID:   "g1",
		ChannelID: "c1",
		OwnerID:   "owner-1",
		Priority:  domain.TicketPriority("BOGUS"),
	})
	assert.Equal(t, apperrors.CodeValidationFailed, apperrors.CodeOf(err))
}

func TestCreateTicketRejectsSecondOpenTicket(t *testing.T) {
	f := newActionFixture(t, ratelimit.Config{})
	input := CreateTicketInput{GuildID: "g1", ChannelID: "c1", OwnerID: "owner-1"}
	_, err := f.service.CreateTicket(context.Background(), input)
	require.NoError(t, err)

	input.ChannelID = "c2"
	_, err = f.service.CreateTicket(context.Background(), input)

	assert.Equal(t, apperrors.CodeDuplicateTicket, apperrors.CodeOf(err))
}

func TestCreateTicketAdmissionDenied(t *testing.T) {
	f := newActionFixture(t, ratelimit.Config{Capacity: 1, RefillPerSecond: 0.0001})
	input := CreateTicketInput{GuildID: "g1", ChannelID: "c1", OwnerID: "owner-1"}
	_, err := f.service.CreateTicket(context.Background(), input)
	require.NoError(t, err)

	// The owner's bucket is empty, and creation rejects instead of
	// delaying the caller.
	_, err = f.service.CreateTicket(context.Background(), CreateTicketInput{
		GuildID:   "g1",
		ChannelID: "c2",
		OwnerID:   "owner-1",
	})

	require.Error(t, err)
	assert.Equal(t, apperrors.CodeAdmissionDenied, apperrors.CodeOf(err))
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Contains(t, domainErr.Details, "retry_after_ms")
}

func TestHandleActionUnknownAction(t *testing.T) {
	f := newActionFixture(t, ratelimit.Config{})
	_, err := f.service.CreateTicket(context.Background(), CreateTicketInput{GuildID: "g1", ChannelID: "c1", OwnerID: "owner-1"})
	require.NoError(t, err)

	_, err = f.service.HandleAction(context.Background(), ActionRequest{
		ChannelID: "c1",
		ActorID:   "staff-1",
		Action:    "promote",
	})

	assert.Equal(t, apperrors.CodeValidationFailed, apperrors.CodeOf(err))
}

func TestHandleActionRequiresTicketReference(t *testing.T) {
	f := newActionFixture(t, ratelimit.Config{})

	_, err := f.service.HandleAction(context.Background(), ActionRequest{ActorID: "staff-1", Action: ActionClaim})

	assert.Equal(t, apperrors.CodeValidationFailed, apperrors.CodeOf(err))
}

func TestHandleActionUnknownTicket(t *testing.T) {
	f := newActionFixture(t, ratelimit.Config{})

	_, err := f.service.HandleAction(context.Background(), ActionRequest{
		TicketID: "missing",
		ActorID:  "staff-1",
		Action:   ActionClaim,
	})

	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
}

func TestHandleActionClaimByChannel(t *testing.T) {
	f := newActionFixture(t, ratelimit.Config{})
	created, err := f.service.CreateTicket(context.Background(), CreateTicketInput{GuildID: "g1", ChannelID: "c1", OwnerID: "owner-1"})
	require.NoError(t, err)

	result, err := f.service.HandleAction(context.Background(), ActionRequest{
		ChannelID: "c1",
		ActorID:   "staff-1",
		Action:    ActionClaim,
	})

	require.NoError(t, err)
	require.NotNil(t, result.Ticket)
	assert.Equal(t, created.ID, result.Ticket.ID)
	assert.Equal(t, domain.TicketStatusClaimed, result.Ticket.Status)
}

func TestHandleActionNonStaffCannotClaim(t *testing.T) {
	f := newActionFixture(t, ratelimit.Config{})
	_, err := f.service.CreateTicket(context.Background(), CreateTicketInput{GuildID: "g1", ChannelID: "c1", OwnerID: "owner-1"})
	require.NoError(t, err)

	_, err = f.service.HandleAction(context.Background(), ActionRequest{
		ChannelID: "c1",
		ActorID:   "owner-1",
		Action:    ActionClaim,
	})

	assert.Equal(t, apperrors.CodeForbidden, apperrors.CodeOf(err))
}

func TestHandleActionNoteRoundTrip(t *testing.T) {
	f := newActionFixture(t, ratelimit.Config{})
	created, err := f.service.CreateTicket(context.Background(), CreateTicketInput{GuildID: "g1", ChannelID: "c1", OwnerID: "owner-1"})
	require.NoError(t, err)

	result, err := f.service.HandleAction(context.Background(), ActionRequest{
		TicketID: created.ID,
		ActorID:  "staff-1",
		Action:   ActionNote,
		NoteBody: "checked with billing",
	})

	require.NoError(t, err)
	require.NotNil(t, result.Note)
	assert.Equal(t, "checked with billing", result.Note.Body)
}

func TestHandleActionExportReturnsTranscript(t *testing.T) {
	f := newActionFixture(t, ratelimit.Config{})
	created, err := f.service.CreateTicket(context.Background(), CreateTicketInput{GuildID: "g1", ChannelID: "c1", OwnerID: "owner-1"})
	require.NoError(t, err)

	result, err := f.service.HandleAction(context.Background(), ActionRequest{
		TicketID: created.ID,
		ActorID:  "owner-1",
		Action:   ActionExport,
	})

	require.NoError(t, err)
	require.NotNil(t, result.Transcript)
	assert.Equal(t, created.ID, result.Transcript.Ticket.ID)
	assert.NotEmpty(t, result.Transcript.Audit)
}
