package http

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/guild-desk/internal/api/http/handlers"
	"github.com/spec-kit/guild-desk/internal/domain"
	"github.com/spec-kit/guild-desk/internal/repository"
	"github.com/spec-kit/guild-desk/internal/service"
)

// deadlineRecordingRepo notes whether the context it receives carries a
// deadline.
type deadlineRecordingRepo struct {
	mu          sync.Mutex
	sawDeadline bool
}

func (r *deadlineRecordingRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	_, ok := ctx.Deadline()
	r.mu.Lock()
	r.sawDeadline = ok
	r.mu.Unlock()
	return &domain.Ticket{
		ID:       id,
		GuildID:  "g1",
		OwnerID:  "owner-1",
		Status:   domain.TicketStatusOpen,
		Priority: domain.TicketPriorityNormal,
	}, nil
}

func (r *deadlineRecordingRepo) Create(ctx context.Context, ticket *domain.Ticket) error { return nil }
func (r *deadlineRecordingRepo) Update(ctx context.Context, ticket *domain.Ticket) error { return nil }
func (r *deadlineRecordingRepo) GetByChannel(ctx context.Context, channelID string) (*domain.Ticket, error) {
	return nil, nil
}
func (r *deadlineRecordingRepo) FindOpenByOwner(ctx context.Context, guildID, ownerID string) (*domain.Ticket, error) {
	return nil, nil
}
func (r *deadlineRecordingRepo) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	return nil, nil
}
func (r *deadlineRecordingRepo) AppendNote(ctx context.Context, note *domain.TicketNote) error {
	return nil
}
func (r *deadlineRecordingRepo) ListNotes(ctx context.Context, ticketID string) ([]domain.TicketNote, error) {
	return nil, nil
}

func TestRequestTimeoutReachesServiceCalls(t *testing.T) {
	repo := &deadlineRecordingRepo{}
	actions := service.NewActionService(service.ActionDependencies{
		TicketRepo: repo,
		Logger:     zap.NewNop(),
	})

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), nil, 5*time.Second)
	app.Get("/tickets/:id", handlers.NewTicketsHandler(actions).GetTicket)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/tickets/t1", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.True(t, repo.sawDeadline, "repository calls must observe the configured request deadline")
}

func TestZeroTimeoutLeavesContextUnbounded(t *testing.T) {
	repo := &deadlineRecordingRepo{}
	actions := service.NewActionService(service.ActionDependencies{
		TicketRepo: repo,
		Logger:     zap.NewNop(),
	})

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), nil, 0)
	app.Get("/tickets/:id", handlers.NewTicketsHandler(actions).GetTicket)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/tickets/t1", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.False(t, repo.sawDeadline)
}
