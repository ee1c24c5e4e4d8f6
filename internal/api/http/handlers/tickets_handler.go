package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/guild-desk/internal/api/dto"
	"github.com/spec-kit/guild-desk/internal/domain"
	"github.com/spec-kit/guild-desk/internal/repository"
	"github.com/spec-kit/guild-desk/internal/service"
	apperrors "github.com/spec-kit/guild-desk/pkg/util"
)

// TicketsHandler exposes ticket creation, actions and queries to the
// gateway component.
type TicketsHandler struct {
	actions *service.ActionService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(actions *service.ActionService) *TicketsHandler {
	return &TicketsHandler{actions: actions}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.GuildID == "" || req.ChannelID == "" || req.OwnerID == "" {
		return apperrors.NewValidationError("guild_id, channel_id, owner_id required", nil)
	}

	input := service.CreateTicketInput{
		GuildID:   req.GuildID,
		ChannelID: req.ChannelID,
		OwnerID:   req.OwnerID,
		Category:  req.Category,
	}
	if req.Priority != nil {
		input.Priority = *req.Priority
	}
	ticket, err := h.actions.CreateTicket(c.UserContext(), input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.ToTicketResponse(ticket)})
}

// PerformAction POST /tickets/:id/actions/:action.
func (h *TicketsHandler) PerformAction(c *fiber.Ctx) error {
	var req dto.ActionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ActorID == "" {
		return apperrors.NewValidationError("actor_id required", nil)
	}

	result, err := h.actions.HandleAction(c.UserContext(), service.ActionRequest{
		TicketID: c.Params("id"),
		ActorID:  req.ActorID,
		Action:   c.Params("action"),
		Priority: domain.TicketPriority(strings.ToUpper(req.Priority)),
		NoteBody: req.Note,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": actionResponse(result)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.actions.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ToTicketResponse(ticket)})
}

// ListTickets GET /guilds/:guildId/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	guildID := c.Params("guildId")
	if guildID == "" {
		return apperrors.NewValidationError("guild id required", nil)
	}
	filter := parseTicketFilter(c, guildID)
	tickets, err := h.actions.ListTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]*dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.ToTicketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetAudit GET /tickets/:id/audit.
func (h *TicketsHandler) GetAudit(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "100"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	entries, err := h.actions.QueryAudit(c.UserContext(), c.Params("id"), limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.AuditEntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.ToAuditEntryResponse(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Export GET /tickets/:id/export.
func (h *TicketsHandler) Export(c *fiber.Ctx) error {
	actorID := c.Query("actor_id")
	if actorID == "" {
		return apperrors.NewValidationError("actor_id required", nil)
	}
	result, err := h.actions.HandleAction(c.UserContext(), service.ActionRequest{
		TicketID: c.Params("id"),
		ActorID:  actorID,
		Action:   service.ActionExport,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": transcriptResponse(result.Transcript)})
}

func actionResponse(result *service.ActionResult) dto.ActionResponse {
	resp := dto.ActionResponse{
		Ticket: dto.ToTicketResponse(result.Ticket),
		Note:   dto.ToTicketNoteResponse(result.Note),
	}
	if result.Transcript != nil {
		resp.Transcript = transcriptResponse(result.Transcript)
	}
	return resp
}

func transcriptResponse(t *service.Transcript) *dto.TranscriptResponse {
	if t == nil {
		return nil
	}
	resp := &dto.TranscriptResponse{
		Ticket: *dto.ToTicketResponse(t.Ticket),
		Notes:  make([]dto.TicketNoteResponse, 0, len(t.Notes)),
		Audit:  make([]dto.AuditEntryResponse, 0, len(t.Audit)),
	}
	for i := range t.Notes {
		resp.Notes = append(resp.Notes, *dto.ToTicketNoteResponse(&t.Notes[i]))
	}
	for i := range t.Audit {
		resp.Audit = append(resp.Audit, dto.ToAuditEntryResponse(&t.Audit[i]))
	}
	return resp
}

func parseTicketFilter(c *fiber.Ctx, guildID string) repository.TicketFilter {
	filter := repository.TicketFilter{GuildID: &guildID}
	if owner := c.Query("owner_id"); owner != "" {
		filter.OwnerID = &owner
	}
	if assigned := c.Query("assigned_to"); assigned != "" {
		filter.AssignedTo = &assigned
	}
	for _, raw := range strings.Split(c.Query("status"), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.ToUpper(raw)))
		}
	}
	for _, raw := range strings.Split(c.Query("priority"), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			filter.Priorities = append(filter.Priorities, domain.TicketPriority(strings.ToUpper(raw)))
		}
	}
	pageSize, _ := strconv.Atoi(c.Query("page_size", "50"))
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}
	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize
	return filter
}
