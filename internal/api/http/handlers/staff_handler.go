package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/guild-desk/internal/api/dto"
	"github.com/spec-kit/guild-desk/internal/domain"
	"github.com/spec-kit/guild-desk/internal/repository"
	"github.com/spec-kit/guild-desk/internal/service"
	apperrors "github.com/spec-kit/guild-desk/pkg/util"
)

// StaffHandler manages guild staff assignments.
type StaffHandler struct {
	staff    repository.StaffRepository
	resolver *service.CachedStaffResolver
}

// NewStaffHandler constructs handler.
func NewStaffHandler(staff repository.StaffRepository, resolver *service.CachedStaffResolver) *StaffHandler {
	return &StaffHandler{staff: staff, resolver: resolver}
}

// Grant POST /guilds/:guildId/staff.
func (h *StaffHandler) Grant(c *fiber.Ctx) error {
	guildID := c.Params("guildId")
	var req dto.StaffGrantRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.UserID == "" {
		return apperrors.NewValidationError("user_id required", nil)
	}
	role := req.Role
	if role == "" {
		role = domain.StaffRoleModerator
	}
	if role != domain.StaffRoleModerator && role != domain.StaffRoleAdmin {
		return apperrors.NewValidationError("unknown role", map[string]any{"role": string(req.Role)})
	}

	grant := &domain.StaffGrant{
		GuildID:   guildID,
		UserID:    req.UserID,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.staff.Grant(c.UserContext(), grant); err != nil {
		return apperrors.ToDomainError(err)
	}
	h.resolver.Invalidate(guildID, req.UserID)
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": staffGrantResponse(grant)})
}

// Revoke DELETE /guilds/:guildId/staff/:userId.
func (h *StaffHandler) Revoke(c *fiber.Ctx) error {
	guildID := c.Params("guildId")
	userID := c.Params("userId")
	if err := h.staff.Revoke(c.UserContext(), guildID, userID); err != nil {
		return apperrors.ToDomainError(err)
	}
	h.resolver.Invalidate(guildID, userID)
	return c.SendStatus(http.StatusNoContent)
}

// List GET /guilds/:guildId/staff.
func (h *StaffHandler) List(c *fiber.Ctx) error {
	grants, err := h.staff.ListByGuild(c.UserContext(), c.Params("guildId"))
	if err != nil {
		return apperrors.ToDomainError(err)
	}
	items := make([]dto.StaffGrantResponse, 0, len(grants))
	for i := range grants {
		items = append(items, staffGrantResponse(&grants[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func staffGrantResponse(g *domain.StaffGrant) dto.StaffGrantResponse {
	return dto.StaffGrantResponse{
		GuildID:   g.GuildID,
		UserID:    g.UserID,
		Role:      g.Role,
		CreatedAt: g.CreatedAt,
	}
}
