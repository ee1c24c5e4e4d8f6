package dto

import (
	"time"

	"github.com/spec-kit/guild-desk/internal/domain"
)

// StaffGrantRequest payload for granting a staff role.
type StaffGrantRequest struct {
	UserID string           `json:"user_id"`
	Role   domain.StaffRole `json:"role"`
}

// StaffGrantResponse represents one staff assignment.
type StaffGrantResponse struct {
	GuildID   string           `json:"guild_id"`
	UserID    string           `json:"user_id"`
	Role      domain.StaffRole `json:"role"`
	CreatedAt time.Time        `json:"created_at"`
}
