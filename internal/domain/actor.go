package domain

import "time"

// Actor identifies who is performing a ticket action. Staff-ness is
// resolved externally (role lookup) and carried as a capability; the
// lifecycle rules never compute it themselves.
type Actor struct {
	ID      string
	IsStaff bool
}

// StaffRole enumerates guild-level staff grants.
type StaffRole string

const (
	StaffRoleModerator StaffRole = "MODERATOR"
	StaffRoleAdmin     StaffRole = "ADMIN"
)

// StaffGrant models a staff role assignment inside a guild.
type StaffGrant struct {
	GuildID   string
	UserID    string
	Role      StaffRole
	CreatedAt time.Time
}
