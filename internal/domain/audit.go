package domain

import "time"

// AuditAction identifies a mutating action recorded against a ticket.
type AuditAction string

const (
	AuditActionCreate   AuditAction = "create"
	AuditActionClaim    AuditAction = "claim"
	AuditActionRelease  AuditAction = "release"
	AuditActionClose    AuditAction = "close"
	AuditActionCancel   AuditAction = "cancel"
	AuditActionReopen   AuditAction = "reopen"
	AuditActionLock     AuditAction = "lock"
	AuditActionUnlock   AuditAction = "unlock"
	AuditActionPriority AuditAction = "priority"
	AuditActionNote     AuditAction = "note"
	AuditActionExport   AuditAction = "export"
	AuditActionArchive  AuditAction = "archive"
)

// AuditLogEntry is an immutable record of one mutating action. Entries
// are created exactly once per action and never updated or deleted.
type AuditLogEntry struct {
	ID        string
	TicketID  string
	GuildID   string
	ActorID   string
	Action    AuditAction
	Message   string
	Payload   map[string]any
	CreatedAt time.Time
}
