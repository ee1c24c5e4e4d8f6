package domain

import "time"

// TicketStatus enumerates lifecycle states for support tickets.
type TicketStatus string

const (
	TicketStatusOpen      TicketStatus = "OPEN"
	TicketStatusClaimed   TicketStatus = "CLAIMED"
	TicketStatusClosed    TicketStatus = "CLOSED"
	TicketStatusCancelled TicketStatus = "CANCELLED"
	TicketStatusArchived  TicketStatus = "ARCHIVED"
)

// IsOpen reports whether the ticket still accepts support activity.
// A claimed ticket is an open ticket with an assignee.
func (s TicketStatus) IsOpen() bool {
	return s == TicketStatusOpen || s == TicketStatusClaimed
}

// IsFinal reports whether the ticket left the active lifecycle.
func (s TicketStatus) IsFinal() bool {
	return s == TicketStatusClosed || s == TicketStatusCancelled || s == TicketStatusArchived
}

// TicketPriority enumerates urgency. Priority never affects transition
// legality.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityNormal TicketPriority = "NORMAL"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// ValidPriority reports whether p is one of the known priority levels.
func ValidPriority(p TicketPriority) bool {
	switch p {
	case TicketPriorityLow, TicketPriorityNormal, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// Ticket is the aggregate for a guild support conversation. Status is
// mutated only through the lifecycle service; everything else treats a
// ticket as read-only.
type Ticket struct {
	ID         string
	GuildID    string
	ChannelID  string
	OwnerID    string
	Category   string
	Status     TicketStatus
	AssignedTo *string
	Locked     bool
	Priority   TicketPriority
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ClosedAt   *time.Time
	ReopenedAt *time.Time
}

// TicketNote is an append-only staff annotation on a ticket.
type TicketNote struct {
	ID        string
	TicketID  string
	AuthorID  string
	Body      string
	CreatedAt time.Time
}
