package entities

import (
	"fmt"

	"github.com/nexus-esports/lynx/pkg/custom"
)

// TicketStatus is the lifecycle state of a ticket. Transitions only move
// forward: open -> claimed -> closed. There is no reopen.
type TicketStatus string

const (
	// StatusOpen is the state of a ticket that has been created and not yet
	// claimed by a member of staff.
	StatusOpen TicketStatus = "open"

	// StatusClaimed is the state of a ticket that a member of staff has
	// taken ownership of.
	StatusClaimed TicketStatus = "claimed"

	// StatusClosed is the terminal state of a ticket. The row is kept for
	// statistics after the channel itself is deleted.
	StatusClosed TicketStatus = "closed"
)

// TicketPriority is the triage priority of a ticket.
type TicketPriority string

const (
	PriorityLow      TicketPriority = "low"
	PriorityMedium   TicketPriority = "medium"
	PriorityHigh     TicketPriority = "high"
	PriorityCritical TicketPriority = "critical"
)

// ParsePriority parses a priority string, returning false for unknown values.
func ParsePriority(s string) (TicketPriority, bool) {
	switch TicketPriority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return TicketPriority(s), true
	default:
		return "", false
	}
}

// Ticket is a support ticket.
type Ticket struct {
	// ID is the number of the ticket. It is allocated per guild and is
	// monotonically increasing; it is not unique across guilds.
	ID int `json:"id" bson:"id"`

	// GuildID is the ID of the guild that the ticket is in.
	GuildID string `json:"guild_id" bson:"guild_id"`

	// ChannelID is the ID of the channel that the ticket is in. There is at
	// most one non-closed ticket per channel.
	ChannelID string `json:"channel_id" bson:"channel_id"`

	// CreatorID is the ID of the user that created the ticket.
	CreatorID string `json:"creator_id" bson:"creator_id"`

	// CreatorName is the display name of the creator at creation time. It is
	// baked into the channel name.
	CreatorName string `json:"creator_name" bson:"creator_name"`

	// Status is the lifecycle state of the ticket.
	Status TicketStatus `json:"status" bson:"status"`

	// TicketType is the name of the entry point that created the ticket.
	TicketType string `json:"ticket_type" bson:"ticket_type"`

	// AssignedTo is the ID of the staff member that claimed the ticket.
	AssignedTo string `json:"assigned_to" bson:"assigned_to"`

	// ClosedBy is the ID of the user that closed the ticket.
	ClosedBy string `json:"closed_by" bson:"closed_by"`

	// Priority is the triage priority. Defaults to medium.
	Priority TicketPriority `json:"priority" bson:"priority"`

	// CustomFields holds the values submitted through the entry point's
	// form, keyed by field name.
	CustomFields map[string]string `json:"custom_fields" bson:"custom_fields"`

	// AttachmentLinks are URLs of attachments uploaded alongside the form.
	AttachmentLinks []string `json:"attachment_links" bson:"attachment_links"`

	// SetupMessageID is the ID of the pinned intro message.
	SetupMessageID string `json:"setup_message_id" bson:"setup_message_id"`

	// CreatedAt is the time that the ticket was created.
	CreatedAt custom.Datetime `json:"created_at" bson:"created_at"`

	// ClosedAt is the time that the ticket was closed.
	ClosedAt custom.Datetime `json:"closed_at" bson:"closed_at"`
}

// Name returns the channel name for the ticket, e.g. "ticket-12-wolf".
func (t *Ticket) Name() string {
	return fmt.Sprintf("ticket-%d-%s", t.ID, t.CreatorName)
}

// Active reports whether the ticket is still open or claimed.
func (t *Ticket) Active() bool {
	return t.Status != StatusClosed
}
