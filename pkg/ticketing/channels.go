package ticketing

import (
	"context"
	"time"

	"github.com/nexus-esports/lynx/pkg/entities"
)

// Actor is the user initiating an event against the system.
type Actor struct {
	// ID is the user's ID.
	ID string

	// DisplayName is the user's display name.
	DisplayName string

	// RoleIDs are the roles the user holds in the guild.
	RoleIDs []string

	// Admin is whether the user has administrator-equivalent privilege.
	Admin bool
}

// Member is a guild member as seen by the member directory.
type Member struct {
	// ID is the member's user ID.
	ID string

	// DisplayName is the member's display name.
	DisplayName string
}

// Message is one entry of a channel's history.
type Message struct {
	// ID is the message ID.
	ID string

	// AuthorName is the display name of the author.
	AuthorName string

	// Content is the text content of the message.
	Content string

	// Timestamp is when the message was sent.
	Timestamp time.Time

	// EmbedCount is the number of rich embeds attached to the message.
	EmbedCount int

	// AttachmentURLs are the URLs of the message's attachments.
	AttachmentURLs []string
}

// PermissionGrant is a read/write grant for one principal on a channel.
type PermissionGrant struct {
	// PrincipalID is the user or role the grant applies to.
	PrincipalID string

	// PrincipalIsRole is whether the principal is a role rather than a user.
	PrincipalIsRole bool

	// CanRead is whether the principal may read the channel.
	CanRead bool

	// CanWrite is whether the principal may write to the channel.
	CanWrite bool
}

// ChannelAPI is the outbound interface to the external channel-management
// layer. Calls are blocking I/O and are never made while holding a store
// transaction open.
type ChannelAPI interface {
	// CreateChannel creates a text channel under the given category and
	// returns its ID.
	CreateChannel(ctx context.Context, guildID, categoryID, name string) (string, error)

	// SetPermission applies a permission grant to a channel.
	SetPermission(ctx context.Context, channelID string, grant PermissionGrant) error

	// SendMessage sends a message to a channel and returns the message ID.
	SendMessage(ctx context.Context, channelID, content string) (string, error)

	// PinMessage pins a message in a channel.
	PinMessage(ctx context.Context, channelID, messageID string) error

	// DeleteChannel deletes a channel. This is not reversible.
	DeleteChannel(ctx context.Context, channelID, reason string) error

	// FetchHistory returns the channel's full message history in
	// chronological order, oldest first.
	FetchHistory(ctx context.Context, channelID string) ([]Message, error)
}

// MemberDirectory resolves guild members.
type MemberDirectory interface {
	// GuildMembers lists the members of a guild.
	GuildMembers(ctx context.Context, guildID string) ([]Member, error)
}

// ArchiveSink receives the transcript of a closed ticket, delivering it to
// the guild's log channel and/or the creator. Delivery failures do not block
// the close transition.
type ArchiveSink interface {
	DeliverTranscript(ctx context.Context, ticket *entities.Ticket, doc *Document) error
}

// TicketUpdate is the set of fields a ticket transition may change. Nil
// fields are left untouched.
type TicketUpdate struct {
	Status     *entities.TicketStatus
	AssignedTo *string
	ClosedBy   *string
	Priority   *entities.TicketPriority
	ClosedAt   *time.Time
}

// TicketStore is the durable store for ticket rows. All mutations are
// single-row atomic read-modify-writes.
type TicketStore interface {
	// SaveTicket upserts a ticket row keyed by (guild, number).
	SaveTicket(ctx context.Context, t *entities.Ticket) error

	// ActiveTicketByChannel returns the single non-closed ticket bound to a
	// channel, or ErrNotFound.
	ActiveTicketByChannel(ctx context.Context, guildID, channelID string) (*entities.Ticket, error)

	// LatestTicketByChannel returns the newest ticket bound to a channel
	// regardless of status, or ErrNotFound. A closed ticket whose channel
	// deletion failed is still resolvable this way.
	LatestTicketByChannel(ctx context.Context, guildID, channelID string) (*entities.Ticket, error)

	// TicketByNumber returns a ticket by its per-guild number, or
	// ErrNotFound.
	TicketByNumber(ctx context.Context, guildID string, number int) (*entities.Ticket, error)

	// NextTicketNumber atomically allocates the next per-guild ticket
	// number. Two concurrent calls never receive the same number.
	NextTicketNumber(ctx context.Context, guildID string) (int, error)

	// DeleteTicket removes a ticket row. Used to roll back a creation whose
	// channel side effects failed.
	DeleteTicket(ctx context.Context, guildID string, number int) error

	// TransitionTicket applies an update to a ticket only if its current
	// status is one of from, as a single atomic step. It returns the updated
	// ticket, ErrNotFound if the ticket does not exist, or ErrInvalidState
	// if the status precondition failed.
	TransitionTicket(ctx context.Context, guildID string, number int, from []entities.TicketStatus, update TicketUpdate) (*entities.Ticket, error)

	// CountByStatus returns the number of tickets per status for a guild.
	CountByStatus(ctx context.Context, guildID string) (map[entities.TicketStatus]int, error)
}

// GuildStore is the durable store for guild configuration.
type GuildStore interface {
	// SaveGuild upserts a guild configuration row.
	SaveGuild(ctx context.Context, guild *entities.Guild) error

	// GuildByID returns a guild configuration, or ErrNotFound.
	GuildByID(ctx context.Context, id string) (*entities.Guild, error)
}

// TemplateStore is the durable store for panels and presets.
type TemplateStore interface {
	// SavePanel upserts a panel keyed by panel ID.
	SavePanel(ctx context.Context, p *entities.Panel) error

	// PanelByID returns a panel, or ErrNotFound.
	PanelByID(ctx context.Context, panelID string) (*entities.Panel, error)

	// AllPanels returns every persisted panel. Used for rehydration.
	AllPanels(ctx context.Context) ([]*entities.Panel, error)

	// SavePreset upserts a preset keyed by (guild, name).
	SavePreset(ctx context.Context, p *entities.Preset) error

	// PresetByID returns a preset, or ErrNotFound.
	PresetByID(ctx context.Context, presetID string) (*entities.Preset, error)

	// PresetByName returns a guild's preset by name, or ErrNotFound.
	PresetByName(ctx context.Context, guildID, name string) (*entities.Preset, error)

	// PresetsByGuild lists a guild's presets.
	PresetsByGuild(ctx context.Context, guildID string) ([]*entities.Preset, error)

	// AllPresets returns every persisted preset. Used for rehydration.
	AllPresets(ctx context.Context) ([]*entities.Preset, error)

	// DeletePreset removes a guild's preset by name.
	DeletePreset(ctx context.Context, guildID, name string) error
}
