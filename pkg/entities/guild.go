package entities

// Guild is a configuration for a guild.
type Guild struct {
	// ID is the ID of the guild.
	ID string `json:"id" bson:"id"`

	// Ticketing is the ticketing configuration.
	Ticketing TicketingConfig `json:"ticketing" bson:"ticketing"`
}

// TicketingConfig is the per-guild ticketing policy. It is the fallback used
// when a panel or preset does not carry its own role gate or placement.
type TicketingConfig struct {
	// RoleID is the ID of the role that handles tickets. This is the
	// server-wide authorization gate when an entry point has no role list.
	RoleID string `json:"role_id" bson:"role_id"`

	// CategoryID is the ID of the category that ticket channels are created
	// under.
	CategoryID string `json:"category_id" bson:"category_id"`

	// PingRoleID is the ID of the role mentioned in new ticket channels.
	PingRoleID string `json:"ping_role_id" bson:"ping_role_id"`

	// LogChannelID is the ID of the channel that transcripts and audit
	// messages are delivered to.
	LogChannelID string `json:"log_channel_id" bson:"log_channel_id"`
}
