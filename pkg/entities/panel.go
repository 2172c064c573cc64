package entities

// Panel is a persistent ticket-creation entry point. It is bound to one
// rendered message with a button; MessageID is set once the message has been
// sent and is used to re-attach the button handler on restart.
type Panel struct {
	// PanelID is the ID of the panel. It is also the button custom ID.
	PanelID string `json:"panel_id" bson:"panel_id"`

	// GuildID is the ID of the guild that the panel belongs to.
	GuildID string `json:"guild_id" bson:"guild_id"`

	// ChannelID is the ID of the channel that the panel message lives in.
	ChannelID string `json:"channel_id" bson:"channel_id"`

	// MessageID is the ID of the rendered panel message. Empty until the
	// message has been sent.
	MessageID string `json:"message_id" bson:"message_id"`

	// Title is the embed title.
	Title string `json:"title" bson:"title"`

	// Description is the embed description.
	Description string `json:"description" bson:"description"`

	// ButtonLabel is the label on the open-ticket button.
	ButtonLabel string `json:"button_label" bson:"button_label"`

	// ButtonEmoji is the emoji on the open-ticket button.
	ButtonEmoji string `json:"button_emoji" bson:"button_emoji"`

	// ButtonStyle is the style of the open-ticket button.
	ButtonStyle int `json:"button_style" bson:"button_style"`

	// AllowedRoleIDs are the roles that may open tickets through this panel.
	// An empty list falls back to the guild's ticketing role.
	AllowedRoleIDs []string `json:"allowed_role_ids" bson:"allowed_role_ids"`

	// EmbedColor is the embed accent colour.
	EmbedColor int `json:"embed_color" bson:"embed_color"`
}
