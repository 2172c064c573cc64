package entities

// MaxPresetFields is the maximum number of custom fields a preset may carry.
// The host platform caps modals at five inputs.
const MaxPresetFields = 5

// FieldSpec describes one custom form field on a preset.
type FieldSpec struct {
	// Name is the label of the field. It is also the key in the ticket's
	// custom fields.
	Name string `json:"name" bson:"name"`

	// Placeholder is the placeholder text shown in the empty input.
	Placeholder string `json:"placeholder" bson:"placeholder"`

	// DefaultValue is pre-filled into the input.
	DefaultValue string `json:"default_value" bson:"default_value"`

	// Multiline makes the input a paragraph-style text box.
	Multiline bool `json:"multiline" bson:"multiline"`

	// Required makes the field mandatory on submission.
	Required bool `json:"required" bson:"required"`
}

// Preset is a named, reusable ticket template invoked on demand. Unlike a
// Panel it is not tied to a persistent message.
type Preset struct {
	// PresetID is the ID of the preset. It is also the modal custom ID.
	PresetID string `json:"preset_id" bson:"preset_id"`

	// GuildID is the ID of the guild that the preset belongs to.
	GuildID string `json:"guild_id" bson:"guild_id"`

	// Name is the invocation name. Unique per guild.
	Name string `json:"name" bson:"name"`

	// Title is the form and embed title.
	Title string `json:"title" bson:"title"`

	// Description is the embed description.
	Description string `json:"description" bson:"description"`

	// Fields are the custom form fields, at most MaxPresetFields.
	Fields []FieldSpec `json:"fields" bson:"fields"`

	// ButtonLabel is the label on the open-ticket button.
	ButtonLabel string `json:"button_label" bson:"button_label"`

	// ButtonEmoji is the emoji on the open-ticket button.
	ButtonEmoji string `json:"button_emoji" bson:"button_emoji"`

	// ButtonStyle is the style of the open-ticket button.
	ButtonStyle int `json:"button_style" bson:"button_style"`

	// AllowedRoleIDs are the roles that may open tickets through this
	// preset. An empty list falls back to the guild's ticketing role.
	AllowedRoleIDs []string `json:"allowed_role_ids" bson:"allowed_role_ids"`

	// EmbedColor is the embed accent colour.
	EmbedColor int `json:"embed_color" bson:"embed_color"`
}
