package ticketing

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/nexus-esports/lynx/pkg/entities"
	"github.com/nexus-esports/lynx/pkg/logging"
)

// DefaultEmbedColor is used when a template's colour cannot be parsed.
const DefaultEmbedColor = 0x5865F2

// EntryKind distinguishes the two entry point flavours.
type EntryKind int

const (
	// KindPanel is a persistent message with an open-ticket button.
	KindPanel EntryKind = iota

	// KindPreset is a named template invoked by a direct command.
	KindPreset
)

// Descriptor is the dispatch-time view of an entry point. Handlers look it
// up by entry point ID rather than capturing template state in per-instance
// closures, so registry updates are picked up immediately.
type Descriptor struct {
	// ID is the entry point ID: the panel ID or preset ID.
	ID string

	// Kind is the flavour of the entry point.
	Kind EntryKind

	// GuildID is the guild the entry point belongs to.
	GuildID string

	// Name is the ticket type and the channel-name stem.
	Name string

	// Title is the form and embed title.
	Title string

	// Description is the embed description.
	Description string

	// Fields are the custom form fields.
	Fields []entities.FieldSpec

	// AllowedRoleIDs gate ticket creation through this entry point.
	AllowedRoleIDs []string

	// EmbedColor is the embed accent colour.
	EmbedColor int

	// ButtonLabel, ButtonEmoji and ButtonStyle describe the open button.
	ButtonLabel string
	ButtonEmoji string
	ButtonStyle int
}

// Scope returns the authorization scope for the entry point.
func (d *Descriptor) Scope() Scope {
	return Scope{AllowedRoleIDs: d.AllowedRoleIDs}
}

// Registry manages panel and preset definitions and the dispatch table that
// maps entry point IDs to descriptors.
type Registry struct {
	l         *slog.Logger
	templates TemplateStore

	// mu guards table.
	mu    sync.RWMutex
	table map[string]*Descriptor
}

// NewRegistry creates a new template registry.
func NewRegistry(l *slog.Logger, templates TemplateStore) *Registry {
	return &Registry{
		l:         l,
		templates: templates,
		table:     make(map[string]*Descriptor),
	}
}

// PanelInput is the administrator-supplied definition of a panel.
type PanelInput struct {
	GuildID     string
	ChannelID   string
	Title       string
	Description string
	ButtonLabel string
	ButtonEmoji string
	ButtonStyle int

	// Roles is the raw role list as typed by the administrator.
	Roles string

	// Color is the raw colour value as typed by the administrator.
	Color string
}

// PresetInput is the administrator-supplied definition of a preset.
type PresetInput struct {
	GuildID     string
	Name        string
	Title       string
	Description string
	Fields      []entities.FieldSpec
	ButtonLabel string
	ButtonEmoji string
	ButtonStyle int
	Roles       string
	Color       string
}

// CreatePanel validates and persists a panel, binding it in the dispatch
// table. The caller is responsible for sending the panel message and then
// recording its ID with BindPanelMessage.
func (r *Registry) CreatePanel(ctx context.Context, in PanelInput) (*entities.Panel, error) {
	if in.Title == "" {
		return nil, NewValidationError("title", "must not be empty")
	}

	label := in.ButtonLabel
	if label == "" {
		label = "Open Ticket"
	}

	p := &entities.Panel{
		PanelID:        uuid.NewString(),
		GuildID:        in.GuildID,
		ChannelID:      in.ChannelID,
		Title:          in.Title,
		Description:    in.Description,
		ButtonLabel:    label,
		ButtonEmoji:    in.ButtonEmoji,
		ButtonStyle:    in.ButtonStyle,
		AllowedRoleIDs: r.parseRoleTokens(in.GuildID, in.Roles),
		EmbedColor:     r.parseColor(in.Color),
	}

	if err := r.templates.SavePanel(ctx, p); err != nil {
		return nil, fmt.Errorf("error saving panel: %w", err)
	}

	r.bind(panelDescriptor(p))

	return p, nil
}

// BindPanelMessage records the rendered message backing a panel.
func (r *Registry) BindPanelMessage(ctx context.Context, p *entities.Panel, messageID string) error {
	p.MessageID = messageID
	if err := r.templates.SavePanel(ctx, p); err != nil {
		return fmt.Errorf("error saving panel: %w", err)
	}
	return nil
}

// CreatePreset validates and persists a preset. The upsert is keyed by
// (guild, name): saving an existing name replaces the definition.
func (r *Registry) CreatePreset(ctx context.Context, in PresetInput) (*entities.Preset, error) {
	if in.Name == "" {
		return nil, NewValidationError("name", "must not be empty")
	}
	if in.Title == "" {
		return nil, NewValidationError("title", "must not be empty")
	}
	if len(in.Fields) > entities.MaxPresetFields {
		return nil, NewValidationError("fields",
			fmt.Sprintf("at most %d fields are allowed, got %d", entities.MaxPresetFields, len(in.Fields)))
	}
	for _, f := range in.Fields {
		if f.Name == "" {
			return nil, NewValidationError("fields", "every field needs a name")
		}
	}

	label := in.ButtonLabel
	if label == "" {
		label = "Open Ticket"
	}

	p := &entities.Preset{
		PresetID:       uuid.NewString(),
		GuildID:        in.GuildID,
		Name:           strings.ToLower(in.Name),
		Title:          in.Title,
		Description:    in.Description,
		Fields:         in.Fields,
		ButtonLabel:    label,
		ButtonEmoji:    in.ButtonEmoji,
		ButtonStyle:    in.ButtonStyle,
		AllowedRoleIDs: r.parseRoleTokens(in.GuildID, in.Roles),
		EmbedColor:     r.parseColor(in.Color),
	}

	// The upsert may replace an existing preset with the same name; the old
	// preset ID must not linger in the dispatch table.
	if old, err := r.templates.PresetByName(ctx, p.GuildID, p.Name); err == nil {
		p.PresetID = old.PresetID
	}

	if err := r.templates.SavePreset(ctx, p); err != nil {
		return nil, fmt.Errorf("error saving preset: %w", err)
	}

	r.bind(presetDescriptor(p))

	return p, nil
}

// DeletePreset removes a guild's preset by name and unbinds it.
func (r *Registry) DeletePreset(ctx context.Context, guildID, name string) error {
	name = strings.ToLower(name)

	p, err := r.templates.PresetByName(ctx, guildID, name)
	if err != nil {
		return fmt.Errorf("error getting preset: %w", err)
	}

	if err := r.templates.DeletePreset(ctx, guildID, name); err != nil {
		return fmt.Errorf("error deleting preset: %w", err)
	}

	r.mu.Lock()
	delete(r.table, p.PresetID)
	r.mu.Unlock()

	return nil
}

// Panel returns a persisted panel by ID.
func (r *Registry) Panel(ctx context.Context, panelID string) (*entities.Panel, error) {
	return r.templates.PanelByID(ctx, panelID)
}

// PresetByName returns a guild's preset by name.
func (r *Registry) PresetByName(ctx context.Context, guildID, name string) (*entities.Preset, error) {
	return r.templates.PresetByName(ctx, guildID, strings.ToLower(name))
}

// ListPresets lists a guild's presets.
func (r *Registry) ListPresets(ctx context.Context, guildID string) ([]*entities.Preset, error) {
	return r.templates.PresetsByGuild(ctx, guildID)
}

// Lookup resolves an entry point ID in the dispatch table.
func (r *Registry) Lookup(entryPointID string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.table[entryPointID]
	return d, ok
}

// Rehydrate rebuilds the dispatch table from every persisted panel and
// preset. It runs on process start so that entry points created before a
// restart keep working; the rebuild is keyed by entry point ID and does not
// depend on iteration order. A panel whose backing message was deleted
// externally is still bound, so re-sending the message restores it.
func (r *Registry) Rehydrate(ctx context.Context) error {
	panels, err := r.templates.AllPanels(ctx)
	if err != nil {
		return fmt.Errorf("error listing panels: %w", err)
	}

	presets, err := r.templates.AllPresets(ctx)
	if err != nil {
		return fmt.Errorf("error listing presets: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.table = make(map[string]*Descriptor, len(panels)+len(presets))
	for _, p := range panels {
		r.table[p.PanelID] = panelDescriptor(p)
	}
	for _, p := range presets {
		r.table[p.PresetID] = presetDescriptor(p)
	}

	r.l.Info("Rehydrated entry points",
		slog.Int("panels", len(panels)),
		slog.Int("presets", len(presets)))

	return nil
}

func (r *Registry) bind(d *Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table[d.ID] = d
}

func panelDescriptor(p *entities.Panel) *Descriptor {
	return &Descriptor{
		ID:             p.PanelID,
		Kind:           KindPanel,
		GuildID:        p.GuildID,
		Name:           strings.ToLower(p.Title),
		Title:          p.Title,
		Description:    p.Description,
		AllowedRoleIDs: p.AllowedRoleIDs,
		EmbedColor:     p.EmbedColor,
		ButtonLabel:    p.ButtonLabel,
		ButtonEmoji:    p.ButtonEmoji,
		ButtonStyle:    p.ButtonStyle,
	}
}

func presetDescriptor(p *entities.Preset) *Descriptor {
	return &Descriptor{
		ID:             p.PresetID,
		Kind:           KindPreset,
		GuildID:        p.GuildID,
		Name:           p.Name,
		Title:          p.Title,
		Description:    p.Description,
		Fields:         p.Fields,
		AllowedRoleIDs: p.AllowedRoleIDs,
		EmbedColor:     p.EmbedColor,
		ButtonLabel:    p.ButtonLabel,
		ButtonEmoji:    p.ButtonEmoji,
		ButtonStyle:    p.ButtonStyle,
	}
}

// roleMention matches a role mention like <@&123456789>.
var roleMention = regexp.MustCompile(`^<@&(\d+)>$`)

// numericID matches a raw snowflake.
var numericID = regexp.MustCompile(`^\d+$`)

// parseRoleTokens parses a comma or space separated role list. Unparseable
// tokens are dropped and logged rather than failing the whole request;
// administrators commonly paste stale mentions.
func (r *Registry) parseRoleTokens(guildID, raw string) []string {
	ids := make([]string, 0)

	for _, tok := range strings.FieldsFunc(raw, func(c rune) bool { return c == ',' || c == ' ' }) {
		switch {
		case roleMention.MatchString(tok):
			ids = append(ids, roleMention.FindStringSubmatch(tok)[1])
		case numericID.MatchString(tok):
			ids = append(ids, tok)
		default:
			r.l.Warn("Dropping unparseable role token",
				slog.String(logging.KeyGuildID, guildID),
				slog.String("token", tok))
		}
	}

	return ids
}

// parseColor parses a colour value as #RRGGBB, 0xRRGGBB or decimal. An
// unparseable value falls back to the default.
func (r *Registry) parseColor(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultEmbedColor
	}

	s := strings.TrimPrefix(strings.TrimPrefix(raw, "#"), "0x")

	base := 10
	if s != raw {
		base = 16
	}

	v, err := strconv.ParseInt(s, base, 64)
	if err != nil || v < 0 || v > 0xFFFFFF {
		r.l.Warn("Dropping unparseable embed colour", slog.String("value", raw))
		return DefaultEmbedColor
	}

	return int(v)
}
