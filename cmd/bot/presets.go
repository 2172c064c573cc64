package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/nexus-esports/lynx/pkg/entities"
	"github.com/nexus-esports/lynx/pkg/messages"
	"github.com/nexus-esports/lynx/pkg/ticketing"
)

const (
	// presetCmdName is the command for managing ticket presets.
	presetCmdName = "preset"

	// presetCreateCmdName is the sub command for creating a preset.
	presetCreateCmdName = "create"

	// presetDeleteCmdName is the sub command for deleting a preset.
	presetDeleteCmdName = "delete"

	// presetListCmdName is the sub command for listing presets.
	presetListCmdName = "list"
)

// presetCmd is the command for managing ticket presets.
var presetCmd = &discordgo.ApplicationCommand{
	Name:        presetCmdName,
	Type:        discordgo.ChatApplicationCommand,
	Description: "This is the command for managing ticket presets.",
	Options: []*discordgo.ApplicationCommandOption{
		{
			Name:        presetCreateCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "This creates or replaces a ticket preset.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "name",
					Type:        discordgo.ApplicationCommandOptionString,
					Description: "This is the preset name.",
					Required:    true,
				},
				{
					Name:        "title",
					Type:        discordgo.ApplicationCommandOptionString,
					Description: "This is the form title.",
					Required:    true,
				},
				{
					Name:        "description",
					Type:        discordgo.ApplicationCommandOptionString,
					Description: "This is the preset description.",
				},
				{
					Name:        "fields",
					Type:        discordgo.ApplicationCommandOptionString,
					Description: "These are the form fields: name|placeholder|default|flags, separated by semicolons.",
				},
				{
					Name:        "roles",
					Type:        discordgo.ApplicationCommandOptionString,
					Description: "These are the roles allowed to open tickets, as mentions or IDs.",
				},
				{
					Name:        "color",
					Type:        discordgo.ApplicationCommandOptionString,
					Description: "This is the embed colour, as hex or decimal.",
				},
			},
		},
		{
			Name:        presetDeleteCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "This deletes a ticket preset.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "name",
					Type:        discordgo.ApplicationCommandOptionString,
					Description: "This is the preset name.",
					Required:    true,
				},
			},
		},
		{
			Name:        presetListCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "This lists the presets configured for this server.",
		},
	},
}

func presetCmdController(_ IApp, cmd string) (commandProcessor, error) {
	switch cmd {
	case presetCreateCmdName:
		return presetCreateHandler, nil
	case presetDeleteCmdName:
		return presetDeleteHandler, nil
	case presetListCmdName:
		return presetListHandler, nil
	default:
		return nil, fmt.Errorf("unhandled sub command %s", cmd)
	}
}

func presetCreateHandler(a IApp, i *discordgo.InteractionCreate) error {
	if !actorFromInteraction(i).Admin {
		return respondEphemeral(a, i, messages.ErrNotAdministrator)
	}

	opts := subOptions(i)

	fields, err := parsePresetFields(optString(opts, "fields"))
	if err != nil {
		return respondEphemeral(a, i, fmt.Sprintf("Invalid fields: %s.", err))
	}

	preset, err := a.Registry().CreatePreset(context.Background(), ticketing.PresetInput{
		GuildID:     i.GuildID,
		Name:        optString(opts, "name"),
		Title:       optString(opts, "title"),
		Description: optString(opts, "description"),
		Fields:      fields,
		Roles:       optString(opts, "roles"),
		Color:       optString(opts, "color"),
	})
	if err != nil {
		validationErr := new(ticketing.ValidationError)
		if errors.As(err, &validationErr) {
			return respondEphemeral(a, i, fmt.Sprintf("Invalid preset: %s %s.", validationErr.Field, validationErr.Reason))
		}
		return fmt.Errorf("error creating preset: %w", err)
	}

	return respondEphemeral(a, i, fmt.Sprintf("Preset **%s** saved with %d fields.", preset.Name, len(preset.Fields)))
}

func presetDeleteHandler(a IApp, i *discordgo.InteractionCreate) error {
	if !actorFromInteraction(i).Admin {
		return respondEphemeral(a, i, messages.ErrNotAdministrator)
	}

	opts := subOptions(i)
	name := optString(opts, "name")

	if err := a.Registry().DeletePreset(context.Background(), i.GuildID, name); err != nil {
		if errors.Is(err, ticketing.ErrNotFound) {
			return respondEphemeral(a, i, fmt.Sprintf("There is no preset named **%s**.", name))
		}
		return fmt.Errorf("error deleting preset: %w", err)
	}

	return respondEphemeral(a, i, fmt.Sprintf("Preset **%s** deleted.", name))
}

func presetListHandler(a IApp, i *discordgo.InteractionCreate) error {
	presets, err := a.Registry().ListPresets(context.Background(), i.GuildID)
	if err != nil {
		return fmt.Errorf("error listing presets: %w", err)
	}

	if len(presets) == 0 {
		return respondEphemeral(a, i, "There are no presets configured for this server.")
	}

	var sb strings.Builder
	sb.WriteString("Configured presets:\n")
	for _, p := range presets {
		sb.WriteString(fmt.Sprintf("- **%s** (%d fields)\n", p.Name, len(p.Fields)))
	}

	return respondEphemeral(a, i, sb.String())
}

// parsePresetFields parses the administrator's field list. Specs are
// separated by semicolons; each spec is name|placeholder|default|flags,
// where flags may contain "required" and "multiline". Only the name is
// mandatory.
func parsePresetFields(raw string) ([]entities.FieldSpec, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var fields []entities.FieldSpec
	for _, spec := range strings.Split(raw, ";") {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}

		parts := strings.Split(spec, "|")
		field := entities.FieldSpec{
			Name: strings.TrimSpace(parts[0]),
		}
		if field.Name == "" {
			return nil, fmt.Errorf("field %q has no name", spec)
		}

		if len(parts) > 1 {
			field.Placeholder = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			field.DefaultValue = strings.TrimSpace(parts[2])
		}
		if len(parts) > 3 {
			flags := strings.ToLower(parts[3])
			field.Required = strings.Contains(flags, "required")
			field.Multiline = strings.Contains(flags, "multiline")
		}

		fields = append(fields, field)
	}

	return fields, nil
}
