package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/nexus-esports/lynx/pkg/entities"
	"github.com/nexus-esports/lynx/pkg/messages"
	"github.com/nexus-esports/lynx/pkg/ticketing"
)

const (
	// panelCmdName is the command for managing ticket panels.
	panelCmdName = "panel"

	// panelCreateCmdName is the sub command for creating a panel.
	panelCreateCmdName = "create"
)

// panelCmd is the command for managing ticket panels.
var panelCmd = &discordgo.ApplicationCommand{
	Name:        panelCmdName,
	Type:        discordgo.ChatApplicationCommand,
	Description: "This is the command for managing ticket panels.",
	Options: []*discordgo.ApplicationCommandOption{
		{
			Name:        panelCreateCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "This creates a ticket panel in the channel you specify.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "channel",
					Type:        discordgo.ApplicationCommandOptionChannel,
					Description: "This is the channel the panel will be posted in.",
					Required:    true,
				},
				{
					Name:        "title",
					Type:        discordgo.ApplicationCommandOptionString,
					Description: "This is the panel title.",
					Required:    true,
				},
				{
					Name:        "description",
					Type:        discordgo.ApplicationCommandOptionString,
					Description: "This is the panel description.",
				},
				{
					Name:        "label",
					Type:        discordgo.ApplicationCommandOptionString,
					Description: "This is the open button label.",
				},
				{
					Name:        "emoji",
					Type:        discordgo.ApplicationCommandOptionString,
					Description: "This is the open button emoji.",
				},
				{
					Name:        "style",
					Type:        discordgo.ApplicationCommandOptionInteger,
					Description: "This is the open button style.",
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "Primary", Value: int(discordgo.PrimaryButton)},
						{Name: "Secondary", Value: int(discordgo.SecondaryButton)},
						{Name: "Success", Value: int(discordgo.SuccessButton)},
						{Name: "Danger", Value: int(discordgo.DangerButton)},
					},
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
	},
}

func panelCmdController(_ IApp, cmd string) (commandProcessor, error) {
	switch cmd {
	case panelCreateCmdName:
		return panelCreateHandler, nil
	default:
		return nil, fmt.Errorf("unhandled sub command %s", cmd)
	}
}

func panelCreateHandler(a IApp, i *discordgo.InteractionCreate) error {
	if !actorFromInteraction(i).Admin {
		return respondEphemeral(a, i, messages.ErrNotAdministrator)
	}

	opts := subOptions(i)
	channel := opts["channel"].ChannelValue(a.Session())

	// Ensure the channel is a text channel.
	if channel.Type != discordgo.ChannelTypeGuildText {
		return respondEphemeral(a, i, "You must provide a text channel for the panel.")
	}

	panel, err := a.Registry().CreatePanel(context.Background(), ticketing.PanelInput{
		GuildID:     i.GuildID,
		ChannelID:   channel.ID,
		Title:       optString(opts, "title"),
		Description: optString(opts, "description"),
		ButtonLabel: optString(opts, "label"),
		ButtonEmoji: optString(opts, "emoji"),
		ButtonStyle: optInt(opts, "style"),
		Roles:       optString(opts, "roles"),
		Color:       optString(opts, "color"),
	})
	if err != nil {
		validationErr := new(ticketing.ValidationError)
		if errors.As(err, &validationErr) {
			return respondEphemeral(a, i, fmt.Sprintf("Invalid panel: %s %s.", validationErr.Field, validationErr.Reason))
		}
		return fmt.Errorf("error creating panel: %w", err)
	}

	// Send the panel message.
	msg, err := sendPanelMessage(a, panel)
	if err != nil {
		return fmt.Errorf("error sending panel message: %w", err)
	}

	// Record the message backing the panel so it can be rebound on restart.
	if err := a.Registry().BindPanelMessage(context.Background(), panel, msg.ID); err != nil {
		return fmt.Errorf("error binding panel message: %w", err)
	}

	return respondEphemeral(a, i, fmt.Sprintf("Panel created in <#%s>.", channel.ID))
}

func sendPanelMessage(a IApp, panel *entities.Panel) (*discordgo.Message, error) {
	style := discordgo.ButtonStyle(panel.ButtonStyle)
	if panel.ButtonStyle == 0 {
		style = discordgo.PrimaryButton
	}

	button := discordgo.Button{
		Label:    panel.ButtonLabel,
		Style:    style,
		CustomID: panel.PanelID,
	}
	if panel.ButtonEmoji != "" {
		button.Emoji = discordgo.ComponentEmoji{Name: panel.ButtonEmoji}
	}

	msg, err := a.Session().ChannelMessageSendComplex(panel.ChannelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{
			{
				Title:       panel.Title,
				Description: panel.Description,
				Color:       panel.EmbedColor,
			},
		},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					button,
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error sending message: %w", err)
	}

	return msg, nil
}
