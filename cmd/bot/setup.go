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
	// setupCmdName is the command for all configuration commands.
	setupCmdName = "setup"

	// setupRoleCmdName is the sub command for setting the support role.
	setupRoleCmdName = "role"

	// setupCategoryCmdName is the sub command for setting the ticket category.
	setupCategoryCmdName = "category"

	// setupPingRoleCmdName is the sub command for setting the ping role.
	setupPingRoleCmdName = "pingrole"

	// setupLogChannelCmdName is the sub command for setting the log channel.
	setupLogChannelCmdName = "logchannel"
)

// setupCmd is the command for all configuration commands.
var setupCmd = &discordgo.ApplicationCommand{
	Name:        setupCmdName,
	Type:        discordgo.ChatApplicationCommand,
	Description: "This is the command for all configuration commands.",
	Options: []*discordgo.ApplicationCommandOption{
		{
			Name:        setupRoleCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "This sets the role that handles tickets.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "role",
					Type:        discordgo.ApplicationCommandOptionRole,
					Description: "This is the role you want to handle tickets.",
					Required:    true,
				},
			},
		},
		{
			Name:        setupCategoryCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "This sets the category that ticket channels are created under.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "category",
					Type:        discordgo.ApplicationCommandOptionChannel,
					Description: "This is the category for ticket channels.",
					Required:    true,
				},
			},
		},
		{
			Name:        setupPingRoleCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "This sets the role that is pinged when a ticket is opened.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "role",
					Type:        discordgo.ApplicationCommandOptionRole,
					Description: "This is the role to ping for new tickets.",
					Required:    true,
				},
			},
		},
		{
			Name:        setupLogChannelCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "This sets the channel that transcripts are delivered to.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "channel",
					Type:        discordgo.ApplicationCommandOptionChannel,
					Description: "This is the channel for ticket transcripts.",
					Required:    true,
				},
			},
		},
	},
}

func setupCmdController(_ IApp, cmd string) (commandProcessor, error) {
	switch cmd {
	case setupRoleCmdName:
		return setupRoleHandler, nil
	case setupCategoryCmdName:
		return setupCategoryHandler, nil
	case setupPingRoleCmdName:
		return setupPingRoleHandler, nil
	case setupLogChannelCmdName:
		return setupLogChannelHandler, nil
	default:
		return nil, fmt.Errorf("unhandled sub command %s", cmd)
	}
}

// guildForUpdate loads the guild configuration, creating an empty one for
// guilds that have never been configured.
func guildForUpdate(a IApp, guildID string) (*entities.Guild, error) {
	guild, err := a.GuildDal().GuildByID(context.Background(), guildID)
	if err != nil {
		if !errors.Is(err, ticketing.ErrNotFound) {
			return nil, fmt.Errorf("error getting guild: %w", err)
		}
		guild = &entities.Guild{ID: guildID}
	}
	return guild, nil
}

func setupRoleHandler(a IApp, i *discordgo.InteractionCreate) error {
	if !actorFromInteraction(i).Admin {
		return respondEphemeral(a, i, messages.ErrNotAdministrator)
	}

	opts := subOptions(i)
	role := opts["role"].RoleValue(a.Session(), i.GuildID)

	guild, err := guildForUpdate(a, i.GuildID)
	if err != nil {
		return err
	}

	// Set the support role.
	guild.Ticketing.RoleID = role.ID

	if err := a.GuildDal().SaveGuild(context.Background(), guild); err != nil {
		return fmt.Errorf("error saving guild: %w", err)
	}

	return respondEphemeral(a, i, fmt.Sprintf("The support role has been set to <@&%s>.", role.ID))
}

func setupCategoryHandler(a IApp, i *discordgo.InteractionCreate) error {
	if !actorFromInteraction(i).Admin {
		return respondEphemeral(a, i, messages.ErrNotAdministrator)
	}

	opts := subOptions(i)
	category := opts["category"].ChannelValue(a.Session())

	// Ensure the channel is a category.
	if category.Type != discordgo.ChannelTypeGuildCategory {
		return respondEphemeral(a, i, "You must provide a category channel.")
	}

	guild, err := guildForUpdate(a, i.GuildID)
	if err != nil {
		return err
	}

	// Set the ticket category.
	guild.Ticketing.CategoryID = category.ID

	if err := a.GuildDal().SaveGuild(context.Background(), guild); err != nil {
		return fmt.Errorf("error saving guild: %w", err)
	}

	return respondEphemeral(a, i, fmt.Sprintf("Ticket channels will be created under **%s**.", category.Name))
}

func setupPingRoleHandler(a IApp, i *discordgo.InteractionCreate) error {
	if !actorFromInteraction(i).Admin {
		return respondEphemeral(a, i, messages.ErrNotAdministrator)
	}

	opts := subOptions(i)
	role := opts["role"].RoleValue(a.Session(), i.GuildID)

	guild, err := guildForUpdate(a, i.GuildID)
	if err != nil {
		return err
	}

	// Set the ping role.
	guild.Ticketing.PingRoleID = role.ID

	if err := a.GuildDal().SaveGuild(context.Background(), guild); err != nil {
		return fmt.Errorf("error saving guild: %w", err)
	}

	return respondEphemeral(a, i, fmt.Sprintf("New tickets will ping <@&%s>.", role.ID))
}

func setupLogChannelHandler(a IApp, i *discordgo.InteractionCreate) error {
	if !actorFromInteraction(i).Admin {
		return respondEphemeral(a, i, messages.ErrNotAdministrator)
	}

	opts := subOptions(i)
	channel := opts["channel"].ChannelValue(a.Session())

	// Ensure the channel is a text channel.
	if channel.Type != discordgo.ChannelTypeGuildText {
		return respondEphemeral(a, i, "You must provide a text channel for transcripts.")
	}

	guild, err := guildForUpdate(a, i.GuildID)
	if err != nil {
		return err
	}

	// Set the log channel.
	guild.Ticketing.LogChannelID = channel.ID

	if err := a.GuildDal().SaveGuild(context.Background(), guild); err != nil {
		return fmt.Errorf("error saving guild: %w", err)
	}

	return respondEphemeral(a, i, fmt.Sprintf("Ticket transcripts will be delivered to <#%s>.", channel.ID))
}
