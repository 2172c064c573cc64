package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/nexus-esports/lynx/pkg/entities"
	"github.com/nexus-esports/lynx/pkg/logging"
	"github.com/nexus-esports/lynx/pkg/messages"
	"github.com/nexus-esports/lynx/pkg/ticketing"
)

const (
	// ClaimTicketButtonID is the ID for the claim ticket button.
	ClaimTicketButtonID = "claim_ticket_button"

	// CloseTicketButtonID is the ID for the close ticket button.
	CloseTicketButtonID = "close_ticket_button"
)

const (
	// ClaimEmoji is the emoji that will be used for the claim button. (Ticket)
	ClaimEmoji = "\U0001F3AB"

	// CloseEmoji is the emoji that will be used for the close button. (Padlock)
	CloseEmoji = "\U0001F510"
)

const (
	// TicketCmdName is the command for controlling tickets.
	TicketCmdName = "ticket"

	// OpenCmdName is the sub command for opening a ticket from a preset.
	OpenCmdName = "open"

	// ClaimCmdName is the sub command for claiming a ticket.
	ClaimCmdName = "claim"

	// CloseCmdName is the sub command for closing a ticket.
	CloseCmdName = "close"

	// PriorityCmdName is the sub command for setting the ticket priority.
	PriorityCmdName = "priority"

	// StatsCmdName is the sub command for the per-guild ticket counts.
	StatsCmdName = "stats"

	// AddUserCmdName is the command for adding a user to a ticket.
	AddUserCmdName = "adduser"

	// ForceCloseCmdName is the command for the administrator close.
	ForceCloseCmdName = "forceclose"
)

var (
	// ticketCmd is the command for controlling tickets.
	ticketCmd = &discordgo.ApplicationCommand{
		Name:        TicketCmdName,
		Type:        discordgo.ChatApplicationCommand,
		Description: "This is the command for controlling tickets.",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        OpenCmdName,
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "This opens a new ticket from a preset.",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        "preset",
						Type:        discordgo.ApplicationCommandOptionString,
						Description: "This is the name of the preset to open the ticket with.",
						Required:    true,
					},
				},
			},
			{
				Name:        ClaimCmdName,
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "This claims the ticket for the channel that the command was executed in.",
			},
			{
				Name:        CloseCmdName,
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "This closes the ticket for the channel that the command was executed in.",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        "reason",
						Type:        discordgo.ApplicationCommandOptionString,
						Description: "This is the reason for closing the ticket.",
					},
				},
			},
			{
				Name:        PriorityCmdName,
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "This sets the priority of the ticket for the current channel.",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        "level",
						Type:        discordgo.ApplicationCommandOptionString,
						Description: "This is the priority level.",
						Required:    true,
						Choices: []*discordgo.ApplicationCommandOptionChoice{
							{Name: "Low", Value: string(entities.PriorityLow)},
							{Name: "Medium", Value: string(entities.PriorityMedium)},
							{Name: "High", Value: string(entities.PriorityHigh)},
							{Name: "Critical", Value: string(entities.PriorityCritical)},
						},
					},
				},
			},
			{
				Name:        StatsCmdName,
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "This shows the ticket counts for this server.",
			},
		},
	}

	// addUserCmd is the command for adding a user to a ticket channel.
	addUserCmd = &discordgo.ApplicationCommand{
		Name:        AddUserCmdName,
		Type:        discordgo.ChatApplicationCommand,
		Description: "This adds a user to the ticket for the current channel.",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "user",
				Type:        discordgo.ApplicationCommandOptionString,
				Description: "This is the user to add, as a mention, an ID or part of their name.",
				Required:    true,
			},
		},
	}

	// forceCloseCmd is the administrator close command.
	forceCloseCmd = &discordgo.ApplicationCommand{
		Name:        ForceCloseCmdName,
		Type:        discordgo.ChatApplicationCommand,
		Description: "This force closes the ticket for the current channel, skipping the grace period.",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "reason",
				Type:        discordgo.ApplicationCommandOptionString,
				Description: "This is the reason for closing the ticket.",
			},
		},
	}
)

func ticketCmdController(_ IApp, cmd string) (commandProcessor, error) {
	switch cmd {
	case OpenCmdName:
		return openTicketHandler, nil
	case ClaimCmdName:
		return claimTicketHandler, nil
	case CloseCmdName:
		return closeTicketHandler, nil
	case PriorityCmdName:
		return priorityHandler, nil
	case StatsCmdName:
		return statsHandler, nil
	default:
		return nil, fmt.Errorf("unhandled sub command %s", cmd)
	}
}

func addUserCmdController(_ IApp, cmd string) (commandProcessor, error) {
	if cmd != AddUserCmdName {
		return nil, fmt.Errorf("unhandled sub command %s", cmd)
	}
	return addUserHandler, nil
}

func forceCloseCmdController(_ IApp, cmd string) (commandProcessor, error) {
	if cmd != ForceCloseCmdName {
		return nil, fmt.Errorf("unhandled sub command %s", cmd)
	}
	return forceCloseHandler, nil
}

// openTicketHandler opens a ticket from a named preset.
func openTicketHandler(a IApp, i *discordgo.InteractionCreate) error {
	opts := subOptions(i)
	name := optString(opts, "preset")

	preset, err := a.Registry().PresetByName(context.Background(), i.GuildID, name)
	if err != nil {
		if errors.Is(err, ticketing.ErrNotFound) {
			return respondEphemeral(a, i, fmt.Sprintf("There is no preset named **%s**.", name))
		}
		return fmt.Errorf("error getting preset: %w", err)
	}

	entry, ok := a.Registry().Lookup(preset.PresetID)
	if !ok {
		return fmt.Errorf("preset %s is not bound in the registry", preset.PresetID)
	}

	return openEntryPoint(a, i, entry)
}

// openEntryPointHandler wraps a registry entry point as a button processor.
// Panel buttons carry the panel ID as their custom ID.
func openEntryPointHandler(entryPointID string) commandProcessor {
	return func(a IApp, i *discordgo.InteractionCreate) error {
		entry, ok := a.Registry().Lookup(entryPointID)
		if !ok {
			return respondEphemeral(a, i, "This panel is no longer active.")
		}
		return openEntryPoint(a, i, entry)
	}
}

// openEntryPoint either shows the entry point's form as a modal or, for
// entry points without custom fields, creates the ticket straight away.
func openEntryPoint(a IApp, i *discordgo.InteractionCreate, entry *ticketing.Descriptor) error {
	if len(entry.Fields) == 0 {
		return createTicketFromEntry(a, i, entry, nil)
	}

	components := make([]discordgo.MessageComponent, 0, len(entry.Fields))
	for _, field := range entry.Fields {
		style := discordgo.TextInputShort
		if field.Multiline {
			style = discordgo.TextInputParagraph
		}

		components = append(components, discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.TextInput{
					CustomID:    field.Name,
					Label:       field.Name,
					Style:       style,
					Placeholder: field.Placeholder,
					Value:       field.DefaultValue,
					Required:    field.Required,
				},
			},
		})
	}

	// The modal custom ID is the entry point ID; the submit resolves the
	// descriptor through the registry again, so template updates between
	// show and submit are picked up.
	return a.Session().InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID:   entry.ID,
			Title:      entry.Title,
			Components: components,
		},
	})
}

// ticketModalHandler handles a submitted ticket form.
func ticketModalHandler(a IApp, i *discordgo.InteractionCreate, customID string) error {
	entry, ok := a.Registry().Lookup(customID)
	if !ok {
		return respondEphemeral(a, i, "This form is no longer active.")
	}

	// Collect the submitted values, keyed by field name.
	values := make(map[string]string)
	for _, row := range i.ModalSubmitData().Components {
		actionsRow, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, comp := range actionsRow.Components {
			if input, ok := comp.(*discordgo.TextInput); ok {
				values[input.CustomID] = input.Value
			}
		}
	}

	return createTicketFromEntry(a, i, entry, values)
}

func createTicketFromEntry(a IApp, i *discordgo.InteractionCreate, entry *ticketing.Descriptor, values map[string]string) error {
	ticket, err := a.Lifecycle().Create(context.Background(), actorFromInteraction(i), entry, values, nil)
	recordTicketOp("create", err)
	if err != nil {
		switch {
		case errors.Is(err, ticketing.ErrPermissionDenied):
			return respondEphemeral(a, i, "You are not allowed to open tickets through this entry point.")
		case errors.Is(err, ticketing.ErrCooldown):
			return respondEphemeral(a, i, messages.ErrTicketCooldown)
		}

		validationErr := new(ticketing.ValidationError)
		if errors.As(err, &validationErr) {
			return respondEphemeral(a, i, fmt.Sprintf("Invalid input: %s %s.", validationErr.Field, validationErr.Reason))
		}

		return fmt.Errorf("error creating ticket: %w", err)
	}

	// Send the control buttons into the new channel. The ticket is already
	// created; a failure here is logged rather than surfaced.
	if err := sendTicketControls(a, ticket.ChannelID); err != nil {
		a.Log().Warn("Error sending ticket controls", slog.String(logging.KeyError, err.Error()))
	}

	color := entry.EmbedColor
	if color == 0 {
		color = ticketing.DefaultEmbedColor
	}

	// Respond with an ephemeral embed pointing at the new channel.
	return a.Session().InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
			Embeds: []*discordgo.MessageEmbed{
				{
					Title:       "Ticket Created",
					Description: fmt.Sprintf("<@%s>, your ticket has been created.", ticket.CreatorID),
					Color:       color,
					Fields: []*discordgo.MessageEmbedField{
						{
							Name:   "Ticket Name",
							Value:  ticket.Name(),
							Inline: true,
						},
						{
							Name:   "Ticket Channel",
							Value:  fmt.Sprintf("<#%s>", ticket.ChannelID),
							Inline: true,
						},
					},
				},
			},
		},
	})
}

// sendTicketControls sends the claim and close buttons into a ticket
// channel.
func sendTicketControls(a IApp, channelID string) error {
	_, err := a.Session().ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: "A member of the support team will be with you shortly.",
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    fmt.Sprintf("%s Claim", ClaimEmoji),
						Style:    discordgo.PrimaryButton,
						CustomID: ClaimTicketButtonID,
					},
					discordgo.Button{
						Label:    fmt.Sprintf("%s Close", CloseEmoji),
						Style:    discordgo.SecondaryButton,
						CustomID: CloseTicketButtonID,
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("error sending message: %w", err)
	}
	return nil
}

// channelTicket returns the active ticket for the interaction's channel, or
// nil after telling the user this is not a ticket channel.
func channelTicket(a IApp, i *discordgo.InteractionCreate) (*entities.Ticket, error) {
	ticket, err := a.Lifecycle().TicketByChannel(context.Background(), i.GuildID, i.ChannelID)
	if err != nil {
		if errors.Is(err, ticketing.ErrNotFound) {
			return nil, respondEphemeral(a, i, messages.ErrNotATicketChannel)
		}
		return nil, fmt.Errorf("error getting ticket: %w", err)
	}
	return ticket, nil
}

// canManageTicket reports whether the actor may manage the ticket: its
// creator, anyone with the guild's support role, and administrators.
func canManageTicket(a IApp, i *discordgo.InteractionCreate, ticket *entities.Ticket) (bool, error) {
	actor := actorFromInteraction(i)
	if actor.Admin || actor.ID == ticket.CreatorID {
		return true, nil
	}

	guild, err := a.GuildDal().GuildByID(context.Background(), i.GuildID)
	if err != nil {
		if errors.Is(err, ticketing.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("error getting guild: %w", err)
	}

	return guild.Ticketing.RoleID != "" && hasRole(i.Member, guild.Ticketing.RoleID), nil
}

// supportOnly reports whether the actor holds the guild's support role or is
// an administrator.
func supportOnly(a IApp, i *discordgo.InteractionCreate) (bool, error) {
	actor := actorFromInteraction(i)
	if actor.Admin {
		return true, nil
	}

	guild, err := a.GuildDal().GuildByID(context.Background(), i.GuildID)
	if err != nil {
		if errors.Is(err, ticketing.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("error getting guild: %w", err)
	}

	return guild.Ticketing.RoleID != "" && hasRole(i.Member, guild.Ticketing.RoleID), nil
}

func claimTicketHandler(a IApp, i *discordgo.InteractionCreate) error {
	ticket, err := channelTicket(a, i)
	if err != nil || ticket == nil {
		return err
	}

	ok, err := supportOnly(a, i)
	if err != nil {
		return err
	}
	if !ok {
		return respondEphemeral(a, i, "You need the support role to claim tickets.")
	}

	claimed, err := a.Lifecycle().Claim(context.Background(), i.GuildID, ticket.ID, actorFromInteraction(i))
	recordTicketOp("claim", err)
	if err != nil {
		if errors.Is(err, ticketing.ErrInvalidState) {
			return respondEphemeral(a, i, "This ticket has already been claimed.")
		}
		return fmt.Errorf("error claiming ticket: %w", err)
	}

	// Respond in channel so the creator can see who picked it up.
	return a.Session().InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: fmt.Sprintf("<@%s> has claimed this ticket.", claimed.AssignedTo),
		},
	})
}

func closeTicketHandler(a IApp, i *discordgo.InteractionCreate) error {
	ticket, err := channelTicket(a, i)
	if err != nil || ticket == nil {
		return err
	}

	ok, err := canManageTicket(a, i, ticket)
	if err != nil {
		return err
	}
	if !ok {
		return respondEphemeral(a, i, "You are not allowed to close this ticket.")
	}

	reason := optString(subOptions(i), "reason")

	res, err := a.Lifecycle().Close(context.Background(), i.GuildID, ticket.ID, actorFromInteraction(i), reason)
	recordTicketOp("close", err)
	if err != nil {
		if errors.Is(err, ticketing.ErrInvalidState) {
			return respondEphemeral(a, i, "This ticket is already closed.")
		}
		return fmt.Errorf("error closing ticket: %w", err)
	}

	content := "This ticket has been closed. The channel will be deleted shortly."
	for _, w := range res.Warnings {
		content += fmt.Sprintf("\nNote: %s.", w)
	}

	return a.Session().InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
		},
	})
}

func priorityHandler(a IApp, i *discordgo.InteractionCreate) error {
	ticket, err := channelTicket(a, i)
	if err != nil || ticket == nil {
		return err
	}

	ok, err := supportOnly(a, i)
	if err != nil {
		return err
	}
	if !ok {
		return respondEphemeral(a, i, "You need the support role to set the ticket priority.")
	}

	level := optString(subOptions(i), "level")
	priority, ok := entities.ParsePriority(level)
	if !ok {
		return respondEphemeral(a, i, fmt.Sprintf("**%s** is not a valid priority.", level))
	}

	if _, err := a.Lifecycle().SetPriority(context.Background(), i.GuildID, ticket.ID, priority); err != nil {
		if errors.Is(err, ticketing.ErrInvalidState) {
			return respondEphemeral(a, i, "This ticket is already closed.")
		}
		return fmt.Errorf("error setting ticket priority: %w", err)
	}

	return a.Session().InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: fmt.Sprintf("Ticket priority set to **%s**.", priority),
		},
	})
}

func statsHandler(a IApp, i *discordgo.InteractionCreate) error {
	counts, err := a.Lifecycle().Stats(context.Background(), i.GuildID)
	if err != nil {
		return fmt.Errorf("error getting ticket stats: %w", err)
	}

	return a.Session().InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
			Embeds: []*discordgo.MessageEmbed{
				{
					Title: "Ticket Stats",
					Color: ticketing.DefaultEmbedColor,
					Fields: []*discordgo.MessageEmbedField{
						{
							Name:   "Open",
							Value:  fmt.Sprintf("%d", counts[entities.StatusOpen]),
							Inline: true,
						},
						{
							Name:   "Claimed",
							Value:  fmt.Sprintf("%d", counts[entities.StatusClaimed]),
							Inline: true,
						},
						{
							Name:   "Closed",
							Value:  fmt.Sprintf("%d", counts[entities.StatusClosed]),
							Inline: true,
						},
					},
				},
			},
		},
	})
}

func addUserHandler(a IApp, i *discordgo.InteractionCreate) error {
	ticket, err := channelTicket(a, i)
	if err != nil || ticket == nil {
		return err
	}

	ok, err := canManageTicket(a, i, ticket)
	if err != nil {
		return err
	}
	if !ok {
		return respondEphemeral(a, i, "You are not allowed to add users to this ticket.")
	}

	ref := optString(subOptions(i), "user")

	member, err := a.Lifecycle().AddParticipant(context.Background(), i.GuildID, ticket.ID, actorFromInteraction(i), ref)
	recordTicketOp("add_participant", err)
	if err != nil {
		switch {
		case errors.Is(err, ticketing.ErrUserNotFound):
			return respondEphemeral(a, i, fmt.Sprintf("Could not find a member matching **%s**.", ref))
		case errors.Is(err, ticketing.ErrInvalidState):
			return respondEphemeral(a, i, "This ticket is closed.")
		}
		return fmt.Errorf("error adding participant: %w", err)
	}

	return a.Session().InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: fmt.Sprintf("<@%s> has been added to this ticket.", member.ID),
		},
	})
}

func forceCloseHandler(a IApp, i *discordgo.InteractionCreate) error {
	actor := actorFromInteraction(i)
	if !actor.Admin {
		return respondEphemeral(a, i, messages.ErrNotAdministrator)
	}

	// Resolve the ticket regardless of status: force close also retries the
	// channel deletion of an already-closed ticket.
	ticket, err := a.Lifecycle().LatestTicketByChannel(context.Background(), i.GuildID, i.ChannelID)
	if err != nil {
		if errors.Is(err, ticketing.ErrNotFound) {
			return respondEphemeral(a, i, messages.ErrNotATicketChannel)
		}
		return fmt.Errorf("error getting ticket: %w", err)
	}

	reason := optString(subOptions(i), "reason")

	res, err := a.Lifecycle().ForceClose(context.Background(), i.GuildID, ticket.ID, actor, reason)
	recordTicketOp("force_close", err)
	if err != nil {
		return fmt.Errorf("error force closing ticket: %w", err)
	}

	content := "This ticket has been force closed."
	for _, w := range res.Warnings {
		content += fmt.Sprintf("\nNote: %s.", w)
	}

	return respondEphemeral(a, i, content)
}

// recordTicketOp counts a lifecycle operation by outcome.
func recordTicketOp(operation string, err error) {
	outcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, ticketing.ErrPermissionDenied):
		outcome = "denied"
	case errors.Is(err, ticketing.ErrInvalidState):
		outcome = "invalid_state"
	case errors.Is(err, ticketing.ErrCooldown):
		outcome = "cooldown"
	default:
		outcome = "error"
	}
	TotalTicketOperations.WithLabelValues(operation, outcome).Inc()
}
