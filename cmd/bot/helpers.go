package main

import (
	"github.com/Jacobbrewer1/discordgo"
	"github.com/nexus-esports/lynx/pkg/messages"
	"github.com/nexus-esports/lynx/pkg/ticketing"
)

func respondSlashError(a IApp, i *discordgo.InteractionCreate) error {
	return respondEphemeral(a, i, messages.ErrUserErrorProcessing)
}

func respondEphemeral(a IApp, i *discordgo.InteractionCreate, content string) error {
	return a.Session().InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

// actorFromInteraction builds the lifecycle's view of the invoking member.
func actorFromInteraction(i *discordgo.InteractionCreate) ticketing.Actor {
	name := i.Member.User.Username
	if i.Member.Nick != "" {
		name = i.Member.Nick
	}

	return ticketing.Actor{
		ID:          i.Member.User.ID,
		DisplayName: name,
		RoleIDs:     i.Member.Roles,
		Admin:       i.Member.Permissions&discordgo.PermissionAdministrator != 0,
	}
}

func hasRole(member *discordgo.Member, roleID string) bool {
	for _, r := range member.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

// subOptions maps the options of the invoked sub command by name. Handlers
// shared between slash commands and buttons call this with component
// interactions too, which carry no command data; those get an empty map
// rather than tripping the accessor's type assertion.
func subOptions(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	if i.Type != discordgo.InteractionApplicationCommand {
		return map[string]*discordgo.ApplicationCommandInteractionDataOption{}
	}

	data := i.ApplicationCommandData()

	opts := data.Options
	if len(opts) > 0 && opts[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		opts = opts[0].Options
	}

	out := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, o := range opts {
		out[o.Name] = o
	}
	return out
}

func optString(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if o, ok := opts[name]; ok {
		return o.StringValue()
	}
	return ""
}

func optInt(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) int {
	if o, ok := opts[name]; ok {
		return int(o.IntValue())
	}
	return 0
}
