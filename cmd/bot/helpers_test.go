package main

import (
	"testing"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/stretchr/testify/require"
)

func TestSubOptions(t *testing.T) {
	t.Run("SlashCommandWithSubCommand", func(t *testing.T) {
		i := &discordgo.InteractionCreate{
			Interaction: &discordgo.Interaction{
				Type: discordgo.InteractionApplicationCommand,
				Data: discordgo.ApplicationCommandInteractionData{
					Name: TicketCmdName,
					Options: []*discordgo.ApplicationCommandInteractionDataOption{
						{
							Name: CloseCmdName,
							Type: discordgo.ApplicationCommandOptionSubCommand,
							Options: []*discordgo.ApplicationCommandInteractionDataOption{
								{
									Name:  "reason",
									Type:  discordgo.ApplicationCommandOptionString,
									Value: "resolved",
								},
							},
						},
					},
				},
			},
		}

		opts := subOptions(i)
		require.Len(t, opts, 1)
		require.Equal(t, "resolved", optString(opts, "reason"))
	})

	t.Run("ComponentInteraction", func(t *testing.T) {
		// Button presses carry no command data; the close button shares its
		// handler with the slash command, so reading options off a component
		// interaction must not panic.
		i := &discordgo.InteractionCreate{
			Interaction: &discordgo.Interaction{
				Type: discordgo.InteractionMessageComponent,
				Data: discordgo.MessageComponentInteractionData{
					CustomID: CloseTicketButtonID,
				},
			},
		}

		var opts map[string]*discordgo.ApplicationCommandInteractionDataOption
		require.NotPanics(t, func() {
			opts = subOptions(i)
		})
		require.Empty(t, opts)
		require.Equal(t, "", optString(opts, "reason"))
	})

	t.Run("ModalSubmit", func(t *testing.T) {
		i := &discordgo.InteractionCreate{
			Interaction: &discordgo.Interaction{
				Type: discordgo.InteractionModalSubmit,
				Data: discordgo.ModalSubmitInteractionData{
					CustomID: "entry-point-id",
				},
			},
		}

		require.NotPanics(t, func() {
			require.Empty(t, subOptions(i))
		})
	})
}
