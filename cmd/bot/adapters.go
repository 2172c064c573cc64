package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/nexus-esports/lynx/pkg/entities"
	"github.com/nexus-esports/lynx/pkg/logging"
	"github.com/nexus-esports/lynx/pkg/ticketing"
)

const (
	// historyPageSize is the Discord maximum for a single history fetch.
	historyPageSize = 100

	// memberPageSize is the Discord maximum for a single member list fetch.
	memberPageSize = 1000
)

// discordChannels implements ticketing.ChannelAPI against the gateway
// session.
type discordChannels struct {
	s *discordgo.Session
}

func newDiscordChannels(s *discordgo.Session) *discordChannels {
	return &discordChannels{s: s}
}

func (c *discordChannels) CreateChannel(_ context.Context, guildID, categoryID, name string) (string, error) {
	channel, err := c.s.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:     name,
		Type:     discordgo.ChannelTypeGuildText,
		ParentID: categoryID,
	})
	if err != nil {
		return "", fmt.Errorf("error creating channel: %w", err)
	}
	return channel.ID, nil
}

func (c *discordChannels) SetPermission(_ context.Context, channelID string, grant ticketing.PermissionGrant) error {
	overwriteType := discordgo.PermissionOverwriteTypeMember
	if grant.PrincipalIsRole {
		overwriteType = discordgo.PermissionOverwriteTypeRole
	}

	var allow, deny int64
	switch {
	case grant.CanRead && grant.CanWrite:
		allow = discordgo.PermissionAllText
		deny = discordgo.PermissionMentionEveryone
	case grant.CanRead:
		allow = discordgo.PermissionViewChannel | discordgo.PermissionReadMessageHistory
		deny = discordgo.PermissionSendMessages
	default:
		// Hide the channel entirely.
		deny = discordgo.PermissionAll
	}

	if err := c.s.ChannelPermissionSet(channelID, grant.PrincipalID, overwriteType, allow, deny); err != nil {
		return fmt.Errorf("error setting channel permission: %w", err)
	}
	return nil
}

func (c *discordChannels) SendMessage(_ context.Context, channelID, content string) (string, error) {
	msg, err := c.s.ChannelMessageSend(channelID, content)
	if err != nil {
		return "", fmt.Errorf("error sending message: %w", err)
	}
	return msg.ID, nil
}

func (c *discordChannels) PinMessage(_ context.Context, channelID, messageID string) error {
	if err := c.s.ChannelMessagePin(channelID, messageID); err != nil {
		return fmt.Errorf("error pinning message: %w", err)
	}
	return nil
}

func (c *discordChannels) DeleteChannel(_ context.Context, channelID, _ string) error {
	if _, err := c.s.ChannelDelete(channelID); err != nil {
		return fmt.Errorf("error deleting channel: %w", err)
	}
	return nil
}

func (c *discordChannels) FetchHistory(_ context.Context, channelID string) ([]ticketing.Message, error) {
	var history []ticketing.Message

	// Walk the history backwards a page at a time; Discord returns newest
	// first.
	before := ""
	for {
		page, err := c.s.ChannelMessages(channelID, historyPageSize, before, "", "")
		if err != nil {
			return nil, fmt.Errorf("error fetching channel messages: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for _, msg := range page {
			urls := make([]string, 0, len(msg.Attachments))
			for _, att := range msg.Attachments {
				urls = append(urls, att.URL)
			}

			history = append(history, ticketing.Message{
				ID:             msg.ID,
				AuthorName:     msg.Author.Username,
				Content:        msg.Content,
				Timestamp:      msg.Timestamp,
				EmbedCount:     len(msg.Embeds),
				AttachmentURLs: urls,
			})
		}

		before = page[len(page)-1].ID
		if len(page) < historyPageSize {
			break
		}
	}

	// Reverse into chronological order, oldest first.
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}

	return history, nil
}

// discordMembers implements ticketing.MemberDirectory against the gateway
// session.
type discordMembers struct {
	s *discordgo.Session
}

func newDiscordMembers(s *discordgo.Session) *discordMembers {
	return &discordMembers{s: s}
}

func (d *discordMembers) GuildMembers(_ context.Context, guildID string) ([]ticketing.Member, error) {
	var members []ticketing.Member

	after := ""
	for {
		page, err := d.s.GuildMembers(guildID, after, memberPageSize)
		if err != nil {
			return nil, fmt.Errorf("error listing guild members: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for _, m := range page {
			name := m.User.Username
			if m.Nick != "" {
				name = m.Nick
			}
			members = append(members, ticketing.Member{
				ID:          m.User.ID,
				DisplayName: name,
			})
		}

		after = page[len(page)-1].User.ID
		if len(page) < memberPageSize {
			break
		}
	}

	return members, nil
}

// discordArchive implements ticketing.ArchiveSink. Transcripts go to the
// guild's log channel when one is configured, and to the creator by DM. The
// delivery succeeds if either destination accepts the file.
type discordArchive struct {
	l      *slog.Logger
	s      *discordgo.Session
	guilds ticketing.GuildStore
}

func newDiscordArchive(l *slog.Logger, s *discordgo.Session, guilds ticketing.GuildStore) *discordArchive {
	return &discordArchive{
		l:      l,
		s:      s,
		guilds: guilds,
	}
}

func (d *discordArchive) DeliverTranscript(ctx context.Context, ticket *entities.Ticket, doc *ticketing.Document) error {
	delivered := false

	guild, err := d.guilds.GuildByID(ctx, ticket.GuildID)
	if err != nil {
		d.l.Warn("Error getting guild configuration for transcript delivery",
			slog.String(logging.KeyGuildID, ticket.GuildID),
			slog.String(logging.KeyError, err.Error()))
	} else if guild.Ticketing.LogChannelID != "" {
		if err := d.sendTranscript(guild.Ticketing.LogChannelID, ticket, doc); err != nil {
			d.l.Warn("Error delivering transcript to log channel",
				slog.String(logging.KeyGuildID, ticket.GuildID),
				slog.String(logging.KeyChannelID, guild.Ticketing.LogChannelID),
				slog.String(logging.KeyError, err.Error()))
		} else {
			delivered = true
		}
	}

	// DM the creator a copy.
	if dm, err := d.s.UserChannelCreate(ticket.CreatorID); err != nil {
		d.l.Warn("Error opening DM channel for transcript delivery",
			slog.String(logging.KeyGuildID, ticket.GuildID),
			slog.String(logging.KeyError, err.Error()))
	} else if err := d.sendTranscript(dm.ID, ticket, doc); err != nil {
		d.l.Warn("Error delivering transcript by DM",
			slog.String(logging.KeyGuildID, ticket.GuildID),
			slog.String(logging.KeyError, err.Error()))
	} else {
		delivered = true
	}

	if !delivered {
		return fmt.Errorf("transcript for %s could not be delivered anywhere", ticket.Name())
	}
	return nil
}

func (d *discordArchive) sendTranscript(channelID string, ticket *entities.Ticket, doc *ticketing.Document) error {
	_, err := d.s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: fmt.Sprintf("Transcript for %s (%d messages).", ticket.Name(), doc.MessageCount),
		Files: []*discordgo.File{
			{
				Name:        doc.Filename,
				ContentType: "text/plain",
				Reader:      bytes.NewReader(doc.Body),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("error sending transcript file: %w", err)
	}
	return nil
}
