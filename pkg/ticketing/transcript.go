package ticketing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nexus-esports/lynx/pkg/entities"
)

// Document is an archival transcript of a ticket channel. Plain UTF-8 text,
// one line per message.
type Document struct {
	// Filename is a suggested name for the archive file.
	Filename string

	// Body is the transcript content.
	Body []byte

	// MessageCount is the number of messages serialized.
	MessageCount int
}

// BuildTranscript serializes the channel's full message history into a
// document, oldest message first. Each entry renders as
// "timestamp - author: content", with an [embed] marker per rich embed and
// attachment URLs listed inline. If the history fetch is interrupted the
// whole build fails with ErrTranscriptIncomplete; a partial document is
// never passed off as complete.
func BuildTranscript(ctx context.Context, channels ChannelAPI, ticket *entities.Ticket) (*Document, error) {
	history, err := channels.FetchHistory(ctx, ticket.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscriptIncomplete, err)
	}

	var b strings.Builder
	for _, msg := range history {
		b.WriteString(formatTranscriptLine(msg))
		b.WriteByte('\n')
	}

	return &Document{
		Filename:     fmt.Sprintf("transcript-%s.txt", ticket.Name()),
		Body:         []byte(b.String()),
		MessageCount: len(history),
	}, nil
}

func formatTranscriptLine(msg Message) string {
	var b strings.Builder

	b.WriteString(msg.Timestamp.UTC().Format(time.RFC3339))
	b.WriteString(" - ")
	b.WriteString(msg.AuthorName)
	b.WriteString(": ")
	b.WriteString(msg.Content)

	for i := 0; i < msg.EmbedCount; i++ {
		b.WriteString(" [embed]")
	}

	for _, url := range msg.AttachmentURLs {
		b.WriteString(" ")
		b.WriteString(url)
	}

	return b.String()
}
