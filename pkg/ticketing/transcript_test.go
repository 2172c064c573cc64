package ticketing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nexus-esports/lynx/pkg/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTranscript(t *testing.T) {
	channels := newFakeChannelAPI()

	t1 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 5, 1, 10, 5, 0, 0, time.UTC)

	channels.history["chan-1"] = []Message{
		{ID: "m1", AuthorName: "alice", Content: "hi", Timestamp: t1},
		{ID: "m2", AuthorName: "bob", Content: "hello", Timestamp: t2},
	}

	ticket := &entities.Ticket{ID: 7, GuildID: "g1", ChannelID: "chan-1", CreatorName: "alice"}

	doc, err := BuildTranscript(context.Background(), channels, ticket)
	require.NoError(t, err)

	assert.Equal(t, "transcript-ticket-7-alice.txt", doc.Filename)
	assert.Equal(t, 2, doc.MessageCount)

	// Chronological order, oldest first, never reordered by author.
	want := "2024-05-01T10:00:00Z - alice: hi\n" +
		"2024-05-01T10:05:00Z - bob: hello\n"
	assert.Equal(t, want, string(doc.Body))
}

func TestBuildTranscriptRichContent(t *testing.T) {
	channels := newFakeChannelAPI()

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	channels.history["chan-1"] = []Message{
		{
			AuthorName:     "alice",
			Content:        "see attached",
			Timestamp:      ts,
			EmbedCount:     2,
			AttachmentURLs: []string{"https://cdn.example/a.png", "https://cdn.example/b.log"},
		},
	}

	ticket := &entities.Ticket{ID: 1, GuildID: "g1", ChannelID: "chan-1", CreatorName: "alice"}

	doc, err := BuildTranscript(context.Background(), channels, ticket)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(doc.Body), "\n"), "\n")
	require.Len(t, lines, 1)
	assert.Equal(t, "2024-05-01T12:00:00Z - alice: see attached [embed] [embed] https://cdn.example/a.png https://cdn.example/b.log", lines[0])
}

func TestBuildTranscriptEmptyChannel(t *testing.T) {
	channels := newFakeChannelAPI()
	ticket := &entities.Ticket{ID: 2, GuildID: "g1", ChannelID: "chan-1", CreatorName: "bob"}

	doc, err := BuildTranscript(context.Background(), channels, ticket)
	require.NoError(t, err)
	assert.Equal(t, 0, doc.MessageCount)
	assert.Empty(t, doc.Body)
}

func TestBuildTranscriptIncomplete(t *testing.T) {
	channels := newFakeChannelAPI()
	channels.failHistory = errors.New("connection reset")

	ticket := &entities.Ticket{ID: 3, GuildID: "g1", ChannelID: "chan-1", CreatorName: "bob"}

	_, err := BuildTranscript(context.Background(), channels, ticket)
	require.ErrorIs(t, err, ErrTranscriptIncomplete)
}
