package ticketing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nexus-esports/lynx/pkg/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lifecycleFixture struct {
	tickets  *fakeTicketStore
	guilds   *fakeGuildStore
	channels *fakeChannelAPI
	dir      *fakeDirectory
	archive  *fakeArchive
	manager  *Lifecycle
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()

	f := &lifecycleFixture{
		tickets:  newFakeTicketStore(),
		guilds:   newFakeGuildStore(),
		channels: newFakeChannelAPI(),
		dir:      &fakeDirectory{},
		archive:  &fakeArchive{},
	}

	require.NoError(t, f.guilds.SaveGuild(context.Background(), &entities.Guild{
		ID: "g1",
		Ticketing: entities.TicketingConfig{
			RoleID:       "support",
			CategoryID:   "cat-1",
			PingRoleID:   "ping",
			LogChannelID: "log-1",
		},
	}))

	resolver := NewResolver(testLogger(), f.guilds)
	f.manager = NewLifecycle(testLogger(), f.tickets, f.guilds, f.channels, f.dir, f.archive, resolver)
	t.Cleanup(f.manager.Shutdown)

	return f
}

func billingEntry() *Descriptor {
	return &Descriptor{
		ID:      "preset-billing",
		Kind:    KindPreset,
		GuildID: "g1",
		Name:    "billing",
		Title:   "Billing",
		Fields:  []entities.FieldSpec{{Name: "Amount", Required: true}},
	}
}

func supportActor(id string) Actor {
	return Actor{ID: id, DisplayName: "Alice Smith", RoleIDs: []string{"support"}}
}

func TestCreateTicket(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	ticket, err := f.manager.Create(ctx, supportActor("u1"), billingEntry(), map[string]string{"Amount": "42"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, ticket.ID)
	assert.Equal(t, entities.StatusOpen, ticket.Status)
	assert.Equal(t, entities.PriorityMedium, ticket.Priority)
	assert.Equal(t, "billing", ticket.TicketType)
	assert.Equal(t, "42", ticket.CustomFields["Amount"])
	assert.Equal(t, "ticket-1-alice-smith", f.channels.channels[ticket.ChannelID])

	// Creator read/write, @everyone denied, support role read/write.
	grants := f.channels.grants[ticket.ChannelID]
	require.Len(t, grants, 3)
	assert.Equal(t, "g1", grants[0].PrincipalID)
	assert.False(t, grants[0].CanRead)
	assert.Equal(t, "u1", grants[1].PrincipalID)
	assert.True(t, grants[1].CanRead)
	assert.True(t, grants[1].CanWrite)
	assert.Equal(t, "support", grants[2].PrincipalID)
	assert.True(t, grants[2].PrincipalIsRole)

	// Intro message sent and pinned, and the row reconciled with its IDs.
	require.Len(t, f.channels.messages[ticket.ChannelID], 1)
	require.Len(t, f.channels.pins[ticket.ChannelID], 1)

	stored, err := f.tickets.TicketByNumber(ctx, "g1", 1)
	require.NoError(t, err)
	assert.Equal(t, ticket.ChannelID, stored.ChannelID)
	assert.NotEmpty(t, stored.SetupMessageID)
}

func TestCreateTicketPermissionDenied(t *testing.T) {
	f := newLifecycleFixture(t)

	_, err := f.manager.Create(context.Background(), Actor{ID: "u1", DisplayName: "bob"}, billingEntry(), map[string]string{"Amount": "1"}, nil)
	require.ErrorIs(t, err, ErrPermissionDenied)

	// No row, no channel.
	_, err = f.tickets.TicketByNumber(context.Background(), "g1", 1)
	require.ErrorIs(t, err, ErrNotFound)
	require.Empty(t, f.channels.channels)
}

func TestCreateTicketRequiredField(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	// Submitting without the required Amount fails validation.
	_, err := f.manager.Create(ctx, supportActor("u1"), billingEntry(), map[string]string{}, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Amount", verr.Field)

	// Submitting with it creates exactly one ticket carrying the value.
	ticket, err := f.manager.Create(ctx, supportActor("u2"), billingEntry(), map[string]string{"Amount": "42"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "42", ticket.CustomFields["Amount"])

	counts, err := f.manager.Stats(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 1, counts[entities.StatusOpen])
}

func TestCreateTicketRollbackOnChannelFailure(t *testing.T) {
	f := newLifecycleFixture(t)
	f.channels.failSend = errors.New("api down")

	_, err := f.manager.Create(context.Background(), supportActor("u1"), billingEntry(), map[string]string{"Amount": "1"}, nil)

	var cerr *ChannelOperationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "send_message", cerr.Op)

	// The inserted row was rolled back and the half-made channel deleted.
	_, err = f.tickets.TicketByNumber(context.Background(), "g1", 1)
	require.ErrorIs(t, err, ErrNotFound)
	require.Len(t, f.channels.deletedChannels(), 1)
}

func TestCreateTicketConcurrentNumbering(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	const n = 20

	var wg sync.WaitGroup
	results := make(chan *entities.Ticket, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Distinct actors so the per-user cooldown does not bite.
			ticket, err := f.manager.Create(ctx, supportActor(fmt.Sprintf("u%d", i)), billingEntry(), map[string]string{"Amount": "1"}, nil)
			if err == nil {
				results <- ticket
			}
		}(i)
	}
	wg.Wait()
	close(results)

	seen := make(map[int]bool)
	count := 0
	for ticket := range results {
		require.False(t, seen[ticket.ID], "duplicate ticket number %d", ticket.ID)
		seen[ticket.ID] = true
		count++
	}
	require.Equal(t, n, count)
}

func TestCreateTicketCooldown(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	// The burst allows three quick creations, the fourth is throttled.
	for i := 0; i < 3; i++ {
		_, err := f.manager.Create(ctx, supportActor("u1"), billingEntry(), map[string]string{"Amount": "1"}, nil)
		require.NoError(t, err)
	}

	_, err := f.manager.Create(ctx, supportActor("u1"), billingEntry(), map[string]string{"Amount": "1"}, nil)
	require.ErrorIs(t, err, ErrCooldown)
}

func TestClaim(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	ticket, err := f.manager.Create(ctx, supportActor("u1"), billingEntry(), map[string]string{"Amount": "1"}, nil)
	require.NoError(t, err)

	staff := supportActor("staff-1")

	claimed, err := f.manager.Claim(ctx, "g1", ticket.ID, staff)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusClaimed, claimed.Status)
	assert.Equal(t, "staff-1", claimed.AssignedTo)

	// Re-claiming by the same actor is a no-op success.
	again, err := f.manager.Claim(ctx, "g1", ticket.ID, staff)
	require.NoError(t, err)
	assert.Equal(t, "staff-1", again.AssignedTo)

	// A different actor cannot steal the claim.
	_, err = f.manager.Claim(ctx, "g1", ticket.ID, supportActor("staff-2"))
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestClaimClosedTicket(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	ticket, err := f.manager.Create(ctx, supportActor("u1"), billingEntry(), map[string]string{"Amount": "1"}, nil)
	require.NoError(t, err)

	_, err = f.manager.Close(ctx, "g1", ticket.ID, supportActor("staff-1"), "resolved")
	require.NoError(t, err)

	_, err = f.manager.Claim(ctx, "g1", ticket.ID, supportActor("staff-1"))
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestSetPriority(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	ticket, err := f.manager.Create(ctx, supportActor("u1"), billingEntry(), map[string]string{"Amount": "1"}, nil)
	require.NoError(t, err)

	updated, err := f.manager.SetPriority(ctx, "g1", ticket.ID, entities.PriorityCritical)
	require.NoError(t, err)
	assert.Equal(t, entities.PriorityCritical, updated.Priority)

	_, err = f.manager.Close(ctx, "g1", ticket.ID, supportActor("staff-1"), "done")
	require.NoError(t, err)

	_, err = f.manager.SetPriority(ctx, "g1", ticket.ID, entities.PriorityLow)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestAddParticipant(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	f.dir.members = []Member{
		{ID: "100", DisplayName: "Charlie"},
		{ID: "200", DisplayName: "Charlotte"},
		{ID: "300", DisplayName: "Dave"},
	}

	ticket, err := f.manager.Create(ctx, supportActor("u1"), billingEntry(), map[string]string{"Amount": "1"}, nil)
	require.NoError(t, err)

	tests := []struct {
		name string
		ref  string
		want string
	}{
		{name: "Mention", ref: "<@300>", want: "300"},
		{name: "NickMention", ref: "<@!300>", want: "300"},
		{name: "RawID", ref: "200", want: "200"},
		// Ambiguous substring picks the first match in directory order.
		{name: "Substring", ref: "charl", want: "100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			member, err := f.manager.AddParticipant(ctx, "g1", ticket.ID, supportActor("staff-1"), tt.ref)
			require.NoError(t, err)
			require.Equal(t, tt.want, member.ID)
		})
	}

	t.Run("NotFound", func(t *testing.T) {
		_, err := f.manager.AddParticipant(ctx, "g1", ticket.ID, supportActor("staff-1"), "nobody-here")
		require.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestAddParticipantAfterClose(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	f.dir.members = []Member{{ID: "100", DisplayName: "Charlie"}}

	ticket, err := f.manager.Create(ctx, supportActor("u1"), billingEntry(), map[string]string{"Amount": "1"}, nil)
	require.NoError(t, err)

	_, err = f.manager.Close(ctx, "g1", ticket.ID, supportActor("staff-1"), "resolved")
	require.NoError(t, err)

	_, err = f.manager.AddParticipant(ctx, "g1", ticket.ID, supportActor("staff-1"), "100")
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestClose(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	ticket, err := f.manager.Create(ctx, supportActor("u1"), billingEntry(), map[string]string{"Amount": "1"}, nil)
	require.NoError(t, err)

	res, err := f.manager.Close(ctx, "g1", ticket.ID, supportActor("staff-1"), "resolved")
	require.NoError(t, err)
	require.Empty(t, res.Warnings)
	assert.Equal(t, entities.StatusClosed, res.Ticket.Status)
	assert.Equal(t, "staff-1", res.Ticket.ClosedBy)

	// The transcript was delivered synchronously, before any deletion.
	require.Len(t, f.archive.delivered, 1)
	require.Empty(t, f.channels.deletedChannels(), "deletion waits for the grace period")

	// Closing again is rejected; closed is terminal.
	_, err = f.manager.Close(ctx, "g1", ticket.ID, supportActor("staff-1"), "again")
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestCloseTranscriptDeliveryFailureIsWarning(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	f.archive.fail = errors.New("log channel unavailable")

	ticket, err := f.manager.Create(ctx, supportActor("u1"), billingEntry(), map[string]string{"Amount": "1"}, nil)
	require.NoError(t, err)

	res, err := f.manager.Close(ctx, "g1", ticket.ID, supportActor("staff-1"), "resolved")
	require.NoError(t, err, "delivery failure must not block the close")
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, entities.StatusClosed, res.Ticket.Status)
}

func TestCloseTranscriptIncompleteIsWarning(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	ticket, err := f.manager.Create(ctx, supportActor("u1"), billingEntry(), map[string]string{"Amount": "1"}, nil)
	require.NoError(t, err)

	f.channels.failHistory = errors.New("history fetch interrupted")

	res, err := f.manager.Close(ctx, "g1", ticket.ID, supportActor("staff-1"), "resolved")
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	require.Empty(t, f.archive.delivered, "no partial transcript is delivered")
}

func TestForceClose(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	ticket, err := f.manager.Create(ctx, supportActor("u1"), billingEntry(), map[string]string{"Amount": "1"}, nil)
	require.NoError(t, err)

	t.Run("RequiresAdmin", func(t *testing.T) {
		_, err := f.manager.ForceClose(ctx, "g1", ticket.ID, supportActor("staff-1"), "spam")
		require.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("SkipsGracePeriod", func(t *testing.T) {
		admin := Actor{ID: "admin-1", DisplayName: "admin", Admin: true}
		res, err := f.manager.ForceClose(ctx, "g1", ticket.ID, admin, "spam")
		require.NoError(t, err)
		assert.Equal(t, entities.StatusClosed, res.Ticket.Status)

		// Deletion fires immediately (zero grace), just asynchronously.
		require.Eventually(t, func() bool {
			return len(f.channels.deletedChannels()) == 1
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("RetriesDeletionWhenAlreadyClosed", func(t *testing.T) {
		admin := Actor{ID: "admin-1", DisplayName: "admin", Admin: true}
		_, err := f.manager.ForceClose(ctx, "g1", ticket.ID, admin, "cleanup")
		require.NoError(t, err, "forceclose on a closed ticket re-attempts deletion")
	})

	t.Run("ClosedTicketStillResolvesByChannel", func(t *testing.T) {
		// The active lookup no longer sees the closed ticket, but the retry
		// path has to find it by channel to re-attempt the deletion.
		_, err := f.manager.TicketByChannel(ctx, "g1", ticket.ChannelID)
		require.ErrorIs(t, err, ErrNotFound)

		found, err := f.manager.LatestTicketByChannel(ctx, "g1", ticket.ChannelID)
		require.NoError(t, err)
		assert.Equal(t, ticket.ID, found.ID)
		assert.Equal(t, entities.StatusClosed, found.Status)

		admin := Actor{ID: "admin-1", DisplayName: "admin", Admin: true}
		_, err = f.manager.ForceClose(ctx, "g1", found.ID, admin, "cleanup")
		require.NoError(t, err)
	})
}
