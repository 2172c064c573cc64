package ticketing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nexus-esports/lynx/pkg/custom"
	"github.com/nexus-esports/lynx/pkg/entities"
	"github.com/nexus-esports/lynx/pkg/logging"
	"golang.org/x/time/rate"
)

const (
	// maxChannelNameLen is the platform's channel name length limit.
	maxChannelNameLen = 100

	// closeGracePeriod is the user-visible delay between a close and the
	// deletion of the channel.
	closeGracePeriod = 10 * time.Second
)

// Lifecycle owns the ticket state machine: creation, claim, priority,
// participants, close and the deletion that follows it.
type Lifecycle struct {
	l        *slog.Logger
	tickets  TicketStore
	guilds   GuildStore
	channels ChannelAPI
	members  MemberDirectory
	archive  ArchiveSink
	resolver *Resolver

	// mu guards limiters and timers.
	mu sync.Mutex

	// limiters throttle ticket creation per user.
	limiters map[string]*rate.Limiter

	// timers are the pending channel deletions, keyed by guild:number.
	timers map[string]*time.Timer
}

// NewLifecycle creates a new ticket lifecycle manager.
func NewLifecycle(l *slog.Logger, tickets TicketStore, guilds GuildStore, channels ChannelAPI, members MemberDirectory, archive ArchiveSink, resolver *Resolver) *Lifecycle {
	return &Lifecycle{
		l:        l,
		tickets:  tickets,
		guilds:   guilds,
		channels: channels,
		members:  members,
		archive:  archive,
		resolver: resolver,
		limiters: make(map[string]*rate.Limiter),
		timers:   make(map[string]*time.Timer),
	}
}

// Create opens a new ticket through the given entry point.
//
// The row is persisted before any channel I/O; if channel creation, the
// permission grants or the intro message fail, the row is rolled back so no
// orphan rows are left behind. The store is never left reporting an open
// ticket for a channel that does not exist.
func (m *Lifecycle) Create(ctx context.Context, actor Actor, entry *Descriptor, values map[string]string, attachments []string) (*entities.Ticket, error) {
	if !m.resolver.Authorize(ctx, actor, entry.GuildID, entry.Scope()) {
		return nil, ErrPermissionDenied
	}

	if !m.limiter(entry.GuildID, actor.ID).Allow() {
		return nil, ErrCooldown
	}

	fields, err := mergeFieldValues(entry.Fields, values)
	if err != nil {
		return nil, err
	}

	guild, err := m.guilds.GuildByID(ctx, entry.GuildID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("error getting guild configuration: %w", err)
		}
		guild = &entities.Guild{ID: entry.GuildID}
	}

	// Allocate the ticket number. This is a single atomic increment in the
	// store: two concurrent creations in the same guild never collide.
	number, err := m.tickets.NextTicketNumber(ctx, entry.GuildID)
	if err != nil {
		return nil, fmt.Errorf("error allocating ticket number: %w", err)
	}

	ticket := &entities.Ticket{
		ID:              number,
		GuildID:         entry.GuildID,
		CreatorID:       actor.ID,
		CreatorName:     sanitizeName(actor.DisplayName),
		Status:          entities.StatusOpen,
		TicketType:      entry.Name,
		Priority:        entities.PriorityMedium,
		CustomFields:    fields,
		AttachmentLinks: attachments,
		CreatedAt:       nowDatetime(),
	}

	if err := m.tickets.SaveTicket(ctx, ticket); err != nil {
		return nil, fmt.Errorf("error saving ticket: %w", err)
	}

	// The store transaction is done; everything from here is channel I/O
	// followed by a reconcile of the row.
	channelID, err := m.setupChannel(ctx, guild, ticket)
	if err != nil {
		m.rollbackCreate(ctx, ticket, channelID)
		return nil, err
	}

	if err := m.tickets.SaveTicket(ctx, ticket); err != nil {
		m.rollbackCreate(ctx, ticket, channelID)
		return nil, fmt.Errorf("error saving ticket: %w", err)
	}

	m.l.Info("Ticket created",
		slog.String(logging.KeyGuildID, ticket.GuildID),
		slog.Int(logging.KeyTicketID, ticket.ID),
		slog.String(logging.KeyChannelID, ticket.ChannelID))

	return ticket, nil
}

// setupChannel creates the ticket channel, applies the permission grants and
// sends the pinned intro message, filling the ticket's channel and message
// IDs in as it goes.
func (m *Lifecycle) setupChannel(ctx context.Context, guild *entities.Guild, ticket *entities.Ticket) (string, error) {
	name := channelName(ticket)

	channelID, err := m.channels.CreateChannel(ctx, ticket.GuildID, guild.Ticketing.CategoryID, name)
	if err != nil {
		return "", newChannelError("create", "", err)
	}
	ticket.ChannelID = channelID

	grants := []PermissionGrant{
		// Deny @everyone from seeing the ticket.
		{PrincipalID: ticket.GuildID, PrincipalIsRole: true, CanRead: false, CanWrite: false},
		// The creator of the ticket can see the ticket.
		{PrincipalID: ticket.CreatorID, CanRead: true, CanWrite: true},
	}
	if guild.Ticketing.RoleID != "" {
		grants = append(grants, PermissionGrant{PrincipalID: guild.Ticketing.RoleID, PrincipalIsRole: true, CanRead: true, CanWrite: true})
	}

	for _, g := range grants {
		if err := m.channels.SetPermission(ctx, channelID, g); err != nil {
			return channelID, newChannelError("set_permission", channelID, err)
		}
	}

	msgID, err := m.channels.SendMessage(ctx, channelID, introMessage(guild, ticket))
	if err != nil {
		return channelID, newChannelError("send_message", channelID, err)
	}
	ticket.SetupMessageID = msgID

	if err := m.channels.PinMessage(ctx, channelID, msgID); err != nil {
		return channelID, newChannelError("pin_message", channelID, err)
	}

	return channelID, nil
}

// rollbackCreate removes the just-inserted ticket row, then deletes the
// channel if one was created. The row goes first: the channel may briefly
// outlive the row, the reverse is not allowed.
func (m *Lifecycle) rollbackCreate(ctx context.Context, ticket *entities.Ticket, channelID string) {
	if err := m.tickets.DeleteTicket(ctx, ticket.GuildID, ticket.ID); err != nil {
		m.l.Error("Error rolling back ticket row",
			slog.String(logging.KeyGuildID, ticket.GuildID),
			slog.Int(logging.KeyTicketID, ticket.ID),
			slog.String(logging.KeyError, err.Error()))
	}

	if channelID != "" {
		if err := m.channels.DeleteChannel(ctx, channelID, "ticket creation failed"); err != nil {
			m.l.Error("Error deleting channel after failed creation",
				slog.String(logging.KeyChannelID, channelID),
				slog.String(logging.KeyError, err.Error()))
		}
	}
}

// Claim assigns the ticket to the actor. Only an open ticket can be claimed;
// re-claiming by the same actor is a no-op success.
func (m *Lifecycle) Claim(ctx context.Context, guildID string, number int, actor Actor) (*entities.Ticket, error) {
	status := entities.StatusClaimed
	ticket, err := m.tickets.TransitionTicket(ctx, guildID, number,
		[]entities.TicketStatus{entities.StatusOpen},
		TicketUpdate{Status: &status, AssignedTo: &actor.ID})
	if err == nil {
		return ticket, nil
	}
	if !errors.Is(err, ErrInvalidState) {
		return nil, err
	}

	// The precondition failed: allow an idempotent re-claim by the same
	// actor, reject everything else.
	current, gerr := m.tickets.TicketByNumber(ctx, guildID, number)
	if gerr != nil {
		return nil, gerr
	}
	if current.Status == entities.StatusClaimed && current.AssignedTo == actor.ID {
		return current, nil
	}
	return nil, ErrInvalidState
}

// SetPriority changes the triage priority of an open or claimed ticket.
func (m *Lifecycle) SetPriority(ctx context.Context, guildID string, number int, priority entities.TicketPriority) (*entities.Ticket, error) {
	return m.tickets.TransitionTicket(ctx, guildID, number,
		[]entities.TicketStatus{entities.StatusOpen, entities.StatusClaimed},
		TicketUpdate{Priority: &priority})
}

var userMention = regexp.MustCompile(`^<@!?(\d+)>$`)

// AddParticipant grants a user read/write access to the ticket channel. The
// reference is resolved as a mention, then a raw ID, then a case-insensitive
// substring of member display names; an ambiguous substring picks the first
// match in directory order. This is a convenience lookup, not a security
// boundary.
func (m *Lifecycle) AddParticipant(ctx context.Context, guildID string, number int, actor Actor, ref string) (Member, error) {
	ticket, err := m.tickets.TicketByNumber(ctx, guildID, number)
	if err != nil {
		return Member{}, err
	}
	if !ticket.Active() {
		return Member{}, ErrInvalidState
	}

	target, err := m.resolveMember(ctx, guildID, ref)
	if err != nil {
		return Member{}, err
	}

	if err := m.channels.SetPermission(ctx, ticket.ChannelID, PermissionGrant{
		PrincipalID: target.ID,
		CanRead:     true,
		CanWrite:    true,
	}); err != nil {
		return Member{}, newChannelError("set_permission", ticket.ChannelID, err)
	}

	return target, nil
}

func (m *Lifecycle) resolveMember(ctx context.Context, guildID, ref string) (Member, error) {
	members, err := m.members.GuildMembers(ctx, guildID)
	if err != nil {
		return Member{}, fmt.Errorf("error listing members: %w", err)
	}

	if sub := userMention.FindStringSubmatch(ref); sub != nil {
		ref = sub[1]
	}

	if numericID.MatchString(ref) {
		for _, mem := range members {
			if mem.ID == ref {
				return mem, nil
			}
		}
	}

	needle := strings.ToLower(ref)
	for _, mem := range members {
		if strings.Contains(strings.ToLower(mem.DisplayName), needle) {
			return mem, nil
		}
	}

	return Member{}, ErrUserNotFound
}

// CloseResult is the outcome of a close. Warnings carry side-effect failures
// that did not block the close transition.
type CloseResult struct {
	Ticket   *entities.Ticket
	Warnings []string
}

// Close closes an open or claimed ticket. The transcript is built and handed
// to the archive sink before the channel is destroyed; the channel history is
// unrecoverable afterwards, so that ordering is mandatory. Transcript and
// delivery failures are surfaced as warnings, never as a failed close. The
// channel itself is deleted after a grace period on a cancellable timer.
func (m *Lifecycle) Close(ctx context.Context, guildID string, number int, actor Actor, reason string) (*CloseResult, error) {
	return m.close(ctx, guildID, number, actor, reason, closeGracePeriod, false)
}

// ForceClose is the administrator close: it skips the grace period, and a
// ticket already marked closed only re-attempts the channel deletion rather
// than failing, so operators can retry a deletion that previously failed.
func (m *Lifecycle) ForceClose(ctx context.Context, guildID string, number int, actor Actor, reason string) (*CloseResult, error) {
	if !actor.Admin {
		return nil, ErrPermissionDenied
	}
	return m.close(ctx, guildID, number, actor, reason, 0, true)
}

func (m *Lifecycle) close(ctx context.Context, guildID string, number int, actor Actor, reason string, grace time.Duration, force bool) (*CloseResult, error) {
	status := entities.StatusClosed
	closedAt := time.Now().UTC()

	ticket, err := m.tickets.TransitionTicket(ctx, guildID, number,
		[]entities.TicketStatus{entities.StatusOpen, entities.StatusClaimed},
		TicketUpdate{Status: &status, ClosedBy: &actor.ID, ClosedAt: &closedAt})
	if err != nil {
		if !force || !errors.Is(err, ErrInvalidState) {
			return nil, err
		}
		// Already closed; re-attempt the deletion below.
		ticket, err = m.tickets.TicketByNumber(ctx, guildID, number)
		if err != nil {
			return nil, err
		}
	}

	res := &CloseResult{Ticket: ticket}

	// The transcript has to exist before the channel goes away.
	doc, err := BuildTranscript(ctx, m.channels, ticket)
	if err != nil {
		m.l.Warn("Transcript could not be completed",
			slog.String(logging.KeyGuildID, guildID),
			slog.Int(logging.KeyTicketID, number),
			slog.String(logging.KeyError, err.Error()))
		res.Warnings = append(res.Warnings, "transcript could not be completed")
	} else if err := m.archive.DeliverTranscript(ctx, ticket, doc); err != nil {
		m.l.Warn("Transcript delivery failed",
			slog.String(logging.KeyGuildID, guildID),
			slog.Int(logging.KeyTicketID, number),
			slog.String(logging.KeyError, err.Error()))
		res.Warnings = append(res.Warnings, "transcript delivery failed")
	}

	m.scheduleDeletion(ticket, reason, grace)

	m.l.Info("Ticket closed",
		slog.String(logging.KeyGuildID, guildID),
		slog.Int(logging.KeyTicketID, number),
		slog.String("reason", reason))

	return res, nil
}

// scheduleDeletion deletes the ticket channel after the grace period without
// blocking the caller. The logical close already stands; if the physical
// deletion fails the row stays closed and the failure is reported for a
// manual retry.
func (m *Lifecycle) scheduleDeletion(ticket *entities.Ticket, reason string, grace time.Duration) {
	key := fmt.Sprintf("%s:%d", ticket.GuildID, ticket.ID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.timers[key]; ok {
		t.Stop()
	}

	m.timers[key] = time.AfterFunc(grace, func() {
		m.mu.Lock()
		delete(m.timers, key)
		m.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := m.channels.DeleteChannel(ctx, ticket.ChannelID, reason); err != nil {
			m.l.Error("Error deleting ticket channel, retry with forceclose",
				slog.String(logging.KeyGuildID, ticket.GuildID),
				slog.Int(logging.KeyTicketID, ticket.ID),
				slog.String(logging.KeyChannelID, ticket.ChannelID),
				slog.String(logging.KeyError, err.Error()))
		}
	})
}

// Stats returns the number of tickets per status for a guild. Closed rows
// are kept around precisely for this.
func (m *Lifecycle) Stats(ctx context.Context, guildID string) (map[entities.TicketStatus]int, error) {
	return m.tickets.CountByStatus(ctx, guildID)
}

// TicketByChannel resolves the active ticket bound to a channel.
func (m *Lifecycle) TicketByChannel(ctx context.Context, guildID, channelID string) (*entities.Ticket, error) {
	return m.tickets.ActiveTicketByChannel(ctx, guildID, channelID)
}

// LatestTicketByChannel resolves the newest ticket bound to a channel
// regardless of status. ForceClose works off this so an operator can retry
// the deletion of a channel whose ticket is already closed.
func (m *Lifecycle) LatestTicketByChannel(ctx context.Context, guildID, channelID string) (*entities.Ticket, error) {
	return m.tickets.LatestTicketByChannel(ctx, guildID, channelID)
}

// Shutdown cancels pending channel deletions.
func (m *Lifecycle) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, t := range m.timers {
		t.Stop()
		delete(m.timers, key)
	}
}

func (m *Lifecycle) limiter(guildID, userID string) *rate.Limiter {
	key := guildID + ":" + userID

	m.mu.Lock()
	defer m.mu.Unlock()

	lim, ok := m.limiters[key]
	if !ok {
		// Three tickets immediately, then one per minute.
		lim = rate.NewLimiter(rate.Every(time.Minute), 3)
		m.limiters[key] = lim
	}
	return lim
}

// mergeFieldValues checks the submitted values against the entry point's
// field specs, applying defaults and enforcing required fields.
func mergeFieldValues(specs []entities.FieldSpec, values map[string]string) (map[string]string, error) {
	fields := make(map[string]string, len(specs))

	for _, spec := range specs {
		v := strings.TrimSpace(values[spec.Name])
		if v == "" {
			v = spec.DefaultValue
		}
		if v == "" {
			if spec.Required {
				return nil, NewValidationError(spec.Name, "required field is missing")
			}
			continue
		}
		fields[spec.Name] = v
	}

	return fields, nil
}

// channelName derives the channel name from the ticket, truncated to the
// platform limit.
func channelName(t *entities.Ticket) string {
	name := t.Name()
	if runes := []rune(name); len(runes) > maxChannelNameLen {
		name = string(runes[:maxChannelNameLen])
	}
	return name
}

// sanitizeName lowercases a display name and replaces characters a channel
// name cannot carry.
func sanitizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.Join(strings.Fields(name), "-")
	if name == "" {
		name = "user"
	}
	return name
}

// introMessage is the first message of a ticket channel, mentioning the
// creator and, when configured, the ping role.
func introMessage(guild *entities.Guild, ticket *entities.Ticket) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("<@%s>", ticket.CreatorID))
	if guild.Ticketing.PingRoleID != "" {
		b.WriteString(fmt.Sprintf(" <@&%s>", guild.Ticketing.PingRoleID))
	}
	b.WriteString(fmt.Sprintf("\nTicket #%d (%s) has been created.", ticket.ID, ticket.TicketType))
	b.WriteString("\nPlease provide any additional info you deem relevant to help us answer faster.")

	names := make([]string, 0, len(ticket.CustomFields))
	for name := range ticket.CustomFields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.WriteString(fmt.Sprintf("\n**%s**: %s", name, ticket.CustomFields[name]))
	}

	return b.String()
}

func nowDatetime() custom.Datetime {
	return custom.Datetime(time.Now().UTC())
}
