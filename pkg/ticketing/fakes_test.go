package ticketing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/nexus-esports/lynx/pkg/entities"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTicketStore is an in-memory TicketStore honouring the same atomicity
// contracts as the Mongo implementation.
type fakeTicketStore struct {
	mu      sync.Mutex
	tickets map[string]map[int]*entities.Ticket
	seq     map[string]int
}

func newFakeTicketStore() *fakeTicketStore {
	return &fakeTicketStore{
		tickets: make(map[string]map[int]*entities.Ticket),
		seq:     make(map[string]int),
	}
}

func (s *fakeTicketStore) SaveTicket(_ context.Context, t *entities.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tickets[t.GuildID] == nil {
		s.tickets[t.GuildID] = make(map[int]*entities.Ticket)
	}
	cp := *t
	s.tickets[t.GuildID][t.ID] = &cp
	return nil
}

func (s *fakeTicketStore) ActiveTicketByChannel(_ context.Context, guildID, channelID string) (*entities.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tickets[guildID] {
		if t.ChannelID == channelID && t.Active() {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeTicketStore) LatestTicketByChannel(_ context.Context, guildID, channelID string) (*entities.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *entities.Ticket
	for _, t := range s.tickets[guildID] {
		if t.ChannelID != channelID {
			continue
		}
		if latest == nil || t.ID > latest.ID {
			latest = t
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *fakeTicketStore) TicketByNumber(_ context.Context, guildID string, number int) (*entities.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[guildID][number]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *fakeTicketStore) NextTicketNumber(_ context.Context, guildID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq[guildID]++
	return s.seq[guildID], nil
}

func (s *fakeTicketStore) DeleteTicket(_ context.Context, guildID string, number int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tickets[guildID], number)
	return nil
}

func (s *fakeTicketStore) TransitionTicket(_ context.Context, guildID string, number int, from []entities.TicketStatus, update TicketUpdate) (*entities.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[guildID][number]
	if !ok {
		return nil, ErrNotFound
	}

	matched := false
	for _, st := range from {
		if t.Status == st {
			matched = true
			break
		}
	}
	if !matched {
		return nil, ErrInvalidState
	}

	if update.Status != nil {
		t.Status = *update.Status
	}
	if update.AssignedTo != nil {
		t.AssignedTo = *update.AssignedTo
	}
	if update.ClosedBy != nil {
		t.ClosedBy = *update.ClosedBy
	}
	if update.Priority != nil {
		t.Priority = *update.Priority
	}

	cp := *t
	return &cp, nil
}

func (s *fakeTicketStore) CountByStatus(_ context.Context, guildID string) (map[entities.TicketStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[entities.TicketStatus]int)
	for _, t := range s.tickets[guildID] {
		counts[t.Status]++
	}
	return counts, nil
}

type fakeGuildStore struct {
	mu     sync.Mutex
	guilds map[string]*entities.Guild
}

func newFakeGuildStore() *fakeGuildStore {
	return &fakeGuildStore{guilds: make(map[string]*entities.Guild)}
}

func (s *fakeGuildStore) SaveGuild(_ context.Context, g *entities.Guild) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *g
	s.guilds[g.ID] = &cp
	return nil
}

func (s *fakeGuildStore) GuildByID(_ context.Context, id string) (*entities.Guild, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.guilds[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *g
	return &cp, nil
}

type fakeTemplateStore struct {
	mu      sync.Mutex
	panels  map[string]*entities.Panel
	presets map[string]*entities.Preset
}

func newFakeTemplateStore() *fakeTemplateStore {
	return &fakeTemplateStore{
		panels:  make(map[string]*entities.Panel),
		presets: make(map[string]*entities.Preset),
	}
}

func presetKey(guildID, name string) string {
	return guildID + "/" + name
}

func (s *fakeTemplateStore) SavePanel(_ context.Context, p *entities.Panel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.panels[p.PanelID] = &cp
	return nil
}

func (s *fakeTemplateStore) PanelByID(_ context.Context, panelID string) (*entities.Panel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.panels[panelID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *fakeTemplateStore) AllPanels(_ context.Context) ([]*entities.Panel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entities.Panel, 0, len(s.panels))
	for _, p := range s.panels {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (s *fakeTemplateStore) SavePreset(_ context.Context, p *entities.Preset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.presets[presetKey(p.GuildID, p.Name)] = &cp
	return nil
}

func (s *fakeTemplateStore) PresetByID(_ context.Context, presetID string) (*entities.Preset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.presets {
		if p.PresetID == presetID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeTemplateStore) PresetByName(_ context.Context, guildID, name string) (*entities.Preset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.presets[presetKey(guildID, name)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *fakeTemplateStore) PresetsByGuild(_ context.Context, guildID string) ([]*entities.Preset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entities.Preset
	for _, p := range s.presets {
		if p.GuildID == guildID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeTemplateStore) AllPresets(_ context.Context) ([]*entities.Preset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entities.Preset, 0, len(s.presets))
	for _, p := range s.presets {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (s *fakeTemplateStore) DeletePreset(_ context.Context, guildID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.presets, presetKey(guildID, name))
	return nil
}

// fakeChannelAPI records channel side effects and can be told to fail
// individual operations.
type fakeChannelAPI struct {
	mu sync.Mutex

	nextID   int
	channels map[string]string // channelID -> name
	messages map[string][]string
	pins     map[string][]string
	deleted  []string
	history  map[string][]Message

	failCreate  error
	failPerms   error
	failSend    error
	failPin     error
	failDelete  error
	failHistory error

	grants map[string][]PermissionGrant
}

func newFakeChannelAPI() *fakeChannelAPI {
	return &fakeChannelAPI{
		channels: make(map[string]string),
		messages: make(map[string][]string),
		pins:     make(map[string][]string),
		history:  make(map[string][]Message),
		grants:   make(map[string][]PermissionGrant),
	}
}

func (c *fakeChannelAPI) CreateChannel(_ context.Context, _, _, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failCreate != nil {
		return "", c.failCreate
	}
	c.nextID++
	id := fmt.Sprintf("chan-%d", c.nextID)
	c.channels[id] = name
	return id, nil
}

func (c *fakeChannelAPI) SetPermission(_ context.Context, channelID string, grant PermissionGrant) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failPerms != nil {
		return c.failPerms
	}
	c.grants[channelID] = append(c.grants[channelID], grant)
	return nil
}

func (c *fakeChannelAPI) SendMessage(_ context.Context, channelID, content string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend != nil {
		return "", c.failSend
	}
	c.messages[channelID] = append(c.messages[channelID], content)
	return fmt.Sprintf("msg-%d", len(c.messages[channelID])), nil
}

func (c *fakeChannelAPI) PinMessage(_ context.Context, channelID, messageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failPin != nil {
		return c.failPin
	}
	c.pins[channelID] = append(c.pins[channelID], messageID)
	return nil
}

func (c *fakeChannelAPI) DeleteChannel(_ context.Context, channelID, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failDelete != nil {
		return c.failDelete
	}
	delete(c.channels, channelID)
	c.deleted = append(c.deleted, channelID)
	return nil
}

func (c *fakeChannelAPI) FetchHistory(_ context.Context, channelID string) ([]Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failHistory != nil {
		return nil, c.failHistory
	}
	return c.history[channelID], nil
}

func (c *fakeChannelAPI) deletedChannels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.deleted...)
}

type fakeDirectory struct {
	members []Member
	err     error
}

func (d *fakeDirectory) GuildMembers(_ context.Context, _ string) ([]Member, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.members, nil
}

type fakeArchive struct {
	mu        sync.Mutex
	delivered []*Document
	fail      error
}

func (a *fakeArchive) DeliverTranscript(_ context.Context, _ *entities.Ticket, doc *Document) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail != nil {
		return a.fail
	}
	a.delivered = append(a.delivered, doc)
	return nil
}
