package tickets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"hububba-utils/internal/command/commandtest"
	"hububba-utils/internal/modules/audit"
	"hububba-utils/internal/orders"
	"hububba-utils/internal/perms"
	"hububba-utils/internal/storage"
	"hububba-utils/internal/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAPI struct {
	guild    *discordgo.Guild
	channels map[string]*discordgo.Channel
	nextID   int

	sent      map[string][]*discordgo.MessageSend
	edits     map[string]*discordgo.ChannelEdit
	deleted   []string
	messages  []*discordgo.Message
	bulk      [][]string
	createErr error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		guild: &discordgo.Guild{
			ID:      "g1",
			OwnerID: "owner",
			Roles: []*discordgo.Role{
				{ID: "g1", Name: "@everyone"},
				{ID: "r-staff", Name: "Staff"},
			},
		},
		channels: map[string]*discordgo.Channel{
			"panel": {ID: "panel", GuildID: "g1", Type: discordgo.ChannelTypeGuildText},
		},
		sent:  map[string][]*discordgo.MessageSend{},
		edits: map[string]*discordgo.ChannelEdit{},
	}
}

func (f *fakeAPI) Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error) {
	return f.guild, nil
}

func (f *fakeAPI) GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error) {
	var out []*discordgo.Channel
	for _, ch := range f.channels {
		if ch.GuildID == guildID {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (f *fakeAPI) GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	if f.createErr != nil && data.Type == discordgo.ChannelTypeGuildText {
		return nil, f.createErr
	}
	f.nextID++
	ch := &discordgo.Channel{
		ID:                   fmt.Sprintf("ch%d", f.nextID),
		GuildID:              guildID,
		Name:                 data.Name,
		Type:                 data.Type,
		Topic:                data.Topic,
		ParentID:             data.ParentID,
		Position:             f.nextID,
		PermissionOverwrites: data.PermissionOverwrites,
	}
	f.channels[ch.ID] = ch
	return ch, nil
}

func (f *fakeAPI) Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	ch, ok := f.channels[channelID]
	if !ok {
		return nil, errors.New("unknown channel")
	}
	return ch, nil
}

func (f *fakeAPI) ChannelEditComplex(channelID string, data *discordgo.ChannelEdit, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.edits[channelID] = data
	ch := f.channels[channelID]
	ch.ParentID = data.ParentID
	return ch, nil
}

func (f *fakeAPI) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.sent[channelID] = append(f.sent[channelID], data)
	return &discordgo.Message{ID: fmt.Sprintf("msg-%s-%d", channelID, len(f.sent[channelID])), ChannelID: channelID}, nil
}

func (f *fakeAPI) ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	if beforeID != "" {
		return nil, nil
	}
	return f.messages, nil
}

func (f *fakeAPI) ChannelMessagesBulkDelete(channelID string, messages []string, options ...discordgo.RequestOption) error {
	f.bulk = append(f.bulk, messages)
	return nil
}

func (f *fakeAPI) ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error {
	f.deleted = append(f.deleted, messageID)
	return nil
}

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	api     *fakeAPI
	module  *Module
	orders  *orders.Service
	panels  *storage.PanelStore
	entries *[]audit.Entry
}

func newHarness(t *testing.T, cooldown *utils.Cooldown) *harness {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewJSONStore(dir)
	require.NoError(t, err)
	panels, err := storage.NewPanelStore(dir)
	require.NoError(t, err)

	entries := &[]audit.Entry{}
	auditLogger := audit.NewLogger(zap.NewNop())
	auditLogger.SetNotifier(func(ctx context.Context, e audit.Entry) { *entries = append(*entries, e) })

	api := newFakeAPI()
	svc := orders.NewService(store, zap.NewNop())
	gate := perms.NewGate(perms.Roles{Super: "Owner", Admin: "Admin", Staff: "Staff"}, "Test", nil)
	opts := Options{
		PanelChannelID: "panel",
		Color:          0x9B59B6,
		StaffRole:      "Staff",
		Categories:     map[Kind]string{KindSupport: "Support Tickets", KindCommission: "Commission Tickets"},
		Archive:        "Ticket Archive",
		BotID:          func() string { return "bot" },
	}
	m := New(api, opts, svc, panels, gate, cooldown, auditLogger, zap.NewNop())
	m.now = func() time.Time { return now }
	return &harness{api: api, module: m, orders: svc, panels: panels, entries: entries}
}

var opener = commandtest.Caller{GuildID: "g1", ChannelID: "panel", UserID: "u1", Username: "Alice.B"}

func (h *harness) ticketChannel(t *testing.T) *discordgo.Channel {
	t.Helper()
	for _, ch := range h.api.channels {
		if ch.Type == discordgo.ChannelTypeGuildText && strings.HasPrefix(ch.Topic, "ticket:") {
			return ch
		}
	}
	t.Fatalf("no ticket channel created")
	return nil
}

func TestTopicRoundTrip(t *testing.T) {
	kind, user, ok := ParseTopic(Topic(KindComplaint, "123"))
	require.True(t, ok)
	require.Equal(t, KindComplaint, kind)
	require.Equal(t, "123", user)

	for _, topic := range []string{"", "ticket:support", "ticket:refund:1", "order:support:1", "ticket:support:"} {
		_, _, ok := ParseTopic(topic)
		require.False(t, ok, topic)
	}
}

func TestChannelName(t *testing.T) {
	require.Equal(t, "support-alice-b", ChannelName(KindSupport, "Alice.B", "1"))
	require.Equal(t, "commission-42", ChannelName(KindCommission, "✨✨", "42"))
	require.Equal(t, "complaint-a-b", ChannelName(KindComplaint, "a -- b", "1"))
	require.LessOrEqual(t, len(ChannelName(KindSupport, strings.Repeat("x", 200), "1")), 100)
}

func TestOpenModalForButton(t *testing.T) {
	h := newHarness(t, nil)

	reply, err := h.module.OpenModal(context.Background(), opener.Button("panel_commission"))
	require.NoError(t, err)
	require.NotNil(t, reply.Modal)
	require.Equal(t, "ticket_modal_commission", reply.Modal.CustomID)
	require.Len(t, reply.Modal.Components, 4)
}

func TestSubmitSupportTicket(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	reply, err := h.module.Submit(ctx, opener.ModalSubmit("ticket_modal_support", map[string]string{
		"issue":   "Login is broken",
		"urgency": "High",
	}))
	require.NoError(t, err)

	ch := h.ticketChannel(t)
	require.Equal(t, "support-alice-b", ch.Name)
	require.Equal(t, "ticket:support:u1", ch.Topic)
	require.Equal(t, "Created Support ticket: <#"+ch.ID+">", reply.Content)

	category := h.api.channels[ch.ParentID]
	require.Equal(t, "Support Tickets", category.Name)
	require.Equal(t, discordgo.ChannelTypeGuildCategory, category.Type)

	overwrites := map[string]*discordgo.PermissionOverwrite{}
	for _, o := range ch.PermissionOverwrites {
		overwrites[o.ID] = o
	}
	require.Equal(t, int64(discordgo.PermissionViewChannel), overwrites["g1"].Deny)
	require.NotZero(t, overwrites["u1"].Allow&discordgo.PermissionViewChannel)
	require.NotZero(t, overwrites["bot"].Allow&discordgo.PermissionManageChannels)
	require.NotZero(t, overwrites["r-staff"].Allow&discordgo.PermissionViewChannel)

	intro := h.api.sent[ch.ID]
	require.Len(t, intro, 1)
	require.Equal(t, "<@u1>", intro[0].Content)
	embed := intro[0].Embeds[0]
	require.Equal(t, "Support Ticket", embed.Title)
	require.Equal(t, "Login is broken", embed.Description)
	require.Equal(t, "Urgency", embed.Fields[1].Name)

	list, err := h.orders.List(ctx, orders.Filter{})
	require.NoError(t, err)
	require.Empty(t, list)

	require.Len(t, *h.entries, 1)
	require.Equal(t, audit.StreamTickets, (*h.entries)[0].Stream)
}

func TestSubmitCommissionCreatesLinkedOrder(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.module.Submit(ctx, opener.ModalSubmit("ticket_modal_commission", map[string]string{
		"project": "A new logo",
		"budget":  "50-150",
	}))
	require.NoError(t, err)

	ch := h.ticketChannel(t)
	order, err := h.orders.FindByChannel(ctx, ch.ID)
	require.NoError(t, err)
	require.Equal(t, storage.StatusOpen, order.Status)
	require.Equal(t, "u1", order.UserID)
	require.Equal(t, "A new logo", order.Details)
	require.Equal(t, "50-150", order.Budget)

	embed := h.api.sent[ch.ID][0].Embeds[0]
	require.Equal(t, "A new logo\n\nBudget: 50-150\nDeadline: N/A\nNotes: None", embed.Description)
	last := embed.Fields[len(embed.Fields)-1]
	require.Equal(t, "Order", last.Name)
	require.Equal(t, "#0001", last.Value)
}

func TestSubmitReusesCategory(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	values := map[string]string{"issue": "x", "urgency": "Low"}

	_, err := h.module.Submit(ctx, opener.ModalSubmit("ticket_modal_support", values))
	require.NoError(t, err)
	other := commandtest.Caller{GuildID: "g1", ChannelID: "panel", UserID: "u2", Username: "bob"}
	_, err = h.module.Submit(ctx, other.ModalSubmit("ticket_modal_support", values))
	require.NoError(t, err)

	categories := 0
	for _, ch := range h.api.channels {
		if ch.Type == discordgo.ChannelTypeGuildCategory {
			categories++
		}
	}
	require.Equal(t, 1, categories)
}

func TestSubmitCooldown(t *testing.T) {
	h := newHarness(t, utils.NewCooldown(1, 10*time.Minute))
	ctx := context.Background()
	values := map[string]string{"issue": "x", "urgency": "Low"}

	h.api.createErr = errors.New("missing permissions")
	_, err := h.module.Submit(ctx, opener.ModalSubmit("ticket_modal_support", values))
	require.Error(t, err)

	// The failed attempt does not count against the limit.
	h.api.createErr = nil
	_, err = h.module.Submit(ctx, opener.ModalSubmit("ticket_modal_support", values))
	require.NoError(t, err)

	reply, err := h.module.Submit(ctx, opener.ModalSubmit("ticket_modal_support", values))
	require.NoError(t, err)
	require.Equal(t, "You're opening tickets too quickly. Try again in 10m0s.", reply.Content)
}

func TestCloseByOpenerArchivesAndNotesOrder(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.module.Submit(ctx, opener.ModalSubmit("ticket_modal_commission", map[string]string{"project": "Logo"}))
	require.NoError(t, err)
	ch := h.ticketChannel(t)

	inTicket := opener
	inTicket.ChannelID = ch.ID
	reply, err := h.module.Close(ctx, inTicket.Slash("close"))
	require.NoError(t, err)
	require.Equal(t, "Ticket archived.", reply.Content)

	edit := h.api.edits[ch.ID]
	require.NotNil(t, edit)
	require.Equal(t, ch.Position, edit.Position)
	require.Equal(t, "Ticket Archive", h.api.channels[edit.ParentID].Name)

	order, err := h.orders.FindByChannel(ctx, ch.ID)
	require.NoError(t, err)
	require.Contains(t, order.Notes, "Ticket archived by Alice.B")

	reply, err = h.module.Close(ctx, inTicket.Slash("close"))
	require.NoError(t, err)
	require.Equal(t, "This ticket is already archived.", reply.Content)
}

func TestCloseRejectsStrangers(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.module.Submit(ctx, opener.ModalSubmit("ticket_modal_support", map[string]string{"issue": "x", "urgency": "Low"}))
	require.NoError(t, err)
	ch := h.ticketChannel(t)

	stranger := commandtest.Caller{GuildID: "g1", ChannelID: ch.ID, UserID: "u9", Username: "eve"}
	reply, err := h.module.Close(ctx, stranger.Slash("close"))
	require.NoError(t, err)
	require.Equal(t, "Only the ticket opener or staff can close this ticket.", reply.Content)
	require.Empty(t, h.api.edits)

	staff := commandtest.Caller{GuildID: "g1", ChannelID: ch.ID, UserID: "u8", Username: "mod", Roles: []string{"r-staff"}}
	reply, err = h.module.Close(ctx, staff.Slash("close"))
	require.NoError(t, err)
	require.Equal(t, "Ticket archived.", reply.Content)
}

func TestCloseOutsideTicket(t *testing.T) {
	h := newHarness(t, nil)

	reply, err := h.module.Close(context.Background(), opener.Slash("close"))
	require.NoError(t, err)
	require.Equal(t, "Run this in a ticket channel.", reply.Content)
}

func TestEnsurePanelReplacesStoredMessage(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.panels.Set("g1", storage.PanelState{ChannelID: "panel", MessageID: "old"}))

	require.NoError(t, h.module.EnsurePanel(ctx, "g1"))
	require.Equal(t, []string{"old"}, h.api.deleted)
	require.Empty(t, h.api.bulk)

	sent := h.api.sent["panel"]
	require.Len(t, sent, 1)
	require.Equal(t, "🎟️ Open a Ticket", sent[0].Embeds[0].Title)
	row := sent[0].Components[0].(discordgo.ActionsRow)
	require.Len(t, row.Components, 3)

	state, ok, err := h.panels.Get("g1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "msg-panel-1", state.MessageID)
}

func TestEnsurePanelClearsChannelWithoutState(t *testing.T) {
	h := newHarness(t, nil)
	h.api.messages = []*discordgo.Message{
		{ID: "m1", Timestamp: now.Add(-time.Hour)},
		{ID: "m2", Timestamp: now.Add(-2 * time.Hour)},
	}

	require.NoError(t, h.module.EnsurePanel(context.Background(), "g1"))
	require.Equal(t, [][]string{{"m1", "m2"}}, h.api.bulk)
	require.Len(t, h.api.sent["panel"], 1)
}

func TestEnsurePanelSkipsForeignGuild(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.module.EnsurePanel(context.Background(), "g2"))
	require.Empty(t, h.api.sent)
}
