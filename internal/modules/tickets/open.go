package tickets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hububba-utils/internal/command"
	"hububba-utils/internal/modules/audit"
	"hububba-utils/internal/monitoring"
	"hububba-utils/internal/orders"
	"hububba-utils/internal/perms"
	"hububba-utils/internal/storage"
	"hububba-utils/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	openerAllow = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages |
		discordgo.PermissionAttachFiles | discordgo.PermissionEmbedLinks | discordgo.PermissionReadMessageHistory
	staffAllow = openerAllow
	botAllow   = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages |
		discordgo.PermissionManageChannels | discordgo.PermissionReadMessageHistory | discordgo.PermissionEmbedLinks
)

func modalFor(kind Kind) command.Reply {
	id := modalPrefix + kind.slug()
	switch kind {
	case KindCommission:
		return command.Modal(id, "New Commission Ticket",
			discordgo.TextInput{CustomID: "project", Label: "Project / What do you need?", Style: discordgo.TextInputParagraph, Required: true, MaxLength: 1000},
			discordgo.TextInput{CustomID: "budget", Label: "Budget (USD)", Placeholder: "e.g., 50-150", Style: discordgo.TextInputShort, MaxLength: 50},
			discordgo.TextInput{CustomID: "deadline", Label: "Deadline (optional)", Placeholder: "YYYY-MM-DD or 'ASAP'", Style: discordgo.TextInputShort, MaxLength: 50},
			discordgo.TextInput{CustomID: "notes", Label: "Extra notes (optional)", Style: discordgo.TextInputParagraph, MaxLength: 500},
		)
	case KindComplaint:
		return command.Modal(id, "New Complaint Ticket",
			discordgo.TextInput{CustomID: "issue", Label: "What's the complaint?", Style: discordgo.TextInputParagraph, Required: true, MaxLength: 1000},
			discordgo.TextInput{CustomID: "proof", Label: "Links / Proof (optional)", Style: discordgo.TextInputShort, MaxLength: 500},
		)
	default:
		return command.Modal(id, "New Support Ticket",
			discordgo.TextInput{CustomID: "issue", Label: "Describe the issue", Placeholder: "What's broken or not working?", Style: discordgo.TextInputParagraph, Required: true, MaxLength: 1000},
			discordgo.TextInput{CustomID: "urgency", Label: "Urgency (Low / Medium / High)", Placeholder: "e.g., Medium", Style: discordgo.TextInputShort, Required: true, MaxLength: 20},
		)
	}
}

// OpenModal answers a panel button with the intake form for its kind.
func (m *Module) OpenModal(ctx context.Context, in *command.Invocation) (command.Reply, error) {
	kind, ok := parseKind(strings.TrimPrefix(in.Key, buttonPrefix))
	if !ok {
		return command.Text("Unknown ticket type."), nil
	}
	return modalFor(kind), nil
}

// intake is the parsed modal submission.
type intake struct {
	kind    Kind
	details string
	fields  []*discordgo.MessageEmbedField
	draft   *orders.Draft
}

func parseIntake(kind Kind, in *command.Invocation) intake {
	switch kind {
	case KindCommission:
		project, budget, deadline, notes := in.Value("project"), in.Value("budget"), in.Value("deadline"), in.Value("notes")
		return intake{
			kind: kind,
			details: fmt.Sprintf("%s\n\nBudget: %s\nDeadline: %s\nNotes: %s",
				project, orDefault(budget, "N/A"), orDefault(deadline, "N/A"), orDefault(notes, "None")),
			draft: &orders.Draft{Details: project, Budget: budget, Deadline: deadline, Notes: notes},
		}
	case KindComplaint:
		t := intake{kind: kind, details: in.Value("issue")}
		if proof := in.Value("proof"); proof != "" {
			value := proof
			if links := utils.ProofLinks(proof); len(links) > 0 {
				value = strings.Join(links, "\n")
			}
			t.fields = append(t.fields, &discordgo.MessageEmbedField{Name: "Proof", Value: truncate(value, 1024)})
		}
		return t
	default:
		t := intake{kind: kind, details: in.Value("issue")}
		if urgency := in.Value("urgency"); urgency != "" {
			t.fields = append(t.fields, &discordgo.MessageEmbedField{Name: "Urgency", Value: urgency, Inline: true})
		}
		return t
	}
}

// Submit opens a ticket from a modal submission.
func (m *Module) Submit(ctx context.Context, in *command.Invocation) (command.Reply, error) {
	kind, ok := parseKind(strings.TrimPrefix(in.Key, modalPrefix))
	if !ok {
		return command.Text("Unknown ticket type."), nil
	}
	if in.GuildID == "" {
		return command.Text("Not in a guild."), nil
	}
	user := in.User()

	key := in.GuildID + ":" + user.ID
	at := m.now()
	if allowed, wait := m.cooldown.Allow(key, at); !allowed {
		return command.Text("You're opening tickets too quickly. Try again in %s.", wait.Round(time.Second)), nil
	}

	ch, order, err := m.open(ctx, in.GuildID, user, parseIntake(kind, in))
	if err != nil {
		m.cooldown.Forget(key, at)
		return command.Reply{}, fmt.Errorf("open %s ticket: %w", kind.slug(), err)
	}

	monitoring.TicketsOpened.WithLabelValues(kind.slug()).Inc()
	m.audit.Tickets(ctx, in.GuildID, user.ID, "ticket_opened",
		fmt.Sprintf("**%s** ticket opened by %s → %s", kind, command.Mention(user.ID), command.ChannelMention(ch.ID)))

	reply := command.Text("Created %s ticket: %s", kind, command.ChannelMention(ch.ID))
	if kind == KindCommission && order == nil {
		reply.Content += "\nThe order could not be recorded; staff have been notified."
	}
	return reply, nil
}

func (m *Module) open(ctx context.Context, guildID string, user *discordgo.User, t intake) (*discordgo.Channel, *storage.Order, error) {
	categoryName := m.opts.Categories[t.kind]
	if categoryName == "" {
		categoryName = string(t.kind)
	}
	category, err := m.findOrCreateCategory(ctx, guildID, categoryName)
	if err != nil {
		return nil, nil, err
	}

	ch, err := m.api.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:                 ChannelName(t.kind, user.Username, user.ID),
		Type:                 discordgo.ChannelTypeGuildText,
		Topic:                Topic(t.kind, user.ID),
		ParentID:             category.ID,
		PermissionOverwrites: m.overwrites(ctx, guildID, user.ID),
	}, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(string(t.kind)+" ticket"))
	if err != nil {
		return nil, nil, fmt.Errorf("create channel: %w", err)
	}

	var order *storage.Order
	if t.draft != nil {
		draft := *t.draft
		draft.UserID = user.ID
		draft.UserName = command.DisplayName(user)
		draft.TicketChannelID = ch.ID
		created, err := m.orders.Create(ctx, draft)
		if err != nil {
			m.logger.Error("order create failed", zap.String("channel_id", ch.ID), zap.Error(err))
			m.audit.Bot(ctx, audit.LevelWarn, guildID, "order_create_failed",
				fmt.Sprintf("⚠️ Could not record the order for %s: %v", command.ChannelMention(ch.ID), err))
		} else {
			order = &created
		}
	}

	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s Ticket", t.kind),
		Description: truncate(t.details, 4000),
		Color:       m.opts.Color,
		Fields: append([]*discordgo.MessageEmbedField{
			{Name: "Opened by", Value: command.Mention(user.ID), Inline: true},
		}, t.fields...),
		Footer: &discordgo.MessageEmbedFooter{Text: "Use /close to archive when done."},
	}
	if order != nil {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Order", Value: order.DisplayID(), Inline: true})
	}
	if _, err := m.api.ChannelMessageSendComplex(ch.ID, &discordgo.MessageSend{
		Content:         command.Mention(user.ID),
		Embeds:          []*discordgo.MessageEmbed{embed},
		AllowedMentions: &discordgo.MessageAllowedMentions{Users: []string{user.ID}},
	}, discordgo.WithContext(ctx)); err != nil {
		m.logger.Warn("ticket intro failed", zap.String("channel_id", ch.ID), zap.Error(err))
	}
	return ch, order, nil
}

// overwrites hides the channel from @everyone and opens it to the opener, the
// bot and the staff role when it exists.
func (m *Module) overwrites(ctx context.Context, guildID, userID string) []*discordgo.PermissionOverwrite {
	list := []*discordgo.PermissionOverwrite{
		{ID: guildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
		{ID: userID, Type: discordgo.PermissionOverwriteTypeMember, Allow: openerAllow},
	}
	if botID := m.opts.BotID(); botID != "" {
		list = append(list, &discordgo.PermissionOverwrite{ID: botID, Type: discordgo.PermissionOverwriteTypeMember, Allow: botAllow})
	}
	if m.opts.StaffRole != "" {
		guild, err := m.api.Guild(guildID, discordgo.WithContext(ctx))
		if err != nil {
			m.logger.Warn("guild lookup failed", zap.String("guild_id", guildID), zap.Error(err))
			return list
		}
		if roleID, ok := perms.RoleID(guild, m.opts.StaffRole); ok {
			list = append(list, &discordgo.PermissionOverwrite{ID: roleID, Type: discordgo.PermissionOverwriteTypeRole, Allow: staffAllow})
		}
	}
	return list
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
