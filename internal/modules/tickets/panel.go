package tickets

import (
	"context"
	"fmt"

	"hububba-utils/internal/modules/moderation"
	"hububba-utils/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	buttonPrefix = "panel_"
	modalPrefix  = "ticket_modal_"

	panelPurgeLimit = 1000
)

var buttonStyles = map[Kind]discordgo.ButtonStyle{
	KindSupport:    discordgo.PrimaryButton,
	KindCommission: discordgo.SuccessButton,
	KindComplaint:  discordgo.DangerButton,
}

var buttonEmoji = map[Kind]string{
	KindSupport:    "🛠️",
	KindCommission: "🧾",
	KindComplaint:  "⚠️",
}

func (m *Module) panelMessage() *discordgo.MessageSend {
	buttons := make([]discordgo.MessageComponent, 0, len(Kinds))
	for _, k := range Kinds {
		buttons = append(buttons, discordgo.Button{
			Label:    string(k),
			Style:    buttonStyles[k],
			Emoji:    discordgo.ComponentEmoji{Name: buttonEmoji[k]},
			CustomID: buttonPrefix + k.slug(),
		})
	}
	return &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title: "🎟️ Open a Ticket",
			Description: "Choose a ticket type below:\n" +
				"• **Support** - help with bugs/issues.\n" +
				"• **Commission** - paid work; creates an order.\n" +
				"• **Complaint** - report a problem/person.\n\n" +
				"__**Note:**__ Opening a commission **auto-creates an Order** marked **Open**.",
			Color:  m.opts.Color,
			Footer: &discordgo.MessageEmbedFooter{Text: "Hububba Studios • Project Infinite ∞"},
		}},
		Components: []discordgo.MessageComponent{discordgo.ActionsRow{Components: buttons}},
	}
}

// EnsurePanel replaces the ticket panel in guildID with a fresh one. The
// previous panel is deleted by its stored message ID; without stored state the
// panel channel is cleared. Guilds that do not own the panel channel are
// skipped.
func (m *Module) EnsurePanel(ctx context.Context, guildID string) error {
	channelID := m.opts.PanelChannelID
	if channelID == "" {
		return nil
	}
	ch, err := m.api.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("panel channel: %w", err)
	}
	if ch.GuildID != guildID || ch.Type != discordgo.ChannelTypeGuildText {
		return nil
	}

	state, ok, err := m.panels.Get(guildID)
	if err != nil {
		return fmt.Errorf("load panel state: %w", err)
	}
	if ok && state.ChannelID != "" && state.MessageID != "" {
		if err := m.api.ChannelMessageDelete(state.ChannelID, state.MessageID, discordgo.WithContext(ctx)); err != nil {
			m.logger.Debug("old panel already gone", zap.String("message_id", state.MessageID), zap.Error(err))
		}
	} else {
		if _, err := moderation.PurgeMessages(ctx, m.api, channelID, panelPurgeLimit, m.now()); err != nil {
			m.logger.Warn("panel channel purge failed", zap.String("channel_id", channelID), zap.Error(err))
		}
	}

	msg, err := m.api.ChannelMessageSendComplex(channelID, m.panelMessage(), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send panel: %w", err)
	}
	if err := m.panels.Set(guildID, storage.PanelState{ChannelID: channelID, MessageID: msg.ID}); err != nil {
		return fmt.Errorf("save panel state: %w", err)
	}
	m.logger.Info("ticket panel sent", zap.String("guild_id", guildID), zap.String("message_id", msg.ID))
	return nil
}
