package tickets

import (
	"context"
	"errors"
	"fmt"

	"hububba-utils/internal/command"
	"hububba-utils/internal/monitoring"
	"hububba-utils/internal/perms"
	"hububba-utils/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Close archives the ticket channel it is run in. Only the opener and staff
// may close a ticket. A linked order gets a note recording the closure.
func (m *Module) Close(ctx context.Context, in *command.Invocation) (command.Reply, error) {
	if in.GuildID == "" {
		return command.Text("Not in a guild."), nil
	}
	ch, err := m.api.Channel(in.ChannelID, discordgo.WithContext(ctx))
	if err != nil {
		return command.Reply{}, fmt.Errorf("load channel: %w", err)
	}
	_, openerID, ok := ParseTopic(ch.Topic)
	if !ok || ch.Type != discordgo.ChannelTypeGuildText {
		return command.Text("Run this in a ticket channel."), nil
	}

	closer := in.User()
	if closer.ID != openerID {
		guild, err := m.api.Guild(in.GuildID, discordgo.WithContext(ctx))
		if err != nil {
			return command.Reply{}, fmt.Errorf("load guild: %w", err)
		}
		if err := m.gate.Check(guild, in.Member, perms.LevelStaff); err != nil {
			return command.Text("Only the ticket opener or staff can close this ticket."), nil
		}
	}

	archiveName := m.opts.Archive
	if archiveName == "" {
		archiveName = "Ticket Archive"
	}
	archive, err := m.findOrCreateCategory(ctx, in.GuildID, archiveName)
	if err != nil {
		return command.Text("Failed to archive: %v", err), nil
	}
	if ch.ParentID == archive.ID {
		return command.Text("This ticket is already archived."), nil
	}

	// ChannelEdit always sends position, so keep the current one.
	if _, err := m.api.ChannelEditComplex(ch.ID, &discordgo.ChannelEdit{
		ParentID: archive.ID,
		Position: ch.Position,
	}, discordgo.WithContext(ctx), discordgo.WithAuditLogReason("Ticket closed by "+command.DisplayName(closer))); err != nil {
		return command.Text("Failed to archive: %v", err), nil
	}
	monitoring.TicketsClosed.Inc()

	m.noteOrder(ctx, ch.ID, closer)
	m.audit.Tickets(ctx, in.GuildID, closer.ID, "ticket_archived",
		fmt.Sprintf("Ticket archived: %s by %s", command.ChannelMention(ch.ID), command.Mention(closer.ID)))
	return command.Text("Ticket archived."), nil
}

func (m *Module) noteOrder(ctx context.Context, channelID string, closer *discordgo.User) {
	order, err := m.orders.FindByChannel(ctx, channelID)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		m.logger.Warn("order lookup failed", zap.String("channel_id", channelID), zap.Error(err))
		return
	}
	if _, err := m.orders.AppendNote(ctx, order.ID, "", "Ticket archived by "+command.DisplayName(closer)); err != nil {
		m.logger.Warn("order note failed", zap.Int64("order_id", order.ID), zap.Error(err))
	}
}
