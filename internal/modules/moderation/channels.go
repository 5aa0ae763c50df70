package moderation

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"
)

var errNotText = errors.New("not a text channel")

func (m *Module) textChannel(ctx context.Context, channelID string) (*discordgo.Channel, bool, error) {
	ch, err := m.api.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, false, err
	}
	return ch, ch.Type == discordgo.ChannelTypeGuildText || ch.Type == discordgo.ChannelTypeGuildNews, nil
}

// setSend denies SendMessages to @everyone when locking. Unlocking clears the
// bit from both allow and deny so the channel inherits again, and drops the
// overwrite entirely once nothing else is set on it.
func (m *Module) setSend(ctx context.Context, guildID, channelID, reason string, locked bool) error {
	ch, ok, err := m.textChannel(ctx, channelID)
	if err != nil {
		return err
	}
	if !ok {
		return errNotText
	}

	everyone := guildID
	var allow, deny int64
	found := false
	for _, ow := range ch.PermissionOverwrites {
		if ow.ID == everyone && ow.Type == discordgo.PermissionOverwriteTypeRole {
			allow, deny = ow.Allow, ow.Deny
			found = true
			break
		}
	}

	allow &^= discordgo.PermissionSendMessages
	if locked {
		deny |= discordgo.PermissionSendMessages
	} else {
		deny &^= discordgo.PermissionSendMessages
	}

	opts := []discordgo.RequestOption{discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason)}
	if allow == 0 && deny == 0 {
		if !found {
			return nil
		}
		return m.api.ChannelPermissionDelete(channelID, everyone, opts...)
	}
	return m.api.ChannelPermissionSet(channelID, everyone, discordgo.PermissionOverwriteTypeRole, allow, deny, opts...)
}
