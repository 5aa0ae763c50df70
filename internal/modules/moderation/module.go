package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hububba-utils/internal/command"
	"hububba-utils/internal/modules/audit"
	"hububba-utils/internal/perms"

	"github.com/bwmarrin/discordgo"
)

const (
	defaultReason = "No reason provided"
	maxPurge      = 1000
	maxTimeout    = 10080
)

type API interface {
	GuildMemberDeleteWithReason(guildID, userID, reason string, options ...discordgo.RequestOption) error
	GuildBanCreateWithReason(guildID, userID, reason string, days int, options ...discordgo.RequestOption) error
	GuildMemberTimeout(guildID string, userID string, until *time.Time, options ...discordgo.RequestOption) error
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelMessagesBulkDelete(channelID string, messages []string, options ...discordgo.RequestOption) error
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	ChannelPermissionSet(channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64, options ...discordgo.RequestOption) error
	ChannelPermissionDelete(channelID, targetID string, options ...discordgo.RequestOption) error
}

type Module struct {
	api   API
	audit *audit.Logger
	now   func() time.Time
}

func New(api API, auditLogger *audit.Logger) *Module {
	return &Module{api: api, audit: auditLogger, now: time.Now}
}

func (m *Module) Routes() []command.Route {
	return []command.Route{
		{Key: "kick", Level: perms.LevelStaff, Defer: true, Handler: m.Kick},
		{Key: "purge", Level: perms.LevelStaff, Defer: true, Handler: m.Purge},
		{Key: "timeout", Level: perms.LevelStaff, Defer: true, Handler: m.Timeout},
		{Key: "untimeout", Level: perms.LevelStaff, Defer: true, Handler: m.Untimeout},
		{Key: "lock", Level: perms.LevelAdmin, Defer: true, Handler: m.Lock},
		{Key: "unlock", Level: perms.LevelAdmin, Defer: true, Handler: m.Unlock},
		{Key: "ban", Level: perms.LevelAdmin, Defer: true, Handler: m.Ban},
	}
}

func (m *Module) Kick(ctx context.Context, in *command.Invocation) (command.Reply, error) {
	target := in.UserOption("member")
	if target == nil {
		return command.Text("Pick a member to kick."), nil
	}
	reason := in.String("reason", defaultReason)
	if err := m.api.GuildMemberDeleteWithReason(in.GuildID, target.ID, reason, discordgo.WithContext(ctx)); err != nil {
		return command.Text("Kick failed: %v", err), nil
	}
	m.audit.General(ctx, in.GuildID, target.ID, "kick",
		fmt.Sprintf("👢 **Kick**: %s by %s\nReason: %s", command.Mention(target.ID), command.Mention(in.UserID()), reason))
	return command.Text("👢 Kicked %s - %s", command.DisplayName(target), reason), nil
}

func (m *Module) Ban(ctx context.Context, in *command.Invocation) (command.Reply, error) {
	target := in.UserOption("member")
	if target == nil {
		return command.Text("Pick a member to ban."), nil
	}
	reason := in.String("reason", defaultReason)
	if err := m.api.GuildBanCreateWithReason(in.GuildID, target.ID, reason, 0, discordgo.WithContext(ctx)); err != nil {
		return command.Text("Ban failed: %v", err), nil
	}
	m.audit.General(ctx, in.GuildID, target.ID, "ban",
		fmt.Sprintf("🔨 **Ban**: %s by %s\nReason: %s", command.Mention(target.ID), command.Mention(in.UserID()), reason))
	return command.Text("🔨 Banned %s - %s", command.DisplayName(target), reason), nil
}

func (m *Module) Timeout(ctx context.Context, in *command.Invocation) (command.Reply, error) {
	target := in.UserOption("member")
	if target == nil {
		return command.Text("Pick a member to time out."), nil
	}
	minutes := in.Int("minutes", 0)
	if minutes < 1 || minutes > maxTimeout {
		return command.Text("Minutes must be between 1 and %d.", maxTimeout), nil
	}
	reason := in.String("reason", defaultReason)
	until := m.now().Add(time.Duration(minutes) * time.Minute)
	if err := m.api.GuildMemberTimeout(in.GuildID, target.ID, &until, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason)); err != nil {
		return command.Text("Timeout failed: %v", err), nil
	}
	m.audit.General(ctx, in.GuildID, target.ID, "timeout",
		fmt.Sprintf("⏳ **Timeout**: %s for %dm by %s\nReason: %s", command.Mention(target.ID), minutes, command.Mention(in.UserID()), reason))
	return command.Text("⏳ Timed out %s for %d minutes - %s", command.DisplayName(target), minutes, reason), nil
}

func (m *Module) Untimeout(ctx context.Context, in *command.Invocation) (command.Reply, error) {
	target := in.UserOption("member")
	if target == nil {
		return command.Text("Pick a member."), nil
	}
	if err := m.api.GuildMemberTimeout(in.GuildID, target.ID, nil, discordgo.WithContext(ctx)); err != nil {
		return command.Text("Untimeout failed: %v", err), nil
	}
	m.audit.General(ctx, in.GuildID, target.ID, "untimeout",
		fmt.Sprintf("✅ **Un-timeout**: %s by %s", command.Mention(target.ID), command.Mention(in.UserID())))
	return command.Text("✅ Removed timeout for %s", command.DisplayName(target)), nil
}

func (m *Module) Purge(ctx context.Context, in *command.Invocation) (command.Reply, error) {
	amount := int(in.Int("amount", 0))
	if amount < 1 || amount > maxPurge {
		return command.Text("Amount must be between 1 and %d.", maxPurge), nil
	}
	if _, ok, err := m.textChannel(ctx, in.ChannelID); err != nil {
		return command.Text("Purge failed: %v", err), nil
	} else if !ok {
		return command.Text("This command must be used in a text channel."), nil
	}

	deleted, err := PurgeMessages(ctx, m.api, in.ChannelID, amount, m.now())
	if err != nil && deleted == 0 {
		return command.Text("Purge failed: %v", err), nil
	}
	m.audit.General(ctx, in.GuildID, in.UserID(), "purge",
		fmt.Sprintf("🧹 **Purge**: %s deleted %d in %s", command.Mention(in.UserID()), deleted, command.ChannelMention(in.ChannelID)))
	return command.Text("🧹 Deleted %d messages.", deleted), nil
}

func (m *Module) Lock(ctx context.Context, in *command.Invocation) (command.Reply, error) {
	reason := in.String("reason", "Channel locked")
	if err := m.setSend(ctx, in.GuildID, in.ChannelID, reason, true); err != nil {
		if errors.Is(err, errNotText) {
			return command.Text("This command must be used in a text channel."), nil
		}
		return command.Text("Lock failed: %v", err), nil
	}
	m.audit.General(ctx, in.GuildID, in.UserID(), "lock",
		fmt.Sprintf("🔒 **Lock**: %s by %s\nReason: %s", command.ChannelMention(in.ChannelID), command.Mention(in.UserID()), reason))
	return command.Text("🔒 Locked %s.", command.ChannelMention(in.ChannelID)), nil
}

func (m *Module) Unlock(ctx context.Context, in *command.Invocation) (command.Reply, error) {
	reason := in.String("reason", "Channel unlocked")
	if err := m.setSend(ctx, in.GuildID, in.ChannelID, reason, false); err != nil {
		if errors.Is(err, errNotText) {
			return command.Text("This command must be used in a text channel."), nil
		}
		return command.Text("Unlock failed: %v", err), nil
	}
	m.audit.General(ctx, in.GuildID, in.UserID(), "unlock",
		fmt.Sprintf("🔓 **Unlock**: %s by %s\nReason: %s", command.ChannelMention(in.ChannelID), command.Mention(in.UserID()), reason))
	return command.Text("🔓 Unlocked %s.", command.ChannelMention(in.ChannelID)), nil
}
