package eventlog

import (
	"context"
	"fmt"

	"hububba-utils/internal/command"
	"hububba-utils/internal/modules/audit"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	deletedLimit = 1500
	editedLimit  = 800
	errorLimit   = 1900
	noContent    = "*no content*"
)

type Sender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Module mirrors member and message activity into the log channels and greets
// new members in the welcome channel.
type Module struct {
	sender    Sender
	welcomeID string
	audit     *audit.Logger
	logger    *zap.Logger
}

func New(sender Sender, welcomeChannelID string, auditLogger *audit.Logger, logger *zap.Logger) *Module {
	return &Module{sender: sender, welcomeID: welcomeChannelID, audit: auditLogger, logger: logger}
}

// HandleMessageDelete needs the cached copy of the message; deletions of
// uncached messages carry no author or content and are skipped.
func (m *Module) HandleMessageDelete(ctx context.Context, event *discordgo.MessageDelete) {
	msg := event.BeforeDelete
	if msg == nil || msg.GuildID == "" || msg.Author == nil || msg.Author.Bot {
		return
	}
	details := fmt.Sprintf("🗑️ **Message Deleted** in %s by %s\n>>> %s",
		command.ChannelMention(msg.ChannelID), author(msg.Author), clip(msg.Content, deletedLimit))
	m.audit.General(ctx, msg.GuildID, msg.Author.ID, "message_deleted", details)
}

func (m *Module) HandleMessageUpdate(ctx context.Context, event *discordgo.MessageUpdate) {
	before, after := event.BeforeUpdate, event.Message
	if before == nil || after == nil || before.GuildID == "" || before.Author == nil || before.Author.Bot {
		return
	}
	if after.EditedTimestamp == nil || before.Content == after.Content {
		return
	}
	details := fmt.Sprintf("✏️ **Message Edited** in %s by %s\n**Before:**\n>>> %s\n**After:**\n>>> %s",
		command.ChannelMention(before.ChannelID), author(before.Author),
		clip(before.Content, editedLimit), clip(after.Content, editedLimit))
	m.audit.General(ctx, before.GuildID, before.Author.ID, "message_edited", details)
}

func (m *Module) HandleMemberJoin(ctx context.Context, member *discordgo.Member) {
	if member == nil || member.User == nil {
		return
	}
	u := member.User
	m.audit.General(ctx, member.GuildID, u.ID, "member_joined",
		fmt.Sprintf("➕ **Member Joined**: %s (`%s` | `%s`)", command.Mention(u.ID), command.DisplayName(u), u.ID))

	if m.welcomeID == "" {
		return
	}
	welcome := fmt.Sprintf("👋 Welcome to the server, %s! Glad to have you here.", command.Mention(u.ID))
	if _, err := m.sender.ChannelMessageSend(m.welcomeID, welcome, discordgo.WithContext(ctx)); err != nil {
		m.logger.Warn("welcome message failed", zap.String("user_id", u.ID), zap.Error(err))
	}
}

func (m *Module) HandleMemberLeave(ctx context.Context, member *discordgo.Member) {
	if member == nil || member.User == nil {
		return
	}
	u := member.User
	m.audit.General(ctx, member.GuildID, u.ID, "member_left",
		fmt.Sprintf("➖ **Member Left**: `%s` (`%s`)", command.DisplayName(u), u.ID))
}

// CommandCompleted records a successful slash command in the bot log.
func (m *Module) CommandCompleted(ctx context.Context, guildID, name, userID, channelID string) {
	m.audit.Log(ctx, audit.StreamBot, audit.LevelInfo, guildID, userID, "command",
		fmt.Sprintf("✅ **Command**: `/%s` by %s in %s", name, command.Mention(userID), command.ChannelMention(channelID)))
}

func (m *Module) CommandFailed(ctx context.Context, guildID, name, userID, channelID string, cause any) {
	trace := fmt.Sprintf("/%s: %v", name, cause)
	m.audit.Log(ctx, audit.StreamBot, audit.LevelCrit, guildID, userID, "command_error",
		fmt.Sprintf("❌ **Command Error** in %s: ```\n%s\n```", command.ChannelMention(channelID), truncate(trace, errorLimit)))
}

func author(u *discordgo.User) string {
	return fmt.Sprintf("%s (%s)", command.DisplayName(u), u.ID)
}

func clip(content string, limit int) string {
	if content == "" {
		return noContent
	}
	return truncate(content, limit)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
