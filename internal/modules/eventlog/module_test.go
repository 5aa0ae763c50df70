package eventlog

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"hububba-utils/internal/modules/audit"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSender struct {
	sent map[string][]string
}

func (f *fakeSender) ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.sent == nil {
		f.sent = map[string][]string{}
	}
	f.sent[channelID] = append(f.sent[channelID], content)
	return &discordgo.Message{}, nil
}

func newModule(welcome string) (*Module, *fakeSender, *[]audit.Entry) {
	entries := &[]audit.Entry{}
	logger := audit.NewLogger(zap.NewNop())
	logger.SetNotifier(func(ctx context.Context, e audit.Entry) { *entries = append(*entries, e) })
	sender := &fakeSender{}
	return New(sender, welcome, logger, zap.NewNop()), sender, entries
}

func message(content string) *discordgo.Message {
	return &discordgo.Message{
		ID:        "m1",
		ChannelID: "c1",
		GuildID:   "g1",
		Content:   content,
		Author:    &discordgo.User{ID: "u1", Username: "hub"},
	}
}

func TestMessageDelete(t *testing.T) {
	m, _, entries := newModule("")
	ctx := context.Background()

	m.HandleMessageDelete(ctx, &discordgo.MessageDelete{Message: &discordgo.Message{ID: "m1"}})
	require.Empty(t, *entries)

	m.HandleMessageDelete(ctx, &discordgo.MessageDelete{Message: &discordgo.Message{ID: "m1"}, BeforeDelete: message("")})
	require.Len(t, *entries, 1)
	require.Equal(t, "🗑️ **Message Deleted** in <#c1> by hub (u1)\n>>> *no content*", (*entries)[0].Details)

	long := message(strings.Repeat("x", 2000))
	m.HandleMessageDelete(ctx, &discordgo.MessageDelete{Message: &discordgo.Message{ID: "m1"}, BeforeDelete: long})
	require.Len(t, *entries, 2)
	require.True(t, strings.HasSuffix((*entries)[1].Details, ">>> "+strings.Repeat("x", 1500)))

	bot := message("beep")
	bot.Author.Bot = true
	m.HandleMessageDelete(ctx, &discordgo.MessageDelete{Message: &discordgo.Message{ID: "m1"}, BeforeDelete: bot})
	require.Len(t, *entries, 2)
}

func TestMessageEdit(t *testing.T) {
	m, _, entries := newModule("")
	ctx := context.Background()
	edited := time.Now()

	after := message("after")
	after.EditedTimestamp = &edited
	m.HandleMessageUpdate(ctx, &discordgo.MessageUpdate{Message: after, BeforeUpdate: message("before")})
	require.Len(t, *entries, 1)
	require.Equal(t, "✏️ **Message Edited** in <#c1> by hub (u1)\n**Before:**\n>>> before\n**After:**\n>>> after", (*entries)[0].Details)

	same := message("before")
	same.EditedTimestamp = &edited
	m.HandleMessageUpdate(ctx, &discordgo.MessageUpdate{Message: same, BeforeUpdate: message("before")})
	require.Len(t, *entries, 1)

	unfurl := message("")
	m.HandleMessageUpdate(ctx, &discordgo.MessageUpdate{Message: unfurl, BeforeUpdate: message("link")})
	require.Len(t, *entries, 1)
}

func TestMemberJoinAndLeave(t *testing.T) {
	m, sender, entries := newModule("welcome")
	ctx := context.Background()
	member := &discordgo.Member{GuildID: "g1", User: &discordgo.User{ID: "u5", Username: "newbie"}}

	m.HandleMemberJoin(ctx, member)
	m.HandleMemberLeave(ctx, member)

	require.Len(t, *entries, 2)
	require.Equal(t, "➕ **Member Joined**: <@u5> (`newbie` | `u5`)", (*entries)[0].Details)
	require.Equal(t, "➖ **Member Left**: `newbie` (`u5`)", (*entries)[1].Details)
	require.Equal(t, []string{"👋 Welcome to the server, <@u5>! Glad to have you here."}, sender.sent["welcome"])
}

func TestCommandLogs(t *testing.T) {
	m, _, entries := newModule("")
	ctx := context.Background()

	m.CommandCompleted(ctx, "g1", "kick", "u1", "c1")
	m.CommandFailed(ctx, "g1", "order list", "u1", "", errors.New(strings.Repeat("e", 3000)))

	require.Len(t, *entries, 2)
	require.Equal(t, audit.StreamBot, (*entries)[0].Stream)
	require.Equal(t, "✅ **Command**: `/kick` by <@u1> in <#c1>", (*entries)[0].Details)
	require.Equal(t, audit.LevelCrit, (*entries)[1].Level)
	require.True(t, strings.HasPrefix((*entries)[1].Details, "❌ **Command Error** in DM: ```\n/order list: eee"))
	require.Less(t, len((*entries)[1].Details), 2000)
}
