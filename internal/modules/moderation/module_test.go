package moderation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"hububba-utils/internal/command/commandtest"
	"hububba-utils/internal/modules/audit"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type permCall struct {
	allow, deny int64
	deleted     bool
}

type fakeAPI struct {
	kicked   []string
	banned   []string
	timeouts map[string]*time.Time
	kickErr  error

	channel  *discordgo.Channel
	messages []*discordgo.Message
	bulk     [][]string
	single   []string
	perms    []permCall
}

func (f *fakeAPI) GuildMemberDeleteWithReason(guildID, userID, reason string, options ...discordgo.RequestOption) error {
	if f.kickErr != nil {
		return f.kickErr
	}
	f.kicked = append(f.kicked, userID+":"+reason)
	return nil
}

func (f *fakeAPI) GuildBanCreateWithReason(guildID, userID, reason string, days int, options ...discordgo.RequestOption) error {
	f.banned = append(f.banned, fmt.Sprintf("%s:%s:%d", userID, reason, days))
	return nil
}

func (f *fakeAPI) GuildMemberTimeout(guildID string, userID string, until *time.Time, options ...discordgo.RequestOption) error {
	if f.timeouts == nil {
		f.timeouts = map[string]*time.Time{}
	}
	f.timeouts[userID] = until
	return nil
}

func (f *fakeAPI) Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	if f.channel == nil {
		return nil, errors.New("unknown channel")
	}
	return f.channel, nil
}

// ChannelMessages pages newest first through f.messages.
func (f *fakeAPI) ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	start := 0
	if beforeID != "" {
		for i, m := range f.messages {
			if m.ID == beforeID {
				start = i + 1
				break
			}
		}
	}
	end := min(start+limit, len(f.messages))
	return f.messages[start:end], nil
}

func (f *fakeAPI) ChannelMessagesBulkDelete(channelID string, messages []string, options ...discordgo.RequestOption) error {
	f.bulk = append(f.bulk, messages)
	return nil
}

func (f *fakeAPI) ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error {
	f.single = append(f.single, messageID)
	return nil
}

func (f *fakeAPI) ChannelPermissionSet(channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64, options ...discordgo.RequestOption) error {
	f.perms = append(f.perms, permCall{allow: allow, deny: deny})
	return nil
}

func (f *fakeAPI) ChannelPermissionDelete(channelID, targetID string, options ...discordgo.RequestOption) error {
	f.perms = append(f.perms, permCall{deleted: true})
	return nil
}

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

var staff = commandtest.Caller{
	GuildID:   "g1",
	ChannelID: "c1",
	UserID:    "mod",
	Username:  "mod",
	Names:     map[string]string{"u1": "troll"},
}

func newModule(api *fakeAPI) (*Module, *[]audit.Entry) {
	entries := &[]audit.Entry{}
	logger := audit.NewLogger(zap.NewNop())
	logger.SetNotifier(func(ctx context.Context, e audit.Entry) { *entries = append(*entries, e) })
	m := New(api, logger)
	m.now = func() time.Time { return now }
	return m, entries
}

func TestKickDefaultsReason(t *testing.T) {
	api := &fakeAPI{}
	m, entries := newModule(api)

	reply, err := m.Kick(context.Background(), staff.Slash("kick", commandtest.User("member", "u1")))
	require.NoError(t, err)
	require.Equal(t, "👢 Kicked troll - No reason provided", reply.Content)
	require.False(t, reply.Public)
	require.Equal(t, []string{"u1:No reason provided"}, api.kicked)
	require.Len(t, *entries, 1)
	require.Equal(t, "👢 **Kick**: <@u1> by <@mod>\nReason: No reason provided", (*entries)[0].Details)
}

func TestKickFailureIsReported(t *testing.T) {
	api := &fakeAPI{kickErr: errors.New("HTTP 403 Forbidden")}
	m, entries := newModule(api)

	reply, err := m.Kick(context.Background(), staff.Slash("kick", commandtest.User("member", "u1"), commandtest.String("reason", "spam")))
	require.NoError(t, err)
	require.Equal(t, "Kick failed: HTTP 403 Forbidden", reply.Content)
	require.Empty(t, *entries)
}

func TestBanKeepsMessages(t *testing.T) {
	api := &fakeAPI{}
	m, _ := newModule(api)

	reply, err := m.Ban(context.Background(), staff.Slash("ban", commandtest.User("member", "u1"), commandtest.String("reason", "raid")))
	require.NoError(t, err)
	require.Equal(t, "🔨 Banned troll - raid", reply.Content)
	require.Equal(t, []string{"u1:raid:0"}, api.banned)
}

func TestTimeoutAndUntimeout(t *testing.T) {
	api := &fakeAPI{}
	m, entries := newModule(api)
	ctx := context.Background()

	reply, err := m.Timeout(ctx, staff.Slash("timeout", commandtest.User("member", "u1"), commandtest.Int("minutes", 30)))
	require.NoError(t, err)
	require.Equal(t, "⏳ Timed out troll for 30 minutes - No reason provided", reply.Content)
	require.Equal(t, now.Add(30*time.Minute), *api.timeouts["u1"])

	reply, err = m.Timeout(ctx, staff.Slash("timeout", commandtest.User("member", "u1"), commandtest.Int("minutes", 20000)))
	require.NoError(t, err)
	require.Equal(t, "Minutes must be between 1 and 10080.", reply.Content)

	reply, err = m.Untimeout(ctx, staff.Slash("untimeout", commandtest.User("member", "u1")))
	require.NoError(t, err)
	require.Equal(t, "✅ Removed timeout for troll", reply.Content)
	require.Nil(t, api.timeouts["u1"])
	require.Len(t, *entries, 2)
}

func TestPurgeSplitsRecentAndOld(t *testing.T) {
	api := &fakeAPI{channel: &discordgo.Channel{ID: "c1", Type: discordgo.ChannelTypeGuildText}}
	for i := 0; i < 150; i++ {
		age := time.Duration(i) * time.Minute
		if i >= 140 {
			age = 20 * 24 * time.Hour
		}
		api.messages = append(api.messages, &discordgo.Message{ID: fmt.Sprintf("m%03d", i), Timestamp: now.Add(-age)})
	}
	m, entries := newModule(api)

	reply, err := m.Purge(context.Background(), staff.Slash("purge", commandtest.Int("amount", 145)))
	require.NoError(t, err)
	require.Equal(t, "🧹 Deleted 145 messages.", reply.Content)

	require.Len(t, api.bulk, 2)
	require.Len(t, api.bulk[0], 100)
	require.Len(t, api.bulk[1], 40)
	require.Equal(t, []string{"m140", "m141", "m142", "m143", "m144"}, api.single)
	require.Equal(t, "🧹 **Purge**: <@mod> deleted 145 in <#c1>", (*entries)[0].Details)
}

func TestPurgeRejectsNonTextChannels(t *testing.T) {
	api := &fakeAPI{channel: &discordgo.Channel{ID: "c1", Type: discordgo.ChannelTypeGuildVoice}}
	m, _ := newModule(api)

	reply, err := m.Purge(context.Background(), staff.Slash("purge", commandtest.Int("amount", 5)))
	require.NoError(t, err)
	require.Equal(t, "This command must be used in a text channel.", reply.Content)
}

func TestLockAndUnlock(t *testing.T) {
	api := &fakeAPI{channel: &discordgo.Channel{ID: "c1", Type: discordgo.ChannelTypeGuildText}}
	m, entries := newModule(api)
	ctx := context.Background()

	reply, err := m.Lock(ctx, staff.Slash("lock"))
	require.NoError(t, err)
	require.Equal(t, "🔒 Locked <#c1>.", reply.Content)
	require.Equal(t, permCall{deny: discordgo.PermissionSendMessages}, api.perms[0])
	require.Equal(t, "🔒 **Lock**: <#c1> by <@mod>\nReason: Channel locked", (*entries)[0].Details)

	api.channel.PermissionOverwrites = []*discordgo.PermissionOverwrite{
		{ID: "g1", Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionSendMessages},
	}
	reply, err = m.Unlock(ctx, staff.Slash("unlock"))
	require.NoError(t, err)
	require.Equal(t, "🔓 Unlocked <#c1>.", reply.Content)
	require.Equal(t, permCall{deleted: true}, api.perms[1])

	api.channel.PermissionOverwrites = []*discordgo.PermissionOverwrite{
		{ID: "g1", Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionSendMessages | discordgo.PermissionAttachFiles},
	}
	_, err = m.Unlock(ctx, staff.Slash("unlock", commandtest.String("reason", "calm again")))
	require.NoError(t, err)
	require.Equal(t, permCall{deny: discordgo.PermissionAttachFiles}, api.perms[2])
	require.Equal(t, "🔓 **Unlock**: <#c1> by <@mod>\nReason: calm again", (*entries)[2].Details)
}
