package streams

import (
	"context"
	"fmt"
	"strings"

	"hububba-utils/internal/command"
	"hububba-utils/internal/modules/audit"
	"hububba-utils/internal/perms"
	"hububba-utils/internal/twitch"

	"github.com/bwmarrin/discordgo"
)

const (
	twitchPurple = 0x9146FF
	faviconURL   = "https://static.twitchcdn.net/assets/favicon-32-e29e246c157142c94346.png"
)

var ErrNoChannel = fmt.Errorf("%w: channel not found or not a text channel", twitch.ErrUndeliverable)

type API interface {
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Announcer posts go-live embeds for the Twitch poller and mirrors its status
// lines to the bot log.
type Announcer struct {
	api       API
	channelID string
	roleName  string
	audit     *audit.Logger
}

func NewAnnouncer(api API, channelID, roleName string, auditLogger *audit.Logger) *Announcer {
	return &Announcer{api: api, channelID: channelID, roleName: roleName, audit: auditLogger}
}

func (a *Announcer) Status(ctx context.Context, message string) {
	a.audit.Bot(ctx, audit.LevelInfo, "", "twitch_status", message)
}

func (a *Announcer) Announce(ctx context.Context, login string, stream twitch.Stream) error {
	if a.channelID == "" {
		return ErrNoChannel
	}
	ch, err := a.api.Channel(a.channelID, discordgo.WithContext(ctx))
	if err != nil || (ch.Type != discordgo.ChannelTypeGuildText && ch.Type != discordgo.ChannelTypeGuildNews) {
		return ErrNoChannel
	}

	msg := &discordgo.MessageSend{
		Embeds:          []*discordgo.MessageEmbed{liveEmbed(login, stream)},
		AllowedMentions: &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeRoles}},
	}
	if roleID, ok := a.role(ctx, ch.GuildID); ok {
		msg.Content = command.RoleMention(roleID)
	} else {
		a.Status(ctx, fmt.Sprintf("⚠️ Role '%s' not found; sending announcement without a ping.", a.roleName))
	}

	if _, err := a.api.ChannelMessageSendComplex(ch.ID, msg, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send announcement: %w", err)
	}
	a.audit.General(ctx, ch.GuildID, "", "twitch_live", "📺 Detected **live** on Twitch (offline → live).")
	return nil
}

func (a *Announcer) role(ctx context.Context, guildID string) (string, bool) {
	if a.roleName == "" {
		return "", false
	}
	guild, err := a.api.Guild(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return "", false
	}
	return perms.RoleID(guild, a.roleName)
}

func liveEmbed(login string, stream twitch.Stream) *discordgo.MessageEmbed {
	login = strings.ToLower(login)
	url := "https://www.twitch.tv/" + login
	title := stream.Title
	if title == "" {
		title = "Streaming on Twitch!"
	}
	game := stream.GameName
	if game == "" {
		game = "-"
	}
	embed := &discordgo.MessageEmbed{
		Title:       "🔴 LIVE NOW",
		URL:         url,
		Description: "**" + title + "**",
		Color:       twitchPurple,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Game", Value: game, Inline: true},
			{Name: "Watch", Value: fmt.Sprintf("[twitch.tv/%s](%s)", login, url), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "Twitch", IconURL: faviconURL},
	}
	if stream.ThumbnailURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: stream.Thumbnail(1280, 720)}
	}
	return embed
}
