package audit

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const maxMessageLength = 2000

type MessageSender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Channels maps each stream to a channel ID. Tickets falls back to General.
type Channels struct {
	General string
	Bot     string
	Tickets string
}

func (c Channels) For(stream Stream) string {
	switch stream {
	case StreamBot:
		return c.Bot
	case StreamTickets:
		if c.Tickets != "" {
			return c.Tickets
		}
		return c.General
	default:
		return c.General
	}
}

// ChannelNotifier returns a notifier that posts entry details to Discord.
// Streams without a configured channel are only written to the zap log.
func ChannelNotifier(sender MessageSender, channels Channels, logger *zap.Logger) func(context.Context, Entry) {
	return func(ctx context.Context, entry Entry) {
		channelID := channels.For(entry.Stream)
		if channelID == "" || entry.Details == "" {
			return
		}
		if _, err := sender.ChannelMessageSend(channelID, Truncate(entry.Details, maxMessageLength)); err != nil {
			logger.Warn("audit channel send failed",
				zap.String("stream", string(entry.Stream)),
				zap.String("channel_id", channelID),
				zap.Error(err),
			)
		}
	}
}

// Truncate cuts s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 1 {
		return string(runes[:n])
	}
	return string(runes[:n-1]) + "…"
}
