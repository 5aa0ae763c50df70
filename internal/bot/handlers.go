package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"hububba-utils/internal/command"
	"hububba-utils/internal/monitoring"
	"hububba-utils/internal/perms"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const genericError = "Something went wrong running that command."

// InteractionAPI is the slice of the session the router talks to.
type InteractionAPI interface {
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// CommandReporter is told about finished slash commands.
type CommandReporter interface {
	CommandCompleted(ctx context.Context, guildID, name, userID, channelID string)
	CommandFailed(ctx context.Context, guildID, name, userID, channelID string, cause any)
}

// Router dispatches decoded interactions to module handlers after the guild
// and permission gates.
type Router struct {
	api      InteractionAPI
	gate     *perms.Gate
	reporter CommandReporter
	logger   *zap.Logger
	routes   map[string]command.Route
}

func NewRouter(api InteractionAPI, gate *perms.Gate, reporter CommandReporter, logger *zap.Logger) *Router {
	return &Router{
		api:      api,
		gate:     gate,
		reporter: reporter,
		logger:   logger,
		routes:   make(map[string]command.Route),
	}
}

func (r *Router) Register(routes ...command.Route) {
	for _, route := range routes {
		if _, dup := r.routes[route.Key]; dup {
			r.logger.Warn("duplicate route", zap.String("key", route.Key))
		}
		r.routes[route.Key] = route
	}
}

func (r *Router) Handle(ctx context.Context, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand, discordgo.InteractionMessageComponent, discordgo.InteractionModalSubmit:
	default:
		return
	}

	start := time.Now()
	in := command.Decode(i)
	route, ok := r.routes[in.Key]
	if !ok {
		r.logger.Warn("unrouted interaction", zap.String("key", in.Key), zap.Uint8("type", uint8(i.Type)))
		r.send(ctx, in, false, command.Text("That action is no longer available."))
		return
	}

	outcome := "ok"
	defer func() {
		monitoring.DiscordCommandDuration.WithLabelValues(route.Key, outcome).Observe(time.Since(start).Seconds())
	}()

	if err := r.authorize(ctx, in, route.Level); err != nil {
		outcome = "denied"
		r.send(ctx, in, false, r.refusal(err))
		return
	}

	deferred := false
	if route.Defer {
		err := r.api.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
		}, discordgo.WithContext(ctx))
		if err != nil {
			r.logger.Warn("defer failed", zap.String("key", route.Key), zap.Error(err))
		} else {
			deferred = true
		}
	}

	reply, err := r.run(ctx, route, in)
	if err != nil {
		if msg, denied := perms.IsDenied(err); denied {
			outcome = "denied"
			reply = command.Plain(msg)
		} else {
			outcome = "error"
			r.logger.Error("command failed",
				zap.String("key", route.Key),
				zap.String("guild_id", in.GuildID),
				zap.String("user_id", in.UserID()),
				zap.Error(err),
			)
			r.reporter.CommandFailed(ctx, in.GuildID, route.Key, in.UserID(), in.ChannelID, err)
			reply = command.Text(genericError)
		}
	} else if i.Type == discordgo.InteractionApplicationCommand {
		r.reporter.CommandCompleted(ctx, in.GuildID, route.Key, in.UserID(), in.ChannelID)
	}

	r.send(ctx, in, deferred, reply)
}

func (r *Router) authorize(ctx context.Context, in *command.Invocation, level perms.Level) error {
	if err := r.gate.InAllowedGuild(in.GuildID); err != nil {
		return err
	}
	if level == perms.LevelAny {
		return nil
	}
	guild, err := r.api.Guild(in.GuildID, discordgo.WithContext(ctx))
	if err != nil {
		r.logger.Warn("guild lookup failed", zap.String("guild_id", in.GuildID), zap.Error(err))
		guild = nil
	}
	return r.gate.Check(guild, in.Member, level)
}

func (r *Router) refusal(err error) command.Reply {
	if msg, ok := perms.IsDenied(err); ok {
		return command.Plain(msg)
	}
	return command.Text(genericError)
}

func (r *Router) run(ctx context.Context, route command.Route, in *command.Invocation) (reply command.Reply, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic in handler",
				zap.String("key", route.Key),
				zap.Any("panic", rec),
				zap.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return route.Handler(ctx, in)
}

func (r *Router) send(ctx context.Context, in *command.Invocation, deferred bool, reply command.Reply) {
	var err error
	switch {
	case reply.Modal != nil && !deferred:
		err = r.api.InteractionRespond(in.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseModal,
			Data: reply.Modal,
		}, discordgo.WithContext(ctx))
	case deferred:
		if reply.Modal != nil {
			reply = command.Text(genericError)
		}
		content := reply.Content
		if content == "" && len(reply.Embeds) == 0 && len(reply.Files) == 0 {
			content = "Done."
		}
		edit := &discordgo.WebhookEdit{
			Content:         &content,
			Files:           reply.Files,
			AllowedMentions: &discordgo.MessageAllowedMentions{},
		}
		if len(reply.Embeds) > 0 {
			edit.Embeds = &reply.Embeds
		}
		_, err = r.api.InteractionResponseEdit(in.Interaction, edit, discordgo.WithContext(ctx))
	default:
		var flags discordgo.MessageFlags
		if !reply.Public {
			flags = discordgo.MessageFlagsEphemeral
		}
		err = r.api.InteractionRespond(in.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content:         reply.Content,
				Embeds:          reply.Embeds,
				Files:           reply.Files,
				Flags:           flags,
				AllowedMentions: &discordgo.MessageAllowedMentions{},
			},
		}, discordgo.WithContext(ctx))
	}
	if err != nil {
		r.logger.Warn("interaction reply failed", zap.String("key", in.Key), zap.Error(err))
	}
}

func (b *Bot) onInteractionCreate(session *discordgo.Session, i *discordgo.InteractionCreate) {
	monitoring.TotalDiscordEvents.WithLabelValues("INTERACTION_CREATE").Inc()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	b.router.Handle(ctx, i)
}
