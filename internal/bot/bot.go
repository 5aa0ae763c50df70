package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hububba-utils/internal/config"
	"hububba-utils/internal/modules/audit"
	"hububba-utils/internal/modules/autorole"
	"hububba-utils/internal/modules/eventlog"
	"hububba-utils/internal/modules/invoice"
	"hububba-utils/internal/modules/moderation"
	"hububba-utils/internal/modules/orderbook"
	"hububba-utils/internal/modules/streams"
	"hububba-utils/internal/modules/tickets"
	"hububba-utils/internal/modules/utility"
	"hububba-utils/internal/monitoring"
	"hububba-utils/internal/orders"
	"hububba-utils/internal/paypal"
	"hububba-utils/internal/perms"
	"hububba-utils/internal/storage"
	"hububba-utils/internal/twitch"
	"hububba-utils/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// messageCacheSize backs the edit and delete logs, which need the previous
// message content from the state cache.
const messageCacheSize = 500

type Bot struct {
	cfg     config.Config
	logger  *zap.Logger
	session *discordgo.Session
	audit   *audit.Logger
	router  *Router

	autorole *autorole.Module
	eventlog *eventlog.Module
	tickets  *tickets.Module
	poller   *twitch.Poller

	ctx      context.Context
	cancel   context.CancelFunc
	pollOnce sync.Once
}

// discordAPI serves guild lookups from the state cache before falling back to
// REST; permission checks run on every interaction.
type discordAPI struct {
	*discordgo.Session
}

func (d discordAPI) Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error) {
	if g, err := d.State.Guild(guildID); err == nil {
		return g, nil
	}
	return d.Session.Guild(guildID, options...)
}

func New(cfg config.Config, logger *zap.Logger, orderService *orders.Service, panels *storage.PanelStore, auditLogger *audit.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent
	session.State.MaxMessageCount = messageCacheSize

	api := discordAPI{Session: session}
	gate := perms.NewGate(perms.Roles{
		Super: cfg.Roles.Super,
		Admin: cfg.Roles.Admin,
		Staff: cfg.Roles.Staff,
	}, cfg.HomeGuildName, cfg.AllowedGuild)

	auditLogger.SetNotifier(audit.ChannelNotifier(session, audit.Channels{
		General: cfg.Channels.GeneralLogs,
		Bot:     cfg.Channels.BotLogs,
		Tickets: cfg.Channels.TicketLog,
	}, logger.Named("audit")))

	b := &Bot{
		cfg:     cfg,
		logger:  logger,
		session: session,
		audit:   auditLogger,
	}

	b.autorole = autorole.New(api, cfg.Roles.Auto, auditLogger)
	b.eventlog = eventlog.New(api, cfg.Channels.Welcome, auditLogger, logger.Named("eventlog"))

	cooldown := utils.NewCooldown(cfg.Tickets.OpenLimit, time.Duration(cfg.Tickets.OpenCooldownSeconds)*time.Second)
	b.tickets = tickets.New(api, tickets.OptionsFromConfig(cfg, b.botID), orderService, panels, gate, cooldown, auditLogger, logger.Named("tickets"))

	var sender invoice.Sender
	if client, err := paypal.NewClient(paypal.Config{
		ClientID:     cfg.PayPal.ClientID,
		ClientSecret: cfg.PayPal.ClientSecret,
		Env:          cfg.PayPal.Env,
	}); err == nil {
		sender = client
	} else {
		logger.Info("paypal disabled", zap.Error(err))
	}

	b.router = NewRouter(api, gate, b.eventlog, logger.Named("router"))
	b.router.Register(moderation.New(api, auditLogger).Routes()...)
	b.router.Register(b.tickets.Routes()...)
	b.router.Register(orderbook.New(orderService, auditLogger, cfg.BrandColor).Routes()...)
	b.router.Register(invoice.New(sender, orderService, cfg.PayPal.DefaultCurrency, auditLogger, logger.Named("invoice")).Routes()...)
	b.router.Register(utility.New(api, session.HeartbeatLatency).Routes()...)

	var source twitch.StreamSource
	if client, err := twitch.NewClient(twitch.Config{
		ClientID:     cfg.Twitch.ClientID,
		ClientSecret: cfg.Twitch.ClientSecret,
	}); err == nil {
		source = client
	}
	b.poller = twitch.NewPoller(source,
		streams.NewAnnouncer(api, cfg.Channels.Announcements, cfg.Roles.StreamNotify, auditLogger),
		twitch.PollerConfig{
			Login:          cfg.Twitch.Username,
			Interval:       time.Duration(cfg.Twitch.PollSeconds) * time.Second,
			HeartbeatEvery: cfg.Twitch.HeartbeatEvery,
		}, logger.Named("twitch"))

	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onGuildCreate)
	b.session.AddHandler(b.onGuildDelete)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onGuildMemberRemove)
	b.session.AddHandler(b.onMessageUpdate)
	b.session.AddHandler(b.onMessageDelete)
	b.session.AddHandler(b.onInteractionCreate)

	b.ctx, b.cancel = context.WithCancel(context.Background())
	return b.session.Open()
}

func (b *Bot) Close(ctx context.Context) {
	_ = ctx
	if b.cancel != nil {
		b.cancel()
	}
	b.poller.Stop()
	if b.session != nil {
		_ = b.session.Close()
	}
}

// Connected reports whether the gateway session has completed its handshake.
func (b *Bot) Connected(ctx context.Context) error {
	if b.session.DataReady {
		return nil
	}
	return fmt.Errorf("discord gateway not ready")
}

func (b *Bot) botID() string {
	if b.session.State == nil || b.session.State.User == nil {
		return ""
	}
	return b.session.State.User.ID
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	monitoring.TotalDiscordEvents.WithLabelValues("READY").Inc()
	monitoring.TotalDiscordGuilds.Set(float64(len(event.Guilds)))
	b.logger.Info("discord ready", zap.String("user", event.User.Username), zap.Int("guilds", len(event.Guilds)))

	if err := session.UpdateGameStatus(0, b.cfg.StatusText); err != nil {
		b.logger.Warn("presence update failed", zap.Error(err))
	}

	guildIDs := b.cfg.GuildIDs()
	if len(guildIDs) == 0 {
		for _, g := range event.Guilds {
			guildIDs = append(guildIDs, g.ID)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	for _, guildID := range guildIDs {
		if err := b.registerCommands(guildID); err != nil {
			b.logger.Error("command registration failed", zap.String("guild_id", guildID), zap.Error(err))
			b.audit.Bot(ctx, audit.LevelCrit, guildID, "command_sync_failed", fmt.Sprintf("❌ Command sync failed: `%v`", err))
			continue
		}
		if err := b.tickets.EnsurePanel(ctx, guildID); err != nil {
			b.logger.Warn("ticket panel failed", zap.String("guild_id", guildID), zap.Error(err))
		}
	}
	b.audit.Bot(ctx, audit.LevelInfo, "", "ready", fmt.Sprintf("🟢 Logged in as **%s**.", event.User.Username))

	// Ready fires again after a resume failure; the poller runs once.
	b.pollOnce.Do(func() { b.poller.Start(b.ctx) })
}

func (b *Bot) onGuildCreate(session *discordgo.Session, event *discordgo.GuildCreate) {
	monitoring.TotalDiscordEvents.WithLabelValues("GUILD_CREATE").Inc()
	monitoring.TotalDiscordGuilds.Set(guildCount(session))
	if event.Guild == nil || b.cfg.AllowedGuild(event.ID) {
		return
	}
	b.leaveGuild(session, event.Guild)
}

func (b *Bot) onGuildDelete(session *discordgo.Session, event *discordgo.GuildDelete) {
	monitoring.TotalDiscordEvents.WithLabelValues("GUILD_DELETE").Inc()
	monitoring.TotalDiscordGuilds.Set(guildCount(session))
}

func guildCount(session *discordgo.Session) float64 {
	session.State.RLock()
	defer session.State.RUnlock()
	return float64(len(session.State.Guilds))
}

// leaveGuild posts a notice where the guild will see it, then leaves.
func (b *Bot) leaveGuild(session *discordgo.Session, guild *discordgo.Guild) {
	name := b.cfg.HomeGuildName
	if name == "" {
		name = "its home server"
	}
	notice := fmt.Sprintf("This bot only functions inside **%s**. Leaving this server.", name)
	if channelID := noticeChannel(guild); channelID != "" {
		if _, err := session.ChannelMessageSend(channelID, notice); err != nil {
			b.logger.Debug("leave notice failed", zap.String("guild_id", guild.ID), zap.Error(err))
		}
	}
	if err := session.GuildLeave(guild.ID); err != nil {
		b.logger.Error("leave guild failed", zap.String("guild_id", guild.ID), zap.Error(err))
		return
	}
	b.logger.Info("left foreign guild", zap.String("guild_id", guild.ID), zap.String("name", guild.Name))
}

func noticeChannel(guild *discordgo.Guild) string {
	if guild.SystemChannelID != "" {
		return guild.SystemChannelID
	}
	for _, ch := range guild.Channels {
		if ch.Type == discordgo.ChannelTypeGuildText {
			return ch.ID
		}
	}
	return ""
}

func (b *Bot) onGuildMemberAdd(session *discordgo.Session, event *discordgo.GuildMemberAdd) {
	monitoring.TotalDiscordEvents.WithLabelValues("GUILD_MEMBER_ADD").Inc()
	if event.Member == nil || !b.cfg.AllowedGuild(event.GuildID) {
		return
	}
	ctx := context.Background()
	b.autorole.HandleMemberJoin(ctx, event.Member)
	b.eventlog.HandleMemberJoin(ctx, event.Member)
}

func (b *Bot) onGuildMemberRemove(session *discordgo.Session, event *discordgo.GuildMemberRemove) {
	monitoring.TotalDiscordEvents.WithLabelValues("GUILD_MEMBER_REMOVE").Inc()
	if event.Member == nil || !b.cfg.AllowedGuild(event.GuildID) {
		return
	}
	b.eventlog.HandleMemberLeave(context.Background(), event.Member)
}

func (b *Bot) onMessageUpdate(session *discordgo.Session, event *discordgo.MessageUpdate) {
	monitoring.TotalDiscordEvents.WithLabelValues("MESSAGE_UPDATE").Inc()
	if event.Message == nil || !b.cfg.AllowedGuild(event.GuildID) {
		return
	}
	b.eventlog.HandleMessageUpdate(context.Background(), event)
}

func (b *Bot) onMessageDelete(session *discordgo.Session, event *discordgo.MessageDelete) {
	monitoring.TotalDiscordEvents.WithLabelValues("MESSAGE_DELETE").Inc()
	if event.Message == nil || !b.cfg.AllowedGuild(event.GuildID) {
		return
	}
	b.eventlog.HandleMessageDelete(context.Background(), event)
}
