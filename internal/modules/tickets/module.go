package tickets

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"hububba-utils/internal/command"
	"hububba-utils/internal/config"
	"hububba-utils/internal/modules/audit"
	"hububba-utils/internal/orders"
	"hububba-utils/internal/perms"
	"hububba-utils/internal/storage"
	"hububba-utils/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type API interface {
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
	GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error)
	GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelEditComplex(channelID string, data *discordgo.ChannelEdit, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelMessagesBulkDelete(channelID string, messages []string, options ...discordgo.RequestOption) error
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

// Kind is a ticket type offered on the panel.
type Kind string

const (
	KindSupport    Kind = "Support"
	KindCommission Kind = "Commission"
	KindComplaint  Kind = "Complaint"
)

var Kinds = []Kind{KindSupport, KindCommission, KindComplaint}

func (k Kind) slug() string {
	return strings.ToLower(string(k))
}

func parseKind(raw string) (Kind, bool) {
	for _, k := range Kinds {
		if strings.EqualFold(raw, string(k)) {
			return k, true
		}
	}
	return "", false
}

type Options struct {
	PanelChannelID string
	Color          int
	StaffRole      string
	Categories     map[Kind]string
	Archive        string
	// BotID reports the bot's own user ID once the gateway session is ready.
	BotID func() string
}

// OptionsFromConfig maps the ticket and role settings onto Options.
func OptionsFromConfig(cfg config.Config, botID func() string) Options {
	return Options{
		PanelChannelID: cfg.Channels.TicketPanel,
		Color:          cfg.BrandColor,
		StaffRole:      cfg.Roles.Staff,
		Categories: map[Kind]string{
			KindSupport:    cfg.Tickets.SupportCategory,
			KindCommission: cfg.Tickets.CommissionCategory,
			KindComplaint:  cfg.Tickets.ComplaintCategory,
		},
		Archive: cfg.Tickets.ArchiveCategory,
		BotID:   botID,
	}
}

type Module struct {
	api      API
	opts     Options
	orders   *orders.Service
	panels   *storage.PanelStore
	gate     *perms.Gate
	audit    *audit.Logger
	logger   *zap.Logger
	cooldown *utils.Cooldown
	now      func() time.Time

	// categoryMu serialises find-or-create of categories so two tickets
	// opened at once do not create duplicate categories.
	categoryMu sync.Mutex
}

func New(api API, opts Options, orderService *orders.Service, panels *storage.PanelStore, gate *perms.Gate, cooldown *utils.Cooldown, auditLogger *audit.Logger, logger *zap.Logger) *Module {
	if opts.BotID == nil {
		opts.BotID = func() string { return "" }
	}
	return &Module{
		api:      api,
		opts:     opts,
		orders:   orderService,
		panels:   panels,
		gate:     gate,
		audit:    auditLogger,
		logger:   logger,
		cooldown: cooldown,
		now:      time.Now,
	}
}

func (m *Module) Routes() []command.Route {
	return []command.Route{
		{Key: buttonPrefix + KindSupport.slug(), Level: perms.LevelAny, Handler: m.OpenModal},
		{Key: buttonPrefix + KindCommission.slug(), Level: perms.LevelAny, Handler: m.OpenModal},
		{Key: buttonPrefix + KindComplaint.slug(), Level: perms.LevelAny, Handler: m.OpenModal},
		{Key: modalPrefix + KindSupport.slug(), Level: perms.LevelAny, Defer: true, Handler: m.Submit},
		{Key: modalPrefix + KindCommission.slug(), Level: perms.LevelAny, Defer: true, Handler: m.Submit},
		{Key: modalPrefix + KindComplaint.slug(), Level: perms.LevelAny, Defer: true, Handler: m.Submit},
		{Key: "close", Level: perms.LevelAny, Defer: true, Handler: m.Close},
	}
}

// Topic tags a ticket channel so it can be recognised after restarts.
func Topic(kind Kind, userID string) string {
	return fmt.Sprintf("ticket:%s:%s", kind.slug(), userID)
}

// ParseTopic reverses Topic.
func ParseTopic(topic string) (Kind, string, bool) {
	parts := strings.Split(strings.TrimSpace(topic), ":")
	if len(parts) != 3 || parts[0] != "ticket" || parts[2] == "" {
		return "", "", false
	}
	kind, ok := parseKind(parts[1])
	if !ok {
		return "", "", false
	}
	return kind, parts[2], true
}

// ChannelName builds "<kind>-<username>" restricted to characters Discord
// keeps in text channel names.
func ChannelName(kind Kind, username, userID string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(username) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
			lastDash = false
		case r == '-' || r == ' ' || r == '.':
			if !lastDash && b.Len() > 0 {
				b.WriteRune('-')
				lastDash = true
			}
		}
	}
	name := strings.Trim(b.String(), "-")
	if name == "" {
		name = userID
	}
	full := kind.slug() + "-" + name
	if len(full) > 100 {
		full = strings.TrimRight(full[:100], "-")
	}
	return full
}

func (m *Module) findOrCreateCategory(ctx context.Context, guildID, name string) (*discordgo.Channel, error) {
	m.categoryMu.Lock()
	defer m.categoryMu.Unlock()

	channels, err := m.api.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildCategory && ch.Name == name {
			return ch, nil
		}
	}
	category, err := m.api.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name: name,
		Type: discordgo.ChannelTypeGuildCategory,
	}, discordgo.WithContext(ctx), discordgo.WithAuditLogReason("Ticket system: autocreate"))
	if err != nil {
		return nil, fmt.Errorf("create category %q: %w", name, err)
	}
	return category, nil
}
