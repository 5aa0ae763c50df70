package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken    string           `yaml:"discord_token"`
	TokenFile       string           `yaml:"token_file"`
	HomeGuildID     string           `yaml:"home_guild_id"`
	AllowedGuildIDs []string         `yaml:"allowed_guild_ids"`
	HomeGuildName   string           `yaml:"home_guild_name"`
	StatusText      string           `yaml:"status_text"`
	BrandColor      int              `yaml:"brand_color"`
	Log             LogConfig        `yaml:"log"`
	Roles           RoleConfig       `yaml:"roles"`
	Channels        ChannelConfig    `yaml:"channels"`
	Tickets         TicketConfig     `yaml:"tickets"`
	Storage         StorageConfig    `yaml:"storage"`
	PayPal          PayPalConfig     `yaml:"paypal"`
	Twitch          TwitchConfig     `yaml:"twitch"`
	Monitoring      MonitoringConfig `yaml:"monitoring"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// RoleConfig holds role names, not IDs. Roles are resolved against the guild
// at runtime so the same config works after a role is recreated.
type RoleConfig struct {
	Super        string `yaml:"super"`
	Admin        string `yaml:"admin"`
	Staff        string `yaml:"staff"`
	Auto         string `yaml:"auto"`
	StreamNotify string `yaml:"stream_notify"`
}

type ChannelConfig struct {
	TicketPanel   string `yaml:"ticket_panel"`
	TicketLog     string `yaml:"ticket_log"`
	GeneralLogs   string `yaml:"general_logs"`
	BotLogs       string `yaml:"bot_logs"`
	Welcome       string `yaml:"welcome"`
	Announcements string `yaml:"announcements"`
}

type TicketConfig struct {
	SupportCategory     string `yaml:"support_category"`
	CommissionCategory  string `yaml:"commission_category"`
	ComplaintCategory   string `yaml:"complaint_category"`
	ArchiveCategory     string `yaml:"archive_category"`
	OpenLimit           int    `yaml:"open_limit"`
	OpenCooldownSeconds int    `yaml:"open_cooldown_seconds"`
}

type StorageConfig struct {
	Driver        string `yaml:"driver"`
	DataDir       string `yaml:"data_dir"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
}

type PayPalConfig struct {
	ClientID        string `yaml:"client_id"`
	ClientSecret    string `yaml:"client_secret"`
	Env             string `yaml:"env"`
	DefaultCurrency string `yaml:"default_currency"`
}

type TwitchConfig struct {
	ClientID       string `yaml:"client_id"`
	ClientSecret   string `yaml:"client_secret"`
	Username       string `yaml:"username"`
	PollSeconds    int    `yaml:"poll_seconds"`
	HeartbeatEvery int    `yaml:"heartbeat_every"`
}

type MonitoringConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

func DefaultConfig() Config {
	return Config{
		TokenFile:     "token.txt",
		HomeGuildName: "Hububba's Coding world",
		StatusText:    "Hububba Utilities ∞",
		BrandColor:    0x9B59B6,
		Log: LogConfig{
			Level:      "info",
			File:       "logs/bot.log",
			MaxSizeMB:  5,
			MaxBackups: 3,
		},
		Roles: RoleConfig{
			Super:        "Owner",
			Admin:        "Admin+ Perms",
			Staff:        "Staff Perms Role",
			Auto:         "Member",
			StreamNotify: "Stream Notis",
		},
		Tickets: TicketConfig{
			SupportCategory:     "Support Tickets",
			CommissionCategory:  "Commission Tickets",
			ComplaintCategory:   "Complaint Tickets",
			ArchiveCategory:     "Ticket Archive",
			OpenLimit:           3,
			OpenCooldownSeconds: 600,
		},
		Storage: StorageConfig{
			Driver:        "json",
			DataDir:       "data",
			MongoDatabase: "hububba",
		},
		PayPal: PayPalConfig{
			Env:             "sandbox",
			DefaultCurrency: "USD",
		},
		Twitch: TwitchConfig{
			PollSeconds:    60,
			HeartbeatEvery: 5,
		},
		Monitoring: MonitoringConfig{Enabled: false, Addr: ":8080"},
	}
}

// Load reads the full bot configuration. A Discord token is required.
func Load() (Config, error) {
	cfg, err := LoadOffline()
	if err != nil {
		return Config{}, err
	}
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	return cfg, nil
}

// LoadOffline reads the configuration without requiring a Discord token, for
// tools that only touch the order store.
func LoadOffline() (Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if cfg.DiscordToken == "" && cfg.TokenFile != "" {
		token, err := readToken(cfg.TokenFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
		cfg.DiscordToken = token
	}

	cfg.Storage.Driver = normalizeDriver(cfg.Storage.Driver)
	cfg.PayPal.Env = normalizePayPalEnv(cfg.PayPal.Env)
	if cfg.Twitch.PollSeconds <= 0 {
		cfg.Twitch.PollSeconds = 60
	}
	if cfg.Twitch.HeartbeatEvery <= 0 {
		cfg.Twitch.HeartbeatEvery = 5
	}

	return cfg, nil
}

// AllowedGuild reports whether the bot should operate in guildID. With no home
// guild and no allow-list configured every guild is accepted.
func (c Config) AllowedGuild(guildID string) bool {
	if c.HomeGuildID == "" && len(c.AllowedGuildIDs) == 0 {
		return true
	}
	if guildID == "" {
		return false
	}
	if guildID == c.HomeGuildID {
		return true
	}
	for _, id := range c.AllowedGuildIDs {
		if id == guildID {
			return true
		}
	}
	return false
}

// GuildIDs returns the home guild followed by the allow-list, deduplicated.
func (c Config) GuildIDs() []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, id := range append([]string{c.HomeGuildID}, c.AllowedGuildIDs...) {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

func readToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("%s is empty", path)
	}
	return token, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.TokenFile = envString("TOKEN_FILE", cfg.TokenFile)
	cfg.HomeGuildID = envString("HOME_GUILD_ID", cfg.HomeGuildID)
	cfg.AllowedGuildIDs = envList("ALLOWED_GUILD_IDS", cfg.AllowedGuildIDs)
	cfg.StatusText = envString("BOT_STATUS_TEXT", cfg.StatusText)
	cfg.Log.Level = envString("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.File = envString("LOG_FILE", cfg.Log.File)
	cfg.Log.MaxSizeMB = envInt("LOG_MAX_SIZE_MB", cfg.Log.MaxSizeMB)
	cfg.Log.MaxBackups = envInt("LOG_MAX_BACKUPS", cfg.Log.MaxBackups)
	cfg.Roles.Super = envString("SUPER_ROLE_NAME", cfg.Roles.Super)
	cfg.Roles.Admin = envString("ADMIN_ROLE_NAME", cfg.Roles.Admin)
	cfg.Roles.Staff = envString("STAFF_ROLE_NAME", cfg.Roles.Staff)
	cfg.Roles.Auto = envString("AUTO_ROLE_NAME", cfg.Roles.Auto)
	cfg.Roles.StreamNotify = envString("STREAM_NOTIS_ROLE_NAME", cfg.Roles.StreamNotify)
	cfg.Channels.TicketPanel = envString("TICKET_PANEL_CHANNEL_ID", cfg.Channels.TicketPanel)
	cfg.Channels.TicketLog = envString("LOG_CHANNEL_ID", cfg.Channels.TicketLog)
	cfg.Channels.GeneralLogs = envString("GENERAL_LOGS_CHANNEL_ID", cfg.Channels.GeneralLogs)
	cfg.Channels.BotLogs = envString("BOT_LOGS_CHANNEL_ID", cfg.Channels.BotLogs)
	cfg.Channels.Welcome = envString("WELCOME_CHANNEL_ID", cfg.Channels.Welcome)
	cfg.Channels.Announcements = envString("ANNOUNCEMENT_CHANNEL_ID", cfg.Channels.Announcements)
	cfg.Tickets.OpenLimit = envInt("TICKET_OPEN_LIMIT", cfg.Tickets.OpenLimit)
	cfg.Tickets.OpenCooldownSeconds = envInt("TICKET_OPEN_COOLDOWN_SECONDS", cfg.Tickets.OpenCooldownSeconds)
	cfg.Storage.Driver = envString("STORAGE_DRIVER", cfg.Storage.Driver)
	cfg.Storage.DataDir = envString("DATA_DIR", cfg.Storage.DataDir)
	cfg.Storage.PostgresDSN = envString("POSTGRES_DSN", cfg.Storage.PostgresDSN)
	cfg.Storage.MongoURI = envString("MONGO_URI", cfg.Storage.MongoURI)
	cfg.Storage.MongoDatabase = envString("MONGO_DATABASE", cfg.Storage.MongoDatabase)
	cfg.PayPal.ClientID = envString("PAYPAL_CLIENT_ID", cfg.PayPal.ClientID)
	cfg.PayPal.ClientSecret = envString("PAYPAL_CLIENT_SECRET", cfg.PayPal.ClientSecret)
	cfg.PayPal.Env = envString("PAYPAL_ENV", cfg.PayPal.Env)
	cfg.PayPal.DefaultCurrency = envString("PAYPAL_CURRENCY", cfg.PayPal.DefaultCurrency)
	cfg.Twitch.ClientID = envString("TWITCH_CLIENT_ID", cfg.Twitch.ClientID)
	cfg.Twitch.ClientSecret = envString("TWITCH_CLIENT_SECRET", cfg.Twitch.ClientSecret)
	cfg.Twitch.Username = envString("TWITCH_USERNAME", cfg.Twitch.Username)
	cfg.Twitch.PollSeconds = envInt("TWITCH_POLL_SECONDS", cfg.Twitch.PollSeconds)
	cfg.Twitch.HeartbeatEvery = envInt("TWITCH_HEARTBEAT_EVERY", cfg.Twitch.HeartbeatEvery)
	cfg.Monitoring.Enabled = envBool("MONITORING_ENABLED", cfg.Monitoring.Enabled)
	cfg.Monitoring.Addr = envString("MONITORING_ADDR", cfg.Monitoring.Addr)
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func normalizeDriver(value string) string {
	switch strings.ToLower(value) {
	case "postgres", "postgresql", "pg":
		return "postgres"
	case "mongo", "mongodb":
		return "mongo"
	default:
		return "json"
	}
}

func normalizePayPalEnv(value string) string {
	if strings.ToLower(value) == "live" {
		return "live"
	}
	return "sandbox"
}
