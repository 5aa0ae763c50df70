package bot

import (
	"fmt"

	"hububba-utils/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func floatPtr(v float64) *float64 { return &v }

func memberOption(description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        "member",
		Description: description,
		Required:    true,
	}
}

func stringOption(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        name,
		Description: description,
		Required:    required,
	}
}

func reasonOption() *discordgo.ApplicationCommandOption {
	return stringOption("reason", "Reason for the audit log", false)
}

func orderIDOption() *discordgo.ApplicationCommandOption {
	return stringOption("id", "Order ID like #0001", true)
}

func statusChoices() []*discordgo.ApplicationCommandOptionChoice {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(storage.Statuses))
	for _, s := range storage.Statuses {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: s.Label(), Value: string(s)})
	}
	return choices
}

// Commands is the guild command set registered on ready.
func Commands() []*discordgo.ApplicationCommand {
	status := func(description string) *discordgo.ApplicationCommandOption {
		opt := stringOption("status", description, false)
		opt.Choices = statusChoices()
		return opt
	}

	return []*discordgo.ApplicationCommand{
		{Name: "ping", Description: "Pong!"},
		{Name: "roleids", Description: "Get all role IDs in this server."},
		{
			Name:        "kick",
			Description: "Kick a member",
			Options:     []*discordgo.ApplicationCommandOption{memberOption("Member to kick"), reasonOption()},
		},
		{
			Name:        "ban",
			Description: "Ban a member",
			Options:     []*discordgo.ApplicationCommandOption{memberOption("Member to ban"), reasonOption()},
		},
		{
			Name:        "timeout",
			Description: "Timeout a member",
			Options: []*discordgo.ApplicationCommandOption{
				memberOption("Member to time out"),
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "minutes",
					Description: "Duration in minutes (max 7 days)",
					Required:    true,
					MinValue:    floatPtr(1),
					MaxValue:    10080,
				},
				reasonOption(),
			},
		},
		{
			Name:        "untimeout",
			Description: "Remove a member's timeout",
			Options:     []*discordgo.ApplicationCommandOption{memberOption("Member to release")},
		},
		{
			Name:        "purge",
			Description: "Bulk delete recent messages",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "amount",
				Description: "How many messages to delete",
				Required:    true,
				MinValue:    floatPtr(1),
				MaxValue:    1000,
			}},
		},
		{
			Name:        "lock",
			Description: "Lock the current channel",
			Options:     []*discordgo.ApplicationCommandOption{reasonOption()},
		},
		{
			Name:        "unlock",
			Description: "Unlock the current channel",
			Options:     []*discordgo.ApplicationCommandOption{reasonOption()},
		},
		{Name: "close", Description: "Archive this ticket"},
		{
			Name:        "order",
			Description: "Order management",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "List recent orders (optionally filter by status).",
					Options:     []*discordgo.ApplicationCommandOption{status("Optional status filter")},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "view",
					Description: "Show one order.",
					Options:     []*discordgo.ApplicationCommandOption{orderIDOption()},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "update",
					Description: "Update an order by ID.",
					Options:     []*discordgo.ApplicationCommandOption{orderIDOption()},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "manage",
					Description: "Edit an existing order.",
					Options: []*discordgo.ApplicationCommandOption{
						orderIDOption(),
						stringOption("title", "New title", false),
						status("New status"),
						stringOption("budget", "Update budget", false),
						stringOption("deadline", "Update deadline", false),
						stringOption("notes", "Replace notes", false),
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "export",
					Description: "Download every order as CSV.",
				},
			},
		},
		{
			Name:        "invoice",
			Description: "Invoices",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "create",
				Description: "Create & send a PayPal invoice.",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionNumber,
						Name:        "amount",
						Description: "Amount to bill",
						Required:    true,
						MinValue:    floatPtr(0.01),
					},
					stringOption("description", "Memo/description", true),
					stringOption("payer_email", "Recipient email", false),
					stringOption("currency", "Currency code, e.g. USD", false),
					stringOption("order", "Order ID to note the invoice on", false),
				},
			}},
		},
	}
}

func (b *Bot) registerCommands(guildID string) error {
	appID := b.session.State.User.ID
	created, err := b.session.ApplicationCommandBulkOverwrite(appID, guildID, Commands())
	if err != nil {
		return fmt.Errorf("register commands in %s: %w", guildID, err)
	}
	b.logger.Info("commands registered", zap.String("guild_id", guildID), zap.Int("count", len(created)))
	return nil
}
