// Package commandtest builds decoded interactions for handler tests.
package commandtest

import (
	"sort"

	"hububba-utils/internal/command"

	"github.com/bwmarrin/discordgo"
)

// Caller identifies who triggered an interaction and where.
type Caller struct {
	GuildID   string
	ChannelID string
	UserID    string
	Username  string
	Roles     []string
	// Names resolves user options to usernames, like Discord's resolved data.
	Names map[string]string
}

func (c Caller) interaction(t discordgo.InteractionType, data discordgo.InteractionData) *discordgo.InteractionCreate {
	user := &discordgo.User{ID: c.UserID, Username: c.Username}
	in := &discordgo.Interaction{
		ID:        "interaction-1",
		Type:      t,
		Data:      data,
		GuildID:   c.GuildID,
		ChannelID: c.ChannelID,
		Token:     "token",
	}
	if c.GuildID != "" {
		in.Member = &discordgo.Member{User: user, GuildID: c.GuildID, Roles: c.Roles}
	} else {
		in.User = user
	}
	return &discordgo.InteractionCreate{Interaction: in}
}

func (c Caller) Slash(name string, options ...*discordgo.ApplicationCommandInteractionDataOption) *command.Invocation {
	resolved := &discordgo.ApplicationCommandInteractionDataResolved{Users: map[string]*discordgo.User{}}
	c.resolve(resolved, options)
	return command.Decode(c.interaction(discordgo.InteractionApplicationCommand, discordgo.ApplicationCommandInteractionData{
		ID:       "cmd-" + name,
		Name:     name,
		Options:  options,
		Resolved: resolved,
	}))
}

func (c Caller) resolve(resolved *discordgo.ApplicationCommandInteractionDataResolved, options []*discordgo.ApplicationCommandInteractionDataOption) {
	for _, opt := range options {
		if opt.Type == discordgo.ApplicationCommandOptionUser {
			id := opt.Value.(string)
			if name, ok := c.Names[id]; ok {
				resolved.Users[id] = &discordgo.User{ID: id, Username: name}
			}
		}
		c.resolve(resolved, opt.Options)
	}
}

func (c Caller) Button(customID string) *command.Invocation {
	return command.Decode(c.interaction(discordgo.InteractionMessageComponent, discordgo.MessageComponentInteractionData{
		CustomID:      customID,
		ComponentType: discordgo.ButtonComponent,
	}))
}

func (c Caller) ModalSubmit(customID string, values map[string]string) *command.Invocation {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([]discordgo.MessageComponent, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, &discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			&discordgo.TextInput{CustomID: k, Value: values[k]},
		}})
	}
	return command.Decode(c.interaction(discordgo.InteractionModalSubmit, discordgo.ModalSubmitInteractionData{
		CustomID:   customID,
		Components: rows,
	}))
}

func Sub(name string, options ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:    name,
		Type:    discordgo.ApplicationCommandOptionSubCommand,
		Options: options,
	}
}

func String(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionString, Value: value}
}

func Int(name string, value int64) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionInteger, Value: float64(value)}
}

func Number(name string, value float64) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionNumber, Value: value}
}

func User(name, userID string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionUser, Value: userID}
}
