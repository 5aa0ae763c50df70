package command

import (
	"context"
	"fmt"
	"strings"

	"hububba-utils/internal/perms"

	"github.com/bwmarrin/discordgo"
)

// Handler answers one interaction. Returning a *perms.Denied error produces an
// ephemeral refusal; any other error produces the generic failure reply.
type Handler func(ctx context.Context, in *Invocation) (Reply, error)

// Route binds an interaction key to its handler. Keys are the command name plus
// sub-command ("order list") for slash commands, or the custom ID prefix before
// ':' for buttons and modals.
type Route struct {
	Key     string
	Level   perms.Level
	Defer   bool
	Handler Handler
}

// Reply is sent as the interaction response. Replies are ephemeral unless Public.
type Reply struct {
	Content string
	Embeds  []*discordgo.MessageEmbed
	Files   []*discordgo.File
	Modal   *discordgo.InteractionResponseData
	Public  bool
}

func Text(format string, args ...any) Reply {
	if len(args) == 0 {
		return Reply{Content: format}
	}
	return Reply{Content: fmt.Sprintf(format, args...)}
}

// Plain replies with content as-is; use it for text that may contain '%'.
func Plain(content string) Reply {
	return Reply{Content: content}
}

func Embed(embed *discordgo.MessageEmbed) Reply {
	return Reply{Embeds: []*discordgo.MessageEmbed{embed}}
}

// Modal builds a modal reply with one text input per row.
func Modal(customID, title string, inputs ...discordgo.TextInput) Reply {
	rows := make([]discordgo.MessageComponent, 0, len(inputs))
	for _, input := range inputs {
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{input}})
	}
	return Reply{Modal: &discordgo.InteractionResponseData{
		CustomID:   customID,
		Title:      title,
		Components: rows,
	}}
}

// Invocation is a decoded interaction.
type Invocation struct {
	*discordgo.InteractionCreate
	Key     string
	Arg     string
	Options map[string]*discordgo.ApplicationCommandInteractionDataOption
	Values  map[string]string

	resolved *discordgo.ApplicationCommandInteractionDataResolved
}

// Decode extracts the route key and arguments from an interaction.
func Decode(i *discordgo.InteractionCreate) *Invocation {
	in := &Invocation{
		InteractionCreate: i,
		Options:           map[string]*discordgo.ApplicationCommandInteractionDataOption{},
		Values:            map[string]string{},
	}
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		in.Key = data.Name
		in.resolved = data.Resolved
		options := data.Options
		for len(options) == 1 && isSubCommand(options[0].Type) {
			in.Key += " " + options[0].Name
			options = options[0].Options
		}
		for _, opt := range options {
			in.Options[opt.Name] = opt
		}
	case discordgo.InteractionMessageComponent:
		in.Key, in.Arg = splitCustomID(i.MessageComponentData().CustomID)
	case discordgo.InteractionModalSubmit:
		data := i.ModalSubmitData()
		in.Key, in.Arg = splitCustomID(data.CustomID)
		in.Values = ModalValues(data.Components)
	}
	return in
}

func isSubCommand(t discordgo.ApplicationCommandOptionType) bool {
	return t == discordgo.ApplicationCommandOptionSubCommand || t == discordgo.ApplicationCommandOptionSubCommandGroup
}

func splitCustomID(id string) (string, string) {
	key, arg, _ := strings.Cut(id, ":")
	return key, arg
}

// ModalValues maps text input custom IDs to their submitted values.
func ModalValues(components []discordgo.MessageComponent) map[string]string {
	values := make(map[string]string)
	var walk func([]discordgo.MessageComponent)
	walk = func(list []discordgo.MessageComponent) {
		for _, c := range list {
			switch v := c.(type) {
			case *discordgo.ActionsRow:
				walk(v.Components)
			case discordgo.ActionsRow:
				walk(v.Components)
			case *discordgo.TextInput:
				values[v.CustomID] = v.Value
			case discordgo.TextInput:
				values[v.CustomID] = v.Value
			}
		}
	}
	walk(components)
	return values
}

// User is the invoking user in guilds and DMs alike.
func (in *Invocation) User() *discordgo.User {
	if in.Member != nil && in.Member.User != nil {
		return in.Member.User
	}
	return in.InteractionCreate.User
}

func (in *Invocation) UserID() string {
	if u := in.User(); u != nil {
		return u.ID
	}
	return ""
}

func (in *Invocation) String(name, fallback string) string {
	if opt, ok := in.Options[name]; ok {
		if v := strings.TrimSpace(opt.StringValue()); v != "" {
			return v
		}
	}
	return fallback
}

// OptionalString distinguishes an omitted option from an empty one.
func (in *Invocation) OptionalString(name string) *string {
	opt, ok := in.Options[name]
	if !ok {
		return nil
	}
	v := strings.TrimSpace(opt.StringValue())
	return &v
}

func (in *Invocation) Int(name string, fallback int64) int64 {
	if opt, ok := in.Options[name]; ok {
		return opt.IntValue()
	}
	return fallback
}

func (in *Invocation) Float(name string) (float64, bool) {
	opt, ok := in.Options[name]
	if !ok {
		return 0, false
	}
	return opt.FloatValue(), true
}

// UserOption returns the user picked for a user option, preferring the
// resolved copy Discord sends along with the command.
func (in *Invocation) UserOption(name string) *discordgo.User {
	opt, ok := in.Options[name]
	if !ok {
		return nil
	}
	user := opt.UserValue(nil)
	if in.resolved != nil {
		if full, ok := in.resolved.Users[user.ID]; ok && full != nil {
			return full
		}
	}
	return user
}

func (in *Invocation) Value(customID string) string {
	return strings.TrimSpace(in.Values[customID])
}

// Mention renders a user mention.
func Mention(userID string) string {
	return "<@" + userID + ">"
}

func ChannelMention(channelID string) string {
	if channelID == "" {
		return "DM"
	}
	return "<#" + channelID + ">"
}

func RoleMention(roleID string) string {
	return "<@&" + roleID + ">"
}

// DisplayName mirrors how Discord renders a user tag.
func DisplayName(u *discordgo.User) string {
	if u == nil {
		return "unknown"
	}
	if u.Discriminator != "" && u.Discriminator != "0" {
		return u.Username + "#" + u.Discriminator
	}
	return u.Username
}
