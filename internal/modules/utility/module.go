package utility

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"hububba-utils/internal/command"
	"hububba-utils/internal/perms"

	"github.com/bwmarrin/discordgo"
)

const maxContent = 2000

type API interface {
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
}

type Module struct {
	api     API
	latency func() time.Duration
}

// New takes the gateway heartbeat latency as a func so it is read per call.
func New(api API, latency func() time.Duration) *Module {
	return &Module{api: api, latency: latency}
}

func (m *Module) Routes() []command.Route {
	return []command.Route{
		{Key: "ping", Level: perms.LevelAdmin, Handler: m.Ping},
		{Key: "roleids", Level: perms.LevelAdmin, Handler: m.RoleIDs},
	}
}

func (m *Module) Ping(ctx context.Context, in *command.Invocation) (command.Reply, error) {
	return command.Text("Pong! `%d ms`", m.latency().Round(time.Millisecond).Milliseconds()), nil
}

func (m *Module) RoleIDs(ctx context.Context, in *command.Invocation) (command.Reply, error) {
	guild, err := m.api.Guild(in.GuildID, discordgo.WithContext(ctx))
	if err != nil {
		return command.Reply{}, fmt.Errorf("load guild: %w", err)
	}

	roles := make([]*discordgo.Role, 0, len(guild.Roles))
	for _, r := range guild.Roles {
		if r.ID != guild.ID && r.Name != "@everyone" {
			roles = append(roles, r)
		}
	}
	if len(roles) == 0 {
		return command.Text("No roles found."), nil
	}
	sort.SliceStable(roles, func(i, j int) bool { return roles[i].Position > roles[j].Position })

	var b strings.Builder
	b.WriteString("Role IDs:")
	for _, r := range roles {
		line := fmt.Sprintf("\n`%s` - %s", r.ID, r.Name)
		if b.Len()+len(line) > maxContent {
			break
		}
		b.WriteString(line)
	}
	return command.Plain(b.String()), nil
}
