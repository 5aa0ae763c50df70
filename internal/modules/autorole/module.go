package autorole

import (
	"context"
	"fmt"

	"hububba-utils/internal/command"
	"hububba-utils/internal/modules/audit"

	"github.com/bwmarrin/discordgo"
)

type API interface {
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
}

type Module struct {
	api      API
	roleName string
	audit    *audit.Logger
}

func New(api API, roleName string, auditLogger *audit.Logger) *Module {
	return &Module{api: api, roleName: roleName, audit: auditLogger}
}

// HandleMemberJoin gives new members the configured role. A guild without
// that role is left alone.
func (m *Module) HandleMemberJoin(ctx context.Context, member *discordgo.Member) {
	if m.roleName == "" || member == nil || member.User == nil {
		return
	}
	roles, err := m.api.GuildRoles(member.GuildID)
	if err != nil {
		m.fail(ctx, member, err)
		return
	}
	role := findRole(roles, m.roleName)
	if role == nil {
		return
	}
	if err := m.api.GuildMemberRoleAdd(member.GuildID, member.User.ID, role.ID, discordgo.WithAuditLogReason("Auto-role on join")); err != nil {
		m.fail(ctx, member, err)
		return
	}
	m.audit.General(ctx, member.GuildID, member.User.ID, "autorole",
		fmt.Sprintf("👋 **Join**: %s joined, auto-assigned `%s`.", command.Mention(member.User.ID), role.Name))
}

func (m *Module) fail(ctx context.Context, member *discordgo.Member, err error) {
	m.audit.Bot(ctx, audit.LevelWarn, member.GuildID, "autorole_failed",
		fmt.Sprintf("⚠️ Auto-role failed for %s: %v", command.Mention(member.User.ID), err))
}

func findRole(roles []*discordgo.Role, name string) *discordgo.Role {
	for _, role := range roles {
		if role.Name == name {
			return role
		}
	}
	return nil
}
