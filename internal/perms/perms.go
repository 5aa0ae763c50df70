package perms

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

type Level string

const (
	LevelAny   Level = "any"
	LevelStaff Level = "staff"
	LevelAdmin Level = "admin"
)

// Denied is a user-facing refusal. Its message is safe to show as-is.
type Denied struct {
	Message string
}

func (d *Denied) Error() string {
	return d.Message
}

func Deny(format string, args ...any) error {
	return &Denied{Message: fmt.Sprintf(format, args...)}
}

// IsDenied reports whether err is a refusal, returning its message.
func IsDenied(err error) (string, bool) {
	var d *Denied
	if errors.As(err, &d) {
		return d.Message, true
	}
	return "", false
}

// Roles names the roles that grant access. Names, not IDs, are configured.
type Roles struct {
	Super string
	Admin string
	Staff string
}

type Gate struct {
	roles     Roles
	allowed   func(guildID string) bool
	guildName string
}

func NewGate(roles Roles, guildName string, allowed func(guildID string) bool) *Gate {
	if allowed == nil {
		allowed = func(string) bool { return true }
	}
	return &Gate{roles: roles, allowed: allowed, guildName: guildName}
}

// InAllowedGuild rejects interactions from DMs and foreign guilds.
func (g *Gate) InAllowedGuild(guildID string) error {
	if guildID == "" || !g.allowed(guildID) {
		name := g.guildName
		if name == "" {
			name = "the home server"
		}
		return Deny("This bot only functions inside **%s**.", name)
	}
	return nil
}

// Check decides whether member may run a command at level. The guild owner,
// holders of the super role and members with Administrator always pass.
func (g *Gate) Check(guild *discordgo.Guild, member *discordgo.Member, level Level) error {
	if member == nil || member.User == nil {
		return Deny("Members only.")
	}
	if guild != nil && guild.OwnerID == member.User.ID {
		return nil
	}

	names := roleNames(guild, member)
	if g.roles.Super != "" && names[g.roles.Super] {
		return nil
	}
	if member.Permissions&discordgo.PermissionAdministrator != 0 {
		return nil
	}

	switch level {
	case LevelAny:
		return nil
	case LevelAdmin:
		if g.has(names, g.roles.Admin) {
			return nil
		}
		return Deny("You need the **%s** role for this command.", g.roles.Admin)
	case LevelStaff:
		if g.has(names, g.roles.Staff) || g.has(names, g.roles.Admin) {
			return nil
		}
		return Deny("You need the **%s** (or higher) for this command.", g.roles.Staff)
	default:
		return Deny("Permission denied.")
	}
}

func (g *Gate) has(names map[string]bool, role string) bool {
	return role != "" && names[role]
}

// RoleID resolves a role name to its ID in guild.
func RoleID(guild *discordgo.Guild, name string) (string, bool) {
	if guild == nil || name == "" {
		return "", false
	}
	for _, role := range guild.Roles {
		if role.Name == name {
			return role.ID, true
		}
	}
	return "", false
}

func roleNames(guild *discordgo.Guild, member *discordgo.Member) map[string]bool {
	names := make(map[string]bool, len(member.Roles))
	if guild == nil {
		return names
	}
	byID := make(map[string]string, len(guild.Roles))
	for _, role := range guild.Roles {
		byID[role.ID] = role.Name
	}
	for _, id := range member.Roles {
		if name, ok := byID[id]; ok {
			names[name] = true
		}
	}
	return names
}
