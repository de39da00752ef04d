// Privilege check based on configured admin roles/users or the Administrator permission.

package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/simulator-bot/internal/simulator"
)

type Policy struct {
	roles map[string]struct{}
	users map[string]struct{}
}

func NewPolicy(roleIDs, userIDs []string) *Policy {
	p := &Policy{roles: map[string]struct{}{}, users: map[string]struct{}{}}
	for _, id := range roleIDs {
		p.roles[id] = struct{}{}
	}
	for _, id := range userIDs {
		p.users[id] = struct{}{}
	}
	return p
}

// IsPrivileged returns true if the member has Administrator, an admin role,
// or is listed as an admin user.
func (p *Policy) IsPrivileged(i *discordgo.InteractionCreate) bool {
	if u := UserOf(i); u != nil {
		if _, ok := p.users[u.ID]; ok {
			return true
		}
	}
	if i.Member == nil {
		return false
	}
	if i.Member.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}
	for _, r := range i.Member.Roles {
		if _, ok := p.roles[r]; ok {
			return true
		}
	}
	return false
}

// Actor is the simulator view of whoever triggered the interaction.
func (p *Policy) Actor(i *discordgo.InteractionCreate) simulator.Actor {
	a := simulator.Actor{Privileged: p.IsPrivileged(i)}
	if u := UserOf(i); u != nil {
		a.UserID = u.ID
	}
	return a
}

// RequirePrivileged replies ephemeral and returns false if not privileged.
func (p *Policy) RequirePrivileged(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	if p.IsPrivileged(i) {
		return true
	}
	_ = SendEphemeral(s, i, "⛔ You don't have permission for this action.")
	return false
}
