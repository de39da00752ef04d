// internal/app/commands.go
package app

import "github.com/bwmarrin/discordgo"

var (
	adminOnly = int64(discordgo.PermissionManageChannels)
	noDM      = false
)

func choices(vals ...string) []*discordgo.ApplicationCommandOptionChoice {
	out := make([]*discordgo.ApplicationCommandOptionChoice, len(vals))
	for i, v := range vals {
		out[i] = &discordgo.ApplicationCommandOptionChoice{Name: v, Value: v}
	}
	return out
}

func tournamentOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "tournament",
		Description: "Tournament id (defaults to the one running in this channel)",
	}
}

var commands = []*discordgo.ApplicationCommand{
	{
		Name:         "simulator",
		Description:  "Create a single-elimination simulator in this channel",
		DMPermission: &noDM,
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "mode", Description: "Match format", Required: true, Choices: choices("1v1", "2v2", "3v3", "4v4")},
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "players", Description: "Total players (1v1: 2-32, 3v3: 6/12/24, ...)", Required: true},
			{Type: discordgo.ApplicationCommandOptionString, Name: "teams", Description: "How teams are formed", Required: true, Choices: choices("random", "manual")},
			{Type: discordgo.ApplicationCommandOptionString, Name: "start", Description: "Start when full or by the organizer", Required: true, Choices: choices("automatic", "manual")},
			{Type: discordgo.ApplicationCommandOptionString, Name: "prize", Description: "Optional prize"},
		},
	},
	{
		Name:         "substitute",
		Description:  "Swap a player for someone else",
		DMPermission: &noDM,
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionUser, Name: "out", Description: "Player leaving", Required: true},
			{Type: discordgo.ApplicationCommandOptionUser, Name: "in", Description: "Player coming in", Required: true},
			tournamentOption(),
		},
	},
	{
		Name:         "removeplayer",
		Description:  "Remove a player, optionally replacing them",
		DMPermission: &noDM,
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionUser, Name: "player", Description: "Player to remove", Required: true},
			{Type: discordgo.ApplicationCommandOptionUser, Name: "replacement", Description: "Who takes the slot"},
			tournamentOption(),
		},
	},
	{
		Name:         "rank",
		Description:  "Show the champions ranking",
		DMPermission: &noDM,
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "scope", Description: "Ranking scope", Choices: choices("guild", "global")},
			{Type: discordgo.ApplicationCommandOptionUser, Name: "player", Description: "Show a single player"},
		},
	},
	{
		Name:                     "assistant",
		Description:              "Turn the result assistant on or off in this server",
		DMPermission:             &noDM,
		DefaultMemberPermissions: &adminOnly,
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "state", Description: "on/off", Required: true, Choices: choices("on", "off")},
		},
	},
	{
		Name:                     "ban",
		Description:              "Ban a user from joining simulators",
		DMPermission:             &noDM,
		DefaultMemberPermissions: &adminOnly,
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to ban", Required: true},
			{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Reason"},
			{Type: discordgo.ApplicationCommandOptionString, Name: "scope", Description: "This server or every server", Choices: choices("guild", "global")},
		},
	},
	{
		Name:                     "unban",
		Description:              "Lift a simulator ban",
		DMPermission:             &noDM,
		DefaultMemberPermissions: &adminOnly,
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to unban", Required: true},
			{Type: discordgo.ApplicationCommandOptionString, Name: "scope", Description: "This server or every server", Choices: choices("guild", "global")},
		},
	},
}

// RegisterCommands creates (or updates) the commands, guild-level when guildID is set.
func RegisterCommands(s *discordgo.Session, appID, guildID string) error {
	_, err := s.ApplicationCommandBulkOverwrite(appID, guildID, commands)
	return err
}
