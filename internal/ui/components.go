// Discord components (buttons/select-menus) for tournament panels and match channels.

package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/simulator-bot/internal/bracket"
	"github.com/jose-valero/simulator-bot/internal/simulator"
)

const (
	ActionJoin   = "join"
	ActionLeave  = "leave"
	ActionStart  = "start"
	ActionCancel = "cancel"
	ActionTeam   = "team"
	ActionWin    = "win"
	ActionWO     = "wo"

	prefix = "sim"
)

// CustomID is the decoded form of "sim:<action>:<tournament>[:<match>:<side>]".
type CustomID struct {
	Action       string
	TournamentID string
	MatchID      string
	Side         bracket.Side
}

func (c CustomID) String() string {
	parts := []string{prefix, c.Action, c.TournamentID}
	if c.MatchID != "" {
		parts = append(parts, c.MatchID, strconv.Itoa(int(c.Side)))
	}
	return strings.Join(parts, ":")
}

// ParseCustomID reports false for ids that do not belong to this bot.
func ParseCustomID(s string) (CustomID, bool) {
	parts := strings.Split(s, ":")
	if len(parts) < 3 || parts[0] != prefix || parts[2] == "" {
		return CustomID{}, false
	}
	c := CustomID{Action: parts[1], TournamentID: parts[2]}
	switch c.Action {
	case ActionJoin, ActionLeave, ActionStart, ActionCancel, ActionTeam:
		return c, len(parts) == 3
	case ActionWin, ActionWO:
		if len(parts) != 5 {
			return CustomID{}, false
		}
		n, err := strconv.Atoi(parts[4])
		if err != nil {
			return CustomID{}, false
		}
		side := bracket.Side(n)
		if side != bracket.SideTeam1 && side != bracket.SideTeam2 {
			return CustomID{}, false
		}
		c.MatchID, c.Side = parts[3], side
		return c, true
	}
	return CustomID{}, false
}

// PanelComponents returns rows for:
//   - Row 1: Join / Leave / Start / Cancel
//   - Row 2: team picker, manual selection only
//
// Terminal tournaments get no components.
func PanelComponents(t *simulator.Tournament) []discordgo.MessageComponent {
	if t.State.Terminal() {
		return []discordgo.MessageComponent{}
	}
	open := t.State == simulator.StateOpen
	id := func(a string) string { return CustomID{Action: a, TournamentID: t.ID}.String() }

	rows := []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Join",
					Style:    discordgo.PrimaryButton,
					CustomID: id(ActionJoin),
					Disabled: !open || t.Full(),
					Emoji:    &discordgo.ComponentEmoji{Name: "🎮"},
				},
				discordgo.Button{
					Label:    "Leave",
					Style:    discordgo.SecondaryButton,
					CustomID: id(ActionLeave),
					Disabled: !open,
					Emoji:    &discordgo.ComponentEmoji{Name: "👋"},
				},
				discordgo.Button{
					Label:    "Start",
					Style:    discordgo.SuccessButton,
					CustomID: id(ActionStart),
					Disabled: !open,
				},
				discordgo.Button{
					Label:    "Cancel",
					Style:    discordgo.DangerButton,
					CustomID: id(ActionCancel),
				},
			},
		},
	}

	if open && t.TeamSelection == simulator.SelectionManual {
		if opts := teamOptions(t); len(opts) > 0 {
			rows = append(rows, discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.SelectMenu{
						CustomID:    id(ActionTeam),
						Placeholder: "Pick a team…",
						Options:     opts,
					},
				},
			})
		}
	}
	return rows
}

// teamOptions lists teams with a free slot; Discord caps a select at 25 options.
func teamOptions(t *simulator.Tournament) []discordgo.SelectMenuOption {
	opts := make([]discordgo.SelectMenuOption, 0, 25)
	for _, key := range t.TeamKeys() {
		n := len(t.Teams[key])
		if n >= t.PlayersPerTeam {
			continue
		}
		opts = append(opts, discordgo.SelectMenuOption{
			Label:       key,
			Value:       key,
			Description: fmt.Sprintf("%d/%d players", n, t.PlayersPerTeam),
		})
		if len(opts) == 25 {
			break
		}
	}
	return opts
}

// MatchComponents are the creator's decision buttons inside a match channel.
func MatchComponents(t *simulator.Tournament, m *bracket.Match) []discordgo.MessageComponent {
	id := func(a string, s bracket.Side) string {
		return CustomID{Action: a, TournamentID: t.ID, MatchID: m.ID, Side: s}.String()
	}
	done := m.Completed()
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "Team 1 wins", Style: discordgo.SuccessButton, CustomID: id(ActionWin, bracket.SideTeam1), Disabled: done},
				discordgo.Button{Label: "Team 2 wins", Style: discordgo.SuccessButton, CustomID: id(ActionWin, bracket.SideTeam2), Disabled: done},
				discordgo.Button{Label: "W.O. Team 1", Style: discordgo.SecondaryButton, CustomID: id(ActionWO, bracket.SideTeam1), Disabled: done},
				discordgo.Button{Label: "W.O. Team 2", Style: discordgo.SecondaryButton, CustomID: id(ActionWO, bracket.SideTeam2), Disabled: done},
			},
		},
	}
}
