package simulator

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jose-valero/simulator-bot/internal/bracket"
)

// Mode is the match format, "NvN".
type Mode string

const (
	Mode1v1 Mode = "1v1"
	Mode2v2 Mode = "2v2"
	Mode3v3 Mode = "3v3"
	Mode4v4 Mode = "4v4"
)

// validQuantities lists the player counts accepted per mode.
var validQuantities = map[Mode][]int{
	Mode1v1: {2, 4, 8, 16, 32},
	Mode2v2: {4, 8, 16, 32},
	Mode3v3: {6, 12, 24},
	Mode4v4: {8, 16, 32},
}

// ParseMode normalizes user input such as " 2V2 ".
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := validQuantities[m]; !ok {
		return "", ErrInvalidMode
	}
	return m, nil
}

// PlayersPerTeam is the leading digit of the mode.
func (m Mode) PlayersPerTeam() int {
	if len(m) == 0 {
		return 0
	}
	n, err := strconv.Atoi(string(m[0]))
	if err != nil {
		return 0
	}
	return n
}

// Quantities returns the accepted player counts for m.
func (m Mode) Quantities() []int {
	return slices.Clone(validQuantities[m])
}

type TeamSelection string

const (
	SelectionRandom TeamSelection = "random"
	SelectionManual TeamSelection = "manual"
)

type StartMode string

const (
	StartAutomatic StartMode = "automatic"
	StartManual    StartMode = "manual"
)

type State string

const (
	StateOpen      State = "open"
	StateRunning   State = "running"
	StateFinished  State = "finished"
	StateCancelled State = "cancelled"
)

// Terminal states never transition again.
func (s State) Terminal() bool { return s == StateFinished || s == StateCancelled }

// Tournament is the persisted record. The store keeps it as one JSON document.
type Tournament struct {
	ID             string              `json:"id"`
	GuildID        string              `json:"guildId"`
	ChannelID      string              `json:"channelId"`
	CreatorID      string              `json:"creatorId"`
	PanelMessageID string              `json:"panelMessageId,omitempty"`
	CategoryID     string              `json:"categoryId,omitempty"`
	Mode           Mode                `json:"mode"`
	MaxPlayers     int                 `json:"maxPlayers"`
	PlayersPerTeam int                 `json:"playersPerTeam"`
	TotalTeams     int                 `json:"totalTeams"`
	TeamSelection  TeamSelection       `json:"teamSelection"`
	StartMode      StartMode           `json:"startMode"`
	Players        []string            `json:"players"`
	Teams          map[string][]string `json:"teams,omitempty"`
	Bracket        *bracket.Bracket    `json:"bracket,omitempty"`
	State          State               `json:"state"`
	Prize          string              `json:"prize,omitempty"`
	Version        int64               `json:"version"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
	ExpiresAt      time.Time           `json:"expiresAt,omitempty"`
}

func teamKey(n int) string { return fmt.Sprintf("team%d", n) }

// TeamKeys returns team1..teamN in numeric order.
func (t *Tournament) TeamKeys() []string {
	keys := make([]string, 0, t.TotalTeams)
	for i := 1; i <= t.TotalTeams; i++ {
		keys = append(keys, teamKey(i))
	}
	return keys
}

func (t *Tournament) Full() bool { return len(t.Players) >= t.MaxPlayers }

func (t *Tournament) HasPlayer(userID string) bool { return slices.Contains(t.Players, userID) }

// TeamOf returns the team key holding userID, or "".
func (t *Tournament) TeamOf(userID string) string {
	for k, members := range t.Teams {
		if slices.Contains(members, userID) {
			return k
		}
	}
	return ""
}

// CanManage reports whether actor may start, cancel, decide or edit the roster.
func (t *Tournament) CanManage(a Actor) bool {
	return a.Privileged || (a.UserID != "" && a.UserID == t.CreatorID)
}

func (t *Tournament) teamsComplete() bool {
	for _, k := range t.TeamKeys() {
		if len(t.Teams[k]) != t.PlayersPerTeam {
			return false
		}
	}
	return true
}

// firstOpenTeam returns the first team with a free slot, or "".
func (t *Tournament) firstOpenTeam() string {
	for _, k := range t.TeamKeys() {
		if len(t.Teams[k]) < t.PlayersPerTeam {
			return k
		}
	}
	return ""
}

// syncPlayers rebuilds Players from Teams in team order, keeping join order inside a team.
func (t *Tournament) syncPlayers() {
	out := make([]string, 0, t.MaxPlayers)
	for _, k := range t.TeamKeys() {
		out = append(out, t.Teams[k]...)
	}
	t.Players = out
}

func (t *Tournament) bracketInput() bracket.Input {
	in := bracket.Input{
		Mode:           string(t.Mode),
		PlayersPerTeam: t.PlayersPerTeam,
		Players:        slices.Clone(t.Players),
	}
	if t.TeamSelection == SelectionManual {
		for _, k := range t.TeamKeys() {
			in.Teams = append(in.Teams, slices.Clone(t.Teams[k]))
		}
	}
	return in
}

// MatchChannels returns the channel ids of matches in round r that have one.
func (t *Tournament) MatchChannels(r int) []string {
	if t.Bracket == nil {
		return nil
	}
	var out []string
	for _, m := range t.Bracket.Round(r) {
		if m.ChannelID != "" {
			out = append(out, m.ChannelID)
		}
	}
	return out
}

// Clone deep-copies t.
func (t *Tournament) Clone() *Tournament {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Players = slices.Clone(t.Players)
	if t.Teams != nil {
		cp.Teams = make(map[string][]string, len(t.Teams))
		for k, v := range t.Teams {
			cp.Teams[k] = slices.Clone(v)
		}
	}
	if t.Bracket != nil {
		b := *t.Bracket
		b.Matches = make([]*bracket.Match, len(t.Bracket.Matches))
		for i, m := range t.Bracket.Matches {
			mc := *m
			mc.Team1 = slices.Clone(m.Team1)
			mc.Team2 = slices.Clone(m.Team2)
			mc.Winner = slices.Clone(m.Winner)
			b.Matches[i] = &mc
		}
		cp.Bracket = &b
	}
	return &cp
}

// Actor is whoever asks for an operation.
type Actor struct {
	UserID     string
	Privileged bool
}

// SystemActor is used for timer-driven and protocol-driven decisions.
var SystemActor = Actor{Privileged: true}

// CreateParams carries the /simulator command options.
type CreateParams struct {
	GuildID       string
	ChannelID     string
	CreatorID     string
	Mode          Mode
	MaxPlayers    int
	TeamSelection TeamSelection
	StartMode     StartMode
	Prize         string
}

// RankDelta is added to a player's standing. GuildID "" is the global ranking.
type RankDelta struct {
	GuildID string
	UserID  string
	Wins    int
	Losses  int
	Points  int
}

type CleanupKind string

const (
	CleanupChannel CleanupKind = "channel"
	CleanupGroup   CleanupKind = "group"
	CleanupRecord  CleanupKind = "record"
)

// CleanupJob is a deferred, idempotent teardown step.
type CleanupJob struct {
	ID           string
	TournamentID string
	Kind         CleanupKind
	Target       string
	RunAt        time.Time
	Attempts     int
	LastError    string
}

// Commit is one atomic store write: the new record (checked against its
// Version) plus the cleanup jobs and rank deltas it implies.
type Commit struct {
	Tournament *Tournament
	Cleanup    []CleanupJob
	Ranks      []RankDelta
}

// MatchRef is what the confirmation protocol needs to know about a match channel.
type MatchRef struct {
	TournamentID string
	GuildID      string
	ChannelID    string
	CreatorID    string
	MatchID      string
	Round        int
	Team1        []string
	Team2        []string
	Completed    bool
}

// SideOf returns which side userID plays for.
func (r MatchRef) SideOf(userID string) bracket.Side {
	switch {
	case slices.Contains(r.Team1, userID):
		return bracket.SideTeam1
	case slices.Contains(r.Team2, userID):
		return bracket.SideTeam2
	}
	return bracket.SideNone
}
