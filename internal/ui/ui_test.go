package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jose-valero/simulator-bot/internal/bracket"
	"github.com/jose-valero/simulator-bot/internal/simulator"
)

func TestCustomID_RoundTrip(t *testing.T) {
	for _, c := range []CustomID{
		{Action: ActionJoin, TournamentID: "t1"},
		{Action: ActionTeam, TournamentID: "t1"},
		{Action: ActionWin, TournamentID: "t1", MatchID: "round1-match2", Side: bracket.SideTeam2},
		{Action: ActionWO, TournamentID: "t1", MatchID: "round2-match1", Side: bracket.SideTeam1},
	} {
		got, ok := ParseCustomID(c.String())
		require.True(t, ok, c.String())
		assert.Equal(t, c, got)
	}
}

func TestParseCustomID_Rejects(t *testing.T) {
	for _, s := range []string{
		"", "queue_join", "sim:join", "sim:join:", "other:join:t1", "sim:join:t1:extra",
		"sim:win:t1:m1", "sim:win:t1:m1:3", "sim:win:t1:m1:x", "sim:explode:t1",
	} {
		_, ok := ParseCustomID(s)
		assert.False(t, ok, s)
	}
}

func openManual() *simulator.Tournament {
	return &simulator.Tournament{
		ID: "t1", CreatorID: "boss", Mode: simulator.Mode2v2,
		MaxPlayers: 4, PlayersPerTeam: 2, TotalTeams: 2,
		TeamSelection: simulator.SelectionManual, StartMode: simulator.StartManual,
		Players: []string{"a", "b", "c"},
		Teams:   map[string][]string{"team1": {"a", "b"}, "team2": {"c"}},
		State:   simulator.StateOpen,
		Prize:   "Nitro",
	}
}

func TestPanelComponents_ManualShowsOnlyOpenTeams(t *testing.T) {
	comps := PanelComponents(openManual())
	require.Len(t, comps, 2)
	menu := comps[1].(discordgo.ActionsRow).Components[0].(discordgo.SelectMenu)
	require.Len(t, menu.Options, 1)
	assert.Equal(t, "team2", menu.Options[0].Value)
	assert.Equal(t, "sim:team:t1", menu.CustomID)
}

func TestPanelComponents_TerminalIsEmpty(t *testing.T) {
	tr := openManual()
	tr.State = simulator.StateCancelled
	assert.Empty(t, PanelComponents(tr))
}

func TestPanelEmbed(t *testing.T) {
	now := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)
	tr := openManual()
	tr.ExpiresAt = now.Add(7 * time.Minute)
	emb := PanelEmbed(tr, now)
	assert.Contains(t, emb.Title, "2v2")
	assert.Contains(t, emb.Description, "Nitro")

	var names []string
	for _, f := range emb.Fields {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "team1 (2/2)")
	assert.Contains(t, names, "team2 (1/2)")
	assert.Contains(t, emb.Fields[len(emb.Fields)-1].Value, "in 7 min")
}

func TestMatchLine(t *testing.T) {
	m := &bracket.Match{ID: "round1-match1", Team1: []string{"a"}, Team2: []string{"b"}, Status: bracket.StatusPending}
	assert.Equal(t, "⏳ <@a> vs <@b>", MatchLine(m))

	m.Status, m.Winner, m.Walkover = bracket.StatusCompleted, []string{"b"}, true
	assert.True(t, strings.HasSuffix(MatchLine(m), "<@b> (W.O.)"))

	bye := &bracket.Match{Team1: []string{"c"}, IsBye: true}
	assert.Contains(t, MatchLine(bye), "bye")
}

func TestMatchComponents_DisabledWhenDone(t *testing.T) {
	tr := openManual()
	m := &bracket.Match{ID: "round1-match1", Status: bracket.StatusCompleted}
	row := MatchComponents(tr, m)[0].(discordgo.ActionsRow)
	require.Len(t, row.Components, 4)
	for _, c := range row.Components {
		assert.True(t, c.(discordgo.Button).Disabled)
	}
	assert.Equal(t, "sim:wo:t1:round1-match1:2", row.Components[3].(discordgo.Button).CustomID)
}

func TestRankEmbed(t *testing.T) {
	assert.Contains(t, RankEmbed("global", nil).Description, "No champions")
	emb := RankEmbed("guild", []Standing{{UserID: "a", Wins: 2, Points: 2}})
	assert.Contains(t, emb.Description, "**1.** <@a> — 2 pts (2W/0L)")
}
