package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/simulator-bot/internal/bracket"
	"github.com/jose-valero/simulator-bot/internal/simulator"
)

// PanelEmbed renders the public tournament panel.
func PanelEmbed(t *simulator.Tournament, now time.Time) *discordgo.MessageEmbed {
	emb := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("🏆 Simulator %s — %s", t.Mode, stateTitle(string(t.State))),
		Description: "Organized by " + mention(t.CreatorID),
		Color:       stateColor(string(t.State)),
		Footer:      &discordgo.MessageEmbedFooter{Text: "ID " + t.ID},
	}
	if p := strings.TrimSpace(t.Prize); p != "" {
		emb.Description += "\n🎁 **Prize:** " + p
	}

	emb.Fields = append(emb.Fields,
		&discordgo.MessageEmbedField{Name: "Players", Value: fmt.Sprintf("%d/%d", len(t.Players), t.MaxPlayers), Inline: true},
		&discordgo.MessageEmbedField{Name: "Teams", Value: string(t.TeamSelection), Inline: true},
		&discordgo.MessageEmbedField{Name: "Start", Value: string(t.StartMode), Inline: true},
	)

	switch {
	case t.State == simulator.StateOpen && t.TeamSelection == simulator.SelectionManual:
		for _, key := range t.TeamKeys() {
			emb.Fields = append(emb.Fields, &discordgo.MessageEmbedField{
				Name:   fmt.Sprintf("%s (%d/%d)", key, len(t.Teams[key]), t.PlayersPerTeam),
				Value:  clip(bulletList(t.Teams[key], t.PlayersPerTeam)),
				Inline: true,
			})
		}
	case t.State == simulator.StateOpen:
		emb.Fields = append(emb.Fields, &discordgo.MessageEmbedField{
			Name:  "Roster",
			Value: clip(bulletList(t.Players, 32)),
		})
	}

	if t.State == simulator.StateOpen {
		emb.Fields = append(emb.Fields, &discordgo.MessageEmbedField{
			Name:  "Closes",
			Value: humanUntil(now, t.ExpiresAt) + " without activity",
		})
	}

	if t.Bracket != nil {
		emb.Fields = append(emb.Fields, bracketFields(t.Bracket)...)
	}
	return emb
}

func bracketFields(b *bracket.Bracket) []*discordgo.MessageEmbedField {
	var out []*discordgo.MessageEmbedField
	if champ := b.Champion(); champ != nil {
		out = append(out, &discordgo.MessageEmbedField{Name: "👑 Champion", Value: mentionList(champ)})
	}
	var lines []string
	for _, m := range b.Round(b.CurrentRound) {
		lines = append(lines, MatchLine(m))
	}
	out = append(out, &discordgo.MessageEmbedField{
		Name:  bracket.RoundName(b.CurrentRound, b.TotalRounds),
		Value: clip(strings.Join(lines, "\n")),
	})
	return out
}

// MatchLine is a one-line summary of a match.
func MatchLine(m *bracket.Match) string {
	if m.IsBye {
		return fmt.Sprintf("▫️ %s advance (bye)", mentionList(m.Team1))
	}
	line := fmt.Sprintf("%s vs %s", mentionList(m.Team1), mentionList(m.Team2))
	switch {
	case !m.Completed():
		return "⏳ " + line
	case m.Walkover:
		return "✅ " + line + " → " + mentionList(m.Winner) + " (W.O.)"
	}
	return "✅ " + line + " → " + mentionList(m.Winner)
}

// MatchEmbed is posted when a match channel opens.
func MatchEmbed(t *simulator.Tournament, m *bracket.Match) *discordgo.MessageEmbed {
	body := fmt.Sprintf("**Team 1**\n%s\n\n**Team 2**\n%s",
		bulletList(m.Team1, 0), bulletList(m.Team2, 0))
	return &discordgo.MessageEmbed{
		Title: fmt.Sprintf("⚔️ %s — %s", bracket.RoundName(m.Round, t.Bracket.TotalRounds), m.ID),
		Description: quoteBlock(body) +
			"\n\nPlay your match, then tell the result here. The other side confirms it, or " +
			mention(t.CreatorID) + " decides.",
		Color:  stateColor(string(t.State)),
		Footer: &discordgo.MessageEmbedFooter{Text: "Simulator " + string(t.Mode) + " • " + t.ID},
	}
}

// ChampionEmbed is an ephemeral or public summary of a finished tournament.
func ChampionEmbed(t *simulator.Tournament) *discordgo.MessageEmbed {
	var champ []string
	if t.Bracket != nil {
		champ = t.Bracket.Champion()
	}
	return &discordgo.MessageEmbed{
		Title:       "👑 Simulator " + string(t.Mode) + " champion",
		Description: mentionList(champ),
		Color:       stateColor(string(simulator.StateFinished)),
	}
}

// Standing is one ranking row as shown by /rank.
type Standing struct {
	UserID string
	Wins   int
	Losses int
	Points int
}

func RankEmbed(scope string, rows []Standing) *discordgo.MessageEmbed {
	emb := &discordgo.MessageEmbed{Title: "📊 Ranking — " + safe(scope), Color: 0x5865F2}
	if len(rows) == 0 {
		emb.Description = "_No champions yet_"
		return emb
	}
	var b strings.Builder
	for i, r := range rows {
		fmt.Fprintf(&b, "**%d.** %s — %d pts (%dW/%dL)\n", i+1, mention(r.UserID), r.Points, r.Wins, r.Losses)
	}
	emb.Description = strings.TrimRight(b.String(), "\n")
	return emb
}
