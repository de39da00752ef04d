package bracket

import "fmt"

// Advance is the outcome of resolving one match.
type Advance struct {
	NextMatch *Match
	NewRound  bool
	Final     bool
	Champion  []string
}

// Advance records winner for matchID and, once the round is complete, either
// crowns the champion or appends the next round. The bracket is mutated in
// place; callers persist it afterwards.
func (b *Bracket) Advance(id string, winner []string) (Advance, error) {
	m, ok := b.Match(id)
	if !ok {
		return Advance{}, ErrMatchNotFound
	}
	if m.Completed() {
		return Advance{}, ErrMatchCompleted
	}

	switch {
	case SameTeam(winner, m.Team1):
		m.Winner = append([]string(nil), m.Team1...)
	case m.Team2 != nil && SameTeam(winner, m.Team2):
		m.Winner = append([]string(nil), m.Team2...)
	default:
		return Advance{}, ErrWinnerNotInMatch
	}
	m.Status = StatusCompleted

	round := b.Round(m.Round)
	for _, other := range round {
		if !other.Completed() {
			return Advance{NextMatch: other}, nil
		}
	}

	if m.Round >= b.TotalRounds {
		return Advance{Final: true, Champion: m.Winner}, nil
	}

	next := pairRound(m.Round+1, nextEntrants(round))
	b.Matches = append(b.Matches, next...)
	b.CurrentRound = m.Round + 1
	return Advance{NewRound: true, NextMatch: next[0]}, nil
}

// nextEntrants lists the winners of a finished round in match order, with
// teams that just had a bye moved to the front so they play next.
func nextEntrants(round []*Match) [][]string {
	var byes, played [][]string
	for _, m := range round {
		w := append([]string(nil), m.Winner...)
		if m.IsBye {
			byes = append(byes, w)
		} else {
			played = append(played, w)
		}
	}
	return append(byes, played...)
}

// RoundName labels a round relative to the final.
func RoundName(round, total int) string {
	if round >= 1 && round <= total {
		switch total - round {
		case 0:
			return "Final"
		case 1:
			return "Semifinal"
		case 2:
			return "Quarterfinal"
		case 3:
			return "Round of 16"
		}
	}
	return fmt.Sprintf("Round %d", round)
}
