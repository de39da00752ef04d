package bracket

import "fmt"

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Side identifies one of the two slots of a match.
type Side int

const (
	SideNone Side = iota
	SideTeam1
	SideTeam2
)

func (s Side) Opponent() Side {
	switch s {
	case SideTeam1:
		return SideTeam2
	case SideTeam2:
		return SideTeam1
	}
	return SideNone
}

func (s Side) String() string {
	switch s {
	case SideTeam1:
		return "team1"
	case SideTeam2:
		return "team2"
	}
	return "none"
}

// Match is one pairing inside a round. A nil Team2 marks a bye.
type Match struct {
	ID        string   `json:"id"`
	Round     int      `json:"round"`
	Order     int      `json:"order"`
	Team1     []string `json:"team1"`
	Team2     []string `json:"team2"`
	Status    Status   `json:"status"`
	Winner    []string `json:"winner,omitempty"`
	ChannelID string   `json:"channelId,omitempty"`
	IsBye     bool     `json:"isBye"`
	Walkover  bool     `json:"walkover,omitempty"`
}

func (m *Match) Completed() bool { return m.Status == StatusCompleted }

// Team returns the member list on the given side.
func (m *Match) Team(s Side) []string {
	switch s {
	case SideTeam1:
		return m.Team1
	case SideTeam2:
		return m.Team2
	}
	return nil
}

// SideOf reports which side userID plays on, SideNone if absent.
func (m *Match) SideOf(userID string) Side {
	if contains(m.Team1, userID) {
		return SideTeam1
	}
	if contains(m.Team2, userID) {
		return SideTeam2
	}
	return SideNone
}

// Participants lists every player of the match, team1 first.
func (m *Match) Participants() []string {
	out := make([]string, 0, len(m.Team1)+len(m.Team2))
	out = append(out, m.Team1...)
	return append(out, m.Team2...)
}

type Bracket struct {
	Mode         string   `json:"mode"`
	CurrentRound int      `json:"currentRound"`
	TotalRounds  int      `json:"totalRounds"`
	Matches      []*Match `json:"matches"`
}

// Match looks a match up by id.
func (b *Bracket) Match(id string) (*Match, bool) {
	for _, m := range b.Matches {
		if m.ID == id {
			return m, true
		}
	}
	return nil, false
}

// Round returns the matches of round r in creation order.
func (b *Bracket) Round(r int) []*Match {
	var out []*Match
	for _, m := range b.Matches {
		if m.Round == r {
			out = append(out, m)
		}
	}
	return out
}

// Pending returns the not yet completed matches of the current round.
func (b *Bracket) Pending() []*Match {
	var out []*Match
	for _, m := range b.Round(b.CurrentRound) {
		if !m.Completed() {
			out = append(out, m)
		}
	}
	return out
}

// Champion returns the winner of the final, nil while undecided.
func (b *Bracket) Champion() []string {
	if b.CurrentRound != b.TotalRounds {
		return nil
	}
	final := b.Round(b.TotalRounds)
	if len(final) != 1 || !final[0].Completed() {
		return nil
	}
	return final[0].Winner
}

func matchID(round, order int) string {
	return fmt.Sprintf("round%d-match%d", round, order)
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

// SameTeam reports whether a and b hold the same members, order ignored.
func SameTeam(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for _, id := range a {
		if !contains(b, id) {
			return false
		}
	}
	return true
}
