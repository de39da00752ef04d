package bracket

import (
	"math/rand"
	"time"
)

// Input is what Generate needs to build round one. Teams is only set for
// manual team selection, one member list per team.
type Input struct {
	Mode           string
	PlayersPerTeam int
	Players        []string
	Teams          [][]string
}

// Generate shuffles the roster into a fresh bracket. Manual teams keep their
// composition and only the team order is shuffled; otherwise the flat player
// list is shuffled and cut into consecutive teams.
func Generate(in Input, rng *rand.Rand) (*Bracket, error) {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	var teams [][]string
	if len(in.Teams) > 0 {
		teams = make([][]string, 0, len(in.Teams))
		for _, t := range in.Teams {
			teams = append(teams, append([]string(nil), t...))
		}
		rng.Shuffle(len(teams), func(i, j int) { teams[i], teams[j] = teams[j], teams[i] })
	} else {
		per := in.PlayersPerTeam
		if per <= 0 || len(in.Players)%per != 0 {
			return nil, ErrBadTeamSize
		}
		players := append([]string(nil), in.Players...)
		rng.Shuffle(len(players), func(i, j int) { players[i], players[j] = players[j], players[i] })
		for i := 0; i < len(players); i += per {
			teams = append(teams, players[i:i+per:i+per])
		}
	}

	if len(teams) < 2 {
		return nil, ErrNotEnoughTeams
	}

	return &Bracket{
		Mode:         in.Mode,
		CurrentRound: 1,
		TotalRounds:  TotalRounds(len(teams)),
		Matches:      pairRound(1, teams),
	}, nil
}

// TotalRounds is ceil(log2(teams)).
func TotalRounds(teams int) int {
	rounds := 0
	for size := 1; size < teams; size <<= 1 {
		rounds++
	}
	return rounds
}

// pairRound pairs entrants consecutively. An odd trailing entrant gets a bye
// match that is already resolved in its favour.
func pairRound(round int, entrants [][]string) []*Match {
	out := make([]*Match, 0, (len(entrants)+1)/2)
	order := 1
	for i := 0; i+1 < len(entrants); i += 2 {
		out = append(out, &Match{
			ID:     matchID(round, order),
			Round:  round,
			Order:  order,
			Team1:  entrants[i],
			Team2:  entrants[i+1],
			Status: StatusPending,
		})
		order++
	}
	if len(entrants)%2 == 1 {
		last := entrants[len(entrants)-1]
		out = append(out, &Match{
			ID:     matchID(round, order),
			Round:  round,
			Order:  order,
			Team1:  last,
			Status: StatusCompleted,
			Winner: append([]string(nil), last...),
			IsBye:  true,
		})
	}
	return out
}
