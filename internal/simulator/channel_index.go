package simulator

import "sync"

type channelRef struct {
	TournamentID string
	MatchID      string
}

// channelIndex maps open match channels to their tournament and match.
type channelIndex struct {
	mu   sync.RWMutex
	byID map[string]channelRef
}

func newChannelIndex() *channelIndex {
	return &channelIndex{byID: map[string]channelRef{}}
}

func (x *channelIndex) put(channelID, tournamentID, matchID string) {
	if channelID == "" {
		return
	}
	x.mu.Lock()
	x.byID[channelID] = channelRef{TournamentID: tournamentID, MatchID: matchID}
	x.mu.Unlock()
}

func (x *channelIndex) get(channelID string) (channelRef, bool) {
	x.mu.RLock()
	ref, ok := x.byID[channelID]
	x.mu.RUnlock()
	return ref, ok
}

func (x *channelIndex) remove(channelID string) {
	x.mu.Lock()
	delete(x.byID, channelID)
	x.mu.Unlock()
}

// dropTournament forgets every channel of a tournament.
func (x *channelIndex) dropTournament(tournamentID string) int {
	x.mu.Lock()
	defer x.mu.Unlock()
	n := 0
	for ch, ref := range x.byID {
		if ref.TournamentID == tournamentID {
			delete(x.byID, ch)
			n++
		}
	}
	return n
}

func (x *channelIndex) count() int {
	x.mu.RLock()
	n := len(x.byID)
	x.mu.RUnlock()
	return n
}
