package simulator

import (
	"context"
	"fmt"
	"log"
	"slices"

	"github.com/jose-valero/simulator-bot/internal/bracket"
	"github.com/jose-valero/simulator-bot/internal/domain/events"
)

func removeID(xs []string, id string) []string {
	return slices.DeleteFunc(xs, func(x string) bool { return x == id })
}

func replaceID(xs []string, from, to string) bool {
	i := slices.Index(xs, from)
	if i < 0 {
		return false
	}
	xs[i] = to
	return true
}

func (m *Manager) checkBan(ctx context.Context, guildID, userID string) error {
	banned, err := m.store.IsBanned(ctx, guildID, userID)
	if err != nil {
		return err
	}
	if banned {
		return ErrBanned
	}
	return nil
}

// rosterChanged runs after every successful roster mutation. Caller holds the lock.
func (m *Manager) rosterChanged(ctx context.Context, t *Tournament, fx *after) {
	if t.State == StateOpen {
		m.armInactivity(t)
	}
	effect("edit panel "+t.ID, m.notify.EditPanel(ctx, t))
	ev := events.RosterChanged{TournamentID: t.ID, GuildID: t.GuildID}
	fx.add(func() { events.Publish(m.bus, ev) })
}

// maybeAutoStart starts a full automatic tournament in the same critical section.
func (m *Manager) maybeAutoStart(ctx context.Context, t *Tournament, fx *after) *Tournament {
	if t.StartMode != StartAutomatic || t.State != StateOpen {
		return t
	}
	if t.TeamSelection == SelectionManual && !t.teamsComplete() {
		return t
	}
	if !t.Full() {
		return t
	}
	started, err := m.startLocked(ctx, t.ID, SystemActor, fx)
	if err != nil {
		log.Printf("[sim] auto start %s: %v", t.ID, err)
		return t
	}
	return started
}

// Join adds userID to an open tournament. With manual team selection the
// player lands in the first team that has room.
func (m *Manager) Join(ctx context.Context, id, userID string) (*Tournament, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	var fx after
	defer fx.run()
	defer m.lock(id)()

	t, err := m.update(ctx, id, func(t *Tournament) (Commit, error) {
		if t.State != StateOpen {
			return Commit{}, ErrNotOpen
		}
		if err := m.checkBan(ctx, t.GuildID, userID); err != nil {
			return Commit{}, err
		}
		if t.HasPlayer(userID) {
			return Commit{}, ErrAlreadyJoined
		}
		if t.Full() {
			return Commit{}, ErrTournamentFull
		}
		if t.TeamSelection == SelectionManual {
			k := t.firstOpenTeam()
			if k == "" {
				return Commit{}, ErrTournamentFull
			}
			t.Teams[k] = append(t.Teams[k], userID)
			t.syncPlayers()
		} else {
			t.Players = append(t.Players, userID)
		}
		t.ExpiresAt = m.now().Add(m.opts.InactivityTimeout)
		return Commit{}, nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[sim] %s join %s (%d/%d)", t.ID, userID, len(t.Players), t.MaxPlayers)
	m.rosterChanged(ctx, t, &fx)
	return m.maybeAutoStart(ctx, t, &fx), nil
}

// Leave removes userID from an open tournament.
func (m *Manager) Leave(ctx context.Context, id, userID string) (*Tournament, error) {
	var fx after
	defer fx.run()
	defer m.lock(id)()

	t, err := m.update(ctx, id, func(t *Tournament) (Commit, error) {
		if t.State != StateOpen {
			return Commit{}, ErrNotOpen
		}
		if !t.HasPlayer(userID) {
			return Commit{}, ErrNotInRoster
		}
		t.Players = removeID(t.Players, userID)
		if k := t.TeamOf(userID); k != "" {
			t.Teams[k] = removeID(t.Teams[k], userID)
		}
		t.ExpiresAt = m.now().Add(m.opts.InactivityTimeout)
		return Commit{}, nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[sim] %s leave %s (%d/%d)", t.ID, userID, len(t.Players), t.MaxPlayers)
	m.rosterChanged(ctx, t, &fx)
	return t, nil
}

// AssignTeam moves or places userID into teamKey (manual selection only).
func (m *Manager) AssignTeam(ctx context.Context, id, userID, teamKey string) (*Tournament, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	var fx after
	defer fx.run()
	defer m.lock(id)()

	t, err := m.update(ctx, id, func(t *Tournament) (Commit, error) {
		if t.State != StateOpen {
			return Commit{}, ErrNotOpen
		}
		if t.TeamSelection != SelectionManual {
			return Commit{}, ErrNotManual
		}
		if _, ok := t.Teams[teamKey]; !ok {
			return Commit{}, ErrUnknownTeam
		}
		if err := m.checkBan(ctx, t.GuildID, userID); err != nil {
			return Commit{}, err
		}
		cur := t.TeamOf(userID)
		if cur == teamKey {
			return Commit{}, ErrNoOpChange
		}
		if len(t.Teams[teamKey]) >= t.PlayersPerTeam {
			return Commit{}, ErrTeamFull
		}
		if cur == "" && t.Full() {
			return Commit{}, ErrTournamentFull
		}
		if cur != "" {
			t.Teams[cur] = removeID(t.Teams[cur], userID)
		}
		t.Teams[teamKey] = append(t.Teams[teamKey], userID)
		t.syncPlayers()
		t.ExpiresAt = m.now().Add(m.opts.InactivityTimeout)
		return Commit{}, nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[sim] %s assign %s -> %s", t.ID, userID, teamKey)
	m.rosterChanged(ctx, t, &fx)
	return m.maybeAutoStart(ctx, t, &fx), nil
}

type channelChange struct {
	channelID string
	matchID   string
}

// Substitute swaps outgoing for incoming everywhere: roster, team and every
// match that is still pending. Completed matches keep their history.
func (m *Manager) Substitute(ctx context.Context, id, outgoing, incoming string, actor Actor) (*Tournament, error) {
	if outgoing == "" || incoming == "" || outgoing == incoming {
		return nil, ErrInvalidInput
	}
	var fx after
	defer fx.run()
	defer m.lock(id)()

	var touched []channelChange
	t, err := m.update(ctx, id, func(t *Tournament) (Commit, error) {
		touched = nil
		if !t.CanManage(actor) {
			return Commit{}, ErrNotCreator
		}
		if t.State.Terminal() {
			return Commit{}, ErrAlreadyClosed
		}
		if !t.HasPlayer(outgoing) {
			return Commit{}, ErrNotInRoster
		}
		if t.HasPlayer(incoming) {
			return Commit{}, ErrAlreadyJoined
		}
		if err := m.checkBan(ctx, t.GuildID, incoming); err != nil {
			return Commit{}, err
		}
		replaceID(t.Players, outgoing, incoming)
		if k := t.TeamOf(outgoing); k != "" {
			replaceID(t.Teams[k], outgoing, incoming)
		}
		if t.Bracket != nil {
			for _, mt := range t.Bracket.Matches {
				if mt.Completed() {
					continue
				}
				if replaceID(mt.Team1, outgoing, incoming) || replaceID(mt.Team2, outgoing, incoming) {
					touched = append(touched, channelChange{channelID: mt.ChannelID, matchID: mt.ID})
				}
			}
		}
		if t.State == StateOpen {
			t.ExpiresAt = m.now().Add(m.opts.InactivityTimeout)
		}
		return Commit{}, nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[sim] %s substitute %s -> %s (%d matches)", t.ID, outgoing, incoming, len(touched))
	for _, c := range touched {
		if c.channelID == "" {
			continue
		}
		effect("grant "+c.matchID, m.notify.GrantAccess(ctx, c.channelID, incoming))
		effect("revoke "+c.matchID, m.notify.RevokeAccess(ctx, c.channelID, outgoing))
		effect("announce substitution "+c.matchID, m.notify.PostMessage(ctx, c.channelID,
			fmt.Sprintf("🔁 <@%s> replaces <@%s>.", incoming, outgoing)))
	}
	m.rosterChanged(ctx, t, &fx)
	return t, nil
}

// RemovePlayer drops userID from the tournament. With a replacement it is a
// substitution. Without one, a running tournament only allows it while the
// player's pending match keeps at least one member on that side.
func (m *Manager) RemovePlayer(ctx context.Context, id, userID, replacement string, actor Actor) (*Tournament, error) {
	if replacement != "" {
		return m.Substitute(ctx, id, userID, replacement, actor)
	}
	if userID == "" {
		return nil, ErrInvalidInput
	}
	var fx after
	defer fx.run()
	defer m.lock(id)()

	var touched []channelChange
	t, err := m.update(ctx, id, func(t *Tournament) (Commit, error) {
		touched = nil
		if !t.CanManage(actor) {
			return Commit{}, ErrNotCreator
		}
		if t.State.Terminal() {
			return Commit{}, ErrAlreadyClosed
		}
		if !t.HasPlayer(userID) {
			return Commit{}, ErrNotInRoster
		}
		if t.Bracket != nil {
			for _, mt := range t.Bracket.Matches {
				if mt.Completed() {
					continue
				}
				side := mt.SideOf(userID)
				if side == bracket.SideNone {
					continue
				}
				if len(mt.Team(side)) <= 1 {
					return Commit{}, ErrLastTeamMember
				}
				mt.Team1 = removeID(mt.Team1, userID)
				mt.Team2 = removeID(mt.Team2, userID)
				touched = append(touched, channelChange{channelID: mt.ChannelID, matchID: mt.ID})
			}
		}
		t.Players = removeID(t.Players, userID)
		if k := t.TeamOf(userID); k != "" {
			t.Teams[k] = removeID(t.Teams[k], userID)
		}
		if t.State == StateOpen {
			t.ExpiresAt = m.now().Add(m.opts.InactivityTimeout)
		}
		return Commit{}, nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[sim] %s removed %s", t.ID, userID)
	for _, c := range touched {
		if c.channelID != "" {
			effect("revoke "+c.matchID, m.notify.RevokeAccess(ctx, c.channelID, userID))
		}
	}
	m.rosterChanged(ctx, t, &fx)
	return t, nil
}
