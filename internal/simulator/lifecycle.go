package simulator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jose-valero/simulator-bot/internal/bracket"
	"github.com/jose-valero/simulator-bot/internal/domain/events"
)

// Outcome describes what a committed match result did to the bracket.
type Outcome struct {
	Tournament *Tournament
	Match      *bracket.Match
	Advance    bracket.Advance
}

func validateCreate(p CreateParams) error {
	if p.GuildID == "" || p.ChannelID == "" || p.CreatorID == "" {
		return ErrInvalidInput
	}
	qs, ok := validQuantities[p.Mode]
	if !ok {
		return ErrInvalidMode
	}
	if !slices.Contains(qs, p.MaxPlayers) {
		return fmt.Errorf("%w: %s accepts %s", ErrInvalidQuantity, p.Mode, joinInts(qs))
	}
	switch p.TeamSelection {
	case SelectionRandom, SelectionManual:
	default:
		return ErrInvalidOption
	}
	switch p.StartMode {
	case StartAutomatic, StartManual:
	default:
		return ErrInvalidOption
	}
	return nil
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprint(x)
	}
	return strings.Join(parts, ", ")
}

// Create validates the options, persists an open tournament, posts its panel
// and arms the inactivity timeout.
func (m *Manager) Create(ctx context.Context, p CreateParams) (*Tournament, error) {
	if err := validateCreate(p); err != nil {
		return nil, err
	}
	now := m.now()
	per := p.Mode.PlayersPerTeam()
	t := &Tournament{
		ID:             uuid.NewString(),
		GuildID:        p.GuildID,
		ChannelID:      p.ChannelID,
		CreatorID:      p.CreatorID,
		Mode:           p.Mode,
		MaxPlayers:     p.MaxPlayers,
		PlayersPerTeam: per,
		TotalTeams:     p.MaxPlayers / per,
		TeamSelection:  p.TeamSelection,
		StartMode:      p.StartMode,
		Players:        []string{},
		State:          StateOpen,
		Prize:          strings.TrimSpace(p.Prize),
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(m.opts.InactivityTimeout),
	}
	if t.TeamSelection == SelectionManual {
		t.Teams = make(map[string][]string, t.TotalTeams)
		for _, k := range t.TeamKeys() {
			t.Teams[k] = []string{}
		}
	}

	defer m.lock(t.ID)()
	if err := m.store.CreateTournament(ctx, t); err != nil {
		return nil, err
	}
	m.armInactivity(t)
	log.Printf("[sim] created %s mode=%s players=%d selection=%s start=%s guild=%s",
		t.ID, t.Mode, t.MaxPlayers, t.TeamSelection, t.StartMode, t.GuildID)

	msgID, err := m.notify.SendPanel(ctx, t)
	if !effect("send panel "+t.ID, err) || msgID == "" {
		return t, nil
	}
	saved, err := m.update(ctx, t.ID, func(cur *Tournament) (Commit, error) {
		cur.PanelMessageID = msgID
		return Commit{}, nil
	})
	if err != nil {
		log.Printf("[sim] remember panel of %s: %v", t.ID, err)
		t.PanelMessageID = msgID
		return t, nil
	}
	return saved, nil
}

// Start generates the bracket and opens the first round's channels.
func (m *Manager) Start(ctx context.Context, id string, actor Actor) (*Tournament, error) {
	var fx after
	defer fx.run()
	defer m.lock(id)()
	return m.startLocked(ctx, id, actor, &fx)
}

func (m *Manager) startLocked(ctx context.Context, id string, actor Actor, fx *after) (*Tournament, error) {
	t, err := m.update(ctx, id, func(t *Tournament) (Commit, error) {
		if !t.CanManage(actor) {
			return Commit{}, ErrNotCreator
		}
		switch t.State {
		case StateOpen:
		case StateRunning:
			return Commit{}, ErrAlreadyStarted
		default:
			return Commit{}, ErrAlreadyClosed
		}
		if t.TeamSelection == SelectionManual {
			if !t.teamsComplete() {
				return Commit{}, ErrIncompleteTeams
			}
		} else if !t.Full() {
			return Commit{}, ErrNotFull
		}

		var (
			b   *bracket.Bracket
			err error
		)
		m.withRand(func(r *rand.Rand) { b, err = bracket.Generate(t.bracketInput(), r) })
		if err != nil {
			return Commit{}, err
		}
		t.Bracket = b
		t.State = StateRunning
		t.ExpiresAt = time.Time{}
		return Commit{}, nil
	})
	if err != nil {
		return nil, err
	}
	m.sessions.Disarm(inactivityKey(id))
	log.Printf("[sim] started %s teams=%d rounds=%d", t.ID, t.TotalTeams, t.Bracket.TotalRounds)

	gid, tid := t.GuildID, t.ID
	fx.add(func() { events.Publish(m.bus, events.TournamentStarted{TournamentID: tid, GuildID: gid}) })

	t = m.openRound(ctx, t, fx)
	effect("edit panel "+t.ID, m.notify.EditPanel(ctx, t))
	return t, nil
}

// openRound creates the group (once) and one channel per playable match of
// the current round, then persists the channel ids. Caller holds the lock.
func (m *Manager) openRound(ctx context.Context, t *Tournament, fx *after) *Tournament {
	groupID := t.CategoryID
	if groupID == "" {
		gid, err := m.notify.CreateGroup(ctx, t)
		if effect("create group "+t.ID, err) {
			groupID = gid
		}
	}

	var todo []*bracket.Match
	for _, mt := range t.Bracket.Round(t.Bracket.CurrentRound) {
		if !mt.IsBye && !mt.Completed() && mt.ChannelID == "" {
			todo = append(todo, mt)
		}
	}
	view := t.Clone()
	channels := make([]string, len(todo))
	var g errgroup.Group
	g.SetLimit(channelFanout)
	for i, mt := range todo {
		g.Go(func() error {
			ch, err := m.notify.CreateMatchChannel(ctx, view, groupID, mt)
			if effect("create channel "+mt.ID, err) {
				channels[i] = ch
			}
			return nil
		})
	}
	_ = g.Wait()

	saved, err := m.update(ctx, t.ID, func(cur *Tournament) (Commit, error) {
		if cur.CategoryID == "" {
			cur.CategoryID = groupID
		}
		if cur.Bracket == nil {
			return Commit{}, ErrNotRunning
		}
		for i, mt := range todo {
			if cm, ok := cur.Bracket.Match(mt.ID); ok && cm.ChannelID == "" {
				cm.ChannelID = channels[i]
			}
		}
		return Commit{}, nil
	})
	if err != nil {
		log.Printf("[sim] persist channels of %s: %v", t.ID, err)
		t.CategoryID = groupID
		for i, mt := range todo {
			mt.ChannelID = channels[i]
		}
		saved = t
	}

	for i, mt := range todo {
		if channels[i] == "" {
			continue
		}
		m.index.put(channels[i], t.ID, mt.ID)
		ev := events.MatchChannelOpened{TournamentID: t.ID, GuildID: t.GuildID, MatchID: mt.ID, ChannelID: channels[i]}
		fx.add(func() { events.Publish(m.bus, ev) })
	}
	return saved
}

// ReportResult commits winner for matchID on behalf of actor. It is the single
// entry point every decision path (buttons, assistant, walkover timer) ends in.
func (m *Manager) ReportResult(ctx context.Context, id, matchID string, side bracket.Side, walkover bool, actor Actor) (*Outcome, error) {
	var fx after
	defer fx.run()
	defer m.lock(id)()
	return m.reportLocked(ctx, id, matchID, side, walkover, actor, &fx)
}

// DeclareWinner is the creator's manual decision for a match.
func (m *Manager) DeclareWinner(ctx context.Context, id, matchID string, side bracket.Side, actor Actor) (*Outcome, error) {
	return m.ReportResult(ctx, id, matchID, side, false, actor)
}

// DeclareWalkover awards the match to side because the other team did not show.
func (m *Manager) DeclareWalkover(ctx context.Context, id, matchID string, side bracket.Side, actor Actor) (*Outcome, error) {
	return m.ReportResult(ctx, id, matchID, side, true, actor)
}

func (m *Manager) reportLocked(ctx context.Context, id, matchID string, side bracket.Side, walkover bool, actor Actor, fx *after) (*Outcome, error) {
	var (
		adv   bracket.Advance
		round int
	)
	t, err := m.update(ctx, id, func(t *Tournament) (Commit, error) {
		if !t.CanManage(actor) {
			return Commit{}, ErrNotCreator
		}
		if t.State != StateRunning || t.Bracket == nil {
			return Commit{}, ErrNotRunning
		}
		mt, ok := t.Bracket.Match(matchID)
		if !ok {
			return Commit{}, ErrMatchNotFound
		}
		if mt.Completed() {
			return Commit{}, ErrMatchCompleted
		}
		winner := mt.Team(side)
		if len(winner) == 0 {
			return Commit{}, ErrInvalidSide
		}
		round = mt.Round

		a, err := t.Bracket.Advance(matchID, slices.Clone(winner))
		if err != nil {
			return Commit{}, err
		}
		mt.Walkover = walkover
		adv = a

		var c Commit
		switch {
		case a.Final:
			t.State = StateFinished
			c.Ranks = m.championRanks(t, a.Champion)
			c.Cleanup = m.closeJobs(t)
		case a.NewRound:
			c.Cleanup = m.channelJobs(t, t.MatchChannels(round))
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}

	mt, _ := t.Bracket.Match(matchID)
	m.index.remove(mt.ChannelID)
	log.Printf("[sim] %s %s won by %s walkover=%v", t.ID, matchID, side, walkover)
	if mt.ChannelID != "" {
		effect("post result "+matchID, m.notify.PostMessage(ctx, mt.ChannelID, resultLine(mt)))
	}
	resolved := events.MatchResolved{TournamentID: t.ID, GuildID: t.GuildID, MatchID: matchID, ChannelID: mt.ChannelID, Walkover: walkover}
	fx.add(func() { events.Publish(m.bus, resolved) })

	switch {
	case adv.Final:
		m.closed(t, fx)
		effect("announce champion "+t.ID, m.notify.PostMessage(ctx, t.ChannelID,
			fmt.Sprintf("🏆 Tournament finished. Champion: %s", mentions(adv.Champion))))
	case adv.NewRound:
		t = m.openRound(ctx, t, fx)
		effect("announce round "+t.ID, m.notify.PostMessage(ctx, t.ChannelID,
			fmt.Sprintf("▶️ %s is starting.", bracket.RoundName(t.Bracket.CurrentRound, t.Bracket.TotalRounds))))
	}
	effect("edit panel "+t.ID, m.notify.EditPanel(ctx, t))
	return &Outcome{Tournament: t, Match: mt, Advance: adv}, nil
}

func resultLine(mt *bracket.Match) string {
	if mt.Walkover {
		return fmt.Sprintf("✅ W.O. for %s. This channel will be removed shortly.", mentions(mt.Winner))
	}
	return fmt.Sprintf("✅ Winner: %s. This channel will be removed shortly.", mentions(mt.Winner))
}

func mentions(ids []string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = "<@" + id + ">"
	}
	return strings.Join(parts, " ")
}

// championRanks awards the champion team when the roster is large enough.
func (m *Manager) championRanks(t *Tournament, champion []string) []RankDelta {
	if len(t.Players) < m.opts.MinRankedPlayers {
		log.Printf("[sim] %s finished with %d players, ranking skipped", t.ID, len(t.Players))
		return nil
	}
	out := make([]RankDelta, 0, 2*len(champion))
	for _, uid := range champion {
		out = append(out,
			RankDelta{GuildID: "", UserID: uid, Wins: 1, Points: 1},
			RankDelta{GuildID: t.GuildID, UserID: uid, Wins: 1, Points: 1},
		)
	}
	return out
}

func (m *Manager) channelJobs(t *Tournament, channels []string) []CleanupJob {
	runAt := m.now().Add(m.opts.CleanupDelay)
	out := make([]CleanupJob, 0, len(channels))
	for _, ch := range channels {
		out = append(out, CleanupJob{ID: uuid.NewString(), TournamentID: t.ID, Kind: CleanupChannel, Target: ch, RunAt: runAt})
	}
	return out
}

// closeJobs tears down the current round's channels, the group and the record.
// Earlier rounds were queued when they completed.
func (m *Manager) closeJobs(t *Tournament) []CleanupJob {
	var out []CleanupJob
	if t.Bracket != nil {
		out = m.channelJobs(t, t.MatchChannels(t.Bracket.CurrentRound))
	}
	runAt := m.now().Add(m.opts.CleanupDelay)
	if t.CategoryID != "" {
		out = append(out, CleanupJob{ID: uuid.NewString(), TournamentID: t.ID, Kind: CleanupGroup, Target: t.CategoryID, RunAt: runAt})
	}
	return append(out, CleanupJob{ID: uuid.NewString(), TournamentID: t.ID, Kind: CleanupRecord, Target: t.ID, RunAt: runAt})
}

// closed runs the in-memory side of a terminal transition. Caller holds the lock.
func (m *Manager) closed(t *Tournament, fx *after) {
	m.sessions.DisarmScope(t.ID)
	m.index.dropTournament(t.ID)
	m.locks.Delete(t.ID)
	var channels []string
	if t.Bracket != nil {
		for _, mt := range t.Bracket.Matches {
			if mt.ChannelID != "" {
				channels = append(channels, mt.ChannelID)
			}
		}
	}
	ev := events.TournamentClosed{TournamentID: t.ID, GuildID: t.GuildID, State: string(t.State), ChannelIDs: channels}
	fx.add(func() { events.Publish(m.bus, ev) })
	log.Printf("[sim] %s closed as %s", t.ID, t.State)
}

// Cancel stops an open or running tournament and schedules its cleanup.
func (m *Manager) Cancel(ctx context.Context, id string, actor Actor) (*Tournament, error) {
	var fx after
	defer fx.run()
	defer m.lock(id)()
	return m.cancelLocked(ctx, id, actor, &fx)
}

func (m *Manager) cancelLocked(ctx context.Context, id string, actor Actor, fx *after) (*Tournament, error) {
	t, err := m.update(ctx, id, func(t *Tournament) (Commit, error) {
		if !t.CanManage(actor) {
			return Commit{}, ErrNotCreator
		}
		if t.State.Terminal() {
			return Commit{}, ErrAlreadyClosed
		}
		t.State = StateCancelled
		return Commit{Cleanup: m.closeJobs(t)}, nil
	})
	if err != nil {
		return nil, err
	}
	m.closed(t, fx)
	effect("edit panel "+t.ID, m.notify.EditPanel(ctx, t))
	return t, nil
}

// expire cancels a tournament whose roster was left idle too long.
func (m *Manager) expire(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), timerOpTimeout)
	defer cancel()

	var fx after
	defer fx.run()
	defer m.lock(id)()

	cur, err := m.store.GetTournament(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrTournamentNotFound) {
			log.Printf("[sim] inactivity check %s: %v", id, err)
		}
		return
	}
	if cur.State != StateOpen {
		return
	}
	if wait := cur.ExpiresAt.Sub(m.now()); wait > 0 {
		m.armInactivity(cur)
		return
	}
	t, err := m.cancelLocked(ctx, id, SystemActor, &fx)
	if err != nil {
		log.Printf("[sim] inactivity cancel %s: %v", id, err)
		return
	}
	log.Printf("[sim] %s cancelled after %s without activity", id, m.opts.InactivityTimeout)
	effect("announce timeout "+id, m.notify.PostMessage(ctx, t.ChannelID,
		"⌛ Tournament cancelled: the roster was not completed in time."))
}
