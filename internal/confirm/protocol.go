package confirm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jose-valero/simulator-bot/internal/bracket"
	"github.com/jose-valero/simulator-bot/internal/domain/events"
	"github.com/jose-valero/simulator-bot/internal/session"
	"github.com/jose-valero/simulator-bot/internal/simulator"
)

const (
	DefaultWalkoverWindow = 2 * time.Minute
	DefaultNudgeWindow    = 5 * time.Minute
	DefaultPauseWindow    = 3 * time.Minute
	DefaultBudget         = 8
	DefaultMinConfidence  = 0.6

	timerOpTimeout = 30 * time.Second
)

// Referee is the part of the tournament manager the protocol drives.
type Referee interface {
	MatchByChannel(ctx context.Context, channelID string) (simulator.MatchRef, bool, error)
	ReportResult(ctx context.Context, id, matchID string, side bracket.Side, walkover bool, actor simulator.Actor) (*simulator.Outcome, error)
}

type Poster interface {
	PostMessage(ctx context.Context, channelID, text string) error
}

type Options struct {
	WalkoverWindow time.Duration
	NudgeWindow    time.Duration
	PauseWindow    time.Duration
	Budget         int
	MinConfidence  float64
	// Enabled gates the assistant per guild. nil means always on.
	Enabled func(ctx context.Context, guildID string) bool
	Now     func() time.Time
}

// Pending is a claim waiting for the other side.
type Pending struct {
	ClaimerID   string
	ClaimerSide bracket.Side
	Winner      bracket.Side
	Loser       bracket.Side
	Walkover    bool
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Budget      int

	seq uint64
}

type channelState struct {
	tournamentID string
	matchID      string
	pending      *Pending
	pausedUntil  time.Time
}

// Message is one chat message in a match channel.
type Message struct {
	GuildID   string
	ChannelID string
	AuthorID  string
	Content   string
}

// Action reports what HandleMessage did, mostly for logs and tests.
type Action string

const (
	ActionIgnored   Action = "ignored"
	ActionPaused    Action = "paused"
	ActionClaimed   Action = "claimed"
	ActionCounted   Action = "counted"
	ActionCommitted Action = "committed"
	ActionDenied    Action = "denied"
	ActionDropped   Action = "dropped"
)

type Protocol struct {
	ref      Referee
	post     Poster
	cls      Classifier
	sessions *session.Registry
	opts     Options

	mu       sync.Mutex
	seq      uint64
	channels map[string]*channelState
}

func New(ref Referee, post Poster, cls Classifier, sessions *session.Registry, opts Options) *Protocol {
	if opts.WalkoverWindow <= 0 {
		opts.WalkoverWindow = DefaultWalkoverWindow
	}
	if opts.NudgeWindow <= 0 {
		opts.NudgeWindow = DefaultNudgeWindow
	}
	if opts.PauseWindow <= 0 {
		opts.PauseWindow = DefaultPauseWindow
	}
	if opts.Budget <= 0 {
		opts.Budget = DefaultBudget
	}
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = DefaultMinConfidence
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if cls == nil {
		cls = KeywordClassifier{}
	}
	if sessions == nil {
		sessions = session.NewRegistry()
	}
	return &Protocol{
		ref:      ref,
		post:     post,
		cls:      cls,
		sessions: sessions,
		opts:     opts,
		channels: map[string]*channelState{},
	}
}

// Attach wires the protocol to lifecycle events and returns the unsubscribe func.
func (p *Protocol) Attach(bus *events.Bus) func() {
	c1 := events.Subscribe(bus, func(e events.MatchChannelOpened) { p.Watch(e.TournamentID, e.MatchID, e.ChannelID) })
	c2 := events.Subscribe(bus, func(e events.MatchResolved) { p.Forget(e.ChannelID) })
	c3 := events.Subscribe(bus, func(e events.TournamentClosed) {
		for _, ch := range e.ChannelIDs {
			p.Forget(ch)
		}
	})
	return func() { c1(); c2(); c3() }
}

func nudgeKey(st *channelState, channelID string) string {
	return session.Key(st.tournamentID, "channel", channelID, "nudge")
}

func walkoverKey(st *channelState, channelID string) string {
	return session.Key(st.tournamentID, "channel", channelID, "walkover")
}

// Watch starts tracking a freshly opened match channel.
func (p *Protocol) Watch(tournamentID, matchID, channelID string) {
	if channelID == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	st := &channelState{tournamentID: tournamentID, matchID: matchID}
	p.channels[channelID] = st
	p.armNudge(st, channelID)
}

// Forget drops every claim and timer of a channel. A match decided by any
// path ends here.
func (p *Protocol) Forget(channelID string) {
	if channelID == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.channels[channelID]
	if !ok {
		return
	}
	p.sessions.Disarm(nudgeKey(st, channelID))
	p.sessions.Disarm(walkoverKey(st, channelID))
	delete(p.channels, channelID)
}

// Pending returns the claim waiting in channelID, if any.
func (p *Protocol) Pending(channelID string) (Pending, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.channels[channelID]
	if !ok || st.pending == nil {
		return Pending{}, false
	}
	return *st.pending, true
}

func (p *Protocol) enabled(ctx context.Context, guildID string) bool {
	return p.opts.Enabled == nil || p.opts.Enabled(ctx, guildID)
}

// state returns the channel state, creating it for channels opened before a
// restart. Caller holds p.mu.
func (p *Protocol) state(ref simulator.MatchRef) *channelState {
	st, ok := p.channels[ref.ChannelID]
	if !ok || st.matchID != ref.MatchID {
		st = &channelState{tournamentID: ref.TournamentID, matchID: ref.MatchID}
		p.channels[ref.ChannelID] = st
	}
	return st
}

func (p *Protocol) armNudge(st *channelState, channelID string) {
	p.armNudgeIn(st, channelID, p.opts.NudgeWindow)
}

func (p *Protocol) armNudgeIn(st *channelState, channelID string, d time.Duration) {
	p.sessions.Arm(nudgeKey(st, channelID), d, func() { p.nudge(channelID) })
}

// HandleMessage feeds one chat message through the state machine.
func (p *Protocol) HandleMessage(ctx context.Context, msg Message) Action {
	ref, ok, err := p.ref.MatchByChannel(ctx, msg.ChannelID)
	if err != nil {
		log.Printf("[confirm] lookup %s: %v", msg.ChannelID, err)
		return ActionIgnored
	}
	if !ok || ref.Completed || !p.enabled(ctx, ref.GuildID) {
		return ActionIgnored
	}
	side := ref.SideOf(msg.AuthorID)
	if side == bracket.SideNone {
		return ActionIgnored
	}

	_, pending := p.Pending(msg.ChannelID)
	rc := RosterContext{AuthorID: msg.AuthorID, AuthorSide: side, Team1: ref.Team1, Team2: ref.Team2, Pending: pending}
	c, err := p.cls.Classify(ctx, msg.Content, rc)
	if err != nil {
		log.Printf("[confirm] classify in %s: %v", msg.ChannelID, err)
		c = none
	}
	if c.Intent != IntentNone && c.Confidence < p.opts.MinConfidence {
		c = none
	}

	var (
		action Action
		say    string
		commit *Pending
	)
	p.mu.Lock()
	st := p.state(ref)
	now := p.opts.Now()
	if st.pending != nil {
		action, say, commit = p.answer(st, ref, side, c)
	} else {
		action, say = p.open(st, ref, msg.AuthorID, side, c, now)
	}
	p.mu.Unlock()

	if say != "" {
		p.say(ctx, msg.ChannelID, say)
	}
	if commit != nil {
		if !p.commit(ctx, ref, *commit) {
			return ActionIgnored
		}
	}
	if action != ActionCounted && action != ActionIgnored {
		log.Printf("[confirm] %s %s by %s: %s (%s)", ref.MatchID, msg.ChannelID, msg.AuthorID, action, c.Intent)
	}
	return action
}

// open handles a message while no claim is pending. Caller holds p.mu.
func (p *Protocol) open(st *channelState, ref simulator.MatchRef, authorID string, side bracket.Side, c Classification, now time.Time) (Action, string) {
	if c.Intent == IntentInProgress {
		st.pausedUntil = now.Add(p.opts.PauseWindow)
		p.armNudgeIn(st, ref.ChannelID, p.opts.PauseWindow+p.opts.NudgeWindow)
		return ActionPaused, ""
	}
	if now.Before(st.pausedUntil) {
		return ActionIgnored, ""
	}
	if c.Intent != IntentVictory && c.Intent != IntentWalkover {
		p.armNudge(st, ref.ChannelID)
		return ActionCounted, ""
	}

	winner := c.Winner
	if winner == bracket.SideNone {
		winner = side
	}
	p.seq++
	pd := &Pending{
		ClaimerID:   authorID,
		ClaimerSide: side,
		Winner:      winner,
		Loser:       winner.Opponent(),
		Walkover:    c.Intent == IntentWalkover,
		CreatedAt:   now,
		Budget:      p.opts.Budget,
		seq:         p.seq,
	}
	st.pending = pd
	p.sessions.Disarm(nudgeKey(st, ref.ChannelID))

	others := mentions(teamOf(ref, side.Opponent()))
	if pd.Walkover {
		pd.ExpiresAt = now.Add(p.opts.WalkoverWindow)
		channelID, seq := ref.ChannelID, pd.seq
		p.sessions.Arm(walkoverKey(st, ref.ChannelID), p.opts.WalkoverWindow, func() { p.walkoverDue(channelID, seq) })
		return ActionClaimed, fmt.Sprintf("⚠️ <@%s> claims a W.O. for %s. %s, answer within %s or the match is awarded.",
			authorID, mentions(teamOf(ref, winner)), others, p.opts.WalkoverWindow)
	}
	return ActionClaimed, fmt.Sprintf("📝 <@%s> reports %s as the winner. %s, can you confirm?",
		authorID, mentions(teamOf(ref, winner)), others)
}

// answer handles a message while a claim is pending. Only the side opposite
// the claimer can settle it. Caller holds p.mu.
func (p *Protocol) answer(st *channelState, ref simulator.MatchRef, side bracket.Side, c Classification) (Action, string, *Pending) {
	pd := st.pending
	if side == pd.ClaimerSide {
		return ActionIgnored, "", nil
	}
	switch {
	case c.Intent == IntentConfirm,
		c.Intent == IntentVictory && c.Winner == pd.Winner:
		p.clear(st, ref.ChannelID)
		return ActionCommitted, "", pd
	case c.Intent == IntentDeny,
		c.Intent == IntentInProgress,
		c.Intent == IntentVictory && c.Winner != pd.Winner,
		c.Intent == IntentWalkover:
		p.clear(st, ref.ChannelID)
		return ActionDenied, fmt.Sprintf("❌ The result was disputed. <@%s>, please decide this match with the buttons.", ref.CreatorID), nil
	}
	pd.Budget--
	if pd.Budget <= 0 {
		p.clear(st, ref.ChannelID)
		return ActionDropped, "", nil
	}
	return ActionCounted, "", nil
}

// clear drops the pending claim and its walkover timer, and restarts the
// nudge window. Caller holds p.mu.
func (p *Protocol) clear(st *channelState, channelID string) {
	st.pending = nil
	p.sessions.Disarm(walkoverKey(st, channelID))
	p.armNudge(st, channelID)
}

// commit reports the claimed result. A match decided meanwhile by another
// path is a no-op.
func (p *Protocol) commit(ctx context.Context, ref simulator.MatchRef, pd Pending) bool {
	_, err := p.ref.ReportResult(ctx, ref.TournamentID, ref.MatchID, pd.Winner, pd.Walkover, simulator.SystemActor)
	switch {
	case err == nil:
		return true
	case errors.Is(err, simulator.ErrMatchCompleted),
		errors.Is(err, simulator.ErrNotRunning),
		errors.Is(err, simulator.ErrTournamentNotFound):
		log.Printf("[confirm] %s already settled: %v", ref.MatchID, err)
	default:
		log.Printf("[confirm] commit %s: %v", ref.MatchID, err)
	}
	return false
}

// walkoverDue commits a walkover claim nobody contested.
func (p *Protocol) walkoverDue(channelID string, seq uint64) {
	p.mu.Lock()
	st, ok := p.channels[channelID]
	if !ok || st.pending == nil || st.pending.seq != seq || !st.pending.Walkover {
		p.mu.Unlock()
		return
	}
	pd := *st.pending
	p.clear(st, channelID)
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timerOpTimeout)
	defer cancel()
	ref, ok, err := p.ref.MatchByChannel(ctx, channelID)
	if err != nil || !ok || ref.Completed {
		return
	}
	if p.commit(ctx, ref, pd) {
		log.Printf("[confirm] %s walkover committed for %s", ref.MatchID, pd.Winner)
	}
}

// nudge asks for the result when the channel has gone quiet.
func (p *Protocol) nudge(channelID string) {
	p.mu.Lock()
	st, ok := p.channels[channelID]
	if !ok || st.pending != nil {
		p.mu.Unlock()
		return
	}
	if now := p.opts.Now(); now.Before(st.pausedUntil) {
		p.armNudgeIn(st, channelID, st.pausedUntil.Sub(now)+p.opts.NudgeWindow)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timerOpTimeout)
	defer cancel()
	ref, ok, err := p.ref.MatchByChannel(ctx, channelID)
	if err != nil || !ok || ref.Completed {
		return
	}
	p.say(ctx, channelID, "⏰ How is the match going? Post the result here (for example \"we won\") so the other team can confirm it.")
}

func (p *Protocol) say(ctx context.Context, channelID, text string) {
	if err := p.post.PostMessage(ctx, channelID, text); err != nil {
		log.Printf("[effect] post in %s: %v", channelID, err)
	}
}

func teamOf(ref simulator.MatchRef, s bracket.Side) []string {
	switch s {
	case bracket.SideTeam1:
		return ref.Team1
	case bracket.SideTeam2:
		return ref.Team2
	}
	return nil
}

func mentions(ids []string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = "<@" + id + ">"
	}
	return strings.Join(parts, " ")
}
