// Package simulator runs single-elimination tournaments: roster management,
// the lifecycle state machine and the effects each transition has on the
// chat platform.
package simulator

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/jose-valero/simulator-bot/internal/domain/events"
	"github.com/jose-valero/simulator-bot/internal/session"
)

const (
	defaultInactivityTimeout = 10 * time.Minute
	defaultCleanupDelay      = 10 * time.Second
	defaultMinRankedPlayers  = 3
	maxCommitRetries         = 3
	channelFanout            = 4
	timerOpTimeout           = 30 * time.Second
)

type Options struct {
	InactivityTimeout time.Duration
	CleanupDelay      time.Duration
	// MinRankedPlayers is the roster size below which a finish awards nothing.
	MinRankedPlayers int

	Sessions *session.Registry
	Bus      *events.Bus
	Rand     *rand.Rand
	Now      func() time.Time
}

type Manager struct {
	store  Store
	notify Notifier
	opts   Options

	sessions *session.Registry
	bus      *events.Bus
	index    *channelIndex

	locks sync.Map // tournamentID -> *sync.Mutex

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewManager(store Store, notify Notifier, opts Options) *Manager {
	if opts.InactivityTimeout <= 0 {
		opts.InactivityTimeout = defaultInactivityTimeout
	}
	if opts.CleanupDelay < 0 {
		opts.CleanupDelay = defaultCleanupDelay
	}
	if opts.MinRankedPlayers <= 0 {
		opts.MinRankedPlayers = defaultMinRankedPlayers
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sessions == nil {
		opts.Sessions = session.NewRegistry()
	}
	if opts.Bus == nil {
		opts.Bus = events.NewBus()
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Manager{
		store:    store,
		notify:   notify,
		opts:     opts,
		sessions: opts.Sessions,
		bus:      opts.Bus,
		index:    newChannelIndex(),
		rng:      rng,
	}
}

func (m *Manager) Bus() *events.Bus             { return m.bus }
func (m *Manager) Sessions() *session.Registry { return m.sessions }

func (m *Manager) now() time.Time { return m.opts.Now() }

// lock serializes every mutation of one tournament and returns the unlock func.
func (m *Manager) lock(id string) func() {
	v, _ := m.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// update loads id, lets fn mutate it and commits the result. fn may run more
// than once when the store reports a concurrent write. Caller holds the lock.
func (m *Manager) update(ctx context.Context, id string, fn func(t *Tournament) (Commit, error)) (*Tournament, error) {
	for attempt := 0; ; attempt++ {
		t, err := m.store.GetTournament(ctx, id)
		if err != nil {
			return nil, err
		}
		c, err := fn(t)
		if err != nil {
			return nil, err
		}
		t.UpdatedAt = m.now()
		c.Tournament = t
		err = m.store.Commit(ctx, c)
		if errors.Is(err, ErrVersionConflict) && attempt < maxCommitRetries {
			log.Printf("[sim] version conflict on %s, retrying (%d)", id, attempt+1)
			continue
		}
		if err != nil {
			return nil, err
		}
		return t, nil
	}
}

// effect logs a failed external effect and reports whether it succeeded.
func effect(what string, err error) bool {
	if err != nil {
		log.Printf("[effect] %s: %v", what, err)
		return false
	}
	return true
}

// after collects bus publications so they run once the tournament lock is released.
type after []func()

func (a *after) add(fn func()) { *a = append(*a, fn) }

func (a *after) run() {
	for _, fn := range *a {
		fn()
	}
}

func (m *Manager) withRand(fn func(r *rand.Rand)) {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	fn(m.rng)
}

// Get returns the current record.
func (m *Manager) Get(ctx context.Context, id string) (*Tournament, error) {
	return m.store.GetTournament(ctx, id)
}

func inactivityKey(id string) string { return session.Key(id, "inactivity") }

// armInactivity (re)schedules the open-state timeout from t.ExpiresAt.
func (m *Manager) armInactivity(t *Tournament) {
	d := t.ExpiresAt.Sub(m.now())
	if d <= 0 {
		d = time.Second
	}
	id := t.ID
	m.sessions.Arm(inactivityKey(id), d, func() { m.expire(id) })
}

// Restore re-arms timers, rebuilds the channel index and announces live match
// channels again after a restart.
func (m *Manager) Restore(ctx context.Context) error {
	ts, err := m.store.ListTournaments(ctx)
	if err != nil {
		return err
	}
	var (
		open, running int
		opened        []events.MatchChannelOpened
	)
	for _, t := range ts {
		switch t.State {
		case StateOpen:
			m.armInactivity(t)
			open++
		case StateRunning:
			if t.Bracket == nil {
				continue
			}
			for _, mt := range t.Bracket.Pending() {
				m.index.put(mt.ChannelID, t.ID, mt.ID)
				if mt.ChannelID != "" {
					opened = append(opened, events.MatchChannelOpened{TournamentID: t.ID, GuildID: t.GuildID, MatchID: mt.ID, ChannelID: mt.ChannelID})
				}
			}
			running++
		}
	}
	// Watchers of live channels start over after a restart.
	for _, ev := range opened {
		events.Publish(m.bus, ev)
	}
	log.Printf("[sim] restored %d open and %d running tournaments", open, running)
	return nil
}

// MatchByChannel resolves a match channel to its live match.
func (m *Manager) MatchByChannel(ctx context.Context, channelID string) (MatchRef, bool, error) {
	ref, ok := m.index.get(channelID)
	if !ok {
		return MatchRef{}, false, nil
	}
	t, err := m.store.GetTournament(ctx, ref.TournamentID)
	if errors.Is(err, ErrTournamentNotFound) {
		m.index.remove(channelID)
		return MatchRef{}, false, nil
	}
	if err != nil {
		return MatchRef{}, false, err
	}
	if t.State != StateRunning || t.Bracket == nil {
		return MatchRef{}, false, nil
	}
	mt, ok := t.Bracket.Match(ref.MatchID)
	if !ok {
		return MatchRef{}, false, nil
	}
	return MatchRef{
		TournamentID: t.ID,
		GuildID:      t.GuildID,
		ChannelID:    channelID,
		CreatorID:    t.CreatorID,
		MatchID:      mt.ID,
		Round:        mt.Round,
		Team1:        mt.Team1,
		Team2:        mt.Team2,
		Completed:    mt.Completed(),
	}, true, nil
}

// OpenChannels is the number of match channels currently indexed.
func (m *Manager) OpenChannels() int { return m.index.count() }
